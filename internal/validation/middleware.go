package validation

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"taskflow/internal/dto"
	"taskflow/internal/logctx"

	"github.com/gin-gonic/gin"
)

const payloadKey = "validatedPayload"

// Body validates the JSON request body against schema and stores the typed
// payload for the handler. Invalid input is answered with 400 before the
// handler runs.
func (s *Validator) Body(schema string) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := c.GetRawData()
		if err != nil {
			abortInvalid(c, bodyError("could not read request body"))
			return
		}
		s.bind(c, schema, raw)
	}
}

// Query validates the query string against schema. Values arrive as strings
// and are coerced by the payload's field types.
func (s *Validator) Query(schema string) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := QueryJSON(c.Request.URL.Query())
		if err != nil {
			abortInvalid(c, bodyError("invalid query string"))
			return
		}
		s.bind(c, schema, raw)
	}
}

// QueryJSON turns query values into a JSON object of strings. Only the first
// value of a repeated key is used and empty values are dropped.
func QueryJSON(q url.Values) ([]byte, error) {
	m := make(map[string]string, len(q))
	for k, vs := range q {
		if len(vs) > 0 && vs[0] != "" {
			m[k] = vs[0]
		}
	}
	return json.Marshal(m)
}

func (s *Validator) bind(c *gin.Context, schema string, raw []byte) {
	v, err := s.Validate(schema, raw)
	if err != nil {
		var verr *Error
		if errors.As(err, &verr) {
			abortInvalid(c, verr)
			return
		}
		logctx.From(c.Request.Context()).Error("validate payload",
			slog.String("schema", schema), slog.Any("err", err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, dto.Fail(dto.KindInternal, "internal server error"))
		return
	}
	c.Set(payloadKey, v)
	c.Next()
}

func abortInvalid(c *gin.Context, verr *Error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, dto.Envelope{
		Success: false,
		Error:   dto.KindValidation,
		Message: "validation failed",
		Details: verr.Details(),
	})
}

// Payload returns the value stored by Body or Query. The zero T is returned
// when the route has no validation step or T does not match the schema.
func Payload[T any](c *gin.Context) T {
	var zero T
	v, ok := c.Get(payloadKey)
	if !ok {
		return zero
	}
	t, ok := v.(T)
	if !ok {
		return zero
	}
	return t
}
