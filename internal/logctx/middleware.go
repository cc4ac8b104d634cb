package logctx

import (
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"
	"time"

	"taskflow/internal/dto"

	"github.com/gin-gonic/gin"
)

const HeaderRequestID = "X-Request-Id"

const requestIDKey = "request_id"

// RequestID reuses the incoming X-Request-Id or generates a 32 char hex id,
// and echoes it in the response.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" {
			id = genID()
			c.Request.Header.Set(HeaderRequestID, id)
		}
		c.Header(HeaderRequestID, id)
		c.Set(requestIDKey, id)
		c.Next()
	}
}

// RequestIDFrom returns the id set by RequestID, or "".
func RequestIDFrom(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

// Logger puts a request-scoped logger into the request context and writes one
// record per request once the handler chain is done.
func Logger(l *slog.Logger) gin.HandlerFunc {
	if l == nil {
		l = slog.Default()
	}
	return func(c *gin.Context) {
		reqLogger := l
		if rid := c.GetHeader(HeaderRequestID); rid != "" {
			reqLogger = reqLogger.With(slog.String("request_id", rid))
		}
		c.Request = c.Request.WithContext(Into(c.Request.Context(), reqLogger))

		start := time.Now()
		c.Next()

		attrs := []slog.Attr{
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("dur", time.Since(start)),
			slog.Int("bytes", c.Writer.Size()),
		}
		level := slog.LevelInfo
		if c.Writer.Status() >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		From(c.Request.Context()).LogAttrs(c.Request.Context(), level, "http", attrs...)
	}
}

// Recover перехватывает panic и отвечает 500/Internal.
// Детали паники не утекают на клиент.
func Recover() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				From(c.Request.Context()).LogAttrs(c.Request.Context(), slog.LevelError, "panic",
					slog.String("path", c.Request.URL.Path),
					slog.Any("reason", rec),
				)
				c.AbortWithStatusJSON(http.StatusInternalServerError, dto.Fail(dto.KindInternal, "internal server error"))
			}
		}()
		c.Next()
	}
}

func genID() string {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}
