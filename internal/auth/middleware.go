package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"taskflow/internal/dto"
	"taskflow/internal/logctx"

	"github.com/gin-gonic/gin"
)

// ErrUnauthenticated: no bearer credentials on the request.
var ErrUnauthenticated = errors.New("authorization required")

const (
	msgAuthRequired = "authorization required"
	msgInvalidToken = "invalid or expired token"
)

type TokenVerifier interface {
	Verify(token string) (Identity, error)
}

// RequireAuth returns a middleware that checks the bearer token and puts the
// caller's Identity into the request context. If missing or invalid, responds
// with 401 and the handler does not run.
func RequireAuth(tokens TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := IdentityFromRequest(c.Request, tokens)
		if err != nil {
			msg := msgInvalidToken
			if errors.Is(err, ErrUnauthenticated) {
				msg = msgAuthRequired
			}
			logctx.From(c.Request.Context()).Debug("auth rejected", slog.String("reason", err.Error()))
			c.AbortWithStatusJSON(http.StatusUnauthorized, dto.Fail(dto.KindUnauthenticated, msg))
			return
		}
		c.Request = c.Request.WithContext(WithIdentity(c.Request.Context(), id))
		c.Next()
	}
}

// IdentityFromRequest authenticates r by its Authorization header.
func IdentityFromRequest(r *http.Request, tokens TokenVerifier) (Identity, error) {
	token, ok := BearerToken(r)
	if !ok {
		return Identity{}, ErrUnauthenticated
	}
	return tokens.Verify(token)
}

// IdentityFromUpgrade is IdentityFromRequest for websocket handshakes, where
// browsers cannot set headers: the "token" query parameter is accepted too.
func IdentityFromUpgrade(r *http.Request, tokens TokenVerifier) (Identity, error) {
	if _, ok := BearerToken(r); ok {
		return IdentityFromRequest(r, tokens)
	}
	token := r.URL.Query().Get("token")
	if token == "" {
		return Identity{}, ErrUnauthenticated
	}
	return tokens.Verify(token)
}

// BearerToken extracts the token from "Authorization: Bearer <token>".
func BearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
