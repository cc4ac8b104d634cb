package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"taskflow/internal/auth"
	dom "taskflow/internal/domain"
	"taskflow/internal/dto"
	"taskflow/internal/service"
	"taskflow/internal/validation"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestErrorResponse_Taxonomy(t *testing.T) {
	t.Parallel()

	wrap := func(err error) error { return fmt.Errorf("service.op: %w", err) }
	cases := []struct {
		name   string
		err    error
		status int
		kind   string
	}{
		{"validation", &validation.Error{Fields: []validation.FieldError{{Field: "title", Message: "is required"}}}, http.StatusBadRequest, dto.KindValidation},
		{"no token", auth.ErrUnauthenticated, http.StatusUnauthorized, dto.KindUnauthenticated},
		{"bad token", wrap(auth.ErrInvalidToken), http.StatusUnauthorized, dto.KindUnauthenticated},
		{"expired", wrap(auth.ErrTokenExpired), http.StatusUnauthorized, dto.KindUnauthenticated},
		{"credentials", wrap(service.ErrInvalidCredentials), http.StatusUnauthorized, dto.KindInvalidCredentials},
		{"forbidden", wrap(service.ErrForbidden), http.StatusForbidden, dto.KindForbidden},
		{"not found", wrap(service.ErrNotFound), http.StatusNotFound, dto.KindNotFound},
		{"duplicate", wrap(service.ErrDuplicateEmail), http.StatusConflict, dto.KindDuplicateEmail},
		{"conflict", wrap(service.ErrConflict), http.StatusConflict, dto.KindConflict},
		{"unknown schema", wrap(validation.ErrUnknownSchema), http.StatusInternalServerError, dto.KindInternal},
		{"driver error", errors.New("pq: connection refused"), http.StatusInternalServerError, dto.KindInternal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, env := errorResponse(tc.err)
			require.Equal(t, tc.status, status)
			require.Equal(t, tc.kind, env.Error)
			require.False(t, env.Success)
			require.NotContains(t, env.Message, "pq:", "driver text must not leak")
		})
	}
}

func TestErrorResponse_ValidationDetails(t *testing.T) {
	t.Parallel()

	_, env := errorResponse(&validation.Error{Fields: []validation.FieldError{
		{Field: "email", Message: "must be a valid email"},
		{Field: "password", Message: "must be at least 6 characters"},
	}})
	require.Len(t, env.Details, 2)
	require.Equal(t, "email", env.Details[0].Field)
}

func TestParseID(t *testing.T) {
	t.Parallel()
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.GET("/tasks/:id", func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		c.String(http.StatusOK, id.String())
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/tasks/42", nil))
	require.Equal(t, http.StatusBadRequest, w.Code)

	var env dto.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	require.Equal(t, dto.KindValidation, env.Error)
	require.Equal(t, "id", env.Details[0].Field)

	id := uuid.New()
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/tasks/"+id.String(), nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, id.String(), w.Body.String())
}

func TestCaller_MissingIdentityIs401(t *testing.T) {
	t.Parallel()
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.GET("/me", func(c *gin.Context) {
		if _, ok := caller(c); !ok {
			return
		}
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestTaskToResponse_Overdue(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)

	open := dom.Task{ID: uuid.New(), Status: dom.StatusTodo, DueDate: &past}
	require.True(t, taskToResponse(open, now).Overdue)

	done := open
	done.Status = dom.StatusDone
	require.False(t, taskToResponse(done, now).Overdue)
}

func TestPageMeta(t *testing.T) {
	t.Parallel()

	m := pageMeta(dom.Page{Number: 2, Limit: 10}, 25)
	require.Equal(t, dto.Meta{Page: 2, Limit: 10, Total: 25, TotalPages: 3}, m)

	m = pageMeta(dom.Page{}, 0)
	require.Equal(t, dto.Meta{Page: 1, Limit: 20, Total: 0, TotalPages: 0}, m)
}
