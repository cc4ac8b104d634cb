package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"taskflow/internal/auth"
	dom "taskflow/internal/domain"
	"taskflow/internal/dto"
	"taskflow/internal/logctx"
	"taskflow/internal/service"
	"taskflow/internal/validation"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// errorResponse maps an error from any layer to its status and envelope.
// Anything unrecognised is Internal; its text never reaches the client.
func errorResponse(err error) (int, dto.Envelope) {
	var verr *validation.Error
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, dto.Envelope{
			Error:   dto.KindValidation,
			Message: "validation failed",
			Details: verr.Details(),
		}
	case errors.Is(err, auth.ErrUnauthenticated):
		return http.StatusUnauthorized, dto.Fail(dto.KindUnauthenticated, "authorization required")
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrTokenExpired):
		return http.StatusUnauthorized, dto.Fail(dto.KindUnauthenticated, "invalid or expired token")
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized, dto.Fail(dto.KindInvalidCredentials, "invalid email or password")
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden, dto.Fail(dto.KindForbidden, "not allowed")
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, dto.Fail(dto.KindNotFound, "not found")
	case errors.Is(err, service.ErrDuplicateEmail):
		return http.StatusConflict, dto.Fail(dto.KindDuplicateEmail, "email already registered")
	case errors.Is(err, service.ErrConflict):
		return http.StatusConflict, dto.Fail(dto.KindConflict, "conflicts with the current state")
	default:
		return http.StatusInternalServerError, dto.Fail(dto.KindInternal, "internal server error")
	}
}

func writeError(c *gin.Context, err error) {
	status, env := errorResponse(err)
	if status == http.StatusInternalServerError {
		logctx.From(c.Request.Context()).Error("request failed",
			slog.String("path", c.FullPath()),
			slog.String("err", err.Error()),
		)
	}
	c.AbortWithStatusJSON(status, env)
}

// caller returns the identity set by auth.RequireAuth. A route mounted
// without it answers 401 instead of running with a zero identity.
func caller(c *gin.Context) (auth.Identity, bool) {
	id, ok := auth.IdentityFrom(c.Request.Context())
	if !ok {
		writeError(c, auth.ErrUnauthenticated)
	}
	return id, ok
}

func parseID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		writeError(c, &validation.Error{Fields: []validation.FieldError{{Field: name, Message: "must be a valid UUID"}}})
		return uuid.Nil, false
	}
	return id, true
}

func userToResponse(u dom.User) dto.UserResponse {
	return dto.UserResponse{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

func taskToResponse(t dom.Task, now time.Time) dto.TaskResponse {
	return dto.TaskResponse{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Status:      string(t.Status),
		Priority:    string(t.Priority),
		DueDate:     t.DueDate,
		ProjectID:   t.ProjectID,
		CreatorID:   t.CreatorID,
		AssigneeID:  t.AssigneeID,
		Overdue:     t.IsOverdue(now),
		CompletedAt: t.CompletedAt,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func tasksToResponses(list []dom.Task, now time.Time) []dto.TaskResponse {
	out := make([]dto.TaskResponse, len(list))
	for i := range list {
		out[i] = taskToResponse(list[i], now)
	}
	return out
}

func projectToResponse(p dom.Project, members []dom.ProjectMember) dto.ProjectResponse {
	resp := dto.ProjectResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		OwnerID:     p.OwnerID,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
	if members != nil {
		resp.Members = membersToResponses(members)
	}
	return resp
}

func membersToResponses(list []dom.ProjectMember) []dto.MemberResponse {
	out := make([]dto.MemberResponse, len(list))
	for i, m := range list {
		out[i] = dto.MemberResponse{
			UserID:   m.UserID,
			Email:    m.Email,
			Name:     m.Name,
			Role:     string(m.Role),
			JoinedAt: m.JoinedAt,
		}
	}
	return out
}

func notificationToResponse(n dom.Notification) dto.NotificationResponse {
	return dto.NotificationResponse{
		ID:        n.ID,
		Type:      string(n.Type),
		Title:     n.Title,
		Body:      n.Body,
		TaskID:    n.TaskID,
		Read:      n.Read,
		CreatedAt: n.CreatedAt,
	}
}

func pageMeta(p dom.Page, total int) dto.Meta {
	p = p.Normalize()
	return dto.Meta{Page: p.Number, Limit: p.Limit, Total: total, TotalPages: p.TotalPages(total)}
}
