package handlers

import (
	"net/http"

	dom "taskflow/internal/domain"
	"taskflow/internal/dto"
	"taskflow/internal/service"
	"taskflow/internal/validation"

	"github.com/gin-gonic/gin"
)

type NotificationHandler struct {
	svc *service.NotificationService
}

func NewNotificationHandler(svc *service.NotificationService) *NotificationHandler {
	return &NotificationHandler{svc: svc}
}

// List godoc
// @Summary      List my notifications, newest first
// @Tags         notifications
// @Produce      json
// @Security     BearerAuth
// @Param        page    query  int   false  "Page, from 1"
// @Param        limit   query  int   false  "Page size, up to 100"
// @Param        unread  query  bool  false  "Only unread"
// @Success      200  {object}  dto.Envelope{data=[]dto.NotificationResponse}
// @Router       /notifications [get]
func (h *NotificationHandler) List(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	q := validation.Payload[dto.ListNotificationsQuery](c)
	page := dom.Page{Number: int(q.Page), Limit: int(q.Limit)}
	unread := q.Unread != nil && bool(*q.Unread)

	list, total, err := h.svc.List(c.Request.Context(), id, unread, page)
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]dto.NotificationResponse, len(list))
	for i := range list {
		out[i] = notificationToResponse(list[i])
	}
	c.JSON(http.StatusOK, dto.Paged(out, pageMeta(page, total)))
}

// @Summary      Unread notification count
// @Tags         notifications
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  dto.Envelope{data=dto.UnreadCountResponse}
// @Router       /notifications/unread-count [get]
func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	n, err := h.svc.UnreadCount(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.OK(dto.UnreadCountResponse{Unread: n}))
}

// @Summary      Mark a notification as read
// @Tags         notifications
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Notification ID"
// @Success      200  {object}  dto.Envelope{data=dto.NotificationResponse}
// @Failure      404  {object}  dto.Envelope
// @Router       /notifications/{id}/read [patch]
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	nid, ok := parseID(c, "id")
	if !ok {
		return
	}
	n, err := h.svc.MarkRead(c.Request.Context(), id, nid)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.OK(notificationToResponse(n)))
}

// @Summary      Mark all notifications as read
// @Tags         notifications
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  dto.Envelope
// @Router       /notifications/read-all [post]
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	if _, err := h.svc.MarkAllRead(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.OKMessage("all notifications marked as read"))
}
