package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"taskflow/internal/auth"
	dom "taskflow/internal/domain"
	"taskflow/internal/logctx"
	"taskflow/internal/repo"

	"github.com/google/uuid"
)

//go:generate mockgen -destination=../../mocks/service_mocks.go -package=mocks taskflow/internal/service Notifier,Publisher

// EventNotification is the realtime event type carrying a new notification.
const EventNotification = "notification"

// Publisher delivers a live event to every open connection of a user.
type Publisher interface {
	Publish(ctx context.Context, userID uuid.UUID, eventType string, data any) error
}

// Notifier records a notification for a user.
type Notifier interface {
	Notify(ctx context.Context, n dom.Notification) (dom.Notification, error)
}

type NotificationService struct {
	repo repo.NotificationRepo
	pub  Publisher
}

// NewNotificationService creates a NotificationService. If pub is nil, nothing is pushed live.
func NewNotificationService(r repo.NotificationRepo, pub Publisher) *NotificationService {
	return &NotificationService{repo: r, pub: pub}
}

// Notify stores n and pushes it to the recipient's live connections.
// A failed push is logged; the stored notification is still returned.
func (s *NotificationService) Notify(ctx context.Context, n dom.Notification) (dom.Notification, error) {
	const op = "service.notifications.Notify"

	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	out, err := s.repo.Create(ctx, n)
	if err != nil {
		return dom.Notification{}, fmt.Errorf("%s: %w", op, err)
	}

	if s.pub != nil {
		if err := s.pub.Publish(ctx, out.UserID, EventNotification, notificationEvent(out)); err != nil {
			logctx.From(ctx).Warn("publish notification",
				slog.String("op", op),
				slog.String("user_id", out.UserID.String()),
				slog.String("err", err.Error()),
			)
		}
	}
	return out, nil
}

func (s *NotificationService) List(ctx context.Context, id auth.Identity, unreadOnly bool, page dom.Page) ([]dom.Notification, int, error) {
	const op = "service.notifications.List"

	list, total, err := s.repo.List(ctx, id.ID, unreadOnly, page.Normalize())
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}
	return list, total, nil
}

// MarkRead marks one of the caller's notifications as read. Someone else's is ErrNotFound.
func (s *NotificationService) MarkRead(ctx context.Context, id auth.Identity, notificationID uuid.UUID) (dom.Notification, error) {
	const op = "service.notifications.MarkRead"

	n, err := s.repo.MarkRead(ctx, id.ID, notificationID)
	if err != nil {
		return dom.Notification{}, fmt.Errorf("%s: %w", op, mapRepoErr(err))
	}
	return n, nil
}

func (s *NotificationService) MarkAllRead(ctx context.Context, id auth.Identity) (int64, error) {
	const op = "service.notifications.MarkAllRead"

	n, err := s.repo.MarkAllRead(ctx, id.ID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return n, nil
}

func (s *NotificationService) UnreadCount(ctx context.Context, id auth.Identity) (int, error) {
	const op = "service.notifications.UnreadCount"

	n, err := s.repo.UnreadCount(ctx, id.ID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return n, nil
}

func notificationEvent(n dom.Notification) map[string]any {
	return map[string]any{
		"id":        n.ID,
		"type":      n.Type,
		"title":     n.Title,
		"body":      n.Body,
		"taskId":    n.TaskID,
		"read":      n.Read,
		"createdAt": n.CreatedAt.UTC().Format(time.RFC3339),
	}
}
