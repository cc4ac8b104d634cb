package repo

import (
	"context"
	"fmt"

	dom "taskflow/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type NotificationRepo interface {
	Create(ctx context.Context, n dom.Notification) (dom.Notification, error)
	List(ctx context.Context, userID uuid.UUID, unreadOnly bool, page dom.Page) ([]dom.Notification, int, error)
	MarkRead(ctx context.Context, userID, id uuid.UUID) (dom.Notification, error)
	MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error)
	UnreadCount(ctx context.Context, userID uuid.UUID) (int, error)
}

type PGNotificationRepo struct {
	db *pgxpool.Pool
}

func NewPGNotificationRepo(db *pgxpool.Pool) *PGNotificationRepo {
	return &PGNotificationRepo{db: db}
}

const notificationColumns = `id, user_id, type, title, body, task_id, read, created_at`

func scanNotification(row pgx.Row) (dom.Notification, error) {
	var n dom.Notification
	err := row.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Body, &n.TaskID, &n.Read, &n.CreatedAt)
	return n, err
}

func (r *PGNotificationRepo) Create(ctx context.Context, n dom.Notification) (dom.Notification, error) {
	const op = "repo.notifications.Create"

	out, err := scanNotification(r.db.QueryRow(ctx, `
		INSERT INTO notifications (id, user_id, type, title, body, task_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+notificationColumns,
		n.ID, n.UserID, n.Type, n.Title, n.Body, n.TaskID))
	if err != nil {
		return dom.Notification{}, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

// List returns one page of the user's notifications, newest first, and the total.
func (r *PGNotificationRepo) List(ctx context.Context, userID uuid.UUID, unreadOnly bool, page dom.Page) ([]dom.Notification, int, error) {
	const op = "repo.notifications.List"

	where := `user_id = $1`
	if unreadOnly {
		where += ` AND read = FALSE`
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM notifications WHERE `+where, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("%s: count: %w", op, err)
	}

	page = page.Normalize()
	rows, err := r.db.Query(ctx, `SELECT `+notificationColumns+` FROM notifications WHERE `+where+`
		ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3`, userID, page.Limit, page.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	list := []dom.Notification{}
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("%s: %w", op, err)
		}
		list = append(list, n)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}
	return list, total, nil
}

// MarkRead marks one notification of userID as read. ErrNotFound for someone else's.
func (r *PGNotificationRepo) MarkRead(ctx context.Context, userID, id uuid.UUID) (dom.Notification, error) {
	const op = "repo.notifications.MarkRead"

	n, err := scanNotification(r.db.QueryRow(ctx, `
		UPDATE notifications SET read = TRUE
		WHERE id = $1 AND user_id = $2
		RETURNING `+notificationColumns, id, userID))
	if err != nil {
		return dom.Notification{}, wrapNotFound(op, err)
	}
	return n, nil
}

func (r *PGNotificationRepo) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	const op = "repo.notifications.MarkAllRead"

	tag, err := r.db.Exec(ctx, `UPDATE notifications SET read = TRUE WHERE user_id = $1 AND read = FALSE`, userID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return tag.RowsAffected(), nil
}

func (r *PGNotificationRepo) UnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	const op = "repo.notifications.UnreadCount"

	var n int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND read = FALSE`, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return n, nil
}
