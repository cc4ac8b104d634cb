package domain

import (
	"time"

	"github.com/google/uuid"
)

type NotificationType string

const (
	NotificationTaskAssigned  NotificationType = "TASK_ASSIGNED"
	NotificationTaskUpdated   NotificationType = "TASK_UPDATED"
	NotificationTaskDue       NotificationType = "TASK_DUE"
	NotificationTaskCompleted NotificationType = "TASK_COMPLETED"
)

type Notification struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Type      NotificationType
	Title     string
	Body      string
	TaskID    *uuid.UUID
	Read      bool
	CreatedAt time.Time
}
