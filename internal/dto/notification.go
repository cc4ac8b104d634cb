package dto

import (
	"time"

	"github.com/google/uuid"
)

type ListNotificationsQuery struct {
	Page   Int   `json:"page" validate:"omitempty,min=1"`
	Limit  Int   `json:"limit" validate:"omitempty,min=1,max=100"`
	Unread *Bool `json:"unread"`
}

func (q *ListNotificationsQuery) ApplyDefaults() {
	if q.Page == 0 {
		q.Page = 1
	}
	if q.Limit == 0 {
		q.Limit = 20
	}
}

type NotificationResponse struct {
	ID        uuid.UUID  `json:"id"`
	Type      string     `json:"type"`
	Title     string     `json:"title"`
	Body      string     `json:"body"`
	TaskID    *uuid.UUID `json:"taskId"`
	Read      bool       `json:"read"`
	CreatedAt time.Time  `json:"createdAt"`
}

type UnreadCountResponse struct {
	Unread int `json:"unread"`
}
