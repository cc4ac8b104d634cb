package domain

import (
	"time"

	"github.com/google/uuid"
)

// Доменная сущность: бизнес-объект (истина).
// Не зависит от Gin, Postgres, Redis.
type Task struct {
	ID          uuid.UUID
	Title       string
	Description string
	Status      TaskStatus
	Priority    TaskPriority
	DueDate     *time.Time

	ProjectID  *uuid.UUID
	CreatorID  uuid.UUID
	AssigneeID *uuid.UUID

	CompletedAt *time.Time
	RemindedAt  *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	DeletedAt   *time.Time
}

type TaskStatus string

const (
	StatusTodo       TaskStatus = "TODO"
	StatusInProgress TaskStatus = "IN_PROGRESS"
	StatusInReview   TaskStatus = "IN_REVIEW"
	StatusDone       TaskStatus = "DONE"
)

type TaskPriority string

const (
	PriorityLow    TaskPriority = "LOW"
	PriorityMedium TaskPriority = "MEDIUM"
	PriorityHigh   TaskPriority = "HIGH"
	PriorityUrgent TaskPriority = "URGENT"
)

// IsOverdue reports whether the task has a due date before now and is not done.
func (t Task) IsOverdue(now time.Time) bool {
	return t.DueDate != nil && t.Status != StatusDone && t.DueDate.Before(now)
}

// Watchers returns the users interested in changes of t, excluding actor.
func (t Task) Watchers(actor uuid.UUID) []uuid.UUID {
	var out []uuid.UUID
	if t.CreatorID != actor {
		out = append(out, t.CreatorID)
	}
	if t.AssigneeID != nil && *t.AssigneeID != actor && *t.AssigneeID != t.CreatorID {
		out = append(out, *t.AssigneeID)
	}
	return out
}

// TaskFilter narrows a task listing. Zero values mean "any".
type TaskFilter struct {
	Status     TaskStatus
	Priority   TaskPriority
	ProjectID  *uuid.UUID
	AssigneeID *uuid.UUID
	DueBefore  *time.Time
	DueAfter   *time.Time
	Page       Page
}
