package dto

import (
	"time"

	"github.com/google/uuid"
)

type CreateTaskRequest struct {
	Title       string `json:"title" validate:"required,notblank,max=200"`
	Description string `json:"description" validate:"max=5000"`
	Status      string `json:"status" validate:"omitempty,oneof=TODO IN_PROGRESS IN_REVIEW DONE"`
	Priority    string `json:"priority" validate:"omitempty,oneof=LOW MEDIUM HIGH URGENT"`
	DueDate     *Date  `json:"dueDate" validate:"omitempty,notpast"` // "2026-02-19" or RFC3339
	ProjectID   string `json:"projectId" validate:"omitempty,uuid"`
	AssigneeID  string `json:"assigneeId" validate:"omitempty,uuid"`
}

// ApplyDefaults fills status and priority when omitted.
func (r *CreateTaskRequest) ApplyDefaults() {
	if r.Status == "" {
		r.Status = "TODO"
	}
	if r.Priority == "" {
		r.Priority = "MEDIUM"
	}
}

// UpdateTaskRequest leaves nil fields unchanged. Empty dueDate or assigneeId clears the value.
type UpdateTaskRequest struct {
	Title       *string `json:"title" validate:"omitempty,notblank,max=200"`
	Description *string `json:"description" validate:"omitempty,max=5000"`
	Status      *string `json:"status" validate:"omitempty,oneof=TODO IN_PROGRESS IN_REVIEW DONE"`
	Priority    *string `json:"priority" validate:"omitempty,oneof=LOW MEDIUM HIGH URGENT"`
	DueDate     *Date   `json:"dueDate" validate:"omitempty,notpast"`
	AssigneeID  *string `json:"assigneeId" validate:"omitempty,uuid|len=0"`
}

func (r UpdateTaskRequest) Empty() bool {
	return r.Title == nil && r.Description == nil && r.Status == nil &&
		r.Priority == nil && r.DueDate == nil && r.AssigneeID == nil
}

// ListTasksQuery is decoded from the query string of GET /tasks.
type ListTasksQuery struct {
	Page       Int    `json:"page" validate:"omitempty,min=1"`
	Limit      Int    `json:"limit" validate:"omitempty,min=1,max=100"`
	Status     string `json:"status" validate:"omitempty,oneof=TODO IN_PROGRESS IN_REVIEW DONE"`
	Priority   string `json:"priority" validate:"omitempty,oneof=LOW MEDIUM HIGH URGENT"`
	ProjectID  string `json:"projectId" validate:"omitempty,uuid"`
	AssigneeID string `json:"assigneeId" validate:"omitempty,uuid"`
	DueBefore  *Date  `json:"dueBefore"`
	DueAfter   *Date  `json:"dueAfter"`
}

func (q *ListTasksQuery) ApplyDefaults() {
	if q.Page == 0 {
		q.Page = 1
	}
	if q.Limit == 0 {
		q.Limit = 20
	}
}

type SearchTasksQuery struct {
	Q string `json:"q" validate:"required,notblank,max=200"`
}

type TaskResponse struct {
	ID          uuid.UUID  `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	Priority    string     `json:"priority"`
	DueDate     *time.Time `json:"dueDate"`
	ProjectID   *uuid.UUID `json:"projectId"`
	CreatorID   uuid.UUID  `json:"creatorId"`
	AssigneeID  *uuid.UUID `json:"assigneeId"`
	Overdue     bool       `json:"overdue"`
	CompletedAt *time.Time `json:"completedAt"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}
