package domain

import (
	"time"

	"github.com/google/uuid"
)

type Project struct {
	ID          uuid.UUID
	Name        string
	Description string
	OwnerID     uuid.UUID
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type ProjectRole string

const (
	RoleOwner  ProjectRole = "OWNER"
	RoleMember ProjectRole = "MEMBER"
)

// ProjectMember is a membership row joined with the member's public profile.
type ProjectMember struct {
	ProjectID uuid.UUID
	UserID    uuid.UUID
	Email     string
	Name      string
	Role      ProjectRole
	JoinedAt  time.Time
}
