package domain

import (
	"time"

	"github.com/google/uuid"
)

// User is the domain entity for a user account.
// PasswordHash never leaves the service layer.
type User struct {
	ID           uuid.UUID
	Email        string
	Name         string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
