package dto

import (
	"time"

	"github.com/google/uuid"
)

// RegisterRequest is the JSON body for POST /auth/register.
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,password,maxbytes=72"`
	Name     string `json:"name" validate:"required,notblank,max=120"`
}

// LoginRequest is the JSON body for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// UpdateProfileRequest is the JSON body for PATCH /auth/me. A nil field is left unchanged.
type UpdateProfileRequest struct {
	Name  *string `json:"name" validate:"omitempty,notblank,max=120"`
	Email *string `json:"email" validate:"omitempty,email,max=255"`
}

// UserResponse never carries the password hash.
type UserResponse struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type AuthResponse struct {
	User  UserResponse `json:"user"`
	Token string       `json:"token"`
}
