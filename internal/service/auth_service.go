package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"taskflow/internal/auth"
	dom "taskflow/internal/domain"
	"taskflow/internal/dto"
	"taskflow/internal/repo"

	"github.com/google/uuid"
)

type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) bool
	VerifyDummy(password string) bool
}

type TokenIssuer interface {
	Issue(id auth.Identity) (string, error)
}

// AuthResult is what register and login hand back to the client.
type AuthResult struct {
	User  dom.User
	Token string
}

// AuthService handles registration, login and the caller's own profile.
type AuthService struct {
	users  repo.UserRepo
	hasher PasswordHasher
	tokens TokenIssuer
}

func NewAuthService(users repo.UserRepo, hasher PasswordHasher, tokens TokenIssuer) *AuthService {
	return &AuthService{users: users, hasher: hasher, tokens: tokens}
}

// Register creates a new user with hashed password and signs them in.
func (s *AuthService) Register(ctx context.Context, req dto.RegisterRequest) (AuthResult, error) {
	const op = "service.auth.Register"

	email := normalizeEmail(req.Email)

	_, err := s.users.GetByEmail(ctx, email)
	if err == nil {
		return AuthResult{}, fmt.Errorf("%s: %w", op, ErrDuplicateEmail)
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return AuthResult{}, fmt.Errorf("%s: %w", op, err)
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return AuthResult{}, fmt.Errorf("%s: %w", op, err)
	}

	u, err := s.users.Create(ctx, dom.User{
		ID:           uuid.New(),
		Email:        email,
		Name:         strings.TrimSpace(req.Name),
		PasswordHash: hash,
	})
	if err != nil {
		// Lost the race between the lookup and the insert.
		if errors.Is(err, repo.ErrAlreadyExists) {
			return AuthResult{}, fmt.Errorf("%s: %w", op, ErrDuplicateEmail)
		}
		return AuthResult{}, fmt.Errorf("%s: %w", op, err)
	}

	return s.issue(op, u)
}

// Login checks email and password. Unknown email and wrong password fail the same way.
func (s *AuthService) Login(ctx context.Context, req dto.LoginRequest) (AuthResult, error) {
	const op = "service.auth.Login"

	u, err := s.users.GetByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			s.hasher.VerifyDummy(req.Password)
			return AuthResult{}, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
		}
		return AuthResult{}, fmt.Errorf("%s: %w", op, err)
	}
	if !s.hasher.Verify(req.Password, u.PasswordHash) {
		return AuthResult{}, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	return s.issue(op, u)
}

// CurrentUser re-reads the caller, who may have been deleted since the token was issued.
func (s *AuthService) CurrentUser(ctx context.Context, id auth.Identity) (dom.User, error) {
	const op = "service.auth.CurrentUser"

	u, err := s.users.GetByID(ctx, id.ID)
	if err != nil {
		return dom.User{}, fmt.Errorf("%s: %w", op, mapRepoErr(err))
	}
	return u, nil
}

// UpdateProfile applies only the provided fields. Last write wins.
func (s *AuthService) UpdateProfile(ctx context.Context, id auth.Identity, req dto.UpdateProfileRequest) (dom.User, error) {
	const op = "service.auth.UpdateProfile"

	u, err := s.users.GetByID(ctx, id.ID)
	if err != nil {
		return dom.User{}, fmt.Errorf("%s: %w", op, mapRepoErr(err))
	}

	if req.Name != nil {
		u.Name = strings.TrimSpace(*req.Name)
	}
	if req.Email != nil {
		email := normalizeEmail(*req.Email)
		if email != u.Email {
			other, err := s.users.GetByEmail(ctx, email)
			if err == nil && other.ID != u.ID {
				return dom.User{}, fmt.Errorf("%s: %w", op, ErrDuplicateEmail)
			}
			if err != nil && !errors.Is(err, repo.ErrNotFound) {
				return dom.User{}, fmt.Errorf("%s: %w", op, err)
			}
			u.Email = email
		}
	}

	out, err := s.users.Update(ctx, u)
	if err != nil {
		if errors.Is(err, repo.ErrAlreadyExists) {
			return dom.User{}, fmt.Errorf("%s: %w", op, ErrDuplicateEmail)
		}
		return dom.User{}, fmt.Errorf("%s: %w", op, mapRepoErr(err))
	}
	return out, nil
}

func (s *AuthService) issue(op string, u dom.User) (AuthResult, error) {
	token, err := s.tokens.Issue(auth.Identity{ID: u.ID, Email: u.Email, Name: u.Name})
	if err != nil {
		return AuthResult{}, fmt.Errorf("%s: %w", op, err)
	}
	return AuthResult{User: u, Token: token}, nil
}

func normalizeEmail(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// mapRepoErr translates repo.ErrNotFound; anything else passes through.
func mapRepoErr(err error) error {
	if errors.Is(err, repo.ErrNotFound) {
		return ErrNotFound
	}
	return err
}
