package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"taskflow/internal/auth"
	"taskflow/internal/cache"
	dom "taskflow/internal/domain"
	"taskflow/internal/dto"
	"taskflow/internal/logctx"
	"taskflow/internal/repo"

	"github.com/google/uuid"
)

// ProjectService manages projects and their members. Only the owner changes membership.
type ProjectService struct {
	projects repo.ProjectRepo
	users    repo.UserRepo
	cache    *cache.TaskCache
}

// NewProjectService creates a ProjectService. If c is nil, no task cache is invalidated.
func NewProjectService(projects repo.ProjectRepo, users repo.UserRepo, c *cache.TaskCache) *ProjectService {
	return &ProjectService{projects: projects, users: users, cache: c}
}

// Create makes the caller the project's OWNER.
func (s *ProjectService) Create(ctx context.Context, id auth.Identity, req dto.CreateProjectRequest) (dom.Project, error) {
	const op = "service.projects.Create"

	p, err := s.projects.Create(ctx, dom.Project{
		ID:          uuid.New(),
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
		OwnerID:     id.ID,
	})
	if err != nil {
		return dom.Project{}, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}

func (s *ProjectService) List(ctx context.Context, id auth.Identity) ([]dom.Project, error) {
	const op = "service.projects.List"

	list, err := s.projects.ListForUser(ctx, id.ID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return list, nil
}

// Get returns the project and its members. Non-members get ErrNotFound.
func (s *ProjectService) Get(ctx context.Context, id auth.Identity, projectID uuid.UUID) (dom.Project, []dom.ProjectMember, error) {
	const op = "service.projects.Get"

	if _, err := s.role(ctx, projectID, id.ID); err != nil {
		return dom.Project{}, nil, fmt.Errorf("%s: %w", op, err)
	}
	p, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		return dom.Project{}, nil, fmt.Errorf("%s: %w", op, mapRepoErr(err))
	}
	members, err := s.projects.Members(ctx, projectID)
	if err != nil {
		return dom.Project{}, nil, fmt.Errorf("%s: %w", op, err)
	}
	return p, members, nil
}

// AddMember adds the user registered under email as MEMBER and returns the new member list.
func (s *ProjectService) AddMember(ctx context.Context, id auth.Identity, projectID uuid.UUID, email string) ([]dom.ProjectMember, error) {
	const op = "service.projects.AddMember"

	if err := s.requireOwner(ctx, projectID, id.ID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	u, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, fmt.Errorf("%s: user: %w", op, mapRepoErr(err))
	}
	if err := s.projects.AddMember(ctx, projectID, u.ID, dom.RoleMember); err != nil {
		if errors.Is(err, repo.ErrAlreadyExists) {
			return nil, fmt.Errorf("%s: already a member: %w", op, ErrConflict)
		}
		return nil, fmt.Errorf("%s: %w", op, mapRepoErr(err))
	}
	s.invalidate(ctx, u.ID)

	members, err := s.projects.Members(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return members, nil
}

// RemoveMember is allowed to the owner, or to a member leaving on their own.
// The owner cannot be removed.
func (s *ProjectService) RemoveMember(ctx context.Context, id auth.Identity, projectID, userID uuid.UUID) error {
	const op = "service.projects.RemoveMember"

	callerRole, err := s.role(ctx, projectID, id.ID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if callerRole != dom.RoleOwner && id.ID != userID {
		return fmt.Errorf("%s: %w", op, ErrForbidden)
	}

	targetRole, err := s.role(ctx, projectID, userID)
	if err != nil {
		return fmt.Errorf("%s: member: %w", op, err)
	}
	if targetRole == dom.RoleOwner {
		return fmt.Errorf("%s: owner cannot be removed: %w", op, ErrConflict)
	}

	if err := s.projects.RemoveMember(ctx, projectID, userID); err != nil {
		return fmt.Errorf("%s: %w", op, mapRepoErr(err))
	}
	s.invalidate(ctx, userID)
	return nil
}

func (s *ProjectService) role(ctx context.Context, projectID, userID uuid.UUID) (dom.ProjectRole, error) {
	r, err := s.projects.MemberRole(ctx, projectID, userID)
	if err != nil {
		return "", mapRepoErr(err)
	}
	return r, nil
}

// requireOwner: non-members get ErrNotFound, members ErrForbidden.
func (s *ProjectService) requireOwner(ctx context.Context, projectID, userID uuid.UUID) error {
	r, err := s.role(ctx, projectID, userID)
	if err != nil {
		return err
	}
	if r != dom.RoleOwner {
		return ErrForbidden
	}
	return nil
}

func (s *ProjectService) invalidate(ctx context.Context, userIDs ...uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateUsers(ctx, userIDs...); err != nil {
		logctx.From(ctx).Warn("invalidate task cache", slog.String("err", err.Error()))
	}
}
