package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"taskflow/internal/auth"
	"taskflow/internal/cache"
	dom "taskflow/internal/domain"
	"taskflow/internal/dto"
	"taskflow/internal/logctx"
	"taskflow/internal/repo"
	"taskflow/internal/validation"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

type TaskService struct {
	tasks    repo.TaskRepo
	projects repo.ProjectRepo
	users    repo.UserRepo
	notifier Notifier
	cache    *cache.TaskCache
	sf       singleflight.Group
	now      func() time.Time
}

// NewTaskService creates a TaskService. If c is nil, caching is disabled.
// If n is nil, no notifications are sent.
func NewTaskService(tasks repo.TaskRepo, projects repo.ProjectRepo, users repo.UserRepo, n Notifier, c *cache.TaskCache) *TaskService {
	return &TaskService{tasks: tasks, projects: projects, users: users, notifier: n, cache: c, now: time.Now}
}

func (s *TaskService) Create(ctx context.Context, id auth.Identity, req dto.CreateTaskRequest) (dom.Task, error) {
	const op = "service.tasks.Create"

	req.ApplyDefaults()
	t := dom.Task{
		ID:          uuid.New(),
		Title:       strings.TrimSpace(req.Title),
		Description: strings.TrimSpace(req.Description),
		Status:      dom.TaskStatus(req.Status),
		Priority:    dom.TaskPriority(req.Priority),
		CreatorID:   id.ID,
	}
	if req.DueDate != nil {
		t.DueDate = req.DueDate.Ptr()
	}
	if req.ProjectID != "" {
		pid, err := uuid.Parse(req.ProjectID)
		if err != nil {
			return dom.Task{}, fieldError("projectId", "must be a valid UUID")
		}
		if _, err := s.projects.MemberRole(ctx, pid, id.ID); err != nil {
			return dom.Task{}, fmt.Errorf("%s: project: %w", op, mapRepoErr(err))
		}
		t.ProjectID = &pid
	}
	if req.AssigneeID != "" {
		aid, err := s.resolveAssignee(ctx, t.ProjectID, req.AssigneeID)
		if err != nil {
			return dom.Task{}, fmt.Errorf("%s: %w", op, err)
		}
		t.AssigneeID = &aid
	}
	if t.Status == dom.StatusDone {
		now := s.now().UTC()
		t.CompletedAt = &now
	}

	out, err := s.tasks.Create(ctx, t)
	if err != nil {
		return dom.Task{}, fmt.Errorf("%s: %w", op, mapRepoErr(err))
	}
	s.invalidateCache(ctx, s.audience(ctx, out)...)
	s.notifyChange(ctx, id, dom.Task{}, out)
	return out, nil
}

// List returns one page of the tasks visible to the caller and the total count.
func (s *TaskService) List(ctx context.Context, id auth.Identity, f dom.TaskFilter) ([]dom.Task, int, error) {
	const op = "service.tasks.List"

	f.Page = f.Page.Normalize()
	if s.cache != nil {
		key := "list:" + id.ID.String() + ":" + cache.FilterKey(f)
		// The shared call is not bound to any single caller's cancellation.
		shared := context.WithoutCancel(ctx)
		v, err, _ := s.sf.Do(key, func() (interface{}, error) {
			if page, err := s.cache.GetList(shared, id.ID, f); err == nil && page != nil {
				return *page, nil
			}
			items, total, err := s.tasks.List(shared, id.ID, f)
			if err != nil {
				return nil, err
			}
			page := cache.TaskPage{Items: items, Total: total}
			_ = s.cache.SetList(shared, id.ID, f, page)
			return page, nil
		})
		if err != nil {
			return nil, 0, fmt.Errorf("%s: %w", op, err)
		}
		page := v.(cache.TaskPage)
		return page.Items, page.Total, nil
	}

	items, total, err := s.tasks.List(ctx, id.ID, f)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}
	return items, total, nil
}

func (s *TaskService) Get(ctx context.Context, id auth.Identity, taskID uuid.UUID) (dom.Task, error) {
	const op = "service.tasks.Get"

	t, err := s.tasks.GetVisible(ctx, id.ID, taskID)
	if err != nil {
		return dom.Task{}, fmt.Errorf("%s: %w", op, mapRepoErr(err))
	}
	return t, nil
}

// Update applies only the provided fields. An empty dueDate or assigneeId clears it.
func (s *TaskService) Update(ctx context.Context, id auth.Identity, taskID uuid.UUID, req dto.UpdateTaskRequest) (dom.Task, error) {
	const op = "service.tasks.Update"

	existing, err := s.tasks.GetVisible(ctx, id.ID, taskID)
	if err != nil {
		return dom.Task{}, fmt.Errorf("%s: %w", op, mapRepoErr(err))
	}

	patch := existing
	if req.Title != nil {
		patch.Title = strings.TrimSpace(*req.Title)
	}
	if req.Description != nil {
		patch.Description = strings.TrimSpace(*req.Description)
	}
	if req.Priority != nil {
		patch.Priority = dom.TaskPriority(*req.Priority)
	}
	if req.Status != nil {
		s.applyStatus(&patch, dom.TaskStatus(*req.Status))
	}
	if req.DueDate != nil {
		patch.DueDate = req.DueDate.Ptr()
		patch.RemindedAt = nil
	}
	if req.AssigneeID != nil {
		if *req.AssigneeID == "" {
			patch.AssigneeID = nil
		} else {
			aid, err := s.resolveAssignee(ctx, patch.ProjectID, *req.AssigneeID)
			if err != nil {
				return dom.Task{}, fmt.Errorf("%s: %w", op, err)
			}
			patch.AssigneeID = &aid
		}
	}

	return s.save(ctx, op, id, existing, patch)
}

// Complete marks the task DONE. Completing a done task is ErrConflict.
func (s *TaskService) Complete(ctx context.Context, id auth.Identity, taskID uuid.UUID) (dom.Task, error) {
	const op = "service.tasks.Complete"

	existing, err := s.tasks.GetVisible(ctx, id.ID, taskID)
	if err != nil {
		return dom.Task{}, fmt.Errorf("%s: %w", op, mapRepoErr(err))
	}
	if existing.Status == dom.StatusDone {
		return dom.Task{}, fmt.Errorf("%s: already completed: %w", op, ErrConflict)
	}
	patch := existing
	s.applyStatus(&patch, dom.StatusDone)
	return s.save(ctx, op, id, existing, patch)
}

// Delete soft-deletes the task. Only its creator or the project owner may delete it.
func (s *TaskService) Delete(ctx context.Context, id auth.Identity, taskID uuid.UUID) error {
	const op = "service.tasks.Delete"

	t, err := s.tasks.GetVisible(ctx, id.ID, taskID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, mapRepoErr(err))
	}
	if t.CreatorID != id.ID {
		if t.ProjectID == nil {
			return fmt.Errorf("%s: %w", op, ErrForbidden)
		}
		role, err := s.projects.MemberRole(ctx, *t.ProjectID, id.ID)
		if err != nil && !errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("%s: %w", op, err)
		}
		if role != dom.RoleOwner {
			return fmt.Errorf("%s: %w", op, ErrForbidden)
		}
	}

	audience := s.audience(ctx, t)
	if err := s.tasks.SoftDelete(ctx, taskID); err != nil {
		return fmt.Errorf("%s: %w", op, mapRepoErr(err))
	}
	s.invalidateCache(ctx, audience...)
	return nil
}

func (s *TaskService) Search(ctx context.Context, id auth.Identity, q string) ([]dom.Task, error) {
	const op = "service.tasks.Search"

	q = strings.TrimSpace(q)
	if s.cache != nil {
		key := "search:" + id.ID.String() + ":" + strings.ToLower(q)
		shared := context.WithoutCancel(ctx)
		v, err, _ := s.sf.Do(key, func() (interface{}, error) {
			if list, err := s.cache.GetSearch(shared, id.ID, q); err == nil && list != nil {
				return list, nil
			}
			list, err := s.tasks.Search(shared, id.ID, q)
			if err != nil {
				return nil, err
			}
			_ = s.cache.SetSearch(shared, id.ID, q, list)
			return list, nil
		})
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return v.([]dom.Task), nil
	}

	list, err := s.tasks.Search(ctx, id.ID, q)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return list, nil
}

func (s *TaskService) Overdue(ctx context.Context, id auth.Identity) ([]dom.Task, error) {
	const op = "service.tasks.Overdue"

	if s.cache != nil {
		key := "overdue:" + id.ID.String()
		shared := context.WithoutCancel(ctx)
		v, err, _ := s.sf.Do(key, func() (interface{}, error) {
			if list, err := s.cache.GetOverdue(shared, id.ID); err == nil && list != nil {
				return list, nil
			}
			list, err := s.tasks.Overdue(shared, id.ID, s.now().UTC())
			if err != nil {
				return nil, err
			}
			_ = s.cache.SetOverdue(shared, id.ID, list)
			return list, nil
		})
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return v.([]dom.Task), nil
	}

	list, err := s.tasks.Overdue(ctx, id.ID, s.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return list, nil
}

func (s *TaskService) save(ctx context.Context, op string, id auth.Identity, before, patch dom.Task) (dom.Task, error) {
	out, err := s.tasks.Update(ctx, patch)
	if err != nil {
		return dom.Task{}, fmt.Errorf("%s: %w", op, mapRepoErr(err))
	}
	affected := s.audience(ctx, out)
	if before.AssigneeID != nil {
		affected = append(affected, *before.AssigneeID)
	}
	s.invalidateCache(ctx, affected...)
	s.notifyChange(ctx, id, before, out)
	return out, nil
}

func (s *TaskService) applyStatus(t *dom.Task, status dom.TaskStatus) {
	if status == dom.StatusDone && t.Status != dom.StatusDone {
		now := s.now().UTC()
		t.CompletedAt = &now
	}
	if status != dom.StatusDone {
		t.CompletedAt = nil
	}
	t.Status = status
}

// resolveAssignee checks that raw names an existing user and, for project
// tasks, a member of that project.
func (s *TaskService) resolveAssignee(ctx context.Context, projectID *uuid.UUID, raw string) (uuid.UUID, error) {
	aid, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fieldError("assigneeId", "must be a valid UUID")
	}
	if _, err := s.users.GetByID(ctx, aid); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return uuid.Nil, fieldError("assigneeId", "user does not exist")
		}
		return uuid.Nil, err
	}
	if projectID != nil {
		if _, err := s.projects.MemberRole(ctx, *projectID, aid); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return uuid.Nil, fieldError("assigneeId", "must be a member of the project")
			}
			return uuid.Nil, err
		}
	}
	return aid, nil
}

// audience lists the users whose task views include t.
func (s *TaskService) audience(ctx context.Context, t dom.Task) []uuid.UUID {
	ids := []uuid.UUID{t.CreatorID}
	if t.AssigneeID != nil {
		ids = append(ids, *t.AssigneeID)
	}
	if t.ProjectID != nil && s.cache != nil {
		members, err := s.projects.Members(ctx, *t.ProjectID)
		if err != nil {
			logctx.From(ctx).Warn("load project members", slog.String("err", err.Error()))
		}
		for _, m := range members {
			ids = append(ids, m.UserID)
		}
	}
	return ids
}

// notifyChange tells the new assignee about an assignment and the other
// watchers about the update or completion. The actor is never notified.
func (s *TaskService) notifyChange(ctx context.Context, id auth.Identity, before, after dom.Task) {
	if s.notifier == nil {
		return
	}
	notified := map[uuid.UUID]bool{id.ID: true}

	assigned := after.AssigneeID != nil && (before.AssigneeID == nil || *before.AssigneeID != *after.AssigneeID)
	if assigned && !notified[*after.AssigneeID] {
		notified[*after.AssigneeID] = true
		s.notify(ctx, dom.Notification{
			UserID: *after.AssigneeID,
			Type:   dom.NotificationTaskAssigned,
			Title:  "Task assigned",
			Body:   fmt.Sprintf("%s assigned you %q", actorName(id), after.Title),
			TaskID: &after.ID,
		})
	}
	if before.ID == uuid.Nil {
		return
	}

	typ, title, verb := dom.NotificationTaskUpdated, "Task updated", "updated"
	if before.Status != dom.StatusDone && after.Status == dom.StatusDone {
		typ, title, verb = dom.NotificationTaskCompleted, "Task completed", "completed"
	}
	for _, uid := range after.Watchers(id.ID) {
		if notified[uid] {
			continue
		}
		notified[uid] = true
		s.notify(ctx, dom.Notification{
			UserID: uid,
			Type:   typ,
			Title:  title,
			Body:   fmt.Sprintf("%s %s %q", actorName(id), verb, after.Title),
			TaskID: &after.ID,
		})
	}
}

func (s *TaskService) notify(ctx context.Context, n dom.Notification) {
	if _, err := s.notifier.Notify(ctx, n); err != nil {
		logctx.From(ctx).Warn("notify",
			slog.String("type", string(n.Type)),
			slog.String("user_id", n.UserID.String()),
			slog.String("err", err.Error()),
		)
	}
}

func (s *TaskService) invalidateCache(ctx context.Context, userIDs ...uuid.UUID) {
	if s.cache != nil {
		_ = s.cache.InvalidateUsers(ctx, userIDs...)
	}
}

func actorName(id auth.Identity) string {
	if id.Name != "" {
		return id.Name
	}
	return "Someone"
}

func fieldError(field, msg string) *validation.Error {
	return &validation.Error{Fields: []validation.FieldError{{Field: field, Message: msg}}}
}
