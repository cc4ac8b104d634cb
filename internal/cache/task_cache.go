package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	dom "taskflow/internal/domain"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Keys are scoped per user: tasks:<user id>:<kind>[:<suffix>].
const (
	keyPrefix  = "tasks:"
	kindList   = "list:"
	kindSearch = "search:"
	kindOver   = "overdue"
)

// TaskPage is a cached page of a task listing.
type TaskPage struct {
	Items []dom.Task `json:"items"`
	Total int        `json:"total"`
}

// TaskCache caches per-user task list, search, and overdue results in Redis.
type TaskCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewTaskCache returns a new TaskCache.
func NewTaskCache(rdb *redis.Client, ttl time.Duration) *TaskCache {
	return &TaskCache{rdb: rdb, ttl: ttl}
}

func userKey(userID uuid.UUID, rest string) string {
	return keyPrefix + userID.String() + ":" + rest
}

// FilterKey is a stable cache key for f.
func FilterKey(f dom.TaskFilter) string {
	p := f.Page.Normalize()
	var b strings.Builder
	fmt.Fprintf(&b, "p=%d;l=%d;s=%s;pr=%s", p.Number, p.Limit, f.Status, f.Priority)
	if f.ProjectID != nil {
		b.WriteString(";proj=" + f.ProjectID.String())
	}
	if f.AssigneeID != nil {
		b.WriteString(";as=" + f.AssigneeID.String())
	}
	if f.DueBefore != nil {
		b.WriteString(";db=" + f.DueBefore.UTC().Format(time.RFC3339))
	}
	if f.DueAfter != nil {
		b.WriteString(";da=" + f.DueAfter.UTC().Format(time.RFC3339))
	}
	return b.String()
}

// GetList returns the cached page or nil if miss.
func (c *TaskCache) GetList(ctx context.Context, userID uuid.UUID, f dom.TaskFilter) (*TaskPage, error) {
	var page TaskPage
	ok, err := c.get(ctx, userKey(userID, kindList+FilterKey(f)), &page)
	if err != nil || !ok {
		return nil, err
	}
	return &page, nil
}

// SetList stores the page in cache.
func (c *TaskCache) SetList(ctx context.Context, userID uuid.UUID, f dom.TaskFilter, page TaskPage) error {
	return c.set(ctx, userKey(userID, kindList+FilterKey(f)), page)
}

// GetSearch returns cached search result for query q, or nil if miss.
func (c *TaskCache) GetSearch(ctx context.Context, userID uuid.UUID, q string) ([]dom.Task, error) {
	var list []dom.Task
	ok, err := c.get(ctx, userKey(userID, kindSearch+normalizeQuery(q)), &list)
	if err != nil || !ok {
		return nil, err
	}
	return list, nil
}

// SetSearch stores the search result in cache.
func (c *TaskCache) SetSearch(ctx context.Context, userID uuid.UUID, q string, list []dom.Task) error {
	return c.set(ctx, userKey(userID, kindSearch+normalizeQuery(q)), nonNil(list))
}

// GetOverdue returns cached overdue list or nil if miss.
func (c *TaskCache) GetOverdue(ctx context.Context, userID uuid.UUID) ([]dom.Task, error) {
	var list []dom.Task
	ok, err := c.get(ctx, userKey(userID, kindOver), &list)
	if err != nil || !ok {
		return nil, err
	}
	return list, nil
}

// SetOverdue stores the overdue list in cache.
func (c *TaskCache) SetOverdue(ctx context.Context, userID uuid.UUID, list []dom.Task) error {
	return c.set(ctx, userKey(userID, kindOver), nonNil(list))
}

// InvalidateUsers removes every cached entry of the given users (cache invalidation on write).
func (c *TaskCache) InvalidateUsers(ctx context.Context, userIDs ...uuid.UUID) error {
	var errs []error
	for _, id := range userIDs {
		iter := c.rdb.Scan(ctx, 0, keyPrefix+id.String()+":*", 100).Iterator()
		var keys []string
		for iter.Next(ctx) {
			keys = append(keys, iter.Val())
		}
		if err := iter.Err(); err != nil {
			errs = append(errs, err)
			continue
		}
		if len(keys) > 0 {
			if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (c *TaskCache) get(ctx context.Context, key string, dst any) (bool, error) {
	b, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return false, err
	}
	return true, nil
}

func (c *TaskCache) set(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, key, b, c.ttl).Err()
}

func nonNil(list []dom.Task) []dom.Task {
	if list == nil {
		return []dom.Task{}
	}
	return list
}

func normalizeQuery(q string) string {
	return strings.TrimSpace(strings.ToLower(q))
}
