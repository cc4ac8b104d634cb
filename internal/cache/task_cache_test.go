package cache

import (
	"context"
	"testing"
	"time"

	dom "taskflow/internal/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newCache(t *testing.T) (*TaskCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewTaskCache(rdb, time.Minute), mr
}

func TestTaskCache_ListRoundTripAndMiss(t *testing.T) {
	t.Parallel()

	c, mr := newCache(t)
	ctx := context.Background()
	uid := uuid.New()
	f := dom.TaskFilter{Status: dom.StatusTodo, Page: dom.Page{Number: 1, Limit: 10}}

	got, err := c.GetList(ctx, uid, f)
	require.NoError(t, err)
	require.Nil(t, got)

	page := TaskPage{Items: []dom.Task{{ID: uuid.New(), Title: "a", Status: dom.StatusTodo}}, Total: 1}
	require.NoError(t, c.SetList(ctx, uid, f, page))

	got, err = c.GetList(ctx, uid, f)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, 1, got.Total)
	require.Equal(t, "a", got.Items[0].Title)

	other := f
	other.Status = dom.StatusDone
	got, err = c.GetList(ctx, uid, other)
	require.NoError(t, err)
	require.Nil(t, got)

	mr.FastForward(2 * time.Minute)
	got, err = c.GetList(ctx, uid, f)
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestTaskCache_SearchNormalisesQuery(t *testing.T) {
	t.Parallel()

	c, _ := newCache(t)
	ctx := context.Background()
	uid := uuid.New()

	require.NoError(t, c.SetSearch(ctx, uid, "  Docs ", nil))
	got, err := c.GetSearch(ctx, uid, "docs")
	require.NoError(t, err)
	require.NotNil(t, got, "an empty result is still a hit")
	require.Empty(t, got)
}

func TestTaskCache_InvalidateUsersIsScoped(t *testing.T) {
	t.Parallel()

	c, _ := newCache(t)
	ctx := context.Background()
	a, b := uuid.New(), uuid.New()
	list := []dom.Task{{ID: uuid.New()}}

	require.NoError(t, c.SetOverdue(ctx, a, list))
	require.NoError(t, c.SetSearch(ctx, a, "x", list))
	require.NoError(t, c.SetOverdue(ctx, b, list))

	require.NoError(t, c.InvalidateUsers(ctx, a))

	got, err := c.GetOverdue(ctx, a)
	require.NoError(t, err)
	require.Nil(t, got)
	got, err = c.GetSearch(ctx, a, "x")
	require.NoError(t, err)
	require.Nil(t, got)

	got, err = c.GetOverdue(ctx, b)
	require.NoError(t, err)
	require.Len(t, got, 1)
}

func TestTaskCache_RedisDown(t *testing.T) {
	t.Parallel()

	c, mr := newCache(t)
	mr.Close()

	_, err := c.GetOverdue(context.Background(), uuid.New())
	require.Error(t, err)
}

func TestFilterKey_Stable(t *testing.T) {
	t.Parallel()

	pid := uuid.New()
	f := dom.TaskFilter{ProjectID: &pid}
	require.Equal(t, FilterKey(f), FilterKey(dom.TaskFilter{ProjectID: &pid, Page: dom.Page{Number: 1, Limit: 20}}))
	require.NotEqual(t, FilterKey(f), FilterKey(dom.TaskFilter{}))
}
