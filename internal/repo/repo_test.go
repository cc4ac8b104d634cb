package repo

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	dom "taskflow/internal/domain"
	"taskflow/migrations"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestTaskFilterWhere(t *testing.T) {
	t.Parallel()

	uid, pid := uuid.New(), uuid.New()
	before := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)

	where, args := taskFilterWhere(uid, dom.TaskFilter{})
	require.Len(t, args, 1)
	require.True(t, strings.HasPrefix(where, "t.deleted_at IS NULL AND "))

	where, args = taskFilterWhere(uid, dom.TaskFilter{
		Status:    dom.StatusDone,
		ProjectID: &pid,
		DueBefore: &before,
	})
	require.Equal(t, []any{uid, dom.StatusDone, pid, before}, args)
	require.Contains(t, where, "t.status = $2")
	require.Contains(t, where, "t.project_id = $3")
	require.Contains(t, where, "t.due_date <= $4")
}

func TestEscapeLike(t *testing.T) {
	t.Parallel()

	require.Equal(t, `50\% off\_now\\`, escapeLike(`50% off_now\`))
}

// Интеграционные тесты: поднимают PostgreSQL через testcontainers-go и
// применяют миграции goose из пакета migrations.
//
// Запуск локально:
//   GO_TEST_INTEGRATION=1 go test ./internal/repo -v -count=1

func startPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if os.Getenv("GO_TEST_INTEGRATION") == "" {
		t.Skip("integration tests are disabled (set GO_TEST_INTEGRATION=1)")
	}

	ctx := context.Background()
	req := tc.ContainerRequest{
		Image:        "postgres:16-alpine",
		Env:          map[string]string{"POSTGRES_USER": "user", "POSTGRES_PASSWORD": "pass", "POSTGRES_DB": "db"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	c, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Terminate(context.Background()) })

	host, _ := c.Host(ctx)
	port, _ := c.MappedPort(ctx, "5432/tcp")
	dsn := fmt.Sprintf("postgres://user:pass@%s:%s/db?sslmode=disable", host, port.Port())

	var pool *pgxpool.Pool
	require.Eventually(t, func() bool {
		pool, err = pgxpool.New(ctx, dsn)
		if err != nil {
			return false
		}
		if pool.Ping(ctx) != nil {
			pool.Close()
			return false
		}
		return true
	}, 30*time.Second, 500*time.Millisecond)
	t.Cleanup(pool.Close)

	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()
	goose.SetBaseFS(migrations.FS)
	require.NoError(t, goose.SetDialect("postgres"))
	require.NoError(t, goose.Up(db, "."))

	return pool
}

func mustUser(t *testing.T, users *PGUserRepo, email string) dom.User {
	t.Helper()
	u, err := users.Create(context.Background(), dom.User{ID: uuid.New(), Email: email, Name: "N", PasswordHash: "h"})
	require.NoError(t, err)
	return u
}

func TestIntegration_Repositories(t *testing.T) {
	pool := startPostgres(t)
	ctx := context.Background()

	users := NewPGUserRepo(pool)
	tasks := NewPGTaskRepo(pool)
	projects := NewPGProjectRepo(pool)
	notes := NewPGNotificationRepo(pool)

	t.Run("users", func(t *testing.T) {
		u := mustUser(t, users, "ann@example.com")

		_, err := users.Create(ctx, dom.User{ID: uuid.New(), Email: "ann@example.com", Name: "dup", PasswordHash: "h"})
		require.ErrorIs(t, err, ErrAlreadyExists)

		got, err := users.GetByEmail(ctx, "ann@example.com")
		require.NoError(t, err)
		require.Equal(t, u.ID, got.ID)

		_, err = users.GetByID(ctx, uuid.New())
		require.ErrorIs(t, err, ErrNotFound)

		other := mustUser(t, users, "bob@example.com")
		other.Email = "ann@example.com"
		_, err = users.Update(ctx, other)
		require.ErrorIs(t, err, ErrAlreadyExists)
	})

	t.Run("tasks visibility and filters", func(t *testing.T) {
		owner := mustUser(t, users, "owner@example.com")
		member := mustUser(t, users, "member@example.com")
		stranger := mustUser(t, users, "stranger@example.com")

		p, err := projects.Create(ctx, dom.Project{ID: uuid.New(), Name: "P", OwnerID: owner.ID})
		require.NoError(t, err)
		role, err := projects.MemberRole(ctx, p.ID, owner.ID)
		require.NoError(t, err)
		require.Equal(t, dom.RoleOwner, role)

		require.NoError(t, projects.AddMember(ctx, p.ID, member.ID, dom.RoleMember))
		require.ErrorIs(t, projects.AddMember(ctx, p.ID, member.ID, dom.RoleMember), ErrAlreadyExists)

		due := time.Now().UTC().Add(2 * time.Hour).Truncate(time.Second)
		task, err := tasks.Create(ctx, dom.Task{
			ID: uuid.New(), Title: "Ship release", Status: dom.StatusTodo, Priority: dom.PriorityHigh,
			DueDate: &due, ProjectID: &p.ID, CreatorID: owner.ID,
		})
		require.NoError(t, err)

		_, err = tasks.GetVisible(ctx, member.ID, task.ID)
		require.NoError(t, err)
		_, err = tasks.GetVisible(ctx, stranger.ID, task.ID)
		require.ErrorIs(t, err, ErrNotFound)

		list, total, err := tasks.List(ctx, member.ID, dom.TaskFilter{Priority: dom.PriorityHigh, Page: dom.Page{Number: 1, Limit: 10}})
		require.NoError(t, err)
		require.Equal(t, 1, total)
		require.Len(t, list, 1)

		found, err := tasks.Search(ctx, owner.ID, "release")
		require.NoError(t, err)
		require.Len(t, found, 1)

		reminders, err := tasks.DueForReminder(ctx, time.Now().UTC(), time.Now().UTC().Add(24*time.Hour), 10)
		require.NoError(t, err)
		require.Len(t, reminders, 1)
		require.NoError(t, tasks.MarkReminded(ctx, task.ID, time.Now().UTC()))
		reminders, err = tasks.DueForReminder(ctx, time.Now().UTC(), time.Now().UTC().Add(24*time.Hour), 10)
		require.NoError(t, err)
		require.Empty(t, reminders)

		task.Status = dom.StatusDone
		updated, err := tasks.Update(ctx, task)
		require.NoError(t, err)
		require.Equal(t, dom.StatusDone, updated.Status)

		require.NoError(t, projects.RemoveMember(ctx, p.ID, member.ID))
		_, err = tasks.GetVisible(ctx, member.ID, task.ID)
		require.ErrorIs(t, err, ErrNotFound)

		require.NoError(t, tasks.SoftDelete(ctx, task.ID))
		require.ErrorIs(t, tasks.SoftDelete(ctx, task.ID), ErrNotFound)
	})

	t.Run("notifications", func(t *testing.T) {
		u := mustUser(t, users, "notes@example.com")
		for i := 0; i < 3; i++ {
			_, err := notes.Create(ctx, dom.Notification{ID: uuid.New(), UserID: u.ID, Type: dom.NotificationTaskDue, Title: "t"})
			require.NoError(t, err)
		}

		list, total, err := notes.List(ctx, u.ID, true, dom.Page{Number: 1, Limit: 2})
		require.NoError(t, err)
		require.Equal(t, 3, total)
		require.Len(t, list, 2)

		_, err = notes.MarkRead(ctx, u.ID, list[0].ID)
		require.NoError(t, err)
		_, err = notes.MarkRead(ctx, uuid.New(), list[1].ID)
		require.ErrorIs(t, err, ErrNotFound)

		n, err := notes.UnreadCount(ctx, u.ID)
		require.NoError(t, err)
		require.Equal(t, 2, n)

		changed, err := notes.MarkAllRead(ctx, u.ID)
		require.NoError(t, err)
		require.Equal(t, int64(2), changed)
	})
}
