package repo

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	dom "taskflow/internal/domain"
	"taskflow/internal/utils"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type TaskRepo interface {
	Create(ctx context.Context, t dom.Task) (dom.Task, error)
	GetVisible(ctx context.Context, userID, id uuid.UUID) (dom.Task, error)
	List(ctx context.Context, userID uuid.UUID, f dom.TaskFilter) ([]dom.Task, int, error)
	Search(ctx context.Context, userID uuid.UUID, q string) ([]dom.Task, error)
	Overdue(ctx context.Context, userID uuid.UUID, now time.Time) ([]dom.Task, error)
	Update(ctx context.Context, t dom.Task) (dom.Task, error)
	SoftDelete(ctx context.Context, id uuid.UUID) error
	DueForReminder(ctx context.Context, now, until time.Time, limit int) ([]dom.Task, error)
	MarkReminded(ctx context.Context, id uuid.UUID, at time.Time) error
}

type PGTaskRepo struct {
	db *pgxpool.Pool
}

func NewPGTaskRepo(db *pgxpool.Pool) *PGTaskRepo {
	return &PGTaskRepo{db: db}
}

const taskColumns = `t.id, t.title, t.description, t.status, t.priority, t.due_date, t.project_id,
	t.creator_id, t.assignee_id, t.completed_at, t.reminded_at, t.created_at, t.updated_at, t.deleted_at`

// visibleTo limits rows to tasks the user created, is assigned to, or can see
// through project membership. $1 must be the user id.
const visibleTo = `(t.creator_id = $1 OR t.assignee_id = $1 OR EXISTS (
	SELECT 1 FROM project_members pm WHERE pm.project_id = t.project_id AND pm.user_id = $1))`

const searchLimit = 100

func scanTask(row pgx.Row) (dom.Task, error) {
	var t dom.Task
	err := row.Scan(&t.ID, &t.Title, &t.Description, &t.Status, &t.Priority, &t.DueDate, &t.ProjectID,
		&t.CreatorID, &t.AssigneeID, &t.CompletedAt, &t.RemindedAt, &t.CreatedAt, &t.UpdatedAt, &t.DeletedAt)
	return t, err
}

func collectTasks(rows pgx.Rows) ([]dom.Task, error) {
	defer rows.Close()
	list := []dom.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, t)
	}
	return list, rows.Err()
}

func (r *PGTaskRepo) Create(ctx context.Context, t dom.Task) (dom.Task, error) {
	const op = "repo.tasks.Create"

	query := `
		INSERT INTO tasks AS t (id, title, description, status, priority, due_date, project_id, creator_id, assignee_id, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING ` + taskColumns
	out, err := scanTask(r.db.QueryRow(ctx, query,
		t.ID, t.Title, t.Description, t.Status, t.Priority, t.DueDate, t.ProjectID, t.CreatorID, t.AssigneeID, t.CompletedAt,
	))
	if err != nil {
		if utils.IsPGForeignKeyViolation(err) {
			return dom.Task{}, fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		return dom.Task{}, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

// GetVisible returns a live task only if userID may see it.
func (r *PGTaskRepo) GetVisible(ctx context.Context, userID, id uuid.UUID) (dom.Task, error) {
	const op = "repo.tasks.GetVisible"

	query := `SELECT ` + taskColumns + ` FROM tasks t
		WHERE t.id = $2 AND t.deleted_at IS NULL AND ` + visibleTo
	t, err := scanTask(r.db.QueryRow(ctx, query, userID, id))
	if err != nil {
		return dom.Task{}, wrapNotFound(op, err)
	}
	return t, nil
}

// List returns one page of visible tasks and the total number of matches.
func (r *PGTaskRepo) List(ctx context.Context, userID uuid.UUID, f dom.TaskFilter) ([]dom.Task, int, error) {
	const op = "repo.tasks.List"

	where, args := taskFilterWhere(userID, f)

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM tasks t WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("%s: count: %w", op, err)
	}

	page := f.Page.Normalize()
	args = append(args, page.Limit, page.Offset())
	query := `SELECT ` + taskColumns + ` FROM tasks t WHERE ` + where +
		` ORDER BY t.created_at DESC, t.id DESC LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}
	list, err := collectTasks(rows)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}
	return list, total, nil
}

// taskFilterWhere builds the WHERE clause for List. The first arg is always userID.
func taskFilterWhere(userID uuid.UUID, f dom.TaskFilter) (string, []any) {
	conds := []string{"t.deleted_at IS NULL", visibleTo}
	args := []any{userID}
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, strings.ReplaceAll(cond, "?", "$"+strconv.Itoa(len(args))))
	}
	if f.Status != "" {
		add("t.status = ?", f.Status)
	}
	if f.Priority != "" {
		add("t.priority = ?", f.Priority)
	}
	if f.ProjectID != nil {
		add("t.project_id = ?", *f.ProjectID)
	}
	if f.AssigneeID != nil {
		add("t.assignee_id = ?", *f.AssigneeID)
	}
	if f.DueBefore != nil {
		add("t.due_date <= ?", *f.DueBefore)
	}
	if f.DueAfter != nil {
		add("t.due_date >= ?", *f.DueAfter)
	}
	return strings.Join(conds, " AND "), args
}

func (r *PGTaskRepo) Search(ctx context.Context, userID uuid.UUID, q string) ([]dom.Task, error) {
	const op = "repo.tasks.Search"

	pattern := "%" + escapeLike(q) + "%"
	query := `SELECT ` + taskColumns + ` FROM tasks t
		WHERE t.deleted_at IS NULL AND ` + visibleTo + `
		AND (t.title ILIKE $2 OR t.description ILIKE $2)
		ORDER BY t.created_at DESC LIMIT $3`
	rows, err := r.db.Query(ctx, query, userID, pattern, searchLimit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	list, err := collectTasks(rows)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return list, nil
}

func (r *PGTaskRepo) Overdue(ctx context.Context, userID uuid.UUID, now time.Time) ([]dom.Task, error) {
	const op = "repo.tasks.Overdue"

	query := `SELECT ` + taskColumns + ` FROM tasks t
		WHERE t.deleted_at IS NULL AND ` + visibleTo + `
		AND t.status <> 'DONE' AND t.due_date IS NOT NULL AND t.due_date < $2
		ORDER BY t.due_date ASC`
	rows, err := r.db.Query(ctx, query, userID, now)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	list, err := collectTasks(rows)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return list, nil
}

// Update writes every mutable field of t. The caller loads, patches and passes the whole row.
func (r *PGTaskRepo) Update(ctx context.Context, t dom.Task) (dom.Task, error) {
	const op = "repo.tasks.Update"

	query := `
		UPDATE tasks AS t SET title = $2, description = $3, status = $4, priority = $5, due_date = $6,
			assignee_id = $7, completed_at = $8, reminded_at = $9, updated_at = NOW()
		WHERE t.id = $1 AND t.deleted_at IS NULL
		RETURNING ` + taskColumns
	out, err := scanTask(r.db.QueryRow(ctx, query,
		t.ID, t.Title, t.Description, t.Status, t.Priority, t.DueDate, t.AssigneeID, t.CompletedAt, t.RemindedAt,
	))
	if err != nil {
		if utils.IsPGForeignKeyViolation(err) {
			return dom.Task{}, fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		return dom.Task{}, wrapNotFound(op, err)
	}
	return out, nil
}

func (r *PGTaskRepo) SoftDelete(ctx context.Context, id uuid.UUID) error {
	const op = "repo.tasks.SoftDelete"

	now := time.Now().UTC()
	tag, err := r.db.Exec(ctx, `UPDATE tasks SET deleted_at = $2, updated_at = $2 WHERE id = $1 AND deleted_at IS NULL`, id, now)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return nil
}

// DueForReminder returns open tasks due in [now, until] that were never reminded.
func (r *PGTaskRepo) DueForReminder(ctx context.Context, now, until time.Time, limit int) ([]dom.Task, error) {
	const op = "repo.tasks.DueForReminder"

	query := `SELECT ` + taskColumns + ` FROM tasks t
		WHERE t.deleted_at IS NULL AND t.status <> 'DONE' AND t.reminded_at IS NULL
		AND t.due_date IS NOT NULL AND t.due_date >= $1 AND t.due_date <= $2
		ORDER BY t.due_date ASC LIMIT $3`
	rows, err := r.db.Query(ctx, query, now, until, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	list, err := collectTasks(rows)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return list, nil
}

func (r *PGTaskRepo) MarkReminded(ctx context.Context, id uuid.UUID, at time.Time) error {
	const op = "repo.tasks.MarkReminded"

	if _, err := r.db.Exec(ctx, `UPDATE tasks SET reminded_at = $2 WHERE id = $1`, id, at); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
