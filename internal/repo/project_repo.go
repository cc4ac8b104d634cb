package repo

import (
	"context"
	"fmt"

	dom "taskflow/internal/domain"
	"taskflow/internal/utils"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ProjectRepo interface {
	Create(ctx context.Context, p dom.Project) (dom.Project, error)
	GetByID(ctx context.Context, id uuid.UUID) (dom.Project, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]dom.Project, error)
	Members(ctx context.Context, projectID uuid.UUID) ([]dom.ProjectMember, error)
	MemberRole(ctx context.Context, projectID, userID uuid.UUID) (dom.ProjectRole, error)
	AddMember(ctx context.Context, projectID, userID uuid.UUID, role dom.ProjectRole) error
	RemoveMember(ctx context.Context, projectID, userID uuid.UUID) error
}

type PGProjectRepo struct {
	db *pgxpool.Pool
}

func NewPGProjectRepo(db *pgxpool.Pool) *PGProjectRepo {
	return &PGProjectRepo{db: db}
}

const projectColumns = `p.id, p.name, p.description, p.owner_id, p.created_at, p.updated_at`

func scanProject(row pgx.Row) (dom.Project, error) {
	var p dom.Project
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.OwnerID, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

// Create inserts the project and its owner membership in one transaction.
func (r *PGProjectRepo) Create(ctx context.Context, p dom.Project) (dom.Project, error) {
	const op = "repo.projects.Create"

	var out dom.Project
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		var err error
		out, err = scanProject(tx.QueryRow(ctx, `
			INSERT INTO projects AS p (id, name, description, owner_id)
			VALUES ($1, $2, $3, $4)
			RETURNING `+projectColumns, p.ID, p.Name, p.Description, p.OwnerID))
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO project_members (project_id, user_id, role) VALUES ($1, $2, $3)`,
			out.ID, out.OwnerID, dom.RoleOwner)
		return err
	})
	if err != nil {
		return dom.Project{}, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

func (r *PGProjectRepo) GetByID(ctx context.Context, id uuid.UUID) (dom.Project, error) {
	const op = "repo.projects.GetByID"

	p, err := scanProject(r.db.QueryRow(ctx, `SELECT `+projectColumns+` FROM projects p WHERE p.id = $1`, id))
	if err != nil {
		return dom.Project{}, wrapNotFound(op, err)
	}
	return p, nil
}

// ListForUser returns the projects userID is a member of, newest first.
func (r *PGProjectRepo) ListForUser(ctx context.Context, userID uuid.UUID) ([]dom.Project, error) {
	const op = "repo.projects.ListForUser"

	rows, err := r.db.Query(ctx, `
		SELECT `+projectColumns+` FROM projects p
		JOIN project_members pm ON pm.project_id = p.id
		WHERE pm.user_id = $1
		ORDER BY p.created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	list := []dom.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		list = append(list, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return list, nil
}

func (r *PGProjectRepo) Members(ctx context.Context, projectID uuid.UUID) ([]dom.ProjectMember, error) {
	const op = "repo.projects.Members"

	rows, err := r.db.Query(ctx, `
		SELECT pm.project_id, pm.user_id, u.email, u.name, pm.role, pm.joined_at
		FROM project_members pm
		JOIN users u ON u.id = pm.user_id
		WHERE pm.project_id = $1
		ORDER BY pm.joined_at ASC`, projectID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	list := []dom.ProjectMember{}
	for rows.Next() {
		var m dom.ProjectMember
		if err := rows.Scan(&m.ProjectID, &m.UserID, &m.Email, &m.Name, &m.Role, &m.JoinedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		list = append(list, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return list, nil
}

// MemberRole returns ErrNotFound when userID is not a member.
func (r *PGProjectRepo) MemberRole(ctx context.Context, projectID, userID uuid.UUID) (dom.ProjectRole, error) {
	const op = "repo.projects.MemberRole"

	var role dom.ProjectRole
	err := r.db.QueryRow(ctx,
		`SELECT role FROM project_members WHERE project_id = $1 AND user_id = $2`,
		projectID, userID,
	).Scan(&role)
	if err != nil {
		return "", wrapNotFound(op, err)
	}
	return role, nil
}

// AddMember returns ErrAlreadyExists for an existing member.
func (r *PGProjectRepo) AddMember(ctx context.Context, projectID, userID uuid.UUID, role dom.ProjectRole) error {
	const op = "repo.projects.AddMember"

	_, err := r.db.Exec(ctx,
		`INSERT INTO project_members (project_id, user_id, role) VALUES ($1, $2, $3)`,
		projectID, userID, role)
	if err != nil {
		if utils.IsPGUniqueViolation(err) {
			return fmt.Errorf("%s: %w", op, ErrAlreadyExists)
		}
		if utils.IsPGForeignKeyViolation(err) {
			return fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (r *PGProjectRepo) RemoveMember(ctx context.Context, projectID, userID uuid.UUID) error {
	const op = "repo.projects.RemoveMember"

	tag, err := r.db.Exec(ctx,
		`DELETE FROM project_members WHERE project_id = $1 AND user_id = $2`, projectID, userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return nil
}
