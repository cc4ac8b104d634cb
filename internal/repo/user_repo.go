package repo

import (
	"context"
	"errors"
	"fmt"

	dom "taskflow/internal/domain"
	"taskflow/internal/utils"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UserRepo provides user persistence.
type UserRepo interface {
	Create(ctx context.Context, u dom.User) (dom.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (dom.User, error)
	GetByEmail(ctx context.Context, email string) (dom.User, error)
	Update(ctx context.Context, u dom.User) (dom.User, error)
}

// PGUserRepo implements UserRepo with Postgres.
type PGUserRepo struct {
	db *pgxpool.Pool
}

// NewPGUserRepo returns a new PGUserRepo.
func NewPGUserRepo(db *pgxpool.Pool) *PGUserRepo {
	return &PGUserRepo{db: db}
}

const userColumns = `id, email, name, password_hash, created_at, updated_at`

func scanUser(row pgx.Row) (dom.User, error) {
	var u dom.User
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// Create inserts a new user. ErrAlreadyExists if the email is taken.
func (r *PGUserRepo) Create(ctx context.Context, u dom.User) (dom.User, error) {
	const op = "repo.users.Create"

	query := `
		INSERT INTO users (id, email, name, password_hash)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + userColumns
	out, err := scanUser(r.db.QueryRow(ctx, query, u.ID, u.Email, u.Name, u.PasswordHash))
	if err != nil {
		if utils.IsPGUniqueViolation(err) {
			return dom.User{}, fmt.Errorf("%s: %w", op, ErrAlreadyExists)
		}
		return dom.User{}, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

// GetByID returns the user by id.
func (r *PGUserRepo) GetByID(ctx context.Context, id uuid.UUID) (dom.User, error) {
	const op = "repo.users.GetByID"

	u, err := scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		return dom.User{}, wrapNotFound(op, err)
	}
	return u, nil
}

// GetByEmail returns the user by normalised email.
func (r *PGUserRepo) GetByEmail(ctx context.Context, email string) (dom.User, error) {
	const op = "repo.users.GetByEmail"

	u, err := scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
	if err != nil {
		return dom.User{}, wrapNotFound(op, err)
	}
	return u, nil
}

// Update writes name and email. ErrAlreadyExists if the new email is taken.
func (r *PGUserRepo) Update(ctx context.Context, u dom.User) (dom.User, error) {
	const op = "repo.users.Update"

	query := `
		UPDATE users SET email = $2, name = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + userColumns
	out, err := scanUser(r.db.QueryRow(ctx, query, u.ID, u.Email, u.Name))
	if err != nil {
		if utils.IsPGUniqueViolation(err) {
			return dom.User{}, fmt.Errorf("%s: %w", op, ErrAlreadyExists)
		}
		return dom.User{}, wrapNotFound(op, err)
	}
	return out, nil
}

func wrapNotFound(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}
