package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/blog-auth-service/internal/model"
)

// UserRepo reads and writes the lightweight identity profiles. Profiles
// carry no credential: they exist so each subject has a stable id to
// bind sessions to.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// Upsert returns the profile for an email, creating the row on first
// login. ON DUPLICATE KEY UPDATE with LAST_INSERT_ID(id) makes the
// insert idempotent and returns the existing id on the duplicate path,
// so concurrent first logins for the same email converge on one row.
func (r *UserRepo) Upsert(ctx context.Context, email, role string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (email, role) VALUES (?,?) ON DUPLICATE KEY UPDATE id = LAST_INSERT_ID(id)",
		email, role)
	if err != nil {
		return model.User{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.User{}, err
	}
	return r.GetByID(ctx, uint64(id))
}

// GetByID fetches a profile by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	var u model.User
	err := r.DB.QueryRowContext(ctx,
		"SELECT id, email, role, created_at FROM users WHERE id = ? LIMIT 1",
		id).Scan(&u.ID, &u.Email, &u.Role, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, ErrUserNotFound
		}
		return model.User{}, err
	}
	return u, nil
}

// DeleteByID removes a profile row. Session rows are left behind as an
// audit trail; the caller revokes them first.
func (r *UserRepo) DeleteByID(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM users WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUserNotFound
	}
	return nil
}
