package userinfra

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/protomil/core/pkg/errx"
	"github.com/protomil/core/pkg/iam/user"
	"github.com/protomil/core/pkg/kernel"
)

// PostgresUserStore is the Postgres implementation of user.Store and
// user.RoleStore.
type PostgresUserStore struct {
	db *sqlx.DB
}

func NewPostgresUserStore(db *sqlx.DB) *PostgresUserStore {
	return &PostgresUserStore{db: db}
}

func (r *PostgresUserStore) FindByID(ctx context.Context, id kernel.UserID) (*user.User, error) {
	query := `
		SELECT id, idp_sub, email, first_name, last_name, department, status,
		       last_login_at, created_at, updated_at
		FROM users
		WHERE id = $1`

	var u user.User
	if err := r.db.GetContext(ctx, &u, query, id.String()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, user.ErrNotFound().WithDetail("user_id", id.String())
		}
		return nil, errx.Wrap(err, "failed to load user by id", errx.TypeInternal)
	}
	return &u, nil
}

func (r *PostgresUserStore) FindByEmail(ctx context.Context, email string) (*user.User, error) {
	query := `
		SELECT id, idp_sub, email, first_name, last_name, department, status,
		       last_login_at, created_at, updated_at
		FROM users
		WHERE lower(email) = lower($1)`

	var u user.User
	if err := r.db.GetContext(ctx, &u, query, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, user.ErrNotFound().WithDetail("email", email)
		}
		return nil, errx.Wrap(err, "failed to load user by email", errx.TypeInternal)
	}
	return &u, nil
}

func (r *PostgresUserStore) UpdateStatus(ctx context.Context, id kernel.UserID, status user.AccountStatus) error {
	query := `UPDATE users SET status = $1, updated_at = now() WHERE id = $2`

	result, err := r.db.ExecContext(ctx, query, status.String(), id.String())
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23514" { // check_violation
			return user.ErrConflict().WithDetail("status", status.String())
		}
		return errx.Wrap(err, "failed to update user status", errx.TypeInternal).
			WithDetail("user_id", id.String())
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return errx.Wrap(err, "failed to get rows affected on status update", errx.TypeInternal)
	}
	if affected == 0 {
		return user.ErrNotFound().WithDetail("user_id", id.String())
	}
	return nil
}

func (r *PostgresUserStore) RecordLogin(ctx context.Context, id kernel.UserID) error {
	query := `UPDATE users SET last_login_at = now(), updated_at = now() WHERE id = $1`

	if _, err := r.db.ExecContext(ctx, query, id.String()); err != nil {
		return errx.Wrap(err, "failed to record last login", errx.TypeInternal).
			WithDetail("user_id", id.String())
	}
	return nil
}

func (r *PostgresUserStore) ListByStatus(ctx context.Context, status user.AccountStatus, opts user.ListOptions) ([]*user.User, error) {
	query := `
		SELECT id, idp_sub, email, first_name, last_name, department, status,
		       last_login_at, created_at, updated_at
		FROM users
		WHERE status = $1
		ORDER BY created_at
		LIMIT $2 OFFSET $3`

	users := []*user.User{}
	if err := r.db.SelectContext(ctx, &users, query, status.String(), limit(opts), offset(opts)); err != nil {
		return nil, errx.Wrap(err, "failed to list users by status", errx.TypeInternal).
			WithDetail("status", status.String())
	}
	return users, nil
}

func (r *PostgresUserStore) ListAll(ctx context.Context, opts user.ListOptions) ([]*user.User, error) {
	query := `
		SELECT id, idp_sub, email, first_name, last_name, department, status,
		       last_login_at, created_at, updated_at
		FROM users
		ORDER BY created_at
		LIMIT $1 OFFSET $2`

	users := []*user.User{}
	if err := r.db.SelectContext(ctx, &users, query, limit(opts), offset(opts)); err != nil {
		return nil, errx.Wrap(err, "failed to list users", errx.TypeInternal)
	}
	return users, nil
}

// RoleNames returns the active role names granted to the user, ordered by name.
func (r *PostgresUserStore) RoleNames(ctx context.Context, id kernel.UserID) ([]string, error) {
	query := `
		SELECT ro.name
		FROM roles ro
		JOIN user_roles ur ON ur.role_id = ro.id
		WHERE ur.user_id = $1 AND ur.active
		ORDER BY ro.name`

	names := []string{}
	if err := r.db.SelectContext(ctx, &names, query, id.String()); err != nil {
		return nil, errx.Wrap(err, "failed to load role names", errx.TypeInternal).
			WithDetail("user_id", id.String())
	}
	return names, nil
}

func limit(opts user.ListOptions) int {
	if opts.PageSize <= 0 {
		return 50
	}
	return opts.PageSize
}

func offset(opts user.ListOptions) int {
	page := opts.Page
	if page < 1 {
		page = 1
	}
	return (page - 1) * limit(opts)
}
