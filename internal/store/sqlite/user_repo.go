package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"maternacare/internal/domain"
)

type UserRepo struct {
	db *sql.DB
}

func NewUserRepo(db *sql.DB) *UserRepo {
	return &UserRepo{db: db}
}

var _ domain.UserRepository = (*UserRepo)(nil)

const userColumns = `id, name, email, role, profile_picture, contact, push_token, is_active, is_deleted, is_verified, created_at`

func (r *UserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	u := &domain.User{}
	err := r.db.QueryRowContext(ctx, `
		SELECT `+userColumns+` FROM users WHERE id = ?
	`, id).Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.Role,
		&u.ProfilePicture,
		&u.Contact,
		&u.PushToken,
		&u.IsActive,
		&u.IsDeleted,
		&u.IsVerified,
		&u.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (r *UserRepo) ListByIDs(ctx context.Context, ids []string) ([]*domain.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimRight(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+userColumns+` FROM users WHERE id IN (`+placeholders+`) ORDER BY name ASC
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var res []*domain.User
	for rows.Next() {
		u := &domain.User{}
		if err := rows.Scan(
			&u.ID,
			&u.Name,
			&u.Email,
			&u.Role,
			&u.ProfilePicture,
			&u.Contact,
			&u.PushToken,
			&u.IsActive,
			&u.IsDeleted,
			&u.IsVerified,
			&u.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		res = append(res, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return res, nil
}

// CheckAccount verifies account state: exists, active, not deleted, verified.
func (r *UserRepo) CheckAccount(ctx context.Context, id string) error {
	u, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if u == nil {
		return fmt.Errorf("%w: user not found", domain.ErrNotFound)
	}
	if !u.IsActive {
		return fmt.Errorf("%w: account is blocked", domain.ErrInvalidInput)
	}
	if u.IsDeleted {
		return fmt.Errorf("%w: account is deleted", domain.ErrInvalidInput)
	}
	if !u.IsVerified {
		return fmt.Errorf("%w: account is not verified", domain.ErrInvalidInput)
	}
	return nil
}
