package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/extectick/appeals-backend/internal/core/domain"
	apperrors "github.com/extectick/appeals-backend/internal/core/errors"
	"github.com/extectick/appeals-backend/internal/core/ports"
)

// uniqueViolation is the postgres error code for unique constraint breaches.
const uniqueViolation = "23505"

// UserRepository handles database operations for users.
type UserRepository struct {
	pool *pgxpool.Pool
}

var _ ports.UserRepository = (*UserRepository)(nil)

// NewUserRepository creates a new repository for user persistence.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// Create persists a new user. A duplicate telegram id maps to the
// user-exists domain error.
func (r *UserRepository) Create(ctx context.Context, user *domain.User) (*domain.User, error) {
	db := GetDBTX(ctx, r.pool)

	query := `
		INSERT INTO users (id, telegram_id, full_name, role, department_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := db.Exec(ctx, query,
		user.ID,
		user.TelegramID,
		user.FullName,
		user.Role,
		user.DepartmentID,
		user.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, apperrors.ErrUserExists
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}

	return user, nil
}

// GetByID fetches a user by primary key.
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return r.getBy(ctx, `WHERE id = $1`, id)
}

// GetByTelegramID fetches a user by telegram identity.
func (r *UserRepository) GetByTelegramID(ctx context.Context, telegramID int64) (*domain.User, error) {
	return r.getBy(ctx, `WHERE telegram_id = $1`, telegramID)
}

// UpdateRole changes a user's role.
func (r *UserRepository) UpdateRole(ctx context.Context, id uuid.UUID, role domain.Role) error {
	db := GetDBTX(ctx, r.pool)

	tag, err := db.Exec(ctx, `UPDATE users SET role = $2 WHERE id = $1`, id, role)
	if err != nil {
		return fmt.Errorf("update user role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ports.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) getBy(ctx context.Context, where string, arg interface{}) (*domain.User, error) {
	db := GetDBTX(ctx, r.pool)

	query := `SELECT id, telegram_id, full_name, role, department_id, created_at FROM users ` + where

	var u domain.User
	err := db.QueryRow(ctx, query, arg).Scan(
		&u.ID,
		&u.TelegramID,
		&u.FullName,
		&u.Role,
		&u.DepartmentID,
		&u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ports.ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}
