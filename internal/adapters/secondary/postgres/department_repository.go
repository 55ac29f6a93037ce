package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/extectick/appeals-backend/internal/core/domain"
	"github.com/extectick/appeals-backend/internal/core/ports"
)

// DepartmentRepository handles database operations for departments.
type DepartmentRepository struct {
	pool *pgxpool.Pool
}

var _ ports.DepartmentRepository = (*DepartmentRepository)(nil)

// NewDepartmentRepository creates a new repository for department lookups.
func NewDepartmentRepository(pool *pgxpool.Pool) *DepartmentRepository {
	return &DepartmentRepository{pool: pool}
}

// GetByID fetches one department.
func (r *DepartmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Department, error) {
	db := GetDBTX(ctx, r.pool)

	var d domain.Department
	err := db.QueryRow(ctx, `SELECT id, name FROM departments WHERE id = $1`, id).Scan(&d.ID, &d.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ports.ErrDepartmentNotFound
		}
		return nil, err
	}
	return &d, nil
}

// List fetches all departments ordered by name.
func (r *DepartmentRepository) List(ctx context.Context) ([]*domain.Department, error) {
	db := GetDBTX(ctx, r.pool)

	rows, err := db.Query(ctx, `SELECT id, name FROM departments ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var departments []*domain.Department
	for rows.Next() {
		var d domain.Department
		if err := rows.Scan(&d.ID, &d.Name); err != nil {
			return nil, err
		}
		departments = append(departments, &d)
	}

	return departments, rows.Err()
}
