package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/extectick/appeals-backend/internal/core/domain"
	"github.com/extectick/appeals-backend/internal/core/ports"
)

// AppealRepository handles database operations for appeals.
type AppealRepository struct {
	pool *pgxpool.Pool
	txm  *TransactionManager
}

var _ ports.AppealRepository = (*AppealRepository)(nil)

// NewAppealRepository creates a new repository for appeal persistence.
func NewAppealRepository(pool *pgxpool.Pool, txm *TransactionManager) *AppealRepository {
	return &AppealRepository{pool: pool, txm: txm}
}

const appealColumns = `id, number, subject, description, status, department_id, creator_id, executor_id, created_at, updated_at`

// Create persists a new appeal together with its assigned executor rows.
// The sequential number comes from the database.
func (r *AppealRepository) Create(ctx context.Context, appeal *domain.Appeal) (*domain.Appeal, error) {
	created := *appeal

	err := r.txm.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		query := `
			INSERT INTO appeals (id, subject, description, status, department_id, creator_id, executor_id, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING number
		`
		err := tx.QueryRow(ctx, query,
			appeal.ID,
			appeal.Subject,
			appeal.Description,
			appeal.Status,
			appeal.DepartmentID,
			appeal.CreatorID,
			appeal.ExecutorID,
			appeal.CreatedAt,
		).Scan(&created.Number)
		if err != nil {
			return fmt.Errorf("insert appeal: %w", err)
		}

		return replaceExecutors(ctx, tx, appeal.ID, appeal.AssignedExecutorIDs)
	})
	if err != nil {
		return nil, err
	}

	return &created, nil
}

// GetByID fetches an appeal with its assigned executors.
func (r *AppealRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Appeal, error) {
	db := GetDBTX(ctx, r.pool)

	query := `SELECT ` + appealColumns + ` FROM appeals WHERE id = $1`

	appeal, err := scanAppeal(db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ports.ErrAppealNotFound
		}
		return nil, err
	}

	executors, err := loadExecutors(ctx, db, []uuid.UUID{id})
	if err != nil {
		return nil, err
	}
	appeal.AssignedExecutorIDs = executors[id]

	return appeal, nil
}

// Update persists the mutable fields of an appeal and resyncs its
// executor rows.
func (r *AppealRepository) Update(ctx context.Context, appeal *domain.Appeal) (*domain.Appeal, error) {
	err := r.txm.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		query := `
			UPDATE appeals
			SET subject = $2, description = $3, status = $4, executor_id = $5, updated_at = $6
			WHERE id = $1
		`
		tag, err := tx.Exec(ctx, query,
			appeal.ID,
			appeal.Subject,
			appeal.Description,
			appeal.Status,
			appeal.ExecutorID,
			appeal.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("update appeal: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ports.ErrAppealNotFound
		}

		return replaceExecutors(ctx, tx, appeal.ID, appeal.AssignedExecutorIDs)
	})
	if err != nil {
		return nil, err
	}

	return appeal, nil
}

// Delete removes an appeal. Messages and executor rows go with it via
// ON DELETE CASCADE.
func (r *AppealRepository) Delete(ctx context.Context, id uuid.UUID) error {
	db := GetDBTX(ctx, r.pool)

	tag, err := db.Exec(ctx, `DELETE FROM appeals WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete appeal: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ports.ErrAppealNotFound
	}
	return nil
}

// List fetches appeals matching the filter, most recent first.
func (r *AppealRepository) List(ctx context.Context, filter ports.ListAppealsFilter) ([]*domain.Appeal, error) {
	db := GetDBTX(ctx, r.pool)

	var conds []string
	var args []interface{}

	if filter.CreatorID != uuid.Nil {
		args = append(args, filter.CreatorID)
		conds = append(conds, fmt.Sprintf("creator_id = $%d", len(args)))
	}
	if filter.DepartmentID != uuid.Nil {
		args = append(args, filter.DepartmentID)
		conds = append(conds, fmt.Sprintf("department_id = $%d", len(args)))
	}
	if filter.ExecutorID != uuid.Nil {
		args = append(args, filter.ExecutorID)
		n := len(args)
		conds = append(conds, fmt.Sprintf(
			"(executor_id = $%d OR EXISTS (SELECT 1 FROM appeal_executors ae WHERE ae.appeal_id = appeals.id AND ae.executor_id = $%d))", n, n))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.OpenOnly {
		open := domain.OpenStatuses()
		statuses := make([]string, len(open))
		for i, s := range open {
			statuses[i] = string(s)
		}
		args = append(args, statuses)
		conds = append(conds, fmt.Sprintf("status = ANY($%d)", len(args)))
	}

	query := `SELECT ` + appealColumns + ` FROM appeals`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC"

	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var appeals []*domain.Appeal
	var ids []uuid.UUID
	for rows.Next() {
		appeal, err := scanAppeal(rows)
		if err != nil {
			return nil, err
		}
		appeals = append(appeals, appeal)
		ids = append(ids, appeal.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(ids) > 0 {
		executors, err := loadExecutors(ctx, db, ids)
		if err != nil {
			return nil, err
		}
		for _, appeal := range appeals {
			appeal.AssignedExecutorIDs = executors[appeal.ID]
		}
	}

	return appeals, nil
}

// scanAppeal reads one appeal row without executor rows.
func scanAppeal(row pgx.Row) (*domain.Appeal, error) {
	var a domain.Appeal
	err := row.Scan(
		&a.ID,
		&a.Number,
		&a.Subject,
		&a.Description,
		&a.Status,
		&a.DepartmentID,
		&a.CreatorID,
		&a.ExecutorID,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// loadExecutors fetches assigned executor ids for a set of appeals.
func loadExecutors(ctx context.Context, db DBTX, appealIDs []uuid.UUID) (map[uuid.UUID][]uuid.UUID, error) {
	query := `SELECT appeal_id, executor_id FROM appeal_executors WHERE appeal_id = ANY($1)`

	rows, err := db.Query(ctx, query, appealIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	executors := make(map[uuid.UUID][]uuid.UUID)
	for rows.Next() {
		var appealID, executorID uuid.UUID
		if err := rows.Scan(&appealID, &executorID); err != nil {
			return nil, err
		}
		executors[appealID] = append(executors[appealID], executorID)
	}
	return executors, rows.Err()
}

// replaceExecutors resyncs the executor join rows for one appeal.
func replaceExecutors(ctx context.Context, tx pgx.Tx, appealID uuid.UUID, executorIDs []uuid.UUID) error {
	if _, err := tx.Exec(ctx, `DELETE FROM appeal_executors WHERE appeal_id = $1`, appealID); err != nil {
		return fmt.Errorf("clear appeal executors: %w", err)
	}
	for _, executorID := range executorIDs {
		_, err := tx.Exec(ctx,
			`INSERT INTO appeal_executors (appeal_id, executor_id) VALUES ($1, $2)`,
			appealID, executorID,
		)
		if err != nil {
			return fmt.Errorf("insert appeal executor: %w", err)
		}
	}
	return nil
}
