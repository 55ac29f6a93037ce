package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/extectick/appeals-backend/internal/core/domain"
	"github.com/extectick/appeals-backend/internal/core/ports"
)

// MessageRepository handles database operations for appeal messages.
type MessageRepository struct {
	pool *pgxpool.Pool
}

var _ ports.MessageRepository = (*MessageRepository)(nil)

// NewMessageRepository creates a new repository for message persistence.
func NewMessageRepository(pool *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{pool: pool}
}

// Create persists a new message.
func (r *MessageRepository) Create(ctx context.Context, message *domain.Message) (*domain.Message, error) {
	db := GetDBTX(ctx, r.pool)

	query := `
		INSERT INTO appeal_messages (id, appeal_id, sender_id, content, file_url, file_size, file_type, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := db.Exec(ctx, query,
		message.ID,
		message.AppealID,
		message.SenderID,
		message.Content,
		message.FileURL,
		message.FileSize,
		message.FileType,
		message.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}

	return message, nil
}

// ListByAppealID fetches the message thread of an appeal, oldest first.
func (r *MessageRepository) ListByAppealID(ctx context.Context, appealID uuid.UUID) ([]*domain.Message, error) {
	db := GetDBTX(ctx, r.pool)

	query := `
		SELECT id, appeal_id, sender_id, content, file_url, file_size, file_type, created_at
		FROM appeal_messages
		WHERE appeal_id = $1
		ORDER BY created_at ASC
	`

	rows, err := db.Query(ctx, query, appealID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []*domain.Message
	for rows.Next() {
		var m domain.Message
		err := rows.Scan(
			&m.ID,
			&m.AppealID,
			&m.SenderID,
			&m.Content,
			&m.FileURL,
			&m.FileSize,
			&m.FileType,
			&m.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		messages = append(messages, &m)
	}

	return messages, rows.Err()
}
