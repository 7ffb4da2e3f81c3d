package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// MessageRepository implements usecase.MessageRepository.
type MessageRepository struct {
	db        DBTX
	batchSize int
}

// NewMessageRepository creates a new MessageRepository.
func NewMessageRepository(pool *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{db: pool, batchSize: defaultDeleteBatchSize}
}

// DeleteOlderThan removes shipment messages created before the given time.
func (r *MessageRepository) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	return deleteInBatches(ctx, r.db, "messages", "", before, r.batchSize)
}
