package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/freightsettle/internal/domain"
	"github.com/iho/freightsettle/internal/usecase"
)

const createAuditLog = `
	INSERT INTO audit_logs (
		id, action, entity_type, entity_id, actor,
		before_state, after_state, created_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
`

// AuditRepository implements audit log persistence
type AuditRepository struct {
	db        DBTX
	batchSize int
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(pool *pgxpool.Pool) *AuditRepository {
	return &AuditRepository{db: pool, batchSize: defaultDeleteBatchSize}
}

// CreateTx inserts an audit log entry within a transaction
func (r *AuditRepository) CreateTx(ctx context.Context, tx usecase.Transaction, log *domain.AuditLog) error {
	beforeState, err := marshalJSON(log.BeforeState)
	if err != nil {
		return err
	}

	afterState, err := marshalJSON(log.AfterState)
	if err != nil {
		return err
	}

	_, err = pgxTx(tx).Exec(ctx, createAuditLog,
		log.ID,
		string(log.Action),
		log.EntityType,
		log.EntityID,
		log.Actor,
		beforeState,
		afterState,
		timeToPgTimestamptz(log.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}

	return nil
}

// DeleteOlderThan removes audit logs created before the given time.
func (r *AuditRepository) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	return deleteInBatches(ctx, r.db, "audit_logs", "", before, r.batchSize)
}
