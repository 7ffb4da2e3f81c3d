package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/freightsettle/internal/domain"
)

const notificationExists = `
	SELECT EXISTS (
		SELECT 1 FROM notifications
		WHERE user_id = $1 AND type = $2 AND subject_id = $3 AND dedup_key = $4
	)
`

const createNotification = `
	INSERT INTO notifications (
		id, user_id, type, title, message, data, subject_id, dedup_key, created_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (user_id, type, subject_id, dedup_key) DO NOTHING
`

// NotificationRepository implements usecase.NotificationRepository.
type NotificationRepository struct {
	db        DBTX
	batchSize int
}

// NewNotificationRepository creates a new NotificationRepository.
func NewNotificationRepository(pool *pgxpool.Pool) *NotificationRepository {
	return &NotificationRepository{db: pool, batchSize: defaultDeleteBatchSize}
}

// Exists reports whether a notification with the same dedup tuple exists.
func (r *NotificationRepository) Exists(ctx context.Context, key domain.NotificationKey, dedupKey string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, notificationExists, key.UserID, string(key.Type), key.SubjectID, dedupKey).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check notification: %w", err)
	}

	return exists, nil
}

// Create inserts a notification, returning false when the dedup index
// already holds an identical row.
func (r *NotificationRepository) Create(ctx context.Context, n *domain.Notification) (bool, error) {
	data, err := marshalJSON(n.Data)
	if err != nil {
		return false, fmt.Errorf("marshal notification data: %w", err)
	}

	tag, err := r.db.Exec(ctx, createNotification,
		n.ID,
		n.UserID,
		string(n.Type),
		n.Title,
		n.Message,
		data,
		n.SubjectID,
		n.DedupKey,
		timeToPgTimestamptz(n.CreatedAt),
	)
	if err != nil {
		return false, fmt.Errorf("insert notification: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

// notificationsPurgeable keeps once-scoped rows, which are the only record
// that a one-time notification was already sent.
const notificationsPurgeable = "dedup_key <> '" + domain.DedupKeyOnce + "'"

// DeleteOlderThan removes day-scoped notifications created before the given time.
func (r *NotificationRepository) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	return deleteInBatches(ctx, r.db, "notifications", notificationsPurgeable, before, r.batchSize)
}
