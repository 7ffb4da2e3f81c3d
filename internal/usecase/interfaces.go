package usecase

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/freightsettle/internal/domain"
)

// OfferRepository defines data access for offers.
type OfferRepository interface {
	// ListExpiredPendingForUpdate locks pending offers whose expiry is before now.
	ListExpiredPendingForUpdate(ctx context.Context, tx Transaction, now time.Time, limit int) ([]*domain.Offer, error)
	// MarkExpired moves the given offers to the rejected state in one statement.
	MarkExpired(ctx context.Context, tx Transaction, ids []string, updatedAt time.Time) (int64, error)
}

// WalletRepository defines data access for wallets.
type WalletRepository interface {
	GetByOwnerForUpdate(ctx context.Context, tx Transaction, ownerID string) (*domain.Wallet, error)
	UpdateReservedBalance(ctx context.Context, tx Transaction, id string, reserved decimal.Decimal, updatedAt time.Time) error
	ListNegativeBalance(ctx context.Context, limit int) ([]*domain.Wallet, error)
}

// LedgerEntryRepository defines data access for ledger entries.
type LedgerEntryRepository interface {
	Create(ctx context.Context, tx Transaction, entry *domain.LedgerEntry) error
}

// ShipmentRepository defines data access for shipments.
type ShipmentRepository interface {
	ListStale(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Shipment, error)
	ListOverduePickup(ctx context.Context, now time.Time, limit int) ([]*domain.Shipment, error)
	ListOverdueDelivery(ctx context.Context, now time.Time, limit int) ([]*domain.Shipment, error)
	ListOpenWithoutOffers(ctx context.Context, createdFrom, createdTo time.Time, limit int) ([]*domain.Shipment, error)
	ListOpenWithAllOffersRejected(ctx context.Context, limit int) ([]*domain.Shipment, error)
	// CancelStale cancels the shipment only if it is still active and untouched
	// since cutoff. Returns domain.ErrShipmentNotChanged otherwise.
	CancelStale(ctx context.Context, tx Transaction, id string, cutoff, updatedAt time.Time) error
}

// NotificationRepository defines data access for notifications.
type NotificationRepository interface {
	Exists(ctx context.Context, key domain.NotificationKey, dedupKey string) (bool, error)
	// Create inserts the notification and reports false if an identical
	// (user, type, subject, dedup key) row already exists.
	Create(ctx context.Context, n *domain.Notification) (bool, error)
	// DeleteOlderThan purges day-scoped notifications; once-scoped rows are
	// kept so a one-time notification is never sent twice.
	DeleteOlderThan(ctx context.Context, before time.Time) (int64, error)
}

// MessageRepository defines data access for shipment chat messages.
type MessageRepository interface {
	DeleteOlderThan(ctx context.Context, before time.Time) (int64, error)
}

// AuditRepository defines data access for audit logs.
type AuditRepository interface {
	CreateTx(ctx context.Context, tx Transaction, log *domain.AuditLog) error
	DeleteOlderThan(ctx context.Context, before time.Time) (int64, error)
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TransactionManager handles transaction lifecycle.
type TransactionManager interface {
	Begin(ctx context.Context) (Transaction, error)
}

// IDGenerator generates unique IDs.
type IDGenerator interface {
	Generate() string
}

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// Retrier re-runs an operation on transient database failures.
type Retrier interface {
	Retry(ctx context.Context, operation func() error) error
}

// EventLogger receives database failures and routine job events.
type EventLogger interface {
	LogDatabaseError(ctx context.Context, err error, tag string)
	LogInfo(ctx context.Context, msg string, args ...any)
}
