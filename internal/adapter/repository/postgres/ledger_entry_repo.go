package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/freightsettle/internal/domain"
	"github.com/iho/freightsettle/internal/usecase"
)

const createLedgerEntry = `
	INSERT INTO ledger_entries (
		id, owner_id, type, amount, status, description,
		reference_type, reference_id, created_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
`

// LedgerEntryRepository implements usecase.LedgerEntryRepository.
type LedgerEntryRepository struct {
	db DBTX
}

// NewLedgerEntryRepository creates a new LedgerEntryRepository.
func NewLedgerEntryRepository(pool *pgxpool.Pool) *LedgerEntryRepository {
	return &LedgerEntryRepository{db: pool}
}

// Create appends a ledger entry within a transaction.
func (r *LedgerEntryRepository) Create(ctx context.Context, tx usecase.Transaction, entry *domain.LedgerEntry) error {
	_, err := pgxTx(tx).Exec(ctx, createLedgerEntry,
		entry.ID,
		entry.OwnerID,
		string(entry.Type),
		decimalToNumeric(entry.Amount),
		string(entry.Status),
		entry.Description,
		entry.ReferenceType,
		entry.ReferenceID,
		timeToPgTimestamptz(entry.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert ledger entry: %w", err)
	}

	return nil
}
