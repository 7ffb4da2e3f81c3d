package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/iho/freightsettle/internal/domain"
	"github.com/iho/freightsettle/internal/usecase"
)

const getWalletByOwnerForUpdate = `
	SELECT id, owner_id, balance, reserved_balance, created_at, updated_at
	FROM wallets
	WHERE owner_id = $1
	FOR UPDATE
`

const updateWalletReservedBalance = `
	UPDATE wallets
	SET reserved_balance = $2, updated_at = $3
	WHERE id = $1
`

const listNegativeBalanceWallets = `
	SELECT id, owner_id, balance, reserved_balance, created_at, updated_at
	FROM wallets
	WHERE balance < 0
	ORDER BY owner_id
	LIMIT $1
`

// WalletRepository implements usecase.WalletRepository.
type WalletRepository struct {
	db DBTX
}

// NewWalletRepository creates a new WalletRepository.
func NewWalletRepository(pool *pgxpool.Pool) *WalletRepository {
	return &WalletRepository{db: pool}
}

// GetByOwnerForUpdate retrieves a wallet by owner with a FOR UPDATE lock.
func (r *WalletRepository) GetByOwnerForUpdate(ctx context.Context, tx usecase.Transaction, ownerID string) (*domain.Wallet, error) {
	wallet, err := scanWallet(pgxTx(tx).QueryRow(ctx, getWalletByOwnerForUpdate, ownerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrWalletNotFound
		}
		return nil, err
	}

	return wallet, nil
}

// UpdateReservedBalance sets the reserved balance of a wallet.
func (r *WalletRepository) UpdateReservedBalance(ctx context.Context, tx usecase.Transaction, id string, reserved decimal.Decimal, updatedAt time.Time) error {
	tag, err := pgxTx(tx).Exec(ctx, updateWalletReservedBalance, id, decimalToNumeric(reserved), timeToPgTimestamptz(updatedAt))
	if err != nil {
		return fmt.Errorf("update reserved balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrWalletNotFound
	}

	return nil
}

// ListNegativeBalance lists wallets whose available balance is below zero.
func (r *WalletRepository) ListNegativeBalance(ctx context.Context, limit int) ([]*domain.Wallet, error) {
	rows, err := r.db.Query(ctx, listNegativeBalanceWallets, limit)
	if err != nil {
		return nil, fmt.Errorf("query negative wallets: %w", err)
	}
	defer rows.Close()

	var wallets []*domain.Wallet
	for rows.Next() {
		w, err := scanWallet(rows)
		if err != nil {
			return nil, err
		}
		wallets = append(wallets, w)
	}

	return wallets, rows.Err()
}

func scanWallet(row pgx.Row) (*domain.Wallet, error) {
	var (
		w         domain.Wallet
		balance   pgtype.Numeric
		reserved  pgtype.Numeric
		createdAt pgtype.Timestamptz
		updatedAt pgtype.Timestamptz
	)

	if err := row.Scan(&w.ID, &w.OwnerID, &balance, &reserved, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	w.Balance = numericToDecimal(balance)
	w.ReservedBalance = numericToDecimal(reserved)
	w.CreatedAt = createdAt.Time
	w.UpdatedAt = updatedAt.Time

	return &w, nil
}
