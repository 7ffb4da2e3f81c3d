package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/freightsettle/internal/domain"
	"github.com/iho/freightsettle/internal/usecase"
)

const listExpiredPendingOffersForUpdate = `
	SELECT id, shipment_id, carrier_id, price, status, expires_at, created_at, updated_at
	FROM offers
	WHERE status = 'pending' AND expires_at IS NOT NULL AND expires_at < $1
	ORDER BY carrier_id, id
	LIMIT $2
	FOR UPDATE
`

const markOffersExpired = `
	UPDATE offers
	SET status = 'rejected', updated_at = $2
	WHERE id = ANY($1::text[]) AND status = 'pending'
`

// OfferRepository implements usecase.OfferRepository.
type OfferRepository struct {
	db DBTX
}

// NewOfferRepository creates a new OfferRepository.
func NewOfferRepository(pool *pgxpool.Pool) *OfferRepository {
	return &OfferRepository{db: pool}
}

// ListExpiredPendingForUpdate locks pending offers past expiry, ordered by
// carrier so concurrent settlements lock wallets in the same order.
// A non-positive limit locks the whole due set.
func (r *OfferRepository) ListExpiredPendingForUpdate(ctx context.Context, tx usecase.Transaction, now time.Time, limit int) ([]*domain.Offer, error) {
	rows, err := pgxTx(tx).Query(ctx, listExpiredPendingOffersForUpdate, now, limitOrAll(limit))
	if err != nil {
		return nil, fmt.Errorf("query expired offers: %w", err)
	}
	defer rows.Close()

	var offers []*domain.Offer
	for rows.Next() {
		offer, err := scanOffer(rows)
		if err != nil {
			return nil, err
		}
		offers = append(offers, offer)
	}

	return offers, rows.Err()
}

// MarkExpired moves the given pending offers to rejected.
func (r *OfferRepository) MarkExpired(ctx context.Context, tx usecase.Transaction, ids []string, updatedAt time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	tag, err := pgxTx(tx).Exec(ctx, markOffersExpired, ids, updatedAt)
	if err != nil {
		return 0, fmt.Errorf("mark offers expired: %w", err)
	}

	return tag.RowsAffected(), nil
}

func scanOffer(row pgx.Row) (*domain.Offer, error) {
	var (
		o         domain.Offer
		status    string
		price     pgtype.Numeric
		expiresAt pgtype.Timestamptz
		createdAt pgtype.Timestamptz
		updatedAt pgtype.Timestamptz
	)

	if err := row.Scan(&o.ID, &o.ShipmentID, &o.CarrierID, &price, &status, &expiresAt, &createdAt, &updatedAt); err != nil {
		return nil, fmt.Errorf("scan offer: %w", err)
	}

	o.Status = domain.OfferStatus(status)
	o.Price = numericToNullDecimal(price)
	o.ExpiresAt = pgTimestamptzToPtr(expiresAt)
	o.CreatedAt = createdAt.Time
	o.UpdatedAt = updatedAt.Time

	return &o, nil
}
