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

const shipmentColumns = `s.id, s.owner_id, s.carrier_id, s.driver_id, s.status, s.pickup_date, s.delivery_date, s.created_at, s.updated_at`

const listStaleShipments = `
	SELECT ` + shipmentColumns + `
	FROM shipments s
	WHERE s.status = ANY($1::text[]) AND s.updated_at <= $2
	ORDER BY s.updated_at, s.id
	LIMIT $3
`

const listOverduePickupShipments = `
	SELECT ` + shipmentColumns + `
	FROM shipments s
	WHERE s.status = ANY($1::text[]) AND s.pickup_date IS NOT NULL AND s.pickup_date < $2
	ORDER BY s.pickup_date, s.id
	LIMIT $3
`

const listOverdueDeliveryShipments = `
	SELECT ` + shipmentColumns + `
	FROM shipments s
	WHERE s.status = ANY($1::text[]) AND s.delivery_date IS NOT NULL AND s.delivery_date < $2
	ORDER BY s.delivery_date, s.id
	LIMIT $3
`

const listOpenShipmentsWithoutOffers = `
	SELECT ` + shipmentColumns + `
	FROM shipments s
	WHERE s.status = 'open'
	  AND s.created_at >= $1 AND s.created_at <= $2
	  AND NOT EXISTS (SELECT 1 FROM offers o WHERE o.shipment_id = s.id)
	ORDER BY s.created_at, s.id
	LIMIT $3
`

const listOpenShipmentsWithAllOffersRejected = `
	SELECT ` + shipmentColumns + `
	FROM shipments s
	WHERE s.status = 'open'
	  AND EXISTS (SELECT 1 FROM offers o WHERE o.shipment_id = s.id)
	  AND NOT EXISTS (SELECT 1 FROM offers o WHERE o.shipment_id = s.id AND o.status <> 'rejected')
	ORDER BY s.created_at, s.id
	LIMIT $1
`

const cancelStaleShipment = `
	UPDATE shipments
	SET status = 'cancelled', updated_at = $3
	WHERE id = $1 AND status = ANY($4::text[]) AND updated_at <= $2
`

// ShipmentRepository implements usecase.ShipmentRepository.
type ShipmentRepository struct {
	db DBTX
}

// NewShipmentRepository creates a new ShipmentRepository.
func NewShipmentRepository(pool *pgxpool.Pool) *ShipmentRepository {
	return &ShipmentRepository{db: pool}
}

// ListStale lists active shipments last updated at or before cutoff.
func (r *ShipmentRepository) ListStale(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Shipment, error) {
	return r.list(ctx, listStaleShipments, shipmentStatuses(domain.ActiveStatuses), cutoff, limit)
}

// ListOverduePickup lists shipments awaiting pickup past their pickup date.
func (r *ShipmentRepository) ListOverduePickup(ctx context.Context, now time.Time, limit int) ([]*domain.Shipment, error) {
	return r.list(ctx, listOverduePickupShipments, shipmentStatuses(domain.AwaitingPickupStatuses), now, limit)
}

// ListOverdueDelivery lists active shipments past their delivery date.
func (r *ShipmentRepository) ListOverdueDelivery(ctx context.Context, now time.Time, limit int) ([]*domain.Shipment, error) {
	return r.list(ctx, listOverdueDeliveryShipments, shipmentStatuses(domain.ActiveStatuses), now, limit)
}

// ListOpenWithoutOffers lists open shipments created inside the inclusive
// window that have no offers at all.
func (r *ShipmentRepository) ListOpenWithoutOffers(ctx context.Context, createdFrom, createdTo time.Time, limit int) ([]*domain.Shipment, error) {
	return r.list(ctx, listOpenShipmentsWithoutOffers, createdFrom, createdTo, limit)
}

// ListOpenWithAllOffersRejected lists open shipments whose every offer was rejected.
func (r *ShipmentRepository) ListOpenWithAllOffersRejected(ctx context.Context, limit int) ([]*domain.Shipment, error) {
	return r.list(ctx, listOpenShipmentsWithAllOffersRejected, limit)
}

// CancelStale cancels a shipment that is still active and untouched since at least cutoff.
func (r *ShipmentRepository) CancelStale(ctx context.Context, tx usecase.Transaction, id string, cutoff, updatedAt time.Time) error {
	tag, err := pgxTx(tx).Exec(ctx, cancelStaleShipment, id, cutoff, updatedAt, shipmentStatuses(domain.ActiveStatuses))
	if err != nil {
		return fmt.Errorf("cancel shipment %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrShipmentNotChanged
	}

	return nil
}

func (r *ShipmentRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Shipment, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query shipments: %w", err)
	}
	defer rows.Close()

	var shipments []*domain.Shipment
	for rows.Next() {
		s, err := scanShipment(rows)
		if err != nil {
			return nil, err
		}
		shipments = append(shipments, s)
	}

	return shipments, rows.Err()
}

func scanShipment(row pgx.Row) (*domain.Shipment, error) {
	var (
		s            domain.Shipment
		status       string
		carrierID    pgtype.Text
		driverID     pgtype.Text
		pickupDate   pgtype.Timestamptz
		deliveryDate pgtype.Timestamptz
		createdAt    pgtype.Timestamptz
		updatedAt    pgtype.Timestamptz
	)

	if err := row.Scan(&s.ID, &s.OwnerID, &carrierID, &driverID, &status, &pickupDate, &deliveryDate, &createdAt, &updatedAt); err != nil {
		return nil, fmt.Errorf("scan shipment: %w", err)
	}

	s.Status = domain.ShipmentStatus(status)
	s.CarrierID = textToString(carrierID)
	s.DriverID = textToString(driverID)
	s.PickupDate = pgTimestamptzToPtr(pickupDate)
	s.DeliveryDate = pgTimestamptzToPtr(deliveryDate)
	s.CreatedAt = createdAt.Time
	s.UpdatedAt = updatedAt.Time

	return &s, nil
}
