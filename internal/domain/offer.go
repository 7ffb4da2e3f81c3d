package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OfferStatus string

const (
	OfferStatusPending  OfferStatus = "pending"
	OfferStatusAccepted OfferStatus = "accepted"
	// OfferStatusRejected is also the terminal state of an expired offer.
	OfferStatusRejected OfferStatus = "rejected"
)

// Offer is a carrier's bid on a shipment.
type Offer struct {
	ID         string
	ShipmentID string
	CarrierID  string
	Price      decimal.NullDecimal
	Status     OfferStatus
	ExpiresAt  *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// IsExpired reports whether the offer is still pending past its expiry.
func (o *Offer) IsExpired(now time.Time) bool {
	return o.Status == OfferStatusPending && o.ExpiresAt != nil && o.ExpiresAt.Before(now)
}

// Commission returns the amount reserved against the carrier's wallet when
// the offer was placed. Offers without a price carry no commission.
func (o *Offer) Commission() decimal.Decimal {
	if !o.Price.Valid {
		return decimal.Zero
	}
	return ReverseCommission(o.Price.Decimal, CommissionRate)
}
