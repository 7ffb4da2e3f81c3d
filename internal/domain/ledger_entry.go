package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type LedgerEntryType string

const (
	LedgerEntryTypeCommissionRelease LedgerEntryType = "commission_release"
)

type LedgerEntryStatus string

const (
	LedgerEntryStatusCompleted LedgerEntryStatus = "completed"
)

const ReferenceTypeOffer = "offer"

// LedgerEntry is an append-only wallet movement record.
type LedgerEntry struct {
	ID            string
	OwnerID       string
	Type          LedgerEntryType
	Amount        decimal.Decimal
	Status        LedgerEntryStatus
	Description   string
	ReferenceType string
	ReferenceID   string
	CreatedAt     time.Time
}

// NewCommissionReleaseEntry builds the entry recording the release of an
// expired offer's commission hold. The caller assigns the ID.
func NewCommissionReleaseEntry(offer *Offer, amount decimal.Decimal, now time.Time) *LedgerEntry {
	return &LedgerEntry{
		OwnerID:       offer.CarrierID,
		Type:          LedgerEntryTypeCommissionRelease,
		Amount:        amount,
		Status:        LedgerEntryStatusCompleted,
		Description:   fmt.Sprintf("Commission hold released for expired offer %s on shipment %s", offer.ID, offer.ShipmentID),
		ReferenceType: ReferenceTypeOffer,
		ReferenceID:   offer.ID,
		CreatedAt:     now,
	}
}
