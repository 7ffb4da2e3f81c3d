package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CommissionRate is the share of an offer price held against the carrier's wallet.
var CommissionRate = decimal.NewFromFloat(0.01)

// Wallet holds a marketplace participant's funds.
type Wallet struct {
	ID              string
	OwnerID         string
	Balance         decimal.Decimal
	ReservedBalance decimal.Decimal
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ReverseCommission computes the commission to hand back for an offer price.
func ReverseCommission(price, rate decimal.Decimal) decimal.Decimal {
	return price.Mul(rate).Round(2)
}

// ApplyReservedRelease returns the reserved balance after releasing amount.
// The result is floored at zero: a reservation that was already drained
// elsewhere is not an error.
func ApplyReservedRelease(reserved, amount decimal.Decimal) decimal.Decimal {
	next := reserved.Sub(amount)
	if next.IsNegative() {
		return decimal.Zero
	}
	return next
}

// ReleaseReserved decrements the reserved balance by amount, never below zero.
func (w *Wallet) ReleaseReserved(amount decimal.Decimal) {
	w.ReservedBalance = ApplyReservedRelease(w.ReservedBalance, amount)
}

// HasNegativeBalance reports whether the wallet is overdrawn.
func (w *Wallet) HasNegativeBalance() bool {
	return w.Balance.IsNegative()
}
