package usecase

import "time"

const (
	// DefaultTransactionTimeout is the maximum duration for a database transaction
	// This prevents long-running transactions from blocking tables
	DefaultTransactionTimeout = 10 * time.Second

	// DefaultScanLimit caps the rows read by one lifecycle check
	DefaultScanLimit = 1000

	// DefaultStaleAfter is how long an accepted shipment may go without an update
	DefaultStaleAfter = 7 * 24 * time.Hour

	// DefaultNoOffersMinAge and DefaultNoOffersMaxAge bound the "no offers" window
	DefaultNoOffersMinAge = 24 * time.Hour
	DefaultNoOffersMaxAge = 48 * time.Hour
)
