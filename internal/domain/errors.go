package domain

import "errors"

var (
	// Wallet errors
	ErrWalletNotFound = errors.New("wallet not found")

	// Shipment errors
	ErrShipmentNotChanged = errors.New("shipment status changed concurrently")

	// Scheduler errors
	ErrJobNotFound       = errors.New("job not found")
	ErrSchedulerRunning  = errors.New("scheduler is running")
	ErrJobAlreadyRunning = errors.New("job is already running")
)
