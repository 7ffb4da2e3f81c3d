package usecase

import (
	"context"
	"errors"
	"fmt"
)

// Scheduled job names.
const (
	JobHourly = "hourly"
	JobDaily  = "daily"
)

// HourlyTick settles expired offers and then runs the lifecycle monitor.
// The monitor runs even when settlement failed.
func HourlyTick(settlement *SettlementUseCase, monitor *LifecycleUseCase) func(context.Context) error {
	return func(ctx context.Context) error {
		var errs []error

		if _, err := settlement.ExpireOffers(ctx); err != nil {
			errs = append(errs, fmt.Errorf("settlement: %w", err))
		}

		if _, err := monitor.Run(ctx); err != nil {
			errs = append(errs, fmt.Errorf("lifecycle monitor: %w", err))
		}

		return errors.Join(errs...)
	}
}

// DailyTick purges rows past their retention window.
func DailyTick(retention *RetentionUseCase) func(context.Context) error {
	return func(ctx context.Context) error {
		if _, err := retention.Run(ctx); err != nil {
			return fmt.Errorf("retention: %w", err)
		}
		return nil
	}
}
