package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iho/freightsettle/internal/infrastructure/metrics"
)

// RetentionPolicy holds the retention windows in days. Zero keeps rows forever.
type RetentionPolicy struct {
	MessageDays      int
	NotificationDays int
	AuditLogDays     int
}

// RetentionResult counts the rows deleted per table.
type RetentionResult struct {
	Messages      int64
	Notifications int64
	AuditLogs     int64
}

type RetentionUseCase struct {
	messageRepo      MessageRepository
	notificationRepo NotificationRepository
	auditRepo        AuditRepository
	clock            Clock
	log              EventLogger
	metrics          *metrics.Metrics
	policy           RetentionPolicy
}

func NewRetentionUseCase(
	messageRepo MessageRepository,
	notificationRepo NotificationRepository,
	auditRepo AuditRepository,
	clock Clock,
	log EventLogger,
	metrics *metrics.Metrics,
	policy RetentionPolicy,
) *RetentionUseCase {
	return &RetentionUseCase{
		messageRepo:      messageRepo,
		notificationRepo: notificationRepo,
		auditRepo:        auditRepo,
		clock:            clock,
		log:              log,
		metrics:          metrics,
		policy:           policy,
	}
}

// Run deletes rows older than their retention window. Each table is purged
// independently; errors are collected and returned together.
func (uc *RetentionUseCase) Run(ctx context.Context) (*RetentionResult, error) {
	now := uc.clock.Now()
	result := &RetentionResult{}

	targets := []struct {
		table string
		days  int
		purge func(context.Context, time.Time) (int64, error)
		count *int64
	}{
		{"messages", uc.policy.MessageDays, uc.messageRepo.DeleteOlderThan, &result.Messages},
		{"notifications", uc.policy.NotificationDays, uc.notificationRepo.DeleteOlderThan, &result.Notifications},
		{"audit_logs", uc.policy.AuditLogDays, uc.auditRepo.DeleteOlderThan, &result.AuditLogs},
	}

	var errs []error
	for _, t := range targets {
		if t.days <= 0 {
			continue
		}

		before := now.AddDate(0, 0, -t.days)
		n, err := t.purge(ctx, before)
		if err != nil {
			uc.log.LogDatabaseError(ctx, err, "retention."+t.table)
			errs = append(errs, fmt.Errorf("purge %s: %w", t.table, err))
			continue
		}

		*t.count = n
		if uc.metrics != nil {
			uc.metrics.RowsPurged.WithLabelValues(t.table).Add(float64(n))
		}
		if n > 0 {
			uc.log.LogInfo(ctx, "retention cleanup", "table", t.table, "deleted", n, "older_than", before)
		}
	}

	return result, errors.Join(errs...)
}
