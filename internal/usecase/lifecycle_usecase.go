package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iho/freightsettle/internal/domain"
	"github.com/iho/freightsettle/internal/infrastructure/metrics"
)

// Lifecycle check names, used in logs, metrics and MonitorReport.
const (
	CheckStaleAcceptance   = "stale_acceptance"
	CheckOverduePickup     = "overdue_pickup"
	CheckOverdueDelivery   = "overdue_delivery"
	CheckNoOffers          = "no_offers"
	CheckAllOffersRejected = "all_offers_rejected"
	CheckNegativeBalance   = "negative_balance"
)

// LifecycleConfig tunes the lifecycle monitor thresholds.
type LifecycleConfig struct {
	StaleAfter     time.Duration
	NoOffersMinAge time.Duration
	NoOffersMaxAge time.Duration
	ScanLimit      int
}

func (c LifecycleConfig) withDefaults() LifecycleConfig {
	if c.StaleAfter <= 0 {
		c.StaleAfter = DefaultStaleAfter
	}
	if c.NoOffersMinAge <= 0 {
		c.NoOffersMinAge = DefaultNoOffersMinAge
	}
	if c.NoOffersMaxAge <= 0 {
		c.NoOffersMaxAge = DefaultNoOffersMaxAge
	}
	if c.ScanLimit <= 0 {
		c.ScanLimit = DefaultScanLimit
	}
	return c
}

// MonitorReport summarizes one lifecycle monitor run.
type MonitorReport struct {
	Cancelled    int
	Notified     map[domain.NotificationType]int
	FailedChecks []string
}

type LifecycleUseCase struct {
	txManager    TransactionManager
	shipmentRepo ShipmentRepository
	walletRepo   WalletRepository
	auditRepo    AuditRepository
	gate         *NotificationGate
	idGen        IDGenerator
	clock        Clock
	log          EventLogger
	metrics      *metrics.Metrics
	cfg          LifecycleConfig
}

func NewLifecycleUseCase(
	txManager TransactionManager,
	shipmentRepo ShipmentRepository,
	walletRepo WalletRepository,
	auditRepo AuditRepository,
	gate *NotificationGate,
	idGen IDGenerator,
	clock Clock,
	log EventLogger,
	metrics *metrics.Metrics,
	cfg LifecycleConfig,
) *LifecycleUseCase {
	return &LifecycleUseCase{
		txManager:    txManager,
		shipmentRepo: shipmentRepo,
		walletRepo:   walletRepo,
		auditRepo:    auditRepo,
		gate:         gate,
		idGen:        idGen,
		clock:        clock,
		log:          log,
		metrics:      metrics,
		cfg:          cfg.withDefaults(),
	}
}

// Run executes every lifecycle check. A failing check is logged and
// reported but does not stop the remaining checks.
func (uc *LifecycleUseCase) Run(ctx context.Context) (*MonitorReport, error) {
	report := &MonitorReport{Notified: make(map[domain.NotificationType]int)}
	now := uc.clock.Now()

	// Stale acceptance runs first so freshly cancelled shipments drop out of
	// the overdue checks.
	checks := []struct {
		name string
		run  func(context.Context, time.Time, *MonitorReport) error
	}{
		{CheckStaleAcceptance, uc.checkStaleAcceptance},
		{CheckOverduePickup, uc.checkOverduePickup},
		{CheckOverdueDelivery, uc.checkOverdueDelivery},
		{CheckNoOffers, uc.checkNoOffers},
		{CheckAllOffersRejected, uc.checkAllOffersRejected},
		{CheckNegativeBalance, uc.checkNegativeBalance},
	}

	for _, check := range checks {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if err := check.run(ctx, now, report); err != nil {
			uc.log.LogDatabaseError(ctx, err, "monitor."+check.name)
			report.FailedChecks = append(report.FailedChecks, check.name)
			if uc.metrics != nil {
				uc.metrics.MonitorCheckFailures.WithLabelValues(check.name).Inc()
			}
		}
	}

	if len(report.FailedChecks) > 0 {
		return report, fmt.Errorf("lifecycle checks failed: %s", strings.Join(report.FailedChecks, ", "))
	}
	return report, nil
}

func (uc *LifecycleUseCase) checkStaleAcceptance(ctx context.Context, now time.Time, report *MonitorReport) error {
	cutoff := now.Add(-uc.cfg.StaleAfter)

	shipments, err := uc.shipmentRepo.ListStale(ctx, cutoff, uc.cfg.ScanLimit)
	if err != nil {
		return fmt.Errorf("list stale shipments: %w", err)
	}

	for _, s := range shipments {
		if err := uc.cancelStale(ctx, s, cutoff, now); err != nil {
			if errors.Is(err, domain.ErrShipmentNotChanged) {
				continue
			}
			uc.log.LogDatabaseError(ctx, err, "monitor.stale_acceptance.cancel")
			continue
		}
		report.Cancelled++
		if uc.metrics != nil {
			uc.metrics.ShipmentsAutoCancels.Inc()
		}

		days := int(uc.cfg.StaleAfter / (24 * time.Hour))
		uc.notify(ctx, report, DedupDaily, &domain.Notification{
			UserID:    s.OwnerID,
			Type:      domain.NotificationTypeTimeout,
			Title:     "Shipment cancelled",
			Message:   fmt.Sprintf("Shipment %s was cancelled after %d days without progress.", s.ID, days),
			Data:      domain.JSON{"shipment_id": s.ID, "previous_status": string(s.Status)},
			SubjectID: s.ID,
		})
	}
	return nil
}

func (uc *LifecycleUseCase) cancelStale(ctx context.Context, s *domain.Shipment, cutoff, now time.Time) error {
	txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := uc.txManager.Begin(txCtx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(txCtx) }()

	if err := uc.shipmentRepo.CancelStale(txCtx, tx, s.ID, cutoff, now); err != nil {
		return err
	}

	after := *s
	after.Status = domain.ShipmentStatusCancelled
	after.UpdatedAt = now

	auditLog := &domain.AuditLog{
		ID:          uc.idGen.Generate(),
		Action:      domain.AuditActionShipmentAutoCancel,
		EntityType:  "shipment",
		EntityID:    s.ID,
		Actor:       domain.AuditActorScheduler,
		BeforeState: domain.MarshalState(s),
		AfterState:  domain.MarshalState(after),
		CreatedAt:   now,
	}
	if err := uc.auditRepo.CreateTx(txCtx, tx, auditLog); err != nil {
		return fmt.Errorf("audit cancellation of shipment %s: %w", s.ID, err)
	}

	return tx.Commit(txCtx)
}

func (uc *LifecycleUseCase) checkOverduePickup(ctx context.Context, now time.Time, report *MonitorReport) error {
	shipments, err := uc.shipmentRepo.ListOverduePickup(ctx, now, uc.cfg.ScanLimit)
	if err != nil {
		return fmt.Errorf("list overdue pickups: %w", err)
	}

	for _, s := range shipments {
		due := formatDate(s.PickupDate)
		for _, userID := range s.Recipients(false) {
			uc.notify(ctx, report, DedupDaily, &domain.Notification{
				UserID:    userID,
				Type:      domain.NotificationTypeOverduePickup,
				Title:     "Pickup overdue",
				Message:   fmt.Sprintf("Pickup for shipment %s was due on %s and has not happened yet.", s.ID, due),
				Data:      domain.JSON{"shipment_id": s.ID, "pickup_date": due},
				SubjectID: s.ID,
			})
		}
	}
	return nil
}

func (uc *LifecycleUseCase) checkOverdueDelivery(ctx context.Context, now time.Time, report *MonitorReport) error {
	shipments, err := uc.shipmentRepo.ListOverdueDelivery(ctx, now, uc.cfg.ScanLimit)
	if err != nil {
		return fmt.Errorf("list overdue deliveries: %w", err)
	}

	for _, s := range shipments {
		due := formatDate(s.DeliveryDate)
		for _, userID := range s.Recipients(true) {
			uc.notify(ctx, report, DedupDaily, &domain.Notification{
				UserID:    userID,
				Type:      domain.NotificationTypeOverdueDelivery,
				Title:     "Delivery overdue",
				Message:   fmt.Sprintf("Delivery of shipment %s was due on %s and is not confirmed.", s.ID, due),
				Data:      domain.JSON{"shipment_id": s.ID, "delivery_date": due},
				SubjectID: s.ID,
			})
		}
	}
	return nil
}

func (uc *LifecycleUseCase) checkNoOffers(ctx context.Context, now time.Time, report *MonitorReport) error {
	createdFrom := now.Add(-uc.cfg.NoOffersMaxAge)
	createdTo := now.Add(-uc.cfg.NoOffersMinAge)

	shipments, err := uc.shipmentRepo.ListOpenWithoutOffers(ctx, createdFrom, createdTo, uc.cfg.ScanLimit)
	if err != nil {
		return fmt.Errorf("list shipments without offers: %w", err)
	}

	for _, s := range shipments {
		uc.notify(ctx, report, DedupOnce, &domain.Notification{
			UserID:    s.OwnerID,
			Type:      domain.NotificationTypeNoOffers,
			Title:     "No offers yet",
			Message:   fmt.Sprintf("Shipment %s has not received any offers. Consider adjusting the price or the pickup window.", s.ID),
			Data:      domain.JSON{"shipment_id": s.ID},
			SubjectID: s.ID,
		})
	}
	return nil
}

func (uc *LifecycleUseCase) checkAllOffersRejected(ctx context.Context, now time.Time, report *MonitorReport) error {
	shipments, err := uc.shipmentRepo.ListOpenWithAllOffersRejected(ctx, uc.cfg.ScanLimit)
	if err != nil {
		return fmt.Errorf("list shipments with all offers rejected: %w", err)
	}

	for _, s := range shipments {
		uc.notify(ctx, report, DedupOnce, &domain.Notification{
			UserID:    s.OwnerID,
			Type:      domain.NotificationTypeAllOffersRejected,
			Title:     "All offers rejected",
			Message:   fmt.Sprintf("Every offer on shipment %s was rejected or expired. The shipment is still open for new offers.", s.ID),
			Data:      domain.JSON{"shipment_id": s.ID},
			SubjectID: s.ID,
		})
	}
	return nil
}

func (uc *LifecycleUseCase) checkNegativeBalance(ctx context.Context, now time.Time, report *MonitorReport) error {
	wallets, err := uc.walletRepo.ListNegativeBalance(ctx, uc.cfg.ScanLimit)
	if err != nil {
		return fmt.Errorf("list negative wallets: %w", err)
	}

	for _, w := range wallets {
		balance := w.Balance.StringFixed(2)
		uc.notify(ctx, report, DedupDaily, &domain.Notification{
			UserID:    w.OwnerID,
			Type:      domain.NotificationTypeNegativeBalance,
			Title:     "Negative wallet balance",
			Message:   fmt.Sprintf("Your wallet balance is %s. Top up to keep bidding on shipments.", balance),
			Data:      domain.JSON{"wallet_id": w.ID, "balance": balance},
			SubjectID: w.ID,
		})
	}
	return nil
}

// notify writes one notification. Failures are logged and swallowed so the
// calling check keeps going.
func (uc *LifecycleUseCase) notify(ctx context.Context, report *MonitorReport, scope DedupScope, n *domain.Notification) {
	created, err := uc.gate.Notify(ctx, n, scope)
	if err != nil {
		uc.log.LogDatabaseError(ctx, err, "monitor.notify."+string(n.Type))
		return
	}
	if created {
		report.Notified[n.Type]++
	}
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format("2006-01-02")
}
