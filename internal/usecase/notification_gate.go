package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/iho/freightsettle/internal/domain"
	"github.com/iho/freightsettle/internal/infrastructure/metrics"
)

// DedupScope selects how long a notification suppresses its duplicates.
type DedupScope int

const (
	// DedupDaily allows one notification per calendar day.
	DedupDaily DedupScope = iota
	// DedupOnce allows one notification ever.
	DedupOnce
)

// NotificationGate decides whether a notification may be raised and writes
// it when allowed. It does not lock across callers; the unique dedup index on
// the notifications table absorbs concurrent duplicates.
type NotificationGate struct {
	repo     NotificationRepository
	idGen    IDGenerator
	clock    Clock
	location *time.Location
	metrics  *metrics.Metrics
}

func NewNotificationGate(
	repo NotificationRepository,
	idGen IDGenerator,
	clock Clock,
	location *time.Location,
	metrics *metrics.Metrics,
) *NotificationGate {
	if location == nil {
		location = time.UTC
	}
	return &NotificationGate{
		repo:     repo,
		idGen:    idGen,
		clock:    clock,
		location: location,
		metrics:  metrics,
	}
}

// ShouldNotify reports whether no notification exists for key on the
// calendar day containing day.
func (g *NotificationGate) ShouldNotify(ctx context.Context, key domain.NotificationKey, day time.Time) (bool, error) {
	return g.absent(ctx, key, domain.DayKey(day, g.location))
}

// ShouldNotifyOnce reports whether no once-only notification exists for key.
func (g *NotificationGate) ShouldNotifyOnce(ctx context.Context, key domain.NotificationKey) (bool, error) {
	return g.absent(ctx, key, domain.DedupKeyOnce)
}

func (g *NotificationGate) absent(ctx context.Context, key domain.NotificationKey, dedupKey string) (bool, error) {
	exists, err := g.repo.Exists(ctx, key, dedupKey)
	if err != nil {
		return false, fmt.Errorf("lookup notification %s/%s: %w", key.Type, key.SubjectID, err)
	}
	return !exists, nil
}

// Notify writes n unless the gate suppresses it. It fills in the ID,
// dedup key and creation time. Reports whether a row was written.
func (g *NotificationGate) Notify(ctx context.Context, n *domain.Notification, scope DedupScope) (bool, error) {
	now := g.clock.Now()

	dedupKey := domain.DayKey(now, g.location)
	if scope == DedupOnce {
		dedupKey = domain.DedupKeyOnce
	}

	ok, err := g.absent(ctx, n.Key(), dedupKey)
	if err != nil {
		return false, err
	}
	if !ok {
		g.recordDeduplicated(n.Type)
		return false, nil
	}

	n.ID = g.idGen.Generate()
	n.DedupKey = dedupKey
	n.CreatedAt = now

	created, err := g.repo.Create(ctx, n)
	if err != nil {
		return false, fmt.Errorf("create notification %s/%s: %w", n.Type, n.SubjectID, err)
	}
	if !created {
		g.recordDeduplicated(n.Type)
		return false, nil
	}

	if g.metrics != nil {
		g.metrics.NotificationsCreated.WithLabelValues(string(n.Type)).Inc()
	}
	return true, nil
}

func (g *NotificationGate) recordDeduplicated(typ domain.NotificationType) {
	if g.metrics != nil {
		g.metrics.NotificationsDeduplicated.WithLabelValues(string(typ)).Inc()
	}
}
