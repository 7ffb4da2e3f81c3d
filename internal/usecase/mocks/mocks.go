package mocks

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/freightsettle/internal/domain"
	"github.com/iho/freightsettle/internal/usecase"
)

// Store is an in-memory database backing the fake repositories below.
// Transactions snapshot the whole store on Begin and restore it on an
// uncommitted Rollback.
type Store struct {
	mu sync.Mutex

	offers        map[string]*domain.Offer
	wallets       map[string]*domain.Wallet
	entries       []*domain.LedgerEntry
	shipments     map[string]*domain.Shipment
	notifications []*domain.Notification
	auditLogs     []*domain.AuditLog
	messages      map[string]time.Time

	// errs makes the named operation fail, e.g. "wallets.update".
	errs map[string]error
}

func NewStore() *Store {
	return &Store{
		offers:    make(map[string]*domain.Offer),
		wallets:   make(map[string]*domain.Wallet),
		shipments: make(map[string]*domain.Shipment),
		messages:  make(map[string]time.Time),
		errs:      make(map[string]error),
	}
}

// FailOn makes every call of op return err until cleared with a nil err.
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.errs, op)
		return
	}
	s.errs[op] = err
}

func (s *Store) failure(op string) error {
	return s.errs[op]
}

func (s *Store) PutOffer(o *domain.Offer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *o
	s.offers[o.ID] = &c
}

func (s *Store) Offer(id string) *domain.Offer {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.offers[id]
	if !ok {
		return nil
	}
	c := *o
	return &c
}

func (s *Store) PutWallet(w *domain.Wallet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *w
	s.wallets[w.OwnerID] = &c
}

func (s *Store) Wallet(ownerID string) *domain.Wallet {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wallets[ownerID]
	if !ok {
		return nil
	}
	c := *w
	return &c
}

func (s *Store) PutShipment(sh *domain.Shipment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *sh
	s.shipments[sh.ID] = &c
}

func (s *Store) Shipment(id string) *domain.Shipment {
	s.mu.Lock()
	defer s.mu.Unlock()
	sh, ok := s.shipments[id]
	if !ok {
		return nil
	}
	c := *sh
	return &c
}

func (s *Store) PutMessage(id string, createdAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[id] = createdAt
}

func (s *Store) MessageCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

func (s *Store) PutNotification(n *domain.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *n
	s.notifications = append(s.notifications, &c)
}

func (s *Store) PutAuditLog(l *domain.AuditLog) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *l
	s.auditLogs = append(s.auditLogs, &c)
}

func (s *Store) LedgerEntries() []*domain.LedgerEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*domain.LedgerEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

func (s *Store) Notifications() []*domain.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*domain.Notification, len(s.notifications))
	copy(out, s.notifications)
	return out
}

// NotificationsFor returns the notifications of the given type for a user.
func (s *Store) NotificationsFor(userID string, typ domain.NotificationType) []*domain.Notification {
	var out []*domain.Notification
	for _, n := range s.Notifications() {
		if n.UserID == userID && n.Type == typ {
			out = append(out, n)
		}
	}
	return out
}

func (s *Store) AuditLogs() []*domain.AuditLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*domain.AuditLog, len(s.auditLogs))
	copy(out, s.auditLogs)
	return out
}

type snapshot struct {
	offers        map[string]domain.Offer
	wallets       map[string]domain.Wallet
	entries       []*domain.LedgerEntry
	shipments     map[string]domain.Shipment
	notifications []*domain.Notification
	auditLogs     []*domain.AuditLog
}

func (s *Store) snapshot() snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := snapshot{
		offers:        make(map[string]domain.Offer, len(s.offers)),
		wallets:       make(map[string]domain.Wallet, len(s.wallets)),
		shipments:     make(map[string]domain.Shipment, len(s.shipments)),
		entries:       append([]*domain.LedgerEntry(nil), s.entries...),
		notifications: append([]*domain.Notification(nil), s.notifications...),
		auditLogs:     append([]*domain.AuditLog(nil), s.auditLogs...),
	}
	for k, v := range s.offers {
		snap.offers[k] = *v
	}
	for k, v := range s.wallets {
		snap.wallets[k] = *v
	}
	for k, v := range s.shipments {
		snap.shipments[k] = *v
	}
	return snap
}

func (s *Store) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offers = make(map[string]*domain.Offer, len(snap.offers))
	for k, v := range snap.offers {
		c := v
		s.offers[k] = &c
	}
	s.wallets = make(map[string]*domain.Wallet, len(snap.wallets))
	for k, v := range snap.wallets {
		c := v
		s.wallets[k] = &c
	}
	s.shipments = make(map[string]*domain.Shipment, len(snap.shipments))
	for k, v := range snap.shipments {
		c := v
		s.shipments[k] = &c
	}
	s.entries = snap.entries
	s.notifications = snap.notifications
	s.auditLogs = snap.auditLogs
}

// TxManager begins snapshot transactions on a Store.
type TxManager struct {
	store *Store

	mu        sync.Mutex
	begun     int
	committed int
	rolled    int
}

func (s *Store) TxManager() *TxManager {
	return &TxManager{store: s}
}

func (m *TxManager) Begin(ctx context.Context) (usecase.Transaction, error) {
	m.store.mu.Lock()
	err := m.store.failure("tx.begin")
	m.store.mu.Unlock()
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.begun++
	m.mu.Unlock()
	return &Tx{manager: m, snap: m.store.snapshot()}, nil
}

// Counts returns the number of begun, committed and rolled back transactions.
func (m *TxManager) Counts() (begun, committed, rolledBack int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.begun, m.committed, m.rolled
}

// Tx is a snapshot transaction.
type Tx struct {
	manager *TxManager
	snap    snapshot
	done    bool
}

func (t *Tx) Commit(ctx context.Context) error {
	if t.done {
		return errors.New("transaction already closed")
	}
	t.manager.store.mu.Lock()
	err := t.manager.store.failure("tx.commit")
	t.manager.store.mu.Unlock()
	if err != nil {
		return err
	}

	t.done = true
	t.manager.mu.Lock()
	t.manager.committed++
	t.manager.mu.Unlock()
	return nil
}

func (t *Tx) Rollback(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	t.manager.store.restore(t.snap)
	t.manager.mu.Lock()
	t.manager.rolled++
	t.manager.mu.Unlock()
	return nil
}

// OfferRepository is the Store-backed usecase.OfferRepository.
type OfferRepository struct{ store *Store }

func (s *Store) Offers() *OfferRepository { return &OfferRepository{store: s} }

func (r *OfferRepository) ListExpiredPendingForUpdate(ctx context.Context, tx usecase.Transaction, now time.Time, limit int) ([]*domain.Offer, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if err := r.store.failure("offers.list_expired"); err != nil {
		return nil, err
	}

	var out []*domain.Offer
	for _, o := range r.store.offers {
		if o.IsExpired(now) {
			c := *o
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CarrierID != out[j].CarrierID {
			return out[i].CarrierID < out[j].CarrierID
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *OfferRepository) MarkExpired(ctx context.Context, tx usecase.Transaction, ids []string, updatedAt time.Time) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if err := r.store.failure("offers.mark_expired"); err != nil {
		return 0, err
	}

	var n int64
	for _, id := range ids {
		o, ok := r.store.offers[id]
		if !ok || o.Status != domain.OfferStatusPending {
			continue
		}
		o.Status = domain.OfferStatusRejected
		o.UpdatedAt = updatedAt
		n++
	}
	return n, nil
}

// WalletRepository is the Store-backed usecase.WalletRepository.
type WalletRepository struct{ store *Store }

func (s *Store) Wallets() *WalletRepository { return &WalletRepository{store: s} }

func (r *WalletRepository) GetByOwnerForUpdate(ctx context.Context, tx usecase.Transaction, ownerID string) (*domain.Wallet, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if err := r.store.failure("wallets.get"); err != nil {
		return nil, err
	}

	w, ok := r.store.wallets[ownerID]
	if !ok {
		return nil, domain.ErrWalletNotFound
	}
	c := *w
	return &c, nil
}

func (r *WalletRepository) UpdateReservedBalance(ctx context.Context, tx usecase.Transaction, id string, reserved decimal.Decimal, updatedAt time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if err := r.store.failure("wallets.update"); err != nil {
		return err
	}

	for _, w := range r.store.wallets {
		if w.ID == id {
			w.ReservedBalance = reserved
			w.UpdatedAt = updatedAt
			return nil
		}
	}
	return domain.ErrWalletNotFound
}

func (r *WalletRepository) ListNegativeBalance(ctx context.Context, limit int) ([]*domain.Wallet, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if err := r.store.failure("wallets.list_negative"); err != nil {
		return nil, err
	}

	var out []*domain.Wallet
	for _, w := range r.store.wallets {
		if w.HasNegativeBalance() {
			c := *w
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OwnerID < out[j].OwnerID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// LedgerEntryRepository is the Store-backed usecase.LedgerEntryRepository.
type LedgerEntryRepository struct{ store *Store }

func (s *Store) Ledger() *LedgerEntryRepository { return &LedgerEntryRepository{store: s} }

func (r *LedgerEntryRepository) Create(ctx context.Context, tx usecase.Transaction, entry *domain.LedgerEntry) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if err := r.store.failure("ledger.create"); err != nil {
		return err
	}

	c := *entry
	r.store.entries = append(r.store.entries, &c)
	return nil
}

// ShipmentRepository is the Store-backed usecase.ShipmentRepository.
type ShipmentRepository struct{ store *Store }

func (s *Store) Shipments() *ShipmentRepository { return &ShipmentRepository{store: s} }

func (r *ShipmentRepository) list(op string, limit int, match func(*domain.Shipment) bool) ([]*domain.Shipment, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if err := r.store.failure(op); err != nil {
		return nil, err
	}

	var out []*domain.Shipment
	for _, sh := range r.store.shipments {
		if match(sh) {
			c := *sh
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *ShipmentRepository) ListStale(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Shipment, error) {
	return r.list("shipments.list_stale", limit, func(sh *domain.Shipment) bool {
		return sh.IsStale(cutoff)
	})
}

func (r *ShipmentRepository) ListOverduePickup(ctx context.Context, now time.Time, limit int) ([]*domain.Shipment, error) {
	return r.list("shipments.list_overdue_pickup", limit, func(sh *domain.Shipment) bool {
		return sh.IsPickupOverdue(now)
	})
}

func (r *ShipmentRepository) ListOverdueDelivery(ctx context.Context, now time.Time, limit int) ([]*domain.Shipment, error) {
	return r.list("shipments.list_overdue_delivery", limit, func(sh *domain.Shipment) bool {
		return sh.IsDeliveryOverdue(now)
	})
}

// offersFor must be called with the store lock held.
func (r *ShipmentRepository) offersFor(shipmentID string) []*domain.Offer {
	var out []*domain.Offer
	for _, o := range r.store.offers {
		if o.ShipmentID == shipmentID {
			out = append(out, o)
		}
	}
	return out
}

func (r *ShipmentRepository) ListOpenWithoutOffers(ctx context.Context, createdFrom, createdTo time.Time, limit int) ([]*domain.Shipment, error) {
	return r.list("shipments.list_without_offers", limit, func(sh *domain.Shipment) bool {
		return sh.Status == domain.ShipmentStatusOpen &&
			!sh.CreatedAt.Before(createdFrom) &&
			!sh.CreatedAt.After(createdTo) &&
			len(r.offersFor(sh.ID)) == 0
	})
}

func (r *ShipmentRepository) ListOpenWithAllOffersRejected(ctx context.Context, limit int) ([]*domain.Shipment, error) {
	return r.list("shipments.list_all_rejected", limit, func(sh *domain.Shipment) bool {
		if sh.Status != domain.ShipmentStatusOpen {
			return false
		}
		offers := r.offersFor(sh.ID)
		if len(offers) == 0 {
			return false
		}
		for _, o := range offers {
			if o.Status != domain.OfferStatusRejected {
				return false
			}
		}
		return true
	})
}

func (r *ShipmentRepository) CancelStale(ctx context.Context, tx usecase.Transaction, id string, cutoff, updatedAt time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if err := r.store.failure("shipments.cancel"); err != nil {
		return err
	}

	sh, ok := r.store.shipments[id]
	if !ok || !sh.IsStale(cutoff) {
		return domain.ErrShipmentNotChanged
	}
	sh.Status = domain.ShipmentStatusCancelled
	sh.UpdatedAt = updatedAt
	return nil
}

// NotificationRepository is the Store-backed usecase.NotificationRepository.
type NotificationRepository struct{ store *Store }

func (s *Store) NotificationRepo() *NotificationRepository {
	return &NotificationRepository{store: s}
}

func (r *NotificationRepository) Exists(ctx context.Context, key domain.NotificationKey, dedupKey string) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if err := r.store.failure("notifications.exists"); err != nil {
		return false, err
	}
	return r.existsLocked(key, dedupKey), nil
}

func (r *NotificationRepository) existsLocked(key domain.NotificationKey, dedupKey string) bool {
	for _, n := range r.store.notifications {
		if n.Key() == key && n.DedupKey == dedupKey {
			return true
		}
	}
	return false
}

func (r *NotificationRepository) Create(ctx context.Context, n *domain.Notification) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if err := r.store.failure("notifications.create"); err != nil {
		return false, err
	}

	if r.existsLocked(n.Key(), n.DedupKey) {
		return false, nil
	}
	c := *n
	r.store.notifications = append(r.store.notifications, &c)
	return true, nil
}

func (r *NotificationRepository) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if err := r.store.failure("notifications.delete"); err != nil {
		return 0, err
	}

	kept := r.store.notifications[:0]
	var n int64
	for _, x := range r.store.notifications {
		if x.CreatedAt.Before(before) && x.DedupKey != domain.DedupKeyOnce {
			n++
			continue
		}
		kept = append(kept, x)
	}
	r.store.notifications = kept
	return n, nil
}

// MessageRepository is the Store-backed usecase.MessageRepository.
type MessageRepository struct{ store *Store }

func (s *Store) Messages() *MessageRepository { return &MessageRepository{store: s} }

func (r *MessageRepository) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if err := r.store.failure("messages.delete"); err != nil {
		return 0, err
	}

	var n int64
	for id, createdAt := range r.store.messages {
		if createdAt.Before(before) {
			delete(r.store.messages, id)
			n++
		}
	}
	return n, nil
}

// AuditRepository is the Store-backed usecase.AuditRepository.
type AuditRepository struct{ store *Store }

func (s *Store) Audit() *AuditRepository { return &AuditRepository{store: s} }

func (r *AuditRepository) CreateTx(ctx context.Context, tx usecase.Transaction, log *domain.AuditLog) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if err := r.store.failure("audit.create"); err != nil {
		return err
	}

	c := *log
	r.store.auditLogs = append(r.store.auditLogs, &c)
	return nil
}

func (r *AuditRepository) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if err := r.store.failure("audit.delete"); err != nil {
		return 0, err
	}

	kept := r.store.auditLogs[:0]
	var n int64
	for _, l := range r.store.auditLogs {
		if l.CreatedAt.Before(before) {
			n++
			continue
		}
		kept = append(kept, l)
	}
	r.store.auditLogs = kept
	return n, nil
}

// SequenceIDGenerator returns prefix-1, prefix-2, ...
type SequenceIDGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

func NewSequenceIDGenerator(prefix string) *SequenceIDGenerator {
	return &SequenceIDGenerator{prefix: prefix}
}

func (g *SequenceIDGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return g.prefix + "-" + strconv.Itoa(g.n)
}

// RecordingLogger is a usecase.EventLogger that keeps what it was given.
type RecordingLogger struct {
	mu     sync.Mutex
	Errors []string
	Infos  []string
}

func (l *RecordingLogger) LogDatabaseError(ctx context.Context, err error, tag string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Errors = append(l.Errors, tag+": "+err.Error())
}

func (l *RecordingLogger) LogInfo(ctx context.Context, msg string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Infos = append(l.Infos, msg)
}

// ErrorCount returns the number of recorded database errors.
func (l *RecordingLogger) ErrorCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.Errors)
}

// PassthroughRetrier runs the operation exactly once.
type PassthroughRetrier struct{}

func (PassthroughRetrier) Retry(ctx context.Context, operation func() error) error {
	return operation()
}
