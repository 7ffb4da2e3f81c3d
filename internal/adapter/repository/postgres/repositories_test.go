package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/freightsettle/internal/domain"
	"github.com/iho/freightsettle/internal/usecase"
)

var repoNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func beginTx(t *testing.T, mock pgxmock.PgxPoolIface) usecase.Transaction {
	t.Helper()
	mock.ExpectBegin()
	tx, err := newTxManagerWithPool(mock).Begin(context.Background())
	require.NoError(t, err)
	return tx
}

func TestOfferRepositoryMarkExpired(t *testing.T) {
	mock := newMockPool(t)
	tx := beginTx(t, mock)
	repo := &OfferRepository{db: mock}

	ids := []string{"offer-1", "offer-2"}
	mock.ExpectExec(regexp.QuoteMeta("SET status = 'rejected'")).
		WithArgs(ids, repoNow).
		WillReturnResult(pgxmock.NewResult("UPDATE", 2))

	n, err := repo.MarkExpired(context.Background(), tx, ids, repoNow)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assertExpectations(t, mock)
}

func TestOfferRepositoryMarkExpiredEmptyIsNoop(t *testing.T) {
	mock := newMockPool(t)
	tx := beginTx(t, mock)
	repo := &OfferRepository{db: mock}

	n, err := repo.MarkExpired(context.Background(), tx, nil, repoNow)
	require.NoError(t, err)
	assert.Zero(t, n)
	assertExpectations(t, mock)
}

func TestOfferRepositoryListExpiredLocksRows(t *testing.T) {
	mock := newMockPool(t)
	tx := beginTx(t, mock)
	repo := &OfferRepository{db: mock}

	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs(repoNow, 500).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "shipment_id", "carrier_id", "price", "status", "expires_at", "created_at", "updated_at",
		}))

	offers, err := repo.ListExpiredPendingForUpdate(context.Background(), tx, repoNow, 500)
	require.NoError(t, err)
	assert.Empty(t, offers)
	assertExpectations(t, mock)
}

func TestOfferRepositoryListExpiredWithoutLimit(t *testing.T) {
	mock := newMockPool(t)
	tx := beginTx(t, mock)
	repo := &OfferRepository{db: mock}

	mock.ExpectQuery(regexp.QuoteMeta("LIMIT $2")).
		WithArgs(repoNow, nil).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "shipment_id", "carrier_id", "price", "status", "expires_at", "created_at", "updated_at",
		}))

	_, err := repo.ListExpiredPendingForUpdate(context.Background(), tx, repoNow, 0)
	require.NoError(t, err)
	assertExpectations(t, mock)
}

func TestWalletRepositoryGetByOwnerNotFound(t *testing.T) {
	mock := newMockPool(t)
	tx := beginTx(t, mock)
	repo := &WalletRepository{db: mock}

	mock.ExpectQuery(regexp.QuoteMeta("FROM wallets")).
		WithArgs("carrier-1").
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetByOwnerForUpdate(context.Background(), tx, "carrier-1")
	assert.ErrorIs(t, err, domain.ErrWalletNotFound)
}

func TestWalletRepositoryUpdateReservedNoRows(t *testing.T) {
	mock := newMockPool(t)
	tx := beginTx(t, mock)
	repo := &WalletRepository{db: mock}

	mock.ExpectExec(regexp.QuoteMeta("SET reserved_balance")).
		WithArgs("wallet-1", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.UpdateReservedBalance(context.Background(), tx, "wallet-1", decimal.NewFromInt(5), repoNow)
	assert.ErrorIs(t, err, domain.ErrWalletNotFound)
	assertExpectations(t, mock)
}

func TestLedgerEntryRepositoryCreate(t *testing.T) {
	mock := newMockPool(t)
	tx := beginTx(t, mock)
	repo := &LedgerEntryRepository{db: mock}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO ledger_entries")).
		WithArgs("entry-1", "carrier-1", "commission_release", pgxmock.AnyArg(), "completed",
			pgxmock.AnyArg(), "offer", "offer-1", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := repo.Create(context.Background(), tx, &domain.LedgerEntry{
		ID:            "entry-1",
		OwnerID:       "carrier-1",
		Type:          domain.LedgerEntryTypeCommissionRelease,
		Amount:        decimal.NewFromInt(10),
		Status:        domain.LedgerEntryStatusCompleted,
		Description:   "released",
		ReferenceType: domain.ReferenceTypeOffer,
		ReferenceID:   "offer-1",
		CreatedAt:     repoNow,
	})
	require.NoError(t, err)
	assertExpectations(t, mock)
}

func TestShipmentRepositoryCancelStale(t *testing.T) {
	active := shipmentStatuses(domain.ActiveStatuses)
	cutoff := repoNow.Add(-7 * 24 * time.Hour)

	t.Run("cancelled", func(t *testing.T) {
		mock := newMockPool(t)
		tx := beginTx(t, mock)
		repo := &ShipmentRepository{db: mock}

		mock.ExpectExec(regexp.QuoteMeta("SET status = 'cancelled'")).
			WithArgs("ship-1", cutoff, repoNow, active).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		require.NoError(t, repo.CancelStale(context.Background(), tx, "ship-1", cutoff, repoNow))
		assertExpectations(t, mock)
	})

	t.Run("touched concurrently", func(t *testing.T) {
		mock := newMockPool(t)
		tx := beginTx(t, mock)
		repo := &ShipmentRepository{db: mock}

		mock.ExpectExec(regexp.QuoteMeta("SET status = 'cancelled'")).
			WithArgs("ship-1", cutoff, repoNow, active).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err := repo.CancelStale(context.Background(), tx, "ship-1", cutoff, repoNow)
		assert.ErrorIs(t, err, domain.ErrShipmentNotChanged)
	})
}

func TestShipmentRepositoryWindowsIncludeTheirBounds(t *testing.T) {
	cutoff := repoNow.Add(-7 * 24 * time.Hour)
	columns := []string{"id", "owner_id", "carrier_id", "driver_id", "status", "pickup_date", "delivery_date", "created_at", "updated_at"}

	t.Run("stale", func(t *testing.T) {
		mock := newMockPool(t)
		repo := &ShipmentRepository{db: mock}

		mock.ExpectQuery(regexp.QuoteMeta("s.updated_at <= $2")).
			WithArgs(shipmentStatuses(domain.ActiveStatuses), cutoff, 10).
			WillReturnRows(pgxmock.NewRows(columns))

		_, err := repo.ListStale(context.Background(), cutoff, 10)
		require.NoError(t, err)
		assertExpectations(t, mock)
	})

	t.Run("cancel", func(t *testing.T) {
		mock := newMockPool(t)
		tx := beginTx(t, mock)
		repo := &ShipmentRepository{db: mock}

		mock.ExpectExec(regexp.QuoteMeta("updated_at <= $2")).
			WithArgs("ship-1", cutoff, repoNow, shipmentStatuses(domain.ActiveStatuses)).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		require.NoError(t, repo.CancelStale(context.Background(), tx, "ship-1", cutoff, repoNow))
		assertExpectations(t, mock)
	})

	t.Run("no offers", func(t *testing.T) {
		mock := newMockPool(t)
		repo := &ShipmentRepository{db: mock}
		from, to := repoNow.Add(-48*time.Hour), repoNow.Add(-24*time.Hour)

		mock.ExpectQuery(regexp.QuoteMeta("s.created_at >= $1 AND s.created_at <= $2")).
			WithArgs(from, to, 10).
			WillReturnRows(pgxmock.NewRows(columns))

		_, err := repo.ListOpenWithoutOffers(context.Background(), from, to, 10)
		require.NoError(t, err)
		assertExpectations(t, mock)
	})
}

func TestShipmentRepositoryListQueryError(t *testing.T) {
	mock := newMockPool(t)
	repo := &ShipmentRepository{db: mock}
	dbErr := errors.New("connection reset")

	mock.ExpectQuery(regexp.QuoteMeta("NOT EXISTS (SELECT 1 FROM offers")).
		WithArgs(500).
		WillReturnError(dbErr)

	_, err := repo.ListOpenWithAllOffersRejected(context.Background(), 500)
	assert.ErrorIs(t, err, dbErr)
	assertExpectations(t, mock)
}

func TestNotificationRepositoryExists(t *testing.T) {
	mock := newMockPool(t)
	repo := &NotificationRepository{db: mock}
	key := domain.NotificationKey{UserID: "owner-1", Type: domain.NotificationTypeTimeout, SubjectID: "ship-1"}

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).
		WithArgs("owner-1", "timeout", "ship-1", "2026-03-10").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.Exists(context.Background(), key, "2026-03-10")
	require.NoError(t, err)
	assert.True(t, exists)
	assertExpectations(t, mock)
}

func TestNotificationRepositoryCreate(t *testing.T) {
	n := &domain.Notification{
		ID:        "n-1",
		UserID:    "owner-1",
		Type:      domain.NotificationTypeNoOffers,
		Title:     "No offers yet",
		Message:   "Nobody has bid on your shipment.",
		Data:      domain.JSON{"shipment_id": "ship-1"},
		SubjectID: "ship-1",
		DedupKey:  domain.DedupKeyOnce,
		CreatedAt: repoNow,
	}

	cases := []struct {
		name     string
		affected int64
		created  bool
	}{
		{name: "inserted", affected: 1, created: true},
		{name: "conflict", affected: 0, created: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mock := newMockPool(t)
			repo := &NotificationRepository{db: mock}

			mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (user_id, type, subject_id, dedup_key) DO NOTHING")).
				WithArgs("n-1", "owner-1", "no_offers", n.Title, n.Message, pgxmock.AnyArg(), "ship-1", "once", pgxmock.AnyArg()).
				WillReturnResult(pgxmock.NewResult("INSERT", tc.affected))

			created, err := repo.Create(context.Background(), n)
			require.NoError(t, err)
			assert.Equal(t, tc.created, created)
			assertExpectations(t, mock)
		})
	}
}

func TestDeleteInBatchesLoopsUntilShortBatch(t *testing.T) {
	mock := newMockPool(t)
	repo := &MessageRepository{db: mock, batchSize: 2}
	cutoff := repoNow.AddDate(0, 0, -90)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM messages")).
		WithArgs(cutoff, 2).
		WillReturnResult(pgxmock.NewResult("DELETE", 2))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM messages")).
		WithArgs(cutoff, 2).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	n, err := repo.DeleteOlderThan(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assertExpectations(t, mock)
}

func TestNotificationRepositoryPurgeKeepsOnceRows(t *testing.T) {
	mock := newMockPool(t)
	repo := &NotificationRepository{db: mock, batchSize: 100}
	cutoff := repoNow.AddDate(0, 0, -30)

	mock.ExpectExec(regexp.QuoteMeta("WHERE created_at < $1 AND dedup_key <> 'once'")).
		WithArgs(cutoff, 100).
		WillReturnResult(pgxmock.NewResult("DELETE", 4))

	n, err := repo.DeleteOlderThan(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
	assertExpectations(t, mock)
}

func TestDeleteInBatchesReturnsPartialCountOnError(t *testing.T) {
	mock := newMockPool(t)
	repo := &AuditRepository{db: mock, batchSize: 2}
	cutoff := repoNow.AddDate(0, 0, -365)
	dbErr := errors.New("statement timeout")

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM audit_logs")).
		WithArgs(cutoff, 2).
		WillReturnResult(pgxmock.NewResult("DELETE", 2))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM audit_logs")).
		WithArgs(cutoff, 2).
		WillReturnError(dbErr)

	n, err := repo.DeleteOlderThan(context.Background(), cutoff)
	assert.ErrorIs(t, err, dbErr)
	assert.Equal(t, int64(2), n)
}

func TestAuditRepositoryCreateTx(t *testing.T) {
	mock := newMockPool(t)
	tx := beginTx(t, mock)
	repo := &AuditRepository{db: mock}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO audit_logs")).
		WithArgs("audit-1", "shipment.auto_cancel", "shipment", "ship-1", "system:scheduler",
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := repo.CreateTx(context.Background(), tx, &domain.AuditLog{
		ID:          "audit-1",
		Action:      domain.AuditActionShipmentAutoCancel,
		EntityType:  "shipment",
		EntityID:    "ship-1",
		Actor:       domain.AuditActorScheduler,
		BeforeState: domain.JSON{"status": "accepted"},
		AfterState:  domain.JSON{"status": "cancelled"},
		CreatedAt:   repoNow,
	})
	require.NoError(t, err)
	assertExpectations(t, mock)
}

func TestULIDGeneratorProducesUniqueIDs(t *testing.T) {
	gen := NewULIDGenerator()
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		id := gen.Generate()
		require.Len(t, id, 26)
		_, dup := seen[id]
		require.False(t, dup)
		seen[id] = struct{}{}
	}
}
