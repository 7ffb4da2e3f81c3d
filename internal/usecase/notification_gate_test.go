package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/mock/gomock"

	"github.com/iho/freightsettle/internal/domain"
	"github.com/iho/freightsettle/internal/infrastructure/clock"
	"github.com/iho/freightsettle/internal/usecase"
	"github.com/iho/freightsettle/internal/usecase/mocks"
)

func TestNotificationGate_ShouldNotify(t *testing.T) {
	store := mocks.NewStore()
	gate := usecase.NewNotificationGate(store.NotificationRepo(), mocks.NewSequenceIDGenerator("n"), clock.NewManual(testNow), time.UTC, nil)
	key := domain.NotificationKey{UserID: "U1", Type: domain.NotificationTypeOverduePickup, SubjectID: "S1"}

	ok, err := gate.ShouldNotify(context.Background(), key, testNow)
	if err != nil || !ok {
		t.Fatalf("expected empty gate to allow, got %v, %v", ok, err)
	}

	store.PutNotification(&domain.Notification{UserID: "U1", Type: domain.NotificationTypeOverduePickup, SubjectID: "S1", DedupKey: "2026-03-10"})

	tests := []struct {
		name string
		key  domain.NotificationKey
		day  time.Time
		want bool
	}{
		{name: "same tuple same day", key: key, day: testNow, want: false},
		{name: "same tuple later that day", key: key, day: testNow.Add(11 * time.Hour), want: false},
		{name: "same tuple next day", key: key, day: testNow.Add(24 * time.Hour), want: true},
		{name: "other owner", key: domain.NotificationKey{UserID: "U2", Type: key.Type, SubjectID: "S1"}, day: testNow, want: true},
		{name: "other type", key: domain.NotificationKey{UserID: "U1", Type: domain.NotificationTypeOverdueDelivery, SubjectID: "S1"}, day: testNow, want: true},
		{name: "other subject", key: domain.NotificationKey{UserID: "U1", Type: key.Type, SubjectID: "S2"}, day: testNow, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := gate.ShouldNotify(context.Background(), tt.key, tt.day)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestNotificationGate_DayUsesConfiguredLocation(t *testing.T) {
	store := mocks.NewStore()
	plusThree := time.FixedZone("UTC+3", 3*60*60)
	// 22:00 UTC on the 10th is already the 11th in UTC+3.
	late := time.Date(2026, 3, 10, 22, 0, 0, 0, time.UTC)
	gate := usecase.NewNotificationGate(store.NotificationRepo(), mocks.NewSequenceIDGenerator("n"), clock.NewManual(late), plusThree, nil)

	n := &domain.Notification{UserID: "U1", Type: domain.NotificationTypeNegativeBalance, SubjectID: "w1"}
	if _, err := gate.Notify(context.Background(), n, usecase.DedupDaily); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if n.DedupKey != "2026-03-11" {
		t.Errorf("expected dedup key in configured zone, got %s", n.DedupKey)
	}
}

func TestNotificationGate_Notify(t *testing.T) {
	store := mocks.NewStore()
	clk := clock.NewManual(testNow)
	gate := usecase.NewNotificationGate(store.NotificationRepo(), mocks.NewSequenceIDGenerator("n"), clk, time.UTC, nil)

	newNotification := func() *domain.Notification {
		return &domain.Notification{UserID: "U1", Type: domain.NotificationTypeNoOffers, SubjectID: "S1", Title: "t", Message: "m"}
	}

	first := newNotification()
	created, err := gate.Notify(context.Background(), first, usecase.DedupDaily)
	if err != nil || !created {
		t.Fatalf("expected first notification written, got %v, %v", created, err)
	}
	if first.ID != "n-1" || first.DedupKey != "2026-03-10" || !first.CreatedAt.Equal(testNow) {
		t.Errorf("gate should fill id, dedup key and timestamp, got %+v", first)
	}

	created, err = gate.Notify(context.Background(), newNotification(), usecase.DedupDaily)
	if err != nil || created {
		t.Fatalf("expected duplicate suppressed, got %v, %v", created, err)
	}

	clk.Advance(24 * time.Hour)
	created, err = gate.Notify(context.Background(), newNotification(), usecase.DedupDaily)
	if err != nil || !created {
		t.Fatalf("expected next-day notification written, got %v, %v", created, err)
	}

	once := newNotification()
	created, err = gate.Notify(context.Background(), once, usecase.DedupOnce)
	if err != nil || !created {
		t.Fatalf("expected first once-only notification written, got %v, %v", created, err)
	}
	if once.DedupKey != domain.DedupKeyOnce {
		t.Errorf("expected once dedup key, got %s", once.DedupKey)
	}

	clk.Advance(72 * time.Hour)
	allowed, err := gate.ShouldNotifyOnce(context.Background(), once.Key())
	if err != nil || allowed {
		t.Errorf("once-only notification must stay suppressed, got %v, %v", allowed, err)
	}

	if n := len(store.Notifications()); n != 3 {
		t.Errorf("expected 3 stored notifications, got %d", n)
	}
}

func TestNotificationGate_ConcurrentInsertConflict(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := mocks.NewMockNotificationRepository(ctrl)
	repo.EXPECT().Exists(gomock.Any(), gomock.Any(), "2026-03-10").Return(false, nil)
	// Another instance wrote the row between the lookup and the insert.
	repo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(false, nil)

	ids := mocks.NewMockIDGenerator(ctrl)
	ids.EXPECT().Generate().Return("n-1")

	gate := usecase.NewNotificationGate(repo, ids, clock.NewManual(testNow), nil, nil)

	created, err := gate.Notify(context.Background(), &domain.Notification{UserID: "U1", Type: domain.NotificationTypeTimeout, SubjectID: "S1"}, usecase.DedupDaily)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created {
		t.Error("conflicting insert must report not created")
	}
}

func TestNotificationGate_LookupError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := mocks.NewMockNotificationRepository(ctrl)
	repo.EXPECT().Exists(gomock.Any(), gomock.Any(), gomock.Any()).Return(false, errors.New("timeout"))

	gate := usecase.NewNotificationGate(repo, mocks.NewMockIDGenerator(ctrl), clock.NewManual(testNow), time.UTC, nil)

	if _, err := gate.Notify(context.Background(), &domain.Notification{UserID: "U1", Type: domain.NotificationTypeTimeout, SubjectID: "S1"}, usecase.DedupDaily); err == nil {
		t.Fatal("expected error")
	}
}
