package domain

import (
	"time"
)

type NotificationType string

const (
	NotificationTypeTimeout           NotificationType = "timeout"
	NotificationTypeOverduePickup     NotificationType = "overdue_pickup"
	NotificationTypeOverdueDelivery   NotificationType = "overdue_delivery"
	NotificationTypeNoOffers          NotificationType = "no_offers"
	NotificationTypeAllOffersRejected NotificationType = "all_offers_rejected"
	NotificationTypeNegativeBalance   NotificationType = "negative_balance"
)

// DedupKeyOnce marks notifications that are raised at most once per subject.
const DedupKeyOnce = "once"

const dayLayout = "2006-01-02"

// Notification is a message for a marketplace participant.
type Notification struct {
	ID        string
	UserID    string
	Type      NotificationType
	Title     string
	Message   string
	Data      JSON
	SubjectID string
	DedupKey  string
	CreatedAt time.Time
}

// NotificationKey identifies a notification for deduplication.
type NotificationKey struct {
	UserID    string
	Type      NotificationType
	SubjectID string
}

// Key returns the deduplication key of the notification.
func (n *Notification) Key() NotificationKey {
	return NotificationKey{UserID: n.UserID, Type: n.Type, SubjectID: n.SubjectID}
}

// DayKey formats the calendar day of t in loc as a dedup key.
func DayKey(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(dayLayout)
}

// DayBounds returns the start of the calendar day containing t in loc and the
// start of the following day.
func DayBounds(t time.Time, loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}
