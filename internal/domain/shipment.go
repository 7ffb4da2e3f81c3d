package domain

import "time"

type ShipmentStatus string

const (
	ShipmentStatusCreated    ShipmentStatus = "created"
	ShipmentStatusOpen       ShipmentStatus = "open"
	ShipmentStatusAccepted   ShipmentStatus = "accepted"
	ShipmentStatusAssigned   ShipmentStatus = "assigned"
	ShipmentStatusInProgress ShipmentStatus = "in_progress"
	ShipmentStatusDelivered  ShipmentStatus = "delivered"
	ShipmentStatusCancelled  ShipmentStatus = "cancelled"
)

// ActiveStatuses are the states in which a carrier has committed to a shipment.
var ActiveStatuses = []ShipmentStatus{
	ShipmentStatusAccepted,
	ShipmentStatusAssigned,
	ShipmentStatusInProgress,
}

// AwaitingPickupStatuses are the active states before the load is picked up.
var AwaitingPickupStatuses = []ShipmentStatus{
	ShipmentStatusAccepted,
	ShipmentStatusAssigned,
}

type Shipment struct {
	ID           string
	OwnerID      string
	CarrierID    string
	DriverID     string
	Status       ShipmentStatus
	PickupDate   *time.Time
	DeliveryDate *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsActive reports whether the shipment is accepted, assigned or in progress.
func (s *Shipment) IsActive() bool {
	return containsStatus(ActiveStatuses, s.Status)
}

// IsStale reports whether an active shipment was last touched at or before cutoff.
func (s *Shipment) IsStale(cutoff time.Time) bool {
	return s.IsActive() && !s.UpdatedAt.After(cutoff)
}

// IsPickupOverdue reports whether the pickup date passed before the load was picked up.
func (s *Shipment) IsPickupOverdue(now time.Time) bool {
	return s.PickupDate != nil && s.PickupDate.Before(now) && containsStatus(AwaitingPickupStatuses, s.Status)
}

// IsDeliveryOverdue reports whether the delivery date passed on an undelivered shipment.
func (s *Shipment) IsDeliveryOverdue(now time.Time) bool {
	return s.DeliveryDate != nil && s.DeliveryDate.Before(now) && s.IsActive()
}

// Recipients returns the distinct non-empty participants among owner, carrier and driver.
func (s *Shipment) Recipients(includeDriver bool) []string {
	ids := []string{s.OwnerID, s.CarrierID}
	if includeDriver {
		ids = append(ids, s.DriverID)
	}

	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func containsStatus(list []ShipmentStatus, status ShipmentStatus) bool {
	for _, s := range list {
		if s == status {
			return true
		}
	}
	return false
}
