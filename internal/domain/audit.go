package domain

import (
	"encoding/json"
	"time"
)

// AuditLog records an automated state change made by the scheduler.
type AuditLog struct {
	ID          string
	Action      AuditAction
	EntityType  string
	EntityID    string
	Actor       string
	BeforeState JSON
	AfterState  JSON
	CreatedAt   time.Time
}

// JSON is a type alias for JSON data
type JSON map[string]any

type AuditAction string

const (
	AuditActionShipmentAutoCancel AuditAction = "shipment.auto_cancel"
)

// AuditActorScheduler is the actor recorded for scheduler-driven changes.
const AuditActorScheduler = "system:scheduler"

// MarshalState converts a domain object to JSON for audit logging
func MarshalState(v any) JSON {
	if v == nil {
		return nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return JSON{"error": "failed to marshal state"}
	}

	var result JSON
	if err := json.Unmarshal(data, &result); err != nil {
		return JSON{"error": "failed to unmarshal state"}
	}

	return result
}
