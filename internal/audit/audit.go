// Package audit emits registration audit events. Publishing is best-effort:
// an unavailable broker must never fail a signup, so errors are logged and
// dropped.
package audit

import (
	"context"
	"time"
)

// Event types emitted by the registration flow.
const (
	EventRegistrationCompleted = "registration.completed"
	EventRegistrationFailed    = "registration.failed"
)

// Event is one audit record. Client metadata comes from the request context;
// credential material never appears here.
type Event struct {
	Type             string    `json:"type"`
	RequestID        string    `json:"request_id,omitempty"`
	ProfileID        string    `json:"profile_id,omitempty"`
	Email            string    `json:"email,omitempty"`
	RoleName         string    `json:"role_name,omitempty"`
	JurisdictionCode string    `json:"jurisdiction_code,omitempty"`
	ErrorCode        string    `json:"error_code,omitempty"`
	ClientIP         string    `json:"client_ip,omitempty"`
	Device           string    `json:"device,omitempty"`
	OccurredAt       time.Time `json:"occurred_at"`
}

// Publisher records audit events.
type Publisher interface {
	Publish(ctx context.Context, event Event)
	Close()
}
