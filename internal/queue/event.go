// Package queue defines message payloads exchanged over the message broker.
package queue

import "time"

// RegistrationQueueName is the durable queue registration events are
// published to.
const RegistrationQueueName = "registration.events"

// Event types carried in RegistrationEvent.Type.
const (
	EventRegistered    = "registration.created"
	EventPaid          = "registration.paid"
	EventPaymentFailed = "registration.payment_failed"
	EventCancelled     = "registration.cancelled"
)

// RegistrationEvent is published after a ledger change commits.  It holds
// enough information for downstream consumers to log, notify or trigger
// analytics without querying the primary database.
type RegistrationEvent struct {
	EventID         string    `json:"event_id"`
	Type            string    `json:"type"`
	RegistrationID  uint64    `json:"registration_id"`
	TournamentID    uint64    `json:"tournament_id"`
	UserID          uint64    `json:"user_id"`
	Status          string    `json:"registration_status"`
	PaymentStatus   string    `json:"payment_status"`
	AmountPaidCents int64     `json:"amount_paid_cents"`
	Reason          string    `json:"reason,omitempty"`
	OccurredAt      time.Time `json:"occurred_at"`
}
