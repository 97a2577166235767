package model

import "time"

// RegistrationStatus is the state of a registration.
type RegistrationStatus string

const (
	RegistrationPending    RegistrationStatus = "pending"
	RegistrationConfirmed  RegistrationStatus = "confirmed"
	RegistrationWaitlisted RegistrationStatus = "waitlisted"
	RegistrationCancelled  RegistrationStatus = "cancelled"
	RegistrationCompleted  RegistrationStatus = "completed"
)

// Valid reports whether s is a known registration status.
func (s RegistrationStatus) Valid() bool {
	switch s {
	case RegistrationPending, RegistrationConfirmed, RegistrationWaitlisted, RegistrationCancelled, RegistrationCompleted:
		return true
	}
	return false
}

// Terminal reports whether s has no outgoing transitions.
func (s RegistrationStatus) Terminal() bool {
	return s == RegistrationCancelled || s == RegistrationCompleted
}

// HoldsSlot reports whether a registration in status s counts against the
// tournament capacity.
func (s RegistrationStatus) HoldsSlot() bool {
	return s == RegistrationPending || s == RegistrationConfirmed || s == RegistrationCompleted
}

// CanTransitionTo encodes the registration state machine:
//
//	pending → confirmed → completed
//	pending | confirmed → cancelled
//
// cancelled and completed are terminal.
func (s RegistrationStatus) CanTransitionTo(next RegistrationStatus) bool {
	switch s {
	case RegistrationPending:
		return next == RegistrationConfirmed || next == RegistrationCancelled
	case RegistrationConfirmed:
		return next == RegistrationCompleted || next == RegistrationCancelled
	}
	return false
}

// PaymentStatus tracks the external payment for a registration.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
)

// Valid reports whether s is a known payment status.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentCompleted, PaymentFailed, PaymentRefunded:
		return true
	}
	return false
}

// Registration records a user's entry into a tournament.  Rows are never
// hard-deleted; cancellation clears IsActive and keeps the row for audit
// and statistics.
//
// Fields:
//
//	ID                 – primary key identifier.
//	TournamentID       – tournament entered.
//	UserID             – registrant.
//	Status             – registration state (see CanTransitionTo).
//	PaymentStatus      – payment state.
//	AmountPaidCents    – amount captured, counted in revenue once PaymentStatus is completed.
//	Profile            – optional detailed participant profile.
//	HasDetailedProfile – whether Profile was captured.
//	IsActive           – false after cancellation.
type Registration struct {
	ID                 uint64             `json:"id"`                      // registrations.id
	TournamentID       uint64             `json:"tournament_id"`           // registrations.tournament_id
	UserID             uint64             `json:"user_id"`                 // registrations.user_id
	Status             RegistrationStatus `json:"registration_status"`     // registrations.registration_status
	PaymentStatus      PaymentStatus      `json:"payment_status"`          // registrations.payment_status
	AmountPaidCents    int64              `json:"amount_paid_cents"`       // registrations.amount_paid_cents
	Profile            *Profile           `json:"profile,omitempty"`       // registrations.profile (JSON, nullable)
	HasDetailedProfile bool               `json:"has_detailed_profile"`    // registrations.has_detailed_profile
	CancelReason       *string            `json:"cancel_reason,omitempty"` // registrations.cancel_reason (nullable)
	RegisteredAt       time.Time          `json:"registered_at"`           // registrations.registered_at
	PaidAt             *time.Time         `json:"paid_at,omitempty"`       // registrations.paid_at (nullable)
	CancelledAt        *time.Time         `json:"cancelled_at,omitempty"`  // registrations.cancelled_at (nullable)
	IsActive           bool               `json:"is_active"`               // registrations.is_active
	CreatedAt          time.Time          `json:"created_at"`              // registrations.created_at
	UpdatedAt          time.Time          `json:"updated_at"`              // registrations.updated_at
}
