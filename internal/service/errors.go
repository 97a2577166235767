// Package service holds the registration ledger, the revenue and
// participant aggregator, the statistics reporter and tournament
// management.  Every expected failure is reported as one of the sentinel
// errors below so the HTTP layer can map it to a stable response.
package service

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation            = errors.New("validation failed")
	ErrNotFound              = errors.New("not found")
	ErrDuplicateRegistration = errors.New("already registered for this tournament")
	ErrCapacityExceeded      = errors.New("tournament is full")
	ErrInvalidState          = errors.New("operation not allowed in current state")
	ErrForbidden             = errors.New("forbidden")
)

// ValidationError lists the offending input fields.  It matches
// ErrValidation under errors.Is.
type ValidationError struct {
	Fields []string
	Msg    string
}

func (e *ValidationError) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = ErrValidation.Error()
	}
	if len(e.Fields) == 0 {
		return msg
	}
	return fmt.Sprintf("%s: %s", msg, strings.Join(e.Fields, ", "))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalid(msg string, fields ...string) error {
	return &ValidationError{Msg: msg, Fields: fields}
}

func notFound(what string) error {
	return fmt.Errorf("%s: %w", what, ErrNotFound)
}

func invalidState(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrInvalidState)
}
