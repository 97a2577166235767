// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// services and handlers to distinguish between different failure
// scenarios. For example, ErrDuplicateKey reports a unique-key violation
// from either driver, while ErrConflict signals that a conditional write
// matched no row because the current state no longer allows it.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
	"github.com/mattn/go-sqlite3"
)

// ErrConflict is returned when a conditional update or delete matched no
// row because the stored state does not allow it (capacity reached,
// status changed, participants above a new limit).
var ErrConflict = errors.New("conflict")

// ErrTournamentNotFound indicates that no tournament with the given key exists.
var ErrTournamentNotFound = errors.New("tournament not found")

// ErrRegistrationNotFound indicates that no registration with the given key exists.
var ErrRegistrationNotFound = errors.New("registration not found")

// ErrUserNotFound indicates that no user with the given key exists.
var ErrUserNotFound = errors.New("user not found")

// ErrDuplicateKey is returned when an insert violates a unique key.
var ErrDuplicateKey = errors.New("duplicate key")

// isDuplicateKey reports whether err is a unique-constraint violation from
// either supported driver.
func isDuplicateKey(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
