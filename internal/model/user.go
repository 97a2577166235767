package model

import "time"

// Roles carried in the access token's "role" claim.
const (
	RoleUser      = "USER"
	RoleOrganizer = "ORGANIZER"
	RoleAdmin     = "ADMIN"
)

// User mirrors an account owned by the authentication service.  Only the
// fields this service reads are kept: identity, role and activity.
//
// Fields:
//
//	ID        – primary key identifier of the user.
//	Email     – unique email address.
//	FullName  – display name.
//	Role      – USER, ORGANIZER or ADMIN.
//	IsActive  – whether the account is active.
type User struct {
	ID        uint64    `json:"id"`         // users.id
	Email     string    `json:"email"`      // users.email
	FullName  string    `json:"full_name"`  // users.full_name
	Role      string    `json:"role"`       // users.role
	IsActive  bool      `json:"is_active"`  // users.is_active
	CreatedAt time.Time `json:"created_at"` // users.created_at
	UpdatedAt time.Time `json:"updated_at"` // users.updated_at
}

// Actor is the verified (user, role) pair supplied by the authentication
// middleware for the current request.
type Actor struct {
	UserID uint64
	Role   string
}

// IsAdmin reports whether the actor holds the ADMIN role.
func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

// CanOrganize reports whether the actor may create and manage tournaments.
func (a Actor) CanOrganize() bool { return a.Role == RoleOrganizer || a.Role == RoleAdmin }
