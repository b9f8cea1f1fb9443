package auth

import "errors"

// Role represents an authorisation tier of an API caller.
type Role string

const (
	// RoleReader may read the registry and subscribe to registration events.
	RoleReader Role = "reader"

	// RoleAdmin additionally reads the audit trail.
	RoleAdmin Role = "admin"
)

// ValidRoles is the set of roles a token may carry.
var ValidRoles = []Role{RoleReader, RoleAdmin}

// IsValidRole returns true if r is a known role.
func IsValidRole(r Role) bool {
	for _, v := range ValidRoles {
		if r == v {
			return true
		}
	}
	return false
}

// Domain errors.
var (
	ErrTokenInvalid = errors.New("invalid token")
	ErrForbidden    = errors.New("insufficient permissions")
	ErrInvalidRole  = errors.New("invalid role")
)
