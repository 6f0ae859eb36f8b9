package auth

import (
	"errors"
	"regexp"
	"time"
)

const maxUsernameLength = 64

// usernamePattern: alphanumeric plus dot, hyphen, underscore.
var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9._-]{1,64}$`)

// IsValidUsername reports whether a username is acceptable: 1 to 64
// characters from the usernamePattern set.
func IsValidUsername(username string) bool {
	return len(username) <= maxUsernameLength && usernamePattern.MatchString(username)
}

// Role is an authorisation tier.
type Role string

const (
	// RoleOperator monitors the fleet: views pending registrations, device
	// status, and telemetry. Route technicians and support staff. Cannot
	// approve or reject machines.
	RoleOperator Role = "operator"

	// RoleAdmin has full fleet control: approving and rejecting machine
	// registrations, managing operator accounts, system settings, audit.
	RoleAdmin Role = "admin"

	// RoleOwner has everything admin can do plus dangerous database
	// operations and managing other owners. Emergency-only; credentials
	// belong in a printed recovery pack.
	RoleOwner Role = "owner"
)

// ValidRoles is the set of roles an account may hold.
var ValidRoles = []Role{RoleOperator, RoleAdmin, RoleOwner}

// IsValidUserRole reports whether r is one of ValidRoles.
func IsValidUserRole(r Role) bool {
	for _, v := range ValidRoles {
		if r == v {
			return true
		}
	}
	return false
}

// User is a human account on the fleet console.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	DisplayName  string    `json:"display_name"`
	Email        string    `json:"email,omitempty"`
	PasswordHash string    `json:"-"` // never serialised
	Role         Role      `json:"role"`
	IsActive     bool      `json:"is_active"`
	CreatedBy    string    `json:"created_by,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// RefreshToken is a stored session credential. FamilyID ties rotations
// of the same session together so reuse of a revoked token can burn the
// whole chain.
type RefreshToken struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	FamilyID   string    `json:"family_id"`
	TokenHash  string    `json:"-"` // never serialised
	ClientInfo string    `json:"client_info,omitempty"`
	ExpiresAt  time.Time `json:"expires_at"`
	Revoked    bool      `json:"revoked"`
	CreatedAt  time.Time `json:"created_at"`
}

// Sentinel errors for account and session operations.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserInactive       = errors.New("user account is inactive")
	ErrUsernameExists     = errors.New("username already exists")
	ErrTokenExpired       = errors.New("token has expired")
	ErrTokenRevoked       = errors.New("token has been revoked")
	ErrTokenInvalid       = errors.New("invalid token")
	ErrTokenReuse         = errors.New("refresh token reuse detected")
	ErrForbidden          = errors.New("insufficient permissions")
	ErrSelfModification   = errors.New("cannot modify own account in this way")
)
