// Package user defines the account records the login flow reads and upserts.
package user

import (
	"errors"
	"time"
)

// Role names an authorization role carried in access tokens.
type Role = string

const (
	RoleUser          Role = "USER"
	RoleVerifiedStore Role = "VERIFIED_STORE"
	RoleCurator       Role = "CURATOR"
	RoleAdmin         Role = "ADMIN"
)

// DefaultRole is granted to every account created or linked through login.
const DefaultRole = RoleUser

var (
	// ErrNotFound is returned when no account matches a lookup.
	ErrNotFound = errors.New("user not found")
	// ErrInvalidRole is returned for role names outside the known set.
	ErrInvalidRole = errors.New("invalid role")
)

// ValidRole reports whether r is a known role.
func ValidRole(r string) bool {
	switch r {
	case RoleUser, RoleVerifiedStore, RoleCurator, RoleAdmin:
		return true
	default:
		return false
	}
}

// User is an account with its current roles.
type User struct {
	ID            string
	DisplayName   string
	Email         string
	Reputation    int
	VerifiedStore bool
	ExternalID    string
	AvatarURL     string
	LastLoginAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
	Roles         []string
}

// Profile is the verified identity returned by the external provider.
type Profile struct {
	SubjectID     string
	Email         string
	EmailVerified bool
	DisplayName   string
	AvatarURL     string
}
