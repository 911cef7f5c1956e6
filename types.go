package goSession

import (
	"context"
	"time"

	"github.com/MrEthical07/goSession/user"
)

// User is an account with its roles.
type User = user.User

// Profile is the verified identity an [IdentityProvider] returns.
type Profile = user.Profile

// Roles recognised by the engine.
const (
	RoleUser          = user.RoleUser
	RoleVerifiedStore = user.RoleVerifiedStore
	RoleCurator       = user.RoleCurator
	RoleAdmin         = user.RoleAdmin
)

// UserStore is the account collaborator. Lookups return an error wrapping
// user.ErrNotFound when nothing matches. storage/sqlite.Store satisfies it.
type UserStore interface {
	GetUserByID(ctx context.Context, id string) (*User, error)
	UpsertFromProfile(ctx context.Context, p Profile, now time.Time) (*User, error)
	AssignRole(ctx context.Context, userID, role string) error
	RemoveRole(ctx context.Context, userID, role string) error
}

// IdentityProvider is the external login collaborator. identity/google.Provider
// satisfies it.
type IdentityProvider interface {
	AuthCodeURL(state string) string
	ExchangeCode(ctx context.Context, code string) (string, error)
	FetchProfile(ctx context.Context, accessToken string) (*Profile, error)
}

// LoginRedirect is the result of [Engine.BeginLogin]. StateCookie must be set
// on the browser before redirecting to URL.
type LoginRedirect struct {
	URL         string
	StateCookie string
}

// CallbackInput carries the provider callback query and the state cookie.
type CallbackInput struct {
	Code        string
	State       string
	Error       string
	StateCookie string
}

// TokenPair is issued by login and refresh. RefreshCookie is the opaque
// "session:credential" value for the refresh cookie.
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshCookie    string
	RefreshExpiresAt time.Time
	SessionID        string
	UserID           string
}
