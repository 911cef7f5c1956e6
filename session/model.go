package session

import "time"

// Session is one login session. RefreshHash is the keyed hash of the currently
// active refresh credential, never the credential itself.
type Session struct {
	ID          string
	UserID      string
	RefreshHash string
	UserAgent   string
	IPAddress   string
	CreatedAt   time.Time
	ExpiresAt   time.Time
	RevokedAt   *time.Time
}

// Live reports whether the session is neither revoked nor expired at now.
func (s *Session) Live(now time.Time) bool {
	return s != nil && s.RevokedAt == nil && s.ExpiresAt.After(now)
}

// Metadata is optional client information recorded on create and rotate.
type Metadata struct {
	UserAgent string
	IPAddress string
}

// Rotation is the conditioned write handed to [Repository.UpdateSessionIfHashMatches].
// The repository applies it only when the session identified by ID has
// RefreshHash == ExpectedHash, no revocation, and ExpiresAt after Now.
// Empty UserAgent or IPAddress leave the stored values untouched.
type Rotation struct {
	ID           string
	ExpectedHash string
	NextHash     string
	ExpiresAt    time.Time
	UserAgent    string
	IPAddress    string
	Now          time.Time
}
