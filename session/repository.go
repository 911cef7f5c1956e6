package session

import (
	"context"
	"time"
)

// Repository is the persistence contract behind [Store]. Implementations must
// perform UpdateSessionIfHashMatches as one atomic conditioned write.
type Repository interface {
	// FindSessionByID returns ErrNotFound when no record exists.
	FindSessionByID(ctx context.Context, id string) (*Session, error)
	InsertSession(ctx context.Context, sess *Session) error
	// UpdateSessionIfHashMatches returns the updated record, or ErrNotFound
	// when the condition in r does not hold.
	UpdateSessionIfHashMatches(ctx context.Context, r Rotation) (*Session, error)
	// MarkSessionRevoked sets revoked_at unconditionally and reports whether a
	// record was affected.
	MarkSessionRevoked(ctx context.Context, id string, at time.Time) (bool, error)
}
