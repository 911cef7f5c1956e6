package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/MrEthical07/goSession/internal"
	"github.com/MrEthical07/goSession/internal/security"
)

// ErrNotFound is the uniform result of a failed verify or rotate.
var ErrNotFound = errors.New("session not found")

// ErrStoreUnavailable wraps repository faults.
var ErrStoreUnavailable = errors.New("session store unavailable")

var (
	errEmptyCredential = errors.New("refresh credential required")
	errSameCredential  = errors.New("next refresh credential must differ from the current one")
)

const (
	maxUserAgentLen = 512
	maxIPAddressLen = 64
)

// Config holds Store parameters.
type Config struct {
	// Secret keys the refresh-credential hash.
	Secret []byte
	// TTL is the session lifetime applied on create and on every rotation.
	TTL time.Duration
	// Timeout bounds each repository call. Zero disables the bound.
	Timeout time.Duration
	// Now overrides the clock; nil means time.Now.
	Now func() time.Time
}

// Store applies session policy over a [Repository].
//
//	Security: raw credentials never reach the repository; rotation is CAS.
type Store struct {
	repo    Repository
	secret  []byte
	ttl     time.Duration
	timeout time.Duration
	now     func() time.Time
}

// NewStore returns a Store backed by repo.
func NewStore(repo Repository, cfg Config) (*Store, error) {
	if repo == nil {
		return nil, errors.New("session repository required")
	}
	if len(cfg.Secret) == 0 {
		return nil, errors.New("refresh secret required")
	}
	if cfg.TTL <= 0 {
		return nil, errors.New("session TTL must be > 0")
	}
	if cfg.Timeout < 0 {
		return nil, errors.New("session timeout must be >= 0")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	secret := make([]byte, len(cfg.Secret))
	copy(secret, cfg.Secret)

	return &Store{
		repo:    repo,
		secret:  secret,
		ttl:     cfg.TTL,
		timeout: cfg.Timeout,
		now:     cfg.Now,
	}, nil
}

// TTL reports the configured session lifetime.
func (s *Store) TTL() time.Duration { return s.ttl }

// GenerateRefreshCredential returns a fresh 48-byte random credential, hex encoded.
func GenerateRefreshCredential() (string, error) {
	return internal.RandomHex(internal.RefreshTokenSize)
}

// HashCredential returns the keyed hash stored for raw.
func (s *Store) HashCredential(raw string) string {
	return security.Keyed(s.secret, raw)
}

// Create persists a new session for userID holding the hash of raw.
//
//	Performance: 1 repository write.
func (s *Store) Create(ctx context.Context, userID, raw string, md Metadata) (*Session, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, errors.New("user id required")
	}
	if raw == "" {
		return nil, errEmptyCredential
	}

	id, err := internal.NewID()
	if err != nil {
		return nil, err
	}

	now := s.now().UTC().Truncate(time.Millisecond)
	sess := &Session{
		ID:          id,
		UserID:      userID,
		RefreshHash: s.HashCredential(raw),
		UserAgent:   clip(md.UserAgent, maxUserAgentLen),
		IPAddress:   clip(md.IPAddress, maxIPAddressLen),
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.ttl),
	}

	ctx, cancel := s.bound(ctx)
	defer cancel()

	if err := s.repo.InsertSession(ctx, sess); err != nil {
		return nil, unavailable(err)
	}
	return sess, nil
}

// Rotate replaces the hash of expectedRaw with the hash of nextRaw and renews
// the expiry, in one conditioned write. It returns ErrNotFound when the
// session is unknown, revoked, expired, or no longer holds expectedRaw.
//
//	Performance: 1 repository conditioned write.
//	Security: of concurrent rotations with one credential exactly one succeeds.
func (s *Store) Rotate(ctx context.Context, id, expectedRaw, nextRaw string, md Metadata) (*Session, error) {
	if id == "" || expectedRaw == "" {
		return nil, ErrNotFound
	}
	if nextRaw == "" {
		return nil, errEmptyCredential
	}
	if nextRaw == expectedRaw {
		return nil, errSameCredential
	}

	now := s.now().UTC().Truncate(time.Millisecond)
	ctx, cancel := s.bound(ctx)
	defer cancel()

	sess, err := s.repo.UpdateSessionIfHashMatches(ctx, Rotation{
		ID:           id,
		ExpectedHash: s.HashCredential(expectedRaw),
		NextHash:     s.HashCredential(nextRaw),
		ExpiresAt:    now.Add(s.ttl),
		UserAgent:    clip(md.UserAgent, maxUserAgentLen),
		IPAddress:    clip(md.IPAddress, maxIPAddressLen),
		Now:          now,
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, unavailable(err)
	}
	return sess, nil
}

// Verify returns the session when it is live and holds raw, and ErrNotFound
// otherwise, without saying which check failed.
//
//	Performance: 1 repository read.
func (s *Store) Verify(ctx context.Context, id, raw string) (*Session, error) {
	if id == "" || raw == "" {
		return nil, ErrNotFound
	}

	ctx, cancel := s.bound(ctx)
	defer cancel()

	sess, err := s.repo.FindSessionByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, unavailable(err)
	}

	hashOK := security.Equal(s.HashCredential(raw), sess.RefreshHash)
	live := sess.Live(s.now())
	if !hashOK || !live {
		return nil, ErrNotFound
	}
	return sess, nil
}

// Revoke marks the session revoked. It is idempotent and reports whether a
// record was affected.
func (s *Store) Revoke(ctx context.Context, id string) (bool, error) {
	if id == "" {
		return false, nil
	}

	ctx, cancel := s.bound(ctx)
	defer cancel()

	ok, err := s.repo.MarkSessionRevoked(ctx, id, s.now().UTC())
	if err != nil {
		return false, unavailable(err)
	}
	return ok, nil
}

func (s *Store) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func unavailable(err error) error {
	if errors.Is(err, ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

func clip(v string, n int) string {
	v = strings.TrimSpace(v)
	if len(v) <= n {
		return v
	}
	for n > 0 && !utf8.RuneStart(v[n]) {
		n--
	}
	return v[:n]
}
