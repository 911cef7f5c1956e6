// Package sessiontest holds the behavioral suite every session.Repository
// must pass when driven through session.Store.
package sessiontest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/goSession/session"
)

// Clock is a manually advanced time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock returns a Clock starting at start.
func NewClock(start time.Time) *Clock { return &Clock{now: start} }

// Now returns the current instant.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// Factory returns a fresh, empty repository for one subtest. A userID that
// the repository needs to exist (for foreign keys) is passed in.
type Factory func(t *testing.T, userID string) session.Repository

const (
	testTTL    = 30 * 24 * time.Hour
	testUserID = "5f0c2a8e-3d1b-4a57-9e0d-1b2c3d4e5f60"
)

// Run executes the suite against repositories built by newRepo.
func Run(t *testing.T, newRepo Factory) {
	t.Run("CreateThenVerify", func(t *testing.T) { testCreateThenVerify(t, newRepo) })
	t.Run("VerifyFailuresAreUniform", func(t *testing.T) { testVerifyFailuresAreUniform(t, newRepo) })
	t.Run("RotateKillsOldCredential", func(t *testing.T) { testRotateKillsOldCredential(t, newRepo) })
	t.Run("ConcurrentRotationSingleWinner", func(t *testing.T) { testConcurrentRotationSingleWinner(t, newRepo) })
	t.Run("RotationRaceManyContenders", func(t *testing.T) { testRotationRaceManyContenders(t, newRepo) })
	t.Run("RevokeBlocksVerifyAndRotate", func(t *testing.T) { testRevokeBlocksVerifyAndRotate(t, newRepo) })
	t.Run("ExpiredSessionRejected", func(t *testing.T) { testExpiredSessionRejected(t, newRepo) })
	t.Run("RotateUpdatesMetadata", func(t *testing.T) { testRotateUpdatesMetadata(t, newRepo) })
}

func newStore(t *testing.T, repo session.Repository, clock *Clock) *session.Store {
	t.Helper()
	store, err := session.NewStore(repo, session.Config{
		Secret:  []byte("refresh-secret"),
		TTL:     testTTL,
		Timeout: 2 * time.Second,
		Now:     clock.Now,
	})
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	return store
}

func credential(t *testing.T) string {
	t.Helper()
	raw, err := session.GenerateRefreshCredential()
	if err != nil {
		t.Fatalf("GenerateRefreshCredential failed: %v", err)
	}
	return raw
}

func testCreateThenVerify(t *testing.T, newRepo Factory) {
	repo := newRepo(t, testUserID)
	clock := NewClock(time.Now())
	store := newStore(t, repo, clock)
	ctx := context.Background()
	r0 := credential(t)

	sess, err := store.Create(ctx, testUserID, r0, session.Metadata{UserAgent: "ua/1", IPAddress: "203.0.113.7"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if sess.RefreshHash == r0 || sess.RefreshHash != store.HashCredential(r0) {
		t.Fatal("expected stored hash to be the keyed hash of the credential")
	}

	stored, err := repo.FindSessionByID(ctx, sess.ID)
	if err != nil {
		t.Fatalf("FindSessionByID failed: %v", err)
	}
	if stored.RefreshHash == r0 {
		t.Fatal("raw credential reached the repository")
	}

	got, err := store.Verify(ctx, sess.ID, r0)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if got.UserID != testUserID || got.UserAgent != "ua/1" || got.IPAddress != "203.0.113.7" {
		t.Fatalf("unexpected session %+v", got)
	}
	if !got.ExpiresAt.Equal(sess.ExpiresAt) {
		t.Fatalf("expected expiry %v, got %v", sess.ExpiresAt, got.ExpiresAt)
	}
}

func testVerifyFailuresAreUniform(t *testing.T, newRepo Factory) {
	repo := newRepo(t, testUserID)
	store := newStore(t, repo, NewClock(time.Now()))
	ctx := context.Background()
	r0 := credential(t)

	sess, err := store.Create(ctx, testUserID, r0, session.Metadata{})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	cases := map[string][2]string{
		"unknown id":       {"00000000-0000-4000-8000-000000000000", r0},
		"wrong credential": {sess.ID, credential(t)},
		"empty credential": {sess.ID, ""},
		"empty id":         {"", r0},
	}
	for name, in := range cases {
		got, err := store.Verify(ctx, in[0], in[1])
		if got != nil || !errors.Is(err, session.ErrNotFound) {
			t.Fatalf("%s: expected (nil, ErrNotFound), got (%v, %v)", name, got, err)
		}
	}
}

func testRotateKillsOldCredential(t *testing.T, newRepo Factory) {
	repo := newRepo(t, testUserID)
	clock := NewClock(time.Now())
	store := newStore(t, repo, clock)
	ctx := context.Background()
	r0, r1 := credential(t), credential(t)

	sess, err := store.Create(ctx, testUserID, r0, session.Metadata{})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	clock.Advance(time.Hour)
	rotated, err := store.Rotate(ctx, sess.ID, r0, r1, session.Metadata{})
	if err != nil {
		t.Fatalf("Rotate failed: %v", err)
	}
	if !rotated.ExpiresAt.After(sess.ExpiresAt) {
		t.Fatalf("expected rotation to renew expiry: before=%v after=%v", sess.ExpiresAt, rotated.ExpiresAt)
	}
	if rotated.RefreshHash != store.HashCredential(r1) {
		t.Fatal("expected rotated record to hold the new hash")
	}

	if _, err := store.Verify(ctx, sess.ID, r0); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("expected old credential to be dead, got %v", err)
	}
	if _, err := store.Verify(ctx, sess.ID, r1); err != nil {
		t.Fatalf("expected new credential to verify, got %v", err)
	}
	if _, err := store.Rotate(ctx, sess.ID, r0, credential(t), session.Metadata{}); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("expected replayed old credential to fail rotation, got %v", err)
	}
}

func testConcurrentRotationSingleWinner(t *testing.T, newRepo Factory) {
	repo := newRepo(t, testUserID)
	store := newStore(t, repo, NewClock(time.Now()))
	ctx := context.Background()
	r0, r1, r2 := credential(t), credential(t), credential(t)

	sess, err := store.Create(ctx, testUserID, r0, session.Metadata{})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	next := []string{r1, r2}
	errs := make([]error, len(next))
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := range next {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			<-start
			_, errs[idx] = store.Rotate(ctx, sess.ID, r0, next[idx], session.Metadata{})
		}(i)
	}
	close(start)
	wg.Wait()

	winners := 0
	var winner string
	for i, err := range errs {
		switch {
		case err == nil:
			winners++
			winner = next[i]
		case errors.Is(err, session.ErrNotFound):
		default:
			t.Fatalf("unexpected rotation error: %v", err)
		}
	}
	if winners != 1 {
		t.Fatalf("expected exactly one winner, got %d", winners)
	}

	stored, err := repo.FindSessionByID(ctx, sess.ID)
	if err != nil {
		t.Fatalf("FindSessionByID failed: %v", err)
	}
	matchesR1 := stored.RefreshHash == store.HashCredential(r1)
	matchesR2 := stored.RefreshHash == store.HashCredential(r2)
	if matchesR1 == matchesR2 {
		t.Fatalf("expected stored hash to match exactly one of r1/r2 (r1=%v r2=%v)", matchesR1, matchesR2)
	}
	if stored.RefreshHash != store.HashCredential(winner) {
		t.Fatal("stored hash does not belong to the winning rotation")
	}
}

func testRotationRaceManyContenders(t *testing.T, newRepo Factory) {
	repo := newRepo(t, testUserID)
	store := newStore(t, repo, NewClock(time.Now()))
	ctx := context.Background()
	r0 := credential(t)

	sess, err := store.Create(ctx, testUserID, r0, session.Metadata{})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	const workers = 16
	next := make([]string, workers)
	for i := range next {
		next[i] = credential(t)
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
	)
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			<-start
			if _, err := store.Rotate(ctx, sess.ID, r0, next[idx], session.Metadata{}); err == nil {
				mu.Lock()
				success++
				mu.Unlock()
			} else if !errors.Is(err, session.ErrNotFound) {
				t.Errorf("unexpected rotation error: %v", err)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	if success != 1 {
		t.Fatalf("expected exactly one successful rotation, got %d", success)
	}
}

func testRevokeBlocksVerifyAndRotate(t *testing.T, newRepo Factory) {
	repo := newRepo(t, testUserID)
	store := newStore(t, repo, NewClock(time.Now()))
	ctx := context.Background()
	r0 := credential(t)

	sess, err := store.Create(ctx, testUserID, r0, session.Metadata{})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	ok, err := store.Revoke(ctx, sess.ID)
	if err != nil || !ok {
		t.Fatalf("expected first revoke to affect the record, got ok=%v err=%v", ok, err)
	}
	ok, err = store.Revoke(ctx, sess.ID)
	if err != nil || !ok {
		t.Fatalf("expected repeat revoke to still report the record, got ok=%v err=%v", ok, err)
	}

	if _, err := store.Verify(ctx, sess.ID, r0); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("expected verify after revoke to fail, got %v", err)
	}
	if _, err := store.Rotate(ctx, sess.ID, r0, credential(t), session.Metadata{}); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("expected rotate after revoke to fail, got %v", err)
	}

	stored, err := repo.FindSessionByID(ctx, sess.ID)
	if err != nil {
		t.Fatalf("expected revoked record to remain, got %v", err)
	}
	if stored.RevokedAt == nil {
		t.Fatal("expected revoked_at to be set")
	}

	ok, err = store.Revoke(ctx, "00000000-0000-4000-8000-000000000000")
	if err != nil || ok {
		t.Fatalf("expected unknown revoke to report false, got ok=%v err=%v", ok, err)
	}
}

func testExpiredSessionRejected(t *testing.T, newRepo Factory) {
	repo := newRepo(t, testUserID)
	clock := NewClock(time.Now())
	store := newStore(t, repo, clock)
	ctx := context.Background()
	r0 := credential(t)

	sess, err := store.Create(ctx, testUserID, r0, session.Metadata{})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	clock.Advance(testTTL + time.Second)
	if _, err := store.Verify(ctx, sess.ID, r0); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("expected expired verify to fail, got %v", err)
	}
	if _, err := store.Rotate(ctx, sess.ID, r0, credential(t), session.Metadata{}); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("expected expired rotate to fail, got %v", err)
	}
}

func testRotateUpdatesMetadata(t *testing.T, newRepo Factory) {
	repo := newRepo(t, testUserID)
	store := newStore(t, repo, NewClock(time.Now()))
	ctx := context.Background()
	r0, r1, r2 := credential(t), credential(t), credential(t)

	sess, err := store.Create(ctx, testUserID, r0, session.Metadata{UserAgent: "old-ua", IPAddress: "198.51.100.1"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	rotated, err := store.Rotate(ctx, sess.ID, r0, r1, session.Metadata{UserAgent: "new-ua", IPAddress: "198.51.100.2"})
	if err != nil {
		t.Fatalf("Rotate failed: %v", err)
	}
	if rotated.UserAgent != "new-ua" || rotated.IPAddress != "198.51.100.2" {
		t.Fatalf("expected metadata to be refreshed, got %+v", rotated)
	}

	kept, err := store.Rotate(ctx, sess.ID, r1, r2, session.Metadata{})
	if err != nil {
		t.Fatalf("Rotate failed: %v", err)
	}
	if kept.UserAgent != "new-ua" || kept.IPAddress != "198.51.100.2" {
		t.Fatalf("expected empty metadata to keep stored values, got %+v", kept)
	}
}
