package rate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLimiter(t *testing.T, limit int, window time.Duration) (*Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	l, err := New(rdb, Config{Prefix: "test", Limit: limit, Window: window})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return l, mr
}

func TestCheckCountsDownThenDenies(t *testing.T) {
	l, _ := newTestLimiter(t, 3, time.Minute)
	ctx := context.Background()

	prev := 4
	for i := 0; i < 3; i++ {
		res, err := l.Check(ctx, "203.0.113.9")
		if err != nil {
			t.Fatalf("check %d: %v", i, err)
		}
		if !res.Allowed {
			t.Fatalf("check %d unexpectedly denied", i)
		}
		if res.Remaining >= prev {
			t.Fatalf("remaining did not decrease: %d then %d", prev, res.Remaining)
		}
		prev = res.Remaining
	}
	if prev != 0 {
		t.Fatalf("expected remaining 0 at limit, got %d", prev)
	}

	res, err := l.Check(ctx, "203.0.113.9")
	if err != nil {
		t.Fatalf("over-limit check: %v", err)
	}
	if res.Allowed || res.Remaining != 0 {
		t.Fatalf("expected denial with 0 remaining, got %+v", res)
	}
}

func TestCheckResetsAfterWindow(t *testing.T) {
	l, mr := newTestLimiter(t, 1, time.Minute)
	ctx := context.Background()

	if res, _ := l.Check(ctx, "k"); !res.Allowed {
		t.Fatal("first hit should be allowed")
	}
	if res, _ := l.Check(ctx, "k"); res.Allowed {
		t.Fatal("second hit should be denied")
	}
	mr.FastForward(time.Minute + time.Second)
	if res, _ := l.Check(ctx, "k"); !res.Allowed {
		t.Fatal("hit after window should be allowed")
	}
}

func TestCheckSetsExpiryOnlyOnFirstHit(t *testing.T) {
	l, mr := newTestLimiter(t, 10, time.Minute)
	ctx := context.Background()

	if _, err := l.Check(ctx, "k"); err != nil {
		t.Fatalf("check: %v", err)
	}
	mr.FastForward(40 * time.Second)
	if _, err := l.Check(ctx, "k"); err != nil {
		t.Fatalf("check: %v", err)
	}
	ttl := mr.TTL("test:k")
	if ttl <= 0 || ttl > 20*time.Second {
		t.Fatalf("expiry was extended or missing: %v", ttl)
	}
}

func TestCheckResetAtWithinWindow(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	l, err := New(rdb, Config{Limit: 5, Window: time.Minute, Now: func() time.Time { return now }})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	res, err := l.Check(context.Background(), "k")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if res.Limit != 5 || res.Remaining != 4 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.ResetAt.After(now.Add(time.Minute)) || !res.ResetAt.After(now) {
		t.Fatalf("resetAt out of range: %v", res.ResetAt)
	}
	if !mr.Exists("rl:k") {
		t.Fatal("expected default prefix key rl:k")
	}
}

func TestKeysAreIndependent(t *testing.T) {
	l, _ := newTestLimiter(t, 1, time.Minute)
	ctx := context.Background()
	if res, _ := l.Check(ctx, "a"); !res.Allowed {
		t.Fatal("a should be allowed")
	}
	if res, _ := l.Check(ctx, "b"); !res.Allowed {
		t.Fatal("b should be allowed")
	}
}

func TestCheckRedisDown(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rdb.Close()
	l, err := New(rdb, Config{Limit: 1, Window: time.Minute})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	mr.Close()
	if _, err := l.Check(context.Background(), "k"); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
}

func TestNewValidatesConfig(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	if _, err := New(nil, Config{Limit: 1, Window: time.Minute}); err == nil {
		t.Fatal("expected error for nil client")
	}
	if _, err := New(rdb, Config{Limit: 0, Window: time.Minute}); err == nil {
		t.Fatal("expected error for zero limit")
	}
	if _, err := New(rdb, Config{Limit: 1, Window: time.Millisecond}); err == nil {
		t.Fatal("expected error for sub-second window")
	}
	if _, err := New(rdb, Config{Limit: 1, Window: 1500 * time.Millisecond}); err == nil {
		t.Fatal("expected error for fractional-second window")
	}
}
