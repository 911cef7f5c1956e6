package rate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultPrefix is used when Config.Prefix is empty.
const DefaultPrefix = "rl"

// Config holds limiter tuning parameters.
type Config struct {
	Prefix string
	Limit  int
	Window time.Duration
	// Now overrides the clock used for ResetAt.
	Now func() time.Time
}

// Result is the outcome of one Check.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Limiter counts hits per key in fixed windows.
type Limiter struct {
	redis  redis.UniversalClient
	prefix string
	limit  int
	window time.Duration
	now    func() time.Time
}

// New creates a [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) (*Limiter, error) {
	if redisClient == nil {
		return nil, errors.New("rate: redis client is required")
	}
	if cfg.Limit <= 0 {
		return nil, errors.New("rate: limit must be > 0")
	}
	if cfg.Window < time.Second || cfg.Window%time.Second != 0 {
		return nil, errors.New("rate: window must be a whole number of seconds")
	}
	prefix := strings.TrimSpace(cfg.Prefix)
	if prefix == "" {
		prefix = DefaultPrefix
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Limiter{
		redis:  redisClient,
		prefix: prefix,
		limit:  cfg.Limit,
		window: cfg.Window,
		now:    now,
	}, nil
}

// Limit returns the configured per-window maximum.
func (l *Limiter) Limit() int { return l.limit }

// Window returns the configured window length.
func (l *Limiter) Window() time.Duration { return l.window }

// Check records one hit for key and reports whether it fits the window.
func (l *Limiter) Check(ctx context.Context, key string) (Result, error) {
	redisKey := l.prefix + ":" + key

	var (
		incr *redis.IntCmd
		pttl *redis.DurationCmd
	)
	_, err := l.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, redisKey)
		pipe.ExpireNX(ctx, redisKey, l.window)
		pttl = pipe.PTTL(ctx, redisKey)
		return nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	count := incr.Val()
	ttl := pttl.Val()
	if ttl <= 0 {
		ttl = l.window
	}
	remaining := l.limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:   count <= int64(l.limit),
		Limit:     l.limit,
		Remaining: remaining,
		ResetAt:   l.now().Add(ttl),
	}, nil
}
