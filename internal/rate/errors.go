package rate

import "errors"

var (
	// ErrRedisUnavailable wraps any Redis failure during Check.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
