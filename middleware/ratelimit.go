package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	goSession "github.com/MrEthical07/goSession"
)

// KeyFunc names the bucket a request is counted against.
type KeyFunc func(*http.Request) string

// ByClientIP counts requests per client IP.
func ByClientIP(r *http.Request) string { return "ip:" + ClientIP(r) }

// RateLimit counts each request against key and answers 429 once the window
// is exhausted. A nil key uses [ByClientIP]. When the limiter is disabled or
// Redis is down, requests pass without headers.
func RateLimit(engine *goSession.Engine, key KeyFunc) func(http.Handler) http.Handler {
	if key == nil {
		key = ByClientIP
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, err := engine.CheckRateLimit(r.Context(), key(r))
			if !res.ResetAt.IsZero() {
				h := w.Header()
				h.Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
				h.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
				h.Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))
			}
			if errors.Is(err, goSession.ErrRateLimited) {
				w.Header().Set("Retry-After", retryAfter(time.Until(res.ResetAt)))
				writeError(w, http.StatusTooManyRequests, goSession.ReasonRateLimited)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func retryAfter(d time.Duration) string {
	secs := int(d.Round(time.Second).Seconds())
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}
