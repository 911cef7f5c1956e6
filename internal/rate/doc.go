// Package rate implements the Redis-backed fixed-window request limiter.
//
// # Window semantics
//
// Each Check runs INCR, EXPIRE NX and PTTL in one MULTI/EXEC round trip. The
// first hit in a window sets the expiry; later hits only count. Bursts that
// straddle a window boundary can reach twice the nominal limit.
//
// Keys are "prefix:key". The default prefix is "rl".
package rate
