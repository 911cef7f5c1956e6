// Package internal holds helpers private to goSession, chiefly secure random
// generation for state values, CSRF secrets, refresh credentials and record
// identifiers.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher and Sink implementations)
//   - rate: Redis-backed fixed-window counter
//   - security: constant-time comparison, HMAC signed values, HKDF subkeys
//   - cli: the gosession command tree
//   - enginetest: an Engine on in-memory SQLite and miniredis for tests
package internal
