// Package session owns durable login sessions and their rotating refresh
// credentials.
//
// # Credential handling
//
// A refresh credential is an opaque random secret handed to the client. Only
// its keyed hash, HMAC-SHA256 under the refresh secret, is ever given to a
// [Repository]. A storage compromise therefore yields no usable credentials.
//
// # Rotation
//
// [Store.Rotate] is a compare-and-swap performed by the repository in a single
// conditioned write: the new hash lands only if the stored hash still equals
// the hash of the presented credential and the session is neither revoked nor
// expired. Of two concurrent rotations with the same credential exactly one
// wins; the other observes [ErrNotFound]. The caller treats that as reuse.
//
// # Failure semantics
//
// Every validation failure (unknown id, wrong credential, revoked, expired)
// is reported as [ErrNotFound] so callers cannot tell them apart. Repository
// faults wrap [ErrStoreUnavailable] and must be answered with a generic server
// error, never retried with the same credential.
//
// # Architecture boundaries
//
// This package owns the [Store] policy, the [Session] model, and the Redis
// repository. The SQL repository lives in storage/sqlite.
//
// # What this package must NOT do
//
//   - Import goSession, jwt, or httpapi (no upward imports).
//   - Store raw refresh credentials in [Session] fields.
package session
