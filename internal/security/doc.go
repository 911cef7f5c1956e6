// Package security holds the keyed-hash and comparison primitives shared by the
// OAuth state correlator, the CSRF guard, and session verification.
//
// # Signed values
//
// A signed value has the shape raw + "." + hex(HMAC-SHA256(key, raw)). Both
// halves are compared with [Equal]; callers never compare secrets with ==.
//
// # Key separation
//
// [DeriveKey] expands one configured secret into per-purpose subkeys with
// HKDF-SHA256, so a value signed for one purpose never verifies for another.
//
// # What this package must NOT do
//
//   - Perform I/O or hold mutable state.
//   - Be imported outside the goSession module.
package security
