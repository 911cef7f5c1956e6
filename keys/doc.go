// Package keys loads the asymmetric signing key pair for access tokens.
//
// A [Provider] is allocation-only at construction. PEM material is parsed on the
// first call to [Provider.PrivateKey], [Provider.PublicKey], or
// [Provider.PublicJWK]; each value is computed at most once and every caller,
// including concurrent first callers, observes the identical result. Malformed
// key material surfaces as [ErrInvalidKeyMaterial] at that first use and is
// never retried.
//
// # What this package must NOT do
//
//   - Read configuration from the environment (callers pass PEM bytes).
//   - Sign or verify tokens (see package jwt).
package keys
