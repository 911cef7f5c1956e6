// Package jwt issues and verifies the short-lived access tokens handed out after
// login and on every refresh.
//
// Tokens are signed with the asymmetric key pair supplied by a [KeySource]
// (normally a keys.Provider), so verification needs only the public key and
// never touches the session store.
//
// # Claims
//
// Registered: iss, aud, sub, iat, exp. Private: email, name, rep, roles, ver.
// The protected header carries alg and kid.
//
// # Failure semantics
//
// [Manager.Verify] fails closed: every rejection wraps [ErrTokenRejected] and
// never returns partially validated claims. [Manager.DecodeUnsafe] skips all
// checks and exists for diagnostics only.
package jwt
