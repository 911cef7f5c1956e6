// Package goSession is the credential and session lifecycle engine behind a
// browser-facing OAuth login: provider handshake, rotating refresh sessions,
// signed access tokens, CSRF protection and request throttling.
//
// The package is designed for concurrent server workloads. Engine methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// goSession is the public surface. It exposes [Engine], [Builder], [Config]
// and value types. Primitives live in sub-packages: keys, jwt, oauthstate,
// csrf and session. Storage, identity and HTTP adapters sit beside them.
//
// # What this package must NOT do
//
//   - Return collaborator error detail to callers. Failures are logged and
//     surfaced as sentinel errors mapped by [ReasonCode].
//   - Log or store raw refresh credentials, state values or CSRF secrets.
//   - Import the httpapi or middleware packages (no import cycles).
package goSession
