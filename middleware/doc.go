// Package middleware adapts goSession.Engine checks to net/http handlers.
//
// # Handlers
//
//   - [ClientMetadata] records the client IP and user agent on the request context.
//   - [RequireAccess] verifies the access token and injects its claims.
//   - [RequireCSRF] enforces the double-submit CSRF pair on unsafe methods.
//   - [RateLimit] applies the fixed-window limiter and sets X-RateLimit-* headers.
//
// Every decision is delegated to the Engine. This package only translates
// HTTP requests into Engine calls and Engine errors into status codes.
package middleware
