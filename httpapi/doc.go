// Package httpapi serves the login, refresh, logout and identity routes of a
// goSession.Engine on a chi router.
//
// Routes:
//
//	GET  /auth/login             302 to the identity provider, sets the state cookie
//	GET  /auth/callback/google   302 to the success or error redirect
//	POST /auth/refresh           200 {"accessToken"} with rotated cookies
//	POST /auth/logout            204, requires the CSRF pair
//	GET  /auth/me                current account
//	GET  /auth/csrf              fresh CSRF pair
//	GET  /.well-known/jwks.json  public signing keys
//	GET  /healthz                liveness
package httpapi
