package goSession

import (
	"errors"
	"regexp"
)

var (
	// ErrInvalidState is returned when the OAuth callback state is missing,
	// forged, or does not match its cookie.
	ErrInvalidState = errors.New("invalid oauth state")
	// ErrProviderDenied is returned when the identity provider reports an error
	// on the callback. Use [ProviderCode] to read the sanitized code.
	ErrProviderDenied = errors.New("identity provider denied login")
	// ErrEmailNotVerified is returned when the provider profile has an unverified email.
	ErrEmailNotVerified = errors.New("email not verified")
	// ErrUnauthorized is the uniform refresh and access failure.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrRefreshReuse is returned when a refresh credential lost a rotation race
	// or was already rotated. It wraps ErrUnauthorized.
	ErrRefreshReuse = wrapUnauthorized("refresh credential reuse")
	// ErrUserNotFound is returned when a valid token names an unknown account.
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidRole is returned for role names outside the known set.
	ErrInvalidRole = errors.New("invalid role")
	// ErrRateLimited is returned when a caller exceeded its request window.
	ErrRateLimited = errors.New("rate limited")
	// ErrCSRFInvalid is returned when the double-submit pair does not validate.
	ErrCSRFInvalid = errors.New("csrf token invalid")
	// ErrServer is returned when a collaborator failed. The cause is logged, not returned.
	ErrServer = errors.New("server error")
	// ErrEngineNotReady is returned by methods on a nil or unbuilt Engine.
	ErrEngineNotReady = errors.New("engine not initialized")

	errNilProfile = errors.New("identity provider returned no profile")
)

type unauthorizedError struct{ msg string }

func wrapUnauthorized(msg string) error { return &unauthorizedError{msg: msg} }

func (e *unauthorizedError) Error() string { return e.msg }

func (e *unauthorizedError) Unwrap() error { return ErrUnauthorized }

// providerError carries the sanitized provider error code.
type providerError struct{ code string }

func (e *providerError) Error() string { return "identity provider denied login: " + e.code }

func (e *providerError) Unwrap() error { return ErrProviderDenied }

var providerCodePattern = regexp.MustCompile(`^[a-z0-9_]{1,64}$`)

func newProviderError(code string) error {
	if !providerCodePattern.MatchString(code) {
		code = "provider_error"
	}
	return &providerError{code: code}
}

// ProviderCode returns the sanitized provider code carried by err, or "".
func ProviderCode(err error) string {
	var pe *providerError
	if errors.As(err, &pe) {
		return pe.code
	}
	return ""
}

// Reason codes are the only failure detail exposed to clients.
const (
	ReasonInvalidState     = "invalid_state"
	ReasonEmailNotVerified = "email_not_verified"
	ReasonUnauthorized     = "unauthorized"
	ReasonRefreshReuse     = "refresh_reuse"
	ReasonUserNotFound     = "user_not_found"
	ReasonInvalidRole      = "invalid_role"
	ReasonRateLimited      = "rate_limited"
	ReasonCSRFInvalid      = "csrf_invalid"
	ReasonServerError      = "server_error"
)

// ReasonCode maps err to a coarse public code. Provider denials map to the
// provider's own sanitized code. A nil error maps to "".
func ReasonCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrProviderDenied):
		if code := ProviderCode(err); code != "" {
			return code
		}
		return "provider_error"
	case errors.Is(err, ErrInvalidState):
		return ReasonInvalidState
	case errors.Is(err, ErrEmailNotVerified):
		return ReasonEmailNotVerified
	case errors.Is(err, ErrRefreshReuse):
		return ReasonRefreshReuse
	case errors.Is(err, ErrUnauthorized):
		return ReasonUnauthorized
	case errors.Is(err, ErrUserNotFound):
		return ReasonUserNotFound
	case errors.Is(err, ErrInvalidRole):
		return ReasonInvalidRole
	case errors.Is(err, ErrRateLimited):
		return ReasonRateLimited
	case errors.Is(err, ErrCSRFInvalid):
		return ReasonCSRFInvalid
	default:
		return ReasonServerError
	}
}
