package goSession

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/MrEthical07/goSession/csrf"
	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/keys"
	"github.com/MrEthical07/goSession/user"
)

// Authenticate verifies an access token without touching any store.
//
//	Performance: no I/O.
func (e *Engine) Authenticate(ctx context.Context, token string) (*jwt.AccessClaims, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	start := time.Now()
	claims, err := e.jwt.Verify(token)
	if e.metrics.LatencyEnabled() {
		e.metrics.Observe(MetricAuthenticateLatency, time.Since(start))
	}
	if err != nil {
		e.metricInc(MetricAuthenticateFailure)
		return nil, ErrUnauthorized
	}
	return claims, nil
}

// CurrentUser verifies token and loads the account it names.
func (e *Engine) CurrentUser(ctx context.Context, token string) (*User, error) {
	claims, err := e.Authenticate(ctx, token)
	if err != nil {
		return nil, err
	}
	sctx, cancel := e.storeContext(ctx)
	defer cancel()
	u, err := e.users.GetUserByID(sctx, claims.Subject)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, e.serverError(ctx, "load user", err)
	}
	return u, nil
}

// AssignRole grants role to the user. Granting a held role is a no-op.
// The change shows in access tokens issued after it.
func (e *Engine) AssignRole(ctx context.Context, userID, role string) error {
	return e.changeRole(ctx, userID, role, "assign")
}

// RemoveRole revokes role from the user.
func (e *Engine) RemoveRole(ctx context.Context, userID, role string) error {
	return e.changeRole(ctx, userID, role, "remove")
}

func (e *Engine) changeRole(ctx context.Context, userID, role, action string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	if !user.ValidRole(role) {
		return ErrInvalidRole
	}
	sctx, cancel := e.storeContext(ctx)
	defer cancel()

	var err error
	if action == "assign" {
		err = e.users.AssignRole(sctx, userID, role)
	} else {
		err = e.users.RemoveRole(sctx, userID, role)
	}
	switch {
	case errors.Is(err, user.ErrInvalidRole):
		return ErrInvalidRole
	case errors.Is(err, user.ErrNotFound):
		return ErrUserNotFound
	case err != nil:
		return e.serverError(ctx, action+" role", err)
	}
	e.emitAudit(ctx, AuditRoleChanged, true, userID, "", nil, func() map[string]string {
		return map[string]string{"action": action, "role": role}
	})
	return nil
}

// PublicJWKS returns the key set resource servers use to verify access tokens.
func (e *Engine) PublicJWKS(ctx context.Context) (keys.JWKSet, error) {
	if !e.ready() {
		return keys.JWKSet{}, ErrEngineNotReady
	}
	set, err := e.keys.JWKS()
	if err != nil {
		return keys.JWKSet{}, e.serverError(ctx, "build jwks", err)
	}
	return set, nil
}

// IssueCSRF returns a fresh double-submit pair.
func (e *Engine) IssueCSRF() (csrf.Pair, error) {
	if !e.ready() {
		return csrf.Pair{}, ErrEngineNotReady
	}
	return e.csrf.GeneratePair()
}

// ValidateCSRF checks a header token against the CSRF cookie.
func (e *Engine) ValidateCSRF(headerToken, cookieValue string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	if !e.csrf.Validate(headerToken, cookieValue) {
		e.metricInc(MetricCSRFRejected)
		return ErrCSRFInvalid
	}
	return nil
}

// RateLimitResult is the outcome of [Engine.CheckRateLimit].
type RateLimitResult struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// CheckRateLimit counts one request for key. It returns ErrRateLimited when the
// window is exhausted. When rate limiting is disabled or Redis fails, the
// request is allowed; a Redis failure is logged.
func (e *Engine) CheckRateLimit(ctx context.Context, key string) (RateLimitResult, error) {
	if e == nil || e.limiter == nil {
		return RateLimitResult{Allowed: true}, nil
	}
	sctx, cancel := e.storeContext(ctx)
	res, err := e.limiter.Check(sctx, key)
	cancel()
	if err != nil {
		e.Logger().WarnContext(ctx, "rate limiter unavailable, allowing request", slog.Any("error", err))
		e.metricInc(MetricStoreUnavailable)
		return RateLimitResult{Allowed: true, Limit: e.limiter.Limit()}, nil
	}
	out := RateLimitResult{
		Allowed:   res.Allowed,
		Limit:     res.Limit,
		Remaining: res.Remaining,
		ResetAt:   res.ResetAt,
	}
	if !res.Allowed {
		e.emitRateLimit(ctx, key)
		return out, ErrRateLimited
	}
	return out, nil
}
