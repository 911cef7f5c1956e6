package goSession

import (
	"context"
	"log/slog"

	"github.com/MrEthical07/goSession/session"
)

// BeginLogin creates a fresh OAuth state and returns the provider URL.
// The caller stores StateCookie in a short-lived http-only cookie.
func (e *Engine) BeginLogin(ctx context.Context) (*LoginRedirect, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	pair, err := e.state.Create()
	if err != nil {
		return nil, e.serverError(ctx, "create oauth state", err)
	}
	return &LoginRedirect{
		URL:         e.identity.AuthCodeURL(pair.State),
		StateCookie: pair.CookieValue,
	}, nil
}

// CompleteLogin handles the provider callback. It checks the provider error
// and the state before any network call, then exchanges the code, loads the
// profile, upserts the account, and opens a session.
//
// CompleteLogin returns ErrProviderDenied, ErrInvalidState, ErrEmailNotVerified
// or ErrServer. Map them with [ReasonCode].
func (e *Engine) CompleteLogin(ctx context.Context, in CallbackInput) (*TokenPair, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	if in.Error != "" {
		err := newProviderError(in.Error)
		e.loginFailed(ctx, "", err)
		return nil, err
	}
	if in.Code == "" || !e.state.Verify(in.State, in.StateCookie) {
		e.metricInc(MetricStateRejected)
		e.Logger().WarnContext(ctx, "oauth state rejected", slog.String("ip", clientIPFromContext(ctx)))
		e.loginFailed(ctx, "", ErrInvalidState)
		return nil, ErrInvalidState
	}

	profile, err := e.fetchProfile(ctx, in.Code)
	if err != nil {
		e.loginFailed(ctx, "", err)
		return nil, err
	}
	if !profile.EmailVerified {
		e.loginFailed(ctx, "", ErrEmailNotVerified)
		return nil, ErrEmailNotVerified
	}

	sctx, cancel := e.storeContext(ctx)
	u, err := e.users.UpsertFromProfile(sctx, *profile, e.now())
	cancel()
	if err != nil {
		err = e.serverError(ctx, "upsert user", err)
		e.loginFailed(ctx, "", err)
		return nil, err
	}

	pair, err := e.openSession(ctx, u)
	if err != nil {
		e.loginFailed(ctx, u.ID, err)
		return nil, err
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, AuditLoginSuccess, true, u.ID, pair.SessionID, nil, nil)
	return pair, nil
}

func (e *Engine) fetchProfile(ctx context.Context, code string) (*Profile, error) {
	ictx, cancel := e.identityContext(ctx)
	defer cancel()

	accessToken, err := e.identity.ExchangeCode(ictx, code)
	if err != nil {
		return nil, e.serverError(ctx, "exchange code", err)
	}
	profile, err := e.identity.FetchProfile(ictx, accessToken)
	if err != nil {
		return nil, e.serverError(ctx, "fetch profile", err)
	}
	if profile == nil {
		return nil, e.serverError(ctx, "fetch profile", errNilProfile)
	}
	return profile, nil
}

func (e *Engine) openSession(ctx context.Context, u *User) (*TokenPair, error) {
	raw, err := session.GenerateRefreshCredential()
	if err != nil {
		return nil, e.serverError(ctx, "generate refresh credential", err)
	}
	sess, err := e.sessions.Create(ctx, u.ID, raw, metadataFromContext(ctx))
	if err != nil {
		return nil, e.serverError(ctx, "create session", err)
	}
	e.metricInc(MetricSessionCreated)

	token, exp, err := e.issueAccess(u)
	if err != nil {
		return nil, e.serverError(ctx, "issue access token", err)
	}
	return &TokenPair{
		AccessToken:      token,
		AccessExpiresAt:  exp,
		RefreshCookie:    session.EncodeCookie(sess.ID, raw),
		RefreshExpiresAt: sess.ExpiresAt,
		SessionID:        sess.ID,
		UserID:           u.ID,
	}, nil
}

func (e *Engine) loginFailed(ctx context.Context, userID string, err error) {
	e.metricInc(MetricLoginFailure)
	e.emitAudit(ctx, AuditLoginFailure, false, userID, "", err, nil)
}
