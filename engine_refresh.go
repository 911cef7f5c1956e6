package goSession

import (
	"context"
	"errors"
	"log/slog"

	"github.com/MrEthical07/goSession/session"
	"github.com/MrEthical07/goSession/user"
)

// Refresh rotates the refresh credential carried by cookieValue and issues a
// new access token. Every validation failure returns ErrUnauthorized. A
// credential that loses a concurrent rotation returns ErrRefreshReuse, and
// with Security.RevokeOnRefreshReuse the session is revoked as well.
//
//	Performance: 1 session read, 1 user read, 1 conditioned session write.
func (e *Engine) Refresh(ctx context.Context, cookieValue string) (*TokenPair, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	sessionID, raw, ok := session.ParseCookie(cookieValue)
	if !ok {
		return nil, e.refreshFailed(ctx, "", ErrUnauthorized)
	}

	sess, err := e.sessions.Verify(ctx, sessionID, raw)
	if err != nil {
		if isStoreFault(err) {
			return nil, e.refreshFailed(ctx, sessionID, e.serverError(ctx, "verify session", err))
		}
		return nil, e.refreshFailed(ctx, sessionID, ErrUnauthorized)
	}

	sctx, cancel := e.storeContext(ctx)
	u, err := e.users.GetUserByID(sctx, sess.UserID)
	cancel()
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, e.refreshFailed(ctx, sessionID, ErrUnauthorized)
		}
		return nil, e.refreshFailed(ctx, sessionID, e.serverError(ctx, "load user", err))
	}

	next, err := session.GenerateRefreshCredential()
	if err != nil {
		return nil, e.refreshFailed(ctx, sessionID, e.serverError(ctx, "generate refresh credential", err))
	}

	rotated, err := e.sessions.Rotate(ctx, sessionID, raw, next, metadataFromContext(ctx))
	if err != nil {
		if isStoreFault(err) {
			return nil, e.refreshFailed(ctx, sessionID, e.serverError(ctx, "rotate session", err))
		}
		e.reuseDetected(ctx, sess)
		return nil, e.refreshFailed(ctx, sessionID, ErrRefreshReuse)
	}

	token, exp, err := e.issueAccess(u)
	if err != nil {
		return nil, e.refreshFailed(ctx, sessionID, e.serverError(ctx, "issue access token", err))
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, AuditRefreshSuccess, true, u.ID, rotated.ID, nil, nil)
	return &TokenPair{
		AccessToken:      token,
		AccessExpiresAt:  exp,
		RefreshCookie:    session.EncodeCookie(rotated.ID, next),
		RefreshExpiresAt: rotated.ExpiresAt,
		SessionID:        rotated.ID,
		UserID:           u.ID,
	}, nil
}

func (e *Engine) reuseDetected(ctx context.Context, sess *session.Session) {
	e.metricInc(MetricRefreshReuseDetected)
	e.Logger().WarnContext(ctx, "refresh credential reuse", slog.String("session_id", sess.ID), slog.String("user_id", sess.UserID))

	revoked := false
	if e.config.Security.RevokeOnRefreshReuse {
		ok, err := e.sessions.Revoke(ctx, sess.ID)
		if err != nil {
			e.Logger().ErrorContext(ctx, "revoke after reuse failed", slog.String("session_id", sess.ID), slog.Any("error", err))
		}
		if ok {
			revoked = true
			e.metricInc(MetricSessionRevoked)
		}
	}
	e.emitAudit(ctx, AuditRefreshReuseDetected, false, sess.UserID, sess.ID, ErrRefreshReuse, func() map[string]string {
		if revoked {
			return map[string]string{"session_revoked": "true"}
		}
		return nil
	})
}

func (e *Engine) refreshFailed(ctx context.Context, sessionID string, err error) error {
	e.metricInc(MetricRefreshFailure)
	e.emitAudit(ctx, AuditRefreshFailure, false, "", sessionID, err, nil)
	return err
}

// Logout revokes the session named by cookieValue. A missing or malformed
// cookie is a successful no-op. Only a store fault returns an error.
func (e *Engine) Logout(ctx context.Context, cookieValue string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	e.metricInc(MetricLogout)

	sessionID, _, ok := session.ParseCookie(cookieValue)
	if !ok {
		e.emitAudit(ctx, AuditLogout, true, "", "", nil, nil)
		return nil
	}
	revoked, err := e.sessions.Revoke(ctx, sessionID)
	if err != nil {
		return e.serverError(ctx, "revoke session", err)
	}
	if revoked {
		e.metricInc(MetricSessionRevoked)
	}
	e.emitAudit(ctx, AuditLogout, true, "", sessionID, nil, nil)
	return nil
}
