package goSession

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/MrEthical07/goSession/csrf"
	"github.com/MrEthical07/goSession/internal/audit"
	"github.com/MrEthical07/goSession/internal/rate"
	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/keys"
	"github.com/MrEthical07/goSession/oauthstate"
	"github.com/MrEthical07/goSession/session"
)

// Engine runs the login, refresh, logout and token verification flows. It is
// safe for concurrent use once built.
type Engine struct {
	config Config
	logger *slog.Logger
	now    func() time.Time

	keys     *keys.Provider
	jwt      *jwt.Manager
	state    *oauthstate.Correlator
	csrf     *csrf.Guard
	sessions *session.Store
	limiter  *rate.Limiter

	users    UserStore
	identity IdentityProvider

	audit   *audit.Dispatcher
	metrics *Metrics
}

// Close flushes pending audit events and stops the dispatcher.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() Config {
	if e == nil {
		return Config{}
	}
	return cloneConfig(e.config)
}

// Logger returns the engine logger.
func (e *Engine) Logger() *slog.Logger {
	if e == nil || e.logger == nil {
		return slog.Default()
	}
	return e.logger
}

// AuditDropped returns the number of audit events dropped on a full buffer.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a copy of the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) ready() bool {
	return e != nil && e.sessions != nil && e.jwt != nil
}

// storeContext bounds a user store or rate limiter call by the store timeout.
func (e *Engine) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if d := e.config.Timeouts.Store; d > 0 {
		return context.WithTimeout(ctx, d)
	}
	return context.WithCancel(ctx)
}

func (e *Engine) identityContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if d := e.config.Timeouts.Identity; d > 0 {
		return context.WithTimeout(ctx, d)
	}
	return context.WithCancel(ctx)
}

// serverError logs a collaborator failure and returns ErrServer.
func (e *Engine) serverError(ctx context.Context, op string, err error) error {
	e.metricInc(MetricStoreUnavailable)
	e.Logger().ErrorContext(ctx, "collaborator failure", slog.String("op", op), slog.Any("error", err))
	return ErrServer
}

func metadataFromContext(ctx context.Context) session.Metadata {
	return session.Metadata{
		UserAgent: userAgentFromContext(ctx),
		IPAddress: clientIPFromContext(ctx),
	}
}

func (e *Engine) issueAccess(u *User) (string, time.Time, error) {
	token, err := e.jwt.Issue(jwt.Claims{
		Subject:       u.ID,
		Email:         u.Email,
		Name:          u.DisplayName,
		Reputation:    u.Reputation,
		Roles:         u.Roles,
		VerifiedStore: u.VerifiedStore,
	})
	if err != nil {
		return "", time.Time{}, err
	}
	return token, e.now().Add(e.jwt.AccessTTL()), nil
}

func isStoreFault(err error) bool {
	return errors.Is(err, session.ErrStoreUnavailable)
}
