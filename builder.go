package goSession

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/MrEthical07/goSession/csrf"
	"github.com/MrEthical07/goSession/internal/audit"
	"github.com/MrEthical07/goSession/internal/rate"
	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/keys"
	"github.com/MrEthical07/goSession/oauthstate"
	"github.com/MrEthical07/goSession/session"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an [Engine]. Configure it during initialization, call
// Build once, and discard it.
type Builder struct {
	config Config
	redis  redis.UniversalClient
	logger *slog.Logger
	now    func() time.Time

	users     UserStore
	identity  IdentityProvider
	sessions  session.Repository
	auditSink AuditSink

	keyPreflight bool
	built        bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{config: DefaultConfig()}
}

// WithConfig replaces the configuration. The Builder keeps its own copy.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the client used by the rate limiter and, when no session
// repository is given, by the Redis session repository.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithLogger sets the structured logger. The default is JSON on stderr.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithUserStore sets the account collaborator.
func (b *Builder) WithUserStore(users UserStore) *Builder {
	b.users = users
	return b
}

// WithIdentityProvider sets the external login collaborator.
func (b *Builder) WithIdentityProvider(p IdentityProvider) *Builder {
	b.identity = p
	return b
}

// WithSessionRepository sets where sessions are persisted.
func (b *Builder) WithSessionRepository(repo session.Repository) *Builder {
	b.sessions = repo
	return b
}

// WithAuditSink sets the audit destination. The default logs through the engine logger.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithClock overrides time.Now for sessions, tokens and rate-limit resets.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// WithKeyPreflight makes Build parse the signing key pair and fail on bad key
// material. Without it the key is parsed on first use.
func (b *Builder) WithKeyPreflight() *Builder {
	b.keyPreflight = true
	return b
}

// Build validates the configuration and returns a ready Engine. A Builder can
// be built only once.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.users == nil {
		return nil, errors.New("user store required")
	}
	if b.identity == nil {
		return nil, errors.New("identity provider required")
	}
	if cfg.RateLimit.Enabled && b.redis == nil {
		return nil, errors.New("RateLimit requires redis client")
	}

	logger := b.logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stderr, nil))
	}
	now := b.now
	if now == nil {
		now = time.Now
	}

	// -------- KEYS AND TOKENS --------
	kp := keys.NewProvider(keys.Config{
		Algorithm:     cfg.JWT.Algorithm,
		PrivateKeyPEM: cloneBytes(cfg.JWT.PrivateKey),
		PublicKeyPEM:  cloneBytes(cfg.JWT.PublicKey),
		KeyID:         cfg.JWT.KeyID,
	})
	if b.keyPreflight {
		if _, err := kp.PublicKey(); err != nil {
			return nil, fmt.Errorf("signing key: %w", err)
		}
	}
	jm, err := jwt.NewManager(jwt.Config{
		AccessTTL: cfg.JWT.AccessTTL,
		Issuer:    cfg.JWT.Issuer,
		Audience:  cfg.JWT.Audience,
		Leeway:    cfg.JWT.Leeway,
		Keys:      kp,
		Now:       now,
	})
	if err != nil {
		return nil, err
	}

	// -------- STATE AND CSRF --------
	correlator, err := oauthstate.New(cfg.CSRF.Secret)
	if err != nil {
		return nil, err
	}
	guard, err := csrf.New(cfg.CSRF.Secret)
	if err != nil {
		return nil, err
	}

	// -------- SESSION STORE --------
	repo := b.sessions
	if repo == nil {
		if b.redis == nil {
			return nil, errors.New("session repository or redis client required")
		}
		repo = session.NewRedisRepository(b.redis, cfg.Session.RedisPrefix)
	}
	store, err := session.NewStore(repo, session.Config{
		Secret:  cloneBytes(cfg.Session.Secret),
		TTL:     cfg.Session.RefreshTTL,
		Timeout: cfg.Timeouts.Store,
		Now:     now,
	})
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:   cloneConfig(cfg),
		logger:   logger,
		now:      now,
		keys:     kp,
		jwt:      jm,
		state:    correlator,
		csrf:     guard,
		sessions: store,
		users:    b.users,
		identity: b.identity,
		metrics:  NewMetrics(cfg.Metrics),
	}

	// -------- RATE LIMITER --------
	if cfg.RateLimit.Enabled {
		limiter, err := rate.New(b.redis, rate.Config{
			Prefix: cfg.RateLimit.RedisPrefix,
			Limit:  cfg.RateLimit.Limit,
			Window: cfg.RateLimit.Window,
			Now:    now,
		})
		if err != nil {
			return nil, err
		}
		engine.limiter = limiter
	}

	sink := b.auditSink
	if sink == nil {
		sink = NewSlogSink(logger)
	}
	engine.audit = audit.NewDispatcher(audit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, sink)

	b.built = true
	return engine, nil
}
