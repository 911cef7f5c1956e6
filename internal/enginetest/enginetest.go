// Package enginetest builds a goSession.Engine on in-memory SQLite and
// miniredis for tests of the HTTP layers.
package enginetest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/url"
	"sync"
	"testing"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/keys"
	"github.com/MrEthical07/goSession/storage/sqlite"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// GoodCode is the only authorization code the fake provider accepts.
const GoodCode = "good"

var keyPair = sync.OnceValues(func() ([]byte, error) {
	priv, _, err := keys.Generate(keys.AlgorithmRS256)
	return priv, err
})

// Config returns a valid development configuration with rate limiting off.
func Config(t testing.TB) goSession.Config {
	t.Helper()

	priv, err := keyPair()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	cfg := goSession.DefaultConfig()
	cfg.JWT.PrivateKey = priv
	cfg.JWT.KeyID = "test-kid"
	cfg.Session.Secret = []byte("0123456789abcdef0123456789abcdef-session")
	cfg.CSRF.Secret = []byte("0123456789abcdef0123456789abcdef-csrf")
	cfg.OAuth.ClientID = "client-id"
	cfg.OAuth.ClientSecret = "client-secret"
	cfg.OAuth.RedirectURL = "http://localhost:8080/auth/callback/google"
	cfg.OAuth.SuccessRedirect = "/dashboard"
	cfg.OAuth.ErrorRedirect = "/login"
	cfg.RateLimit.Enabled = false
	return cfg
}

// Identity is a fake provider. It accepts [GoodCode] and returns Profile.
type Identity struct {
	mu      sync.Mutex
	profile goSession.Profile
}

// SetProfile replaces the profile returned after a successful exchange.
func (p *Identity) SetProfile(profile goSession.Profile) {
	p.mu.Lock()
	p.profile = profile
	p.mu.Unlock()
}

func (p *Identity) AuthCodeURL(state string) string {
	return "https://accounts.example.com/auth?state=" + url.QueryEscape(state)
}

func (p *Identity) ExchangeCode(_ context.Context, code string) (string, error) {
	if code != GoodCode {
		return "", errors.New("invalid_grant")
	}
	return "provider-token", nil
}

func (p *Identity) FetchProfile(context.Context, string) (*goSession.Profile, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	profile := p.profile
	return &profile, nil
}

// Fixture is a built engine and the collaborators behind it.
type Fixture struct {
	Engine   *goSession.Engine
	Store    *sqlite.Store
	Identity *Identity
	Redis    *miniredis.Miniredis
	Audit    *goSession.ChannelSink
}

// New builds an engine from cfg. Sessions live in SQLite; Redis serves the
// rate limiter only.
func New(t testing.TB, cfg goSession.Config) *Fixture {
	t.Helper()

	store, err := sqlite.Open(sqlite.Memory)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })

	f := &Fixture{
		Store: store,
		Identity: &Identity{profile: goSession.Profile{
			SubjectID:     "google-sub-1",
			Email:         "alice@example.com",
			EmailVerified: true,
			DisplayName:   "Alice",
			AvatarURL:     "https://example.com/alice.png",
		}},
		Redis: mr,
		Audit: goSession.NewChannelSink(256),
	}

	engine, err := goSession.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))).
		WithUserStore(store).
		WithSessionRepository(store).
		WithIdentityProvider(f.Identity).
		WithAuditSink(f.Audit).
		Build()
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	t.Cleanup(engine.Close)
	f.Engine = engine
	return f
}

// Login runs the provider handshake directly against the engine.
func (f *Fixture) Login(t testing.TB) *goSession.TokenPair {
	t.Helper()

	ctx := context.Background()
	redirect, err := f.Engine.BeginLogin(ctx)
	if err != nil {
		t.Fatalf("begin login: %v", err)
	}
	u, err := url.Parse(redirect.URL)
	if err != nil {
		t.Fatalf("parse redirect: %v", err)
	}
	pair, err := f.Engine.CompleteLogin(ctx, goSession.CallbackInput{
		Code:        GoodCode,
		State:       u.Query().Get("state"),
		StateCookie: redirect.StateCookie,
	})
	if err != nil {
		t.Fatalf("complete login: %v", err)
	}
	return pair
}
