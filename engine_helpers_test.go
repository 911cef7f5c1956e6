package goSession

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/goSession/keys"
	"github.com/MrEthical07/goSession/session"
	"github.com/MrEthical07/goSession/storage/sqlite"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

var testKeyPair = sync.OnceValues(func() ([]byte, error) {
	priv, _, err := keys.Generate(keys.AlgorithmRS256)
	return priv, err
})

func engineTestConfig(t *testing.T) Config {
	t.Helper()

	priv, err := testKeyPair()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	cfg := DefaultConfig()
	cfg.JWT.PrivateKey = priv
	cfg.JWT.KeyID = "test-kid"
	cfg.Session.Secret = []byte("0123456789abcdef0123456789abcdef-session")
	cfg.CSRF.Secret = []byte("0123456789abcdef0123456789abcdef-csrf")
	cfg.OAuth.ClientID = "client-id"
	cfg.OAuth.ClientSecret = "client-secret"
	cfg.OAuth.RedirectURL = "http://localhost:8080/auth/google/callback"
	cfg.RateLimit.Enabled = false
	return cfg
}

// fakeIdentity accepts the code "good" and returns profile for it.
type fakeIdentity struct {
	mu      sync.Mutex
	profile Profile
	calls   int
}

func newFakeIdentity() *fakeIdentity {
	return &fakeIdentity{profile: Profile{
		SubjectID:     "google-sub-1",
		Email:         "alice@example.com",
		EmailVerified: true,
		DisplayName:   "Alice",
		AvatarURL:     "https://example.com/alice.png",
	}}
}

func (f *fakeIdentity) AuthCodeURL(state string) string {
	return "https://idp.example/auth?state=" + url.QueryEscape(state)
}

func (f *fakeIdentity) ExchangeCode(_ context.Context, code string) (string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if code != "good" {
		return "", errors.New("invalid_grant")
	}
	return "provider-access-token", nil
}

func (f *fakeIdentity) FetchProfile(_ context.Context, accessToken string) (*Profile, error) {
	if accessToken != "provider-access-token" {
		return nil, errors.New("userinfo status 401")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.profile
	return &p, nil
}

func (f *fakeIdentity) exchanges() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type testEngine struct {
	*Engine
	store    *sqlite.Store
	identity *fakeIdentity
	redis    *miniredis.Miniredis
	rdb      *redis.Client
}

type engineOption func(*Builder, *testEngine)

func withAuditChannel(sink *ChannelSink) engineOption {
	return func(b *Builder, _ *testEngine) { b.WithAuditSink(sink) }
}

// withRedisSessions moves sessions from SQLite to the Redis repository.
func withRedisSessions() engineOption {
	return func(b *Builder, _ *testEngine) { b.WithSessionRepository(nil) }
}

func withRepository(wrap func(session.Repository) session.Repository) engineOption {
	return func(b *Builder, te *testEngine) { b.WithSessionRepository(wrap(te.store)) }
}

func newTestEngine(t *testing.T, cfg Config, opts ...engineOption) *testEngine {
	t.Helper()

	store, err := sqlite.Open(sqlite.Memory)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })

	te := &testEngine{
		store:    store,
		identity: newFakeIdentity(),
		redis:    mr,
		rdb:      rdb,
	}

	b := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))).
		WithUserStore(store).
		WithSessionRepository(store).
		WithIdentityProvider(te.identity)
	for _, opt := range opts {
		opt(b, te)
	}

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	t.Cleanup(engine.Close)
	te.Engine = engine
	return te
}

// login runs the full handshake and returns the issued pair.
func (te *testEngine) login(t *testing.T, ctx context.Context) *TokenPair {
	t.Helper()

	redirect, err := te.BeginLogin(ctx)
	if err != nil {
		t.Fatalf("begin login: %v", err)
	}
	u, err := url.Parse(redirect.URL)
	if err != nil {
		t.Fatalf("parse redirect: %v", err)
	}
	pair, err := te.CompleteLogin(ctx, CallbackInput{
		Code:        "good",
		State:       u.Query().Get("state"),
		StateCookie: redirect.StateCookie,
	})
	if err != nil {
		t.Fatalf("complete login: %v", err)
	}
	return pair
}

func waitAuditEvent(t *testing.T, sink *ChannelSink, eventType string) AuditEvent {
	t.Helper()

	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev := <-sink.Events():
			if ev.EventType == eventType {
				return ev
			}
		case <-timeout:
			t.Fatalf("timed out waiting for audit event %q", eventType)
		}
	}
}
