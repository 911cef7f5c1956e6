package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/internal/enginetest"
	"github.com/MrEthical07/goSession/keys"
	"github.com/MrEthical07/goSession/storage/sqlite"
	"github.com/alicebob/miniredis/v2"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd("test")
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRootCommandStructure(t *testing.T) {
	root := NewRootCmd("1.2.3")
	found := map[string]bool{}
	for _, c := range root.Commands() {
		found[c.Name()] = true
		if c.Short == "" {
			t.Fatalf("command %q has no short description", c.Name())
		}
	}
	for _, want := range []string{"serve", "keygen", "loadtest"} {
		if !found[want] {
			t.Fatalf("expected subcommand %q", want)
		}
	}

	out, err := execute(t, "--version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.Contains(out, "gosession version test") {
		t.Fatalf("unexpected version output %q", out)
	}
}

func TestLoggerOptions(t *testing.T) {
	for _, tc := range []struct {
		level, format string
		ok            bool
	}{
		{"info", "json", true},
		{"DEBUG", "text", true},
		{"warn", "", true},
		{"loud", "json", false},
		{"info", "xml", false},
	} {
		_, err := (&rootOptions{logLevel: tc.level, logFormat: tc.format}).logger(io.Discard)
		if (err == nil) != tc.ok {
			t.Fatalf("level=%q format=%q: err=%v, want ok=%v", tc.level, tc.format, err, tc.ok)
		}
	}
}

func TestKeygenPrintsUsablePair(t *testing.T) {
	for _, alg := range []keys.Algorithm{keys.AlgorithmRS256, keys.AlgorithmEdDSA} {
		out, err := execute(t, "keygen", "--alg", string(alg))
		if err != nil {
			t.Fatalf("%s: %v", alg, err)
		}
		priv, pub, ok := strings.Cut(out, "-----BEGIN PUBLIC KEY-----")
		if !ok {
			t.Fatalf("%s: public key missing from output:\n%s", alg, out)
		}
		p := keys.NewProvider(keys.Config{
			Algorithm:     alg,
			PrivateKeyPEM: []byte(priv),
			PublicKeyPEM:  []byte("-----BEGIN PUBLIC KEY-----" + pub),
			KeyID:         "kid",
		})
		if _, err := p.PrivateKey(); err != nil {
			t.Fatalf("%s: private key: %v", alg, err)
		}
		if _, err := p.PublicKey(); err != nil {
			t.Fatalf("%s: public key: %v", alg, err)
		}
	}

	if _, err := execute(t, "keygen", "--alg", "HS256"); err == nil {
		t.Fatal("expected unsupported algorithm error")
	}
}

func TestKeygenOutDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "keys")
	out, err := execute(t, "keygen", "--out-dir", dir)
	if err != nil {
		t.Fatalf("keygen: %v", err)
	}
	if !strings.Contains(out, "private.pem") {
		t.Fatalf("unexpected output %q", out)
	}
	info, err := os.Stat(filepath.Join(dir, "private.pem"))
	if err != nil {
		t.Fatalf("stat private key: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("private key mode %v, want 0600", info.Mode().Perm())
	}
	if _, err := os.Stat(filepath.Join(dir, "public.pem")); err != nil {
		t.Fatalf("stat public key: %v", err)
	}
}

func TestKeygenEnvLoadsBack(t *testing.T) {
	out, err := execute(t, "keygen", "--env")
	if err != nil {
		t.Fatalf("keygen: %v", err)
	}
	values := map[string]string{}
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		k, v, _ := strings.Cut(line, "=")
		values[k] = strings.Trim(v, `"`)
	}
	if values["JWT_ALGORITHM"] != "RS256" {
		t.Fatalf("unexpected algorithm line: %v", values)
	}

	t.Setenv("JWT_PRIVATE_KEY", values["JWT_PRIVATE_KEY"])
	t.Setenv("JWT_PUBLIC_KEY", values["JWT_PUBLIC_KEY"])
	ec, err := goSession.ParseEnv()
	if err != nil {
		t.Fatalf("parse env: %v", err)
	}
	cfg := ec.EngineConfig()
	p := keys.NewProvider(keys.Config{PrivateKeyPEM: cfg.JWT.PrivateKey, PublicKeyPEM: cfg.JWT.PublicKey, KeyID: "kid"})
	if _, err := p.PublicKey(); err != nil {
		t.Fatalf("env keys did not load: %v", err)
	}
}

func TestLoadtestBackends(t *testing.T) {
	for _, backend := range []string{"redis", "sqlite"} {
		t.Run(backend, func(t *testing.T) {
			t.Setenv("REDIS_ADDR", "")
			out, err := execute(t, "loadtest", "--backend", backend, "--sessions", "20", "--concurrency", "4", "--ops", "100")
			if err != nil {
				t.Fatalf("loadtest: %v", err)
			}
			for _, want := range []string{"verify: ops=100 failures=0", "rotate: ops=100 failures=0"} {
				if !strings.Contains(out, want) {
					t.Fatalf("expected %q in output:\n%s", want, out)
				}
			}
		})
	}

	if _, err := execute(t, "loadtest", "--backend", "etcd"); err == nil {
		t.Fatal("expected unknown backend error")
	}
	if _, err := execute(t, "loadtest", "--ops", "0"); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestServerRoutes(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := enginetest.Config(t)
	cfg.RateLimit.Enabled = true
	cfg.RateLimit.Limit = 100

	for _, sessionStore := range []string{"sqlite", "redis"} {
		t.Run(sessionStore, func(t *testing.T) {
			ec := goSession.EnvConfig{
				DatabaseURL:  sqlite.Memory,
				RedisURL:     "redis://" + mr.Addr() + "/0",
				SessionStore: sessionStore,
			}
			srv, err := newServer(ec, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
			if err != nil {
				t.Fatalf("new server: %v", err)
			}
			defer srv.Close()

			for path, want := range map[string]string{
				"/healthz":               `"status":"ok"`,
				"/.well-known/jwks.json": `"kid":"test-kid"`,
				"/metrics":               "gosession_login_success_total 0",
			} {
				rec := httptest.NewRecorder()
				srv.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
				if rec.Code != http.StatusOK {
					t.Fatalf("%s: expected 200, got %d", path, rec.Code)
				}
				if !strings.Contains(rec.Body.String(), want) {
					t.Fatalf("%s: expected %q in body %s", path, want, rec.Body.String())
				}
			}

			rec := httptest.NewRecorder()
			srv.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/login", nil))
			if rec.Code != http.StatusFound || !strings.HasPrefix(rec.Header().Get("Location"), "https://accounts.google.com/") {
				t.Fatalf("login: status %d location %q", rec.Code, rec.Header().Get("Location"))
			}

			rec = httptest.NewRecorder()
			srv.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/refresh", nil))
			var body map[string]string
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil || rec.Code != http.StatusUnauthorized {
				t.Fatalf("refresh without cookie: status %d body %v", rec.Code, body)
			}
		})
	}

	ec := goSession.EnvConfig{DatabaseURL: sqlite.Memory, RedisURL: "redis://" + mr.Addr(), SessionStore: "memcached"}
	if _, err := newServer(ec, cfg, slog.New(slog.NewTextHandler(io.Discard, nil))); err == nil {
		t.Fatal("expected unknown SESSION_STORE error")
	}
}
