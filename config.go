package goSession

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/MrEthical07/goSession/keys"
)

// Config is the engine configuration. Start from [DefaultConfig]; the
// Builder copies it, so later edits do not reach a built Engine.
type Config struct {
	JWT       JWTConfig
	Session   SessionConfig
	OAuth     OAuthConfig
	CSRF      CSRFConfig
	RateLimit RateLimitConfig
	Cookies   CookieConfig
	Security  SecurityConfig
	Timeouts  TimeoutConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig configures access token issuing. PublicKey may be empty, in
// which case it is derived from PrivateKey.
type JWTConfig struct {
	AccessTTL  time.Duration
	Issuer     string
	Audience   string
	Leeway     time.Duration
	Algorithm  keys.Algorithm
	PrivateKey []byte
	PublicKey  []byte
	KeyID      string
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig configures refresh sessions.
type SessionConfig struct {
	RefreshTTL time.Duration
	// Secret keys the refresh credential hash.
	Secret []byte
	// RedisPrefix namespaces session keys when sessions live in Redis.
	RedisPrefix string
}

/*
====================================
OAUTH CONFIG
====================================
*/

// OAuthConfig configures the external login handshake.
type OAuthConfig struct {
	ClientID        string
	ClientSecret    string
	RedirectURL     string
	SuccessRedirect string
	ErrorRedirect   string
}

/*
====================================
CSRF CONFIG
====================================
*/

// CSRFConfig holds the secret from which the CSRF and OAuth state keys are derived.
type CSRFConfig struct {
	Secret []byte
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

// RateLimitConfig configures the fixed-window request limiter.
type RateLimitConfig struct {
	Enabled     bool
	Limit       int
	Window      time.Duration
	RedisPrefix string
}

/*
====================================
COOKIE CONFIG
====================================
*/

// CookieConfig names the browser cookies. Secure is forced on in production.
type CookieConfig struct {
	RefreshName string
	AccessName  string
	StateName   string
	CSRFName    string
	Domain      string
	Secure      bool
}

/*
====================================
SECURITY CONFIG
====================================
*/

// SecurityConfig holds hardening switches.
type SecurityConfig struct {
	ProductionMode bool
	// RevokeOnRefreshReuse revokes the whole session when a rotated-out
	// credential is presented again.
	RevokeOnRefreshReuse bool
}

/*
====================================
TIMEOUT CONFIG
====================================
*/

// TimeoutConfig bounds collaborator calls made inside one request.
type TimeoutConfig struct {
	Store    time.Duration
	Identity time.Duration
}

/*
====================================
AUDIT AND METRICS CONFIG
====================================
*/

// AuditConfig controls asynchronous audit delivery.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns the defaults used by the production deployment.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL: 15 * time.Minute,
			Issuer:    "retropricebr/web",
			Audience:  "retropricebr/api",
			Algorithm: keys.AlgorithmRS256,
		},
		Session: SessionConfig{
			RefreshTTL:  30 * 24 * time.Hour,
			RedisPrefix: "gs",
		},
		OAuth: OAuthConfig{
			SuccessRedirect: "/",
			ErrorRedirect:   "/login",
		},
		RateLimit: RateLimitConfig{
			Enabled:     true,
			Limit:       120,
			Window:      time.Minute,
			RedisPrefix: "rl",
		},
		Cookies: CookieConfig{
			RefreshName: "rp_refresh",
			AccessName:  "rp_access",
			StateName:   "rp_oauth_state",
			CSRFName:    "rp_csrf",
		},
		Timeouts: TimeoutConfig{
			Store:    3 * time.Second,
			Identity: 10 * time.Second,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	out.Session.Secret = cloneBytes(cfg.Session.Secret)
	out.CSRF.Secret = cloneBytes(cfg.CSRF.Secret)
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

const minSecretLen = 32

// Validate reports every invalid field at once, joined with errors.Join.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	// JWT
	if c.JWT.AccessTTL <= 0 {
		add("JWT AccessTTL must be > 0")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		add("JWT Leeway must be between 0 and 2m")
	}
	switch c.JWT.Algorithm {
	case keys.AlgorithmRS256, keys.AlgorithmEdDSA:
	default:
		add("JWT Algorithm %q is not supported", c.JWT.Algorithm)
	}
	if len(c.JWT.PrivateKey) == 0 {
		add("JWT PrivateKey is required")
	}
	if strings.TrimSpace(c.JWT.KeyID) == "" {
		add("JWT KeyID is required")
	}

	// Session
	if c.Session.RefreshTTL <= 0 {
		add("Session RefreshTTL must be > 0")
	}
	if len(c.Session.Secret) < minSecretLen {
		add("Session Secret must be at least %d bytes", minSecretLen)
	}

	// OAuth
	if strings.TrimSpace(c.OAuth.ClientID) == "" {
		add("OAuth ClientID is required")
	}
	if strings.TrimSpace(c.OAuth.ClientSecret) == "" {
		add("OAuth ClientSecret is required")
	}
	if err := validateURL(c.OAuth.RedirectURL, true); err != nil {
		add("OAuth RedirectURL %v", err)
	}
	if err := validateURL(c.OAuth.SuccessRedirect, false); err != nil {
		add("OAuth SuccessRedirect %v", err)
	}
	if err := validateURL(c.OAuth.ErrorRedirect, false); err != nil {
		add("OAuth ErrorRedirect %v", err)
	}

	// CSRF
	if len(c.CSRF.Secret) < minSecretLen {
		add("CSRF Secret must be at least %d bytes", minSecretLen)
	}
	if len(c.CSRF.Secret) > 0 && string(c.CSRF.Secret) == string(c.Session.Secret) {
		add("CSRF Secret must differ from Session Secret")
	}

	// Rate limit
	if c.RateLimit.Enabled {
		if c.RateLimit.Limit <= 0 {
			add("RateLimit Limit must be > 0")
		}
		if c.RateLimit.Window < time.Second || c.RateLimit.Window%time.Second != 0 {
			add("RateLimit Window must be a whole number of seconds >= 1s")
		}
	}

	// Cookies
	names := map[string]string{
		"RefreshName": c.Cookies.RefreshName,
		"AccessName":  c.Cookies.AccessName,
		"StateName":   c.Cookies.StateName,
		"CSRFName":    c.Cookies.CSRFName,
	}
	seen := make(map[string]bool, len(names))
	for _, field := range []string{"RefreshName", "AccessName", "StateName", "CSRFName"} {
		name := names[field]
		if strings.TrimSpace(name) == "" {
			add("Cookies %s is required", field)
			continue
		}
		if seen[name] {
			add("Cookies %s %q is used twice", field, name)
		}
		seen[name] = true
	}

	// Timeouts
	if c.Timeouts.Store < 0 || c.Timeouts.Identity < 0 {
		add("Timeouts must be >= 0")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		add("Audit BufferSize must be > 0")
	}

	if c.Security.ProductionMode {
		if c.JWT.AccessTTL > time.Hour {
			add("ProductionMode requires JWT AccessTTL <= 1h")
		}
		if c.Timeouts.Store == 0 {
			add("ProductionMode requires a Store timeout")
		}
		if strings.HasPrefix(c.OAuth.RedirectURL, "http://") {
			add("ProductionMode requires an https OAuth RedirectURL")
		}
	}

	return errors.Join(errs...)
}

// validateURL accepts absolute http(s) URLs, and relative paths when absolute is false.
func validateURL(raw string, absolute bool) error {
	if strings.TrimSpace(raw) == "" {
		return errors.New("is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return errors.New("is not a valid URL")
	}
	if u.IsAbs() {
		if u.Scheme != "http" && u.Scheme != "https" {
			return errors.New("must use http or https")
		}
		if u.Host == "" {
			return errors.New("must include a host")
		}
		return nil
	}
	if absolute {
		return errors.New("must be absolute")
	}
	if !strings.HasPrefix(u.Path, "/") || strings.HasPrefix(raw, "//") {
		return errors.New("must be an absolute path")
	}
	return nil
}
