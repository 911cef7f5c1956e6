package goSession

import (
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/goSession/keys"
	"github.com/caarlos0/env/v11"
)

// EnvConfig is the process environment read by [LoadConfigFromEnv]. It
// carries deployment settings (database, Redis, listen address) alongside
// the engine settings.
type EnvConfig struct {
	ListenAddr   string `env:"LISTEN_ADDR" envDefault:":8080"`
	DatabaseURL  string `env:"DATABASE_URL" envDefault:"gosession.db"`
	RedisURL     string `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	SessionStore string `env:"SESSION_STORE" envDefault:"sqlite"`
	AppEnv       string `env:"APP_ENV"`
	NodeEnv      string `env:"NODE_ENV"`

	GoogleClientID     string `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"GOOGLE_CLIENT_SECRET"`
	AuthRedirectURI    string `env:"AUTH_REDIRECT_URI"`
	SuccessRedirect    string `env:"AUTH_SUCCESS_REDIRECT" envDefault:"/"`
	ErrorRedirect      string `env:"AUTH_ERROR_REDIRECT" envDefault:"/login"`

	JWTAlgorithm  string `env:"JWT_ALGORITHM" envDefault:"RS256"`
	JWTPrivateKey string `env:"JWT_PRIVATE_KEY"`
	JWTPublicKey  string `env:"JWT_PUBLIC_KEY"`
	JWTKeyID      string `env:"JWT_KEY_ID"`
	JWTIssuer     string `env:"JWT_ISSUER" envDefault:"retropricebr/web"`
	JWTAudience   string `env:"JWT_AUDIENCE" envDefault:"retropricebr/api"`

	AccessTTLMinutes    int    `env:"ACCESS_TOKEN_TTL_MINUTES" envDefault:"15"`
	RefreshSecret       string `env:"REFRESH_TOKEN_SECRET"`
	RefreshTTLDays      int    `env:"REFRESH_TOKEN_TTL_DAYS" envDefault:"30"`
	RefreshCookieName   string `env:"REFRESH_TOKEN_COOKIE_NAME" envDefault:"rp_refresh"`
	RefreshCookieDomain string `env:"REFRESH_TOKEN_COOKIE_DOMAIN"`
	RevokeOnReuse       bool   `env:"REFRESH_REVOKE_ON_REUSE" envDefault:"false"`

	CSRFSecret   string `env:"CSRF_SECRET"`
	RateLimitRPM int    `env:"RATE_LIMIT_RPM" envDefault:"120"`
}

// ParseEnv loads EnvConfig from environment variables.
func ParseEnv() (EnvConfig, error) {
	var cfg EnvConfig
	if err := env.Parse(&cfg); err != nil {
		return EnvConfig{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// Environment returns APP_ENV, falling back to NODE_ENV, lower-cased.
func (e EnvConfig) Environment() string {
	v := e.AppEnv
	if strings.TrimSpace(v) == "" {
		v = e.NodeEnv
	}
	return strings.ToLower(strings.TrimSpace(v))
}

// Production reports whether the deployment runs in production.
func (e EnvConfig) Production() bool { return e.Environment() == "production" }

// EngineConfig maps the environment onto DefaultConfig.
func (e EnvConfig) EngineConfig() Config {
	cfg := DefaultConfig()

	cfg.JWT.Algorithm = keys.Algorithm(strings.TrimSpace(e.JWTAlgorithm))
	cfg.JWT.PrivateKey = pemFromEnv(e.JWTPrivateKey)
	cfg.JWT.PublicKey = pemFromEnv(e.JWTPublicKey)
	cfg.JWT.KeyID = strings.TrimSpace(e.JWTKeyID)
	cfg.JWT.Issuer = e.JWTIssuer
	cfg.JWT.Audience = e.JWTAudience
	cfg.JWT.AccessTTL = time.Duration(e.AccessTTLMinutes) * time.Minute

	cfg.Session.Secret = []byte(e.RefreshSecret)
	cfg.Session.RefreshTTL = time.Duration(e.RefreshTTLDays) * 24 * time.Hour

	cfg.OAuth.ClientID = e.GoogleClientID
	cfg.OAuth.ClientSecret = e.GoogleClientSecret
	cfg.OAuth.RedirectURL = e.AuthRedirectURI
	cfg.OAuth.SuccessRedirect = e.SuccessRedirect
	cfg.OAuth.ErrorRedirect = e.ErrorRedirect

	cfg.CSRF.Secret = []byte(e.CSRFSecret)

	cfg.RateLimit.Limit = e.RateLimitRPM
	cfg.RateLimit.Enabled = e.RateLimitRPM > 0

	cfg.Cookies.RefreshName = e.RefreshCookieName
	cfg.Cookies.Domain = strings.TrimSpace(e.RefreshCookieDomain)

	cfg.Security.ProductionMode = e.Production()
	cfg.Security.RevokeOnRefreshReuse = e.RevokeOnReuse
	cfg.Cookies.Secure = cfg.Security.ProductionMode

	return cfg
}

// LoadConfigFromEnv parses the environment and validates the resulting
// engine configuration.
func LoadConfigFromEnv() (EnvConfig, Config, error) {
	ec, err := ParseEnv()
	if err != nil {
		return EnvConfig{}, Config{}, err
	}
	cfg := ec.EngineConfig()
	if err := cfg.Validate(); err != nil {
		return EnvConfig{}, Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return ec, cfg, nil
}

// pemFromEnv accepts PEM with literal "\n" sequences, which is how
// multi-line keys usually survive .env files.
func pemFromEnv(v string) []byte {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return []byte(strings.ReplaceAll(v, `\n`, "\n"))
}
