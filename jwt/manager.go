package jwt

import (
	"crypto"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/goSession/keys"
	"github.com/golang-jwt/jwt/v5"
)

const (
	// DefaultIssuer is the iss value stamped on every access token.
	DefaultIssuer = "retropricebr/web"
	// DefaultAudience is the aud value every access token must carry.
	DefaultAudience = "retropricebr/api"
)

var (
	// ErrTokenRejected is the uniform verification failure.
	ErrTokenRejected = errors.New("access token rejected")
	// ErrTokenMalformed is returned by DecodeUnsafe when the token cannot be decoded at all.
	ErrTokenMalformed = errors.New("access token malformed")
)

// KeySource supplies the signing key pair. keys.Provider satisfies it.
type KeySource interface {
	Algorithm() keys.Algorithm
	KeyID() string
	PrivateKey() (crypto.Signer, error)
	PublicKey() (crypto.PublicKey, error)
}

// Config defines the issuing and verification parameters.
type Config struct {
	AccessTTL time.Duration
	Issuer    string
	Audience  string
	Leeway    time.Duration
	Keys      KeySource

	// Now overrides the clock; nil means time.Now.
	Now func() time.Time
}

// Manager mints and verifies access tokens. It is safe for concurrent use.
type Manager struct {
	config Config
	method jwt.SigningMethod
}

// Claims is the caller-supplied identity and authorization payload.
type Claims struct {
	Subject       string
	Email         string
	Name          string
	Reputation    int
	Roles         []string
	VerifiedStore bool
}

// AccessClaims is the decoded token body.
type AccessClaims struct {
	Email         string   `json:"email"`
	Name          string   `json:"name"`
	Reputation    int      `json:"rep"`
	Roles         []string `json:"roles"`
	VerifiedStore bool     `json:"ver"`
	jwt.RegisteredClaims
}

// NewManager validates cfg and returns a Manager. Key material is not parsed
// here; a malformed key surfaces on the first Issue or Verify.
//
// NewManager may return an error when the TTL, leeway, issuer, audience, or key source are invalid.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.AccessTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.Keys == nil {
		return nil, errors.New("key source required")
	}
	cfg.Issuer = strings.TrimSpace(cfg.Issuer)
	if cfg.Issuer == "" {
		cfg.Issuer = DefaultIssuer
	}
	cfg.Audience = strings.TrimSpace(cfg.Audience)
	if cfg.Audience == "" {
		cfg.Audience = DefaultAudience
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	var method jwt.SigningMethod
	switch cfg.Keys.Algorithm() {
	case keys.AlgorithmRS256:
		method = jwt.SigningMethodRS256
	case keys.AlgorithmEdDSA:
		method = jwt.SigningMethodEdDSA
	default:
		return nil, errors.New("unsupported signing method")
	}

	return &Manager{config: cfg, method: method}, nil
}

// AccessTTL reports the lifetime applied to issued tokens.
func (j *Manager) AccessTTL() time.Duration { return j.config.AccessTTL }

// Issue signs a token for c with iat = now and exp = now + AccessTTL.
//
// Issue may return an error when the subject is empty or the private key cannot be loaded.
// Issue does not mutate shared global state and can be used concurrently.
func (j *Manager) Issue(c Claims) (string, error) {
	if strings.TrimSpace(c.Subject) == "" {
		return "", errors.New("subject required")
	}

	roles := c.Roles
	if roles == nil {
		roles = []string{}
	}

	now := j.config.Now().Truncate(time.Second)
	claims := AccessClaims{
		Email:         c.Email,
		Name:          c.Name,
		Reputation:    c.Reputation,
		Roles:         roles,
		VerifiedStore: c.VerifiedStore,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    j.config.Issuer,
			Subject:   c.Subject,
			Audience:  jwt.ClaimStrings{j.config.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.config.AccessTTL)),
		},
	}

	token := jwt.NewWithClaims(j.method, claims)
	if kid := j.config.Keys.KeyID(); kid != "" {
		token.Header["kid"] = kid
	}

	signKey, err := j.config.Keys.PrivateKey()
	if err != nil {
		return "", err
	}

	return token.SignedString(signKey)
}

// Verify checks signature, algorithm, kid, issuer, audience, iat, and exp, and
// requires the sub and roles claims. Every failure wraps ErrTokenRejected.
//
// Verify does not mutate shared global state and can be used concurrently.
func (j *Manager) Verify(tokenStr string) (*AccessClaims, error) {
	if tokenStr == "" {
		return nil, ErrTokenRejected
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{j.method.Alg()}),
		jwt.WithIssuer(j.config.Issuer),
		jwt.WithAudience(j.config.Audience),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(j.config.Now),
	}
	if j.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(j.config.Leeway))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, &AccessClaims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != j.method.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		if want := j.config.Keys.KeyID(); want != "" {
			kid, _ := t.Header["kid"].(string)
			if kid == "" {
				return nil, errors.New("missing kid")
			}
			if kid != want {
				return nil, errors.New("unknown kid")
			}
		}
		return j.config.Keys.PublicKey()
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenRejected, err)
	}

	claims, ok := token.Claims.(*AccessClaims)
	if !ok || !token.Valid {
		return nil, ErrTokenRejected
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing sub", ErrTokenRejected)
	}
	if claims.Roles == nil {
		return nil, fmt.Errorf("%w: missing roles", ErrTokenRejected)
	}

	return claims, nil
}

// DecodeUnsafe decodes the token body without checking its signature, expiry,
// issuer, or audience. The result must never drive an authorization decision.
func (j *Manager) DecodeUnsafe(tokenStr string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenStr, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}
	return claims, nil
}
