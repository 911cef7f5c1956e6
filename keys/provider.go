package keys

import (
	"crypto"
	"crypto/ed25519"
	"crypto/rsa"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/golang-jwt/jwt/v5"
)

// Algorithm names the JOSE signature algorithm a key pair is used with.
type Algorithm string

const (
	// AlgorithmRS256 is RSASSA-PKCS1-v1_5 with SHA-256.
	AlgorithmRS256 Algorithm = "RS256"
	// AlgorithmEdDSA is Ed25519.
	AlgorithmEdDSA Algorithm = "EdDSA"
)

var (
	// ErrInvalidKeyMaterial is returned when configured PEM cannot be parsed or
	// the public key does not belong to the private key.
	ErrInvalidKeyMaterial = errors.New("keys: invalid key material")
	// ErrUnsupportedAlgorithm is returned for algorithms other than RS256 and EdDSA.
	ErrUnsupportedAlgorithm = errors.New("keys: unsupported algorithm")
)

// Config carries the PEM-encoded key pair. PublicKeyPEM may be empty, in which
// case the public key is derived from the private key.
type Config struct {
	Algorithm     Algorithm
	PrivateKeyPEM []byte
	PublicKeyPEM  []byte
	KeyID         string
}

// JWK is the public half of the signing key in RFC 7517 form.
type JWK struct {
	Kty string `json:"kty"`
	Kid string `json:"kid,omitempty"`
	Alg string `json:"alg"`
	Use string `json:"use"`
	N   string `json:"n,omitempty"`
	E   string `json:"e,omitempty"`
	Crv string `json:"crv,omitempty"`
	X   string `json:"x,omitempty"`
}

// JWKSet is the document served at /.well-known/jwks.json.
type JWKSet struct {
	Keys []JWK `json:"keys"`
}

// Provider lazily parses and caches one signing key pair. The zero value is
// not usable; construct with [NewProvider].
type Provider struct {
	cfg Config

	private func() (crypto.Signer, error)
	public  func() (crypto.PublicKey, error)
	jwk     func() (JWK, error)
}

// NewProvider returns a Provider for cfg without touching the key material.
// An empty Algorithm defaults to RS256.
func NewProvider(cfg Config) *Provider {
	if cfg.Algorithm == "" {
		cfg.Algorithm = AlgorithmRS256
	}
	cfg.KeyID = strings.TrimSpace(cfg.KeyID)

	p := &Provider{cfg: cfg}
	p.private = sync.OnceValues(p.loadPrivate)
	p.public = sync.OnceValues(p.loadPublic)
	p.jwk = sync.OnceValues(p.buildJWK)
	return p
}

// Algorithm reports the configured signature algorithm.
func (p *Provider) Algorithm() Algorithm { return p.cfg.Algorithm }

// KeyID reports the configured key identifier.
func (p *Provider) KeyID() string { return p.cfg.KeyID }

// PrivateKey returns the cached signing key.
func (p *Provider) PrivateKey() (crypto.Signer, error) { return p.private() }

// PublicKey returns the cached verification key.
func (p *Provider) PublicKey() (crypto.PublicKey, error) { return p.public() }

// PublicJWK returns the cached JWK describing the verification key.
func (p *Provider) PublicJWK() (JWK, error) { return p.jwk() }

// JWKS wraps [Provider.PublicJWK] in a key set.
func (p *Provider) JWKS() (JWKSet, error) {
	jwk, err := p.jwk()
	if err != nil {
		return JWKSet{}, err
	}
	return JWKSet{Keys: []JWK{jwk}}, nil
}

func (p *Provider) loadPrivate() (crypto.Signer, error) {
	if len(p.cfg.PrivateKeyPEM) == 0 {
		return nil, fmt.Errorf("%w: private key is empty", ErrInvalidKeyMaterial)
	}

	switch p.cfg.Algorithm {
	case AlgorithmRS256:
		key, err := jwt.ParseRSAPrivateKeyFromPEM(p.cfg.PrivateKeyPEM)
		if err != nil {
			return nil, fmt.Errorf("%w: rsa private key: %v", ErrInvalidKeyMaterial, err)
		}
		if key.N.BitLen() < 2048 {
			return nil, fmt.Errorf("%w: rsa key shorter than 2048 bits", ErrInvalidKeyMaterial)
		}
		return key, nil
	case AlgorithmEdDSA:
		parsed, err := jwt.ParseEdPrivateKeyFromPEM(p.cfg.PrivateKeyPEM)
		if err != nil {
			return nil, fmt.Errorf("%w: ed25519 private key: %v", ErrInvalidKeyMaterial, err)
		}
		key, ok := parsed.(ed25519.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("%w: ed25519 private key type", ErrInvalidKeyMaterial)
		}
		return key, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, p.cfg.Algorithm)
	}
}

func (p *Provider) loadPublic() (crypto.PublicKey, error) {
	if len(p.cfg.PublicKeyPEM) == 0 {
		priv, err := p.private()
		if err != nil {
			return nil, err
		}
		return priv.Public(), nil
	}

	var pub crypto.PublicKey
	switch p.cfg.Algorithm {
	case AlgorithmRS256:
		key, err := jwt.ParseRSAPublicKeyFromPEM(p.cfg.PublicKeyPEM)
		if err != nil {
			return nil, fmt.Errorf("%w: rsa public key: %v", ErrInvalidKeyMaterial, err)
		}
		pub = key
	case AlgorithmEdDSA:
		parsed, err := jwt.ParseEdPublicKeyFromPEM(p.cfg.PublicKeyPEM)
		if err != nil {
			return nil, fmt.Errorf("%w: ed25519 public key: %v", ErrInvalidKeyMaterial, err)
		}
		key, ok := parsed.(ed25519.PublicKey)
		if !ok {
			return nil, fmt.Errorf("%w: ed25519 public key type", ErrInvalidKeyMaterial)
		}
		pub = key
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, p.cfg.Algorithm)
	}

	// A verify-only deployment may omit the private key.
	if len(p.cfg.PrivateKeyPEM) == 0 {
		return pub, nil
	}
	priv, err := p.private()
	if err != nil {
		return nil, err
	}
	if !publicKeysEqual(priv.Public(), pub) {
		return nil, fmt.Errorf("%w: public key does not match private key", ErrInvalidKeyMaterial)
	}
	return pub, nil
}

func (p *Provider) buildJWK() (JWK, error) {
	pub, err := p.public()
	if err != nil {
		return JWK{}, err
	}

	jwk := JWK{
		Kid: p.cfg.KeyID,
		Alg: string(p.cfg.Algorithm),
		Use: "sig",
	}

	switch key := pub.(type) {
	case *rsa.PublicKey:
		jwk.Kty = "RSA"
		jwk.N = base64.RawURLEncoding.EncodeToString(key.N.Bytes())
		jwk.E = base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes())
	case ed25519.PublicKey:
		jwk.Kty = "OKP"
		jwk.Crv = "Ed25519"
		jwk.X = base64.RawURLEncoding.EncodeToString(key)
	default:
		return JWK{}, fmt.Errorf("%w: unexpected public key type %T", ErrInvalidKeyMaterial, pub)
	}

	return jwk, nil
}

func publicKeysEqual(a, b crypto.PublicKey) bool {
	type equaler interface {
		Equal(crypto.PublicKey) bool
	}
	ea, ok := a.(equaler)
	if !ok {
		return false
	}
	return ea.Equal(b)
}
