package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

// separator joins a raw value and its signature inside a signed value.
const separator = "."

// ErrEmptyKey is returned when a signer is constructed without key material.
var ErrEmptyKey = errors.New("security: empty signing key")

// DeriveKey expands secret into a 32-byte subkey bound to purpose.
func DeriveKey(secret []byte, purpose string) ([]byte, error) {
	if len(secret) == 0 {
		return nil, ErrEmptyKey
	}
	out := make([]byte, sha256.Size)
	r := hkdf.New(sha256.New, secret, nil, []byte(purpose))
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Signer produces and checks HMAC-SHA256 signed values for one purpose.
type Signer struct {
	key []byte
}

// NewSigner derives a purpose-bound key from secret and returns a Signer.
func NewSigner(secret []byte, purpose string) (*Signer, error) {
	key, err := DeriveKey(secret, purpose)
	if err != nil {
		return nil, err
	}
	return &Signer{key: key}, nil
}

// Signature returns hex(HMAC-SHA256(key, raw)).
func (s *Signer) Signature(raw string) string {
	return Keyed(s.key, raw)
}

// Seal returns raw + "." + Signature(raw).
func (s *Signer) Seal(raw string) string {
	return raw + separator + s.Signature(raw)
}

// Open splits a sealed value and verifies that its signature matches and that
// its raw half equals expectedRaw. Both checks are constant-time and are always
// evaluated. Any malformed input yields false.
func (s *Signer) Open(sealed, expectedRaw string) bool {
	if s == nil || sealed == "" || expectedRaw == "" {
		return false
	}
	raw, sig, ok := strings.Cut(sealed, separator)
	if !ok || raw == "" || sig == "" {
		return false
	}
	return EqualBoth(sig, s.Signature(raw), raw, expectedRaw)
}

// Keyed returns the hex HMAC-SHA256 of value under key.
func Keyed(key []byte, value string) string {
	mac := hmac.New(sha256.New, key)
	_, _ = mac.Write([]byte(value))
	return hex.EncodeToString(mac.Sum(nil))
}
