// Package csrf implements the signed double-submit CSRF pattern.
//
// The cookie holds raw + "." + HMAC(raw); the client echoes raw in a header. A
// cross-site attacker can make the browser resend the cookie but cannot read it
// to produce the matching header.
package csrf

import (
	"github.com/MrEthical07/goSession/internal"
	"github.com/MrEthical07/goSession/internal/security"
)

const (
	// HeaderName carries the raw secret on protected requests.
	HeaderName = "X-CSRF-Token"
	// CookieName carries the signed secret.
	CookieName = "rp_csrf"
)

const purpose = "goSession/csrf"

// Pair is a header value and the cookie value that vouches for it.
type Pair struct {
	HeaderValue string
	CookieValue string
}

// Guard generates and validates CSRF pairs under one secret.
type Guard struct {
	signer *security.Signer
}

// New returns a Guard keyed from secret.
func New(secret []byte) (*Guard, error) {
	signer, err := security.NewSigner(secret, purpose)
	if err != nil {
		return nil, err
	}
	return &Guard{signer: signer}, nil
}

// GeneratePair returns a fresh pair.
func (g *Guard) GeneratePair() (Pair, error) {
	raw, err := internal.RandomHex(internal.CSRFTokenSize)
	if err != nil {
		return Pair{}, err
	}
	return Pair{HeaderValue: raw, CookieValue: g.signer.Seal(raw)}, nil
}

// Validate reports whether cookieValue is correctly signed and its raw half
// equals headerToken. Missing or malformed input returns false.
func (g *Guard) Validate(headerToken, cookieValue string) bool {
	if g == nil {
		return false
	}
	return g.signer.Open(cookieValue, headerToken)
}
