// Package oauthstate binds an authorization redirect to its callback with a
// self-contained signed state value. Nothing is stored server-side: the cookie
// carries raw + "." + HMAC(raw) and the callback's state parameter must equal
// raw.
package oauthstate

import (
	"time"

	"github.com/MrEthical07/goSession/internal"
	"github.com/MrEthical07/goSession/internal/security"
)

// TTL bounds the lifetime of the state cookie.
const TTL = 5 * time.Minute

const purpose = "goSession/oauth-state"

// Pair is a freshly created state and the cookie value that vouches for it.
type Pair struct {
	State       string
	CookieValue string
}

// Correlator creates and verifies state values under one secret.
type Correlator struct {
	signer *security.Signer
}

// New returns a Correlator keyed from secret.
func New(secret []byte) (*Correlator, error) {
	signer, err := security.NewSigner(secret, purpose)
	if err != nil {
		return nil, err
	}
	return &Correlator{signer: signer}, nil
}

// Create returns a new unguessable state and its signed cookie value.
func (c *Correlator) Create() (Pair, error) {
	raw, err := internal.RandomHex(internal.StateTokenSize)
	if err != nil {
		return Pair{}, err
	}
	return Pair{State: raw, CookieValue: c.signer.Seal(raw)}, nil
}

// Verify reports whether cookieValue carries a valid signature and its raw half
// equals param. Malformed or empty input returns false. Callers clear the state
// cookie after calling Verify whatever the outcome.
func (c *Correlator) Verify(param, cookieValue string) bool {
	if c == nil {
		return false
	}
	return c.signer.Open(cookieValue, param)
}
