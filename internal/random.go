package internal

import (
	"crypto/rand"
	"encoding/hex"
	"errors"

	"github.com/google/uuid"
)

const (
	// StateTokenSize is the raw byte length of an OAuth state value.
	StateTokenSize = 24
	// CSRFTokenSize is the raw byte length of a CSRF secret.
	CSRFTokenSize = 32
	// RefreshTokenSize is the raw byte length of a refresh credential.
	RefreshTokenSize = 48
)

var errInvalidTokenSize = errors.New("invalid random token size")

// RandomHex returns n bytes from crypto/rand, hex encoded.
func RandomHex(n int) (string, error) {
	if n <= 0 {
		return "", errInvalidTokenSize
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// NewID returns a random UUIDv4 string for session and user records.
func NewID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
