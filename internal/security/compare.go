package security

import "crypto/subtle"

// Equal reports whether a and b hold the same bytes. The running time depends
// only on the lengths of the inputs, never on where they first differ.
func Equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// EqualBoth compares two pairs and returns true only when both match. Both
// comparisons always run so a mismatch in the first pair costs the same time
// as a mismatch in the second.
func EqualBoth(a1, b1, a2, b2 string) bool {
	first := subtle.ConstantTimeCompare([]byte(a1), []byte(b1))
	second := subtle.ConstantTimeCompare([]byte(a2), []byte(b2))
	return first&second == 1
}
