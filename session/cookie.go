package session

import "strings"

// EncodeCookie returns the refresh cookie value sessionID:raw.
func EncodeCookie(sessionID, raw string) string {
	return sessionID + ":" + raw
}

// ParseCookie splits a refresh cookie value on its first colon. Both halves
// must be non-empty.
func ParseCookie(v string) (sessionID, raw string, ok bool) {
	sessionID, raw, ok = strings.Cut(v, ":")
	if !ok || sessionID == "" || raw == "" {
		return "", "", false
	}
	return sessionID, raw, true
}
