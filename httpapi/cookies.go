package httpapi

import (
	"net/http"
	"time"

	goSession "github.com/MrEthical07/goSession"
)

const stateCookieTTL = 5 * time.Minute

type cookieJar struct {
	names      goSession.CookieConfig
	refreshTTL time.Duration
	accessTTL  time.Duration
}

func newCookieJar(cfg goSession.Config) cookieJar {
	return cookieJar{
		names:      cfg.Cookies,
		refreshTTL: cfg.Session.RefreshTTL,
		accessTTL:  cfg.JWT.AccessTTL,
	}
}

func (c cookieJar) set(w http.ResponseWriter, name, value string, maxAge time.Duration, httpOnly bool, domain string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   domain,
		MaxAge:   int(maxAge / time.Second),
		HttpOnly: httpOnly,
		Secure:   c.names.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (c cookieJar) clear(w http.ResponseWriter, name string, httpOnly bool, domain string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Domain:   domain,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: httpOnly,
		Secure:   c.names.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (c cookieJar) setState(w http.ResponseWriter, value string) {
	c.set(w, c.names.StateName, value, stateCookieTTL, true, "")
}

func (c cookieJar) clearState(w http.ResponseWriter) {
	c.clear(w, c.names.StateName, true, "")
}

// setTokens writes the http-only refresh cookie and the script-readable
// access cookie.
func (c cookieJar) setTokens(w http.ResponseWriter, pair *goSession.TokenPair) {
	c.set(w, c.names.RefreshName, pair.RefreshCookie, c.refreshTTL, true, c.names.Domain)
	c.set(w, c.names.AccessName, pair.AccessToken, c.accessTTL, false, "")
}

func (c cookieJar) clearTokens(w http.ResponseWriter) {
	c.clear(w, c.names.RefreshName, true, c.names.Domain)
	c.clear(w, c.names.AccessName, false, "")
}

func (c cookieJar) setCSRF(w http.ResponseWriter, value string) {
	c.set(w, c.names.CSRFName, value, c.refreshTTL, true, "")
}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}
