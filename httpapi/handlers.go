package httpapi

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/csrf"
	"github.com/MrEthical07/goSession/middleware"
)

// Login starts the provider handshake.
func (a *API) Login(w http.ResponseWriter, r *http.Request) {
	redirect, err := a.engine.BeginLogin(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, goSession.ReasonServerError)
		return
	}
	a.cookies.setState(w, redirect.StateCookie)
	noStore(w)
	http.Redirect(w, r, redirect.URL, http.StatusFound)
}

// Callback completes the provider handshake. Every outcome clears the state
// cookie and redirects; failures carry only a reason code.
func (a *API) Callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	pair, err := a.engine.CompleteLogin(r.Context(), goSession.CallbackInput{
		Code:        q.Get("code"),
		State:       q.Get("state"),
		Error:       q.Get("error"),
		StateCookie: cookieValue(r, a.cfg.Cookies.StateName),
	})
	a.cookies.clearState(w)
	noStore(w)
	if err != nil {
		http.Redirect(w, r, a.errorRedirect(goSession.ReasonCode(err)), http.StatusFound)
		return
	}
	a.cookies.setTokens(w, pair)
	http.Redirect(w, r, a.cfg.OAuth.SuccessRedirect, http.StatusFound)
}

func (a *API) errorRedirect(reason string) string {
	u, err := url.Parse(a.cfg.OAuth.ErrorRedirect)
	if err != nil {
		return "/"
	}
	q := u.Query()
	q.Set("reason", reason)
	u.RawQuery = q.Encode()
	return u.String()
}

type refreshResponse struct {
	AccessToken string `json:"accessToken"`
}

// Refresh rotates the refresh cookie. Any failure clears both credential cookies.
func (a *API) Refresh(w http.ResponseWriter, r *http.Request) {
	noStore(w)
	pair, err := a.engine.Refresh(r.Context(), cookieValue(r, a.cfg.Cookies.RefreshName))
	if err != nil {
		a.cookies.clearTokens(w)
		if errors.Is(err, goSession.ErrServer) || errors.Is(err, goSession.ErrEngineNotReady) {
			writeError(w, http.StatusInternalServerError, goSession.ReasonServerError)
			return
		}
		writeError(w, http.StatusUnauthorized, goSession.ReasonUnauthorized)
		return
	}
	a.cookies.setTokens(w, pair)
	writeJSON(w, http.StatusOK, refreshResponse{AccessToken: pair.AccessToken})
}

// Logout revokes the session and clears the credential cookies. It always
// answers 204; a revocation failure is logged by the engine.
func (a *API) Logout(w http.ResponseWriter, r *http.Request) {
	if err := a.engine.Logout(r.Context(), cookieValue(r, a.cfg.Cookies.RefreshName)); err != nil {
		a.logger.WarnContext(r.Context(), "logout without revocation", slog.Any("error", err))
	}
	a.cookies.clearTokens(w)
	noStore(w)
	w.WriteHeader(http.StatusNoContent)
}

// MeResponse is the public view of the signed-in account.
type MeResponse struct {
	ID              string     `json:"id"`
	DisplayName     string     `json:"displayName"`
	Email           string     `json:"email"`
	Reputation      int        `json:"reputation"`
	IsVerifiedStore bool       `json:"isVerifiedStore"`
	Roles           []string   `json:"roles"`
	AvatarURL       *string    `json:"avatarUrl"`
	LastLoginAt     *time.Time `json:"lastLoginAt"`
}

// Me returns the account named by the access token in the Authorization
// header or the access cookie.
func (a *API) Me(w http.ResponseWriter, r *http.Request) {
	noStore(w)
	token, ok := middleware.AccessToken(r, a.cfg.Cookies.AccessName)
	if !ok {
		writeError(w, http.StatusUnauthorized, goSession.ReasonUnauthorized)
		return
	}
	u, err := a.engine.CurrentUser(r.Context(), token)
	switch {
	case errors.Is(err, goSession.ErrUserNotFound):
		writeError(w, http.StatusNotFound, goSession.ReasonUserNotFound)
		return
	case errors.Is(err, goSession.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, goSession.ReasonUnauthorized)
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, goSession.ReasonServerError)
		return
	}

	roles := u.Roles
	if roles == nil {
		roles = []string{}
	}
	resp := MeResponse{
		ID:              u.ID,
		DisplayName:     u.DisplayName,
		Email:           u.Email,
		Reputation:      u.Reputation,
		IsVerifiedStore: u.VerifiedStore,
		Roles:           roles,
		LastLoginAt:     u.LastLoginAt,
	}
	if u.AvatarURL != "" {
		resp.AvatarURL = &u.AvatarURL
	}
	writeJSON(w, http.StatusOK, resp)
}

type csrfResponse struct {
	Token      string `json:"csrfToken"`
	HeaderName string `json:"headerName"`
}

// CSRF issues a double-submit pair: the signed half in a cookie, the raw
// half in the body for the X-CSRF-Token header.
func (a *API) CSRF(w http.ResponseWriter, r *http.Request) {
	noStore(w)
	pair, err := a.engine.IssueCSRF()
	if err != nil {
		writeError(w, http.StatusInternalServerError, goSession.ReasonServerError)
		return
	}
	a.cookies.setCSRF(w, pair.CookieValue)
	writeJSON(w, http.StatusOK, csrfResponse{Token: pair.HeaderValue, HeaderName: csrf.HeaderName})
}

// JWKS publishes the access token verification keys.
func (a *API) JWKS(w http.ResponseWriter, r *http.Request) {
	set, err := a.engine.PublicJWKS(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, goSession.ReasonServerError)
		return
	}
	w.Header().Set("Cache-Control", "public, max-age=300")
	writeJSON(w, http.StatusOK, set)
}

// Health reports liveness and, when configured, the store check.
func (a *API) Health(w http.ResponseWriter, r *http.Request) {
	if a.health != nil {
		if err := a.health(r.Context()); err != nil {
			a.logger.ErrorContext(r.Context(), "health check failed", slog.Any("error", err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
