package httpapi_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/csrf"
	"github.com/MrEthical07/goSession/httpapi"
	"github.com/MrEthical07/goSession/internal/enginetest"
	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/keys"
)

type harness struct {
	t       *testing.T
	fixture *enginetest.Fixture
	handler http.Handler
}

func setup(t *testing.T, cfg goSession.Config, opts ...httpapi.Option) *harness {
	t.Helper()
	f := enginetest.New(t, cfg)
	return &harness{t: t, fixture: f, handler: httpapi.New(f.Engine, opts...).Router()}
}

func (h *harness) do(method, target string, header http.Header, cookies ...*http.Cookie) *http.Response {
	h.t.Helper()
	req := httptest.NewRequest(method, target, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	for _, c := range cookies {
		req.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec.Result()
}

func findCookie(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

// login drives /auth/login and the callback and returns the callback response.
func (h *harness) login() *http.Response {
	h.t.Helper()
	resp := h.do(http.MethodGet, "/auth/login", nil)
	require.Equal(h.t, http.StatusFound, resp.StatusCode)
	loc, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(h.t, err)
	state := findCookie(resp, "rp_oauth_state")
	require.NotNil(h.t, state)

	q := url.Values{"code": {enginetest.GoodCode}, "state": {loc.Query().Get("state")}}
	return h.do(http.MethodGet, "/auth/callback/google?"+q.Encode(), nil, state)
}

func TestLoginSetsStateCookie(t *testing.T) {
	h := setup(t, enginetest.Config(t))

	resp := h.do(http.MethodGet, "/auth/login", nil)
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Location"), "https://accounts.example.com/auth?state="))

	c := findCookie(resp, "rp_oauth_state")
	require.NotNil(t, c)
	assert.True(t, c.HttpOnly)
	assert.Equal(t, 300, c.MaxAge)
	assert.Equal(t, "/", c.Path)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
	assert.False(t, c.Secure)
}

func TestCallbackSuccessSetsCredentialCookies(t *testing.T) {
	h := setup(t, enginetest.Config(t))

	resp := h.login()
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/dashboard", resp.Header.Get("Location"))

	refresh := findCookie(resp, "rp_refresh")
	require.NotNil(t, refresh)
	assert.True(t, refresh.HttpOnly)
	assert.Equal(t, int((30 * 24 * time.Hour).Seconds()), refresh.MaxAge)
	assert.Contains(t, refresh.Value, ":")

	access := findCookie(resp, "rp_access")
	require.NotNil(t, access)
	assert.False(t, access.HttpOnly)
	assert.Equal(t, int((15 * time.Minute).Seconds()), access.MaxAge)

	state := findCookie(resp, "rp_oauth_state")
	require.NotNil(t, state)
	assert.Equal(t, "", state.Value)
	assert.Less(t, state.MaxAge, 0)
}

func TestCallbackFailuresRedirectWithReason(t *testing.T) {
	h := setup(t, enginetest.Config(t))

	resp := h.do(http.MethodGet, "/auth/callback/google?code=good&state=forged", nil,
		&http.Cookie{Name: "rp_oauth_state", Value: "forged.00"})
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/login?reason=invalid_state", resp.Header.Get("Location"))
	assert.Nil(t, findCookie(resp, "rp_refresh"))
	assert.NotNil(t, findCookie(resp, "rp_oauth_state"))

	resp = h.do(http.MethodGet, "/auth/callback/google?error=access_denied", nil)
	assert.Equal(t, "/login?reason=access_denied", resp.Header.Get("Location"))

	resp = h.do(http.MethodGet, "/auth/callback/google?error=%3Cscript%3E", nil)
	assert.Equal(t, "/login?reason=provider_error", resp.Header.Get("Location"))

	h.fixture.Identity.SetProfile(goSession.Profile{SubjectID: "g-2", Email: "bob@example.com"})
	resp = h.login()
	assert.Equal(t, "/login?reason=email_not_verified", resp.Header.Get("Location"))
	assert.Nil(t, findCookie(resp, "rp_access"))
}

func TestRefreshEndpoint(t *testing.T) {
	h := setup(t, enginetest.Config(t))
	login := h.login()
	refresh := findCookie(login, "rp_refresh")
	require.NotNil(t, refresh)

	resp := h.do(http.MethodPost, "/auth/refresh", nil, refresh)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "no-store", resp.Header.Get("Cache-Control"))
	var body struct {
		AccessToken string `json:"accessToken"`
	}
	decode(t, resp, &body)
	assert.NotEmpty(t, body.AccessToken)

	rotated := findCookie(resp, "rp_refresh")
	require.NotNil(t, rotated)
	assert.NotEqual(t, refresh.Value, rotated.Value)
	access := findCookie(resp, "rp_access")
	require.NotNil(t, access)
	assert.Equal(t, body.AccessToken, access.Value)

	resp = h.do(http.MethodPost, "/auth/refresh", nil, refresh)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	var errBody httpapi.ErrorResponse
	decode(t, resp, &errBody)
	assert.Equal(t, "unauthorized", errBody.Error)
	cleared := findCookie(resp, "rp_refresh")
	require.NotNil(t, cleared)
	assert.Less(t, cleared.MaxAge, 0)
	assert.NotNil(t, findCookie(resp, "rp_access"))

	resp = h.do(http.MethodPost, "/auth/refresh", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestLogoutRequiresCSRFAndRevokes(t *testing.T) {
	h := setup(t, enginetest.Config(t))
	refresh := findCookie(h.login(), "rp_refresh")
	require.NotNil(t, refresh)

	resp := h.do(http.MethodPost, "/auth/logout", nil, refresh)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = h.do(http.MethodGet, "/auth/csrf", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	csrfCookie := findCookie(resp, "rp_csrf")
	require.NotNil(t, csrfCookie)
	var pair struct {
		Token      string `json:"csrfToken"`
		HeaderName string `json:"headerName"`
	}
	decode(t, resp, &pair)
	assert.Equal(t, csrf.HeaderName, pair.HeaderName)

	header := http.Header{}
	header.Set(csrf.HeaderName, pair.Token)
	resp = h.do(http.MethodPost, "/auth/logout", header, refresh, csrfCookie)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	cleared := findCookie(resp, "rp_refresh")
	require.NotNil(t, cleared)
	assert.Less(t, cleared.MaxAge, 0)

	resp = h.do(http.MethodPost, "/auth/refresh", nil, refresh)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = h.do(http.MethodPost, "/auth/logout", header, csrfCookie)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode, "logout without a session still succeeds")
}

func TestMe(t *testing.T) {
	cfg := enginetest.Config(t)
	h := setup(t, cfg)
	access := findCookie(h.login(), "rp_access")
	require.NotNil(t, access)

	header := http.Header{}
	header.Set("Authorization", "Bearer "+access.Value)
	resp := h.do(http.MethodGet, "/auth/me", header)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var me map[string]any
	decode(t, resp, &me)
	assert.Equal(t, "alice@example.com", me["email"])
	assert.Equal(t, "Alice", me["displayName"])
	assert.Equal(t, "https://example.com/alice.png", me["avatarUrl"])
	assert.Equal(t, []any{"USER"}, me["roles"])
	assert.Equal(t, false, me["isVerifiedStore"])
	assert.NotNil(t, me["lastLoginAt"])
	for _, field := range []string{"id", "reputation"} {
		assert.Contains(t, me, field)
	}

	resp = h.do(http.MethodGet, "/auth/me", nil, access)
	assert.Equal(t, http.StatusOK, resp.StatusCode, "access cookie fallback")

	resp = h.do(http.MethodGet, "/auth/me", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	header.Set("Authorization", "Bearer not-a-token")
	resp = h.do(http.MethodGet, "/auth/me", header)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	ghost := issueFor(t, cfg, "ghost")
	header.Set("Authorization", "Bearer "+ghost)
	resp = h.do(http.MethodGet, "/auth/me", header)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	var errBody httpapi.ErrorResponse
	decode(t, resp, &errBody)
	assert.Equal(t, "user_not_found", errBody.Error)
}

// issueFor mints a token with the engine's key for a subject that has no account.
func issueFor(t *testing.T, cfg goSession.Config, subject string) string {
	t.Helper()
	m, err := jwt.NewManager(jwt.Config{
		AccessTTL: cfg.JWT.AccessTTL,
		Issuer:    cfg.JWT.Issuer,
		Audience:  cfg.JWT.Audience,
		Keys: keys.NewProvider(keys.Config{
			Algorithm:     cfg.JWT.Algorithm,
			PrivateKeyPEM: cfg.JWT.PrivateKey,
			KeyID:         cfg.JWT.KeyID,
		}),
	})
	require.NoError(t, err)
	token, err := m.Issue(jwt.Claims{Subject: subject})
	require.NoError(t, err)
	return token
}

func TestJWKS(t *testing.T) {
	h := setup(t, enginetest.Config(t))

	resp := h.do(http.MethodGet, "/.well-known/jwks.json", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var set keys.JWKSet
	decode(t, resp, &set)
	require.Len(t, set.Keys, 1)
	assert.Equal(t, "test-kid", set.Keys[0].Kid)
	assert.Equal(t, "RSA", set.Keys[0].Kty)
	assert.NotEmpty(t, set.Keys[0].N)
}

func TestHealth(t *testing.T) {
	h := setup(t, enginetest.Config(t))
	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/healthz", nil).StatusCode)

	failing := setup(t, enginetest.Config(t), httpapi.WithHealthCheck(func(context.Context) error {
		return errors.New("database is locked")
	}))
	assert.Equal(t, http.StatusServiceUnavailable, failing.do(http.MethodGet, "/healthz", nil).StatusCode)
}

func TestAuthRoutesRateLimited(t *testing.T) {
	cfg := enginetest.Config(t)
	cfg.RateLimit.Enabled = true
	cfg.RateLimit.Limit = 1
	h := setup(t, cfg)

	header := http.Header{}
	header.Set("X-Forwarded-For", "203.0.113.50")
	resp := h.do(http.MethodGet, "/auth/csrf", header)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "0", resp.Header.Get("X-RateLimit-Remaining"))

	resp = h.do(http.MethodGet, "/auth/csrf", header)
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	var errBody httpapi.ErrorResponse
	decode(t, resp, &errBody)
	assert.Equal(t, "rate_limited", errBody.Error)

	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/healthz", header).StatusCode, "health is not limited")
}
