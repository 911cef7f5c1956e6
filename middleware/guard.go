package middleware

import (
	"context"
	"net/http"
	"strings"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/jwt"
)

type claimsContextKey struct{}

// ClaimsFromContext returns the claims injected by [RequireAccess].
func ClaimsFromContext(ctx context.Context) (*jwt.AccessClaims, bool) {
	claims, ok := ctx.Value(claimsContextKey{}).(*jwt.AccessClaims)
	return claims, ok
}

// RequireAccess rejects requests without a valid access token with 401. The
// token is read from the Authorization header, then from the access cookie.
//
//	Performance: no I/O, verification is stateless.
func RequireAccess(engine *goSession.Engine) func(http.Handler) http.Handler {
	cookieName := ""
	if engine != nil {
		cookieName = engine.Config().Cookies.AccessName
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := AccessToken(r, cookieName)
			if !ok {
				writeError(w, http.StatusUnauthorized, goSession.ReasonUnauthorized)
				return
			}

			claims, err := engine.Authenticate(r.Context(), token)
			if err != nil {
				writeError(w, http.StatusUnauthorized, goSession.ReasonUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), claimsContextKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AccessToken returns the bearer token, or the value of cookieName when the
// request carries no Authorization header.
func AccessToken(r *http.Request, cookieName string) (string, bool) {
	if header := r.Header.Get("Authorization"); header != "" {
		return ExtractBearer(header)
	}
	if cookieName == "" {
		return "", false
	}
	c, err := r.Cookie(cookieName)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}

// ExtractBearer parses "Bearer <token>". The scheme is case-insensitive and
// must be followed by exactly one space and a token without whitespace.
func ExtractBearer(header string) (string, bool) {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	if token == "" || strings.ContainsAny(token, " \t\r\n") {
		return "", false
	}
	return token, true
}
