package middleware

import (
	"net/http"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/csrf"
)

// RequireCSRF rejects unsafe requests whose X-CSRF-Token header does not
// match the CSRF cookie with 403. GET, HEAD and OPTIONS pass through.
func RequireCSRF(engine *goSession.Engine) func(http.Handler) http.Handler {
	cookieName := csrf.CookieName
	if engine != nil {
		cookieName = engine.Config().Cookies.CSRFName
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
				return
			}

			cookieValue := ""
			if c, err := r.Cookie(cookieName); err == nil {
				cookieValue = c.Value
			}
			if err := engine.ValidateCSRF(r.Header.Get(csrf.HeaderName), cookieValue); err != nil {
				writeError(w, http.StatusForbidden, goSession.ReasonCSRFInvalid)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
