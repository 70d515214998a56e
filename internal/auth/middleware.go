package auth

import (
	"net/http"

	"github.com/defter-erp/defter/internal/platform/httpx"
)

// CookieName carries the session token.
const CookieName = "defter_session"

// RequireSession rejects requests without a valid session token and attaches
// the resolved identity to the request context.
func RequireSession(sessions *SessionStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(CookieName)
			if err != nil || cookie.Value == "" {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing session")
				return
			}
			identity, ok, err := sessions.Get(r.Context(), cookie.Value)
			if err != nil {
				httpx.Problem(w, http.StatusInternalServerError, "Internal Server Error", "session lookup failed")
				return
			}
			if !ok {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "invalid or expired session")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}
