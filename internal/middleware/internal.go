package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/giftshift/giftshift-backend/internal/api/httpx"
)

// RequireCronSecret guards the internal sweep triggers. An empty configured
// secret disables the surface entirely rather than leaving it open.
func RequireCronSecret(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				httpx.WriteError(w, http.StatusNotFound, "not_found", "not found", nil)
				return
			}
			got := r.Header.Get("X-Cron-Secret")
			if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
				httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "bad cron secret", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
