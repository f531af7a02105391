package middleware

import (
	"net/http"

	"github.com/giftshift/giftshift-backend/internal/api/httpx"
	"github.com/giftshift/giftshift-backend/internal/config"
)

// RequireAdmin allows admins by role claim or by the configured email
// allow-list. Identity never lives in source.
func RequireAdmin(cfg config.Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := GetClaims(r.Context())
			if !ok {
				httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "missing credentials", nil)
				return
			}
			if claims.Role != "admin" && !cfg.IsAdminEmail(claims.Email) {
				httpx.WriteError(w, http.StatusForbidden, "forbidden", "admin access required", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
