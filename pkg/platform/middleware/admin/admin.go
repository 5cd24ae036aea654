// Package admin guards operator-only endpoints with a shared token.
// Deprovisioning is destructive enough to require this second factor on top
// of the bearer token.
package admin

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	dErrors "caretrip/pkg/domain-errors"
	"caretrip/pkg/platform/httputil"
	"caretrip/pkg/requestcontext"
)

func RequireAdminToken(expectedToken string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// An unconfigured token closes the endpoint rather than opening it.
			if expectedToken == "" {
				httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "admin endpoints are disabled"))
				return
			}
			token := r.Header.Get("X-Admin-Token")
			// Constant-time comparison; the guard must not leak prefix
			// matches through timing.
			if subtle.ConstantTimeCompare([]byte(token), []byte(expectedToken)) != 1 {
				logger.WarnContext(r.Context(), "admin token mismatch",
					"request_id", requestcontext.RequestID(r.Context()),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "admin token required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
