// Package requesttime pins one "now" per HTTP request. Every timestamp a
// single provisioning run writes (role assignment times, audit events) comes
// from the same instant.
package requesttime

import (
	"net/http"
	"time"

	"caretrip/pkg/requestcontext"
)

// Middleware captures the current time at the start of the request and
// stores it in the context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
