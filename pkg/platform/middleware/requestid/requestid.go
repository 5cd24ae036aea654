// Package requestid propagates a correlation ID through the request context
// and response headers. Incoming X-Request-ID values are trusted as-is;
// absent ones are minted here.
package requestid

import (
	"net/http"

	"github.com/google/uuid"

	"caretrip/pkg/requestcontext"
)

const Header = "X-Request-ID"

func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(Header)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		ctx := requestcontext.WithRequestID(r.Context(), requestID)
		w.Header().Set(Header, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
