package requestid

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caretrip/pkg/requestcontext"
)

func serve(t *testing.T, incoming string) (*httptest.ResponseRecorder, string) {
	t.Helper()
	var seen string
	handler := Middleware(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = requestcontext.RequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if incoming != "" {
		req.Header.Set(Header, incoming)
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w, seen
}

func TestMiddleware_TrustsIncomingID(t *testing.T) {
	w, seen := serve(t, "req-from-gateway")

	assert.Equal(t, "req-from-gateway", seen)
	assert.Equal(t, "req-from-gateway", w.Header().Get(Header))
}

func TestMiddleware_MintsWhenAbsent(t *testing.T) {
	w, seen := serve(t, "")

	require.NotEmpty(t, seen)
	assert.Equal(t, seen, w.Header().Get(Header))
	_, err := uuid.Parse(seen)
	assert.NoError(t, err, "minted IDs are UUIDs")
}
