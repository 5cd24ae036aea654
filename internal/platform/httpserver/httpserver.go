// Package httpserver builds the process HTTP server.
package httpserver

import (
	"net/http"
	"time"
)

// ShutdownTimeout bounds the graceful drain on SIGTERM. Saga steps run under
// shorter per-call deadlines, so in-flight provisioning finishes inside it.
const ShutdownTimeout = 10 * time.Second

// New builds an HTTP server with this service's timeouts.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
