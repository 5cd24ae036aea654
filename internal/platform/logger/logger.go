package logger

import (
	"log/slog"
	"os"
)

// New returns the process logger. JSON output so log shippers can index the
// saga/step attributes without extra parsing.
func New(level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}

// Discard returns a logger that drops everything. For tests and optional
// dependencies that were not configured.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
