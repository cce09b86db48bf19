// Package logging builds the daemon's slog logger. Production emits
// JSON at info level for log shippers; anything else is a developer
// run and gets readable text with debug enabled, which includes the
// per-frame and per-call gateway chatter.
package logging

import (
	"io"
	"log/slog"
	"os"
)

// NewLogger creates the logger for the given environment.
func NewLogger(env string) *slog.Logger {
	return slog.New(newHandler(env, os.Stdout))
}

func newHandler(env string, w io.Writer) slog.Handler {
	if env == "production" {
		return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo})
	}

	return slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug})
}
