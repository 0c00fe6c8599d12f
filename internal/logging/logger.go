// Package logging defines a minimal structured-logging interface used across
// the project, with log/slog and zap backends.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// Logger is a context-aware, structured logger.
//
// The variadic args are interpreted as key–value pairs, e.g.:
//
//	log.Info(ctx, "profile submitted", "user_id", id, "fields", names)
type Logger interface {
	// Debug logs diagnostic detail that is off in production by default.
	Debug(ctx context.Context, msg string, args ...any)

	// Info logs an informational message.
	Info(ctx context.Context, msg string, args ...any)

	// Warn logs a warning message for unusual but non-fatal conditions.
	Warn(ctx context.Context, msg string, args ...any)

	// Error logs an error message for failures.
	Error(ctx context.Context, msg string, args ...any)

	// With returns a child logger that always includes the given key–value pairs.
	With(args ...any) Logger
}

// Backend names accepted by New.
const (
	FormatSlog = "slog"
	FormatZap  = "zap"
)

// New builds a Logger for the given backend name. Unknown names fall back to
// a JSON slog logger writing to stdout.
func New(format string) (Logger, error) {
	switch format {
	case FormatZap:
		return NewProductionZapLogger()
	default:
		return NewJSONSlogLogger(os.Stdout), nil
	}
}

// NewJSONSlogLogger returns a slog-backed Logger emitting JSON lines to w.
func NewJSONSlogLogger(w io.Writer) *SlogLogger {
	return NewSlogLogger(slog.New(slog.NewJSONHandler(w, nil)))
}

// Nop returns a Logger that discards everything. Handy in tests.
func Nop() Logger {
	return NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}
