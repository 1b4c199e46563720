// Package logutil provides slog setup and nil-safe logger helpers.
package logutil

import (
	"io"
	"log/slog"
	"strings"
)

var noop = slog.New(slog.NewTextHandler(io.Discard, nil))

// Noop returns a logger that discards all output.
func Noop() *slog.Logger { return noop }

// NoopIfNil returns l when non-nil, otherwise a discard logger.
func NoopIfNil(l *slog.Logger) *slog.Logger {
	if l != nil {
		return l
	}
	return noop
}

// ParseLevel maps debug/info/warn/error to a slog.Level. Unknown values are info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New returns a text logger writing to w at the given level.
func New(w io.Writer, level string) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)}))
}
