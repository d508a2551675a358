// Package logging builds the process-wide slog.Logger.
//
// By default runs get github.com/phsym/console-slog's colourised handler;
// runs under LIME_LOG_FORMAT=json get slog's own JSON handler, so relay
// deployments can ship structured logs to a collector. Output that is piped
// is not detected and keeps the console handler.
package logging

import (
	"log/slog"
	"os"

	"github.com/phsym/console-slog"
)

// New builds a logger at level, writing to w. format selects "console"
// (default) or "json".
func New(w *os.File, level slog.Level, format string) *slog.Logger {
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	default:
		handler = console.NewHandler(w, &console.HandlerOptions{Level: level})
	}
	return slog.New(handler)
}

// ParseLevel maps a config string to a slog.Level, defaulting to Info.
func ParseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
