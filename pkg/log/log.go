// Package log configures the process-wide slog default for the flowgraph
// and flowgraph-api binaries. Both use a text handler on stderr so run
// output on stdout (the CLI's NDJSON stream) stays machine-readable.
package log

import (
	"log/slog"
	"os"
)

// Setup installs the default logger at the given level. Unknown level
// strings fall back to info, matching the --log-level flag default.
func Setup(logLevel string) {
	var level slog.Level

	switch logLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})))
}

// WithModule tags a logger with the subsystem it serves ("api", "run",
// "schedule", ...) so one binary's output can be filtered per concern.
func WithModule(module string) *slog.Logger {
	return slog.With("module", module)
}
