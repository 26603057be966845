// Package logger configures the process-wide slog handler for the
// retrieval runner. Level and format come from configuration; components
// derive their own loggers with WithComponent so packages never build
// handlers themselves.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
)

// Setup installs the default slog handler. Logs go to stderr so run
// output piped through stdout stays clean. An unrecognised level is an
// error: the CLI must refuse to start rather than run half-silent.
func Setup(level string, format string) error {
	lvl, err := parseLevel(level)
	if err != nil {
		return err
	}
	SetupWriter(os.Stderr, lvl, format)
	return nil
}

// SetupWriter is Setup with an explicit sink, used by tests to capture
// output without touching process streams.
func SetupWriter(w io.Writer, level slog.Level, format string) {
	opts := &slog.HandlerOptions{
		Level: level,
	}
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// WithComponent returns the default logger tagged with a component name.
func WithComponent(component string) *slog.Logger {
	return slog.Default().With("component", component)
}

func parseLevel(level string) (slog.Level, error) {
	switch level {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", level)
	}
}
