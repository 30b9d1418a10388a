package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

var (
	// Log is the process-wide logger.
	Log *slog.Logger

	output io.Writer = os.Stderr
)

func init() {
	Log = slog.New(slog.NewTextHandler(output, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

// SetLevel changes the logging level, keeping text output.
func SetLevel(level slog.Level) {
	Log = slog.New(slog.NewTextHandler(output, &slog.HandlerOptions{Level: level}))
}

// SetJSONWithLevel switches to JSON output with a custom level.
func SetJSONWithLevel(level slog.Level) {
	Log = slog.New(slog.NewJSONHandler(output, &slog.HandlerOptions{Level: level}))
}

// SetOutput redirects log output. Call Configure or SetLevel afterwards to rebuild the handler.
func SetOutput(w io.Writer) {
	if w == nil {
		w = io.Discard
	}
	output = w
}

// Configure applies a level name (debug, info, warn, error) and a format (text, json).
func Configure(level string, format string) {
	parsed := ParseLevel(level)
	if strings.EqualFold(strings.TrimSpace(format), "json") {
		SetJSONWithLevel(parsed)
		return
	}
	SetLevel(parsed)
}

// ParseLevel maps a level name to a slog.Level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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
