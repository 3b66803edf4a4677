package logger

import (
	"log/slog"
	"os"
	"strings"
)

// NewLogger initializes and returns a structured logger using slog.
// It outputs JSON-formatted logs to stdout, suitable for production.
// The minimum level comes from LOG_LEVEL (debug|info|warn|error), default info.
func NewLogger() *slog.Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		AddSource: false,
		Level:     parseLevel(os.Getenv("LOG_LEVEL")),
	})
	return slog.New(handler)
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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
