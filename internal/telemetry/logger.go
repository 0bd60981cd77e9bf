package telemetry

import (
	"log/slog"
	"os"
	"strings"
)

// NewLogger builds the process logger from the LOG_FORMAT and LOG_LEVEL
// settings. Levels are parsed case-insensitively ("INFO", "debug", ...);
// an unrecognised level falls back to info rather than silencing the
// service. Any format other than "text" selects JSON output.
func NewLogger(format, level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(format, "text") {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
