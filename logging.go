package fleettracker

import (
	"log/slog"
	"os"
	"strings"
)

// InitLogging installs the process-wide slog handler. level is one of
// debug|info|warn|error; anything else falls back to info.
func InitLogging(level string) {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	h := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(h))
}
