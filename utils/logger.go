package utils

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/lmittmann/tint"
)

var (
	globalLogger *slog.Logger
	logFile      *os.File
	logOnce      sync.Once
)

// ParseLevel maps a config/flag string onto a slog level. Unknown values
// fall back to INFO.
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

// InitLogger creates the process-wide logger. Call once at startup; later
// calls return the logger built by the first one.
func InitLogger(minLevel slog.Level, logFilePath string) *slog.Logger {
	logOnce.Do(func() {
		var w io.Writer = os.Stdout
		noColor := false

		if logFilePath != "" {
			f, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
			if err == nil {
				logFile = f
				w = io.MultiWriter(os.Stdout, f)
				noColor = true
			} else {
				slog.Warn("could not open log file", "path", logFilePath, "error", err)
			}
		}

		globalLogger = slog.New(tint.NewHandler(w, &tint.Options{
			Level:      minLevel,
			TimeFormat: "2006-01-02 15:04:05.000",
			NoColor:    noColor,
		}))
	})
	return globalLogger
}

// L returns the global logger, initialising a stdout-only DEBUG logger if
// InitLogger has not been called.
func L() *slog.Logger {
	if globalLogger == nil {
		return InitLogger(slog.LevelDebug, "")
	}
	return globalLogger
}

// CloseLogger closes the log file, if any.
func CloseLogger() {
	if logFile != nil {
		_ = logFile.Close()
	}
}
