// Package klog provides the kernel's two package-level structured loggers.
package klog

import (
	"log/slog"
	"os"
)

var (
	InfoLog  *slog.Logger
	ErrorLog *slog.Logger
)

// Init configures the global loggers at the given level. Call once at
// startup; every other package assumes InfoLog/ErrorLog are non-nil.
func Init(level string, module string) {
	var lvl slog.Level

	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: lvl,
	})

	logger := slog.New(handler).With("module", module)

	InfoLog = logger
	ErrorLog = logger
}

func init() {
	// safe defaults so packages can log before Init runs, e.g. in tests
	Init("info", "nachos")
}
