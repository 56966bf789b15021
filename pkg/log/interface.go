// Package log provides the structured logging interface used by searchcv.
//
// The interface is slog-compatible so callers can plug in any backend; the
// package ships a zerolog implementation for production use, a no-op logger
// for library defaults and an in-memory logger for tests.
//
// Example usage:
//
//	logger := log.NewZerologLogger(os.Stderr, log.LevelInfo).With(
//	    log.RunIDKey, runID,
//	)
//	logger.Info("Search completed",
//	    log.ModelNameKey, "Ridge",
//	    log.BestScoreKey, -0.41,
//	)
package log

import (
	"context"
	"fmt"
	"strings"
)

// Logger defines a structured logging interface compatible with Go's log/slog.
//
// Fields are passed as alternating key/value pairs. Error may additionally
// receive an error value as its first field, which is logged under
// ErrAttrKey together with its stack trace when one is available.
type Logger interface {
	// Debug logs detailed diagnostic information, e.g. per-fold scores.
	Debug(msg string, fields ...any)

	// Info logs general progress such as search start and completion.
	Info(msg string, fields ...any)

	// Warn logs recoverable anomalies.
	Warn(msg string, fields ...any)

	// Error logs failures.
	//
	//	logger.Error("Search failed", err, log.ModelNameKey, "Ridge")
	Error(msg string, fields ...any)

	// With returns a Logger that adds the given fields to every record.
	With(fields ...any) Logger

	// Enabled reports whether records at level would be emitted.
	Enabled(ctx context.Context, level Level) bool
}

// Level represents a logging level, compatible with slog.Level.
type Level int

// Standard logging levels, values are compatible with slog.Level.
const (
	LevelDebug Level = -4
	LevelInfo  Level = 0
	LevelWarn  Level = 4
	LevelError Level = 8
)

// String returns the string representation of the log level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts "debug", "info", "warn" or "error" into a Level.
func ParseLevel(level string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("invalid log level: %s", level)
	}
}

type nopLogger struct{}

// Nop returns a Logger that discards everything. It is the default sink of
// every component that accepts a logger option.
func Nop() Logger { return nopLogger{} }

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any) {}
func (nopLogger) Warn(string, ...any) {}
func (nopLogger) Error(string, ...any) {}
func (n nopLogger) With(...any) Logger { return n }
func (nopLogger) Enabled(context.Context, Level) bool { return false }
