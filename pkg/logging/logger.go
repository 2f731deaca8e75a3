package logging

import (
	"context"
	"log/slog"
	"strings"
)

// Level is the minimum severity a logger writes
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

// Fields are the structured attributes of one log record. Scan and execution
// code logs paths, actions and sizes through them.
type Fields map[string]interface{}

// Logger is what the scan and execution engines log through.
// FileLogger writes through log/slog; NullLogger discards everything.
type Logger interface {
	Debug(ctx context.Context, msg string, fields Fields)
	Info(ctx context.Context, msg string, fields Fields)
	Warn(ctx context.Context, msg string, fields Fields)

	// Error logs msg with err attached under the "error" key
	Error(ctx context.Context, msg string, err error, fields Fields)

	// WithFields returns a logger adding fields to every record, such as the
	// task a DiffEngine scans
	WithFields(fields Fields) Logger

	// Close flushes and releases the underlying writer
	Close() error
}

// ParseLevel parses a log level name. Unknown names yield InfoLevel.
func ParseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug":
		return DebugLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// LevelString returns the upper-case name of level
func LevelString(level Level) string {
	switch level {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func slogLevel(level Level) slog.Level {
	switch level {
	case DebugLevel:
		return slog.LevelDebug
	case WarnLevel:
		return slog.LevelWarn
	case ErrorLevel:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
