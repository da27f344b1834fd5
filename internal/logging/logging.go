// Package logging provides structured logging using Go's slog package.
//
// The codec reports recoverable oddities in its input (tables whose declared
// number of decimals had to be corrected, lines that look like unknown fields)
// as warnings through this package instead of failing.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// ContextKey is a type for context keys to avoid collisions.
type ContextKey string

const (
	// DatabaseKey is the context key for the database path being processed.
	DatabaseKey ContextKey = "database"
)

var (
	// defaultLogger is the global logger instance.
	defaultLogger *slog.Logger

	output io.Writer = os.Stderr
	level            = LevelInfo
	format           = FormatText
)

func init() {
	InitLogger(LevelInfo, FormatText)
}

// Level represents a log level.
type Level int

const (
	// LevelDebug is for debug messages.
	LevelDebug Level = iota
	// LevelInfo is for informational messages.
	LevelInfo
	// LevelWarn is for warning messages.
	LevelWarn
	// LevelError is for error messages.
	LevelError
)

// Format represents a log output format.
type Format int

const (
	// FormatJSON outputs logs in JSON format.
	FormatJSON Format = iota
	// FormatText outputs logs in human-readable text format.
	FormatText
)

// ParseLevel converts a level name ("debug", "info", "warn", "error") to a
// Level. Unknown names map to LevelInfo.
func ParseLevel(name string) Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// ParseFormat converts "json" or "text" to a Format. Unknown names map to
// FormatText.
func ParseFormat(name string) Format {
	if strings.EqualFold(strings.TrimSpace(name), "json") {
		return FormatJSON
	}
	return FormatText
}

// InitLogger initializes the global logger with the specified level and format.
func InitLogger(l Level, f Format) {
	level = l
	format = f

	var slogLevel slog.Level
	switch l {
	case LevelDebug:
		slogLevel = slog.LevelDebug
	case LevelInfo:
		slogLevel = slog.LevelInfo
	case LevelWarn:
		slogLevel = slog.LevelWarn
	case LevelError:
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: slogLevel,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				return slog.String(slog.TimeKey, a.Value.Time().Format(time.RFC3339))
			}
			return a
		},
	}

	var handler slog.Handler
	if f == FormatJSON {
		handler = slog.NewJSONHandler(output, opts)
	} else {
		handler = slog.NewTextHandler(output, opts)
	}

	defaultLogger = slog.New(handler)
	slog.SetDefault(defaultLogger)
}

// SetOutput redirects all subsequent log output to w, keeping the current
// level and format. It returns the previous writer.
func SetOutput(w io.Writer) io.Writer {
	prev := output
	output = w
	InitLogger(level, format)
	return prev
}

// GetLogger returns the global logger instance.
func GetLogger() *slog.Logger {
	return defaultLogger
}

// WithDatabase records the database path in the context.
func WithDatabase(ctx context.Context, path string) context.Context {
	return context.WithValue(ctx, DatabaseKey, path)
}

// LoggerFromContext returns a logger with context values attached.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	logger := defaultLogger
	if path, ok := ctx.Value(DatabaseKey).(string); ok && path != "" {
		logger = logger.With("database", path)
	}
	return logger
}

// Debug logs a debug message with optional key-value pairs.
func Debug(msg string, args ...any) {
	defaultLogger.Debug(msg, args...)
}

// Info logs an info message with optional key-value pairs.
func Info(msg string, args ...any) {
	defaultLogger.Info(msg, args...)
}

// Warn logs a warning message with optional key-value pairs.
func Warn(msg string, args ...any) {
	defaultLogger.Warn(msg, args...)
}

// InfoContext logs an info message with context.
func InfoContext(ctx context.Context, msg string, args ...any) {
	LoggerFromContext(ctx).Info(msg, args...)
}

// WarnContext logs a warning message with context.
func WarnContext(ctx context.Context, msg string, args ...any) {
	LoggerFromContext(ctx).Warn(msg, args...)
}

// DecimalsRepaired logs that a table declared the wrong number of decimals
// and was corrected.
func DecimalsRepaired(table uint32, declared, deduced int) {
	defaultLogger.Warn("table number of decimals corrected",
		"table", table,
		"declared", declared,
		"deduced", deduced,
	)
}

// UnknownField logs a text line that looks like a field but is not one.
func UnknownField(name string, line int) {
	defaultLogger.Warn("possibly unknown field",
		"field", name,
		"line", line,
	)
}
