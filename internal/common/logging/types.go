// Package logging provides the structured logger shared by the connector.
//
// Log output goes to stderr (or LOG_FILE) so that stdout stays reserved for
// action results printed by the CLI.
package logging

import (
	"context"
	"io"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap/zapcore"
)

// Field represents a key-value pair for structured logging
type Field struct {
	Key   string
	Value interface{}
}

// Logger defines the interface for structured logging
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, err error, fields ...Field)
	WithFields(fields ...Field) Logger
	WithContext(ctx context.Context) Logger
}

// Output formats
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Config selects the level, encoding and destination of log entries.
// A nil Output means stderr.
type Config struct {
	Level  zapcore.Level
	Format string
	Output io.Writer
}

// ParseLevel reads LOG_LEVEL values. "warning" is accepted for warn and
// anything unrecognised falls back to info.
func ParseLevel(s string) zapcore.Level {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "warning" {
		return zapcore.WarnLevel
	}
	level, err := zapcore.ParseLevel(s)
	if err != nil || level > zapcore.ErrorLevel {
		return zapcore.InfoLevel
	}
	return level
}

// ConfigFromEnv builds a Config from LOG_LEVEL and LOG_FORMAT
func ConfigFromEnv() Config {
	format := strings.ToLower(os.Getenv("LOG_FORMAT"))
	if format != FormatJSON {
		format = FormatConsole
	}
	return Config{
		Level:  ParseLevel(os.Getenv("LOG_LEVEL")),
		Format: format,
	}
}

type contextKey struct{}

// ContextWithRequestID returns a copy of ctx carrying a correlation id picked up by WithContext
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, contextKey{}, requestID)
}

// RequestIDFromContext returns the correlation id stored in ctx, if any
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(contextKey{}).(string)
	return id, ok && id != ""
}

var (
	globalMu     sync.RWMutex
	globalLogger Logger
)

// SetGlobalLogger replaces the process-wide logger
func SetGlobalLogger(logger Logger) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalLogger = logger
}

// GetGlobalLogger returns the process-wide logger, creating a stderr logger on first use
func GetGlobalLogger() Logger {
	globalMu.RLock()
	logger := globalLogger
	globalMu.RUnlock()
	if logger != nil {
		return logger
	}

	globalMu.Lock()
	defer globalMu.Unlock()
	if globalLogger == nil {
		globalLogger = NewZapLogger(ConfigFromEnv())
	}
	return globalLogger
}

// Debug logs through the global logger
func Debug(msg string, fields ...Field) { GetGlobalLogger().Debug(msg, fields...) }

// Info logs through the global logger
func Info(msg string, fields ...Field) { GetGlobalLogger().Info(msg, fields...) }

// Warn logs through the global logger
func Warn(msg string, fields ...Field) { GetGlobalLogger().Warn(msg, fields...) }

// Error logs through the global logger
func Error(msg string, err error, fields ...Field) { GetGlobalLogger().Error(msg, err, fields...) }
