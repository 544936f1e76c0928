package logging

import (
	"fmt"
	"io"
	"os"
)

// InitGlobalLogger installs a logger configured from LOG_LEVEL, LOG_FORMAT and LOG_FILE.
// The returned closer releases the log file, if one was opened.
func InitGlobalLogger() (io.Closer, error) {
	config := ConfigFromEnv()

	var closer io.Closer = nopCloser{}
	path := os.Getenv("LOG_FILE")
	if path != "" {
		file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file %s: %w", path, err)
		}
		config.Output = file
		closer = file
	}

	logger := NewZapLogger(config)
	SetGlobalLogger(logger)

	logger.Debug("Logger initialized",
		Field{"level", config.Level.String()},
		Field{"format", config.Format},
		Field{"log_file", path},
	)
	return closer, nil
}

// MustSync flushes the global logger; call it before exit
func MustSync() {
	if zapLogger, ok := GetGlobalLogger().(*ZapAdapter); ok {
		_ = zapLogger.Sync()
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
