package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestZapAdapter(t *testing.T) {
	t.Run("console", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewZapLogger(Config{Level: zapcore.DebugLevel, Output: &buf})

		logger.Debug("debug message", Field{"key", "value"})
		logger.Info("info message", Field{"count", 42})
		logger.Warn("warn message", Field{"enabled", true})
		logger.Error("error message", errors.New("test error"), Field{"code", "ERR123"})

		output := buf.String()
		assert.Contains(t, output, "DEBUG")
		assert.Contains(t, output, "debug message")
		assert.Contains(t, output, "INFO")
		assert.Contains(t, output, "WARN")
		assert.Contains(t, output, "ERROR")
		assert.Contains(t, output, "test error")
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewZapLogger(Config{Level: zapcore.InfoLevel, Format: FormatJSON, Output: &buf})

		logger.Error("call failed", errors.New("boom"), Strings("ids", []string{"a", "b"}))

		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "error", entry["level"])
		assert.Equal(t, "call failed", entry["msg"])
		assert.Equal(t, "boom", entry["error"])
		assert.Equal(t, []interface{}{"a", "b"}, entry["ids"])
		assert.NotEmpty(t, entry["time"])
	})

	t.Run("level filtering", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewZapLogger(Config{Level: zapcore.WarnLevel, Output: &buf})

		logger.Debug("hidden debug")
		logger.Info("hidden info")
		logger.Warn("shown warn")

		output := buf.String()
		assert.NotContains(t, output, "hidden")
		assert.Contains(t, output, "shown warn")
	})

	t.Run("with fields", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewZapLogger(Config{Level: zapcore.InfoLevel, Output: &buf}).
			WithFields(Field{"component", "transport"})

		logger.Info("test message", Field{"status", 200})
		assert.Same(t, logger, logger.WithFields())

		output := buf.String()
		assert.Contains(t, output, "transport")
		assert.Contains(t, output, "test message")
		assert.Contains(t, output, "200")
	})

	t.Run("with context", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewZapLogger(Config{Level: zapcore.InfoLevel, Format: FormatJSON, Output: &buf})

		ctx := ContextWithRequestID(context.Background(), "8f14e45f")
		logger.WithContext(ctx).Info("correlated")
		logger.WithContext(context.Background()).Info("uncorrelated")

		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		require.Len(t, lines, 2)
		assert.Contains(t, lines[0], `"request_id":"8f14e45f"`)
		assert.NotContains(t, lines[1], "request_id")
	})
}

func TestErrField(t *testing.T) {
	err := errors.New("boom")
	assert.Equal(t, Field{"error", err}, Err(err))
	assert.Equal(t, Field{"k", []string{"a"}}, Strings("k", []string{"a"}))
}
