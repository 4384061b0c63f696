package logging

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newObserved(t *testing.T, level LogLevel) (LoggerFactory, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	factory, err := NewLoggingBuilder().SetMinimumLevel(level).AddCore(core).Build()
	require.NoError(t, err)
	return factory, logs
}

func TestLogLevelString(t *testing.T) {
	assert.Equal(t, "TRACE", LogLevelTrace.String())
	assert.Equal(t, "INFO", LogLevelInfo.String())
	assert.Equal(t, "ERROR", LogLevelError.String())
	assert.Equal(t, "UNKNOWN", LogLevel(42).String())
}

func TestLoggerWritesCategoryAndFields(t *testing.T) {
	factory, logs := newObserved(t, LogLevelDebug)

	logger := factory.CreateLogger("Test")
	logger.Info("Hello", Field{Key: "key", Value: "val"})

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "Hello", entries[0].Message)
	assert.Equal(t, "Test", entries[0].LoggerName)
	assert.Equal(t, "val", entries[0].ContextMap()["key"])
}

func TestMinimumLevelFilters(t *testing.T) {
	factory, logs := newObserved(t, LogLevelWarn)

	logger := factory.CreateLogger("Filter")
	logger.Debug("dropped")
	logger.Info("dropped")
	logger.Warn("kept")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "kept", logs.All()[0].Message)

	// 运行时调低级别
	factory.SetMinimumLevel(LogLevelDebug)
	logger.Debug("now kept")
	assert.Equal(t, 2, logs.Len())
}

func TestWithFieldsAndCategory(t *testing.T) {
	factory, logs := newObserved(t, LogLevelTrace)

	base := factory.CreateLogger("A").WithFields(Field{Key: "bean", Value: "userService"})
	base.WithCategory("B").Error("boom", Field{Key: "error", Value: errors.New("bad")})

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "B", entries[0].LoggerName)
	ctx := entries[0].ContextMap()
	assert.Equal(t, "userService", ctx["bean"])
	assert.Equal(t, "bad", ctx["error"])
}

func TestFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")

	factory, err := NewLoggingBuilder().UseJSON().AddFile(path).Build()
	require.NoError(t, err)

	factory.CreateLogger("File").Info("persisted", Field{Key: "n", Value: 1})
	_ = factory.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), `"msg":"persisted"`))
	assert.True(t, strings.Contains(string(data), `"logger":"File"`))
}

func TestNopAndZap(t *testing.T) {
	NewNop().Info("nothing")

	core, logs := observer.New(zapcore.InfoLevel)
	NewZap(zap.New(core)).Info("wrapped")
	assert.Equal(t, 1, logs.Len())
}
