package logging

import (
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func resetLoggerForTest() {
	initOnce = sync.Once{}
	logger = nil
	exitFunc = os.Exit
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		value string
		want  zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"DEBUG", zapcore.DebugLevel},
		{"warn", zapcore.WarnLevel},
		{"warning", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"info", zapcore.InfoLevel},
		{"", zapcore.InfoLevel},
		{"verbose", zapcore.InfoLevel},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseLevel(tt.value), "parseLevel(%q)", tt.value)
	}
}

func TestLoggerSingleton(t *testing.T) {
	resetLoggerForTest()
	first := L()
	second := L()
	assert.Same(t, first, second)
}

func TestEnvLevelControlsLogger(t *testing.T) {
	t.Setenv("RAPORTA_LOG_LEVEL", "debug")
	t.Setenv("RAPORTA_LOG_FORMAT", "json")

	l := newLogger()
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel))

	t.Setenv("RAPORTA_LOG_LEVEL", "error")
	l = newLogger()
	assert.False(t, l.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, l.Core().Enabled(zapcore.ErrorLevel))
}

func TestFatalInvokesExitFunction(t *testing.T) {
	resetLoggerForTest()

	var exitCode int
	exitFunc = func(code int) {
		exitCode = code
	}

	logger = zap.NewNop()
	initOnce.Do(func() {}) // mark initialized so L() keeps the nop logger

	Fatal("boom", zap.String("key", "value"))

	require.Equal(t, 1, exitCode)
}

func TestSyncWithoutLogger(t *testing.T) {
	resetLoggerForTest()
	assert.Nil(t, Sync())
}
