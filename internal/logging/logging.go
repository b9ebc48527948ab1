// Package logging owns the process-wide zap logger shared by the HTTP
// server, the report engine and the CLI. Behavior is driven by the
// RAPORTA_LOG_* environment variables so the serve and one-shot commands
// pick up the same settings.
package logging

import (
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	initOnce sync.Once
	logger   *zap.Logger
	exitFunc = os.Exit
)

// L returns the shared application logger, initializing it on first use.
func L() *zap.Logger {
	initOnce.Do(func() {
		logger = newLogger()
	})
	return logger
}

// Sync flushes any buffered log entries
func Sync() error {
	if logger != nil {
		return logger.Sync()
	}
	return nil
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(parseLevel(os.Getenv("RAPORTA_LOG_LEVEL")))

	switch strings.ToLower(os.Getenv("RAPORTA_LOG_FORMAT")) {
	case "json", "structured":
		config.Encoding = "json"
	default:
		config.Encoding = "console"
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	if strings.EqualFold(os.Getenv("RAPORTA_LOG_SOURCE"), "true") {
		config.Development = true
	}

	// Reports go to stdout; keep logs off that stream.
	config.OutputPaths = []string{"stderr"}
	config.ErrorOutputPaths = []string{"stderr"}

	built, err := config.Build()
	if err != nil {
		built, _ = zap.NewDevelopment()
	}
	return built.With(zap.String("service", "raporta"))
}

func parseLevel(value string) zapcore.Level {
	switch strings.ToLower(value) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Fatal logs the message at error level and exits with status 1.
func Fatal(msg string, fields ...zap.Field) {
	L().Error(msg, fields...)
	exitFunc(1)
}
