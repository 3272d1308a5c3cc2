package logger

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	globalLogger *zap.Logger
	once         sync.Once
)

// Init builds the process-wide logger. Subsequent calls are no-ops.
func Init(level string) error {
	var err error
	once.Do(func() {
		globalLogger, err = build(level)
	})
	return err
}

// Get returns the global logger, initializing with defaults if needed.
func Get() *zap.Logger {
	if globalLogger == nil {
		level := os.Getenv("LOG_LEVEL")
		if level == "" {
			level = "info"
		}
		_ = Init(level)
	}
	return globalLogger
}

// Sync flushes buffered entries; call it on shutdown.
func Sync() {
	if globalLogger != nil {
		_ = globalLogger.Sync()
	}
}

func Debug(msg string, fields ...zap.Field) { Get().Debug(msg, fields...) }

func Info(msg string, fields ...zap.Field) { Get().Info(msg, fields...) }

func Warn(msg string, fields ...zap.Field) { Get().Warn(msg, fields...) }

func Error(msg string, fields ...zap.Field) { Get().Error(msg, fields...) }

func Fatal(msg string, fields ...zap.Field) { Get().Fatal(msg, fields...) }

func build(level string) (*zap.Logger, error) {
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		zapLevel = zapcore.InfoLevel
	}

	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(zapLevel)
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.EncoderConfig.MessageKey = "message"

	return config.Build()
}
