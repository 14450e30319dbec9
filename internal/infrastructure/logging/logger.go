package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/bivex/subscription-renewals/internal/infrastructure/config"
)

var Logger = zap.NewNop()

// Init initializes the global logger. When a log file is configured, JSON
// entries are also written to a rotated file.
func Init(logCfg config.LogConfig, sentryCfg *config.SentryConfig) error {
	// Use development config in dev/staging, production in prod
	environment := "production"
	if sentryCfg != nil && sentryCfg.Environment != "" {
		environment = sentryCfg.Environment
	}

	level := zap.InfoLevel
	if logCfg.Level != "" {
		parsed, err := zapcore.ParseLevel(logCfg.Level)
		if err != nil {
			return err
		}
		level = parsed
	}

	var consoleEncoder zapcore.Encoder
	if environment == "development" {
		encoderConfig := zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		consoleEncoder = zapcore.NewConsoleEncoder(encoderConfig)
	} else {
		consoleEncoder = zapcore.NewJSONEncoder(productionEncoderConfig())
	}

	cores := []zapcore.Core{
		zapcore.NewCore(consoleEncoder, zapcore.Lock(os.Stdout), level),
	}
	if logCfg.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   logCfg.File,
			MaxSize:    logCfg.MaxSizeMB,
			MaxBackups: logCfg.MaxBackups,
			MaxAge:     logCfg.MaxAgeDays,
			Compress:   true,
		}
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(productionEncoderConfig()),
			zapcore.AddSync(rotator),
			level,
		))
	}

	Logger = zap.New(zapcore.NewTee(cores...),
		zap.AddCaller(),
		zap.AddStacktrace(zap.ErrorLevel),
		zap.ErrorOutput(zapcore.Lock(os.Stderr)),
	)

	if sentryCfg != nil && sentryCfg.DSN != "" {
		if err := InitSentry(*sentryCfg); err != nil {
			Logger.Warn("Sentry initialization failed", zap.Error(err))
		} else {
			Logger.Info("Sentry error reporting enabled", zap.String("environment", environment))
		}
	}

	return nil
}

func productionEncoderConfig() zapcore.EncoderConfig {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return encoderConfig
}

// Sync flushes any buffered log entries
func Sync() {
	if Logger != nil {
		_ = Logger.Sync()
	}
	FlushSentry()
}

// WithComponent creates a child logger with a component field
func WithComponent(component string) *zap.Logger {
	return Logger.With(zap.String("component", component))
}

// WithRequestID creates a child logger with a request_id field
func WithRequestID(requestID string) *zap.Logger {
	return Logger.With(zap.String("request_id", requestID))
}

// WithSubscriptionID creates a child logger with a subscription_id field
func WithSubscriptionID(subscriptionID string) *zap.Logger {
	return Logger.With(zap.String("subscription_id", subscriptionID))
}

// Debug logs a debug message
func Debug(msg string, fields ...zap.Field) {
	Logger.Debug(msg, fields...)
}

// Info logs an info message
func Info(msg string, fields ...zap.Field) {
	Logger.Info(msg, fields...)
}

// Warn logs a warning message
func Warn(msg string, fields ...zap.Field) {
	Logger.Warn(msg, fields...)
}

// Error logs an error message
func Error(msg string, fields ...zap.Field) {
	Logger.Error(msg, fields...)
}

// Fatal logs a fatal message and exits
func Fatal(msg string, fields ...zap.Field) {
	Logger.Fatal(msg, fields...)
	os.Exit(1)
}
