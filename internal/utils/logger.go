// internal/utils/logger.go
package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"device-link/internal/config"
)

// LoggerManager manages application logging
type LoggerManager struct {
	logger *zap.Logger
	config *config.LoggingConfig
}

// NewLogger creates a new logger instance based on configuration
func NewLogger(cfg *config.LoggingConfig) (*zap.Logger, error) {
	manager := &LoggerManager{
		config: cfg,
	}

	logger, err := manager.createLogger()
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	manager.logger = logger
	return logger, nil
}

// createLogger creates the zap logger with proper configuration
func (lm *LoggerManager) createLogger() (*zap.Logger, error) {
	encoderConfig := lm.getEncoderConfig()

	var encoder zapcore.Encoder
	switch lm.config.Format {
	case "console":
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	default:
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	}

	writeSyncer, err := lm.getWriteSyncer()
	if err != nil {
		return nil, fmt.Errorf("failed to create write syncer: %w", err)
	}

	level, err := lm.getLogLevel()
	if err != nil {
		return nil, fmt.Errorf("failed to parse log level: %w", err)
	}

	core := zapcore.NewCore(encoder, writeSyncer, level)
	logger := zap.New(core,
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)

	return logger, nil
}

// getEncoderConfig returns encoder configuration based on format
func (lm *LoggerManager) getEncoderConfig() zapcore.EncoderConfig {
	config := zap.NewProductionEncoderConfig()

	config.TimeKey = "timestamp"
	config.EncodeTime = zapcore.TimeEncoderOfLayout(time.RFC3339)
	config.LevelKey = "level"
	config.EncodeLevel = zapcore.LowercaseLevelEncoder
	config.CallerKey = "caller"
	config.EncodeCaller = zapcore.ShortCallerEncoder
	config.MessageKey = "message"
	config.StacktraceKey = "stacktrace"

	if lm.config.Format == "console" {
		config.EncodeLevel = zapcore.CapitalColorLevelEncoder
		config.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
	}

	return config
}

// getWriteSyncer returns write syncer based on output configuration
func (lm *LoggerManager) getWriteSyncer() (zapcore.WriteSyncer, error) {
	switch lm.config.Output {
	case "stdout", "":
		return zapcore.AddSync(os.Stdout), nil
	case "stderr":
		return zapcore.AddSync(os.Stderr), nil
	default:
		// File output with rotation
		logDir := filepath.Dir(lm.config.Output)
		if err := os.MkdirAll(logDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}

		lumber := &lumberjack.Logger{
			Filename:   lm.config.Output,
			MaxSize:    lm.config.MaxSize, // MB
			MaxBackups: lm.config.MaxBackups,
			MaxAge:     lm.config.MaxAge, // days
			Compress:   lm.config.Compress,
		}

		return zapcore.AddSync(lumber), nil
	}
}

// getLogLevel parses and returns log level
func (lm *LoggerManager) getLogLevel() (zapcore.Level, error) {
	switch lm.config.Level {
	case "debug":
		return zapcore.DebugLevel, nil
	case "info":
		return zapcore.InfoLevel, nil
	case "warn":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	case "fatal":
		return zapcore.FatalLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("invalid log level: %s", lm.config.Level)
	}
}

// ServiceLogger provides service-level logging functionality
type ServiceLogger struct {
	*zap.Logger
	serviceName string
}

// NewServiceLogger creates a service-specific logger
func NewServiceLogger(baseLogger *zap.Logger, serviceName string) *ServiceLogger {
	logger := baseLogger.With(
		zap.String("service", serviceName),
	)

	return &ServiceLogger{
		Logger:      logger,
		serviceName: serviceName,
	}
}

// LogServiceStart logs service startup
func (sl *ServiceLogger) LogServiceStart(version string) {
	sl.Info("Service starting", zap.String("version", version))
}

// LogServiceStop logs service shutdown
func (sl *ServiceLogger) LogServiceStop(reason string) {
	sl.Info("Service stopping", zap.String("reason", reason))
}

// LogAPIRequest logs HTTP API requests
func (sl *ServiceLogger) LogAPIRequest(method, path, userAgent, clientIP string, statusCode int, duration time.Duration) {
	level := zapcore.InfoLevel
	if statusCode >= 400 {
		level = zapcore.WarnLevel
	}
	if statusCode >= 500 {
		level = zapcore.ErrorLevel
	}

	if ce := sl.Check(level, "API request"); ce != nil {
		ce.Write(
			zap.String("method", method),
			zap.String("path", path),
			zap.String("user_agent", userAgent),
			zap.String("client_ip", clientIP),
			zap.Int("status_code", statusCode),
			zap.Duration("duration", duration),
		)
	}
}

// CloseLogger flushes buffered log entries
func CloseLogger(logger *zap.Logger) error {
	return logger.Sync()
}
