package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/familyboard/core/internal/infrastructure/config"
)

// Logger wraps zap.SugaredLogger to provide application-specific logging
type Logger struct {
	*zap.SugaredLogger
}

// New creates a new logger instance
func New(cfg config.LoggerConfig) (*Logger, error) {
	var zapConfig zap.Config

	if cfg.Format == "json" {
		zapConfig = zap.NewProductionConfig()
	} else {
		zapConfig = zap.NewDevelopmentConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	zapConfig.Level = zap.NewAtomicLevelAt(level)

	if cfg.Output == "file" && cfg.Filename != "" {
		zapConfig.OutputPaths = []string{cfg.Filename}
		zapConfig.ErrorOutputPaths = []string{cfg.Filename}
	} else {
		zapConfig.OutputPaths = []string{"stdout"}
		zapConfig.ErrorOutputPaths = []string{"stderr"}
	}

	if cfg.Format != "json" {
		zapConfig.Development = true
		zapConfig.DisableStacktrace = false
	}

	zapLogger, err := zapConfig.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	return &Logger{
		SugaredLogger: zapLogger.Sugar(),
	}, nil
}

// NewNop returns a logger that discards everything.
func NewNop() *Logger {
	return &Logger{SugaredLogger: zap.NewNop().Sugar()}
}

// WithFields adds structured fields to the logger
func (l *Logger) WithFields(fields ...interface{}) *Logger {
	return &Logger{
		SugaredLogger: l.SugaredLogger.With(fields...),
	}
}

// WithError adds an error field to the logger
func (l *Logger) WithError(err error) *Logger {
	return l.WithFields("error", err.Error())
}

// WithRole adds the acting family role to the logger
func (l *Logger) WithRole(role string) *Logger {
	return l.WithFields("role", role)
}

// WithTask adds a task ID field to the logger
func (l *Logger) WithTask(taskID string) *Logger {
	return l.WithFields("task_id", taskID)
}

// WithComponent adds a component field to the logger
func (l *Logger) WithComponent(component string) *Logger {
	return l.WithFields("component", component)
}

// LogNotification records the outcome of one delivery attempt.
func (l *Logger) LogNotification(channel, outcome, to string, err error) {
	fields := []interface{}{
		"channel", channel,
		"outcome", outcome,
		"to", to,
	}

	if err != nil {
		fields = append(fields, "error", err.Error())
		l.Warnw("Notification not delivered", fields...)
		return
	}
	l.Infow("Notification", fields...)
}

// LogStoreFailure records a failed call to the shared task store.
func (l *Logger) LogStoreFailure(op, taskID string, err error) {
	l.Errorw("Task store operation failed",
		"op", op,
		"task_id", taskID,
		"error", err,
	)
}

// LogSecurityEvent records a rejected request.
func (l *Logger) LogSecurityEvent(event, role, ip string, details map[string]interface{}) {
	fields := []interface{}{
		"security_event", event,
		"role", role,
		"ip", ip,
	}

	for k, v := range details {
		fields = append(fields, k, v)
	}

	l.Warnw("Security event", fields...)
}

// Close flushes any buffered log entries
func (l *Logger) Close() error {
	return l.SugaredLogger.Sync()
}
