package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Field names shared across components.
const (
	FieldJobUUID     = "job_uuid"
	FieldDocumentID  = "document_id"
	FieldPARequestID = "pa_request_id"
	FieldAttempt     = "attempt"
	FieldTraceID     = "trace_id"
	FieldErrorKind   = "error_kind"
	FieldSeverity    = "severity"
)

// New builds a zap logger. format is "json" (production encoder) or "console".
func New(level, format string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(strings.TrimSpace(strings.ToLower(level)))
	if err != nil && strings.TrimSpace(level) != "" {
		return nil, fmt.Errorf("log level: %w", err)
	}
	if strings.TrimSpace(level) == "" {
		lvl = zapcore.InfoLevel
	}

	var cfg zap.Config
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "json":
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	case "console":
		cfg = zap.NewDevelopmentConfig()
	default:
		return nil, fmt.Errorf("log format: unsupported value %q", format)
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	return cfg.Build()
}

// NewNop returns a logger that discards everything.
func NewNop() *zap.Logger {
	return zap.NewNop()
}

// Critical logs msg at error level tagged severity=critical. zap has no level
// above error that does not panic or exit.
func Critical(logger *zap.Logger, msg string, fields ...zap.Field) {
	logger.Error(msg, append(fields, zap.String(FieldSeverity, "critical"))...)
}
