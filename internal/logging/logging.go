// Package logging builds the structured zap.Logger used for
// orchestrator-level events (store writes, watcher lifecycle, extraction
// failures). Each record maps onto the {timestamp, level, message, data}
// shape the indexing pipeline's error-handling design calls for.
package logging

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level is the configured minimum severity, matching the config surface's
// "DEBUG|INFO|WARN|ERROR|NONE" options.
type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
	LevelNone  Level = "NONE"
)

func (l Level) zapLevel() zapcore.Level {
	switch strings.ToUpper(string(l)) {
	case string(LevelDebug):
		return zapcore.DebugLevel
	case string(LevelWarn):
		return zapcore.WarnLevel
	case string(LevelError):
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// New builds a *zap.Logger configured for the given level and output mode.
// jsonMode selects the structured JSON encoder (one record per log event,
// keys "timestamp"/"level"/"msg" plus any attached fields); otherwise a
// human-readable console encoder is used.
func New(level Level, jsonMode bool) (*zap.Logger, error) {
	if level == LevelNone {
		return zap.NewNop(), nil
	}

	var cfg zap.Config
	if jsonMode {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.TimeKey = "timestamp"
	}
	cfg.Level = zap.NewAtomicLevelAt(level.zapLevel())
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

// Nop returns a logger that discards everything, for tests that don't care
// about log output.
func Nop() *zap.Logger {
	return zap.NewNop()
}
