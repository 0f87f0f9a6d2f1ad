// Package zaplog adapts rule evaluation and pipeline operation events to zap.
package zaplog

import (
	settings "github.com/goliatone/go-settings"
	"go.uber.org/zap"
)

// Logger implements settings.EvaluatorLogger and settings.OperationLogger.
// Successful events are logged at debug level and failures at warn.
type Logger struct {
	log *zap.Logger
}

var (
	_ settings.EvaluatorLogger = (*Logger)(nil)
	_ settings.OperationLogger = (*Logger)(nil)
)

// New wraps log. A nil logger discards everything.
func New(log *zap.Logger) *Logger {
	if log == nil {
		log = zap.NewNop()
	}
	return &Logger{log: log}
}

// LogEvaluation implements settings.EvaluatorLogger.
func (l *Logger) LogEvaluation(event settings.EvaluatorLogEvent) {
	fields := []zap.Field{
		zap.String("engine", event.Engine),
		zap.String("expr", event.Expr),
		zap.Duration("duration", event.Duration),
	}
	if event.Target != "" {
		fields = append(fields, zap.String("target", event.Target))
	}
	if event.Err != nil {
		l.log.Warn("rule evaluation failed", append(fields, zap.Error(event.Err))...)
		return
	}
	l.log.Debug("rule evaluated", fields...)
}

// LogOperation implements settings.OperationLogger.
func (l *Logger) LogOperation(event settings.OperationLogEvent) {
	fields := []zap.Field{
		zap.String("op", event.Op),
		zap.String("location", event.Location),
		zap.Int("keys", event.Keys),
		zap.Duration("duration", event.Duration),
	}
	if event.ItemID != "" {
		fields = append(fields, zap.String("item_id", event.ItemID))
	}
	if event.Err != nil {
		l.log.Warn("settings operation failed", append(fields, zap.Error(event.Err))...)
		return
	}
	l.log.Debug("settings operation", fields...)
}
