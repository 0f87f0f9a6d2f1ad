package settings

import "time"

// EvaluatorLogEvent describes an evaluation attempt for logging.
type EvaluatorLogEvent struct {
	Engine   string
	Expr     string
	Target   string
	Duration time.Duration
	Err      error
}

// EvaluatorLogger records evaluator events.
type EvaluatorLogger interface {
	LogEvaluation(EvaluatorLogEvent)
}

// EvaluatorLoggerFunc adapts a function to EvaluatorLogger.
type EvaluatorLoggerFunc func(EvaluatorLogEvent)

// LogEvaluation implements EvaluatorLogger.
func (f EvaluatorLoggerFunc) LogEvaluation(event EvaluatorLogEvent) {
	if f != nil {
		f(event)
	}
}

type noopEvaluatorLogger struct{}

func (noopEvaluatorLogger) LogEvaluation(EvaluatorLogEvent) {}

// Operation names reported through OperationLogger.
const (
	OpLoad      = "load"
	OpSave      = "save"
	OpReset     = "reset"
	OpResetAll  = "reset_all"
	OpLoadItem  = "load_item"
	OpSaveItem  = "save_item"
	OpResetItem = "reset_item"
	OpExport    = "export"
	OpRender    = "render"
)

// OperationLogEvent describes one pipeline operation.
type OperationLogEvent struct {
	Op       string
	Location string
	ItemID   string
	Keys     int
	Duration time.Duration
	Err      error
}

// OperationLogger records pipeline operations.
type OperationLogger interface {
	LogOperation(OperationLogEvent)
}

// OperationLoggerFunc adapts a function to OperationLogger.
type OperationLoggerFunc func(OperationLogEvent)

// LogOperation implements OperationLogger.
func (f OperationLoggerFunc) LogOperation(event OperationLogEvent) {
	if f != nil {
		f(event)
	}
}

// NoopOperationLogger discards events.
type NoopOperationLogger struct{}

func (NoopOperationLogger) LogOperation(OperationLogEvent) {}
