package settings

import (
	"errors"
	"fmt"
	"strings"
)

const (
	engineExpr = "expr"
	engineCEL  = "cel"
	engineJS   = "js"
)

// EvaluationError captures evaluator metadata alongside the originating error.
// Target names the location and field key the rule was evaluated for.
type EvaluationError struct {
	Engine string
	Expr   string
	Target string
	Err    error
}

func (e *EvaluationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	target := e.Target
	if target == "" {
		target = "<compile>"
	}
	return fmt.Sprintf("settings: %s evaluator %s target=%s: %v", e.Engine, describeExpression(e.Expr), target, e.Err)
}

func (e *EvaluationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func describeExpression(expr string) string {
	if expr == "" {
		return "expr=<empty>"
	}
	return fmt.Sprintf("expr=%q", expr)
}

func wrapEvaluatorError(engine string, err error) error {
	if err == nil {
		return nil
	}
	var evalErr *EvaluationError
	if errors.As(err, &evalErr) {
		return err
	}
	if strings.HasPrefix(err.Error(), "settings:") {
		return err
	}
	return fmt.Errorf("settings: %s evaluator: %w", engine, err)
}

// wrapEvaluationError fills missing metadata on an existing EvaluationError
// rather than nesting a second one.
func wrapEvaluationError(engine, expr, target string, err error) error {
	if err == nil {
		return nil
	}
	var evalErr *EvaluationError
	if errors.As(err, &evalErr) {
		if evalErr.Engine == "" {
			evalErr.Engine = engine
		}
		if evalErr.Expr == "" {
			evalErr.Expr = expr
		}
		if evalErr.Target == "" {
			evalErr.Target = target
		}
		return evalErr
	}
	return &EvaluationError{
		Engine: engine,
		Expr:   expr,
		Target: target,
		Err:    err,
	}
}
