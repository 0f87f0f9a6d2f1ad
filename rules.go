package settings

import (
	"fmt"
	"time"
)

// RulesOption configures a Rules engine.
type RulesOption func(*Rules)

// WithEvaluator selects the expression engine. A nil evaluator keeps the
// expr default.
func WithEvaluator(evaluator Evaluator) RulesOption {
	return func(r *Rules) {
		if evaluator != nil {
			r.evaluator = evaluator
		}
	}
}

// WithEvaluatorLogger attaches an evaluator logger.
func WithEvaluatorLogger(logger EvaluatorLogger) RulesOption {
	return func(r *Rules) {
		if logger == nil {
			r.logger = noopEvaluatorLogger{}
			return
		}
		r.logger = logger
	}
}

// WithRuleScope sets the scope exposed to expressions as `scope`.
func WithRuleScope(scope Scope) RulesOption {
	return func(r *Rules) {
		r.scope = scope.clone()
	}
}

// WithClock overrides the time source bound as `now`.
func WithClock(now func() time.Time) RulesOption {
	return func(r *Rules) {
		if now != nil {
			r.now = now
		}
	}
}

// Rules evaluates show-if and validate expressions for fields.
type Rules struct {
	evaluator Evaluator
	logger    EvaluatorLogger
	scope     Scope
	now       func() time.Time
}

// NewRules returns a rules engine. Without WithEvaluator it uses expr with
// a program cache and the default helper functions.
func NewRules(opts ...RulesOption) *Rules {
	r := &Rules{
		logger: noopEvaluatorLogger{},
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	if r.evaluator == nil {
		r.evaluator = NewExprEvaluator(
			ExprWithProgramCache(NewProgramCache()),
			ExprWithFunctionRegistry(DefaultFunctions()),
		)
	}
	return r
}

// Engine reports the configured engine name.
func (r *Rules) Engine() string {
	if r == nil {
		return "none"
	}
	return evaluatorEngineName(r.evaluator)
}

// Evaluate runs expression against ctx and logs the attempt.
func (r *Rules) Evaluate(ctx RuleContext, expression string) (any, error) {
	if r == nil || r.evaluator == nil {
		return nil, ErrNoEvaluator
	}
	if expression == "" {
		return nil, fmt.Errorf("settings: expression must not be empty")
	}
	if ctx.Scope.isZero() {
		ctx.Scope = r.scope.clone()
	}
	if ctx.Now == nil {
		now := r.now()
		ctx.Now = &now
	}
	start := time.Now()
	value, err := r.evaluator.Evaluate(ctx, expression)
	err = wrapEvaluationError(r.Engine(), expression, ctx.label(), err)
	r.logger.LogEvaluation(EvaluatorLogEvent{
		Engine:   r.Engine(),
		Expr:     expression,
		Target:   ctx.label(),
		Duration: time.Since(start),
		Err:      err,
	})
	return value, err
}

// Visible evaluates the field's show-if rule. Fields without one are always
// visible; a rule that fails to evaluate leaves the field visible and
// returns the error.
func (r *Rules) Visible(field Field, fields []Field, values Values) (bool, error) {
	if field.ShowIf == "" {
		return true, nil
	}
	ctx := ruleContext(field, fields, values)
	result, err := r.Evaluate(ctx, field.ShowIf)
	if err != nil {
		return true, err
	}
	return Truthy(result), nil
}

// Check runs every validate rule of fields against values keyed by storage
// key. Only saved fields present in values are checked.
func (r *Rules) Check(fields []Field, values Values) []FieldError {
	var failures []FieldError
	for _, field := range fields {
		if field.Validate == "" || !field.Saves {
			continue
		}
		if _, ok := values[field.StorageKey]; !ok {
			continue
		}
		ctx := ruleContext(field, fields, values)
		result, err := r.Evaluate(ctx, field.Validate)
		if err != nil {
			failures = append(failures, FieldError{
				Key:     field.Key,
				Name:    field.StorageKey,
				Rule:    field.Validate,
				Message: err.Error(),
			})
			continue
		}
		ok, isBool := result.(bool)
		if !isBool {
			failures = append(failures, FieldError{
				Key:     field.Key,
				Name:    field.StorageKey,
				Rule:    field.Validate,
				Message: fmt.Sprintf("rule returned %T, want bool", result),
			})
			continue
		}
		if !ok {
			failures = append(failures, FieldError{Key: field.Key, Name: field.StorageKey, Rule: field.Validate})
		}
	}
	return failures
}

// ShortValues re-keys values from storage keys to the short field keys.
func ShortValues(fields []Field, values Values) Values {
	out := make(Values, len(fields))
	for _, field := range fields {
		if value, ok := values[field.StorageKey]; ok {
			out[field.Key] = value
		}
	}
	return out
}

func ruleContext(field Field, fields []Field, values Values) RuleContext {
	return RuleContext{
		Location: field.Location,
		Key:      field.Key,
		Value:    values[field.StorageKey],
		Values:   ShortValues(fields, values),
	}
}

func evaluatorEngineName(e Evaluator) string {
	switch e.(type) {
	case nil:
		return "unknown"
	case *exprEvaluator:
		return engineExpr
	case *celEvaluator:
		return engineCEL
	default:
		if name, ok := e.(interface{ EngineName() string }); ok {
			return name.EngineName()
		}
		return jsEngineName(e)
	}
}
