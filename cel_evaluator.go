package settings

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	celgo "github.com/google/cel-go/cel"
	functions "github.com/google/cel-go/common/functions"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
)

// CELEvaluatorOption configures the CEL evaluator.
type CELEvaluatorOption func(*celEvaluator)

// CELWithProgramCache wires a ProgramCache into the CEL evaluator.
func CELWithProgramCache(cache ProgramCache) CELEvaluatorOption {
	return func(e *celEvaluator) {
		e.cache = cache
	}
}

// CELWithFunctionRegistry wires a FunctionRegistry into the CEL evaluator.
func CELWithFunctionRegistry(registry *FunctionRegistry) CELEvaluatorOption {
	return func(e *celEvaluator) {
		if registry == nil {
			return
		}
		e.registry = registry.Clone()
	}
}

var celListType = reflect.TypeOf([]any{})

type celEvaluator struct {
	cache    ProgramCache
	registry *FunctionRegistry
}

// NewCELEvaluator constructs an Evaluator backed by cel-go. CEL programs are
// type checked, so every field key bound in the context is declared dyn.
func NewCELEvaluator(opts ...CELEvaluatorOption) Evaluator {
	e := &celEvaluator{}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

func (e *celEvaluator) Evaluate(ctx RuleContext, expression string) (any, error) {
	rule, err := e.Compile(expression)
	if err != nil {
		return nil, err
	}
	return rule.Evaluate(ctx)
}

// Compile defers type checking to the first evaluation since the declared
// variables depend on the field keys in the context.
func (e *celEvaluator) Compile(expression string) (CompiledRule, error) {
	if expression == "" {
		return nil, wrapEvaluatorError(engineCEL, fmt.Errorf("expression must not be empty"))
	}
	return &celCompiledRule{evaluator: e, expression: expression}, nil
}

func (e *celEvaluator) program(expression string, env map[string]any) (celgo.Program, error) {
	extra := make([]string, 0, len(env))
	for key := range env {
		if !isCoreBinding(key) {
			extra = append(extra, key)
		}
	}
	sort.Strings(extra)
	cacheKey := engineCEL + ":" + expression + "|" + strings.Join(extra, ",")
	if e.cache != nil {
		if cached, ok := e.cache.Get(cacheKey); ok {
			if program, ok := cached.(celgo.Program); ok {
				return program, nil
			}
		}
	}

	options := []celgo.EnvOption{
		celgo.Variable("values", celgo.MapType(celgo.StringType, celgo.DynType)),
		celgo.Variable("value", celgo.DynType),
		celgo.Variable("key", celgo.StringType),
		celgo.Variable("location", celgo.StringType),
		celgo.Variable("now", celgo.TimestampType),
		celgo.Variable("args", celgo.MapType(celgo.StringType, celgo.DynType)),
		celgo.Variable("scope", celgo.MapType(celgo.StringType, celgo.DynType)),
	}
	for _, key := range extra {
		options = append(options, celgo.Variable(key, celgo.DynType))
	}
	if e.registry != nil {
		options = append(options, celgo.Function("call", celgo.Overload(
			"settings_call_dyn",
			[]*celgo.Type{celgo.StringType, celgo.ListType(celgo.DynType)},
			celgo.DynType,
			celgo.BinaryBinding(e.callBinding()),
		)))
	}
	celEnv, err := celgo.NewEnv(options...)
	if err != nil {
		return nil, wrapEvaluationError(engineCEL, expression, "", err)
	}
	ast, issues := celEnv.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, wrapEvaluationError(engineCEL, expression, "", issues.Err())
	}
	program, err := celEnv.Program(ast)
	if err != nil {
		return nil, wrapEvaluationError(engineCEL, expression, "", err)
	}
	if e.cache != nil {
		e.cache.Set(cacheKey, program)
	}
	return program, nil
}

// callBinding backs call(name, [args]) with the function registry.
func (e *celEvaluator) callBinding() functions.BinaryOp {
	return func(nameVal, argsVal ref.Val) ref.Val {
		name, ok := nameVal.Value().(string)
		if !ok {
			return types.NewErr("settings: call name must be string")
		}
		native, err := argsVal.ConvertToNative(celListType)
		if err != nil {
			return types.NewErr("settings: call arguments must be a list: %v", err)
		}
		result, err := e.registry.Call(name, native.([]any)...)
		if err != nil {
			return types.NewErr("%s", err.Error())
		}
		if result == nil {
			return types.NullValue
		}
		return types.DefaultTypeAdapter.NativeToValue(result)
	}
}

type celCompiledRule struct {
	evaluator  *celEvaluator
	expression string
}

func (r *celCompiledRule) Evaluate(ctx RuleContext) (any, error) {
	ctx = ctx.withDefaults()
	env := ctx.bindings()
	program, err := r.evaluator.program(r.expression, env)
	if err != nil {
		return nil, err
	}
	out, _, err := program.Eval(env)
	if err != nil {
		return nil, wrapEvaluationError(engineCEL, r.expression, ctx.label(), err)
	}
	return out.Value(), nil
}

func isCoreBinding(key string) bool {
	_, ok := reservedBindings[key]
	return ok
}
