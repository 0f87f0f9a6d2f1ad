package settings

import (
	"fmt"
	"time"

	exprlang "github.com/expr-lang/expr"
	exprast "github.com/expr-lang/expr/ast"
	exprparser "github.com/expr-lang/expr/parser"
	exprvm "github.com/expr-lang/expr/vm"
)

// ExprEvaluatorOption configures an expr evaluator instance.
type ExprEvaluatorOption func(*exprEvaluator)

// ExprWithProgramCache wires a ProgramCache into the expr evaluator.
func ExprWithProgramCache(cache ProgramCache) ExprEvaluatorOption {
	return func(e *exprEvaluator) {
		e.cache = cache
	}
}

// ExprWithFunctionRegistry wires a FunctionRegistry into the expr evaluator.
func ExprWithFunctionRegistry(registry *FunctionRegistry) ExprEvaluatorOption {
	return func(e *exprEvaluator) {
		if registry == nil {
			return
		}
		e.registry = registry.Clone()
	}
}

// exprEvaluator executes rule expressions using github.com/expr-lang/expr.
type exprEvaluator struct {
	cache    ProgramCache
	registry *FunctionRegistry
}

// NewExprEvaluator constructs an Evaluator backed by expr-lang/expr. It is the
// default engine for show-if and validate rules.
func NewExprEvaluator(opts ...ExprEvaluatorOption) Evaluator {
	e := &exprEvaluator{}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

func (e *exprEvaluator) Evaluate(ctx RuleContext, expression string) (any, error) {
	rule, err := e.Compile(expression)
	if err != nil {
		return nil, err
	}
	return rule.Evaluate(ctx)
}

func (e *exprEvaluator) Compile(expression string) (CompiledRule, error) {
	if expression == "" {
		return nil, wrapEvaluatorError(engineExpr, fmt.Errorf("expression must not be empty"))
	}
	program, err := e.loadOrCompile(expression)
	if err != nil {
		return nil, err
	}
	return &exprCompiledRule{evaluator: e, program: program, expression: expression}, nil
}

func (e *exprEvaluator) loadOrCompile(expression string) (*exprvm.Program, error) {
	cacheKey := engineExpr + ":" + expression
	if e.cache != nil {
		if cached, ok := e.cache.Get(cacheKey); ok {
			if program, ok := cached.(*exprvm.Program); ok {
				return program, nil
			}
		}
	}
	env, err := compileEnv(expression)
	if err != nil {
		return nil, wrapEvaluationError(engineExpr, expression, "", err)
	}
	options := []exprlang.Option{
		exprlang.Env(env),
		exprlang.AllowUndefinedVariables(),
	}
	for _, name := range e.registry.Names() {
		options = append(options, exprlang.Function(name, e.registry.bound(name)))
	}
	program, err := exprlang.Compile(expression, options...)
	if err != nil {
		return nil, wrapEvaluationError(engineExpr, expression, "", err)
	}
	if e.cache != nil {
		e.cache.Set(cacheKey, program)
	}
	return program, nil
}

// compileEnv declares the context bindings and every identifier the rule
// reads as a variable. expr resolves env names before builtins, so a field
// keyed count or len binds to its value instead of the builtin. A name that
// the rule also calls stays a function.
func compileEnv(expression string) (map[string]any, error) {
	tree, err := exprparser.Parse(expression)
	if err != nil {
		return nil, err
	}
	collector := &identifierCollector{seen: map[string]struct{}{}, called: map[string]struct{}{}}
	exprast.Walk(&tree.Node, collector)

	env := map[string]any{
		"values":   Values{},
		"value":    nil,
		"key":      "",
		"location": "",
		"now":      time.Time{},
		"args":     map[string]any{},
		"scope":    map[string]any{},
		"call":     func(string, ...any) (any, error) { return nil, nil },
	}
	for name := range collector.seen {
		if _, called := collector.called[name]; called {
			continue
		}
		if _, taken := env[name]; taken || name == "$env" {
			continue
		}
		env[name] = nil
	}
	return env, nil
}

type identifierCollector struct {
	seen   map[string]struct{}
	called map[string]struct{}
}

func (c *identifierCollector) Visit(node *exprast.Node) {
	switch n := (*node).(type) {
	case *exprast.IdentifierNode:
		c.seen[n.Value] = struct{}{}
	case *exprast.CallNode:
		if callee, ok := n.Callee.(*exprast.IdentifierNode); ok {
			c.called[callee.Value] = struct{}{}
		}
	case *exprast.BuiltinNode:
		c.called[n.Name] = struct{}{}
	}
}

type exprCompiledRule struct {
	evaluator  *exprEvaluator
	program    *exprvm.Program
	expression string
}

func (r *exprCompiledRule) Evaluate(ctx RuleContext) (any, error) {
	ctx = ctx.withDefaults()
	env := ctx.bindings()
	if r.evaluator.registry != nil {
		env["call"] = func(name string, arguments ...any) (any, error) {
			return r.evaluator.registry.Call(name, arguments...)
		}
	}
	result, err := exprlang.Run(r.program, env)
	if err != nil {
		return nil, wrapEvaluationError(engineExpr, r.expression, ctx.label(), err)
	}
	return result, nil
}
