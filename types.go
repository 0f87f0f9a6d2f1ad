package settings

import (
	"regexp"
	"time"
)

// RuleContext carries the inputs a show-if or validate expression sees.
// Values are keyed by short field key, not storage key.
type RuleContext struct {
	Location string
	Key      string
	Value    any
	Values   Values
	Now      *time.Time
	Args     map[string]any
	Scope    Scope
}

func (ctx RuleContext) withDefaults() RuleContext {
	if ctx.Now == nil {
		now := time.Now()
		ctx.Now = &now
	}
	if ctx.Args == nil {
		ctx.Args = map[string]any{}
	}
	if ctx.Values == nil {
		ctx.Values = Values{}
	}
	return ctx
}

func (ctx RuleContext) timestamp() time.Time {
	if ctx.Now == nil {
		return time.Now()
	}
	return *ctx.Now
}

func (ctx RuleContext) label() string {
	if ctx.Key != "" && ctx.Location != "" {
		return ctx.Location + "." + ctx.Key
	}
	if ctx.Key != "" {
		return ctx.Key
	}
	if ctx.Location != "" {
		return ctx.Location
	}
	return "<global>"
}

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// reserved names cannot be shadowed by field keys.
var reservedBindings = map[string]struct{}{
	"values": {}, "value": {}, "key": {}, "location": {}, "now": {},
	"args": {}, "scope": {}, "call": {},
}

// bindings flattens ctx into the variables every engine exposes. Field keys
// that are valid identifiers are also bound directly.
func (ctx RuleContext) bindings() map[string]any {
	env := map[string]any{
		"values":   ctx.Values,
		"value":    ctx.Value,
		"key":      ctx.Key,
		"location": ctx.Location,
		"now":      ctx.timestamp(),
		"args":     ctx.Args,
		"scope":    scopeToBinding(ctx.Scope),
	}
	for key, value := range ctx.Values {
		if _, taken := reservedBindings[key]; taken {
			continue
		}
		if !identifierPattern.MatchString(key) {
			continue
		}
		env[key] = value
	}
	return env
}

// Evaluator executes expressions against a rule context.
type Evaluator interface {
	Evaluate(ctx RuleContext, expr string) (any, error)
	Compile(expr string) (CompiledRule, error)
}

// CompiledRule represents a reusable expression program.
type CompiledRule interface {
	Evaluate(ctx RuleContext) (any, error)
}

func scopeToBinding(scope Scope) map[string]any {
	binding := map[string]any{
		"name":     scope.Name,
		"label":    scope.Label,
		"priority": scope.Priority,
		"metadata": map[string]any{},
	}
	if len(scope.Metadata) > 0 {
		binding["metadata"] = copyMetadata(scope.Metadata)
	}
	return binding
}
