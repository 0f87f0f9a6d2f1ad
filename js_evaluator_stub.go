//go:build !js_eval

package settings

// NewJSEvaluator returns nil without the js_eval build tag. Rules falls back
// to the expr engine when handed a nil evaluator.
func NewJSEvaluator(opts ...JSEvaluatorOption) Evaluator {
	_ = applyJSEvaluatorOptions(opts)
	return nil
}

func jsEvaluatorAvailable() bool {
	return false
}

func jsEngineName(Evaluator) string {
	return "custom"
}
