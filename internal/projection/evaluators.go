package projection

import (
	"fmt"
	"strings"
)

// EvaluatorFunc evaluates a method call in memory on materialized values.
// object is nil for static methods.
type EvaluatorFunc func(object any, args []any) (any, error)

// EvaluatorRegistry maps method signatures or names to in-memory evaluators.
// Lookup tries the exact signature first, then the bare name.
type EvaluatorRegistry struct {
	entries map[string]EvaluatorFunc
}

// NewEvaluatorRegistry returns an empty registry.
func NewEvaluatorRegistry() *EvaluatorRegistry {
	return &EvaluatorRegistry{entries: map[string]EvaluatorFunc{}}
}

// Register adds fn under key (a signature such as "string.ToUpperInvariant()"
// or a bare method name).
func (r *EvaluatorRegistry) Register(key string, fn EvaluatorFunc) {
	r.entries[key] = fn
}

// Lookup finds the evaluator for a method. A nil registry finds nothing.
func (r *EvaluatorRegistry) Lookup(signature, name string) (EvaluatorFunc, bool) {
	if r == nil {
		return nil, false
	}
	if fn, ok := r.entries[signature]; ok {
		return fn, true
	}
	fn, ok := r.entries[name]
	return fn, ok
}

// StringEvaluators returns a registry with common string methods that have
// no SQL translation of their own.
func StringEvaluators() *EvaluatorRegistry {
	r := NewEvaluatorRegistry()
	r.Register("ToUpperInvariant", stringMethod(strings.ToUpper))
	r.Register("ToLowerInvariant", stringMethod(strings.ToLower))
	r.Register("TrimEnd", stringMethod(func(s string) string { return strings.TrimRight(s, " \t\r\n") }))
	r.Register("TrimStart", stringMethod(func(s string) string { return strings.TrimLeft(s, " \t\r\n") }))
	return r
}

func stringMethod(fn func(string) string) EvaluatorFunc {
	return func(object any, _ []any) (any, error) {
		switch s := object.(type) {
		case nil:
			return nil, nil
		case string:
			return fn(s), nil
		}
		return nil, fmt.Errorf("expected string, got %T", object)
	}
}
