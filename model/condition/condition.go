// Package condition provides control flow guards.
package condition

import "github.com/viant/tokenflow/model/graph"

// Func adapts a plain function to graph.Condition.
type Func func(vars map[string]interface{}) bool

// Evaluate calls f.
func (f Func) Evaluate(vars map[string]interface{}) (bool, error) {
	return f(vars), nil
}

// Not negates a condition; a failing condition stays failing.
func Not(c graph.Condition) graph.Condition {
	return Func(func(vars map[string]interface{}) bool {
		ok, err := c.Evaluate(vars)
		return err == nil && !ok
	})
}

// Equals permits when vars[key] equals value.
func Equals(key string, value interface{}) graph.Condition {
	return Func(func(vars map[string]interface{}) bool {
		v, ok := vars[key]
		return ok && v == value
	})
}

var _ graph.Condition = Func(nil)

// Always permits every evaluation.
var Always graph.Condition = Func(func(map[string]interface{}) bool { return true })
