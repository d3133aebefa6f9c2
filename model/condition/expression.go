package condition

import (
	"fmt"
	"math/big"
	"reflect"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
)

// Expression is a guard written in HCL expression syntax, e.g. `a > 0` or
// `status == "approved" && amount < 100`. Instance variables are exposed as
// top level identifiers.
type Expression struct {
	Source string
	expr   hclsyntax.Expression
}

// NewExpression parses source.
func NewExpression(source string) (*Expression, error) {
	expr, diags := hclsyntax.ParseExpression([]byte(source), "condition", hcl.Pos{Line: 1, Column: 1})
	if diags.HasErrors() {
		return nil, fmt.Errorf("invalid condition %q: %w", source, diags)
	}
	return &Expression{Source: source, expr: expr}, nil
}

// MustExpression parses source and panics on error; used with literals.
func MustExpression(source string) *Expression {
	e, err := NewExpression(source)
	if err != nil {
		panic(err)
	}
	return e
}

// Evaluate evaluates the expression against vars. Only variables referenced
// by the expression are converted.
func (e *Expression) Evaluate(vars map[string]interface{}) (bool, error) {
	ctxVars := make(map[string]cty.Value)
	for _, traversal := range e.expr.Variables() {
		name := traversal.RootName()
		raw, ok := vars[name]
		if !ok {
			return false, fmt.Errorf("variable %v was undefined", name)
		}
		value, err := toCty(raw)
		if err != nil {
			return false, fmt.Errorf("variable %v: %w", name, err)
		}
		ctxVars[name] = value
	}
	result, diags := e.expr.Value(&hcl.EvalContext{Variables: ctxVars})
	if diags.HasErrors() {
		return false, diags
	}
	if result.IsNull() || !result.IsKnown() || !result.Type().Equals(cty.Bool) {
		return false, fmt.Errorf("condition %q did not yield a bool", e.Source)
	}
	return result.True(), nil
}

func (e *Expression) String() string { return e.Source }

func toCty(data interface{}) (cty.Value, error) {
	if data == nil {
		return cty.NullVal(cty.DynamicPseudoType), nil
	}
	switch v := data.(type) {
	case string:
		return cty.StringVal(v), nil
	case bool:
		return cty.BoolVal(v), nil
	case float64:
		return cty.NumberFloatVal(v), nil
	case float32:
		return cty.NumberFloatVal(float64(v)), nil
	case int:
		return cty.NumberIntVal(int64(v)), nil
	case int64:
		return cty.NumberIntVal(v), nil
	case int32:
		return cty.NumberIntVal(int64(v)), nil
	case uint:
		return cty.NumberUIntVal(uint64(v)), nil
	case uint64:
		return cty.NumberUIntVal(v), nil
	case *big.Float:
		return cty.NumberVal(v), nil
	case map[string]interface{}:
		attrs := make(map[string]cty.Value, len(v))
		for key, item := range v {
			value, err := toCty(item)
			if err != nil {
				return cty.NilVal, err
			}
			attrs[key] = value
		}
		return cty.ObjectVal(attrs), nil
	case []interface{}:
		elems := make([]cty.Value, 0, len(v))
		for _, item := range v {
			value, err := toCty(item)
			if err != nil {
				return cty.NilVal, err
			}
			elems = append(elems, value)
		}
		return cty.TupleVal(elems), nil
	}
	rv := reflect.ValueOf(data)
	switch rv.Kind() {
	case reflect.Int8, reflect.Int16:
		return cty.NumberIntVal(rv.Int()), nil
	case reflect.Uint8, reflect.Uint16, reflect.Uint32:
		return cty.NumberUIntVal(rv.Uint()), nil
	}
	return cty.NilVal, fmt.Errorf("unsupported type %T", data)
}
