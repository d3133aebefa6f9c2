package activity

import (
	"fmt"
	"sort"
	"sync"

	"github.com/viant/tokenflow/model/graph"
)

// Nop does nothing.
type Nop struct{}

// Execute implements graph.Activity.
func (Nop) Execute(graph.Token) error { return nil }

// Cancel implements graph.Activity.
func (Nop) Cancel(graph.Token) {}

// End marks tokens reaching the end of a process.
type End struct {
	mu      sync.Mutex
	reached map[string][]string
}

// NewEnd creates an end marker.
func NewEnd() *End {
	return &End{reached: map[string][]string{}}
}

// Execute records the token.
func (e *End) Execute(token graph.Token) error {
	e.mu.Lock()
	e.reached[token.InstanceID()] = append(e.reached[token.InstanceID()], token.ID())
	e.mu.Unlock()
	return nil
}

// Cancel implements graph.Activity.
func (e *End) Cancel(graph.Token) {}

// Forget implements graph.Forgetter.
func (e *End) Forget(instanceID string) {
	e.mu.Lock()
	delete(e.reached, instanceID)
	e.mu.Unlock()
}

// Reached returns ids of tokens that reached the end for an instance.
func (e *End) Reached(instanceID string) []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	result := append([]string(nil), e.reached[instanceID]...)
	sort.Strings(result)
	return result
}

// ComputeFunc computes a value from instance variables.
type ComputeFunc func(vars map[string]interface{}) (interface{}, error)

// Compute stores the result of Fn in instance variable Variable.
type Compute struct {
	Variable string
	Fn       ComputeFunc
}

// Execute implements graph.Activity.
func (c *Compute) Execute(token graph.Token) error {
	value, err := c.Fn(token.Variables().All())
	if err != nil {
		return err
	}
	token.Variables().Set(c.Variable, value)
	return nil
}

// Cancel implements graph.Activity.
func (c *Compute) Cancel(graph.Token) {}

// AddNumbersAndStore sums summands and stores the result in variable.
func AddNumbersAndStore(variable string, summands ...int) *Compute {
	return &Compute{Variable: variable, Fn: func(map[string]interface{}) (interface{}, error) {
		sum := 0
		for _, s := range summands {
			sum += s
		}
		return sum, nil
	}}
}

// AddVariables sums named numeric instance variables into variable.
func AddVariables(variable string, names ...string) *Compute {
	return &Compute{Variable: variable, Fn: func(vars map[string]interface{}) (interface{}, error) {
		sum := 0.0
		for _, name := range names {
			value, ok := vars[name]
			if !ok {
				return nil, fmt.Errorf("variable %v was undefined", name)
			}
			number, err := toFloat(value)
			if err != nil {
				return nil, fmt.Errorf("variable %v: %w", name, err)
			}
			sum += number
		}
		return sum, nil
	}}
}

// SetVariables stores literal values in instance variables.
type SetVariables struct {
	Values map[string]interface{}
}

// Execute implements graph.Activity.
func (s *SetVariables) Execute(token graph.Token) error {
	for k, v := range s.Values {
		token.Variables().Set(k, v)
	}
	return nil
}

// Cancel implements graph.Activity.
func (s *SetVariables) Cancel(graph.Token) {}

func toFloat(value interface{}) (float64, error) {
	switch v := value.(type) {
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	}
	return 0, fmt.Errorf("unsupported number %T", value)
}

var (
	_ graph.Activity = Nop{}
	_ graph.Activity = (*End)(nil)
	_ graph.Activity = (*Compute)(nil)
	_ graph.Activity = (*SetVariables)(nil)
)
