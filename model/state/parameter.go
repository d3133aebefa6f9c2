package state

import "fmt"

// Parameter represents a named initial value of a process instance variable.
type Parameter struct {
	Name     string      `json:"name" yaml:"name"`
	Value    interface{} `json:"value,omitempty" yaml:"value,omitempty"`
	Default  interface{} `json:"default,omitempty" yaml:"default,omitempty"`
	Required bool        `json:"required,omitempty" yaml:"required,omitempty"`
}

// Parameters is a collection of named values
type Parameters []*Parameter

// Add appends a parameter to the collection
func (p *Parameters) Add(name string, value interface{}) {
	*p = append(*p, &Parameter{Name: name, Value: value})
}

// Get retrieves a parameter by name
func (p Parameters) Get(name string) (*Parameter, bool) {
	for _, param := range p {
		if param.Name == name {
			return param, true
		}
	}
	return nil, false
}

// Resolve merges parameters with supplied values. Supplied values win over
// declared values, declared values win over defaults. A required parameter
// without any value is reported as an error.
func (p Parameters) Resolve(supplied map[string]interface{}) (map[string]interface{}, error) {
	result := make(map[string]interface{}, len(p)+len(supplied))
	for _, param := range p {
		switch {
		case param.Value != nil:
			result[param.Name] = param.Value
		case param.Default != nil:
			result[param.Name] = param.Default
		}
	}
	for k, v := range supplied {
		result[k] = v
	}
	for _, param := range p {
		if !param.Required {
			continue
		}
		if _, ok := result[param.Name]; !ok {
			return nil, fmt.Errorf("parameter %v is required", param.Name)
		}
	}
	return result, nil
}

// FromMap creates Parameters from a map
func FromMap(m map[string]interface{}) Parameters {
	params := make(Parameters, 0, len(m))
	for k, v := range m {
		params = append(params, &Parameter{Name: k, Value: v})
	}
	return params
}
