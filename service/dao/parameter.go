package dao

// Parameter is a List filter.
type Parameter struct {
	Name  string
	Value interface{}
}

// NewParameter creates a filter parameter.
func NewParameter(name string, values ...string) *Parameter {
	if len(values) == 1 {
		return &Parameter{Name: name, Value: values[0]}
	}
	return &Parameter{Name: name, Value: values}
}

// Matcher is implemented by entities that can be filtered by parameters.
type Matcher interface {
	Matches(parameter *Parameter) bool
}

// Match returns true when entity satisfies every parameter; entities that do
// not implement Matcher match everything.
func Match(entity interface{}, parameters ...*Parameter) bool {
	matcher, ok := entity.(Matcher)
	if !ok {
		return true
	}
	for _, parameter := range parameters {
		if parameter == nil {
			continue
		}
		if !matcher.Matches(parameter) {
			return false
		}
	}
	return true
}
