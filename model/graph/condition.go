package graph

// Condition is a pure predicate over process instance variables. It must not
// mutate vars and must be safe to call from any worker.
type Condition interface {
	Evaluate(vars map[string]interface{}) (bool, error)
}
