package execution

import (
	"sync"

	"github.com/viant/tokenflow/model/graph"
)

// VariableListener is invoked every time Variables.Set overwrites an existing
// key or inserts a new one. Listeners run outside the variables lock.
type VariableListener func(key string, oldVal, newVal interface{})

// Variables is the shared context of a process instance. Branches write
// concurrently; the last write wins.
type Variables struct {
	mu        sync.RWMutex
	values    map[string]interface{}
	listeners []VariableListener
}

// NewVariables creates a context seeded with a copy of init.
func NewVariables(init map[string]interface{}) *Variables {
	values := make(map[string]interface{}, len(init))
	for k, v := range init {
		values[k] = v
	}
	return &Variables{values: values}
}

// Listen registers listeners.
func (v *Variables) Listen(fn ...VariableListener) {
	v.mu.Lock()
	v.listeners = append(v.listeners, fn...)
	v.mu.Unlock()
}

// Get retrieves a variable.
func (v *Variables) Get(key string) (interface{}, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	value, ok := v.values[key]
	return value, ok
}

// Set adds or updates a variable.
func (v *Variables) Set(key string, value interface{}) {
	v.mu.Lock()
	old := v.values[key]
	v.values[key] = value
	listeners := v.listeners
	v.mu.Unlock()
	for _, fn := range listeners {
		fn(key, old, value)
	}
}

// Delete removes a variable.
func (v *Variables) Delete(key string) {
	v.mu.Lock()
	delete(v.values, key)
	v.mu.Unlock()
}

// All returns a snapshot copy.
func (v *Variables) All() map[string]interface{} {
	v.mu.RLock()
	defer v.mu.RUnlock()
	result := make(map[string]interface{}, len(v.values))
	for k, val := range v.values {
		result[k] = val
	}
	return result
}

var _ graph.Variables = (*Variables)(nil)
