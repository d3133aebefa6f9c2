// Package idgen produces opaque identifiers for tokens, instances, work items
// and subscriptions. Callers must treat the values as opaque strings.
package idgen

import "github.com/google/uuid"

// NewFunc is replaced by tests that need predictable identifiers.
var NewFunc = func() string { return uuid.New().String() }

// New returns a new globally unique identifier.
func New() string { return NewFunc() }

// WithPrefix returns a new identifier prefixed with kind, e.g. "tok-<uuid>".
func WithPrefix(kind string) string {
	if kind == "" {
		return New()
	}
	return kind + "-" + New()
}
