package graph

import (
	"fmt"

	"go.uber.org/multierr"
)

// DefinitionError reports a malformed process graph. It is raised at build
// time only; the navigator never sees an invalid definition.
type DefinitionError struct {
	DefinitionID string
	Err          error
}

func (e *DefinitionError) Error() string {
	return fmt.Sprintf("invalid definition %q: %v", e.DefinitionID, e.Err)
}

func (e *DefinitionError) Unwrap() error { return e.Err }

// Problems returns every individual problem found in the definition.
func (e *DefinitionError) Problems() []error { return multierr.Errors(e.Err) }
