package execution

import (
	"errors"
	"fmt"

	"github.com/viant/tokenflow/model/graph"
)

var (
	// ErrTokenNotFound is returned when a token id is not (or no longer) live.
	ErrTokenNotFound = errors.New("token not found")
	// ErrInstanceNotFound is returned when an instance id is unknown.
	ErrInstanceNotFound = errors.New("instance not found")
	// ErrInstanceCancelled is returned when work is offered to a cancelled instance.
	ErrInstanceCancelled = errors.New("instance cancelled")
)

// NoValidPathError reports an exclusive split without a qualifying flow.
type NoValidPathError struct {
	NodeID  string
	TokenID string
}

func (e *NoValidPathError) Error() string {
	return fmt.Sprintf("no valid path from node %v for token %v", e.NodeID, e.TokenID)
}

// IllegalStateError reports an operation invoked in the wrong token state.
// The call is rejected; the token is not affected.
type IllegalStateError struct {
	TokenID string
	Op      string
	State   graph.ActivityState
}

func (e *IllegalStateError) Error() string {
	return fmt.Sprintf("illegal %v on token %v in state %v", e.Op, e.TokenID, e.State)
}

// ActivityExecutionError wraps an error or panic raised by an activity.
type ActivityExecutionError struct {
	TokenID string
	NodeID  string
	Panic   bool
	Err     error
}

func (e *ActivityExecutionError) Error() string {
	if e.Panic {
		return fmt.Sprintf("activity at node %v panicked for token %v: %v", e.NodeID, e.TokenID, e.Err)
	}
	return fmt.Sprintf("activity at node %v failed for token %v: %v", e.NodeID, e.TokenID, e.Err)
}

func (e *ActivityExecutionError) Unwrap() error { return e.Err }

// SchedulingError reports a lock or queue failure. Such errors are retried.
type SchedulingError struct {
	TokenID string
	Err     error
}

func (e *SchedulingError) Error() string {
	return fmt.Sprintf("failed to schedule token %v: %v", e.TokenID, e.Err)
}

func (e *SchedulingError) Unwrap() error { return e.Err }
