package graph

// ActivityState is the lifecycle state of the activity a token is currently
// positioned on. The state belongs to the token, not to the activity.
type ActivityState string

const (
	StateInit      ActivityState = "INIT"
	StateReady     ActivityState = "READY"
	StateActive    ActivityState = "ACTIVE"
	StateWaiting   ActivityState = "WAITING"
	StateCompleted ActivityState = "COMPLETED"
	StateAborted   ActivityState = "ABORTED"
)

// IsTerminal returns true for COMPLETED and ABORTED.
func (s ActivityState) IsTerminal() bool {
	return s == StateCompleted || s == StateAborted
}

func (s ActivityState) String() string { return string(s) }
