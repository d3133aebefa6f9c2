package graph

// Variables is the shared, internally synchronized variable context of a
// process instance. Concurrent writers follow a last write wins policy.
type Variables interface {
	Get(key string) (interface{}, bool)
	Set(key string, value interface{})
	Delete(key string)
	All() map[string]interface{}
}

// Token is the view of an execution strand that activities and behaviours
// operate on.
type Token interface {
	ID() string
	ParentID() string
	InstanceID() string
	Node() *Node
	LastTaken() *ControlFlow
	State() ActivityState

	// Variables returns the owning instance context.
	Variables() Variables

	Internal(key string) (interface{}, bool)
	SetInternal(key string, value interface{})
	DeleteInternal(key string)
	Internals() map[string]interface{}

	// Suspend parks the token once the current activation returns. It may be
	// called at most once per activation.
	Suspend() error
	// Resume hands payload back to a suspended token and schedules it.
	Resume(payload interface{}) error
	// ResumePayload returns the payload of the resume that started the
	// current activation.
	ResumePayload() (interface{}, bool)
	// CancelExecution cancels the current activity and aborts the token.
	CancelExecution()

	// Fork creates a child token of this token that will navigate over flow.
	Fork(flow *ControlFlow) Token
	// Peer looks up another live token of the same instance.
	Peer(id string) (Token, bool)
}

// Activity is the unit of work a node performs. Execution state belongs to
// the token so one activity serves any number of tokens concurrently.
type Activity interface {
	Execute(token Token) error
	// Cancel must be idempotent and safe before Execute ever ran.
	Cancel(token Token)
}

// Resumer is implemented by activities that want to observe the resume
// payload of a suspended token. Activities without it complete on resume.
type Resumer interface {
	Resume(token Token, payload interface{}) error
}

// Transition pairs a chosen control flow with the token that will travel it.
type Transition struct {
	Flow  *ControlFlow
	Token Token
}

// OutgoingBehaviour splits a token that finished its activity.
type OutgoingBehaviour interface {
	Split(token Token) ([]Transition, error)
}

// IncomingBehaviour decides whether a token arriving at a node may proceed.
// When ok is false the token was absorbed by the join.
type IncomingBehaviour interface {
	Join(token Token) (proceed Token, ok bool, err error)
}

// CompletionGate is implemented by joins that decide, once the activity of
// an arrived token completed, whether the token wins the right to continue.
type CompletionGate interface {
	Complete(token Token) (bool, error)
}

// Withdrawer is implemented by joins that keep arrival bookkeeping and can
// roll back the arrival of an aborted token.
type Withdrawer interface {
	Withdraw(token Token) bool
}

// Resetter is implemented by stateful behaviours to drop the bookkeeping of
// an ended or cancelled instance.
type Resetter interface {
	Reset(instanceID string)
}

// Forgetter is implemented by activities that keep per-instance records
// after the instance ended; Forget drops them.
type Forgetter interface {
	Forget(instanceID string)
}
