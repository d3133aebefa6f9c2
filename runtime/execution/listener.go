package execution

import "github.com/viant/tokenflow/model/graph"

// Listener observes every activity state transition of every token. A
// listener runs on the goroutine performing the transition.
type Listener interface {
	OnStateChange(token *Token, from, to graph.ActivityState)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(token *Token, from, to graph.ActivityState)

// OnStateChange calls f.
func (f ListenerFunc) OnStateChange(token *Token, from, to graph.ActivityState) {
	f(token, from, to)
}

// Scheduler is the navigator side of a token: it receives work, parks
// suspended tokens and fans out state notifications.
type Scheduler interface {
	AddWorkToken(token *Token) error
	AddSuspendToken(token *Token)
	RemoveSuspendToken(token *Token)
	TokenReleased(token *Token)
	Notify(token *Token, from, to graph.ActivityState)
	RejectsResume() bool
}
