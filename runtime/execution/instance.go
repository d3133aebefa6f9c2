package execution

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/viant/tokenflow/internal/clock"
	"github.com/viant/tokenflow/model/graph"
	"github.com/viant/tokenflow/progress"
	"go.uber.org/multierr"
)

// InstanceState is the lifecycle state of a process instance.
type InstanceState string

const (
	InstanceRunning   InstanceState = "running"
	InstanceCompleted InstanceState = "completed"
	InstanceCancelled InstanceState = "cancelled"
	InstanceFailed    InstanceState = "failed"
)

// Instance aggregates the tokens executing one definition. Tokens are
// referenced by id only; the registry owns them.
type Instance struct {
	ID         string
	Definition *graph.Definition
	StartedAt  time.Time

	variables *Variables
	progress  *progress.Progress
	cancelled atomic.Bool

	mu      sync.Mutex
	live    map[string]struct{}
	state   InstanceState
	failed  bool
	errs    error
	endedAt time.Time
	done    chan struct{}
	endOnce sync.Once
}

func newInstance(id string, definition *graph.Definition, vars map[string]interface{}) *Instance {
	return &Instance{
		ID:         id,
		Definition: definition,
		StartedAt:  clock.Now(),
		variables:  NewVariables(vars),
		progress:   progress.New(id, definition.ID),
		live:       map[string]struct{}{},
		state:      InstanceRunning,
		done:       make(chan struct{}),
	}
}

// Variables returns the shared instance context.
func (i *Instance) Variables() *Variables { return i.variables }

// Progress returns token counters.
func (i *Instance) Progress() *progress.Progress { return i.progress }

// Cancelled returns true once cancellation was requested.
func (i *Instance) Cancelled() bool { return i.cancelled.Load() }

// State returns the instance lifecycle state.
func (i *Instance) State() InstanceState {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.state
}

// EndedAt returns the end time or zero while running.
func (i *Instance) EndedAt() time.Time {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.endedAt
}

// Err returns all token errors recorded on the instance.
func (i *Instance) Err() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.errs
}

// Done is closed once the instance ended.
func (i *Instance) Done() <-chan struct{} { return i.done }

// LiveTokens returns ids of currently assigned tokens, sorted.
func (i *Instance) LiveTokens() []string {
	i.mu.Lock()
	defer i.mu.Unlock()
	result := make([]string, 0, len(i.live))
	for id := range i.live {
		result = append(result, id)
	}
	sort.Strings(result)
	return result
}

func (i *Instance) addToken(id string) {
	i.mu.Lock()
	i.live[id] = struct{}{}
	i.mu.Unlock()
}

// removeToken returns true when the last live token was removed.
func (i *Instance) removeToken(id string) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	if _, ok := i.live[id]; !ok {
		return false
	}
	delete(i.live, id)
	return len(i.live) == 0
}

func (i *Instance) recordError(err error, fail bool) {
	i.mu.Lock()
	i.errs = multierr.Append(i.errs, err)
	if fail {
		i.failed = true
	}
	i.mu.Unlock()
}

// markCancelled sets the cancellation flag and returns the live token ids;
// the set itself is cleared as the tokens retire.
func (i *Instance) markCancelled() ([]string, bool) {
	if !i.cancelled.CompareAndSwap(false, true) {
		return nil, false
	}
	return i.LiveTokens(), true
}

// end finalises the instance once; it returns false on repeated calls.
func (i *Instance) end() bool {
	ended := false
	i.endOnce.Do(func() {
		ended = true
		i.mu.Lock()
		switch {
		case i.failed:
			i.state = InstanceFailed
		case i.cancelled.Load():
			i.state = InstanceCancelled
		default:
			i.state = InstanceCompleted
		}
		i.live = map[string]struct{}{}
		i.endedAt = clock.Now()
		i.mu.Unlock()
	})
	return ended
}

// release unblocks Done waiters.
func (i *Instance) release() {
	close(i.done)
}
