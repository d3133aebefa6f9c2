package progress

import (
	"context"
	"sync"
	"time"

	"github.com/viant/tokenflow/internal/clock"
)

// Delta represents an incremental counter change emitted by the navigator.
// The fields are signed and therefore can be either positive or negative.
type Delta struct {
	Created   int
	Running   int
	Waiting   int
	Completed int
	Aborted   int
}

// Progress keeps aggregated token counters for a single process instance.
// It is safe for concurrent use.
type Progress struct {
	InstanceID   string
	DefinitionID string
	StartedAt    time.Time

	CreatedTokens   int
	RunningTokens   int
	WaitingTokens   int
	CompletedTokens int
	AbortedTokens   int

	sync.Mutex
	onChange func(Progress)
}

// New creates a tracker for an instance.
func New(instanceID, definitionID string) *Progress {
	return &Progress{InstanceID: instanceID, DefinitionID: definitionID, StartedAt: clock.Now()}
}

// Update applies the supplied delta. If an onChange callback has been
// registered it is invoked with a copy outside the critical section.
func (p *Progress) Update(d Delta) {
	if p == nil {
		return
	}
	p.Lock()
	p.CreatedTokens += d.Created
	p.RunningTokens += d.Running
	p.WaitingTokens += d.Waiting
	p.CompletedTokens += d.Completed
	p.AbortedTokens += d.Aborted
	snapshot := p.copy()
	cb := p.onChange
	p.Unlock()

	if cb != nil {
		cb(snapshot)
	}
}

// Snapshot returns a copy of the tracker suitable for read-only inspection.
func (p *Progress) Snapshot() Progress {
	if p == nil {
		return Progress{}
	}
	p.Lock()
	defer p.Unlock()
	return p.copy()
}

func (p *Progress) copy() Progress {
	return Progress{
		InstanceID:      p.InstanceID,
		DefinitionID:    p.DefinitionID,
		StartedAt:       p.StartedAt,
		CreatedTokens:   p.CreatedTokens,
		RunningTokens:   p.RunningTokens,
		WaitingTokens:   p.WaitingTokens,
		CompletedTokens: p.CompletedTokens,
		AbortedTokens:   p.AbortedTokens,
	}
}

// OnChange registers a callback invoked after every Update. Passing nil
// disables the callback.
func (p *Progress) OnChange(cb func(Progress)) {
	if p == nil {
		return
	}
	p.Lock()
	p.onChange = cb
	p.Unlock()
}

type trackerKeyT struct{}

var trackerKey trackerKeyT

// WithTracker embeds tracker in ctx.
func WithTracker(ctx context.Context, tr *Progress) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, trackerKey, tr)
}

// FromContext extracts the tracker from ctx.
func FromContext(ctx context.Context) (*Progress, bool) {
	if ctx == nil {
		return nil, false
	}
	tr, ok := ctx.Value(trackerKey).(*Progress)
	return tr, ok
}
