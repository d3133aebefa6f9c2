package execution

import (
	"context"
	"fmt"
	"sync"

	"github.com/viant/tokenflow/internal/idgen"
	"github.com/viant/tokenflow/model/graph"
	"github.com/viant/tokenflow/progress"
	"github.com/viant/tokenflow/service/dao/store"
)

// EndListener is notified once per ended instance, before Done waiters are
// released.
type EndListener func(instance *Instance)

// Registry is the engine owned arena of tokens and instances. Everything
// else refers to tokens and instances by id.
type Registry struct {
	scheduler Scheduler
	tokens    *store.MemoryStore[string, Token]
	running   *store.MemoryStore[string, Instance]
	ended     *store.MemoryStore[string, Instance]

	mu        sync.RWMutex
	listeners []EndListener
}

// NewRegistry creates a registry whose tokens schedule through scheduler.
func NewRegistry(scheduler Scheduler) *Registry {
	return &Registry{
		scheduler: scheduler,
		tokens:    store.NewMemoryStore[string, Token](func(t *Token) string { return t.id }),
		running:   store.NewMemoryStore[string, Instance](func(i *Instance) string { return i.ID }),
		ended:     store.NewMemoryStore[string, Instance](func(i *Instance) string { return i.ID }),
	}
}

// OnEnd registers end listeners.
func (r *Registry) OnEnd(fn ...EndListener) {
	r.mu.Lock()
	r.listeners = append(r.listeners, fn...)
	r.mu.Unlock()
}

// NewInstance creates a running instance of definition with a single token
// positioned on startNodeID (the first start node when empty). The token is
// in INIT state and not yet scheduled.
func (r *Registry) NewInstance(definition *graph.Definition, startNodeID string, vars map[string]interface{}) (*Instance, *Token, error) {
	var start *graph.Node
	if startNodeID == "" {
		if nodes := definition.StartNodes(); len(nodes) > 0 {
			start = nodes[0]
		}
	} else if node, ok := definition.Node(startNodeID); ok && node.Start {
		start = node
	}
	if start == nil {
		return nil, nil, fmt.Errorf("definition %v has no start node %q", definition.ID, startNodeID)
	}
	init, err := definition.Init.Resolve(vars)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialise instance of %v: %w", definition.ID, err)
	}
	instance := newInstance(idgen.WithPrefix("inst"), definition, init)
	_ = r.running.Save(context.Background(), instance)
	token := r.newToken(instance, start, "", nil)
	return instance, token, nil
}

func (r *Registry) newToken(instance *Instance, node *graph.Node, parentID string, internal map[string]interface{}) *Token {
	token := &Token{
		id:         idgen.WithPrefix("tok"),
		parentID:   parentID,
		instanceID: instance.ID,
		registry:   r,
		scheduler:  r.scheduler,
		node:       node,
		state:      graph.StateInit,
		internal:   internal,
	}
	if token.internal == nil {
		token.internal = map[string]interface{}{}
	}
	_ = r.tokens.Save(context.Background(), token)
	instance.addToken(token.id)
	instance.progress.Update(progress.Delta{Created: 1})
	return token
}

// Token returns a live token.
func (r *Registry) Token(id string) (*Token, bool) {
	return r.tokens.Get(id)
}

// Tokens returns live tokens of an instance.
func (r *Registry) Tokens(instanceID string) []*Token {
	instance, ok := r.Instance(instanceID)
	if !ok {
		return nil
	}
	var result []*Token
	for _, id := range instance.LiveTokens() {
		if token, ok := r.tokens.Get(id); ok {
			result = append(result, token)
		}
	}
	return result
}

// Instance returns a running or ended instance.
func (r *Registry) Instance(id string) (*Instance, bool) {
	if instance, ok := r.running.Get(id); ok {
		return instance, true
	}
	return r.ended.Get(id)
}

// Running returns the running instances.
func (r *Registry) Running() []*Instance {
	result, _ := r.running.List(context.Background())
	return result
}

// Ended returns the ended instances.
func (r *Registry) Ended() []*Instance {
	result, _ := r.ended.List(context.Background())
	return result
}

// Forget drops an ended instance from the arena together with the
// per-instance records of its activities.
func (r *Registry) Forget(id string) bool {
	instance, ok := r.ended.Take(id)
	if !ok {
		return false
	}
	instance.Definition.Forget(id)
	return true
}

// release drops a token from the arena and ends its instance once the
// last live token is gone.
func (r *Registry) release(token *Token) {
	_, _ = r.tokens.Take(token.id)
	r.scheduler.TokenReleased(token)
	instance, ok := r.Instance(token.instanceID)
	if !ok {
		return
	}
	if instance.removeToken(token.id) {
		r.end(instance)
	}
}

func (r *Registry) end(instance *Instance) {
	if !instance.end() {
		return
	}
	instance.Definition.Reset(instance.ID)
	if moved, ok := r.running.Take(instance.ID); ok {
		_ = r.ended.Save(context.Background(), moved)
	}
	r.mu.RLock()
	listeners := append([]EndListener(nil), r.listeners...)
	r.mu.RUnlock()
	for _, fn := range listeners {
		fn(instance)
	}
	instance.release()
}

// Cancel sets the cancellation flag of an instance, cancels every live token
// and ends the instance. Cancelling twice is a no-op.
func (r *Registry) Cancel(instanceID string) error {
	instance, ok := r.Instance(instanceID)
	if !ok {
		return fmt.Errorf("%w: %v", ErrInstanceNotFound, instanceID)
	}
	ids, first := instance.markCancelled()
	if !first {
		return nil
	}
	for _, id := range ids {
		if token, ok := r.tokens.Get(id); ok {
			token.CancelExecution()
		}
	}
	r.end(instance)
	return nil
}
