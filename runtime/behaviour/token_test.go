package behaviour

import (
	"fmt"
	"sync"

	"github.com/viant/tokenflow/model/graph"
	"github.com/viant/tokenflow/runtime/execution"
)

// fakeToken is a minimal graph.Token used to drive behaviours directly.
type fakeToken struct {
	id        string
	instance  string
	node      *graph.Node
	lastTaken *graph.ControlFlow
	vars      *execution.Variables
	peers     *peers

	mu        sync.Mutex
	internal  map[string]interface{}
	cancelled int
}

type peers struct {
	mu     sync.Mutex
	tokens map[string]*fakeToken
	seq    int
}

func newFakeToken(instance string, node *graph.Node, vars map[string]interface{}) *fakeToken {
	p := &peers{tokens: map[string]*fakeToken{}}
	return p.add(instance, node, execution.NewVariables(vars))
}

func (p *peers) add(instance string, node *graph.Node, vars *execution.Variables) *fakeToken {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seq++
	t := &fakeToken{id: fmt.Sprintf("t%d", p.seq), instance: instance, node: node, vars: vars, peers: p, internal: map[string]interface{}{}}
	p.tokens[t.id] = t
	return t
}

func (t *fakeToken) arriveVia(flow *graph.ControlFlow) *fakeToken {
	t.node = flow.Destination
	t.lastTaken = flow
	return t
}

func (t *fakeToken) ID() string                         { return t.id }
func (t *fakeToken) ParentID() string                   { return "" }
func (t *fakeToken) InstanceID() string                 { return t.instance }
func (t *fakeToken) Node() *graph.Node                  { return t.node }
func (t *fakeToken) LastTaken() *graph.ControlFlow      { return t.lastTaken }
func (t *fakeToken) State() graph.ActivityState         { return graph.StateActive }
func (t *fakeToken) Variables() graph.Variables         { return t.vars }
func (t *fakeToken) Suspend() error                     { return nil }
func (t *fakeToken) Resume(interface{}) error           { return nil }
func (t *fakeToken) ResumePayload() (interface{}, bool) { return nil, false }

func (t *fakeToken) Internal(key string) (interface{}, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.internal[key]
	return v, ok
}

func (t *fakeToken) SetInternal(key string, value interface{}) {
	t.mu.Lock()
	t.internal[key] = value
	t.mu.Unlock()
}

func (t *fakeToken) DeleteInternal(key string) {
	t.mu.Lock()
	delete(t.internal, key)
	t.mu.Unlock()
}

func (t *fakeToken) Internals() map[string]interface{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	result := map[string]interface{}{}
	for k, v := range t.internal {
		result[k] = v
	}
	return result
}

func (t *fakeToken) CancelExecution() {
	t.mu.Lock()
	t.cancelled++
	t.mu.Unlock()
}

func (t *fakeToken) cancelCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancelled
}

func (t *fakeToken) Fork(*graph.ControlFlow) graph.Token {
	child := t.peers.add(t.instance, t.node, t.vars)
	for k, v := range t.Internals() {
		child.internal[k] = v
	}
	return child
}

func (t *fakeToken) Peer(id string) (graph.Token, bool) {
	t.peers.mu.Lock()
	defer t.peers.mu.Unlock()
	peer, ok := t.peers.tokens[id]
	return peer, ok
}

type nopActivity struct{}

func (nopActivity) Execute(graph.Token) error { return nil }
func (nopActivity) Cancel(graph.Token)        {}
