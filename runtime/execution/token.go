package execution

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/viant/structology/conv"
	"github.com/viant/tokenflow/model/graph"
	"github.com/viant/tokenflow/progress"
)

var converter = conv.NewConverter(conv.DefaultOptions())

// Token is a single strand of execution. Its per-token execution lock lives
// in the navigator; mu below only guards the token fields.
type Token struct {
	id         string
	parentID   string
	instanceID string
	registry   *Registry
	scheduler  Scheduler

	mu        sync.Mutex
	node      *graph.Node
	lastTaken *graph.ControlFlow
	state     graph.ActivityState
	internal  map[string]interface{}
	suspended bool
	pending   *resumption
	payload   *resumption
	released  atomic.Bool
}

type resumption struct {
	value interface{}
}

// ID returns token id.
func (t *Token) ID() string { return t.id }

// ParentID returns the id of the token this one was forked from.
func (t *Token) ParentID() string { return t.parentID }

// InstanceID returns the owning instance id.
func (t *Token) InstanceID() string { return t.instanceID }

// Node returns the current node.
func (t *Token) Node() *graph.Node {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.node
}

// LastTaken returns the control flow the token arrived over.
func (t *Token) LastTaken() *graph.ControlFlow {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastTaken
}

// State returns the activity state of the current node.
func (t *Token) State() graph.ActivityState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Instance returns the owning instance.
func (t *Token) Instance() (*Instance, bool) {
	return t.registry.Instance(t.instanceID)
}

// Variables returns the owning instance context.
func (t *Token) Variables() graph.Variables {
	if instance, ok := t.Instance(); ok {
		return instance.variables
	}
	return NewVariables(nil)
}

// Internal returns a token local variable.
func (t *Token) Internal(key string) (interface{}, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.internal[key]
	return v, ok
}

// SetInternal sets a token local variable.
func (t *Token) SetInternal(key string, value interface{}) {
	t.mu.Lock()
	t.internal[key] = value
	t.mu.Unlock()
}

// DeleteInternal removes a token local variable.
func (t *Token) DeleteInternal(key string) {
	t.mu.Lock()
	delete(t.internal, key)
	t.mu.Unlock()
}

// Internals returns a copy of token local variables.
func (t *Token) Internals() map[string]interface{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	return cloneMap(t.internal)
}

// Suspend requests parking once the running activation returns.
func (t *Token) Suspend() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != graph.StateActive || t.suspended {
		return &IllegalStateError{TokenID: t.id, Op: "suspend", State: t.state}
	}
	t.suspended = true
	return nil
}

// Resume hands payload to a suspended token and schedules it. A resume that
// arrives while the suspending activation is still running is kept and
// applied when the activation returns. Resuming any other state is ignored
// or rejected depending on the navigator resume policy.
func (t *Token) Resume(payload interface{}) error {
	t.mu.Lock()
	switch {
	case t.state == graph.StateWaiting:
		t.pending = &resumption{value: payload}
		t.state = graph.StateReady
		t.scheduler.RemoveSuspendToken(t)
		t.mu.Unlock()
		t.notify(graph.StateWaiting, graph.StateReady)
		return t.scheduler.AddWorkToken(t)
	case t.state == graph.StateActive && t.suspended && t.pending == nil:
		t.pending = &resumption{value: payload}
		t.mu.Unlock()
		return nil
	}
	state := t.state
	t.mu.Unlock()
	if t.scheduler.RejectsResume() {
		return &IllegalStateError{TokenID: t.id, Op: "resume", State: state}
	}
	return nil
}

// ResumePayload returns the payload of the resume that started the running
// activation.
func (t *Token) ResumePayload() (interface{}, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.payload == nil {
		return nil, false
	}
	return t.payload.value, true
}

// DecodePayload converts the resume payload into dest.
func (t *Token) DecodePayload(dest interface{}) error {
	payload, ok := t.ResumePayload()
	if !ok {
		return fmt.Errorf("token %v was not resumed", t.id)
	}
	return converter.Convert(payload, dest)
}

// CancelExecution cancels the current activity and aborts the token.
// Repeated calls have no further effect.
func (t *Token) CancelExecution() {
	t.mu.Lock()
	from := t.state
	if from.IsTerminal() {
		t.mu.Unlock()
		return
	}
	t.state = graph.StateAborted
	if from == graph.StateWaiting {
		t.scheduler.RemoveSuspendToken(t)
	}
	node := t.node
	t.mu.Unlock()

	cancelActivity(node, t)
	t.notify(from, graph.StateAborted)
	t.withdraw(node)
	t.release()
}

// Fork creates a child token that will travel flow. Token local variables
// are copied.
func (t *Token) Fork(flow *graph.ControlFlow) graph.Token {
	instance, ok := t.Instance()
	if !ok {
		return nil
	}
	return t.registry.newToken(instance, t.Node(), t.id, t.Internals())
}

// Peer looks up a live token of the same instance.
func (t *Token) Peer(id string) (graph.Token, bool) {
	peer, ok := t.registry.Token(id)
	if !ok || peer.instanceID != t.instanceID {
		return nil, false
	}
	return peer, true
}

// ExecuteStep runs the activity of the current node and, unless the
// activity suspended, splits, joins and schedules the successors. The caller
// must hold the token execution lock.
func (t *Token) ExecuteStep() error {
	instance, ok := t.Instance()
	if !ok || instance.Cancelled() {
		t.abort()
		return nil
	}
	if !t.transition(graph.StateActive, graph.StateReady) {
		return nil
	}
	node, resumed := t.activate()
	var err error
	if resumed != nil {
		if resumer, ok := node.Activity.(graph.Resumer); ok {
			err = resumer.Resume(t, resumed.value)
		}
	} else {
		err = node.Activity.Execute(t)
	}
	if err != nil {
		if t.State() == graph.StateAborted {
			cancelActivity(node, t)
			return nil
		}
		return &ActivityExecutionError{TokenID: t.id, NodeID: node.ID, Err: err}
	}
	if t.park() {
		return nil
	}
	return t.advance(instance, node)
}

// Fail aborts the token after a step error and records the error on the
// instance.
func (t *Token) Fail(err error, failInstance bool) {
	if instance, ok := t.Instance(); ok {
		instance.recordError(err, failInstance)
	}
	t.mu.Lock()
	from := t.state
	node := t.node
	if from == graph.StateAborted {
		t.mu.Unlock()
		t.release()
		return
	}
	t.state = graph.StateAborted
	if from == graph.StateWaiting {
		t.scheduler.RemoveSuspendToken(t)
	}
	t.mu.Unlock()
	t.notify(from, graph.StateAborted)
	t.withdraw(node)
	t.release()
}

// Released returns true once the token left the arena.
func (t *Token) Released() bool { return t.released.Load() }

// MarkReady moves an INIT token to READY.
func (t *Token) MarkReady() bool {
	return t.transition(graph.StateReady, graph.StateInit)
}

func (t *Token) activate() (*graph.Node, *resumption) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.suspended = false
	t.payload = t.pending
	t.pending = nil
	return t.node, t.payload
}

// park returns true when the activation suspended.
func (t *Token) park() bool {
	t.mu.Lock()
	if !t.suspended {
		t.mu.Unlock()
		return false
	}
	if t.state != graph.StateActive {
		aborted, node := t.state == graph.StateAborted, t.node
		t.mu.Unlock()
		if aborted {
			// cancelled while registering; withdraw what Execute left behind
			cancelActivity(node, t)
		}
		return true
	}
	if t.pending != nil {
		t.state = graph.StateReady
		t.mu.Unlock()
		t.notify(graph.StateActive, graph.StateWaiting)
		t.notify(graph.StateWaiting, graph.StateReady)
		if err := t.scheduler.AddWorkToken(t); err != nil {
			t.Fail(err, false)
		}
		return true
	}
	t.state = graph.StateWaiting
	t.scheduler.AddSuspendToken(t)
	t.mu.Unlock()
	t.notify(graph.StateActive, graph.StateWaiting)
	return true
}

func (t *Token) advance(instance *Instance, node *graph.Node) error {
	if t.State() != graph.StateActive {
		return nil
	}
	if gate, ok := node.Incoming.(graph.CompletionGate); ok {
		won, err := gate.Complete(t)
		if err != nil {
			return err
		}
		if !won {
			t.abort()
			return nil
		}
	}
	if !t.transition(graph.StateCompleted, graph.StateActive) {
		return nil
	}
	if instance.Cancelled() {
		t.release()
		return nil
	}
	transitions, err := node.Outgoing.Split(t)
	if err != nil {
		return err
	}

	successors := make([]*Token, 0, len(transitions))
	reused := false
	for _, transition := range transitions {
		successor, ok := transition.Token.(*Token)
		if !ok || successor == nil {
			err = fmt.Errorf("split at %v produced a foreign token", node.ID)
			break
		}
		successor.navigateTo(transition.Flow)
		successors = append(successors, successor)
		reused = reused || successor == t
	}

	var proceeding, absorbed []*Token
	if err == nil {
		for _, successor := range successors {
			destination := successor.Node()
			proceed, ok, joinErr := destination.Incoming.Join(successor)
			if joinErr != nil {
				err = joinErr
				break
			}
			if !ok {
				absorbed = append(absorbed, successor)
				continue
			}
			representative, isToken := proceed.(*Token)
			if !isToken {
				err = fmt.Errorf("join at %v produced a foreign token", destination.ID)
				break
			}
			proceeding = append(proceeding, representative)
		}
	}
	if err == nil && instance.Cancelled() {
		err = ErrInstanceCancelled
	}
	if err != nil {
		for _, successor := range successors {
			successor.withdraw(successor.Node())
			if successor != t {
				successor.abort()
			}
		}
		if err == ErrInstanceCancelled {
			t.release()
			return nil
		}
		return err
	}

	for _, token := range proceeding {
		if !token.MarkReady() {
			continue
		}
		if err := t.scheduler.AddWorkToken(token); err != nil {
			token.Fail(err, false)
		}
	}
	for _, token := range absorbed {
		if token.transition(graph.StateCompleted, graph.StateInit) {
			token.release()
		}
	}
	if !reused {
		t.release()
	}
	return nil
}

func (t *Token) navigateTo(flow *graph.ControlFlow) {
	t.mu.Lock()
	t.node = flow.Destination
	t.lastTaken = flow
	t.state = graph.StateInit
	t.suspended = false
	t.payload = nil
	t.pending = nil
	t.mu.Unlock()
}

// transition moves the token to "to" when its state is one of from.
func (t *Token) transition(to graph.ActivityState, from ...graph.ActivityState) bool {
	t.mu.Lock()
	current := t.state
	matched := false
	for _, candidate := range from {
		if candidate == current {
			matched = true
			break
		}
	}
	if !matched {
		t.mu.Unlock()
		return false
	}
	t.state = to
	t.mu.Unlock()
	t.notify(current, to)
	return true
}

// abort moves a non terminal token to ABORTED without cancelling its
// activity and releases it.
func (t *Token) abort() {
	t.mu.Lock()
	from := t.state
	if from != graph.StateAborted {
		t.state = graph.StateAborted
		if from == graph.StateWaiting {
			t.scheduler.RemoveSuspendToken(t)
		}
	}
	t.mu.Unlock()
	if from != graph.StateAborted {
		t.notify(from, graph.StateAborted)
	}
	t.release()
}

func (t *Token) withdraw(node *graph.Node) {
	if node == nil {
		return
	}
	if w, ok := node.Incoming.(graph.Withdrawer); ok {
		w.Withdraw(t)
	}
}

func (t *Token) release() {
	if !t.released.CompareAndSwap(false, true) {
		return
	}
	t.registry.release(t)
}

func (t *Token) notify(from, to graph.ActivityState) {
	if instance, ok := t.Instance(); ok {
		instance.progress.Update(deltaOf(from, to))
	}
	t.scheduler.Notify(t, from, to)
}

func deltaOf(from, to graph.ActivityState) progress.Delta {
	var d progress.Delta
	switch from {
	case graph.StateActive:
		d.Running--
	case graph.StateWaiting:
		d.Waiting--
	case graph.StateCompleted:
		d.Completed--
	}
	switch to {
	case graph.StateActive:
		d.Running++
	case graph.StateWaiting:
		d.Waiting++
	case graph.StateCompleted:
		d.Completed++
	case graph.StateAborted:
		d.Aborted++
	}
	return d
}

func cancelActivity(node *graph.Node, token *Token) {
	if node == nil || node.Activity == nil {
		return
	}
	defer func() { _ = recover() }()
	node.Activity.Cancel(token)
}

func cloneMap(src map[string]interface{}) map[string]interface{} {
	result := make(map[string]interface{}, len(src))
	for k, v := range src {
		result[k] = v
	}
	return result
}

var _ graph.Token = (*Token)(nil)
