package behaviour

import (
	"sync"

	"github.com/viant/tokenflow/model/graph"
)

// Simple lets every arriving token proceed.
type Simple struct{}

// Join implements graph.IncomingBehaviour.
func (Simple) Join(token graph.Token) (graph.Token, bool, error) {
	return token, true, nil
}

// AndJoin is a barrier: a round completes once every declared incoming flow
// delivered a token for the instance. Earlier arrivals are absorbed, the
// last arrival proceeds as the round representative.
type AndJoin struct {
	mu       sync.Mutex
	barriers map[string]map[string]*barrier // instance -> node -> barrier
}

// NewAndJoin creates an AND barrier.
func NewAndJoin() *AndJoin {
	return &AndJoin{barriers: map[string]map[string]*barrier{}}
}

// Join records the arrival and decides atomically whether the round is
// complete.
func (j *AndJoin) Join(token graph.Token) (graph.Token, bool, error) {
	node := token.Node()
	flow := token.LastTaken()
	expected := node.IncomingFlows()
	if flow == nil || len(expected) <= 1 {
		return token, true, nil
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	nodes, ok := j.barriers[token.InstanceID()]
	if !ok {
		nodes = map[string]*barrier{}
		j.barriers[token.InstanceID()] = nodes
	}
	b, ok := nodes[node.ID]
	if !ok {
		b = newBarrier(expected)
		nodes[node.ID] = b
	}
	if !b.arrive(flow.ID, token.ID()) {
		return nil, false, nil
	}
	if b.empty() {
		delete(nodes, node.ID)
		if len(nodes) == 0 {
			delete(j.barriers, token.InstanceID())
		}
	}
	return token, true, nil
}

// Withdraw removes a pending arrival of token; it returns false when the
// token has no pending arrival.
func (j *AndJoin) Withdraw(token graph.Token) bool {
	node := token.Node()
	if node == nil {
		return false
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	b, ok := j.barriers[token.InstanceID()][node.ID]
	if !ok {
		return false
	}
	return b.withdraw(token.ID())
}

// Reset drops every barrier of an instance.
func (j *AndJoin) Reset(instanceID string) {
	j.mu.Lock()
	delete(j.barriers, instanceID)
	j.mu.Unlock()
}

// Pending returns the number of absorbed arrivals waiting at node.
func (j *AndJoin) Pending(instanceID, nodeID string) int {
	j.mu.Lock()
	defer j.mu.Unlock()
	b, ok := j.barriers[instanceID][nodeID]
	if !ok {
		return 0
	}
	return b.pending()
}

// EventRace admits every arrival and lets exactly one token of a race
// complete its activity; the winner cancels its siblings.
type EventRace struct{}

// Join implements graph.IncomingBehaviour.
func (EventRace) Join(token graph.Token) (graph.Token, bool, error) {
	return token, true, nil
}

// Complete implements graph.CompletionGate.
func (EventRace) Complete(token graph.Token) (bool, error) {
	value, ok := token.Internal(RaceKey)
	if !ok {
		return true, nil
	}
	race, ok := value.(*Race)
	if !ok {
		return true, nil
	}
	won, losers := race.Win(token.ID())
	if !won {
		return false, nil
	}
	token.DeleteInternal(RaceKey)
	for _, id := range losers {
		if sibling, ok := token.Peer(id); ok {
			sibling.CancelExecution()
		}
	}
	return true, nil
}

var (
	_ graph.IncomingBehaviour = Simple{}
	_ graph.IncomingBehaviour = (*AndJoin)(nil)
	_ graph.Withdrawer        = (*AndJoin)(nil)
	_ graph.Resetter          = (*AndJoin)(nil)
	_ graph.CompletionGate    = EventRace{}
)
