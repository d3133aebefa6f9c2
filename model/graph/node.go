package graph

import "sync"

// Node is a vertex of a process graph. A node exclusively owns its activity
// descriptor and its behaviours; the behaviours are shared by every token
// arriving at the node.
type Node struct {
	ID       string
	Name     string
	Start    bool
	Activity Activity
	Incoming IncomingBehaviour
	Outgoing OutgoingBehaviour

	mu       sync.RWMutex
	outgoing []*ControlFlow
	incoming []*ControlFlow
}

// OutgoingFlows returns outgoing control flows in definition order.
func (n *Node) OutgoingFlows() []*ControlFlow {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return append([]*ControlFlow(nil), n.outgoing...)
}

// IncomingFlows returns incoming control flows.
func (n *Node) IncomingFlows() []*ControlFlow {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return append([]*ControlFlow(nil), n.incoming...)
}

// IncomingCount returns the declared number of incoming flows.
func (n *Node) IncomingCount() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.incoming)
}

func link(flow *ControlFlow) {
	flow.Source.mu.Lock()
	flow.Source.outgoing = append(flow.Source.outgoing, flow)
	flow.Source.mu.Unlock()
	flow.Destination.mu.Lock()
	flow.Destination.incoming = append(flow.Destination.incoming, flow)
	flow.Destination.mu.Unlock()
}

func (n *Node) String() string {
	if n == nil {
		return "<nil>"
	}
	return n.ID
}

// ControlFlow is a directed edge between two nodes with an optional guard.
type ControlFlow struct {
	ID          string
	Source      *Node
	Destination *Node
	Condition   Condition
}

// Conditional returns true when the flow carries a guard.
func (f *ControlFlow) Conditional() bool { return f.Condition != nil }

// Permits evaluates the guard against instance variables. A missing guard
// permits, a failing guard does not.
func (f *ControlFlow) Permits(vars map[string]interface{}) bool {
	if f.Condition == nil {
		return true
	}
	ok, err := f.Condition.Evaluate(vars)
	if err != nil {
		return false
	}
	return ok
}

func (f *ControlFlow) String() string {
	return f.Source.String() + "->" + f.Destination.String()
}
