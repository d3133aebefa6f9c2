package graph

import "github.com/viant/tokenflow/model/state"

// Definition is an immutable process graph produced by Builder.
type Definition struct {
	ID    string
	Name  string
	Init  state.Parameters
	nodes map[string]*Node
	order []*Node
	flows []*ControlFlow
	start []*Node
}

// Node returns a node by id.
func (d *Definition) Node(id string) (*Node, bool) {
	n, ok := d.nodes[id]
	return n, ok
}

// Nodes returns nodes in declaration order.
func (d *Definition) Nodes() []*Node { return append([]*Node(nil), d.order...) }

// Flows returns control flows in declaration order.
func (d *Definition) Flows() []*ControlFlow { return append([]*ControlFlow(nil), d.flows...) }

// StartNodes returns designated start nodes in declaration order.
func (d *Definition) StartNodes() []*Node { return append([]*Node(nil), d.start...) }

// Reset drops per-instance bookkeeping held by stateful behaviours.
func (d *Definition) Reset(instanceID string) {
	for _, node := range d.order {
		if r, ok := node.Incoming.(Resetter); ok {
			r.Reset(instanceID)
		}
		if r, ok := node.Outgoing.(Resetter); ok {
			r.Reset(instanceID)
		}
	}
}

// Forget drops per-instance records kept by activities.
func (d *Definition) Forget(instanceID string) {
	for _, node := range d.order {
		if f, ok := node.Activity.(Forgetter); ok {
			f.Forget(instanceID)
		}
	}
}
