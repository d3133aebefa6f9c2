package graph

import (
	"fmt"

	"github.com/viant/tokenflow/model/state"
	"go.uber.org/multierr"
)

// NodeOption customises a node created by Builder.
type NodeOption func(n *Node)

// WithName sets a human readable node name.
func WithName(name string) NodeOption {
	return func(n *Node) { n.Name = name }
}

// WithActivity sets the node activity.
func WithActivity(activity Activity) NodeOption {
	return func(n *Node) { n.Activity = activity }
}

// WithJoin sets the node incoming behaviour.
func WithJoin(join IncomingBehaviour) NodeOption {
	return func(n *Node) { n.Incoming = join }
}

// WithSplit sets the node outgoing behaviour.
func WithSplit(split OutgoingBehaviour) NodeOption {
	return func(n *Node) { n.Outgoing = split }
}

// Racing is implemented by splits whose destinations compete; every
// destination of such split must gate completion.
type Racing interface {
	Racing() bool
}

// Builder assembles a Definition. Problems are accumulated and reported
// together by Build.
type Builder struct {
	def   *Definition
	errs  error
	built bool
}

// NewBuilder creates a builder for definition id.
func NewBuilder(id string) *Builder {
	return &Builder{def: &Definition{ID: id, nodes: map[string]*Node{}}}
}

// Name sets the definition name.
func (b *Builder) Name(name string) *Builder {
	b.def.Name = name
	return b
}

// Init declares initial instance variables.
func (b *Builder) Init(params state.Parameters) *Builder {
	b.def.Init = append(b.def.Init, params...)
	return b
}

// StartNode adds a start node.
func (b *Builder) StartNode(id string, opts ...NodeOption) *Node {
	node := b.Node(id, opts...)
	node.Start = true
	if b.def.nodes[id] == node {
		b.def.start = append(b.def.start, node)
	}
	return node
}

// Node adds a node; adding an id twice is reported by Build.
func (b *Builder) Node(id string, opts ...NodeOption) *Node {
	node := &Node{ID: id}
	for _, opt := range opts {
		opt(node)
	}
	if b.built {
		b.errs = multierr.Append(b.errs, fmt.Errorf("node %q added after build", id))
		return node
	}
	if id == "" {
		b.errs = multierr.Append(b.errs, fmt.Errorf("node id was empty"))
		return node
	}
	if _, ok := b.def.nodes[id]; ok {
		b.errs = multierr.Append(b.errs, fmt.Errorf("duplicate node %q", id))
		return node
	}
	b.def.nodes[id] = node
	b.def.order = append(b.def.order, node)
	return node
}

// Flow connects two nodes unconditionally.
func (b *Builder) Flow(from, to *Node) *ControlFlow {
	return b.ConditionalFlow(from, to, nil)
}

// ConditionalFlow connects two nodes with a guard.
func (b *Builder) ConditionalFlow(from, to *Node, condition Condition) *ControlFlow {
	flow := &ControlFlow{Source: from, Destination: to, Condition: condition}
	if b.built {
		b.errs = multierr.Append(b.errs, fmt.Errorf("flow added after build"))
		return flow
	}
	if from == nil || to == nil {
		b.errs = multierr.Append(b.errs, fmt.Errorf("flow %d has a nil endpoint", len(b.def.flows)))
		return flow
	}
	if b.def.nodes[from.ID] != from || b.def.nodes[to.ID] != to {
		b.errs = multierr.Append(b.errs, fmt.Errorf("flow %v references a node of another builder", flow))
		return flow
	}
	flow.ID = fmt.Sprintf("%s->%s#%d", from.ID, to.ID, len(b.def.flows))
	link(flow)
	b.def.flows = append(b.def.flows, flow)
	return flow
}

// Connect connects nodes by id.
func (b *Builder) Connect(fromID, toID string, condition Condition) *ControlFlow {
	from, ok := b.def.nodes[fromID]
	if !ok {
		b.errs = multierr.Append(b.errs, fmt.Errorf("flow source %q not found", fromID))
		return nil
	}
	to, ok := b.def.nodes[toID]
	if !ok {
		b.errs = multierr.Append(b.errs, fmt.Errorf("flow destination %q not found", toID))
		return nil
	}
	return b.ConditionalFlow(from, to, condition)
}

// Build validates and returns the definition.
func (b *Builder) Build() (*Definition, error) {
	if b.built {
		return nil, &DefinitionError{DefinitionID: b.def.ID, Err: fmt.Errorf("already built")}
	}
	b.built = true
	errs := b.errs
	if len(b.def.start) == 0 {
		errs = multierr.Append(errs, fmt.Errorf("no start node"))
	}
	for _, node := range b.def.order {
		if node.Activity == nil {
			errs = multierr.Append(errs, fmt.Errorf("node %q has no activity", node.ID))
		}
		if node.Incoming == nil {
			errs = multierr.Append(errs, fmt.Errorf("node %q has no incoming behaviour", node.ID))
		}
		if node.Outgoing == nil {
			errs = multierr.Append(errs, fmt.Errorf("node %q has no outgoing behaviour", node.ID))
		}
		if !node.Start && len(node.incoming) == 0 {
			errs = multierr.Append(errs, fmt.Errorf("node %q has no incoming control flow", node.ID))
		}
		if r, ok := node.Outgoing.(Racing); ok && r.Racing() {
			for _, flow := range node.outgoing {
				if _, ok := flow.Destination.Incoming.(CompletionGate); !ok {
					errs = multierr.Append(errs, fmt.Errorf("race destination %q does not gate completion", flow.Destination.ID))
				}
			}
		}
	}
	reached := b.reachable()
	for _, node := range b.def.order {
		if !reached[node.ID] && len(b.def.start) > 0 {
			errs = multierr.Append(errs, fmt.Errorf("node %q is unreachable from start", node.ID))
		}
	}
	if errs != nil {
		return nil, &DefinitionError{DefinitionID: b.def.ID, Err: errs}
	}
	return b.def, nil
}

func (b *Builder) reachable() map[string]bool {
	seen := make(map[string]bool, len(b.def.order))
	pending := append([]*Node(nil), b.def.start...)
	for len(pending) > 0 {
		node := pending[len(pending)-1]
		pending = pending[:len(pending)-1]
		if seen[node.ID] {
			continue
		}
		seen[node.ID] = true
		for _, flow := range node.outgoing {
			pending = append(pending, flow.Destination)
		}
	}
	return seen
}
