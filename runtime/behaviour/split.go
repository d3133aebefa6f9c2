package behaviour

import (
	"github.com/viant/tokenflow/model/graph"
	"github.com/viant/tokenflow/runtime/execution"
)

// TakeAll follows every permitted outgoing flow. The first successor reuses
// the arriving token, the others are forked from it.
type TakeAll struct{}

// Split implements graph.OutgoingBehaviour.
func (TakeAll) Split(token graph.Token) ([]graph.Transition, error) {
	vars := token.Variables().All()
	var transitions []graph.Transition
	for _, flow := range token.Node().OutgoingFlows() {
		if !flow.Permits(vars) {
			continue
		}
		transitions = append(transitions, graph.Transition{Flow: flow, Token: successor(token, flow, len(transitions) == 0)})
	}
	return transitions, nil
}

// Exclusive takes the first conditional flow whose guard holds, in
// definition order, and falls back to the first unconditional flow. A node
// without outgoing flows ends the token.
type Exclusive struct{}

// Split implements graph.OutgoingBehaviour.
func (Exclusive) Split(token graph.Token) ([]graph.Transition, error) {
	flows := token.Node().OutgoingFlows()
	if len(flows) == 0 {
		return nil, nil
	}
	vars := token.Variables().All()
	var fallback *graph.ControlFlow
	for _, flow := range flows {
		if !flow.Conditional() {
			if fallback == nil {
				fallback = flow
			}
			continue
		}
		if flow.Permits(vars) {
			return []graph.Transition{{Flow: flow, Token: token}}, nil
		}
	}
	if fallback != nil {
		return []graph.Transition{{Flow: fallback, Token: token}}, nil
	}
	return nil, &execution.NoValidPathError{NodeID: token.Node().ID, TokenID: token.ID()}
}

func successor(token graph.Token, flow *graph.ControlFlow, reuse bool) graph.Token {
	if reuse {
		return token
	}
	return token.Fork(flow)
}

var (
	_ graph.OutgoingBehaviour = TakeAll{}
	_ graph.OutgoingBehaviour = Exclusive{}
)
