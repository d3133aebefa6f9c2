package behaviour

import "github.com/viant/tokenflow/model/graph"

// barrier keeps per flow arrival queues of one (node, instance) pair. It is
// guarded by the owning AndJoin.
type barrier struct {
	flows    []string
	arrivals map[string][]string
}

func newBarrier(flows []*graph.ControlFlow) *barrier {
	b := &barrier{arrivals: map[string][]string{}}
	for _, flow := range flows {
		b.flows = append(b.flows, flow.ID)
	}
	return b
}

// arrive records tokenID on flowID and returns true when the round is
// complete; completing consumes one arrival per flow.
func (b *barrier) arrive(flowID, tokenID string) bool {
	b.arrivals[flowID] = append(b.arrivals[flowID], tokenID)
	for _, id := range b.flows {
		if len(b.arrivals[id]) == 0 {
			return false
		}
	}
	for _, id := range b.flows {
		b.arrivals[id] = b.arrivals[id][1:]
		if len(b.arrivals[id]) == 0 {
			delete(b.arrivals, id)
		}
	}
	return true
}

func (b *barrier) withdraw(tokenID string) bool {
	for flowID, ids := range b.arrivals {
		for i, id := range ids {
			if id != tokenID {
				continue
			}
			ids = append(ids[:i:i], ids[i+1:]...)
			if len(ids) == 0 {
				delete(b.arrivals, flowID)
			} else {
				b.arrivals[flowID] = ids
			}
			return true
		}
	}
	return false
}

func (b *barrier) pending() int {
	count := 0
	for _, ids := range b.arrivals {
		count += len(ids)
	}
	return count
}

func (b *barrier) empty() bool { return len(b.arrivals) == 0 }
