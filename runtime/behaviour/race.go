package behaviour

import (
	"sync"
	"time"

	"github.com/viant/tokenflow/internal/clock"
	"github.com/viant/tokenflow/internal/idgen"
	"github.com/viant/tokenflow/model/graph"
)

// RaceKey is the token internal variable holding the *Race of a race branch.
const RaceKey = "tokenflow.race"

// Race records the sibling tokens created by one event race split. Exactly
// one sibling can win.
type Race struct {
	ID         string
	InstanceID string

	mu       sync.Mutex
	siblings []string
	winner   string
	DoneAt   *time.Time
}

// Siblings returns the competing token ids.
func (r *Race) Siblings() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.siblings...)
}

// Winner returns the winning token id or empty.
func (r *Race) Winner() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.winner
}

// Win atomically claims the race for tokenID. The first caller wins and
// receives the ids of the other siblings; later callers lose.
func (r *Race) Win(tokenID string) (bool, []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.winner != "" {
		return false, nil
	}
	r.winner = tokenID
	now := clock.Now()
	r.DoneAt = &now
	losers := make([]string, 0, len(r.siblings))
	for _, id := range r.siblings {
		if id != tokenID {
			losers = append(losers, id)
		}
	}
	return true, losers
}

// EventRaceSplit forks one waiting branch per outgoing flow and records them
// as a race. The arriving token ends at the gateway.
type EventRaceSplit struct {
	mu    sync.Mutex
	races map[string][]*Race
}

// NewEventRaceSplit creates an event race split.
func NewEventRaceSplit() *EventRaceSplit {
	return &EventRaceSplit{races: map[string][]*Race{}}
}

// Racing marks destinations of this split as competing.
func (s *EventRaceSplit) Racing() bool { return true }

// Split implements graph.OutgoingBehaviour.
func (s *EventRaceSplit) Split(token graph.Token) ([]graph.Transition, error) {
	flows := token.Node().OutgoingFlows()
	if len(flows) == 0 {
		return nil, nil
	}
	race := &Race{ID: idgen.WithPrefix("race"), InstanceID: token.InstanceID()}
	transitions := make([]graph.Transition, 0, len(flows))
	for _, flow := range flows {
		branch := token.Fork(flow)
		if branch == nil {
			continue
		}
		branch.SetInternal(RaceKey, race)
		race.siblings = append(race.siblings, branch.ID())
		transitions = append(transitions, graph.Transition{Flow: flow, Token: branch})
	}
	s.mu.Lock()
	s.races[token.InstanceID()] = append(s.races[token.InstanceID()], race)
	s.mu.Unlock()
	return transitions, nil
}

// Races returns races started for an instance.
func (s *EventRaceSplit) Races(instanceID string) []*Race {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Race(nil), s.races[instanceID]...)
}

// Reset drops races of an instance.
func (s *EventRaceSplit) Reset(instanceID string) {
	s.mu.Lock()
	delete(s.races, instanceID)
	s.mu.Unlock()
}

var (
	_ graph.OutgoingBehaviour = (*EventRaceSplit)(nil)
	_ graph.Racing            = (*EventRaceSplit)(nil)
	_ graph.Resetter          = (*EventRaceSplit)(nil)
)
