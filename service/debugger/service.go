// Package debugger parks tokens on breakpoints. A matching state transition
// blocks the transitioning goroutine on an interrupter until it is released.
package debugger

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/viant/tokenflow/internal/clock"
	"github.com/viant/tokenflow/internal/idgen"
	"github.com/viant/tokenflow/model/graph"
	"github.com/viant/tokenflow/runtime/execution"
	"go.uber.org/zap"
)

// Command tells a parked interrupter how to proceed.
type Command string

const (
	// Continue releases the token and keeps the breakpoint.
	Continue Command = "continue"
	// Remove releases the token and deletes the breakpoint.
	Remove Command = "remove"
)

// Breakpoint matches a node and the state a token enters on it.
type Breakpoint struct {
	ID     string
	NodeID string
	State  graph.ActivityState
}

func (b *Breakpoint) matches(nodeID string, to graph.ActivityState) bool {
	return b.NodeID == nodeID && (b.State == "" || b.State == to)
}

// Interrupter is a parked transition.
type Interrupter struct {
	ID           string
	TokenID      string
	InstanceID   string
	NodeID       string
	State        graph.ActivityState
	BreakpointID string
	At           time.Time
	release      chan Command
}

// Service is a breakpoint listener.
type Service struct {
	logger *zap.Logger

	mu          sync.Mutex
	breakpoints map[string]*Breakpoint
	interrupted map[string]*Interrupter
	parked      chan *Interrupter
}

// New creates a debugger.
func New(logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		logger:      logger,
		breakpoints: map[string]*Breakpoint{},
		interrupted: map[string]*Interrupter{},
		parked:      make(chan *Interrupter, 64),
	}
}

// AddBreakpoint parks tokens entering state on nodeID; an empty state
// matches every transition on the node.
func (s *Service) AddBreakpoint(nodeID string, state graph.ActivityState) *Breakpoint {
	bp := &Breakpoint{ID: idgen.WithPrefix("bp"), NodeID: nodeID, State: state}
	s.mu.Lock()
	s.breakpoints[bp.ID] = bp
	s.mu.Unlock()
	return bp
}

// RemoveBreakpoint deletes a breakpoint.
func (s *Service) RemoveBreakpoint(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.breakpoints[id]; !ok {
		return false
	}
	delete(s.breakpoints, id)
	return true
}

// Breakpoints returns registered breakpoints.
func (s *Service) Breakpoints() []*Breakpoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make([]*Breakpoint, 0, len(s.breakpoints))
	for _, bp := range s.breakpoints {
		result = append(result, bp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].NodeID < result[j].NodeID })
	return result
}

// Interrupted returns parked interrupters ordered by time.
func (s *Service) Interrupted() []*Interrupter {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make([]*Interrupter, 0, len(s.interrupted))
	for _, i := range s.interrupted {
		result = append(result, i)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].At.Before(result[j].At) })
	return result
}

// Parked delivers interrupters as they park; the channel is buffered and
// drops notifications nobody reads.
func (s *Service) Parked() <-chan *Interrupter { return s.parked }

// Release lets a parked interrupter continue.
func (s *Service) Release(id string, command Command) error {
	s.mu.Lock()
	interrupter, ok := s.interrupted[id]
	if ok {
		delete(s.interrupted, id)
		if command == Remove {
			delete(s.breakpoints, interrupter.BreakpointID)
		}
	}
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("interrupter %v not found", id)
	}
	interrupter.release <- command
	return nil
}

// ReleaseAll releases every parked interrupter with Continue.
func (s *Service) ReleaseAll() {
	for _, interrupter := range s.Interrupted() {
		_ = s.Release(interrupter.ID, Continue)
	}
}

// OnStateChange implements execution.Listener.
func (s *Service) OnStateChange(token *execution.Token, _, to graph.ActivityState) {
	node := token.Node()
	if node == nil {
		return
	}
	s.mu.Lock()
	var hit *Breakpoint
	for _, bp := range s.breakpoints {
		if bp.matches(node.ID, to) {
			hit = bp
			break
		}
	}
	if hit == nil {
		s.mu.Unlock()
		return
	}
	interrupter := &Interrupter{
		ID:           idgen.WithPrefix("int"),
		TokenID:      token.ID(),
		InstanceID:   token.InstanceID(),
		NodeID:       node.ID,
		State:        to,
		BreakpointID: hit.ID,
		At:           clock.Now(),
		release:      make(chan Command, 1),
	}
	s.interrupted[interrupter.ID] = interrupter
	s.mu.Unlock()

	s.logger.Info("breakpoint hit", zap.String("token", token.ID()), zap.String("node", node.ID), zap.String("state", string(to)))
	select {
	case s.parked <- interrupter:
	default:
	}
	command := <-interrupter.release
	s.logger.Info("breakpoint released", zap.String("token", token.ID()), zap.String("command", string(command)))
}

var _ execution.Listener = (*Service)(nil)
