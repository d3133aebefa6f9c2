// Package trigger provides manual triggering adapters: named event sources
// that suspended tokens subscribe to and that resume every subscriber once
// the adapter fires.
package trigger

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/viant/tokenflow/internal/clock"
	"github.com/viant/tokenflow/internal/idgen"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Event is the resume payload delivered to a subscribed token.
type Event struct {
	Adapter string
	Payload interface{}
	At      time.Time
}

// Subscription binds a token to an adapter.
type Subscription struct {
	ID      string
	Adapter string
	TokenID string
}

// Resumer resumes a suspended token with a payload.
type Resumer interface {
	Resume(tokenID string, payload interface{}) error
}

// Service is a registry of manual adapters.
type Service struct {
	resumer Resumer
	logger  *zap.Logger

	mu        sync.Mutex
	subs      map[string]*Subscription
	byAdapter map[string]map[string]struct{}
}

// New creates a trigger service.
func New(resumer Resumer, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		resumer:   resumer,
		logger:    logger,
		subs:      map[string]*Subscription{},
		byAdapter: map[string]map[string]struct{}{},
	}
}

// Subscribe registers tokenID on adapter and returns the subscription id.
func (s *Service) Subscribe(adapter, tokenID string) string {
	sub := &Subscription{ID: idgen.WithPrefix("sub"), Adapter: adapter, TokenID: tokenID}
	s.mu.Lock()
	s.subs[sub.ID] = sub
	if s.byAdapter[adapter] == nil {
		s.byAdapter[adapter] = map[string]struct{}{}
	}
	s.byAdapter[adapter][sub.ID] = struct{}{}
	s.mu.Unlock()
	return sub.ID
}

// Unsubscribe removes a subscription; it returns false when it was already
// gone.
func (s *Service) Unsubscribe(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remove(id) != nil
}

func (s *Service) remove(id string) *Subscription {
	sub, ok := s.subs[id]
	if !ok {
		return nil
	}
	delete(s.subs, id)
	if ids := s.byAdapter[sub.Adapter]; ids != nil {
		delete(ids, id)
		if len(ids) == 0 {
			delete(s.byAdapter, sub.Adapter)
		}
	}
	return sub
}

// Trigger fires adapter: every subscription is consumed and its token
// resumed exactly once. It returns the number of resumed tokens.
func (s *Service) Trigger(adapter string, payload interface{}) (int, error) {
	s.mu.Lock()
	var fired []*Subscription
	for id := range s.byAdapter[adapter] {
		if sub := s.remove(id); sub != nil {
			fired = append(fired, sub)
		}
	}
	s.mu.Unlock()

	event := &Event{Adapter: adapter, Payload: payload, At: clock.Now()}
	var err error
	resumed := 0
	for _, sub := range fired {
		if rErr := s.resumer.Resume(sub.TokenID, event); rErr != nil {
			s.logger.Warn("failed to resume subscriber", zap.String("adapter", adapter), zap.String("token", sub.TokenID), zap.Error(rErr))
			err = multierr.Append(err, fmt.Errorf("token %v: %w", sub.TokenID, rErr))
			continue
		}
		resumed++
	}
	return resumed, err
}

// Subscriptions lists current subscriptions of adapter sorted by token.
func (s *Service) Subscriptions(adapter string) []*Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []*Subscription
	for id := range s.byAdapter[adapter] {
		sub := *s.subs[id]
		result = append(result, &sub)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].TokenID < result[j].TokenID })
	return result
}
