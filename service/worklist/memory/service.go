package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/viant/tokenflow/internal/clock"
	"github.com/viant/tokenflow/internal/idgen"
	"github.com/viant/tokenflow/service/dao"
	"github.com/viant/tokenflow/service/dao/store"
	"github.com/viant/tokenflow/service/messaging"
	"github.com/viant/tokenflow/service/worklist"
	"go.uber.org/zap"
)

type service struct {
	resumer worklist.Resumer
	items   dao.Service[string, worklist.Item]
	events  messaging.Queue[worklist.Event]
	logger  *zap.Logger
	mu      sync.Mutex
}

func itemKey(i *worklist.Item) string { return i.ID }

// New creates an in-memory worklist resuming tokens through resumer.
func New(resumer worklist.Resumer, options ...Option) worklist.Service {
	ret := &service{
		resumer: resumer,
		items:   store.NewMemoryStore[string, worklist.Item](itemKey),
		logger:  zap.NewNop(),
	}
	for _, option := range options {
		option(ret)
	}
	return ret
}

func (s *service) Create(ctx context.Context, item *worklist.Item) error {
	if item == nil {
		return dao.ErrNilEntity
	}
	if item.TokenID == "" {
		return fmt.Errorf("work item requires a token: %w", dao.ErrInvalidID)
	}
	if item.ID == "" {
		item.ID = idgen.WithPrefix("item")
	}
	item.State = worklist.ItemOffered
	item.CreatedAt = clock.Now()
	if err := s.items.Save(ctx, item); err != nil {
		return err
	}
	s.publish(worklist.TopicItemCreated, item)
	return nil
}

func (s *service) Load(ctx context.Context, id string) (*worklist.Item, error) {
	return s.items.Load(ctx, id)
}

func (s *service) Pending(ctx context.Context, parameters ...*dao.Parameter) ([]*worklist.Item, error) {
	parameters = append(parameters, dao.NewParameter("state", string(worklist.ItemOffered)))
	return s.items.List(ctx, parameters...)
}

func (s *service) Complete(ctx context.Context, id string, result interface{}) (*worklist.Item, error) {
	if id == "" {
		return nil, dao.ErrInvalidID
	}
	s.mu.Lock()
	item, err := s.items.Load(ctx, id)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if item.State != worklist.ItemOffered {
		s.mu.Unlock()
		return nil, fmt.Errorf("work item %v is %v", id, item.State)
	}
	now := clock.Now()
	item.State = worklist.ItemCompleted
	item.Result = result
	item.CompletedAt = &now
	_ = s.items.Save(ctx, item)
	s.mu.Unlock()

	s.publish(worklist.TopicItemCompleted, item)
	if err = s.resumer.Resume(item.TokenID, result); err != nil {
		return item, fmt.Errorf("failed to resume token %v: %w", item.TokenID, err)
	}
	return item, nil
}

func (s *service) Cancel(ctx context.Context, id string) error {
	s.mu.Lock()
	item, err := s.items.Load(ctx, id)
	if err != nil {
		s.mu.Unlock()
		if errors.Is(err, dao.ErrNotFound) {
			return nil
		}
		return err
	}
	if item.State != worklist.ItemOffered {
		s.mu.Unlock()
		return nil
	}
	item.State = worklist.ItemCancelled
	_ = s.items.Save(ctx, item)
	s.mu.Unlock()
	s.publish(worklist.TopicItemCancelled, item)
	return nil
}

func (s *service) Queue() messaging.Queue[worklist.Event] { return s.events }

func (s *service) publish(topic string, item *worklist.Item) {
	if s.events == nil {
		return
	}
	snapshot := *item
	event := &worklist.Event{Topic: topic, Item: &snapshot}
	if offerer, ok := s.events.(messaging.Offerer[worklist.Event]); ok {
		if !offerer.Offer(event) {
			s.logger.Warn("worklist event dropped, queue full", zap.String("topic", topic), zap.String("item", item.ID))
		}
		return
	}
	if err := s.events.Publish(context.Background(), event); err != nil {
		s.logger.Warn("failed to publish worklist event", zap.String("topic", topic), zap.Error(err))
	}
}

var _ worklist.Service = (*service)(nil)
