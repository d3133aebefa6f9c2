package navigator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/dogmatiq/linger"
	"github.com/dogmatiq/linger/backoff"
	"github.com/viant/tokenflow/model/graph"
	"github.com/viant/tokenflow/policy"
	"github.com/viant/tokenflow/runtime/execution"
	"github.com/viant/tokenflow/service/messaging"
	"github.com/viant/tokenflow/service/messaging/memory"
	"github.com/viant/tokenflow/tracing"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// TokenRef is a work queue entry.
type TokenRef struct {
	TokenID string
	Attempt uint
}

// Service is the token navigator
type Service struct {
	config    Config
	queue     messaging.Queue[TokenRef]
	registry  *execution.Registry
	policy    *policy.Policy
	logger    *zap.Logger
	backoff   backoff.Strategy
	listeners []execution.Listener

	locks     *lockTable
	suspended *suspendedSet

	mu       sync.Mutex
	ctx      context.Context
	cancelFn context.CancelFunc
	group    *errgroup.Group
	running  atomic.Bool
	pending  sync.WaitGroup
}

// New creates a navigator
func New(options ...Option) (*Service, error) {
	s := &Service{
		config:    DefaultConfig(),
		locks:     newLockTable(),
		suspended: newSuspendedSet(),
		ctx:       context.Background(),
	}
	for _, opt := range options {
		opt(s)
	}
	if err := s.config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid navigator config: %w", err)
	}
	if s.policy == nil {
		s.policy = policy.Default()
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.backoff == nil {
		s.backoff = s.config.Backoff()
	}
	if s.queue == nil {
		queueConfig := memory.DefaultConfig()
		queueConfig.QueueBuffer = s.config.QueueBuffer
		queueConfig.Backoff = s.backoff
		s.queue = memory.NewQueue[TokenRef](queueConfig)
	}
	s.registry = execution.NewRegistry(s)
	return s, nil
}

// Registry returns the token and instance arena
func (s *Service) Registry() *execution.Registry { return s.registry }

// Policy returns the navigator policy
func (s *Service) Policy() *policy.Policy { return s.policy }

// Start spawns the worker pool
func (s *Service) Start(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return fmt.Errorf("navigator already started")
	}
	s.mu.Lock()
	s.ctx, s.cancelFn = context.WithCancel(policy.WithPolicy(ctx, s.policy))
	group, groupCtx := errgroup.WithContext(s.ctx)
	s.group = group
	s.mu.Unlock()
	for i := 0; i < s.config.WorkerCount; i++ {
		id := i
		group.Go(func() error {
			s.work(groupCtx, id)
			return nil
		})
	}
	s.logger.Info("navigator started", zap.Int("workers", s.config.WorkerCount))
	return nil
}

// Shutdown stops workers and waits for running steps to finish
func (s *Service) Shutdown(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	s.mu.Lock()
	cancel, group := s.cancelFn, s.group
	s.mu.Unlock()
	cancel()
	done := make(chan error, 1)
	go func() {
		err := group.Wait()
		s.pending.Wait()
		done <- err
	}()
	select {
	case err := <-done:
		s.logger.Info("navigator stopped")
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) work(ctx context.Context, id int) {
	logger := s.logger.With(zap.Int("worker", id))
	for {
		msg, err := s.queue.Consume(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn("failed to consume work", zap.Error(err))
			if linger.Sleep(ctx, s.backoff(err, 0)) != nil {
				return
			}
			continue
		}
		if msg == nil {
			continue
		}
		s.process(ctx, msg, logger)
	}
}

// process steps the referenced token; a token locked by another worker is
// nacked so the queue redelivers it after the requeue backoff.
func (s *Service) process(ctx context.Context, msg messaging.Message[TokenRef], logger *zap.Logger) {
	ref := msg.T()
	token, ok := s.registry.Token(ref.TokenID)
	if !ok {
		_ = msg.Ack()
		logger.Debug("dropping released token", zap.String("token", ref.TokenID))
		return
	}
	lock := s.locks.get(token.ID())
	if !lock.TryLock() {
		err := &execution.SchedulingError{TokenID: token.ID(), Err: errors.New("token locked")}
		logger.Debug("token busy, requeueing", zap.String("token", token.ID()), zap.Uint("attempt", ref.Attempt))
		ref.Attempt++
		if nErr := msg.Nack(err); nErr != nil {
			logger.Error("failed to requeue token", zap.String("token", token.ID()), zap.Error(nErr))
		}
		return
	}
	_ = msg.Ack()
	defer s.ReleaseLock(token)
	s.step(ctx, token, logger)
}

func (s *Service) step(ctx context.Context, token *execution.Token, logger *zap.Logger) {
	node := token.Node()
	_, span := tracing.StartSpan(ctx, "token.step "+node.ID, "INTERNAL")
	span.WithAttributes(map[string]string{
		"token":    token.ID(),
		"instance": token.InstanceID(),
		"node":     node.ID,
	})
	err := s.execute(token)
	tracing.EndSpan(span, err)
	if err == nil {
		return
	}
	failInstance := !s.policy.IsolatesErrors()
	logger.Error("token step failed",
		zap.String("token", token.ID()),
		zap.String("instance", token.InstanceID()),
		zap.String("node", node.ID),
		zap.Error(err))
	token.Fail(err, failInstance)
	if failInstance {
		if cErr := s.registry.Cancel(token.InstanceID()); cErr != nil {
			logger.Warn("failed to cancel instance", zap.String("instance", token.InstanceID()), zap.Error(cErr))
		}
	}
}

func (s *Service) execute(token *execution.Token) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &execution.ActivityExecutionError{
				TokenID: token.ID(),
				NodeID:  token.Node().ID,
				Panic:   true,
				Err:     fmt.Errorf("%v", r),
			}
		}
	}()
	return token.ExecuteStep()
}

func (s *Service) publish(ref TokenRef) {
	if offerer, ok := s.queue.(messaging.Offerer[TokenRef]); ok && offerer.Offer(&ref) {
		return
	}
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		s.mu.Lock()
		ctx := s.ctx
		s.mu.Unlock()
		if err := s.queue.Publish(ctx, &ref); err != nil {
			s.logger.Error("failed to publish token", zap.String("token", ref.TokenID),
				zap.Error(&execution.SchedulingError{TokenID: ref.TokenID, Err: err}))
		}
	}()
}

// AddWorkToken enqueues a READY token
func (s *Service) AddWorkToken(token *execution.Token) error {
	if state := token.State(); state != graph.StateReady {
		return &execution.IllegalStateError{TokenID: token.ID(), Op: "addWorkToken", State: state}
	}
	s.publish(TokenRef{TokenID: token.ID()})
	return nil
}

// AddSuspendToken records a WAITING token
func (s *Service) AddSuspendToken(token *execution.Token) {
	s.suspended.add(token.ID(), token.InstanceID())
}

// RemoveSuspendToken forgets a suspended token
func (s *Service) RemoveSuspendToken(token *execution.Token) {
	s.suspended.remove(token.ID())
}

// TokenReleased drops bookkeeping of a token that left the arena
func (s *Service) TokenReleased(token *execution.Token) {
	s.suspended.remove(token.ID())
	s.locks.forget(token.ID())
}

// Suspended returns ids of suspended tokens, sorted
func (s *Service) Suspended() []string {
	return s.suspended.ids()
}

// ReleaseLock releases the execution lock of a token; the lock entry is
// dropped once the token left the arena.
func (s *Service) ReleaseLock(token *execution.Token) {
	s.locks.release(token.ID(), token.Released())
}

// StartArbitraryInstance schedules the initial token of an instance
func (s *Service) StartArbitraryInstance(token *execution.Token) error {
	if !token.MarkReady() {
		return &execution.IllegalStateError{TokenID: token.ID(), Op: "start", State: token.State()}
	}
	return s.AddWorkToken(token)
}

// Instantiate creates an instance of definition and schedules its first
// token on startNodeID, or on the first start node when empty.
func (s *Service) Instantiate(definition *graph.Definition, startNodeID string, vars map[string]interface{}) (*execution.Instance, error) {
	instance, token, err := s.registry.NewInstance(definition, startNodeID, vars)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("instance started", zap.String("instance", instance.ID), zap.String("definition", definition.ID))
	if err = s.StartArbitraryInstance(token); err != nil {
		return nil, err
	}
	return instance, nil
}

// Resume resumes a suspended token by id
func (s *Service) Resume(tokenID string, payload interface{}) error {
	token, ok := s.registry.Token(tokenID)
	if !ok {
		return fmt.Errorf("%w: %v", execution.ErrTokenNotFound, tokenID)
	}
	return token.Resume(payload)
}

// CancelInstance cancels every token of an instance
func (s *Service) CancelInstance(instanceID string) error {
	return s.registry.Cancel(instanceID)
}

// Wait blocks until the instance ended
func (s *Service) Wait(ctx context.Context, instanceID string) (*execution.Instance, error) {
	instance, ok := s.registry.Instance(instanceID)
	if !ok {
		return nil, fmt.Errorf("%w: %v", execution.ErrInstanceNotFound, instanceID)
	}
	select {
	case <-instance.Done():
		return instance, nil
	case <-ctx.Done():
		return instance, ctx.Err()
	}
}

// AddListener registers lifecycle listeners
func (s *Service) AddListener(listeners ...execution.Listener) {
	s.mu.Lock()
	s.listeners = append(s.listeners, listeners...)
	s.mu.Unlock()
}

// Notify implements execution.Scheduler
func (s *Service) Notify(token *execution.Token, from, to graph.ActivityState) {
	s.mu.Lock()
	listeners := s.listeners
	s.mu.Unlock()
	for _, listener := range listeners {
		listener.OnStateChange(token, from, to)
	}
}

// RejectsResume implements execution.Scheduler
func (s *Service) RejectsResume() bool {
	return s.policy.RejectsResume()
}

type lockTable struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newLockTable() *lockTable {
	return &lockTable{locks: map[string]*sync.Mutex{}}
}

func (t *lockTable) get(id string) *sync.Mutex {
	t.mu.Lock()
	defer t.mu.Unlock()
	lock, ok := t.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		t.locks[id] = lock
	}
	return lock
}

func (t *lockTable) release(id string, drop bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	lock, ok := t.locks[id]
	if !ok {
		return
	}
	lock.Unlock()
	if drop {
		delete(t.locks, id)
	}
}

// forget drops an idle lock; a held lock is dropped by its holder.
func (t *lockTable) forget(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	lock, ok := t.locks[id]
	if !ok || !lock.TryLock() {
		return
	}
	delete(t.locks, id)
	lock.Unlock()
}

func (t *lockTable) size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.locks)
}

type suspendedSet struct {
	mu     sync.Mutex
	tokens map[string]string
}

func newSuspendedSet() *suspendedSet {
	return &suspendedSet{tokens: map[string]string{}}
}

func (s *suspendedSet) add(tokenID, instanceID string) {
	s.mu.Lock()
	s.tokens[tokenID] = instanceID
	s.mu.Unlock()
}

func (s *suspendedSet) remove(tokenID string) {
	s.mu.Lock()
	delete(s.tokens, tokenID)
	s.mu.Unlock()
}

func (s *suspendedSet) ids() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make([]string, 0, len(s.tokens))
	for id := range s.tokens {
		result = append(result, id)
	}
	sort.Strings(result)
	return result
}

var _ execution.Scheduler = (*Service)(nil)
