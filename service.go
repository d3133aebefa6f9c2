package tokenflow

import (
	"context"
	"io"

	"github.com/viant/tokenflow/model/graph"
	"github.com/viant/tokenflow/policy"
	"github.com/viant/tokenflow/runtime/execution"
	"github.com/viant/tokenflow/runtime/navigator"
	"github.com/viant/tokenflow/service/dao/definition"
	"github.com/viant/tokenflow/service/dao/history"
	"github.com/viant/tokenflow/service/dao/history/bolt"
	hfs "github.com/viant/tokenflow/service/dao/history/fs"
	hmemory "github.com/viant/tokenflow/service/dao/history/memory"
	"github.com/viant/tokenflow/service/debugger"
	"github.com/viant/tokenflow/service/messaging"
	"github.com/viant/tokenflow/service/meta"
	"github.com/viant/tokenflow/service/timer"
	"github.com/viant/tokenflow/service/trigger"
	"github.com/viant/tokenflow/service/worklist"
	wmemory "github.com/viant/tokenflow/service/worklist/memory"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Service wires the engine services together
type Service struct {
	runtime     *Runtime
	config      *Config
	logger      *zap.Logger
	listeners   []execution.Listener
	history     history.Store
	metaService *meta.Service
	activities  []definition.Option
	closers     []io.Closer

	worklistEvents messaging.Queue[worklist.Event]
}

func (s *Service) init(options []Option) error {
	for _, option := range options {
		option(s)
	}
	if err := s.ensureBaseSetup(); err != nil {
		return err
	}
	r := s.runtime
	r.logger = s.logger
	r.history = s.history
	r.forgetArchived = s.config.History.ForgetArchived
	r.debugger = debugger.New(s.logger.Named("debugger"))
	listeners := append([]execution.Listener{r.debugger}, s.listeners...)

	var err error
	r.navigator, err = navigator.New(
		navigator.WithConfig(s.config.Navigator),
		navigator.WithPolicy(policy.FromConfig(&s.config.Policy)),
		navigator.WithLogger(s.logger.Named("navigator")),
		navigator.WithListener(listeners...),
	)
	if err != nil {
		return err
	}
	r.navigator.Registry().OnEnd(r.archive)

	worklistOptions := []wmemory.Option{wmemory.WithLogger(s.logger.Named("worklist"))}
	if s.worklistEvents != nil {
		worklistOptions = append(worklistOptions, wmemory.WithEventQueue(s.worklistEvents))
	}
	r.worklist = wmemory.New(r.navigator, worklistOptions...)
	r.triggers = trigger.New(r.navigator, s.logger.Named("trigger"))
	r.timers = timer.New(r.navigator, s.logger.Named("timer"))
	loaderOptions := append([]definition.Option{
		definition.WithMetaService(s.metaService),
		definition.WithWorklist(r.worklist),
		definition.WithTriggers(r.triggers),
		definition.WithTimers(r.timers),
	}, s.activities...)
	r.definitions = definition.New(loaderOptions...)
	return nil
}

func (s *Service) ensureBaseSetup() error {
	if s.config == nil {
		s.config = DefaultConfig()
	}
	s.config.applyDefaults()
	if err := s.config.Validate(); err != nil {
		return err
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.metaService == nil {
		s.metaService = meta.New(nil)
	}
	if s.history != nil {
		return nil
	}
	switch {
	case s.config.History.Path != "":
		store, err := bolt.Open(s.config.History.Path)
		if err != nil {
			return err
		}
		s.history = store
		s.closers = append(s.closers, store)
	case s.config.History.URL != "":
		store, err := hfs.New(s.config.History.URL)
		if err != nil {
			return err
		}
		s.history = store
	default:
		s.history = hmemory.New()
	}
	return nil
}

// Runtime returns the engine runtime
func (s *Service) Runtime() *Runtime {
	return s.runtime
}

// Close stops the runtime and releases history resources
func (s *Service) Close(ctx context.Context) error {
	err := s.runtime.Shutdown(ctx)
	for _, closer := range s.closers {
		err = multierr.Append(err, closer.Close())
	}
	return err
}

// New creates an engine service
func New(options ...Option) (*Service, error) {
	ret := &Service{runtime: &Runtime{definitionsByID: map[string]*graph.Definition{}}}
	if err := ret.init(options); err != nil {
		return nil, err
	}
	return ret, nil
}
