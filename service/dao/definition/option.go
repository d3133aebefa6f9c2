package definition

import (
	"github.com/viant/tokenflow/runtime/activity"
	"github.com/viant/tokenflow/service/meta"
	"github.com/viant/tokenflow/service/worklist"
)

// Option configures the loader
type Option func(s *Service)

// WithWorklist sets the worklist used by human activities
func WithWorklist(w worklist.Service) Option {
	return func(s *Service) {
		s.worklist = w
	}
}

// WithTriggers sets the adapter registry used by event activities
func WithTriggers(t activity.Subscriber) Option {
	return func(s *Service) {
		s.triggers = t
	}
}

// WithTimers sets the timer manager used by timer activities
func WithTimers(t activity.Timers) Option {
	return func(s *Service) {
		s.timers = t
	}
}

// WithActivity registers a custom activity type
func WithActivity(kind string, factory Factory) Option {
	return func(s *Service) {
		s.custom[kind] = factory
	}
}

// WithMetaService sets the resource loader
func WithMetaService(m *meta.Service) Option {
	return func(s *Service) {
		s.meta = m
	}
}
