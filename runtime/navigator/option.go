package navigator

import (
	"github.com/dogmatiq/linger/backoff"
	"github.com/viant/tokenflow/policy"
	"github.com/viant/tokenflow/runtime/execution"
	"github.com/viant/tokenflow/service/messaging"
	"go.uber.org/zap"
)

// Option represents navigator option
type Option func(s *Service)

// WithConfig sets the navigator configuration
func WithConfig(config Config) Option {
	return func(s *Service) {
		s.config = config
	}
}

// WithPolicy sets failure and resume policy
func WithPolicy(p *policy.Policy) Option {
	return func(s *Service) {
		s.policy = p
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithListener registers token lifecycle listeners
func WithListener(listeners ...execution.Listener) Option {
	return func(s *Service) {
		s.listeners = append(s.listeners, listeners...)
	}
}

// WithQueue replaces the in-memory work queue
func WithQueue(queue messaging.Queue[TokenRef]) Option {
	return func(s *Service) {
		s.queue = queue
	}
}

// WithBackoff replaces the requeue backoff strategy
func WithBackoff(strategy backoff.Strategy) Option {
	return func(s *Service) {
		s.backoff = strategy
	}
}
