package memory

import (
	"github.com/viant/tokenflow/service/messaging"
	"github.com/viant/tokenflow/service/worklist"
	"go.uber.org/zap"
)

// Option customises the memory worklist.
type Option func(s *service)

// WithEventQueue publishes item events to queue; the caller must drain it.
// Without a queue no events are published.
func WithEventQueue(queue messaging.Queue[worklist.Event]) Option {
	return func(s *service) { s.events = queue }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *service) { s.logger = logger }
}
