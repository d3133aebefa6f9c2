package navigator

import (
	"fmt"
	"time"

	"github.com/dogmatiq/linger"
	"github.com/dogmatiq/linger/backoff"
	"go.uber.org/multierr"
)

// Config represents navigator configuration
type Config struct {
	// WorkerCount is the number of workers executing token steps
	WorkerCount int `json:"workers,omitempty" yaml:"workers,omitempty"`

	// QueueBuffer is the capacity of the work queue
	QueueBuffer int `json:"queueBuffer,omitempty" yaml:"queueBuffer,omitempty"`

	// RequeueMin is the initial delay before a locked token is offered again
	RequeueMin time.Duration `json:"requeueMin,omitempty" yaml:"requeueMin,omitempty"`

	// RequeueMax caps the requeue delay
	RequeueMax time.Duration `json:"requeueMax,omitempty" yaml:"requeueMax,omitempty"`
}

// DefaultConfig returns the default navigator configuration
func DefaultConfig() Config {
	return Config{
		WorkerCount: 4,
		QueueBuffer: 1024,
		RequeueMin:  time.Millisecond,
		RequeueMax:  100 * time.Millisecond,
	}
}

// Validate checks configuration
func (c *Config) Validate() error {
	var err error
	if c.WorkerCount <= 0 {
		err = multierr.Append(err, fmt.Errorf("workers must be positive, got %d", c.WorkerCount))
	}
	if c.QueueBuffer <= 0 {
		err = multierr.Append(err, fmt.Errorf("queueBuffer must be positive, got %d", c.QueueBuffer))
	}
	if c.RequeueMin <= 0 || c.RequeueMax < c.RequeueMin {
		err = multierr.Append(err, fmt.Errorf("invalid requeue window [%v, %v]", c.RequeueMin, c.RequeueMax))
	}
	return err
}

// Backoff returns the requeue strategy of the config.
func (c *Config) Backoff() backoff.Strategy {
	return backoff.WithTransforms(
		backoff.Exponential(c.RequeueMin),
		linger.FullJitter,
		linger.Limiter(c.RequeueMin, c.RequeueMax),
	)
}
