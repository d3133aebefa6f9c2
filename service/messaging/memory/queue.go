package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dogmatiq/linger/backoff"
	"github.com/viant/tokenflow/internal/clock"
	"github.com/viant/tokenflow/service/messaging"
)

// Config for memory queue implementation
type Config struct {
	RetryDelay  time.Duration `json:"retryDelay,omitempty" yaml:"retryDelay,omitempty"`
	QueueBuffer int           `json:"queueBuffer,omitempty" yaml:"queueBuffer,omitempty"`
	// Backoff computes the redelivery delay of a nacked message; RetryDelay
	// is used when nil.
	Backoff backoff.Strategy `json:"-" yaml:"-"`
}

// DefaultConfig returns a standard configuration for memory queue
func DefaultConfig() Config {
	return Config{
		RetryDelay:  100 * time.Millisecond,
		QueueBuffer: 1024,
	}
}

// Message is a payload travelling through the in-memory queue
type Message[T any] struct {
	payload    T
	queue      *Queue[T]
	retryCount int
	mu         sync.Mutex
	processed  bool
}

// T returns the message payload; changes made through the pointer travel
// with a nacked message.
func (m *Message[T]) T() *T {
	return &m.payload
}

// Retries returns how many times the payload was nacked before.
func (m *Message[T]) Retries() int { return m.retryCount }

// Ack acknowledges the message as processed successfully
func (m *Message[T]) Ack() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.processed {
		return fmt.Errorf("message already processed")
	}
	m.processed = true
	return nil
}

// Nack redelivers the payload after the retry delay.
func (m *Message[T]) Nack(err error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.processed {
		return fmt.Errorf("message already processed")
	}
	m.processed = true
	retry := &Message[T]{payload: m.payload, queue: m.queue, retryCount: m.retryCount + 1}
	clock.AfterFunc(m.queue.retryDelay(err, m.retryCount), func() {
		m.queue.messages <- retry
	})
	return nil
}

// Queue implements an in-memory messaging.Queue backed by a buffered channel
type Queue[T any] struct {
	messages chan *Message[T]
	config   Config
}

// NewQueue creates a new in-memory queue
func NewQueue[T any](config Config) *Queue[T] {
	if config.QueueBuffer <= 0 {
		config.QueueBuffer = DefaultConfig().QueueBuffer
	}
	return &Queue[T]{
		messages: make(chan *Message[T], config.QueueBuffer),
		config:   config,
	}
}

func (q *Queue[T]) retryDelay(err error, attempt int) time.Duration {
	if q.config.Backoff != nil {
		return q.config.Backoff(err, uint(attempt))
	}
	return q.config.RetryDelay
}

// Publish adds a new item to the queue, blocking while the buffer is full
func (q *Queue[T]) Publish(ctx context.Context, t *T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case q.messages <- &Message[T]{payload: *t, queue: q}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Offer adds an item when the buffer has room.
func (q *Queue[T]) Offer(t *T) bool {
	select {
	case q.messages <- &Message[T]{payload: *t, queue: q}:
		return true
	default:
		return false
	}
}

// Consume retrieves a single item from the queue
func (q *Queue[T]) Consume(ctx context.Context) (messaging.Message[T], error) {
	select {
	case msg := <-q.messages:
		return msg, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Size returns the current number of messages in the queue
func (q *Queue[T]) Size() int {
	return len(q.messages)
}

var (
	_ messaging.Queue[any]   = (*Queue[any])(nil)
	_ messaging.Offerer[any] = (*Queue[any])(nil)
)
