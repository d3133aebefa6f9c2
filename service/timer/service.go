// Package timer manages non recurring timer jobs that resume suspended
// tokens when they fire.
package timer

import (
	"sync"
	"time"

	"github.com/viant/tokenflow/internal/clock"
	"github.com/viant/tokenflow/internal/idgen"
	"go.uber.org/zap"
)

// Fired is the resume payload delivered by a timer job.
type Fired struct {
	JobID string
	At    time.Time
}

// Resumer resumes a suspended token with a payload.
type Resumer interface {
	Resume(tokenID string, payload interface{}) error
}

type job struct {
	id      string
	tokenID string
	timer   *time.Timer
}

// Service schedules timer jobs.
type Service struct {
	resumer Resumer
	logger  *zap.Logger

	mu     sync.Mutex
	jobs   map[string]*job
	closed bool
}

// New creates a timer service.
func New(resumer Resumer, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{resumer: resumer, logger: logger, jobs: map[string]*job{}}
}

// RegisterNonRecurring resumes tokenID once after delay and returns the job id.
func (s *Service) RegisterNonRecurring(delay time.Duration, tokenID string) string {
	j := &job{id: idgen.WithPrefix("job"), tokenID: tokenID}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		s.logger.Warn("timer service closed, job ignored", zap.String("token", tokenID))
		return j.id
	}
	s.jobs[j.id] = j
	j.timer = clock.AfterFunc(delay, func() { s.fire(j.id) })
	return j.id
}

func (s *Service) fire(id string) {
	s.mu.Lock()
	j, ok := s.jobs[id]
	if ok {
		delete(s.jobs, id)
	}
	s.mu.Unlock()
	if !ok {
		return
	}
	if err := s.resumer.Resume(j.tokenID, &Fired{JobID: id, At: clock.Now()}); err != nil {
		s.logger.Warn("timer failed to resume token", zap.String("job", id), zap.String("token", j.tokenID), zap.Error(err))
	}
}

// Unregister stops a job; it returns false when the job already fired or was
// removed.
func (s *Service) Unregister(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return false
	}
	delete(s.jobs, id)
	j.timer.Stop()
	return true
}

// Count returns the number of pending jobs.
func (s *Service) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// Shutdown stops every pending job.
func (s *Service) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for id, j := range s.jobs {
		j.timer.Stop()
		delete(s.jobs, id)
	}
}
