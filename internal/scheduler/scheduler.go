// Package scheduler runs deferred tasks keyed by id. A pending task can be
// cancelled by id, and a cancelled task never runs.
package scheduler

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

type task struct {
	timer *time.Timer
	seq   uint64
}

// Scheduler holds at most one pending task per id.
type Scheduler struct {
	mu    sync.Mutex
	tasks map[int64]*task
	seq   uint64
	log   *zap.Logger
}

// New returns an empty Scheduler. A nil logger is replaced with a no-op one.
func New(log *zap.Logger) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{tasks: make(map[int64]*task), log: log}
}

// Schedule runs fn after delay on its own goroutine.
// Scheduling an id that already has a pending task replaces it.
func (s *Scheduler) Schedule(id int64, delay time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.tasks[id]; ok {
		prev.timer.Stop()
	}
	s.seq++
	seq := s.seq
	t := &task{seq: seq}
	t.timer = time.AfterFunc(delay, func() {
		s.mu.Lock()
		cur, ok := s.tasks[id]
		if !ok || cur.seq != seq {
			s.mu.Unlock()
			return
		}
		delete(s.tasks, id)
		s.mu.Unlock()

		defer func() {
			if r := recover(); r != nil {
				s.log.Error("scheduled task panicked", zap.Int64("id", id), zap.Any("panic", r))
			}
		}()
		fn()
	})
	s.tasks[id] = t
	s.log.Debug("task scheduled", zap.Int64("id", id), zap.Duration("delay", delay))
}

// Cancel drops the pending task for id. It reports whether one was pending.
func (s *Scheduler) Cancel(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return false
	}
	t.timer.Stop()
	delete(s.tasks, id)
	s.log.Debug("task cancelled", zap.Int64("id", id))
	return true
}

// CancelAll drops every pending task.
func (s *Scheduler) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, t := range s.tasks {
		t.timer.Stop()
		delete(s.tasks, id)
	}
}

// Pending returns the number of tasks that have not yet run.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}
