package retry

import (
	"sync"
	"time"
)

// InstantScheduler runs each task synchronously on the scheduling goroutine, ignoring delays but recording them, so
// an entire async execution unwinds deterministically on one goroutine.
type InstantScheduler struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *InstantScheduler) Schedule(delay time.Duration, task Task) func() {
	s.mu.Lock()
	s.delays = append(s.delays, delay)
	s.mu.Unlock()
	task()
	return func() {}
}

// Delays returns the delays requested so far, in scheduling order.
func (s *InstantScheduler) Delays() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.delays...)
}

type manualTask struct {
	task     Task
	delay    time.Duration
	canceled bool
}

// ManualScheduler queues tasks until the test fires them, so the window between scheduling a retry and its
// execution can be held open, e.g. to cancel a future mid-wait.
type ManualScheduler struct {
	mu      sync.Mutex
	pending []*manualTask
	delays  []time.Duration
}

func (s *ManualScheduler) Schedule(delay time.Duration, task Task) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry := &manualTask{task: task, delay: delay}
	s.pending = append(s.pending, entry)
	s.delays = append(s.delays, delay)
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		entry.canceled = true
	}
}

// FireNext runs the oldest pending task that has not been canceled, returning false when none remains.
func (s *ManualScheduler) FireNext() bool {
	for {
		s.mu.Lock()
		if len(s.pending) == 0 {
			s.mu.Unlock()
			return false
		}
		entry := s.pending[0]
		s.pending = s.pending[1:]
		s.mu.Unlock()
		if entry.canceled {
			continue
		}
		entry.task()
		return true
	}
}

// FireAll fires pending tasks, including those scheduled while firing, until none remains. Returns the number of
// tasks run.
func (s *ManualScheduler) FireAll() int {
	fired := 0
	for s.FireNext() {
		fired++
	}
	return fired
}

// PendingCount returns the number of queued tasks that have not been canceled.
func (s *ManualScheduler) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, entry := range s.pending {
		if !entry.canceled {
			count++
		}
	}
	return count
}

// Delays returns the delays requested so far, in scheduling order.
func (s *ManualScheduler) Delays() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.delays...)
}
