package retry

import (
	"context"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// pooledScheduler runs each task on its own goroutine once its delay elapses, bounded by a weighted semaphore so at
// most maxConcurrentTasks tasks execute at once. Tasks whose turn arrives while the pool is saturated wait for a
// slot rather than being dropped.
type pooledScheduler struct {
	sem *semaphore.Weighted
}

// NewPooledScheduler returns the default Scheduler implementation, which runs at most maxConcurrentTasks tasks
// concurrently. If maxConcurrentTasks is <= 0, the number of CPUs is used.
func NewPooledScheduler(maxConcurrentTasks int) Scheduler {
	if maxConcurrentTasks <= 0 {
		maxConcurrentTasks = runtime.NumCPU()
	}
	return &pooledScheduler{sem: semaphore.NewWeighted(int64(maxConcurrentTasks))}
}

func (s *pooledScheduler) Schedule(delay time.Duration, task Task) func() {
	timer := time.AfterFunc(delay, func() {
		if err := s.sem.Acquire(context.Background(), 1); err != nil {
			return
		}
		defer s.sem.Release(1)
		task()
	})
	return func() {
		timer.Stop()
	}
}

var (
	defaultSchedulerOnce sync.Once
	defaultScheduler     Scheduler
)

// DefaultScheduler returns the shared Scheduler used when an async entry point is given a nil Scheduler.
func DefaultScheduler() Scheduler {
	defaultSchedulerOnce.Do(func() {
		defaultScheduler = NewPooledScheduler(0)
	})
	return defaultScheduler
}
