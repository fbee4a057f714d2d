package retry

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPooledSchedulerRunsTask(t *testing.T) {
	s := NewPooledScheduler(2)
	done := make(chan struct{})

	s.Schedule(time.Millisecond, func() {
		close(done)
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task did not run")
	}
}

func TestPooledSchedulerCancelPreventsRun(t *testing.T) {
	s := NewPooledScheduler(2)
	var ran atomic.Bool

	cancel := s.Schedule(50*time.Millisecond, func() {
		ran.Store(true)
	})
	cancel()

	time.Sleep(100 * time.Millisecond)
	assert.False(t, ran.Load())
}

func TestPooledSchedulerConcurrentTasks(t *testing.T) {
	s := NewPooledScheduler(4)
	var ran atomic.Int32
	done := make(chan struct{})

	for i := 0; i < 10; i++ {
		s.Schedule(time.Millisecond, func() {
			if ran.Add(1) == 10 {
				close(done)
			}
		})
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("only %d of 10 tasks ran", ran.Load())
	}
}

func TestDefaultSchedulerShared(t *testing.T) {
	assert.Same(t, DefaultScheduler(), DefaultScheduler())
}
