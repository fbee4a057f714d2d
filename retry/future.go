package retry

import (
	"sync"
	"time"
)

// completionListener is a future-local terminal subscriber. Async entries are dispatched through the future's
// Scheduler instead of firing on the resolving goroutine.
type completionListener[R any] struct {
	fn    func(CompletedEvent[R])
	async bool
}

// RetryFuture is the handle returned by asynchronous executions. It is created pending, may be canceled at any time
// before completion, and transitions to done exactly once: whichever of a completion or a cancellation acquires the
// future's mutex first wins, and the loser is discarded.
//
// This type is concurrency safe.
type RetryFuture[R any] struct {
	config    *retryPolicyConfig[R]
	scheduler Scheduler

	mu       sync.Mutex
	done     bool
	canceled bool
	success  bool
	result   R
	getErr   error
	eventErr error
	// cancelPending cancels the Scheduler handle for the currently pending trial, replaced on each reschedule.
	cancelPending func()
	statsFn       func() InvocationStats
	doneCh        chan struct{}

	successListeners  []completionListener[R]
	failureListeners  []completionListener[R]
	completeListeners []completionListener[R]
}

func newRetryFuture[R any](config *retryPolicyConfig[R], scheduler Scheduler) *RetryFuture[R] {
	return &RetryFuture[R]{
		config:    config,
		scheduler: scheduler,
		doneCh:    make(chan struct{}),
	}
}

// Get blocks until the future completes, then returns its result and error. At terminal failure the error wraps the
// last trial's failure in an ExceededError, except that a failure passed to Invocation.Complete is returned as-is;
// at cancellation it is a CanceledError.
func (f *RetryFuture[R]) Get() (R, error) {
	<-f.doneCh
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.result, f.getErr
}

// GetWithTimeout is like Get but waits at most timeout, returning ErrGetTimeout if the future has not completed in
// time. A timed out Get does not affect the future.
func (f *RetryFuture[R]) GetWithTimeout(timeout time.Duration) (R, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-f.doneCh:
		return f.Get()
	case <-timer.C:
		var zero R
		return zero, ErrGetTimeout
	}
}

// IsDone returns whether the future has reached terminal completion, including by cancellation.
func (f *RetryFuture[R]) IsDone() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.done
}

// IsCanceled returns whether the future was canceled before it completed.
func (f *RetryFuture[R]) IsCanceled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.canceled
}

// Cancel cancels the pending scheduled trial, if any, and completes the future with a CanceledError, firing failure
// and complete listeners. A trial already in its user code runs to completion but its outcome is discarded. Returns
// false if the future had already completed.
func (f *RetryFuture[R]) Cancel() bool {
	var zero R
	cerr := CanceledError{}
	return f.finish(zero, cerr, cerr, false, true)
}

// OnSuccess registers listener to be called once if the future completes with an acceptable outcome. If the future
// already completed, listener fires immediately with the stored outcome.
func (f *RetryFuture[R]) OnSuccess(listener func(CompletedEvent[R])) *RetryFuture[R] {
	return f.register(&f.successListeners, listener, false, func() bool { return f.success })
}

// OnSuccessAsync is like OnSuccess, but listener is dispatched through the future's Scheduler instead of firing on
// the goroutine that resolved the outcome.
func (f *RetryFuture[R]) OnSuccessAsync(listener func(CompletedEvent[R])) *RetryFuture[R] {
	return f.register(&f.successListeners, listener, true, func() bool { return f.success })
}

// OnFailure registers listener to be called once if the future completes with a failure, including cancellation. If
// the future already completed, listener fires immediately with the stored outcome.
func (f *RetryFuture[R]) OnFailure(listener func(CompletedEvent[R])) *RetryFuture[R] {
	return f.register(&f.failureListeners, listener, false, func() bool { return !f.success && f.eventErr != nil })
}

// OnFailureAsync is like OnFailure, but listener is dispatched through the future's Scheduler.
func (f *RetryFuture[R]) OnFailureAsync(listener func(CompletedEvent[R])) *RetryFuture[R] {
	return f.register(&f.failureListeners, listener, true, func() bool { return !f.success && f.eventErr != nil })
}

// OnComplete registers listener to be called once when the future completes, after any success or failure
// listeners. If the future already completed, listener fires immediately with the stored outcome.
func (f *RetryFuture[R]) OnComplete(listener func(CompletedEvent[R])) *RetryFuture[R] {
	return f.register(&f.completeListeners, listener, false, func() bool { return true })
}

// OnCompleteAsync is like OnComplete, but listener is dispatched through the future's Scheduler.
func (f *RetryFuture[R]) OnCompleteAsync(listener func(CompletedEvent[R])) *RetryFuture[R] {
	return f.register(&f.completeListeners, listener, true, func() bool { return true })
}

// register appends a listener to slot, or fires it immediately if the future already completed and applies reports
// that the stored outcome is one the slot subscribes to. applies is evaluated under the future's mutex.
func (f *RetryFuture[R]) register(slot *[]completionListener[R], listener func(CompletedEvent[R]), async bool, applies func() bool) *RetryFuture[R] {
	f.mu.Lock()
	if !f.done {
		*slot = append(*slot, completionListener[R]{fn: listener, async: async})
		f.mu.Unlock()
		return f
	}
	fire := applies()
	event := f.eventLocked()
	f.mu.Unlock()
	if fire {
		f.dispatch(completionListener[R]{fn: listener, async: async}, event)
	}
	return f
}

// bind attaches the Invocation whose stats terminal events report. Called by the executor before the first trial.
func (f *RetryFuture[R]) bind(inv *Invocation[R]) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statsFn = inv.Stats
}

// scheduleNext installs the Scheduler handle for the next pending trial, unless the future has already completed.
// The schedule callback runs outside the future's mutex, since a Scheduler may run the task inline; a Cancel racing
// with the schedule is resolved by cancelling the fresh handle, and a trial that slips through observes the done
// future and discards itself.
func (f *RetryFuture[R]) scheduleNext(schedule func() (cancel func())) bool {
	f.mu.Lock()
	if f.done {
		f.mu.Unlock()
		return false
	}
	f.mu.Unlock()
	cancel := schedule()
	f.mu.Lock()
	if f.done {
		f.mu.Unlock()
		cancel()
		return false
	}
	f.cancelPending = cancel
	f.mu.Unlock()
	return true
}

// complete transitions the future to done with the given outcome. eventErr is the failure listeners observe;
// getErr is what Get returns. Returns false if the future had already completed.
func (f *RetryFuture[R]) complete(result R, eventErr error, getErr error, success bool) bool {
	return f.finish(result, eventErr, getErr, success, false)
}

func (f *RetryFuture[R]) finish(result R, eventErr error, getErr error, success bool, canceled bool) bool {
	f.mu.Lock()
	if f.done {
		f.mu.Unlock()
		return false
	}
	f.done = true
	f.canceled = canceled
	f.success = success
	f.result = result
	f.getErr = getErr
	f.eventErr = eventErr
	cancelPending := f.cancelPending
	f.cancelPending = nil
	event := f.eventLocked()
	successListeners := f.successListeners
	failureListeners := f.failureListeners
	completeListeners := f.completeListeners
	close(f.doneCh)
	f.mu.Unlock()

	if cancelPending != nil {
		cancelPending()
	}
	f.config.fireResult(event.InvocationStats, result, eventErr, success)
	if success {
		for _, l := range successListeners {
			f.dispatch(l, event)
		}
	} else if eventErr != nil {
		for _, l := range failureListeners {
			f.dispatch(l, event)
		}
	}
	f.config.fireComplete(event.InvocationStats, result, eventErr)
	for _, l := range completeListeners {
		f.dispatch(l, event)
	}
	return true
}

func (f *RetryFuture[R]) eventLocked() CompletedEvent[R] {
	var stats InvocationStats
	if f.statsFn != nil {
		stats = f.statsFn()
	}
	return CompletedEvent[R]{InvocationStats: stats, Result: f.result, Error: f.eventErr}
}

func (f *RetryFuture[R]) dispatch(l completionListener[R], event CompletedEvent[R]) {
	if !l.async {
		l.fn(event)
		return
	}
	f.scheduler.Schedule(0, func() {
		l.fn(event)
	})
}
