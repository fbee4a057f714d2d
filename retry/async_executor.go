package retry

import "sync"

// asyncExecutor orchestrates trial, policy evaluation, and schedule-next for one RetryFuture. Trials are strictly
// sequential: trial N+1 is only scheduled after trial N's outcome has been recorded.
//
// In automatic mode the trial's own return value drives the decision. In contextual mode the op is expected to call
// Invocation.Retry or Invocation.Complete, possibly from a callback on another goroutine, and its own return is
// only consulted when it is a failure. Either way, recordResult is the single decision point per trial: the first
// invocation for a trial epoch wins and any later one, including a late signal from a superseded trial, is
// discarded.
type asyncExecutor[R any] struct {
	policy     *retryPolicy[R]
	scheduler  Scheduler
	future     *RetryFuture[R]
	inv        *Invocation[R]
	op         func(*Invocation[R]) (R, error)
	contextual bool

	mu           sync.Mutex
	decidedEpoch uint64
}

// start schedules the first trial immediately.
func (e *asyncExecutor[R]) start() {
	e.future.bind(e.inv)
	e.inv.onSignal = func(epoch uint64) {
		var zero R
		e.recordResult(epoch, zero, nil)
	}
	e.future.scheduleNext(func() func() {
		return e.scheduler.Schedule(0, e.runTrial)
	})
}

// runTrial executes one trial of the op on a Scheduler goroutine.
func (e *asyncExecutor[R]) runTrial() {
	if e.future.IsDone() {
		return
	}
	epoch := e.inv.beginAttempt()
	result, err := e.op(e.inv)
	if e.contextual {
		// The decision arrives via Retry or Complete; a failure returned directly is recorded, a normal
		// return is not.
		if err != nil {
			e.recordResult(epoch, result, err)
		}
		return
	}
	e.recordResult(epoch, result, err)
}

// recordResult commits the decision for the trial identified by epoch: reschedule, or complete the future. It may
// be invoked concurrently by the trial goroutine and by a contextual signal; only the first invocation per epoch
// has any effect, and a latched signal takes precedence over the automatic outcome either way.
func (e *asyncExecutor[R]) recordResult(epoch uint64, result R, failure error) {
	e.mu.Lock()
	if epoch <= e.decidedEpoch || e.future.IsDone() {
		e.mu.Unlock()
		return
	}
	signaled, isComplete, sigResult, sigFailure := e.inv.signal(epoch)
	e.decidedEpoch = epoch
	e.mu.Unlock()

	if signaled {
		if isComplete {
			// The user completed explicitly; their failure is surfaced unwrapped.
			e.future.complete(sigResult, sigFailure, sigFailure, sigFailure == nil)
			return
		}
		var zero R
		e.decide(zero, sigFailure, true)
		return
	}
	e.decide(result, failure, false)
}

// decide applies the policy to the trial outcome and either schedules the next trial or completes the future.
// forcedRetry bypasses the policy's retry conditions, but not its attempt and duration budgets.
func (e *asyncExecutor[R]) decide(result R, failure error, forcedRetry bool) {
	c := e.policy.config
	retryEligible := forcedRetry || e.policy.AllowsRetriesFor(result, failure)
	if retryEligible && !e.inv.isPolicyExceeded() {
		e.reschedule(result, failure)
		return
	}
	stats := e.inv.Stats()
	if failure != nil || retryEligible {
		c.fireFailedAttempt(stats, result, failure)
	}
	success := failure == nil && !retryEligible
	var getErr error
	if failure != nil {
		getErr = ExceededError[R]{LastResult: result, LastError: failure}
	}
	e.future.complete(result, failure, getErr, success)
}

// reschedule fires the attempt listeners, adjusts the wait time, and schedules the next trial. If the future was
// canceled in the meantime, the trial is abandoned; Cancel has already completed the future.
func (e *asyncExecutor[R]) reschedule(result R, failure error) {
	c := e.policy.config
	stats := e.inv.Stats()
	c.fireFailedAttempt(stats, result, failure)
	delay := e.inv.adjustWaitTime(c)
	stats = e.inv.Stats()
	c.fireRetry(stats, result, failure)
	c.fireRetryScheduled(stats, result, failure, delay)
	e.future.scheduleNext(func() func() {
		return e.scheduler.Schedule(delay, e.runTrial)
	})
}
