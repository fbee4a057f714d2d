package retry

import (
	"context"
	"time"
)

// syncExecutor drives the blocking call-sleep-call loop on the caller's goroutine.
type syncExecutor[R any] struct {
	policy *retryPolicy[R]
}

// execute performs trials of op until the policy no longer permits retries, the policy budget is exceeded, or a
// contextual signal completes the execution. The inter-attempt sleep is interruptible via ctx; interruption
// surfaces as a CanceledError.
func (e *syncExecutor[R]) execute(ctx context.Context, op func(*Invocation[R]) (R, error)) (R, error) {
	c := e.policy.config
	inv := newInvocation[R](c.clock, c.delay, c.maxDurationValue(), c.maxRetries)
	for {
		epoch := inv.beginAttempt()
		result, failure := op(inv)

		// A contextual signal supersedes the trial's own outcome.
		forcedRetry := false
		if signaled, isComplete, sigResult, sigFailure := inv.signal(epoch); signaled {
			if isComplete {
				// The user completed explicitly; their failure is returned unwrapped.
				stats := inv.Stats()
				if sigFailure != nil {
					c.fireFailedAttempt(stats, sigResult, sigFailure)
				}
				c.fireResult(stats, sigResult, sigFailure, sigFailure == nil)
				c.fireComplete(stats, sigResult, sigFailure)
				return sigResult, sigFailure
			}
			var zero R
			result, failure = zero, sigFailure
			forcedRetry = true
		}

		retryEligible := forcedRetry || e.policy.AllowsRetriesFor(result, failure)
		if !retryEligible || inv.isPolicyExceeded() {
			return e.terminate(inv, result, failure, retryEligible)
		}

		stats := inv.Stats()
		c.fireFailedAttempt(stats, result, failure)
		delay := inv.adjustWaitTime(c)
		stats = inv.Stats()
		c.fireRetry(stats, result, failure)
		c.fireRetryScheduled(stats, result, failure, delay)
		if delay > 0 {
			if err := sleep(ctx, delay); err != nil {
				cerr := CanceledError{Cause: err}
				c.fireResult(stats, result, cerr, false)
				c.fireComplete(stats, result, cerr)
				var zero R
				return zero, cerr
			}
		}
	}
}

// terminate fires the terminal listeners and returns the final outcome, wrapping a terminal failure from a
// policy-driven decision in an ExceededError. retryEligible indicates whether the policy would still have retried
// the final trial, which distinguishes an acceptable outcome from an exhausted budget.
func (e *syncExecutor[R]) terminate(inv *Invocation[R], result R, failure error, retryEligible bool) (R, error) {
	c := e.policy.config
	stats := inv.Stats()
	if failure != nil || retryEligible {
		c.fireFailedAttempt(stats, result, failure)
	}
	success := failure == nil && !retryEligible
	c.fireResult(stats, result, failure, success)
	c.fireComplete(stats, result, failure)
	if failure != nil {
		return result, ExceededError[R]{LastResult: result, LastError: failure}
	}
	return result, nil
}

// sleep blocks for delay or until ctx is done, returning ctx's error in the latter case.
func sleep(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
