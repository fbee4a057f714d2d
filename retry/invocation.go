package retry

import (
	"math/rand"
	"sync"
	"time"

	"github.com/goretry/goretry/internal/util"
)

// InvocationStats is a read-only snapshot of an Invocation's progress, exposed to listeners.
type InvocationStats struct {
	// AttemptCount is the number of completed trials, including the one currently being reported on.
	AttemptCount int
	// Elapsed is the wall-clock time since the first trial began.
	Elapsed time.Duration
	// WaitTime is the stored wait before the next trial, after backoff and max-duration adjustment. Any configured
	// jitter is applied on top of it and is not included here.
	WaitTime time.Duration
}

// IsFirstAttempt returns true when AttemptCount is 1.
func (s InvocationStats) IsFirstAttempt() bool {
	return s.AttemptCount == 1
}

// IsRetry returns true when AttemptCount is greater than 1.
func (s InvocationStats) IsRetry() bool {
	return s.AttemptCount > 1
}

// Invocation carries the mutable, per-execution state threaded through an operation's trials. In contextual mode, an
// operation receives an *Invocation and may call Retry or Complete from its own goroutine, or from a callback
// invoked on another goroutine, to drive the decision that would otherwise come from the RetryPolicy.
//
// Invocation is exclusively owned by the executor driving it, except for the contextual signal fields (Retry,
// Complete), which callback goroutines may write concurrently with the executor's own reads. Those reads and writes
// are synchronized by mu and scoped to a single trial epoch, so a late signal from a superseded trial is discarded.
type Invocation[R any] struct {
	clock       util.Clock
	startTime   time.Time
	maxDuration time.Duration
	maxRetries  int

	// onSignal, when set by the async executor, is called with the trial epoch after Retry or Complete latches a
	// signal, so the executor can act on it without polling. Nil for synchronous executions.
	onSignal func(epoch uint64)

	mu           sync.Mutex
	attemptCount int
	waitTime     time.Duration
	epoch        uint64

	signaled   bool // retryRequested or completionRequested for the current epoch
	isComplete bool // true if the signal was Complete rather than Retry
	sigResult  R
	sigFailure error
}

func newInvocation[R any](clock util.Clock, delay time.Duration, maxDuration time.Duration, maxRetries int) *Invocation[R] {
	now := clock.Now()
	return &Invocation[R]{
		clock:       clock,
		startTime:   now,
		maxDuration: maxDuration,
		maxRetries:  maxRetries,
		waitTime:    delay,
	}
}

// AttemptCount returns the number of trials started so far, including one still in progress.
func (inv *Invocation[R]) AttemptCount() int {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return inv.attemptCount
}

// Elapsed returns the wall-clock time since the first trial began.
func (inv *Invocation[R]) Elapsed() time.Duration {
	return inv.clock.Now().Sub(inv.startTime)
}

// Stats returns a read-only snapshot of the invocation's current progress.
func (inv *Invocation[R]) Stats() InvocationStats {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return InvocationStats{
		AttemptCount: inv.attemptCount,
		Elapsed:      inv.clock.Now().Sub(inv.startTime),
		WaitTime:     inv.waitTime,
	}
}

// Retry signals that the current trial should be retried, overriding the RetryPolicy's retry conditions; the
// policy's max retries and max duration still end the execution once exhausted. failure, even if nil, is recorded
// as the trial's failure in place of what the operation returns. Retry is safe to call from any goroutine, and
// is a no-op if called after the trial it belongs to has already been superseded or the Invocation has completed.
func (inv *Invocation[R]) Retry(failure error) {
	inv.mu.Lock()
	if inv.signaled {
		inv.mu.Unlock()
		return
	}
	inv.signaled = true
	inv.isComplete = false
	inv.sigFailure = failure
	epoch, hook := inv.epoch, inv.onSignal
	inv.mu.Unlock()
	if hook != nil {
		hook(epoch)
	}
}

// Complete signals that the operation is finished, overriding whatever the RetryPolicy would otherwise decide.
// Complete is safe to call from any goroutine, and is a no-op if called after the trial it belongs to has already
// been superseded.
func (inv *Invocation[R]) Complete(result R, failure error) {
	inv.mu.Lock()
	if inv.signaled {
		inv.mu.Unlock()
		return
	}
	inv.signaled = true
	inv.isComplete = true
	inv.sigResult = result
	inv.sigFailure = failure
	epoch, hook := inv.epoch, inv.onSignal
	inv.mu.Unlock()
	if hook != nil {
		hook(epoch)
	}
}

// beginAttempt starts a new trial epoch, clearing any signal latched by the previous trial.
func (inv *Invocation[R]) beginAttempt() uint64 {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	inv.attemptCount++
	inv.epoch++
	inv.signaled = false
	inv.isComplete = false
	var zero R
	inv.sigResult = zero
	inv.sigFailure = nil
	return inv.epoch
}

// signal returns whether a contextual signal was latched for the trial identified by epoch, and its contents. A
// signal latched by a superseded epoch is never returned.
func (inv *Invocation[R]) signal(epoch uint64) (signaled bool, isComplete bool, result R, failure error) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	if inv.epoch != epoch || !inv.signaled {
		var zero R
		return false, false, zero, nil
	}
	return true, inv.isComplete, inv.sigResult, inv.sigFailure
}

// adjustWaitTime applies the backoff, max-delay, and max-duration adjustments for the next retry, stores the
// adjusted wait time, and returns the delay to sleep or schedule for, with any configured jitter applied on top.
// Jitter varies the returned delay without compounding into the stored wait time.
func (inv *Invocation[R]) adjustWaitTime(c *retryPolicyConfig[R]) time.Duration {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	// The first retry waits the base delay; backoff multiplies from the second retry on.
	if c.delayMax > 0 && inv.attemptCount > 1 {
		backoff := time.Duration(float64(inv.waitTime) * c.delayMultiplier)
		inv.waitTime = util.Min(backoff, c.delayMax)
	}
	if inv.maxDuration > 0 {
		elapsed := inv.clock.Now().Sub(inv.startTime)
		remaining := inv.maxDuration - elapsed
		inv.waitTime = util.Max(0, util.Min(inv.waitTime, remaining))
	}
	wait := inv.waitTime
	if c.jitterFactor > 0 {
		wait = util.RandomDelayFactor(wait, c.jitterFactor, rand.Float32())
	} else if c.jitter > 0 {
		wait = util.RandomDelay(wait, c.jitter, rand.Float64())
	}
	if inv.maxDuration > 0 {
		wait = util.Min(wait, inv.maxDuration-inv.clock.Now().Sub(inv.startTime))
	}
	return util.Max(0, wait)
}

// isPolicyExceeded reports whether the attempt count or max duration budget has been exhausted.
func (inv *Invocation[R]) isPolicyExceeded() bool {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	if inv.maxRetries >= 0 && inv.attemptCount > inv.maxRetries {
		return true
	}
	if inv.maxDuration > 0 && inv.clock.Now().Sub(inv.startTime) >= inv.maxDuration {
		return true
	}
	return false
}
