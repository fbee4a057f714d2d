package retry

import "time"

// Policy-level listener dispatch. Listeners are optional and nil-safe, and fire on the goroutine that resolved the
// event. Terminal events observe the trial's original failure; wrapping in ExceededError only happens at the
// outermost Get boundary.

func (c *retryPolicyConfig[R]) fireFailedAttempt(stats InvocationStats, result R, err error) {
	if c.log != nil {
		c.log.Debug("retry attempt failed", "attempts", stats.AttemptCount, "elapsed", stats.Elapsed, "error", err)
	}
	if c.failedAttemptListener != nil {
		c.failedAttemptListener(AttemptEvent[R]{InvocationStats: stats, Result: result, Error: err})
	}
}

func (c *retryPolicyConfig[R]) fireRetry(stats InvocationStats, result R, err error) {
	if c.retryListener != nil {
		c.retryListener(AttemptEvent[R]{InvocationStats: stats, Result: result, Error: err})
	}
}

func (c *retryPolicyConfig[R]) fireRetryScheduled(stats InvocationStats, result R, err error, delay time.Duration) {
	if c.log != nil {
		c.log.Debug("retry scheduled", "attempts", stats.AttemptCount, "delay", delay)
	}
	if c.retryScheduledListener != nil {
		c.retryScheduledListener(ScheduledEvent[R]{
			AttemptEvent: AttemptEvent[R]{InvocationStats: stats, Result: result, Error: err},
			Delay:        delay,
		})
	}
}

// fireResult fires the success listener when the terminal outcome is acceptable, else the failure listener when the
// terminal outcome carries a failure. An exhausted execution whose last trial returned a legal value fires neither.
func (c *retryPolicyConfig[R]) fireResult(stats InvocationStats, result R, err error, success bool) {
	event := CompletedEvent[R]{InvocationStats: stats, Result: result, Error: err}
	if success {
		if c.successListener != nil {
			c.successListener(event)
		}
	} else if err != nil {
		if c.failureListener != nil {
			c.failureListener(event)
		}
	}
}

func (c *retryPolicyConfig[R]) fireComplete(stats InvocationStats, result R, err error) {
	if c.log != nil {
		c.log.Debug("retry execution complete", "attempts", stats.AttemptCount, "elapsed", stats.Elapsed, "error", err)
	}
	if c.completeListener != nil {
		c.completeListener(CompletedEvent[R]{InvocationStats: stats, Result: result, Error: err})
	}
}
