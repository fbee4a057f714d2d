package retry

import "time"

// AttemptEvent indicates that a trial was attempted. It carries the InvocationStats as of that attempt, so
// contextual listeners can inspect the attempt count and elapsed time without holding a reference to the Invocation.
type AttemptEvent[R any] struct {
	InvocationStats

	// Result is the trial's result, else the zero value for R.
	Result R
	// Error is the trial's failure, else nil.
	Error error
}

// ScheduledEvent indicates that a retry was scheduled to run after Delay.
type ScheduledEvent[R any] struct {
	AttemptEvent[R]

	// Delay is the wait time before the next trial.
	Delay time.Duration
}

// CompletedEvent indicates that a RetryFuture or synchronous call reached terminal completion.
type CompletedEvent[R any] struct {
	InvocationStats

	// Result is the final result, else the zero value for R.
	Result R
	// Error is the final error, else nil.
	Error error
}
