// Package retry is a general purpose retry engine: it repeatedly invokes a user supplied operation under a
// declarative RetryPolicy until the operation produces an acceptable outcome or the policy's budget is exhausted.
//
// Synchronous executions run on the caller's goroutine via Run and Get. Asynchronous executions run on a Scheduler
// and return a RetryFuture via RunAsync and GetAsync. The WithInvocation variants pass the operation its
// *Invocation, letting it drive termination manually by calling Retry or Complete, typically from a completion
// callback of an underlying async API.
package retry

import "context"

// Run executes op on the calling goroutine, retrying per policy, until it succeeds or retries are exhausted. At
// exhaustion the last failure is returned wrapped in an ExceededError.
func Run(policy RetryPolicy[any], op func() error) error {
	return RunWithContext(context.Background(), policy, op)
}

// RunWithContext is like Run, but the wait between attempts is interrupted when ctx is done, surfacing a
// CanceledError.
func RunWithContext(ctx context.Context, policy RetryPolicy[any], op func() error) error {
	_, err := GetWithContext[any](ctx, policy, func() (any, error) {
		return nil, op()
	})
	return err
}

// Get executes op on the calling goroutine, retrying per policy, and returns the final result. At exhaustion with a
// failure, the failure is returned wrapped in an ExceededError; at exhaustion with a result the policy would still
// have retried, that result is returned as-is.
func Get[R any](policy RetryPolicy[R], op func() (R, error)) (R, error) {
	return GetWithContext(context.Background(), policy, op)
}

// GetWithContext is like Get, but the wait between attempts is interrupted when ctx is done, surfacing a
// CanceledError.
func GetWithContext[R any](ctx context.Context, policy RetryPolicy[R], op func() (R, error)) (R, error) {
	e := &syncExecutor[R]{policy: policyOf(policy)}
	return e.execute(ctx, func(*Invocation[R]) (R, error) {
		return op()
	})
}

// RunWithInvocation is the contextual form of Run: op receives the *Invocation and may call Retry or Complete to
// drive the decision that would otherwise come from the policy. Signals must be delivered before op returns.
func RunWithInvocation(policy RetryPolicy[any], op func(*Invocation[any]) error) error {
	_, err := GetWithInvocation[any](policy, func(inv *Invocation[any]) (any, error) {
		return nil, op(inv)
	})
	return err
}

// GetWithInvocation is the contextual form of Get: op receives the *Invocation and may call Retry or Complete to
// drive the decision that would otherwise come from the policy. Signals must be delivered before op returns.
func GetWithInvocation[R any](policy RetryPolicy[R], op func(*Invocation[R]) (R, error)) (R, error) {
	e := &syncExecutor[R]{policy: policyOf(policy)}
	return e.execute(context.Background(), op)
}

// RunAsync executes op on scheduler, retrying per policy, and returns a RetryFuture for the execution. A nil
// scheduler uses DefaultScheduler.
func RunAsync(policy RetryPolicy[any], op func() error, scheduler Scheduler) *RetryFuture[any] {
	return GetAsync[any](policy, func() (any, error) {
		return nil, op()
	}, scheduler)
}

// GetAsync executes op on scheduler, retrying per policy, and returns a RetryFuture that resolves to the final
// result. A nil scheduler uses DefaultScheduler.
func GetAsync[R any](policy RetryPolicy[R], op func() (R, error), scheduler Scheduler) *RetryFuture[R] {
	return startAsync(policy, scheduler, false, func(*Invocation[R]) (R, error) {
		return op()
	})
}

// RunAsyncWithInvocation is the contextual form of RunAsync: op receives the *Invocation and is expected to call
// Retry or Complete exactly once from its callback path. op's own return is only consulted when it is a failure.
func RunAsyncWithInvocation(policy RetryPolicy[any], op func(*Invocation[any]) error, scheduler Scheduler) *RetryFuture[any] {
	return GetAsyncWithInvocation[any](policy, func(inv *Invocation[any]) (any, error) {
		return nil, op(inv)
	}, scheduler)
}

// GetAsyncWithInvocation is the contextual form of GetAsync: op receives the *Invocation and is expected to call
// Retry or Complete exactly once from its callback path. op's own return is only consulted when it is a failure.
func GetAsyncWithInvocation[R any](policy RetryPolicy[R], op func(*Invocation[R]) (R, error), scheduler Scheduler) *RetryFuture[R] {
	return startAsync(policy, scheduler, true, op)
}

func startAsync[R any](policy RetryPolicy[R], scheduler Scheduler, contextual bool, op func(*Invocation[R]) (R, error)) *RetryFuture[R] {
	rp := policyOf(policy)
	if scheduler == nil {
		scheduler = DefaultScheduler()
	}
	c := rp.config
	future := newRetryFuture[R](c, scheduler)
	e := &asyncExecutor[R]{
		policy:     rp,
		scheduler:  scheduler,
		future:     future,
		inv:        newInvocation[R](c.clock, c.delay, c.maxDurationValue(), c.maxRetries),
		op:         op,
		contextual: contextual,
	}
	e.start()
	return future
}

// policyOf adapts any RetryPolicy to the executors' internal form. A policy not built by Builder is adapted with
// its AllowsRetriesFor as a joint retry condition, with no delay or budget of its own.
func policyOf[R any](policy RetryPolicy[R]) *retryPolicy[R] {
	if rp, ok := policy.(*retryPolicy[R]); ok {
		return rp
	}
	adapted, _ := Builder[R]().RetryIf(policy.AllowsRetriesFor).Build()
	return adapted.(*retryPolicy[R])
}
