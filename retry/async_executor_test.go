package retry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/goretry/goretry/internal/testutil"
)

func TestGetAsyncSuccessAfterFailures(t *testing.T) {
	var counts listenerCounts
	rp, err := countingBuilder[string](&counts).Build()
	assert.NoError(t, err)
	scheduler := &InstantScheduler{}
	fn, invocations := testutil.ErrorNTimesThenReturn(testutil.ConnectionError{}, 2, "ok")

	future := GetAsync(rp, fn, scheduler)
	result, err := future.Get()

	assert.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 3, *invocations)
	assert.True(t, future.IsDone())
	assert.False(t, future.IsCanceled())
	assert.Equal(t, 2, counts.failedAttempt)
	assert.Equal(t, 2, counts.retry)
	assert.Equal(t, 1, counts.success)
	assert.Equal(t, 0, counts.failure)
	assert.Equal(t, 1, counts.complete)
}

func TestGetAsyncExhaustion(t *testing.T) {
	rp, err := Builder[any]().WithMaxRetries(2).Build()
	assert.NoError(t, err)
	scheduler := &InstantScheduler{}

	future := GetAsync(rp, testutil.GetFn[any](nil, testutil.ConnectionError{}), scheduler)
	_, err = future.Get()

	assert.ErrorIs(t, err, ErrExceeded)
	assert.ErrorIs(t, err, testutil.ConnectionError{})
	// the initial trial plus two retries
	assert.Equal(t, []time.Duration{0, 0, 0}, scheduler.Delays())
}

func TestGetAsyncBackoffDelays(t *testing.T) {
	rp, err := Builder[any]().
		WithBackoff(10*time.Millisecond, 80*time.Millisecond).
		WithMaxRetries(5).
		Build()
	assert.NoError(t, err)
	scheduler := &InstantScheduler{}

	future := GetAsync(rp, testutil.GetFn[any](nil, testutil.ConnectionError{}), scheduler)
	_, err = future.Get()

	assert.ErrorIs(t, err, ErrExceeded)
	want := []time.Duration{
		0,
		10 * time.Millisecond,
		20 * time.Millisecond,
		40 * time.Millisecond,
		80 * time.Millisecond,
		80 * time.Millisecond,
	}
	assert.Equal(t, want, scheduler.Delays())
}

func TestGetAsyncContextualCompletion(t *testing.T) {
	var counts listenerCounts
	rp, err := countingBuilder[string](&counts).Build()
	assert.NoError(t, err)

	future := GetAsyncWithInvocation(rp, func(inv *Invocation[string]) (string, error) {
		go func() {
			// a stand-in for an async API invoking a completion callback on its own goroutine
			time.Sleep(10 * time.Millisecond)
			inv.Complete("v", nil)
		}()
		return "", nil
	}, nil)

	result, err := future.Get()
	assert.NoError(t, err)
	assert.Equal(t, "v", result)
	assert.Equal(t, 1, counts.success)
	assert.Equal(t, 1, counts.complete)
}

func TestGetAsyncContextualRetryThenComplete(t *testing.T) {
	var counts listenerCounts
	rp, err := countingBuilder[string](&counts).Build()
	assert.NoError(t, err)
	scheduler := &InstantScheduler{}
	invocations := 0

	future := GetAsyncWithInvocation(rp, func(inv *Invocation[string]) (string, error) {
		invocations++
		if invocations < 3 {
			inv.Retry(testutil.ConnectionError{})
			return "", nil
		}
		inv.Complete("v", nil)
		return "", nil
	}, scheduler)

	result, err := future.Get()
	assert.NoError(t, err)
	assert.Equal(t, "v", result)
	assert.Equal(t, 3, invocations)
	assert.Equal(t, 2, counts.failedAttempt)
	assert.Equal(t, 2, counts.retry)
	assert.Equal(t, 1, counts.success)
	assert.Equal(t, 1, counts.complete)
}

func TestGetAsyncContextualFailureReturnRecorded(t *testing.T) {
	rp, err := Builder[string]().WithMaxRetries(1).Build()
	assert.NoError(t, err)
	scheduler := &InstantScheduler{}
	invocations := 0

	// a contextual op that returns a failure without signaling still drives the policy
	future := GetAsyncWithInvocation(rp, func(inv *Invocation[string]) (string, error) {
		invocations++
		return "", testutil.ConnectionError{}
	}, scheduler)

	_, err = future.Get()
	assert.ErrorIs(t, err, ErrExceeded)
	assert.Equal(t, 2, invocations)
}

func TestCancelDuringWait(t *testing.T) {
	var counts listenerCounts
	var completedErr error
	rp, err := countingBuilder[any](&counts).
		OnComplete(func(e CompletedEvent[any]) {
			counts.complete++
			completedErr = e.Error
		}).
		WithDelay(time.Hour).
		Build()
	assert.NoError(t, err)
	scheduler := &ManualScheduler{}
	invocations := 0

	future := GetAsync(rp, func() (any, error) {
		invocations++
		return nil, testutil.ConnectionError{}
	}, scheduler)

	// run the first trial; its failure schedules a retry an hour out
	assert.True(t, scheduler.FireNext())
	assert.Equal(t, 1, invocations)
	assert.Equal(t, 1, scheduler.PendingCount())

	assert.True(t, future.Cancel())
	assert.True(t, future.IsDone())
	assert.True(t, future.IsCanceled())
	assert.Equal(t, 0, scheduler.PendingCount())

	// no further trial runs even if the scheduler drains
	scheduler.FireAll()
	assert.Equal(t, 1, invocations)
	assert.Equal(t, 1, counts.failure)
	assert.Equal(t, 1, counts.complete)
	assert.ErrorIs(t, completedErr, ErrCanceled)

	_, err = future.Get()
	assert.ErrorIs(t, err, ErrCanceled)
}

func TestCancelAfterCompletionReturnsFalse(t *testing.T) {
	rp, err := Builder[string]().Build()
	assert.NoError(t, err)
	scheduler := &InstantScheduler{}

	future := GetAsync(rp, testutil.GetFn("ok", nil), scheduler)
	result, err := future.Get()
	assert.NoError(t, err)
	assert.Equal(t, "ok", result)

	assert.False(t, future.Cancel())
	assert.False(t, future.IsCanceled())
}

func TestLateSignalFromSupersededTrialDiscarded(t *testing.T) {
	rp, err := Builder[string]().Build()
	assert.NoError(t, err)
	scheduler := &InstantScheduler{}
	var firstInv *Invocation[string]
	invocations := 0

	future := GetAsyncWithInvocation(rp, func(inv *Invocation[string]) (string, error) {
		invocations++
		if invocations == 1 {
			firstInv = inv
			inv.Retry(testutil.ConnectionError{})
			return "", nil
		}
		inv.Complete("second", nil)
		return "", nil
	}, scheduler)

	result, err := future.Get()
	assert.NoError(t, err)
	assert.Equal(t, "second", result)

	// a late signal from the superseded first trial cannot reopen the future
	firstInv.Complete("stale", nil)
	result, err = future.Get()
	assert.NoError(t, err)
	assert.Equal(t, "second", result)
}

func TestRunAsync(t *testing.T) {
	rp, err := Builder[any]().Build()
	assert.NoError(t, err)
	scheduler := &InstantScheduler{}
	invocations := 0

	future := RunAsync(rp, func() error {
		invocations++
		if invocations < 2 {
			return testutil.ConnectionError{}
		}
		return nil
	}, scheduler)

	_, err = future.Get()
	assert.NoError(t, err)
	assert.Equal(t, 2, invocations)
}
