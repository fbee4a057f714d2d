package retry

import (
	"errors"
	"log/slog"
	"reflect"
	"time"

	"github.com/goretry/goretry/internal/util"
)

type delayMode int

const (
	delayModeUnset delayMode = iota
	delayModeFixed
	delayModeBackoff
)

// RetryPolicy is an immutable-after-construction rule set that decides, given a trial's (result, failure) pair,
// whether another trial is warranted. See RetryPolicyBuilder for configuration options.
//
// This type is concurrency safe.
type RetryPolicy[R any] interface {
	// AllowsRetriesFor returns whether another trial should be attempted for the given result and failure, per the
	// evaluation order documented on RetryPolicyBuilder. It is pure: identical inputs always yield identical output,
	// irrespective of any Invocation's state.
	AllowsRetriesFor(result R, failure error) bool
}

/*
RetryPolicyBuilder builds RetryPolicy instances.

  - By default a RetryPolicy retries on any error, without limit and with no delay between attempts.
  - Handle conditions are evaluated in a fixed precedence: a completion predicate (RetryIf) supersedes everything
    else; failure conditions (RetryOn, RetryOnFailure) are considered before result conditions (RetryOnResult,
    RetryOnResultIf); any error occurring with no matching failure condition retries by default.
  - WithDelay and WithBackoff/WithBackoffFactor are mutually exclusive; calling one after the other is rejected.

This type is not concurrency safe.
*/
type RetryPolicyBuilder[R any] interface {
	// WithDelay configures a fixed delay between attempts. Cannot be combined with WithBackoff/WithBackoffFactor.
	WithDelay(delay time.Duration) RetryPolicyBuilder[R]

	// WithBackoff configures the delay between retries, exponentially backing off from delay to maxDelay by a
	// factor of 2 on each attempt. Cannot be combined with WithDelay.
	WithBackoff(delay time.Duration, maxDelay time.Duration) RetryPolicyBuilder[R]

	// WithBackoffFactor is like WithBackoff but multiplies consecutive delays by delayMultiplier instead of 2.
	WithBackoffFactor(delay time.Duration, maxDelay time.Duration, delayMultiplier float64) RetryPolicyBuilder[R]

	// WithJitter randomly varies each delay by up to jitter in either direction. Requires a delay to be configured.
	// Replaces any previously configured jitter factor.
	WithJitter(jitter time.Duration) RetryPolicyBuilder[R]

	// WithJitterFactor randomly varies each delay by up to jitterFactor of the delay, in either direction.
	// jitterFactor must be between 0 and 1 exclusive. Requires a delay to be configured. Replaces any previously
	// configured jitter duration.
	WithJitterFactor(jitterFactor float32) RetryPolicyBuilder[R]

	// WithMaxDuration sets the max wall-clock duration, measured from the first attempt, to perform retries for.
	WithMaxDuration(maxDuration time.Duration) RetryPolicyBuilder[R]

	// WithMaxRetries sets the max number of retries to perform after the first attempt. -1 indicates no limit. A
	// value of 0 disables retries entirely.
	WithMaxRetries(maxRetries int) RetryPolicyBuilder[R]

	// WithMaxAttempts sets the max number of attempts to perform, including the first. Equivalent to
	// WithMaxRetries(maxAttempts - 1).
	WithMaxAttempts(maxAttempts int) RetryPolicyBuilder[R]

	// RetryOn specifies failures to retry on. Any failure that matches errors.Is against one of errs is retried.
	RetryOn(errs ...error) RetryPolicyBuilder[R]

	// RetryOnFailure specifies that a trial should be retried if predicate matches its failure. predicate is only
	// consulted when a failure is present.
	RetryOnFailure(predicate func(error) bool) RetryPolicyBuilder[R]

	// RetryOnResult specifies that a trial should be retried if its result equals result. Only consulted when no
	// failure is present. Distinguishable from an unconfigured condition, so RetryOnResult(nil-ish zero value) can
	// be configured explicitly.
	RetryOnResult(result R) RetryPolicyBuilder[R]

	// RetryOnResultIf specifies that a trial should be retried if predicate matches its result. Only consulted when
	// no failure is present.
	RetryOnResultIf(predicate func(R) bool) RetryPolicyBuilder[R]

	// RetryIf specifies a joint predicate over (result, failure) that supersedes every other condition.
	RetryIf(predicate func(R, error) bool) RetryPolicyBuilder[R]

	// OnFailedAttempt registers a listener called whenever a trial's outcome is retry-eligible per the policy,
	// including the final trial if retries are then exhausted.
	OnFailedAttempt(listener func(AttemptEvent[R])) RetryPolicyBuilder[R]

	// OnRetry registers a listener called whenever a trial will be retried, after wait-time adjustment.
	OnRetry(listener func(AttemptEvent[R])) RetryPolicyBuilder[R]

	// OnRetryScheduled registers a listener called whenever a retry is about to be scheduled, before any delay.
	OnRetryScheduled(listener func(ScheduledEvent[R])) RetryPolicyBuilder[R]

	// OnSuccess registers a listener called once at terminal completion when the final outcome is acceptable.
	OnSuccess(listener func(CompletedEvent[R])) RetryPolicyBuilder[R]

	// OnFailure registers a listener called once at terminal completion when the final outcome is a failure.
	OnFailure(listener func(CompletedEvent[R])) RetryPolicyBuilder[R]

	// OnComplete registers a listener called once at terminal completion, after OnSuccess/OnFailure.
	OnComplete(listener func(CompletedEvent[R])) RetryPolicyBuilder[R]

	// WithLogger configures a logger which provides debug logging of policy decisions. Nil-safe; no logging occurs
	// unless configured.
	WithLogger(logger *slog.Logger) RetryPolicyBuilder[R]

	// Build validates the configured policy and returns it, or returns an InvalidPolicyError if the configuration
	// is contradictory or out of range.
	Build() (RetryPolicy[R], error)
}

type retryPolicyConfig[R any] struct {
	clock util.Clock
	log   *slog.Logger

	delay           time.Duration
	delayMax        time.Duration
	delayMultiplier float64
	delayKind       delayMode
	jitter          time.Duration
	jitterFactor    float32
	maxDuration     time.Duration
	maxDurationSet  bool
	maxRetries      int

	failureErrors       []error
	failurePredicate    func(error) bool
	resultPredicate     func(R) bool
	retryOnResultSet    bool
	retryOnResultVal    R
	completionPredicate func(R, error) bool

	failedAttemptListener  func(AttemptEvent[R])
	retryListener          func(AttemptEvent[R])
	retryScheduledListener func(ScheduledEvent[R])
	successListener        func(CompletedEvent[R])
	failureListener        func(CompletedEvent[R])
	completeListener       func(CompletedEvent[R])

	err error
}

var _ RetryPolicyBuilder[any] = &retryPolicyConfig[any]{}

const defaultMaxRetries = -1

// Builder returns a RetryPolicyBuilder for results of type R.
func Builder[R any]() RetryPolicyBuilder[R] {
	return &retryPolicyConfig[R]{
		clock:      util.NewClock(),
		maxRetries: defaultMaxRetries,
	}
}

// OfDefaults returns a RetryPolicy with default settings: unlimited retries on any error, with no delay.
func OfDefaults[R any]() RetryPolicy[R] {
	p, _ := Builder[R]().Build()
	return p
}

func (c *retryPolicyConfig[R]) fail(message string) {
	if c.err == nil {
		c.err = InvalidPolicyError{Message: message}
	}
}

func (c *retryPolicyConfig[R]) WithDelay(delay time.Duration) RetryPolicyBuilder[R] {
	if delay <= 0 {
		c.fail("delay must be greater than zero")
		return c
	}
	if c.delayKind == delayModeBackoff {
		c.fail("WithDelay cannot be combined with WithBackoff/WithBackoffFactor")
		return c
	}
	c.delayKind = delayModeFixed
	c.delay = delay
	return c
}

func (c *retryPolicyConfig[R]) WithBackoff(delay time.Duration, maxDelay time.Duration) RetryPolicyBuilder[R] {
	return c.WithBackoffFactor(delay, maxDelay, 2)
}

func (c *retryPolicyConfig[R]) WithBackoffFactor(delay time.Duration, maxDelay time.Duration, delayMultiplier float64) RetryPolicyBuilder[R] {
	if delay <= 0 {
		c.fail("delay must be greater than zero")
		return c
	}
	if c.delayKind == delayModeFixed {
		c.fail("WithBackoff cannot be combined with WithDelay")
		return c
	}
	if delayMultiplier <= 1 {
		c.fail("delayMultiplier must be greater than 1")
		return c
	}
	if delay >= maxDelay {
		c.fail("delay must be less than maxDelay")
		return c
	}
	c.delayKind = delayModeBackoff
	c.delay = delay
	c.delayMax = maxDelay
	c.delayMultiplier = delayMultiplier
	return c
}

func (c *retryPolicyConfig[R]) WithJitter(jitter time.Duration) RetryPolicyBuilder[R] {
	if jitter <= 0 {
		c.fail("jitter must be greater than zero")
		return c
	}
	c.jitter = jitter
	c.jitterFactor = 0
	return c
}

func (c *retryPolicyConfig[R]) WithJitterFactor(jitterFactor float32) RetryPolicyBuilder[R] {
	if jitterFactor <= 0 || jitterFactor >= 1 {
		c.fail("jitterFactor must be between 0 and 1 exclusive")
		return c
	}
	c.jitterFactor = jitterFactor
	c.jitter = 0
	return c
}

func (c *retryPolicyConfig[R]) WithMaxDuration(maxDuration time.Duration) RetryPolicyBuilder[R] {
	c.maxDuration = maxDuration
	c.maxDurationSet = true
	return c
}

func (c *retryPolicyConfig[R]) WithMaxRetries(maxRetries int) RetryPolicyBuilder[R] {
	if maxRetries < -1 {
		c.fail("maxRetries must be -1 or greater")
		return c
	}
	c.maxRetries = maxRetries
	return c
}

func (c *retryPolicyConfig[R]) WithMaxAttempts(maxAttempts int) RetryPolicyBuilder[R] {
	return c.WithMaxRetries(maxAttempts - 1)
}

func (c *retryPolicyConfig[R]) RetryOn(errs ...error) RetryPolicyBuilder[R] {
	c.failureErrors = append(c.failureErrors, errs...)
	return c
}

func (c *retryPolicyConfig[R]) RetryOnFailure(predicate func(error) bool) RetryPolicyBuilder[R] {
	c.failurePredicate = predicate
	return c
}

func (c *retryPolicyConfig[R]) RetryOnResult(result R) RetryPolicyBuilder[R] {
	c.retryOnResultSet = true
	c.retryOnResultVal = result
	return c
}

func (c *retryPolicyConfig[R]) RetryOnResultIf(predicate func(R) bool) RetryPolicyBuilder[R] {
	c.resultPredicate = predicate
	return c
}

func (c *retryPolicyConfig[R]) RetryIf(predicate func(R, error) bool) RetryPolicyBuilder[R] {
	c.completionPredicate = predicate
	return c
}

func (c *retryPolicyConfig[R]) OnFailedAttempt(listener func(AttemptEvent[R])) RetryPolicyBuilder[R] {
	c.failedAttemptListener = listener
	return c
}

func (c *retryPolicyConfig[R]) OnRetry(listener func(AttemptEvent[R])) RetryPolicyBuilder[R] {
	c.retryListener = listener
	return c
}

func (c *retryPolicyConfig[R]) OnRetryScheduled(listener func(ScheduledEvent[R])) RetryPolicyBuilder[R] {
	c.retryScheduledListener = listener
	return c
}

func (c *retryPolicyConfig[R]) OnSuccess(listener func(CompletedEvent[R])) RetryPolicyBuilder[R] {
	c.successListener = listener
	return c
}

func (c *retryPolicyConfig[R]) OnFailure(listener func(CompletedEvent[R])) RetryPolicyBuilder[R] {
	c.failureListener = listener
	return c
}

func (c *retryPolicyConfig[R]) OnComplete(listener func(CompletedEvent[R])) RetryPolicyBuilder[R] {
	c.completeListener = listener
	return c
}

func (c *retryPolicyConfig[R]) WithLogger(logger *slog.Logger) RetryPolicyBuilder[R] {
	c.log = logger
	return c
}

func (c *retryPolicyConfig[R]) validate() error {
	if c.delayKind != delayModeUnset && c.maxDurationSet && c.maxDuration > 0 && c.delay >= c.maxDuration {
		return InvalidPolicyError{Message: "delay must be less than maxDuration"}
	}
	if (c.jitter > 0 || c.jitterFactor > 0) && c.delayKind == delayModeUnset {
		return InvalidPolicyError{Message: "jitter may only be configured when a delay is configured"}
	}
	return nil
}

// maxDurationValue returns the configured max duration, or 0 when unbounded.
func (c *retryPolicyConfig[R]) maxDurationValue() time.Duration {
	if !c.maxDurationSet {
		return 0
	}
	return c.maxDuration
}

func (c *retryPolicyConfig[R]) Build() (RetryPolicy[R], error) {
	if c.err != nil {
		return nil, c.err
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	cfgCopy := *c
	return &retryPolicy[R]{config: &cfgCopy}, nil
}

type retryPolicy[R any] struct {
	config *retryPolicyConfig[R]
}

var _ RetryPolicy[any] = &retryPolicy[any]{}

// allowsRetriesAtAll reports whether the policy permits any retries whatsoever (rule 1 of AllowsRetriesFor).
func (c *retryPolicyConfig[R]) allowsRetriesAtAll() bool {
	if c.maxRetries == 0 {
		return false
	}
	if c.maxDurationSet && c.maxDuration == 0 {
		return false
	}
	return true
}

func (rp *retryPolicy[R]) AllowsRetriesFor(result R, failure error) bool {
	c := rp.config
	if !c.allowsRetriesAtAll() {
		return false
	}
	if c.completionPredicate != nil {
		return c.completionPredicate(result, failure)
	}
	if failure != nil {
		if c.failurePredicate != nil {
			return c.failurePredicate(failure)
		}
		if len(c.failureErrors) > 0 {
			for _, target := range c.failureErrors {
				if errors.Is(failure, target) {
					return true
				}
			}
			return false
		}
		return true
	}
	if c.resultPredicate != nil {
		return c.resultPredicate(result)
	}
	if c.retryOnResultSet {
		return reflect.DeepEqual(result, c.retryOnResultVal)
	}
	return false
}
