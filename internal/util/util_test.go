package util

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMinMax(t *testing.T) {
	assert.Equal(t, 1, Min(1, 2))
	assert.Equal(t, 2, Max(1, 2))
	assert.Equal(t, time.Second, Min(time.Second, time.Minute))
	assert.Equal(t, time.Minute, Max(time.Second, time.Minute))
}

func TestRandomDelayFactor(t *testing.T) {
	// a random value of .5 lands exactly on the configured delay
	assert.Equal(t, 100*time.Millisecond, RandomDelayFactor(100*time.Millisecond, .25, .5))
	assert.Equal(t, 75*time.Millisecond, RandomDelayFactor(100*time.Millisecond, .25, 0))
	assert.Equal(t, 125*time.Millisecond, RandomDelayFactor(100*time.Millisecond, .25, 1))
}

func TestRandomDelay(t *testing.T) {
	assert.Equal(t, 100*time.Millisecond, RandomDelay(100*time.Millisecond, 50*time.Millisecond, .5))
	assert.Equal(t, 50*time.Millisecond, RandomDelay(100*time.Millisecond, 50*time.Millisecond, 0))
	assert.Equal(t, 150*time.Millisecond, RandomDelay(100*time.Millisecond, 50*time.Millisecond, 1))
}

type typedError struct {
	detail string
}

func (e typedError) Error() string {
	return "typedError"
}

func TestErrorTypesMatch(t *testing.T) {
	assert.True(t, ErrorTypesMatch(typedError{detail: "a"}, typedError{}))
	assert.False(t, ErrorTypesMatch(errors.New("test"), typedError{}))
	assert.True(t, ErrorTypesMatch(errors.New("test"), errors.New("test")))
}

func TestNewClock(t *testing.T) {
	clock := NewClock()
	before := time.Now()
	now := clock.Now()
	assert.False(t, now.Before(before))
	assert.NotZero(t, clock.CurrentUnixNano())
}
