package util

import "time"

// Min returns the smaller of a and b.
func Min[T int | int64 | time.Duration](a, b T) T {
	if a < b {
		return a
	}
	return b
}

// Max returns the larger of a and b.
func Max[T int | int64 | time.Duration](a, b T) T {
	if a > b {
		return a
	}
	return b
}

// RandomDelayFactor returns a delay that is randomly varied by up to jitterFactor of delay, in either direction.
func RandomDelayFactor(delay time.Duration, jitterFactor float32, random float32) time.Duration {
	jitterRange := float32(delay) * jitterFactor * 2
	jitter := jitterRange*random - (jitterRange / 2)
	return delay + time.Duration(jitter)
}

// RandomDelay returns a delay that is randomly varied by up to jitter in either direction.
func RandomDelay(delay time.Duration, jitter time.Duration, random float64) time.Duration {
	jitterRange := int64(jitter) * 2
	offset := int64(float64(jitterRange)*random) - int64(jitter)
	return delay + time.Duration(offset)
}
