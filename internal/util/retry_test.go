// internal/util/retry_test.go
package util

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffZeroBaseDoesNotPanic(t *testing.T) {
	assert.Equal(t, time.Duration(0), Backoff(0, 1))
	assert.Equal(t, time.Duration(0), Backoff(0, 5))
	assert.Equal(t, time.Nanosecond*2, Backoff(time.Nanosecond, 1))
}

func TestBackoffNoWaitBeforeFirstAttempt(t *testing.T) {
	assert.Equal(t, time.Duration(0), Backoff(time.Second, 0))
	assert.Equal(t, time.Duration(0), Backoff(time.Second, -1))
}

func TestBackoffGrowsWithAttempt(t *testing.T) {
	base := 100 * time.Millisecond
	prev := time.Duration(0)
	for attempt := 1; attempt <= 4; attempt++ {
		d := Backoff(base, attempt)
		nominal := base * time.Duration(1<<uint(attempt))
		// +/-25% jitter around the nominal delay
		assert.GreaterOrEqual(t, d, nominal*3/4)
		assert.LessOrEqual(t, d, nominal*5/4)
		assert.Greater(t, d, prev*3/4)
		prev = d
	}
}

func TestBackoffCapped(t *testing.T) {
	d := Backoff(time.Second, 40)
	assert.LessOrEqual(t, d, 30*time.Second*5/4)
}
