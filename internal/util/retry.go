// internal/util/retry.go
package util

import (
	"math/rand"
	"time"
)

// Backoff returns the wait before the given retry attempt: exponential in
// the attempt number, capped at 30s, with +/-25% jitter so concurrent
// retries do not synchronize.
func Backoff(base time.Duration, attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	if attempt > 30 {
		attempt = 30
	}
	d := base * time.Duration(1<<uint(attempt))
	if d > 30*time.Second {
		d = 30 * time.Second
	}
	// a sub-2ns delay has no jitter window to draw from
	if int64(d)/2 <= 0 {
		return d
	}
	jitter := time.Duration(rand.Int63n(int64(d)/2)) - d/4
	return d + jitter
}
