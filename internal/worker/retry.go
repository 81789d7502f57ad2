package worker

import (
	"math"
	"time"
)

// RetryPolicy shapes the backoff for queued calendar and notification
// tasks. External calendars throttle aggressively, so delays grow
// geometrically and are capped rather than growing unbounded.
type RetryPolicy struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// normalized fills in the queue defaults for any zero field.
func (r RetryPolicy) normalized() RetryPolicy {
	if r.MaxRetries <= 0 {
		r.MaxRetries = 5
	}
	if r.InitialDelay <= 0 {
		r.InitialDelay = 2 * time.Second
	}
	if r.MaxDelay <= 0 {
		r.MaxDelay = time.Minute
	}
	if r.BackoffFactor <= 0 {
		r.BackoffFactor = 2
	}
	return r
}

// NextDelay returns the backoff before the given attempt (1-based),
// clamped to MaxDelay.
func (r RetryPolicy) NextDelay(attempt int) time.Duration {
	r = r.normalized()
	if attempt < 1 {
		attempt = 1
	}

	delay := time.Duration(float64(r.InitialDelay) * math.Pow(r.BackoffFactor, float64(attempt-1)))
	if delay > r.MaxDelay {
		delay = r.MaxDelay
	}
	if delay <= 0 {
		delay = r.InitialDelay
	}
	return delay
}
