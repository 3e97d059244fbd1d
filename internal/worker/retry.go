package worker

import "time"

// RetryPolicy shapes the redelivery schedule for failed mail tasks. SMTP
// failures are mostly transient (greylisting, relay backpressure), so the
// pause grows geometrically per attempt until MaxDelay, after MaxRetries the
// task goes to the dead letter list.
type RetryPolicy struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// NextDelay returns the pause before the given delivery attempt (1-based).
// Zero-valued fields fall back to 1s doubling.
func (r RetryPolicy) NextDelay(attempt int) time.Duration {
	delay := r.InitialDelay
	if delay <= 0 {
		delay = time.Second
	}
	factor := r.BackoffFactor
	if factor <= 0 {
		factor = 2
	}

	for i := 1; i < attempt; i++ {
		delay = time.Duration(float64(delay) * factor)
		if r.MaxDelay > 0 && delay >= r.MaxDelay {
			return r.MaxDelay
		}
	}
	if delay <= 0 {
		return time.Second
	}
	return delay
}

// Exhausted reports whether the attempt counter has run past the retry
// budget and the task should be dead-lettered.
func (r RetryPolicy) Exhausted(attempts int) bool {
	return attempts >= r.MaxRetries
}
