package queue

import (
	"time"

	"fieldsync/internal/engine"
)

// Policy consolidates the retry behavior previously scattered per call
// site: the attempt ceiling, the retryable-error classifier and the
// backoff schedule. One Policy is parameterized once and reused by every
// change type.
type Policy struct {
	// MaxAttempts is the retry ceiling. An entry whose attempt count
	// reaches it is discarded as a permanent failure.
	MaxAttempts int

	// Retryable classifies a replay error. Non-retryable errors discard
	// the entry immediately.
	Retryable func(error) bool

	// Backoff returns how long an entry waits after its nth failed
	// attempt before it is eligible again.
	Backoff func(attempt int) time.Duration
}

// DefaultPolicy: ceiling of 5, transport-based classification, exponential
// backoff from 30s capped at 10m.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 5,
		Retryable:   engine.IsRetryable,
		Backoff:     ExponentialBackoff(30*time.Second, 10*time.Minute),
	}
}

// ExponentialBackoff doubles the base delay per attempt up to max.
func ExponentialBackoff(base, max time.Duration) func(int) time.Duration {
	return func(attempt int) time.Duration {
		if attempt < 1 {
			attempt = 1
		}
		d := base
		for i := 1; i < attempt; i++ {
			d *= 2
			if d >= max {
				return max
			}
		}
		if d > max {
			return max
		}
		return d
	}
}
