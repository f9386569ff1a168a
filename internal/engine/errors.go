package engine

import (
	"errors"
	"fmt"

	"fieldsync/internal/job"
)

// ErrOffline marks a failure caused by missing connectivity rather than a
// server response.
var ErrOffline = errors.New("device is offline")

// ValidationError reports bad input rejected before any state mutation:
// missing signature, oversized or empty media, unknown targets.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return "validation failed: " + e.Reason }

// Validationf builds a ValidationError.
func Validationf(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// TransportError reports a failed backend call. StatusCode is 0 when no
// response was received (connection failure or timeout).
type TransportError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: server returned %d", e.Op, e.StatusCode)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Retryable reports whether the failure is worth replaying later:
// network-level failures, timeouts and 5xx responses.
func (e *TransportError) Retryable() bool {
	return e.StatusCode == 0 || e.StatusCode >= 500
}

// Offline reports whether no response was received at all.
func (e *TransportError) Offline() bool { return e.StatusCode == 0 }

// IsRetryable classifies an error for queue replay. Validation and
// transition errors are never retryable; transport errors defer to their
// status code; anything else is treated as permanent so a broken entry
// cannot pin the queue forever.
func IsRetryable(err error) bool {
	var te *TransportError
	if errors.As(err, &te) {
		return te.Retryable()
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return false
	}
	var tre *job.TransitionError
	if errors.As(err, &tre) {
		return false
	}
	if errors.Is(err, ErrOffline) {
		return true
	}
	return false
}
