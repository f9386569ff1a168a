package engine

import (
	"context"
	"errors"
	"time"
)

// ErrFlushInProgress is returned when a flush pass is requested while one
// is already running. There is a single replay context; passes never overlap.
var ErrFlushInProgress = errors.New("queue flush already in progress")

// ChangeType enumerates the mutating operations the queue can carry.
// Video uploads are deliberately absent: large binary payloads are not
// durably queued and require live connectivity.
type ChangeType string

const (
	ChangeJobStart       ChangeType = "job_start"
	ChangeJobPause       ChangeType = "job_pause"
	ChangeJobResume      ChangeType = "job_resume"
	ChangeJobComplete    ChangeType = "job_complete"
	ChangeLineItemToggle ChangeType = "line_item_toggle"
	ChangeDoorComplete   ChangeType = "door_complete"
	ChangeDoorPhoto      ChangeType = "door_photo"
)

// PendingChange is a durably queued mutation awaiting delivery. FIFO order
// is significant: a door completion must not be replayed before the job
// start that legitimizes it.
type PendingChange struct {
	ID           string
	Seq          int64
	Type         ChangeType
	Payload      []byte // JSON, includes previous values for revert on discard
	BlobKey      string // media blob reference, door_photo only
	CreatedAt    time.Time
	AttemptCount int
	NotBefore    time.Time // backoff: earliest next replay, zero when immediate
}

// Dispatcher executes and reconciles queued changes during a flush.
type Dispatcher interface {
	// Apply replays one change against the backend. A nil return removes
	// the entry; a retryable error keeps it; a permanent error discards it.
	Apply(ctx context.Context, change *PendingChange) error

	// Discard is invoked when a change is dropped permanently, either on a
	// non-retryable error or after the retry ceiling. Implementations revert
	// the optimistic state the change represented.
	Discard(ctx context.Context, change *PendingChange, cause error)
}

// FlushResult summarizes one flush pass.
type FlushResult struct {
	Applied   int
	Discarded int
	Remaining int
}

// Queue is the durable, ordered list of pending mutations.
type Queue interface {
	// Enqueue appends a change with AttemptCount 0, persisted immediately.
	Enqueue(change *PendingChange) error

	// Flush processes entries strictly in FIFO order, one at a time. A pass
	// stops at the first retryable failure so causal order is preserved.
	// Overlapping passes are rejected with ErrFlushInProgress.
	Flush(ctx context.Context, d Dispatcher) (FlushResult, error)

	// Len returns the number of pending entries.
	Len() (int, error)

	// Pending lists all entries in order, for inspection.
	Pending() ([]*PendingChange, error)

	// Notify registers a callback invoked with the queue length after every
	// change, so a pending-sync indicator can track it.
	Notify(fn func(n int))
}
