package queue

import (
	"time"

	"fieldsync/internal/engine"
)

// Store abstracts the storage mechanics for the pending-change queue.
// Concurrency is managed by the caller (PendingQueue.mu), so stores do not
// need to be safe for concurrent use. Entries are append/remove only; the
// sole in-place mutation is the attempt accounting.
type Store interface {
	// Append adds a change to the end of the queue, assigning its Seq.
	Append(change *engine.PendingChange) error

	// Head returns the first change in FIFO order without removing it.
	// Returns nil when the queue is empty.
	Head() (*engine.PendingChange, error)

	// Remove deletes a change by id.
	Remove(id string) error

	// RecordAttempt stores an entry's incremented attempt count and its
	// next-eligibility instant.
	RecordAttempt(id string, attempts int, notBefore time.Time) error

	// List returns all changes in FIFO order.
	List() ([]*engine.PendingChange, error)

	// Len returns the number of queued changes.
	Len() (int, error)
}
