package queue

import (
	"context"
	"fmt"
	"sync"

	"fieldsync/internal/engine"
)

// PendingQueue implements engine.Queue over a pluggable Store.
// All shared algorithm logic lives here: FIFO ordering, the single
// in-flight flush guard, retry accounting and the length broadcast.
type PendingQueue struct {
	store    Store
	policy   Policy
	clock    engine.Clock
	mu       sync.Mutex
	flushing bool
	notify   func(n int)
}

var _ engine.Queue = (*PendingQueue)(nil)

// New creates a PendingQueue. A zero-valued Policy field falls back to the
// default for that field.
func New(store Store, policy Policy, clock engine.Clock) *PendingQueue {
	def := DefaultPolicy()
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = def.MaxAttempts
	}
	if policy.Retryable == nil {
		policy.Retryable = def.Retryable
	}
	if policy.Backoff == nil {
		policy.Backoff = def.Backoff
	}
	return &PendingQueue{store: store, policy: policy, clock: clock}
}

// Enqueue appends a change and broadcasts the new length.
func (q *PendingQueue) Enqueue(change *engine.PendingChange) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	change.AttemptCount = 0
	if err := q.store.Append(change); err != nil {
		return fmt.Errorf("appending change: %w", err)
	}
	q.broadcastLocked()
	return nil
}

// Flush processes entries strictly in FIFO order, one at a time. The pass
// stops at the first retryable failure (or a backoff that has not elapsed)
// so causal order is preserved; permanently failed entries are discarded
// through the dispatcher and the pass continues.
func (q *PendingQueue) Flush(ctx context.Context, d engine.Dispatcher) (engine.FlushResult, error) {
	q.mu.Lock()
	if q.flushing {
		q.mu.Unlock()
		return engine.FlushResult{}, engine.ErrFlushInProgress
	}
	q.flushing = true
	q.mu.Unlock()
	defer func() {
		q.mu.Lock()
		q.flushing = false
		q.mu.Unlock()
	}()

	var res engine.FlushResult
	for {
		if err := ctx.Err(); err != nil {
			q.fillRemaining(&res)
			return res, err
		}

		q.mu.Lock()
		head, err := q.store.Head()
		q.mu.Unlock()
		if err != nil {
			q.fillRemaining(&res)
			return res, fmt.Errorf("reading queue head: %w", err)
		}
		if head == nil {
			break
		}
		if head.NotBefore.After(q.clock.Now()) {
			// Still backing off; later entries must wait behind it.
			break
		}

		// Replay outside the lock; the dispatcher may take its own.
		applyErr := d.Apply(ctx, head)

		q.mu.Lock()
		if applyErr == nil {
			if err := q.store.Remove(head.ID); err != nil {
				q.mu.Unlock()
				q.fillRemaining(&res)
				return res, fmt.Errorf("removing applied change: %w", err)
			}
			res.Applied++
			q.broadcastLocked()
			q.mu.Unlock()
			continue
		}

		head.AttemptCount++
		if q.policy.Retryable(applyErr) && head.AttemptCount < q.policy.MaxAttempts {
			notBefore := q.clock.Now().Add(q.policy.Backoff(head.AttemptCount))
			if err := q.store.RecordAttempt(head.ID, head.AttemptCount, notBefore); err != nil {
				q.mu.Unlock()
				q.fillRemaining(&res)
				return res, fmt.Errorf("recording attempt: %w", err)
			}
			q.mu.Unlock()
			break
		}

		// Non-retryable, or the ceiling is reached: drop permanently.
		if err := q.store.Remove(head.ID); err != nil {
			q.mu.Unlock()
			q.fillRemaining(&res)
			return res, fmt.Errorf("removing failed change: %w", err)
		}
		res.Discarded++
		q.broadcastLocked()
		q.mu.Unlock()
		d.Discard(ctx, head, applyErr)
	}

	q.fillRemaining(&res)
	return res, nil
}

// Len returns the number of pending entries.
func (q *PendingQueue) Len() (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.store.Len()
}

// Pending lists all entries in replay order.
func (q *PendingQueue) Pending() ([]*engine.PendingChange, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.store.List()
}

// Notify registers the length broadcast callback.
func (q *PendingQueue) Notify(fn func(n int)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.notify = fn
}

func (q *PendingQueue) broadcastLocked() {
	if q.notify == nil {
		return
	}
	if n, err := q.store.Len(); err == nil {
		q.notify(n)
	}
}

func (q *PendingQueue) fillRemaining(res *engine.FlushResult) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if n, err := q.store.Len(); err == nil {
		res.Remaining = n
	}
}
