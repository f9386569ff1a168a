package queue_test

import (
	"testing"
	"time"

	"fieldsync/internal/engine"
	"fieldsync/internal/queue"
	"fieldsync/internal/testutil"
)

func TestSQLiteStore(t *testing.T) {
	newStore := func(t *testing.T) *queue.SQLiteStore {
		return queue.NewSQLiteStore(testutil.NewTestDatabase(t))
	}

	t.Run("append assigns increasing seq", func(t *testing.T) {
		store := newStore(t)
		created := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)

		a := &engine.PendingChange{ID: "a", Type: engine.ChangeJobStart, Payload: []byte(`{"job_id":"j1"}`), CreatedAt: created}
		b := &engine.PendingChange{ID: "b", Type: engine.ChangeDoorPhoto, Payload: []byte(`{}`), BlobKey: "blob-1", CreatedAt: created}
		if err := store.Append(a); err != nil {
			t.Fatalf("Append(a) error = %v", err)
		}
		if err := store.Append(b); err != nil {
			t.Fatalf("Append(b) error = %v", err)
		}
		if a.Seq == 0 || b.Seq <= a.Seq {
			t.Errorf("seqs = %d, %d, want increasing non-zero", a.Seq, b.Seq)
		}
	})

	t.Run("head and remove walk FIFO order", func(t *testing.T) {
		store := newStore(t)
		for _, id := range []string{"a", "b"} {
			if err := store.Append(&engine.PendingChange{ID: id, Type: engine.ChangeJobStart, Payload: []byte(`{}`), CreatedAt: time.Now()}); err != nil {
				t.Fatalf("Append(%s) error = %v", id, err)
			}
		}

		head, err := store.Head()
		if err != nil {
			t.Fatalf("Head() error = %v", err)
		}
		if head.ID != "a" {
			t.Errorf("head = %s, want a", head.ID)
		}
		if err := store.Remove("a"); err != nil {
			t.Fatalf("Remove() error = %v", err)
		}

		head, err = store.Head()
		if err != nil {
			t.Fatalf("Head() error = %v", err)
		}
		if head.ID != "b" {
			t.Errorf("head after remove = %s, want b", head.ID)
		}
		if err := store.Remove("b"); err != nil {
			t.Fatalf("Remove() error = %v", err)
		}

		head, err = store.Head()
		if err != nil {
			t.Fatalf("Head() on empty error = %v", err)
		}
		if head != nil {
			t.Errorf("head on empty = %+v, want nil", head)
		}
	})

	t.Run("record attempt persists backoff state", func(t *testing.T) {
		store := newStore(t)
		if err := store.Append(&engine.PendingChange{ID: "a", Type: engine.ChangeLineItemToggle, Payload: []byte(`{}`), CreatedAt: time.Now()}); err != nil {
			t.Fatalf("Append() error = %v", err)
		}

		notBefore := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
		if err := store.RecordAttempt("a", 3, notBefore); err != nil {
			t.Fatalf("RecordAttempt() error = %v", err)
		}

		head, err := store.Head()
		if err != nil {
			t.Fatalf("Head() error = %v", err)
		}
		if head.AttemptCount != 3 {
			t.Errorf("AttemptCount = %d, want 3", head.AttemptCount)
		}
		if !head.NotBefore.Equal(notBefore) {
			t.Errorf("NotBefore = %v, want %v", head.NotBefore, notBefore)
		}
	})

	t.Run("payload and blob key round trip", func(t *testing.T) {
		store := newStore(t)
		payload := []byte(`{"job_id":"j1","door_id":"d1"}`)
		if err := store.Append(&engine.PendingChange{ID: "a", Type: engine.ChangeDoorPhoto, Payload: payload, BlobKey: "blob-7", CreatedAt: time.Now()}); err != nil {
			t.Fatalf("Append() error = %v", err)
		}

		list, err := store.List()
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(list) != 1 {
			t.Fatalf("len(list) = %d, want 1", len(list))
		}
		got := list[0]
		if string(got.Payload) != string(payload) {
			t.Errorf("Payload = %s, want %s", got.Payload, payload)
		}
		if got.BlobKey != "blob-7" {
			t.Errorf("BlobKey = %s, want blob-7", got.BlobKey)
		}
		if got.Type != engine.ChangeDoorPhoto {
			t.Errorf("Type = %s, want %s", got.Type, engine.ChangeDoorPhoto)
		}

		n, err := store.Len()
		if err != nil {
			t.Fatalf("Len() error = %v", err)
		}
		if n != 1 {
			t.Errorf("Len() = %d, want 1", n)
		}
	})

	t.Run("queue survives a reopen of the same connection", func(t *testing.T) {
		db := testutil.NewTestDatabase(t)
		store := queue.NewSQLiteStore(db)
		clock := testutil.FixedClock()
		q := queue.New(store, queue.Policy{}, clock)
		if err := q.Enqueue(&engine.PendingChange{ID: "a", Type: engine.ChangeJobStart, Payload: []byte(`{}`), CreatedAt: clock.Now()}); err != nil {
			t.Fatalf("Enqueue() error = %v", err)
		}

		// A second queue over the same store sees the persisted entry.
		q2 := queue.New(queue.NewSQLiteStore(db), queue.Policy{}, clock)
		n, err := q2.Len()
		if err != nil {
			t.Fatalf("Len() error = %v", err)
		}
		if n != 1 {
			t.Errorf("Len() = %d, want 1", n)
		}
	})
}
