package queue

import (
	"fmt"
	"time"

	"fieldsync/internal/engine"
)

// MemoryStore is an in-memory Store for tests.
type MemoryStore struct {
	nextSeq int64
	changes []*engine.PendingChange
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{nextSeq: 1}
}

func (s *MemoryStore) Append(change *engine.PendingChange) error {
	cp := *change
	cp.Seq = s.nextSeq
	s.nextSeq++
	s.changes = append(s.changes, &cp)
	change.Seq = cp.Seq
	return nil
}

func (s *MemoryStore) Head() (*engine.PendingChange, error) {
	if len(s.changes) == 0 {
		return nil, nil
	}
	cp := *s.changes[0]
	return &cp, nil
}

func (s *MemoryStore) Remove(id string) error {
	for i, c := range s.changes {
		if c.ID == id {
			s.changes = append(s.changes[:i], s.changes[i+1:]...)
			return nil
		}
	}
	return nil
}

func (s *MemoryStore) RecordAttempt(id string, attempts int, notBefore time.Time) error {
	for _, c := range s.changes {
		if c.ID == id {
			c.AttemptCount = attempts
			c.NotBefore = notBefore
			return nil
		}
	}
	return fmt.Errorf("change not found: %s", id)
}

func (s *MemoryStore) List() ([]*engine.PendingChange, error) {
	out := make([]*engine.PendingChange, len(s.changes))
	for i, c := range s.changes {
		cp := *c
		out[i] = &cp
	}
	return out, nil
}

func (s *MemoryStore) Len() (int, error) {
	return len(s.changes), nil
}
