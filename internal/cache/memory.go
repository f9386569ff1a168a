package cache

import (
	"sort"
	"sync"
	"time"

	"fieldsync/internal/engine"
)

// MemoryCache is an in-memory engine.SnapshotCache for tests.
type MemoryCache struct {
	mu        sync.Mutex
	ttl       time.Duration
	clock     engine.Clock
	snapshots map[string]*engine.Snapshot
}

var _ engine.SnapshotCache = (*MemoryCache)(nil)

func NewMemoryCache(ttl time.Duration, clock engine.Clock) *MemoryCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryCache{
		ttl:       ttl,
		clock:     clock,
		snapshots: make(map[string]*engine.Snapshot),
	}
}

func (c *MemoryCache) Get(jobID string) (*engine.Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap, ok := c.snapshots[jobID]
	if !ok {
		return nil, nil
	}
	if snap.SchemaVersion != engine.SchemaVersion || c.clock.Now().After(snap.FetchedAt.Add(c.ttl)) {
		delete(c.snapshots, jobID)
		return nil, nil
	}
	cp := *snap
	return &cp, nil
}

func (c *MemoryCache) Put(snapshot *engine.Snapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := *snapshot
	c.snapshots[snapshot.JobID] = &cp
	return nil
}

func (c *MemoryCache) Delete(jobID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.snapshots, jobID)
	return nil
}

func (c *MemoryCache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshots = make(map[string]*engine.Snapshot)
	return nil
}

func (c *MemoryCache) JobIDs() ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var ids []string
	for id, snap := range c.snapshots {
		if snap.SchemaVersion == engine.SchemaVersion && !c.clock.Now().After(snap.FetchedAt.Add(c.ttl)) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}
