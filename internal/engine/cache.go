package engine

import "time"

// SchemaVersion is the snapshot wire version. Cached snapshots written by an
// older schema read as a miss, forcing a live fetch.
const SchemaVersion = 2

// Snapshot is the last-known serialized job aggregate for offline reads.
// Snapshots are replaced wholesale on every successful fetch, never merged.
type Snapshot struct {
	JobID         string
	Data          []byte // JSON-encoded job.Job
	SchemaVersion int
	FetchedAt     time.Time
}

// SnapshotCache stores one snapshot per job id.
type SnapshotCache interface {
	// Get returns the snapshot for a job, or nil on miss, expiry, schema
	// mismatch or a corrupt row (corruption is treated as a miss).
	Get(jobID string) (*Snapshot, error)

	// Put replaces the snapshot for the job.
	Put(snapshot *Snapshot) error

	// Delete removes one job's snapshot.
	Delete(jobID string) error

	// Clear removes all snapshots.
	Clear() error

	// JobIDs lists ids with a live snapshot.
	JobIDs() ([]string, error)
}
