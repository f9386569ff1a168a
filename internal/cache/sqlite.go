package cache

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"fieldsync/internal/engine"
)

// DefaultTTL is how long a snapshot may serve offline reads.
const DefaultTTL = 7 * 24 * time.Hour

// SQLiteCache implements engine.SnapshotCache over the snapshots table.
// Expired or schema-mismatched rows read as a miss, forcing a live fetch;
// stale rows are pruned lazily on read.
type SQLiteCache struct {
	db    *sql.DB
	ttl   time.Duration
	clock engine.Clock
}

var _ engine.SnapshotCache = (*SQLiteCache)(nil)

// NewSQLiteCache wraps an already-opened, migrated connection. A zero ttl
// falls back to DefaultTTL.
func NewSQLiteCache(db *sql.DB, ttl time.Duration, clock engine.Clock) *SQLiteCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &SQLiteCache{db: db, ttl: ttl, clock: clock}
}

func (c *SQLiteCache) Get(jobID string) (*engine.Snapshot, error) {
	row := c.db.QueryRow(
		`SELECT data, schema_version, fetched_at FROM snapshots WHERE job_id = ?`, jobID)

	snap := engine.Snapshot{JobID: jobID}
	err := row.Scan(&snap.Data, &snap.SchemaVersion, &snap.FetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		// A corrupt row is a cache miss, not a failure.
		c.drop(jobID)
		return nil, nil
	}
	if snap.SchemaVersion != engine.SchemaVersion || c.expired(snap.FetchedAt) {
		c.drop(jobID)
		return nil, nil
	}
	return &snap, nil
}

func (c *SQLiteCache) Put(snapshot *engine.Snapshot) error {
	_, err := c.db.Exec(
		`INSERT INTO snapshots (job_id, data, schema_version, fetched_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(job_id) DO UPDATE SET
		   data = excluded.data,
		   schema_version = excluded.schema_version,
		   fetched_at = excluded.fetched_at`,
		snapshot.JobID, snapshot.Data, snapshot.SchemaVersion, snapshot.FetchedAt,
	)
	if err != nil {
		return fmt.Errorf("storing snapshot for %s: %w", snapshot.JobID, err)
	}
	return nil
}

func (c *SQLiteCache) Delete(jobID string) error {
	if _, err := c.db.Exec(`DELETE FROM snapshots WHERE job_id = ?`, jobID); err != nil {
		return fmt.Errorf("deleting snapshot for %s: %w", jobID, err)
	}
	return nil
}

func (c *SQLiteCache) Clear() error {
	if _, err := c.db.Exec(`DELETE FROM snapshots`); err != nil {
		return fmt.Errorf("clearing snapshots: %w", err)
	}
	return nil
}

func (c *SQLiteCache) JobIDs() ([]string, error) {
	rows, err := c.db.Query(
		`SELECT job_id, fetched_at FROM snapshots WHERE schema_version = ? ORDER BY job_id`,
		engine.SchemaVersion)
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var (
			id        string
			fetchedAt time.Time
		)
		if err := rows.Scan(&id, &fetchedAt); err != nil {
			return nil, fmt.Errorf("scanning snapshot row: %w", err)
		}
		if !c.expired(fetchedAt) {
			ids = append(ids, id)
		}
	}
	return ids, rows.Err()
}

func (c *SQLiteCache) expired(fetchedAt time.Time) bool {
	return c.clock.Now().After(fetchedAt.Add(c.ttl))
}

func (c *SQLiteCache) drop(jobID string) {
	c.db.Exec(`DELETE FROM snapshots WHERE job_id = ?`, jobID)
}
