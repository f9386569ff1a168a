package queue

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"fieldsync/internal/engine"
)

// SQLiteStore persists the pending-change queue so it survives process
// restarts. The schema lives in internal/database/migrations.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore wraps an already-opened, migrated connection.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Append(change *engine.PendingChange) error {
	res, err := s.db.Exec(
		`INSERT INTO pending_changes (id, change_type, payload, blob_key, attempt_count, not_before, created_at)
		 VALUES (?, ?, ?, ?, 0, NULL, ?)`,
		change.ID, string(change.Type), change.Payload, change.BlobKey, change.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting pending change: %w", err)
	}
	if seq, err := res.LastInsertId(); err == nil {
		change.Seq = seq
	}
	return nil
}

func (s *SQLiteStore) Head() (*engine.PendingChange, error) {
	row := s.db.QueryRow(
		`SELECT seq, id, change_type, payload, blob_key, attempt_count, not_before, created_at
		 FROM pending_changes ORDER BY seq LIMIT 1`)
	change, err := scanChange(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return change, err
}

func (s *SQLiteStore) Remove(id string) error {
	if _, err := s.db.Exec(`DELETE FROM pending_changes WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting pending change: %w", err)
	}
	return nil
}

func (s *SQLiteStore) RecordAttempt(id string, attempts int, notBefore time.Time) error {
	_, err := s.db.Exec(
		`UPDATE pending_changes SET attempt_count = ?, not_before = ? WHERE id = ?`,
		attempts, notBefore, id,
	)
	if err != nil {
		return fmt.Errorf("updating attempt count: %w", err)
	}
	return nil
}

func (s *SQLiteStore) List() ([]*engine.PendingChange, error) {
	rows, err := s.db.Query(
		`SELECT seq, id, change_type, payload, blob_key, attempt_count, not_before, created_at
		 FROM pending_changes ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("listing pending changes: %w", err)
	}
	defer rows.Close()

	var changes []*engine.PendingChange
	for rows.Next() {
		change, err := scanChange(rows)
		if err != nil {
			return nil, err
		}
		changes = append(changes, change)
	}
	return changes, rows.Err()
}

func (s *SQLiteStore) Len() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM pending_changes`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting pending changes: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChange(row rowScanner) (*engine.PendingChange, error) {
	var (
		change    engine.PendingChange
		typ       string
		notBefore sql.NullTime
	)
	err := row.Scan(&change.Seq, &change.ID, &typ, &change.Payload, &change.BlobKey,
		&change.AttemptCount, &notBefore, &change.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning pending change: %w", err)
	}
	change.Type = engine.ChangeType(typ)
	if notBefore.Valid {
		change.NotBefore = notBefore.Time
	}
	return &change, nil
}
