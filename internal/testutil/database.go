package testutil

import (
	"database/sql"
	"testing"

	"fieldsync/internal/database"
)

// NewTestDatabase creates an in-memory SQLite database with the schema
// migrated to the latest version. The database is closed when the test
// completes.
func NewTestDatabase(t *testing.T) *sql.DB {
	t.Helper()

	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}
