package database

import (
	"testing"

	"github.com/lysyi3m/canvas-comb/app/content"
)

// newTestDB opens an in-memory database with the full migration chain
// applied.
func newTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := NewConnection(":memory:")
	if err != nil {
		t.Fatalf("Failed to open in-memory database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, _, err := RunMigrations(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	return db
}

// insertTestContent stores a minimal content item and returns its id,
// for fixtures that hang announcements or refs off a real row.
func insertTestContent(t *testing.T, db *DB, sourceID string) string {
	t.Helper()

	id, inserted, err := NewContentRepo(db).InsertItem(content.Item{
		Source:      content.SourceCommunity,
		SourceID:    sourceID,
		Title:       "Fixture item " + sourceID,
		URL:         "https://community.example.com/" + sourceID,
		ContentType: content.TypeReleaseNote,
	})
	if err != nil {
		t.Fatalf("Failed to insert content fixture %s: %v", sourceID, err)
	}
	if !inserted {
		t.Fatalf("Content fixture %s unexpectedly deduplicated", sourceID)
	}
	return id
}
