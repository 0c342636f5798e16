// Package testutil provides shared test helpers for record stores and blob
// directories.
package testutil

import (
	"os"
	"testing"

	"github.com/starford/atelier/internal/blob"
	"github.com/starford/atelier/internal/store"
)

// TestDB creates a temporary SQLite record store that is removed on cleanup.
func TestDB(t *testing.T) *store.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "atelier-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := store.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestBlobs creates a temporary blob directory with an FS provider.
func TestBlobs(t *testing.T) (string, *blob.FS) {
	t.Helper()
	dir := t.TempDir()
	fs, err := blob.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, fs
}
