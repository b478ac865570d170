package migrations

import (
	"path/filepath"
	"testing"

	"github.com/linxGnu/grocksdb"
)

type dropOldFingerprintIndex struct{}

func (dropOldFingerprintIndex) Version() uint32                    { return 1 }
func (dropOldFingerprintIndex) DeprecatedColumnFamilies() []string { return []string{"fingerprint_index_v0"} }
func (dropOldFingerprintIndex) Description() string                { return "drop the per-chunk fingerprint_index_v0 column family, superseded by the trie's own proof index" }

// TestOpenDBWithMigrationsFreshDatabase checks that a brand-new database is
// opened at the latest schema version with none of the now-nonexistent
// deprecated column families present.
func TestOpenDBWithMigrationsFreshDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fresh.db")
	runner := NewMigrationRunner([]Migration{dropOldFingerprintIndex{}})

	result, err := OpenDBWithMigrations(path, []string{"metadata", "chunks"}, runner)
	if err != nil {
		t.Fatal(err)
	}
	defer result.DB.Close()

	if result.SchemaVersion != 1 {
		t.Errorf("expected schema version 1, got %d", result.SchemaVersion)
	}
	for _, cf := range []string{"metadata", "chunks"} {
		if _, ok := result.ColumnFamilies[cf]; !ok {
			t.Errorf("expected column family %q to be open", cf)
		}
	}
}

// TestOpenDBWithMigrationsDropsStraggler simulates a database that was
// closed between column-family drops of a single migration: the deprecated
// CF still exists on disk and the schema version has not advanced. A second
// open must finish the job.
func TestOpenDBWithMigrationsDropsStraggler(t *testing.T) {
	path := filepath.Join(t.TempDir(), "straggler.db")

	opts := DefaultOptions()
	names := []string{"default", schemaVersionCF, "metadata", "chunks", "fingerprint_index_v0"}
	cfOpts := make([]*grocksdb.Options, len(names))
	for i := range cfOpts {
		cfOpts[i] = opts
	}
	db, handles, err := grocksdb.OpenDbColumnFamilies(opts, path, names, cfOpts)
	if err != nil {
		t.Fatal(err)
	}
	for _, h := range handles {
		h.Destroy()
	}
	db.Close()

	runner := NewMigrationRunner([]Migration{dropOldFingerprintIndex{}})
	result, err := OpenDBWithMigrations(path, []string{"metadata", "chunks"}, runner)
	if err != nil {
		t.Fatal(err)
	}
	defer result.DB.Close()

	if result.SchemaVersion != 1 {
		t.Errorf("expected schema version 1 after cleanup, got %d", result.SchemaVersion)
	}
	if _, ok := result.ColumnFamilies["fingerprint_index_v0"]; ok {
		t.Error("expected the deprecated column family to be absent from the result")
	}
}

// TestOpenDBWithMigrationsRejectsDowngrade checks that a database stamped
// with a schema version newer than the runner knows about is refused.
func TestOpenDBWithMigrationsRejectsDowngrade(t *testing.T) {
	path := filepath.Join(t.TempDir(), "future.db")

	future := NewMigrationRunner([]Migration{
		dropOldFingerprintIndex{},
		fakeMigration{version: 2, description: "second"},
	})
	result, err := OpenDBWithMigrations(path, []string{"metadata", "chunks"}, future)
	if err != nil {
		t.Fatal(err)
	}
	result.DB.Close()

	old := NewMigrationRunner([]Migration{dropOldFingerprintIndex{}})
	if _, err := OpenDBWithMigrations(path, []string{"metadata", "chunks"}, old); err == nil {
		t.Error("expected an older binary to refuse a database from a newer schema version")
	}
}
