package persist

import (
	"path/filepath"
	"testing"

	bolt "go.etcd.io/bbolt"
)

// TestOpenDatabase checks opening a fresh database, writing to it, closing
// it, and reopening it with the same metadata.
func TestOpenDatabase(t *testing.T) {
	dir := t.TempDir()
	meta := Metadata{"Test DB", "1.0.0"}
	path := filepath.Join(dir, "test.db")

	db, err := OpenDatabase(meta, path)
	if err != nil {
		t.Fatal(err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte("Bucket"))
		if err != nil {
			return err
		}
		return b.Put([]byte("key"), []byte("value"))
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := db.Close(); err != nil {
		t.Fatal(err)
	}

	db2, err := OpenDatabase(meta, path)
	if err != nil {
		t.Fatal(err)
	}
	defer db2.Close()

	var got []byte
	err = db2.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte("Bucket"))
		got = append(got, b.Get([]byte("key"))...)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "value" {
		t.Errorf("expected %q, got %q", "value", got)
	}
}

// TestOpenDatabaseWrongMetadata checks that reopening a database with a
// different header or version is rejected.
func TestOpenDatabaseWrongMetadata(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")

	db, err := OpenDatabase(Metadata{"Header", "1.0.0"}, path)
	if err != nil {
		t.Fatal(err)
	}
	if err := db.Close(); err != nil {
		t.Fatal(err)
	}

	if _, err := OpenDatabase(Metadata{"WrongHeader", "1.0.0"}, path); err != ErrBadHeader {
		t.Errorf("expected ErrBadHeader, got %v", err)
	}
	if _, err := OpenDatabase(Metadata{"Header", "2.0.0"}, path); err != ErrBadVersion {
		t.Errorf("expected ErrBadVersion, got %v", err)
	}
}
