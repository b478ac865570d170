package persist

import (
	"time"

	bolt "go.etcd.io/bbolt"
)

// metadataBucket holds the Header/Version pair a BoltDatabase was opened
// with, so that re-opening it with different metadata is caught instead of
// silently proceeding against a database from a different schema era.
var metadataBucket = []byte("Metadata")

// BoltDatabase pairs a bbolt database with the Metadata it was opened
// under: a store for small, non-authenticated, process-local state that
// does not belong in the grocksdb-backed Forest or File Storage databases.
// The node wiring does not open one; the extrinsic nonce is kept in memory
// by the Blockchain Service.
type BoltDatabase struct {
	Metadata Metadata
	DB       *bolt.DB
}

// OpenDatabase opens (creating if necessary) a bbolt database at filename,
// tagged with metadata. If the database already has different metadata
// stored in it, OpenDatabase returns ErrBadHeader or ErrBadVersion instead
// of opening it.
func OpenDatabase(metadata Metadata, filename string) (*BoltDatabase, error) {
	db, err := bolt.Open(filename, 0600, &bolt.Options{Timeout: 3 * time.Second})
	if err != nil {
		return nil, err
	}
	boltDB := &BoltDatabase{Metadata: metadata, DB: db}

	err = db.Update(func(tx *bolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists(metadataBucket)
		if err != nil {
			return err
		}
		if bucket.Get([]byte("Header")) == nil {
			// Freshly created database: stamp it with our metadata.
			return boltDB.updateMetadata(tx)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	if err := boltDB.checkMetadata(metadata); err != nil {
		db.Close()
		return nil, err
	}
	return boltDB, nil
}

// checkMetadata verifies that the Header/Version stamped into the database
// match meta.
func (db *BoltDatabase) checkMetadata(meta Metadata) error {
	return db.DB.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(metadataBucket)
		if bucket == nil {
			return ErrBadHeader
		}
		if string(bucket.Get([]byte("Header"))) != meta.Header {
			return ErrBadHeader
		}
		if string(bucket.Get([]byte("Version"))) != meta.Version {
			return ErrBadVersion
		}
		return nil
	})
}

// updateMetadata stamps db.Metadata into the metadata bucket within tx.
func (db *BoltDatabase) updateMetadata(tx *bolt.Tx) error {
	bucket := tx.Bucket(metadataBucket)
	if err := bucket.Put([]byte("Header"), []byte(db.Metadata.Header)); err != nil {
		return err
	}
	return bucket.Put([]byte("Version"), []byte(db.Metadata.Version))
}

// Update runs fn within a read-write bbolt transaction.
func (db *BoltDatabase) Update(fn func(*bolt.Tx) error) error {
	return db.DB.Update(fn)
}

// View runs fn within a read-only bbolt transaction.
func (db *BoltDatabase) View(fn func(*bolt.Tx) error) error {
	return db.DB.View(fn)
}

// Close closes the underlying bbolt database.
func (db *BoltDatabase) Close() error {
	return db.DB.Close()
}
