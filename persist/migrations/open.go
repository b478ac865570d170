package migrations

import (
	"fmt"

	"github.com/linxGnu/grocksdb"
)

// DefaultOptions returns the grocksdb.Options this package opens migrated
// databases with: column families created automatically, a bloom-filter
// block-based table to keep point lookups (key proof verification, chunk
// reads) cheap, and a target file size tuned for the chunk- and
// trie-node-sized values the Forest and File Storage stores hold.
func DefaultOptions() *grocksdb.Options {
	bbto := grocksdb.NewDefaultBlockBasedTableOptions()
	bbto.SetFilterPolicy(grocksdb.NewBloomFilter(10))
	bbto.SetBlockCache(grocksdb.NewLRUCache(64 << 20))

	opts := grocksdb.NewDefaultOptions()
	opts.SetCreateIfMissing(true)
	opts.SetCreateIfMissingColumnFamilies(true)
	opts.SetBlockBasedTableFactory(bbto)
	opts.SetTargetFileSizeBase(64 << 20)
	return opts
}

// OpenResult is the outcome of OpenDBWithMigrations: the database handle, a
// handle per requested current-schema column family (the schema-version CF
// and any still-present deprecated CFs have already been closed out by the
// migration run and are not returned), and the schema version the database
// now sits at.
type OpenResult struct {
	DB             *grocksdb.DB
	ColumnFamilies map[string]*grocksdb.ColumnFamilyHandle
	SchemaVersion  uint32
}

// OpenDBWithMigrations opens the grocksdb database at path, merges in any
// column family that already exists on disk (so a deprecated-but-undropped
// CF from an interrupted migration is seen rather than rejected), runs
// every pending migration in runner, and returns handles for exactly the
// caller's current-schema column families.
func OpenDBWithMigrations(path string, currentCFs []string, runner *MigrationRunner) (*OpenResult, error) {
	if err := runner.ValidateOrder(); err != nil {
		return nil, err
	}
	if err := runner.ValidateCurrentSchemaCFs(currentCFs); err != nil {
		return nil, err
	}

	opts := DefaultOptions()

	existing, err := grocksdb.ListColumnFamilies(opts, path)
	if err != nil {
		// A brand-new database has no column family manifest yet; that is
		// not an error condition here.
		existing = nil
	}

	// RocksDB refuses to open a database unless its "default" column family
	// is among those requested, so it is always included.
	names := MergeColumnFamilies(append([]string{"default"}, currentCFs...), existing)
	cfOpts := make([]*grocksdb.Options, len(names))
	for i := range names {
		cfOpts[i] = opts
	}

	db, handles, err := grocksdb.OpenDbColumnFamilies(opts, path, names, cfOpts)
	if err != nil {
		return nil, fmt.Errorf("migrations: opening %s: %w", path, err)
	}

	cfHandles := make(map[string]*grocksdb.ColumnFamilyHandle, len(names))
	for i, name := range names {
		cfHandles[name] = handles[i]
	}

	version, err := runner.RunPending(db, cfHandles)
	if err != nil {
		db.Close()
		return nil, err
	}

	result := &OpenResult{
		DB:             db,
		ColumnFamilies: make(map[string]*grocksdb.ColumnFamilyHandle, len(currentCFs)),
		SchemaVersion:  version,
	}
	for _, cf := range currentCFs {
		handle, ok := cfHandles[cf]
		if !ok {
			db.Close()
			return nil, fmt.Errorf("migrations: column family %q missing after migration run", cf)
		}
		result.ColumnFamilies[cf] = handle
	}
	return result, nil
}
