// Package migrations implements the column-family schema migration runner
// shared by the Forest and File Storage RocksDB stores. A migration does not
// transform data in place; it retires one or more column families that an
// earlier schema version wrote into, in favor of column families a later
// version introduced. Running the set of migrations brings an on-disk
// database from whatever schema version it was last closed at up to the
// current one, dropping anything the newer code no longer reads.
package migrations

import (
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/linxGnu/grocksdb"
)

// schemaVersionCF is the reserved column family the runner uses to persist
// the schema version a database was last migrated to. It is never included
// in a caller's current-schema column family list.
const schemaVersionCF = "__schema_version__"

// schemaVersionKey is the single key written into schemaVersionCF.
var schemaVersionKey = []byte("version")

// Migration describes one schema transition: the version it brings a
// database to, and the column families that version retires.
type Migration interface {
	// Version is the schema version reached once this migration has run.
	// Versions must be unique and, across the registered set, contiguous
	// starting at 1.
	Version() uint32

	// DeprecatedColumnFamilies lists the column family names this
	// migration's version no longer reads or writes. The runner drops
	// them (if present) when applying this migration, and keeps dropping
	// them on every future run as an idempotent cleanup of stragglers.
	DeprecatedColumnFamilies() []string

	// Description is a short human-readable summary, used only in log
	// messages and error wrapping.
	Description() string
}

// MigrationRunner holds an ordered, validated set of migrations and applies
// them against a database's reserved schema-version column family.
type MigrationRunner struct {
	migrations []Migration
}

// NewMigrationRunner builds a runner over migrations, sorted by ascending
// version. It does not validate the set; call ValidateOrder before using it
// against a real database.
func NewMigrationRunner(migrations []Migration) *MigrationRunner {
	sorted := make([]Migration, len(migrations))
	copy(sorted, migrations)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Version() < sorted[j].Version()
	})
	return &MigrationRunner{migrations: sorted}
}

// LatestVersion returns the highest version among the runner's migrations,
// or 0 if there are none.
func (r *MigrationRunner) LatestVersion() uint32 {
	if len(r.migrations) == 0 {
		return 0
	}
	return r.migrations[len(r.migrations)-1].Version()
}

// AllDeprecatedColumnFamilies returns the union of every migration's
// deprecated column family names, so a caller can merge them into the list
// of column families it opens the database with - a CF dropped by an
// earlier run no longer exists on disk and must not be requested, but a CF
// deprecated-but-not-yet-dropped (the database was last closed between
// migrations) must be, or opening the database fails outright.
func (r *MigrationRunner) AllDeprecatedColumnFamilies() map[string]struct{} {
	all := make(map[string]struct{})
	for _, m := range r.migrations {
		for _, cf := range m.DeprecatedColumnFamilies() {
			all[cf] = struct{}{}
		}
	}
	return all
}

// ValidateOrder checks that the runner's migrations form a contiguous
// version sequence starting at 1, with no gaps, repeats, or out-of-order
// entries. A schema with a hole in it almost certainly means a migration
// was deleted or renumbered by mistake.
func (r *MigrationRunner) ValidateOrder() error {
	for i, m := range r.migrations {
		want := uint32(i + 1)
		if m.Version() != want {
			return fmt.Errorf("migrations: expected version %d at position %d, got %d (%s)", want, i, m.Version(), m.Description())
		}
	}
	return nil
}

// ValidateCurrentSchemaCFs checks that none of the column families the
// caller's current schema actually reads and writes collides with a name
// any migration has ever deprecated. Column family names are permanently
// retired once deprecated: reusing one for an unrelated purpose would let a
// stale straggler CF from an old database reappear as if it were live data.
func (r *MigrationRunner) ValidateCurrentSchemaCFs(currentCFs []string) error {
	deprecated := r.AllDeprecatedColumnFamilies()
	for _, cf := range currentCFs {
		if _, ok := deprecated[cf]; ok {
			return fmt.Errorf("migrations: column family %q is permanently retired and cannot be reused", cf)
		}
		if cf == schemaVersionCF {
			return fmt.Errorf("migrations: column family name %q is reserved", schemaVersionCF)
		}
	}
	return nil
}

// MergeColumnFamilies returns the column families a database must be opened
// with: the caller's current schema CFs, the reserved schema-version CF,
// and every column family that exists on disk but is not already in that
// set (so that deprecated-but-not-yet-dropped CFs from a partially applied
// migration are seen, and new CFs the current schema expects but the
// on-disk database predates are created rather than rejected).
func MergeColumnFamilies(currentCFs []string, existingOnDisk []string) []string {
	seen := make(map[string]struct{}, len(currentCFs)+len(existingOnDisk)+1)
	merged := make([]string, 0, len(currentCFs)+len(existingOnDisk)+1)

	add := func(cf string) {
		if _, ok := seen[cf]; ok {
			return
		}
		seen[cf] = struct{}{}
		merged = append(merged, cf)
	}

	add(schemaVersionCF)
	for _, cf := range currentCFs {
		add(cf)
	}
	for _, cf := range existingOnDisk {
		add(cf)
	}
	return merged
}

// ReadSchemaVersion reads the schema version stamped into db's
// schema-version column family handle. A database that has never been
// migrated (the key is absent) reads as version 0.
func ReadSchemaVersion(db *grocksdb.DB, versionCF *grocksdb.ColumnFamilyHandle) (uint32, error) {
	ro := grocksdb.NewDefaultReadOptions()
	defer ro.Destroy()

	value, err := db.GetCF(ro, versionCF, schemaVersionKey)
	if err != nil {
		return 0, err
	}
	defer value.Free()

	data := value.Data()
	if len(data) == 0 {
		return 0, nil
	}
	if len(data) != 4 {
		return 0, fmt.Errorf("migrations: corrupt schema version value (%d bytes)", len(data))
	}
	return binary.LittleEndian.Uint32(data), nil
}

// WriteSchemaVersion stamps version into db's schema-version column family.
func WriteSchemaVersion(db *grocksdb.DB, versionCF *grocksdb.ColumnFamilyHandle, version uint32) error {
	wo := grocksdb.NewDefaultWriteOptions()
	defer wo.Destroy()

	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], version)
	return db.PutCF(wo, versionCF, schemaVersionKey, buf[:])
}

// RunPending brings db from its currently stamped schema version up to the
// runner's latest version. It proceeds in two passes:
//
//   - a cleanup pass, which re-drops the deprecated column families of every
//     migration at or below the current version. This is a no-op in the
//     common case, and only does work if a previous run was interrupted
//     after dropping some but not all of a migration's column families.
//   - an apply pass, which for each pending migration (in ascending version
//     order) drops its deprecated column families and then advances the
//     stamped schema version to that migration's version, so a crash
//     mid-migration resumes cleanly rather than re-running completed steps.
//
// cfHandles maps every open column family name (including ones already
// dropped on a previous, interrupted run - which is why a dropped name may
// simply be absent from the map) to its handle. RunPending returns the
// schema version reached.
func (r *MigrationRunner) RunPending(db *grocksdb.DB, cfHandles map[string]*grocksdb.ColumnFamilyHandle) (uint32, error) {
	versionCF, ok := cfHandles[schemaVersionCF]
	if !ok {
		return 0, fmt.Errorf("migrations: %q column family was not opened", schemaVersionCF)
	}

	current, err := ReadSchemaVersion(db, versionCF)
	if err != nil {
		return 0, fmt.Errorf("migrations: reading schema version: %w", err)
	}

	latest := r.LatestVersion()
	if current > latest {
		return 0, fmt.Errorf("migrations: database schema version %d is newer than the %d this binary knows about", current, latest)
	}

	// Cleanup pass: re-drop deprecated CFs of migrations already applied,
	// in case a previous run dropped some but not all of them before
	// being interrupted.
	for _, m := range r.migrations {
		if m.Version() > current {
			break
		}
		if err := dropColumnFamilies(db, cfHandles, m.DeprecatedColumnFamilies()); err != nil {
			return 0, fmt.Errorf("migrations: cleanup pass for %s: %w", m.Description(), err)
		}
	}

	// Apply pass: run every pending migration in order.
	for _, m := range r.migrations {
		if m.Version() <= current {
			continue
		}
		if err := dropColumnFamilies(db, cfHandles, m.DeprecatedColumnFamilies()); err != nil {
			return 0, fmt.Errorf("migrations: applying %s: %w", m.Description(), err)
		}
		if err := WriteSchemaVersion(db, versionCF, m.Version()); err != nil {
			return 0, fmt.Errorf("migrations: stamping version %d after %s: %w", m.Version(), m.Description(), err)
		}
		current = m.Version()
	}

	return current, nil
}

// dropColumnFamilies drops each named column family still present in
// cfHandles and removes it from the map, so later migrations' cleanup
// passes see it as already gone. Names absent from cfHandles (already
// dropped, or never created on this database) are skipped.
func dropColumnFamilies(db *grocksdb.DB, cfHandles map[string]*grocksdb.ColumnFamilyHandle, names []string) error {
	for _, name := range names {
		handle, ok := cfHandles[name]
		if !ok {
			continue
		}
		if err := db.DropColumnFamily(handle); err != nil {
			return fmt.Errorf("dropping column family %q: %w", name, err)
		}
		handle.Destroy()
		delete(cfHandles, name)
	}
	return nil
}
