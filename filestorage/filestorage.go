// Package filestorage implements types.FileStorage: one grocksdb-backed,
// process-wide store of file metadata and chunks, per spec.md §4.4. Unlike
// the Forest (one database per bucket), File Storage is a single database
// shared by every file the node holds, with chunk keys namespaced by file
// key.
package filestorage

import (
	"encoding/binary"
	"sort"

	"github.com/linxGnu/grocksdb"

	"github.com/Moonsong-Labs/storage-hub-sub003/crypto"
	"github.com/Moonsong-Labs/storage-hub-sub003/encoding"
	"github.com/Moonsong-Labs/storage-hub-sub003/persist/migrations"
	"github.com/Moonsong-Labs/storage-hub-sub003/types"
)

const (
	metadataCF = "file_metadata"
	chunksCF   = "file_chunks"
	countsCF   = "file_chunk_counts"
)

// ColumnFamilies is the set of column families an on-disk File Storage
// database is opened with, for wiring into migrations.OpenDBWithMigrations.
var ColumnFamilies = []string{metadataCF, chunksCF, countsCF}

// SchemaMigrations is the File Storage schema's migration set; empty for
// now, appended to (never renumbered) as the schema evolves.
var SchemaMigrations = migrations.NewMigrationRunner(nil)

// Store is the grocksdb-backed types.FileStorage implementation.
type Store struct {
	db         *grocksdb.DB
	metadataCF *grocksdb.ColumnFamilyHandle
	chunksCF   *grocksdb.ColumnFamilyHandle
	countsCF   *grocksdb.ColumnFamilyHandle
}

// New wraps an already-opened database (as returned by
// migrations.OpenDBWithMigrations with ColumnFamilies) as a Store.
func New(db *grocksdb.DB, cfHandles map[string]*grocksdb.ColumnFamilyHandle) *Store {
	return &Store{
		db:         db,
		metadataCF: cfHandles[metadataCF],
		chunksCF:   cfHandles[chunksCF],
		countsCF:   cfHandles[countsCF],
	}
}

func chunkKey(fileKey types.Hash, chunkID types.ChunkId) []byte {
	key := make([]byte, 32+8)
	copy(key, fileKey[:])
	binary.BigEndian.PutUint64(key[32:], uint64(chunkID))
	return key
}

// InsertFile registers m's metadata under key, so subsequent WriteChunk
// calls for key are accepted.
func (s *Store) InsertFile(key types.Hash, m types.FileMetadata) error {
	wo := grocksdb.NewDefaultWriteOptions()
	defer wo.Destroy()
	return s.db.PutCF(wo, s.metadataCF, key[:], encoding.Marshal(m))
}

// GetMetadata returns the metadata registered for key, or
// types.ErrFileDoesNotExist if key was never inserted.
func (s *Store) GetMetadata(key types.Hash) (types.FileMetadata, error) {
	ro := grocksdb.NewDefaultReadOptions()
	defer ro.Destroy()

	value, err := s.db.GetCF(ro, s.metadataCF, key[:])
	if err != nil {
		return types.FileMetadata{}, err
	}
	defer value.Free()
	if !value.Exists() {
		return types.FileMetadata{}, types.ErrFileDoesNotExist
	}

	var m types.FileMetadata
	if err := encoding.Unmarshal(value.Data(), &m); err != nil {
		return types.FileMetadata{}, err
	}
	return m, nil
}

func (s *Store) presentCount(key types.Hash) (uint64, error) {
	ro := grocksdb.NewDefaultReadOptions()
	defer ro.Destroy()
	value, err := s.db.GetCF(ro, s.countsCF, key[:])
	if err != nil {
		return 0, err
	}
	defer value.Free()
	if !value.Exists() {
		return 0, nil
	}
	return binary.LittleEndian.Uint64(value.Data()), nil
}

func (s *Store) setPresentCount(key types.Hash, count uint64) error {
	wo := grocksdb.NewDefaultWriteOptions()
	defer wo.Destroy()
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], count)
	return s.db.PutCF(wo, s.countsCF, key[:], buf[:])
}

// WriteChunk inserts the bytes for chunkID under key's file. It returns
// types.ErrFileDoesNotExist if the file was never registered,
// types.ErrFileChunkAlreadyExists if this chunk id is already stored, and
// types.ErrFingerprintMismatch if this write completes the file but the
// resulting chunk tree's root disagrees with the declared fingerprint.
func (s *Store) WriteChunk(key types.Hash, chunkID types.ChunkId, data []byte) (types.WriteOutcome, error) {
	m, err := s.GetMetadata(key)
	if err != nil {
		return types.FileIncomplete, err
	}

	ro := grocksdb.NewDefaultReadOptions()
	existing, err := s.db.GetCF(ro, s.chunksCF, chunkKey(key, chunkID))
	ro.Destroy()
	if err != nil {
		return types.FileIncomplete, err
	}
	alreadyPresent := existing.Exists()
	existing.Free()
	if alreadyPresent {
		return types.FileIncomplete, types.ErrFileChunkAlreadyExists
	}

	wo := grocksdb.NewDefaultWriteOptions()
	err = s.db.PutCF(wo, s.chunksCF, chunkKey(key, chunkID), data)
	wo.Destroy()
	if err != nil {
		return types.FileIncomplete, err
	}

	count, err := s.presentCount(key)
	if err != nil {
		return types.FileIncomplete, err
	}
	count++
	if err := s.setPresentCount(key, count); err != nil {
		return types.FileIncomplete, err
	}

	chunksCount := m.ChunksCount()
	if count < chunksCount {
		return types.FileIncomplete, nil
	}

	chunks, err := s.allChunks(key, chunksCount)
	if err != nil {
		return types.FileIncomplete, err
	}
	root := crypto.MerkleRoot(chunks)
	if root != m.Fingerprint {
		return types.FileIncomplete, types.ErrFingerprintMismatch
	}
	return types.FileComplete, nil
}

// GetChunk returns the stored bytes for chunkID within key's file.
func (s *Store) GetChunk(key types.Hash, chunkID types.ChunkId) ([]byte, error) {
	ro := grocksdb.NewDefaultReadOptions()
	defer ro.Destroy()
	value, err := s.db.GetCF(ro, s.chunksCF, chunkKey(key, chunkID))
	if err != nil {
		return nil, err
	}
	defer value.Free()
	if !value.Exists() {
		return nil, types.ErrFileDoesNotExist
	}
	return append([]byte(nil), value.Data()...), nil
}

// allChunks reads chunks 0..count-1 for key, in order. It returns
// types.ErrInternal if any expected chunk is missing.
func (s *Store) allChunks(key types.Hash, count uint64) ([][]byte, error) {
	chunks := make([][]byte, count)
	for i := uint64(0); i < count; i++ {
		data, err := s.GetChunk(key, types.ChunkId(i))
		if err != nil {
			return nil, types.ErrInternal
		}
		chunks[i] = data
	}
	return chunks, nil
}

// GenerateProof builds a KeyProof covering chunkIDs: every file referenced
// by a proof submission must be complete, since building one chunk's
// inclusion proof requires reading every chunk of the file in order.
func (s *Store) GenerateProof(key types.Hash, chunkIDs []types.ChunkId) (types.KeyProof, error) {
	m, err := s.GetMetadata(key)
	if err != nil {
		return types.KeyProof{}, err
	}
	chunksCount := m.ChunksCount()

	chunks, err := s.allChunks(key, chunksCount)
	if err != nil {
		return types.KeyProof{}, err
	}

	sorted := append([]types.ChunkId(nil), chunkIDs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	proven := make([]types.ProvenChunk, 0, len(sorted))
	for _, id := range sorted {
		root, leaf, hashSet, numLeaves, err := crypto.BuildChunkProof(chunks, uint64(id))
		if err != nil {
			return types.KeyProof{}, types.ErrInternal
		}
		if root != m.Fingerprint {
			return types.KeyProof{}, types.ErrFingerprintMismatch
		}
		proven = append(proven, types.ProvenChunk{
			ChunkId:     id,
			Data:        leaf,
			MerkleProof: hashSet,
			NumChunks:   numLeaves,
		})
	}

	return types.KeyProof{
		ProvenChunks:    proven,
		ChallengeCount:  m.ChunksToCheck(),
		FingerprintRoot: m.Fingerprint,
	}, nil
}

// DeleteFile removes key's metadata, chunk-count bookkeeping, and every
// stored chunk.
func (s *Store) DeleteFile(key types.Hash) error {
	m, err := s.GetMetadata(key)
	if err != nil {
		return err
	}

	batch := grocksdb.NewWriteBatch()
	defer batch.Destroy()

	batch.DeleteCF(s.metadataCF, key[:])
	batch.DeleteCF(s.countsCF, key[:])
	for i := uint64(0); i < m.ChunksCount(); i++ {
		batch.DeleteCF(s.chunksCF, chunkKey(key, types.ChunkId(i)))
	}

	wo := grocksdb.NewDefaultWriteOptions()
	defer wo.Destroy()
	return s.db.Write(wo, batch)
}
