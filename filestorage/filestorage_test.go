package filestorage

import (
	"path/filepath"
	"testing"

	"github.com/linxGnu/grocksdb"

	"github.com/Moonsong-Labs/storage-hub-sub003/crypto"
	"github.com/Moonsong-Labs/storage-hub-sub003/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	opts := grocksdb.NewDefaultOptions()
	opts.SetCreateIfMissing(true)
	opts.SetCreateIfMissingColumnFamilies(true)

	names := append([]string{"default"}, ColumnFamilies...)
	optsList := make([]*grocksdb.Options, len(names))
	for i := range optsList {
		optsList[i] = opts
	}

	path := filepath.Join(t.TempDir(), "files.db")
	db, handles, err := grocksdb.OpenDbColumnFamilies(opts, path, names, optsList)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(db.Close)

	cfHandles := make(map[string]*grocksdb.ColumnFamilyHandle, len(ColumnFamilies))
	for i, name := range names[1:] {
		cfHandles[name] = handles[i+1]
	}
	return New(db, cfHandles)
}

// chunkedFile returns metadata for a file made of chunks, with Fingerprint
// set to the chunks' Merkle root and Size to their summed length; callers
// override Size to declare the chunk count they need.
func chunkedFile(t *testing.T, chunks [][]byte) types.FileMetadata {
	t.Helper()
	var size uint64
	for _, c := range chunks {
		size += uint64(len(c))
	}
	root := crypto.MerkleRoot(chunks)
	return types.FileMetadata{
		Owner:       []byte("alice"),
		BucketID:    crypto.HashBytes([]byte("bucket")),
		Location:    []byte("/path/to/file"),
		Size:        size,
		Fingerprint: root,
	}
}

func TestWriteChunkUnknownFileRejected(t *testing.T) {
	s := openTestStore(t)
	key := crypto.HashBytes([]byte("unregistered"))
	if _, err := s.WriteChunk(key, 0, []byte("data")); err != types.ErrFileDoesNotExist {
		t.Fatalf("expected ErrFileDoesNotExist, got %v", err)
	}
}

func TestWriteChunkCompletesFile(t *testing.T) {
	s := openTestStore(t)
	chunks := [][]byte{[]byte("chunk-zero"), []byte("chunk-one"), []byte("chunk-two")}
	m := chunkedFile(t, chunks)
	m.Size = uint64(types.FileChunkSize)*2 + uint64(len(chunks[2]))
	key := m.FileKey()

	if err := s.InsertFile(key, m); err != nil {
		t.Fatal(err)
	}

	for i, c := range chunks[:len(chunks)-1] {
		outcome, err := s.WriteChunk(key, types.ChunkId(i), c)
		if err != nil {
			t.Fatal(err)
		}
		if outcome != types.FileIncomplete {
			t.Fatalf("expected chunk %d to leave the file incomplete", i)
		}
	}

	outcome, err := s.WriteChunk(key, types.ChunkId(len(chunks)-1), chunks[len(chunks)-1])
	if err != nil {
		t.Fatal(err)
	}
	if outcome != types.FileComplete {
		t.Fatal("expected the final chunk to complete the file")
	}
}

func TestWriteChunkDuplicateRejected(t *testing.T) {
	s := openTestStore(t)
	chunks := [][]byte{[]byte("only-chunk")}
	m := chunkedFile(t, chunks)
	m.Size = uint64(len(chunks[0]))
	key := m.FileKey()

	if err := s.InsertFile(key, m); err != nil {
		t.Fatal(err)
	}
	if _, err := s.WriteChunk(key, 0, chunks[0]); err != nil {
		t.Fatal(err)
	}
	if _, err := s.WriteChunk(key, 0, chunks[0]); err != types.ErrFileChunkAlreadyExists {
		t.Fatalf("expected ErrFileChunkAlreadyExists, got %v", err)
	}
}

func TestWriteChunkFingerprintMismatchRejected(t *testing.T) {
	s := openTestStore(t)
	chunks := [][]byte{[]byte("a"), []byte("b")}
	m := chunkedFile(t, chunks)
	m.Size = uint64(types.FileChunkSize) + uint64(len(chunks[1]))
	m.Fingerprint = crypto.HashBytes([]byte("wrong fingerprint"))
	key := m.FileKey()

	if err := s.InsertFile(key, m); err != nil {
		t.Fatal(err)
	}
	if _, err := s.WriteChunk(key, 0, chunks[0]); err != nil {
		t.Fatal(err)
	}
	if _, err := s.WriteChunk(key, 1, chunks[1]); err != types.ErrFingerprintMismatch {
		t.Fatalf("expected ErrFingerprintMismatch on the completing write, got %v", err)
	}
}

func TestGetChunkAndMetadata(t *testing.T) {
	s := openTestStore(t)
	chunks := [][]byte{[]byte("solo")}
	m := chunkedFile(t, chunks)
	m.Size = uint64(len(chunks[0]))
	key := m.FileKey()

	if err := s.InsertFile(key, m); err != nil {
		t.Fatal(err)
	}
	if _, err := s.WriteChunk(key, 0, chunks[0]); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetChunk(key, 0)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "solo" {
		t.Errorf("expected %q, got %q", "solo", got)
	}

	gotMeta, err := s.GetMetadata(key)
	if err != nil {
		t.Fatal(err)
	}
	if gotMeta.FileKey() != key {
		t.Error("round-tripped metadata does not derive the same file key")
	}
}

func TestGenerateProofVerifies(t *testing.T) {
	s := openTestStore(t)
	chunks := [][]byte{[]byte("chunk-a"), []byte("chunk-bb"), []byte("chunk-ccc"), []byte("chunk-dddd")}
	m := chunkedFile(t, chunks)
	m.Size = uint64(types.FileChunkSize)*3 + uint64(len(chunks[3]))
	key := m.FileKey()

	if err := s.InsertFile(key, m); err != nil {
		t.Fatal(err)
	}
	for i, c := range chunks {
		if _, err := s.WriteChunk(key, types.ChunkId(i), c); err != nil {
			t.Fatal(err)
		}
	}

	proof, err := s.GenerateProof(key, []types.ChunkId{1, 3})
	if err != nil {
		t.Fatal(err)
	}
	if proof.FingerprintRoot != m.Fingerprint {
		t.Fatal("proof fingerprint root mismatch")
	}
	if len(proof.ProvenChunks) != 2 {
		t.Fatalf("expected 2 proven chunks, got %d", len(proof.ProvenChunks))
	}
	for _, pc := range proof.ProvenChunks {
		if !crypto.VerifyChunkProof(pc.Data, pc.MerkleProof, uint64(pc.ChunkId), pc.NumChunks, proof.FingerprintRoot) {
			t.Errorf("chunk %d failed to verify", pc.ChunkId)
		}
	}
}

func TestDeleteFileRemovesChunksAndMetadata(t *testing.T) {
	s := openTestStore(t)
	chunks := [][]byte{[]byte("x"), []byte("y")}
	m := chunkedFile(t, chunks)
	m.Size = uint64(types.FileChunkSize) + uint64(len(chunks[1]))
	key := m.FileKey()

	if err := s.InsertFile(key, m); err != nil {
		t.Fatal(err)
	}
	if _, err := s.WriteChunk(key, 0, chunks[0]); err != nil {
		t.Fatal(err)
	}
	if _, err := s.WriteChunk(key, 1, chunks[1]); err != nil {
		t.Fatal(err)
	}

	if err := s.DeleteFile(key); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetMetadata(key); err != types.ErrFileDoesNotExist {
		t.Fatalf("expected metadata to be gone after DeleteFile, got %v", err)
	}
	if _, err := s.GetChunk(key, 0); err != types.ErrFileDoesNotExist {
		t.Fatalf("expected chunk 0 to be gone after DeleteFile, got %v", err)
	}
}
