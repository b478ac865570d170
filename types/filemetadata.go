package types

import (
	"errors"

	"github.com/Moonsong-Labs/storage-hub-sub003/crypto"
)

// ErrZeroSizeFile is returned by FileMetadata validation for a declared size
// of 0. A zero-size file is rejected before it ever reaches File Storage; it
// is not a representable input.
var ErrZeroSizeFile = errors.New("file metadata declares a zero size")

// FileMetadata is the canonical description of a stored file. FileKey,
// ChunksCount, and ChunksToCheck are all pure functions of these fields.
type FileMetadata struct {
	Owner       []byte
	BucketID    Hash
	Location    []byte
	Size        uint64
	Fingerprint Hash
}

// Validate rejects metadata the rest of the system must never be asked to
// store, namely a zero-size file (§8 boundary behavior).
func (m FileMetadata) Validate() error {
	if m.Size == 0 {
		return ErrZeroSizeFile
	}
	return nil
}

// FileKey derives the file's 32-byte content-addressed identifier:
// H(owner ∥ bucket_id ∥ location ∥ size ∥ fingerprint). It is stable for as
// long as the metadata fields are unchanged, and is the leaf identity used
// in every Forest and every on-chain message about this file.
func (m FileMetadata) FileKey() Hash {
	return crypto.HashAll(m.Owner, m.BucketID, m.Location, m.Size, m.Fingerprint)
}

// ChunksCount returns ⌈size / FileChunkSize⌉, the number of chunk ids in
// [0, ChunksCount) that a complete file occupies.
func (m FileMetadata) ChunksCount() uint64 {
	return ceilDiv(m.Size, FileChunkSize)
}

// ChunksToCheck returns max(1, ⌈size / FileSizeToChallenges⌉), the number of
// chunks a single storage proof for this file must cover.
func (m FileMetadata) ChunksToCheck() uint64 {
	n := ceilDiv(m.Size, FileSizeToChallenges)
	if n < MinChunksToCheck {
		return MinChunksToCheck
	}
	return n
}

func ceilDiv(a, b uint64) uint64 {
	if b == 0 {
		return 0
	}
	if a == 0 {
		return 0
	}
	return (a + b - 1) / b
}
