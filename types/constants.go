package types

// constants.go collects the fixed, network-wide parameters that the forest
// and file storage layers are built around. These mirror the role that
// modules.SectorSize and friends play in the teacher codebase: small,
// globally-shared numbers that many packages import instead of re-deriving.

const (
	// FileChunkSize is the maximum size, in bytes, of a single file chunk.
	// Chunks are 0-indexed and every chunk except possibly the last one is
	// exactly this size.
	FileChunkSize = 4 << 20 // 4 MiB

	// FileSizeToChallenges controls how many bytes of file content must exist
	// before the storage-proof protocol requires an additional chunk to be
	// covered by a single key proof. See FileMetadata.ChunksToCheck.
	FileSizeToChallenges = FileChunkSize * 20

	// BatchChunkFileTransferMaxSize bounds the total serialized size of a
	// single outbound chunk-transfer batch (§4.9).
	BatchChunkFileTransferMaxSize = 1 << 20 // 1 MiB

	// MinChunksToCheck is the floor on FileMetadata.ChunksToCheck: even a
	// one-byte file must have at least one of its chunks checked.
	MinChunksToCheck = 1
)
