package types

import "context"

// interfaces.go declares the capability-set interfaces spec.md §9 calls for
// in place of a class hierarchy: ForestStorage / ForestStorageHandler,
// FileStorage, and the two external collaborator contracts (Indexer,
// PeerTransfer/PeerManager) that the MSP tasks depend on without owning.

// ForestStorage is the capability set one open Forest exposes: membership,
// mutation, proof generation, and root. Concrete implementations (the
// grocksdb-backed forest.Forest, and any in-memory test double) satisfy
// this interface identically.
type ForestStorage interface {
	ContainsFileKey(key Hash) (bool, error)
	InsertMetadata(m FileMetadata) (Hash, error)
	DeleteFileKey(key Hash) error
	GenerateProof(challenges []Hash) (ForestProof, error)
	Root() Hash
}

// ForestStorageHandler manages many ForestStorage instances keyed by an
// opaque key K (a bucket id for MSPs, or the single FixedBSPForestKey for
// BSPs). Lock ordering and lifecycle semantics are spec.md §4.3's.
type ForestStorageHandler interface {
	Get(key Hash) (ForestStorage, bool, error)
	Create(key Hash) (ForestStorage, error)
	Snapshot(src, dest Hash) (ForestStorage, bool, error)
	Remove(key Hash) error
	IsPresent(key Hash) bool
}

// WriteOutcome is the result of writing one chunk: whether the file is now
// complete under its declared ChunksCount.
type WriteOutcome int

const (
	FileIncomplete WriteOutcome = iota
	FileComplete
)

// FileStorage is the capability set for per-file chunked storage (spec.md
// §4.4). A file is immutable once FileComplete has been returned for it.
type FileStorage interface {
	InsertFile(key Hash, m FileMetadata) error
	WriteChunk(key Hash, chunkID ChunkId, data []byte) (WriteOutcome, error)
	GetChunk(key Hash, chunkID ChunkId) ([]byte, error)
	GetMetadata(key Hash) (FileMetadata, error)
	GenerateProof(key Hash, chunkIDs []ChunkId) (KeyProof, error)
	DeleteFile(key Hash) error
}

// Indexer is the narrow read contract the Bucket Move Task depends on for
// bucket file enumeration and peer discovery. It is
// declared here exactly to satisfy spec.md's "indexer database schema" as
// an external collaborator: no SQL or schema lives in this module.
type Indexer interface {
	FilesInBucket(ctx context.Context, bucketID Hash) ([]FileMetadata, error)
	BSPsStoringFile(ctx context.Context, fileKey Hash) ([]PeerID, error)
}

// UploadResult carries a peer's response to an outbound upload_request: a
// file_complete flag per spec.md §6.
type UploadResult struct {
	FileComplete bool
}

// PeerTransfer is the opaque peer protocol surface spec.md §6 describes
// ("Peer protocol surface (opaque to this spec)"). Transport-level
// cryptography and connection management belong to the collaborator behind
// this interface, not to the core.
type PeerTransfer interface {
	UploadRequest(ctx context.Context, peer PeerID, fileKey Hash, proof KeyProof, data []byte) (UploadResult, error)
	DownloadRequest(ctx context.Context, peer PeerID, fileKey Hash, chunkIDs []ChunkId) ([][]byte, error)
}

// PeerManager is the capability the File Transfer Service exposes to tasks
// for scoping which peers may upload which files (spec.md §4.7 "Peer
// authorization is strictly per-file and per-peer").
type PeerManager interface {
	AuthorizePeerForFile(fileKey Hash, peer PeerID) error
	RevokePeerForFile(fileKey Hash, peer PeerID) error
	ReliablePeersForFile(fileKey Hash) ([]PeerID, error)
}
