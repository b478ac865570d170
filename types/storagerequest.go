package types

// storagerequest.go models the on-chain Storage Request record and the
// node-local bookkeeping needed to recover from a partially fulfilled one.

// StorageRequest is the on-chain record created when a user asks the
// network to store a file. Its lifecycle is created -> fulfilled (enough
// BSPs confirmed, and the MSP accepted, if one was named) -> deleted;
// expiration is enforced on-chain, not here.
type StorageRequest struct {
	Metadata          FileMetadata
	AllowedUploaders  []PeerID
	RequiredBSPCount  uint32
	MSPID             *ProviderID
}

// FileKey is a convenience accessor over the embedded metadata.
func (r StorageRequest) FileKey() Hash {
	return r.Metadata.FileKey()
}

// IncompleteStorageRequestMetadata is node-local recovery state for a
// Storage Request that was only partially fulfilled and must be rolled
// back: it is removed once both PendingBSPRemoval and PendingBucketRemoval
// are empty/false.
type IncompleteStorageRequestMetadata struct {
	Owner       []byte
	BucketID    Hash
	FileKey     Hash
	Size        uint64
	Fingerprint Hash

	PendingBSPRemoval    []ProviderID
	PendingBucketRemoval bool
}

// Done reports whether this bookkeeping entry no longer needs to be kept
// around: no provider is still waiting to be rolled back, and the bucket
// side of the rollback is also complete.
func (m IncompleteStorageRequestMetadata) Done() bool {
	return len(m.PendingBSPRemoval) == 0 && !m.PendingBucketRemoval
}
