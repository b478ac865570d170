package types

// events.go lists the domain events the Blockchain Service decodes from
// each imported block's event list and fans out to task inboxes (spec.md
// §4.5, §6), plus the internal events the Blockchain Service itself
// produces once a queued request is ready to be processed.

// NewStorageRequest is emitted when a user places a new storage request
// on-chain. It triggers the File Upload Task (§4.7).
type NewStorageRequest struct {
	Owner       []byte
	BucketID    Hash
	Location    []byte
	Fingerprint Hash
	Size        uint64
	FileKey     Hash
	UserPeerIDs []PeerID
	MSPID       *ProviderID
}

// RemoteUploadRequest is a peer's inbound chunk upload for a file this node
// is accepting as an MSP (spec.md §4.7). It arrives over PeerTransfer, not a
// chain event, but is modeled alongside the chain events it is processed
// next to.
type RemoteUploadRequest struct {
	Peer         PeerID
	FileKey      Hash
	FileKeyProof KeyProof
}

// BspConfirmedStoring is emitted when one or more BSPs confirm they now
// store a set of file keys, along with the new Forest root that follows
// from those insertions.
type BspConfirmedStoring struct {
	BSPID    ProviderID
	FileKeys []Hash
	NewRoot  Hash
}

// BspConfirmStoppedStoring is emitted when a BSP confirms it has stopped
// storing a file key.
type BspConfirmStoppedStoring struct {
	BSPID   ProviderID
	FileKey Hash
}

// MspAcceptedStorageRequest is emitted once an MSP's on-chain accept for a
// file key lands in a block.
type MspAcceptedStorageRequest struct {
	FileKey Hash
}

// SpStopStoringInsolventUser is emitted when a storage provider is released
// from its obligation to store a file belonging to an insolvent user.
type SpStopStoringInsolventUser struct {
	ProviderID ProviderID
	FileKey    Hash
}

// FileDeletionRequested is emitted when a user (or their delegate) signs an
// intention to delete a file.
type FileDeletionRequested struct {
	SignedDeleteIntention []byte
	Signature             []byte
}

// ProofSubmittedForPendingFileDeletionRequest is emitted once a provider's
// next proof submission has covered a file key that was pending deletion,
// clearing it to proceed.
type ProofSubmittedForPendingFileDeletionRequest struct {
	FileKey Hash
}

// MoveBucketRequestedForMsp is emitted when a bucket-move request names
// this node's provider id as the destination MSP. It triggers the Bucket
// Move Task's validation-and-acceptance phase (§4.8).
type MoveBucketRequestedForMsp struct {
	BucketID Hash
}

// MoveBucketAccepted is emitted once this node's on-chain acceptance of a
// bucket-move request lands in a block.
type MoveBucketAccepted struct {
	BucketID Hash
}

// StartMovedBucketDownload is the internal signal that triggers the Bucket
// Move Task's parallel-download phase for a bucket this node has already
// accepted.
type StartMovedBucketDownload struct {
	BucketID Hash
}

// ChallengeTick is one (tick, seed) pair carried by MultipleNewChallengeSeeds.
type ChallengeTick struct {
	Tick uint64
	Seed ChallengeSeed
}

// MultipleNewChallengeSeeds is emitted once per imported block carrying one
// or more new challenge ticks for this provider. It triggers the Proof
// Submission Task's challenge-derivation phase (§4.6).
type MultipleNewChallengeSeeds struct {
	ProviderID ProviderID
	Seeds      []ChallengeTick
}

// CustomChallenge is a checkpoint challenge: a file key the chain wants
// proven (or proven-as-removed) independently of the regular forest
// challenge derivation.
type CustomChallenge struct {
	Key            Hash
	ShouldRemoveKey bool
}

// ProcessSubmitProofRequest is the event the Blockchain Service surfaces
// once a previously queued SubmitProofRequest has acquired the Forest-root
// write lock and is ready to be processed (§4.5, §4.6).
type ProcessSubmitProofRequest struct {
	ProviderID          ProviderID
	Tick                uint64
	Seed                ChallengeSeed
	ForestChallenges    []Hash
	CheckpointChallenges []CustomChallenge
	WriteLock           ForestRootWriteLockGuard
}

// SubmitProofRequest is the in-node queued item a ProcessSubmitProofRequest
// is built from once the Blockchain Service has granted it the write lock.
type SubmitProofRequest struct {
	ProviderID           ProviderID
	Tick                 uint64
	Seed                 ChallengeSeed
	ForestChallenges     []Hash
	CheckpointChallenges []CustomChallenge
}

// ForestRootWriteLockGuard is the RAII-style token a task holds while it is
// about to mutate a Forest's root (spec.md §3, §4.5, §9). The holder must
// call Release exactly once, typically via `defer`.
type ForestRootWriteLockGuard interface {
	Release()
}
