package types

import "context"

// queries.go declares the narrow, read-only runtime-API surface the
// Blockchain Service exposes to tasks (spec.md §6, "Chain queries"). The
// chain client itself is an external collaborator; only this interface
// lives in the core, so tasks can be tested against a fake without a real
// chain connection.
type ChainQueries interface {
	// StorageProviderID returns the role this node is registered under, or
	// RoleNone if it is not registered as any kind of storage provider.
	StorageProviderID(ctx context.Context) (ProviderID, ProviderRole, error)

	StorageProviderCapacity(ctx context.Context, id ProviderID) (uint64, error)
	AvailableStorageCapacity(ctx context.Context, id ProviderID) (uint64, error)
	EarliestChangeCapacityBlock(ctx context.Context, id ProviderID) (uint64, error)

	SlashAmountPerMaxFileSize(ctx context.Context) (uint64, error)

	LastTickProviderSubmittedProof(ctx context.Context, id ProviderID) (uint64, error)
	LastCheckpointChallengeTick(ctx context.Context) (uint64, error)
	NextChallengeTickForProvider(ctx context.Context, id ProviderID) (uint64, error)

	LastCheckpointChallenges(ctx context.Context, tick uint64) ([]CustomChallenge, error)

	ForestChallengesFromSeed(ctx context.Context, seed ChallengeSeed, id ProviderID) ([]Hash, error)
	ChallengesFromSeed(ctx context.Context, seed ChallengeSeed, id ProviderID, count uint64) ([]Hash, error)

	ProviderForestRoot(ctx context.Context, id ProviderID) (Hash, error)
}

// StorageRequestResponse is one line of a msp_respond_storage_requests
// call: accept the named file key, or reject it with a reason.
type StorageRequestResponse struct {
	FileKey Hash
	Reject  bool
	Reason  string // empty when Reject is false
}

// ChainCalls declares the signed extrinsics a task may ask the Blockchain
// Service to submit (spec.md §6, "Chain calls submitted"). The Blockchain
// Service is responsible for extrinsic construction, signing, submission,
// and retry; a task only supplies the call's logical arguments.
type ChainCalls interface {
	SubmitProof(ctx context.Context, proof StorageProof, provider *ProviderID) error
	MspRespondStorageRequests(ctx context.Context, bucketID Hash, responses []StorageRequestResponse) error
	MspRespondMoveBucketRequest(ctx context.Context, bucketID Hash, accept bool) error
	ChangeCapacity(ctx context.Context, newCapacity uint64) error
}
