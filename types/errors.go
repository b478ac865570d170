package types

import "errors"

// errors.go collects the sentinel errors that cross package boundaries and
// that on-chain rejection reasons are derived from (spec.md §7). Errors
// local to one package (e.g. a trie-internal corruption error) stay in
// that package instead of being declared here.
var (
	// ErrFileDoesNotExist is returned by File Storage operations addressed
	// at a file key that was never inserted (or was already deleted).
	ErrFileDoesNotExist = errors.New("file does not exist")

	// ErrFileChunkAlreadyExists is returned by WriteChunk when the chunk id
	// was already written. It is informational, not fatal: callers may use
	// it as a peer-reputation signal.
	ErrFileChunkAlreadyExists = errors.New("file chunk already exists")

	// ErrFingerprintMismatch is returned when the root computed from a
	// file's stored chunks disagrees with its declared fingerprint. This is
	// a fatal invariant break; the file must be aborted.
	ErrFingerprintMismatch = errors.New("fingerprint and stored file mismatch")

	// ErrReachedMaximumCapacity is the on-chain rejection reason submitted
	// when a provider cannot grow its capacity enough to accept a request.
	ErrReachedMaximumCapacity = errors.New("reached maximum capacity")

	// ErrReceivedInvalidProof is the on-chain rejection reason submitted
	// when a peer's uploaded FileKeyProof fails verification.
	ErrReceivedInvalidProof = errors.New("received invalid proof")

	// ErrInternal is the catch-all on-chain rejection reason for internal
	// trie/persist errors that have no more specific public reason.
	ErrInternal = errors.New("internal error")

	// ErrFileKeyAlreadyPresent is returned by Forest.InsertMetadata when the
	// derived file key is already a member of the Forest.
	ErrFileKeyAlreadyPresent = errors.New("file key already present in forest")

	// ErrForestDeleting is returned by any Forest operation attempted after
	// the handle's deleting flag has been set (spec.md §4.2 deletion
	// procedure, step 1).
	ErrForestDeleting = errors.New("forest handle is being deleted")

	// ErrForestKeyUnknown is returned by ForestStorageHandler.Get when the
	// requested key has never been registered via Create or Snapshot.
	ErrForestKeyUnknown = errors.New("forest key is not known")

	// ErrEmptyForestChallenged is a critical invariant violation: a
	// provider was challenged but its Forest has no leaves at all.
	ErrEmptyForestChallenged = errors.New("forest challenged while empty")

	// ErrForestRootMismatch is a critical invariant violation: the locally
	// computed Forest root disagrees with the root the chain records.
	ErrForestRootMismatch = errors.New("forest root mismatch after mutation")

	// ErrProofOutdated is returned when a queued proof's tick no longer
	// matches the provider's current next-challenge tick: the proof was
	// built against a since-superseded challenge.
	ErrProofOutdated = errors.New("proof is outdated")

	// ErrBucketDownloadInProgress is returned when StartMovedBucketDownload
	// fires for a bucket that already has an in-flight download (spec.md
	// §4.8, §8 scenario 5). It is not itself treated as an error condition
	// by the caller; it signals "nothing to do."
	ErrBucketDownloadInProgress = errors.New("bucket download already in progress")
)
