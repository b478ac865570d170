package blockchain

import (
	"context"

	"github.com/Moonsong-Labs/storage-hub-sub003/types"
)

// calls.go implements types.ChainCalls: the signed extrinsics a task may ask
// the Blockchain Service to submit (spec.md §6). Every call goes through
// submitExtrinsicWithRetry under the service's configured RetryStrategy and
// takes its nonce from the service's own counter (spec.md §4.5, §5 - "Nonce
// counter: owned exclusively by the Blockchain Service actor").

const (
	moduleProofsDealer     = "ProofsDealer"
	moduleFileSystem       = "FileSystem"
	moduleStorageProviders = "StorageProviders"
	callSubmitProof        = "submit_proof"
	callRespondStorageReqs = "msp_respond_storage_requests_multiple_buckets"
	callRespondMoveBucket  = "msp_respond_move_bucket_request"
	callChangeCapacity     = "change_capacity"

	// defaultMaxRetries bounds the retry-go attempt count for every call,
	// submit_proof included; config.ProofSubmissionConfig's
	// MaxSubmissionAttempts is not read here.
	defaultMaxRetries = 3
)

func (s *Service) defaultStrategy(maxTip uint64, shouldRetry func(context.Context) bool) RetryStrategy {
	return RetryStrategy{
		MaxRetries:  defaultMaxRetries,
		MaxTip:      maxTip,
		ShouldRetry: shouldRetry,
	}
}

func (s *Service) submit(ctx context.Context, module, call string, strategy RetryStrategy, args ...interface{}) error {
	opts := ExtrinsicOptions{
		Timeout:    s.config.ExtrinsicRetryTimeout,
		ModuleName: module,
		CallName:   call,
	}
	return submitExtrinsicWithRetry(ctx, opts, strategy, func(ctx context.Context, tip uint64) error {
		nonce := s.nonce.take()
		return s.client.SubmitExtrinsic(ctx, module, call, nonce, tip, args...)
	})
}

// SubmitProof implements types.ChainCalls. It submits with a zero max_tip
// and no should_retry predicate; SubmitProofWithRetry is the variant that
// takes both from the caller.
func (s *Service) SubmitProof(ctx context.Context, proof types.StorageProof, provider *types.ProviderID) error {
	return s.submitProofWithRetry(ctx, proof, provider, s.defaultStrategy(0, nil))
}

// submitProofWithRetry is the extension point tasks/proofsubmission uses to
// supply its own max_tip and should_retry predicate (spec.md §4.6 step 6),
// since plain SubmitProof cannot express those without widening
// types.ChainCalls itself.
func (s *Service) submitProofWithRetry(ctx context.Context, proof types.StorageProof, provider *types.ProviderID, strategy RetryStrategy) error {
	return s.submit(ctx, moduleProofsDealer, callSubmitProof, strategy, proof, provider)
}

// MspRespondStorageRequests implements types.ChainCalls.
func (s *Service) MspRespondStorageRequests(ctx context.Context, bucketID types.Hash, responses []types.StorageRequestResponse) error {
	return s.submit(ctx, moduleFileSystem, callRespondStorageReqs, s.defaultStrategy(0, nil), bucketID, responses)
}

// MspRespondMoveBucketRequest implements types.ChainCalls.
func (s *Service) MspRespondMoveBucketRequest(ctx context.Context, bucketID types.Hash, accept bool) error {
	return s.submit(ctx, moduleFileSystem, callRespondMoveBucket, s.defaultStrategy(0, nil), bucketID, accept)
}

// ChangeCapacity implements types.ChainCalls.
func (s *Service) ChangeCapacity(ctx context.Context, newCapacity uint64) error {
	return s.submit(ctx, moduleStorageProviders, callChangeCapacity, s.defaultStrategy(0, nil), newCapacity)
}

// SubmitProofWithRetry exposes the full retry-strategy surface to
// tasks/proofsubmission, which needs a non-default max_tip and a
// should_retry predicate (spec.md §4.6 step 6). It is not part of
// types.ChainCalls itself, matching the rest of the codebase's pattern of
// keeping cross-package interfaces narrow and putting richer behavior
// behind the concrete Service.
func (s *Service) SubmitProofWithRetry(ctx context.Context, proof types.StorageProof, provider *types.ProviderID, maxTip uint64, shouldRetry func(context.Context) bool) error {
	return s.submitProofWithRetry(ctx, proof, provider, s.defaultStrategy(maxTip, shouldRetry))
}
