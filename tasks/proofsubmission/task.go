// Package proofsubmission implements the Proof Submission Task (spec.md
// §4.6): turning a challenge seed into a StorageProof and submitting it
// on-chain under the Forest-root write lock.
package proofsubmission

import (
	"context"
	"math/big"

	"github.com/Moonsong-Labs/storage-hub-sub003/persist"
	"github.com/Moonsong-Labs/storage-hub-sub003/types"
)

// BlockchainService is the narrow slice of the Blockchain Service this task
// depends on: chain queries and calls, plus the write-lock-gated queueing
// primitives spec.md §4.5/§4.6 describe.
type BlockchainService interface {
	types.ChainQueries
	types.ChainCalls
	SubmitProofWithRetry(ctx context.Context, proof types.StorageProof, provider *types.ProviderID, maxTip uint64, shouldRetry func(context.Context) bool) error
}

// Task implements the Proof Submission Task's two event handlers.
type Task struct {
	chain         BlockchainService
	forests       types.ForestStorageHandler
	files         types.FileStorage
	log           *persist.Logger
	providerID    types.ProviderID
	forestKeyFor  func(types.ProviderID) types.Hash
}

// New constructs a Task. forestKeyFor resolves which Forest a given
// provider's proofs are generated against (FixedBSPForestKey for a BSP
// deployment; a bucket-scoped key for an MSP deployment), since spec.md
// leaves "the current Forest" implicit over a single-Forest model.
func New(chain BlockchainService, forests types.ForestStorageHandler, files types.FileStorage, log *persist.Logger, providerID types.ProviderID, forestKeyFor func(types.ProviderID) types.Hash) *Task {
	return &Task{chain: chain, forests: forests, files: files, log: log, providerID: providerID, forestKeyFor: forestKeyFor}
}

// OnMultipleNewChallengeSeeds implements spec.md §4.6's first handler: for
// each (tick, seed) pair in order, derive forest challenges (and checkpoint
// challenges when applicable) and hand back the SubmitProofRequests the
// Blockchain Service should enqueue, one per tick, in order.
func (t *Task) OnMultipleNewChallengeSeeds(ctx context.Context, event types.MultipleNewChallengeSeeds) ([]types.SubmitProofRequest, error) {
	requests := make([]types.SubmitProofRequest, 0, len(event.Seeds))
	for _, ct := range event.Seeds {
		req, err := t.buildSubmitProofRequest(ctx, event.ProviderID, ct)
		if err != nil {
			return requests, err
		}
		requests = append(requests, req)
	}
	return requests, nil
}

func (t *Task) buildSubmitProofRequest(ctx context.Context, providerID types.ProviderID, ct types.ChallengeTick) (types.SubmitProofRequest, error) {
	forestChallenges, err := t.chain.ForestChallengesFromSeed(ctx, ct.Seed, providerID)
	if err != nil {
		return types.SubmitProofRequest{}, err
	}

	var checkpoints []types.CustomChallenge
	lastSubmitted, err := t.chain.LastTickProviderSubmittedProof(ctx, providerID)
	if err != nil {
		return types.SubmitProofRequest{}, err
	}
	lastCheckpointTick, err := t.chain.LastCheckpointChallengeTick(ctx)
	if err != nil {
		return types.SubmitProofRequest{}, err
	}
	nextChallengeTick, err := t.chain.NextChallengeTickForProvider(ctx, providerID)
	if err != nil {
		return types.SubmitProofRequest{}, err
	}
	if lastSubmitted < lastCheckpointTick && lastCheckpointTick <= nextChallengeTick {
		checkpoints, err = t.chain.LastCheckpointChallenges(ctx, lastCheckpointTick)
		if err != nil {
			return types.SubmitProofRequest{}, err
		}
		for _, c := range checkpoints {
			forestChallenges = append(forestChallenges, c.Key)
		}
	}

	return types.SubmitProofRequest{
		ProviderID:           providerID,
		Tick:                 ct.Tick,
		Seed:                 ct.Seed,
		ForestChallenges:     forestChallenges,
		CheckpointChallenges: checkpoints,
	}, nil
}

// OnProcessSubmitProofRequest implements spec.md §4.6's second handler. The
// caller must guarantee event.WriteLock was acquired before this is called
// and is released exactly once; this method always releases it before
// returning, success or failure.
func (t *Task) OnProcessSubmitProofRequest(ctx context.Context, event types.ProcessSubmitProofRequest) error {
	defer event.WriteLock.Release()

	nextTick, err := t.chain.NextChallengeTickForProvider(ctx, event.ProviderID)
	if err != nil {
		return err
	}
	if nextTick != event.Tick {
		return types.ErrProofOutdated
	}

	forestKey := t.forestKeyFor(event.ProviderID)
	forest, ok, err := t.forests.Get(forestKey)
	if err != nil {
		return err
	}
	if !ok {
		return types.ErrForestKeyUnknown
	}

	rootBeforeProof := forest.Root()
	forestProof, err := forest.GenerateProof(event.ForestChallenges)
	if err != nil {
		return err
	}

	removalKeys := removalCheckpointKeys(event.CheckpointChallenges)

	provenKeys, critical := flattenProvenKeys(forestProof.Proven)
	if critical {
		t.log.Critical("forest challenged while empty for provider ", event.ProviderID.String())
		return types.ErrEmptyForestChallenged
	}

	keyProofs := make(map[types.Hash]types.KeyProof, len(provenKeys))
	for _, key := range provenKeys {
		if removalKeys[key] {
			continue
		}
		kp, err := t.buildKeyProof(ctx, event.ProviderID, event.Seed, key)
		if err != nil {
			return err
		}
		keyProofs[key] = kp
	}

	proof := types.StorageProof{ForestProof: forestProof, KeyProofs: keyProofs}

	slashAmount, err := t.chain.SlashAmountPerMaxFileSize(ctx)
	if err != nil {
		return err
	}
	maxTip := slashAmount * uint64(len(event.ForestChallenges)) * 2

	shouldRetry := func(ctx context.Context) bool {
		stillCurrentTick, err := t.chain.NextChallengeTickForProvider(ctx, event.ProviderID)
		if err != nil || stillCurrentTick != event.Tick {
			return false
		}
		return forest.Root() == rootBeforeProof
	}

	provider := event.ProviderID
	if err := t.chain.SubmitProofWithRetry(ctx, proof, &provider, maxTip, shouldRetry); err != nil {
		t.log.Printf("submit proof for provider %s tick %d failed: %v", event.ProviderID.String(), event.Tick, err)
		return err
	}
	t.log.Printf("submitted proof for provider %s tick %d", event.ProviderID.String(), event.Tick)
	return nil
}

func removalCheckpointKeys(checkpoints []types.CustomChallenge) map[types.Hash]bool {
	out := make(map[types.Hash]bool, len(checkpoints))
	for _, c := range checkpoints {
		if c.ShouldRemoveKey {
			out[c.Key] = true
		}
	}
	return out
}

// flattenProvenKeys flattens every Proven answer into the file keys it
// names (spec.md §4.6 step 3). critical reports whether any answer was the
// fully-empty NeighborKeys(nil, nil), which is only possible against a
// genuinely empty Forest and is a fatal invariant violation when it occurs
// during a real challenge.
func flattenProvenKeys(proven []types.Proven) (keys []types.Hash, critical bool) {
	for _, p := range proven {
		if p.IsEmpty() {
			return nil, true
		}
		keys = append(keys, p.Keys()...)
	}
	return keys, false
}

func (t *Task) buildKeyProof(ctx context.Context, providerID types.ProviderID, seed types.ChallengeSeed, fileKey types.Hash) (types.KeyProof, error) {
	meta, err := t.files.GetMetadata(fileKey)
	if err != nil {
		return types.KeyProof{}, err
	}

	challenges, err := t.chain.ChallengesFromSeed(ctx, seed, providerID, meta.ChunksToCheck())
	if err != nil {
		return types.KeyProof{}, err
	}

	chunksCount := meta.ChunksCount()
	chunkIDs := make([]types.ChunkId, len(challenges))
	for i, c := range challenges {
		chunkIDs[i] = types.ChunkId(challengeToChunkID(c, chunksCount))
	}

	return t.files.GenerateProof(fileKey, chunkIDs)
}

// challengeToChunkID maps a 32-byte chunk challenge into [0, chunksCount) by
// interpreting it as a big-endian unsigned integer and reducing it modulo
// chunksCount (spec.md §9 Open Questions, resolved: big-endian, plain
// modulo).
func challengeToChunkID(challenge types.Hash, chunksCount uint64) uint64 {
	if chunksCount == 0 {
		return 0
	}
	value := new(big.Int).SetBytes(challenge[:])
	return value.Mod(value, new(big.Int).SetUint64(chunksCount)).Uint64()
}
