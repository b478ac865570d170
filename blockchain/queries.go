package blockchain

import (
	"context"
	"fmt"

	"github.com/centrifuge/go-substrate-rpc-client/v4/scale"

	"github.com/Moonsong-Labs/storage-hub-sub003/types"
)

// queries.go implements types.ChainQueries against the runtime-API surface
// spec.md §6 enumerates. Each query SCALE-encodes its own arguments with
// gsrpc's scale codec, calls the generic runtime-API transport
// (ChainClient.RuntimeAPICall), and decodes the raw response back into the
// narrow types value the rest of the node works with.

const (
	apiQueryStorageProviderID           = "StorageProvidersApi_query_storage_provider_id"
	apiQueryStorageProviderCapacity     = "StorageProvidersApi_query_storage_provider_capacity"
	apiQueryAvailableStorageCapacity    = "StorageProvidersApi_query_available_storage_capacity"
	apiQueryEarliestChangeCapacityBlock = "StorageProvidersApi_query_earliest_change_capacity_block"
	apiQuerySlashAmountPerMaxFileSize   = "ProofsDealerApi_query_slash_amount_per_max_file_size"
	apiQueryLastTickProviderSubmitted   = "ProofsDealerApi_query_last_tick_provider_submitted_proof"
	apiQueryLastCheckpointChallengeTick = "ProofsDealerApi_query_last_checkpoint_challenge_tick"
	apiQueryNextChallengeTickForProv    = "ProofsDealerApi_query_next_challenge_tick_for_provider"
	apiQueryLastCheckpointChallenges    = "ProofsDealerApi_query_last_checkpoint_challenges"
	apiQueryForestChallengesFromSeed    = "ProofsDealerApi_query_forest_challenges_from_seed"
	apiQueryChallengesFromSeed          = "ProofsDealerApi_query_challenges_from_seed"
	apiQueryProviderForestRoot          = "ProofsDealerApi_query_provider_forest_root"
)

func (s *Service) call(ctx context.Context, method string, args ...interface{}) ([]byte, error) {
	encoded, err := scale.EncodeToBytes(args)
	if err != nil {
		return nil, fmt.Errorf("encode args for %s: %w", method, err)
	}
	return s.client.RuntimeAPICall(ctx, method, encoded)
}

func decodeInto(raw []byte, out interface{}) error {
	return scale.DecodeFromBytes(raw, out)
}

// StorageProviderID implements types.ChainQueries.
func (s *Service) StorageProviderID(ctx context.Context) (types.ProviderID, types.ProviderRole, error) {
	raw, err := s.call(ctx, apiQueryStorageProviderID)
	if err != nil {
		return types.ProviderID{}, types.RoleNone, err
	}
	var resp struct {
		Role int32
		ID   [32]byte
	}
	if err := decodeInto(raw, &resp); err != nil {
		return types.ProviderID{}, types.RoleNone, err
	}
	return types.ProviderID(resp.ID), types.ProviderRole(resp.Role), nil
}

// StorageProviderCapacity implements types.ChainQueries.
func (s *Service) StorageProviderCapacity(ctx context.Context, id types.ProviderID) (uint64, error) {
	raw, err := s.call(ctx, apiQueryStorageProviderCapacity, id)
	if err != nil {
		return 0, err
	}
	var v uint64
	return v, decodeInto(raw, &v)
}

// AvailableStorageCapacity implements types.ChainQueries.
func (s *Service) AvailableStorageCapacity(ctx context.Context, id types.ProviderID) (uint64, error) {
	raw, err := s.call(ctx, apiQueryAvailableStorageCapacity, id)
	if err != nil {
		return 0, err
	}
	var v uint64
	return v, decodeInto(raw, &v)
}

// EarliestChangeCapacityBlock implements types.ChainQueries.
func (s *Service) EarliestChangeCapacityBlock(ctx context.Context, id types.ProviderID) (uint64, error) {
	raw, err := s.call(ctx, apiQueryEarliestChangeCapacityBlock, id)
	if err != nil {
		return 0, err
	}
	var v uint64
	return v, decodeInto(raw, &v)
}

// SlashAmountPerMaxFileSize implements types.ChainQueries.
func (s *Service) SlashAmountPerMaxFileSize(ctx context.Context) (uint64, error) {
	raw, err := s.call(ctx, apiQuerySlashAmountPerMaxFileSize)
	if err != nil {
		return 0, err
	}
	var v uint64
	return v, decodeInto(raw, &v)
}

// LastTickProviderSubmittedProof implements types.ChainQueries.
func (s *Service) LastTickProviderSubmittedProof(ctx context.Context, id types.ProviderID) (uint64, error) {
	raw, err := s.call(ctx, apiQueryLastTickProviderSubmitted, id)
	if err != nil {
		return 0, err
	}
	var v uint64
	return v, decodeInto(raw, &v)
}

// LastCheckpointChallengeTick implements types.ChainQueries.
func (s *Service) LastCheckpointChallengeTick(ctx context.Context) (uint64, error) {
	raw, err := s.call(ctx, apiQueryLastCheckpointChallengeTick)
	if err != nil {
		return 0, err
	}
	var v uint64
	return v, decodeInto(raw, &v)
}

// NextChallengeTickForProvider implements types.ChainQueries.
func (s *Service) NextChallengeTickForProvider(ctx context.Context, id types.ProviderID) (uint64, error) {
	raw, err := s.call(ctx, apiQueryNextChallengeTickForProv, id)
	if err != nil {
		return 0, err
	}
	var v uint64
	return v, decodeInto(raw, &v)
}

// LastCheckpointChallenges implements types.ChainQueries.
func (s *Service) LastCheckpointChallenges(ctx context.Context, tick uint64) ([]types.CustomChallenge, error) {
	raw, err := s.call(ctx, apiQueryLastCheckpointChallenges, tick)
	if err != nil {
		return nil, err
	}
	var decoded []struct {
		Key             [32]byte
		ShouldRemoveKey bool
	}
	if err := decodeInto(raw, &decoded); err != nil {
		return nil, err
	}
	out := make([]types.CustomChallenge, len(decoded))
	for i, d := range decoded {
		out[i] = types.CustomChallenge{Key: d.Key, ShouldRemoveKey: d.ShouldRemoveKey}
	}
	return out, nil
}

// ForestChallengesFromSeed implements types.ChainQueries.
func (s *Service) ForestChallengesFromSeed(ctx context.Context, seed types.ChallengeSeed, id types.ProviderID) ([]types.Hash, error) {
	raw, err := s.call(ctx, apiQueryForestChallengesFromSeed, seed, id)
	if err != nil {
		return nil, err
	}
	var decoded [][32]byte
	if err := decodeInto(raw, &decoded); err != nil {
		return nil, err
	}
	out := make([]types.Hash, len(decoded))
	for i, d := range decoded {
		out[i] = d
	}
	return out, nil
}

// ChallengesFromSeed implements types.ChainQueries.
func (s *Service) ChallengesFromSeed(ctx context.Context, seed types.ChallengeSeed, id types.ProviderID, count uint64) ([]types.Hash, error) {
	raw, err := s.call(ctx, apiQueryChallengesFromSeed, seed, id, count)
	if err != nil {
		return nil, err
	}
	var decoded [][32]byte
	if err := decodeInto(raw, &decoded); err != nil {
		return nil, err
	}
	out := make([]types.Hash, len(decoded))
	for i, d := range decoded {
		out[i] = d
	}
	return out, nil
}

// ProviderForestRoot implements types.ChainQueries.
func (s *Service) ProviderForestRoot(ctx context.Context, id types.ProviderID) (types.Hash, error) {
	raw, err := s.call(ctx, apiQueryProviderForestRoot, id)
	if err != nil {
		return types.Hash{}, err
	}
	var decoded [32]byte
	if err := decodeInto(raw, &decoded); err != nil {
		return types.Hash{}, err
	}
	return decoded, nil
}
