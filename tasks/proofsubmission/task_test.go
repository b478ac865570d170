package proofsubmission

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/Moonsong-Labs/storage-hub-sub003/crypto"
	"github.com/Moonsong-Labs/storage-hub-sub003/forest"
	"github.com/Moonsong-Labs/storage-hub-sub003/persist"
	"github.com/Moonsong-Labs/storage-hub-sub003/types"
)

func testLogger(t *testing.T) *persist.Logger {
	t.Helper()
	l, err := persist.NewLogger(filepath.Join(t.TempDir(), "task.log"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

// fakeChain implements BlockchainService with canned answers, enough to
// drive both event handlers without a real chain connection.
type fakeChain struct {
	nextChallengeTick      uint64
	lastSubmitted          uint64
	lastCheckpointTick     uint64
	checkpoints            []types.CustomChallenge
	forestChallenges       []types.Hash
	chunkChallenges        []types.Hash
	slashAmount            uint64
	submitted              []types.StorageProof
}

func (f *fakeChain) StorageProviderID(ctx context.Context) (types.ProviderID, types.ProviderRole, error) {
	return types.ProviderID{}, types.RoleBSP, nil
}
func (f *fakeChain) StorageProviderCapacity(ctx context.Context, id types.ProviderID) (uint64, error) {
	return 0, nil
}
func (f *fakeChain) AvailableStorageCapacity(ctx context.Context, id types.ProviderID) (uint64, error) {
	return 0, nil
}
func (f *fakeChain) EarliestChangeCapacityBlock(ctx context.Context, id types.ProviderID) (uint64, error) {
	return 0, nil
}
func (f *fakeChain) SlashAmountPerMaxFileSize(ctx context.Context) (uint64, error) {
	return f.slashAmount, nil
}
func (f *fakeChain) LastTickProviderSubmittedProof(ctx context.Context, id types.ProviderID) (uint64, error) {
	return f.lastSubmitted, nil
}
func (f *fakeChain) LastCheckpointChallengeTick(ctx context.Context) (uint64, error) {
	return f.lastCheckpointTick, nil
}
func (f *fakeChain) NextChallengeTickForProvider(ctx context.Context, id types.ProviderID) (uint64, error) {
	return f.nextChallengeTick, nil
}
func (f *fakeChain) LastCheckpointChallenges(ctx context.Context, tick uint64) ([]types.CustomChallenge, error) {
	return f.checkpoints, nil
}
func (f *fakeChain) ForestChallengesFromSeed(ctx context.Context, seed types.ChallengeSeed, id types.ProviderID) ([]types.Hash, error) {
	return f.forestChallenges, nil
}
func (f *fakeChain) ChallengesFromSeed(ctx context.Context, seed types.ChallengeSeed, id types.ProviderID, count uint64) ([]types.Hash, error) {
	return f.chunkChallenges, nil
}
func (f *fakeChain) ProviderForestRoot(ctx context.Context, id types.ProviderID) (types.Hash, error) {
	return types.Hash{}, nil
}
func (f *fakeChain) SubmitProof(ctx context.Context, proof types.StorageProof, provider *types.ProviderID) error {
	f.submitted = append(f.submitted, proof)
	return nil
}
func (f *fakeChain) MspRespondStorageRequests(ctx context.Context, bucketID types.Hash, responses []types.StorageRequestResponse) error {
	return nil
}
func (f *fakeChain) MspRespondMoveBucketRequest(ctx context.Context, bucketID types.Hash, accept bool) error {
	return nil
}
func (f *fakeChain) ChangeCapacity(ctx context.Context, newCapacity uint64) error { return nil }
func (f *fakeChain) SubmitProofWithRetry(ctx context.Context, proof types.StorageProof, provider *types.ProviderID, maxTip uint64, shouldRetry func(context.Context) bool) error {
	f.submitted = append(f.submitted, proof)
	return nil
}

type fakeGuard struct{ released int }

func (g *fakeGuard) Release() { g.released++ }

// memBackend is a minimal in-memory forest.backend double, mirroring the one
// defined in forest's own tests.
type memBackend struct {
	nodes map[crypto.Hash][]byte
	root  crypto.Hash
	has   bool
}

func newMemBackend() *memBackend { return &memBackend{nodes: map[crypto.Hash][]byte{}} }

func (m *memBackend) GetNode(h crypto.Hash) ([]byte, bool) { b, ok := m.nodes[h]; return b, ok }
func (m *memBackend) StorageRoot() (crypto.Hash, bool, error) { return m.root, m.has, nil }
func (m *memBackend) Commit(overlay map[crypto.Hash][]byte, root crypto.Hash) error {
	for k, v := range overlay {
		m.nodes[k] = v
	}
	m.root = root
	m.has = true
	return nil
}

type fakeForestHandler struct {
	forests map[types.Hash]types.ForestStorage
}

func (h *fakeForestHandler) Get(key types.Hash) (types.ForestStorage, bool, error) {
	f, ok := h.forests[key]
	return f, ok, nil
}
func (h *fakeForestHandler) Create(key types.Hash) (types.ForestStorage, error) {
	f, err := forest.Open(newMemBackend())
	if err != nil {
		return nil, err
	}
	h.forests[key] = f
	return f, nil
}
func (h *fakeForestHandler) Snapshot(src, dest types.Hash) (types.ForestStorage, bool, error) {
	return nil, false, nil
}
func (h *fakeForestHandler) Remove(key types.Hash) error { delete(h.forests, key); return nil }
func (h *fakeForestHandler) IsPresent(key types.Hash) bool { _, ok := h.forests[key]; return ok }

type fakeFileStorage struct {
	meta map[types.Hash]types.FileMetadata
}

func (s *fakeFileStorage) InsertFile(key types.Hash, m types.FileMetadata) error {
	s.meta[key] = m
	return nil
}
func (s *fakeFileStorage) WriteChunk(key types.Hash, chunkID types.ChunkId, data []byte) (types.WriteOutcome, error) {
	return types.FileComplete, nil
}
func (s *fakeFileStorage) GetChunk(key types.Hash, chunkID types.ChunkId) ([]byte, error) {
	return []byte("chunk"), nil
}
func (s *fakeFileStorage) GetMetadata(key types.Hash) (types.FileMetadata, error) {
	m, ok := s.meta[key]
	if !ok {
		return types.FileMetadata{}, types.ErrFileDoesNotExist
	}
	return m, nil
}
func (s *fakeFileStorage) GenerateProof(key types.Hash, chunkIDs []types.ChunkId) (types.KeyProof, error) {
	proven := make([]types.ProvenChunk, len(chunkIDs))
	for i, id := range chunkIDs {
		proven[i] = types.ProvenChunk{ChunkId: id, Data: []byte("chunk"), NumChunks: 1}
	}
	return types.KeyProof{ProvenChunks: proven}, nil
}
func (s *fakeFileStorage) DeleteFile(key types.Hash) error { delete(s.meta, key); return nil }

func testMetadata(location string) types.FileMetadata {
	return types.FileMetadata{
		Owner:       []byte("alice"),
		BucketID:    crypto.HashBytes([]byte("bucket")),
		Location:    []byte(location),
		Size:        200,
		Fingerprint: crypto.HashBytes([]byte(location + "-fingerprint")),
	}
}

func setup(t *testing.T) (*Task, *fakeChain, *fakeForestHandler, *fakeFileStorage, types.Hash) {
	t.Helper()
	chain := &fakeChain{}
	forests := &fakeForestHandler{forests: map[types.Hash]types.ForestStorage{}}
	files := &fakeFileStorage{meta: map[types.Hash]types.FileMetadata{}}

	key := crypto.HashBytes([]byte("fixed-bsp-forest"))
	f, err := forests.Create(key)
	if err != nil {
		t.Fatal(err)
	}

	m := testMetadata("file-0")
	if _, err := f.InsertMetadata(m); err != nil {
		t.Fatal(err)
	}
	if err := files.InsertFile(m.FileKey(), m); err != nil {
		t.Fatal(err)
	}

	task := New(chain, forests, files, testLogger(t), types.ProviderID{}, func(types.ProviderID) types.Hash { return key })
	return task, chain, forests, files, m.FileKey()
}

func TestOnProcessSubmitProofRequestSubmitsProof(t *testing.T) {
	task, chain, _, _, fileKey := setup(t)
	chain.nextChallengeTick = 5

	guard := &fakeGuard{}
	event := types.ProcessSubmitProofRequest{
		ProviderID:       types.ProviderID{},
		Tick:             5,
		ForestChallenges: []types.Hash{fileKey},
		WriteLock:        guard,
	}

	if err := task.OnProcessSubmitProofRequest(context.Background(), event); err != nil {
		t.Fatal(err)
	}
	if guard.released != 1 {
		t.Errorf("expected the write lock guard to be released exactly once, got %d", guard.released)
	}
	if len(chain.submitted) != 1 {
		t.Fatalf("expected exactly one submitted proof, got %d", len(chain.submitted))
	}
	if len(chain.submitted[0].KeyProofs) != 1 {
		t.Errorf("expected a key proof for the single proven file, got %d", len(chain.submitted[0].KeyProofs))
	}
}

func TestOnProcessSubmitProofRequestOutdated(t *testing.T) {
	task, _, _, _, fileKey := setup(t)

	guard := &fakeGuard{}
	event := types.ProcessSubmitProofRequest{
		Tick:             5, // chain's nextChallengeTick defaults to 0
		ForestChallenges: []types.Hash{fileKey},
		WriteLock:        guard,
	}

	err := task.OnProcessSubmitProofRequest(context.Background(), event)
	if err != types.ErrProofOutdated {
		t.Fatalf("expected ErrProofOutdated, got %v", err)
	}
	if guard.released != 1 {
		t.Errorf("expected the write lock to be released even on the outdatedness abort, got %d", guard.released)
	}
}

func TestOnMultipleNewChallengeSeedsWithCheckpoints(t *testing.T) {
	task, chain, _, _, fileKey := setup(t)
	chain.lastSubmitted = 1
	chain.lastCheckpointTick = 2
	chain.nextChallengeTick = 3
	chain.checkpoints = []types.CustomChallenge{{Key: fileKey, ShouldRemoveKey: true}}
	chain.forestChallenges = []types.Hash{}

	event := types.MultipleNewChallengeSeeds{
		ProviderID: types.ProviderID{},
		Seeds:      []types.ChallengeTick{{Tick: 3}},
	}

	reqs, err := task.OnMultipleNewChallengeSeeds(context.Background(), event)
	if err != nil {
		t.Fatal(err)
	}
	if len(reqs) != 1 {
		t.Fatalf("expected 1 request, got %d", len(reqs))
	}
	if len(reqs[0].ForestChallenges) != 1 || reqs[0].ForestChallenges[0] != fileKey {
		t.Errorf("expected the checkpoint challenge key to be appended to forest challenges")
	}
}

func TestChallengeToChunkIDWithinRange(t *testing.T) {
	var challenge types.Hash
	challenge[31] = 7
	id := challengeToChunkID(challenge, 5)
	if id >= 5 {
		t.Errorf("expected chunk id within [0, 5), got %d", id)
	}
}
