// Package bucketmove implements the Bucket Move Task's MSP path (spec.md
// §4.8): accepting or rejecting a bucket-move request, then downloading
// every file in an accepted bucket from its BSPs in parallel.
package bucketmove

import (
	"context"
	"errors"
	"math/rand"
	"sync"

	"github.com/Moonsong-Labs/storage-hub-sub003/persist"
	"github.com/Moonsong-Labs/storage-hub-sub003/types"
)

// errTotalSizeOverflow is returned when a bucket's summed file sizes
// overflow uint64 (spec.md §4.8 step 3).
var errTotalSizeOverflow = errors.New("bucket total size overflows")

// BlockchainService is the slice of chain capability this task depends on.
type BlockchainService interface {
	types.ChainQueries
	types.ChainCalls
}

// BlockWaiter blocks until a given block height has been imported, for the
// capacity-growth wait the §4.7 procedure (reused here per §4.8 step 4)
// describes.
type BlockWaiter interface {
	WaitForBlock(ctx context.Context, height uint64) error
}

// Config groups this task's tunables (spec.md §6 MSPMoveBucketConfig).
type Config struct {
	MaxTryCount                int
	MaxConcurrentFileDownloads int
	MaxConcurrentChunksPerFile int
	MaxChunksPerRequest        int
	PeerRetryAttempts          int
	DownloadRetryAttempts      int
	MaxCapacity                uint64
	JumpCapacity               uint64
}

// Task implements the Bucket Move Task's two event handlers.
type Task struct {
	chain    BlockchainService
	waiter   BlockWaiter
	forests  types.ForestStorageHandler
	files    types.FileStorage
	peers    types.PeerManager
	transfer types.PeerTransfer
	indexer  types.Indexer
	log      *persist.Logger
	cfg      Config

	mu         sync.Mutex
	inProgress map[types.Hash]struct{}
}

// New constructs a Task.
func New(chain BlockchainService, waiter BlockWaiter, forests types.ForestStorageHandler, files types.FileStorage, peers types.PeerManager, transfer types.PeerTransfer, indexer types.Indexer, log *persist.Logger, cfg Config) *Task {
	return &Task{
		chain: chain, waiter: waiter, forests: forests, files: files,
		peers: peers, transfer: transfer, indexer: indexer, log: log, cfg: cfg,
		inProgress: map[types.Hash]struct{}{},
	}
}

// OnMoveBucketRequestedForMsp implements spec.md §4.8's validation-and-
// acceptance handler.
func (t *Task) OnMoveBucketRequestedForMsp(ctx context.Context, event types.MoveBucketRequestedForMsp) error {
	files, err := t.indexer.FilesInBucket(ctx, event.BucketID)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return t.chain.MspRespondMoveBucketRequest(ctx, event.BucketID, true)
	}

	forest, err := t.forests.Create(event.BucketID)
	if err != nil {
		return err
	}

	var totalSize uint64
	for _, m := range files {
		next := totalSize + m.Size
		if next < totalSize {
			t.rejectBucketMove(ctx, event.BucketID, nil)
			return errTotalSizeOverflow
		}
		totalSize = next
	}

	providerID, _, err := t.chain.StorageProviderID(ctx)
	if err != nil {
		t.rejectBucketMove(ctx, event.BucketID, nil)
		return err
	}
	if err := t.ensureCapacity(ctx, providerID, totalSize); err != nil {
		t.rejectBucketMove(ctx, event.BucketID, nil)
		return err
	}

	insertedKeys := make([]types.Hash, 0, len(files))
	for _, m := range files {
		fileKey, err := forest.InsertMetadata(m)
		if err != nil {
			t.rejectBucketMove(ctx, event.BucketID, insertedKeys)
			return err
		}
		insertedKeys = append(insertedKeys, fileKey)

		if err := t.files.InsertFile(fileKey, m); err != nil {
			t.rejectBucketMove(ctx, event.BucketID, insertedKeys)
			return err
		}

		bsps, err := t.indexer.BSPsStoringFile(ctx, fileKey)
		if err != nil {
			t.rejectBucketMove(ctx, event.BucketID, insertedKeys)
			return err
		}
		for _, peer := range bsps {
			if err := t.peers.AuthorizePeerForFile(fileKey, peer); err != nil {
				t.rejectBucketMove(ctx, event.BucketID, insertedKeys)
				return err
			}
		}
	}

	return t.chain.MspRespondMoveBucketRequest(ctx, event.BucketID, true)
}

// ensureCapacity is the same grow-if-needed procedure upload.Task applies
// for a single file (spec.md §4.7 step 3), applied here to a bucket's
// summed size (§4.8 step 4).
func (t *Task) ensureCapacity(ctx context.Context, providerID types.ProviderID, size uint64) error {
	available, err := t.chain.AvailableStorageCapacity(ctx, providerID)
	if err != nil {
		return err
	}
	if available >= size {
		return nil
	}

	capacity, err := t.chain.StorageProviderCapacity(ctx, providerID)
	if err != nil {
		return err
	}
	used := capacity - available
	if used+size > t.cfg.MaxCapacity {
		return types.ErrReachedMaximumCapacity
	}

	jumps := size / t.cfg.JumpCapacity
	if size%t.cfg.JumpCapacity != 0 {
		jumps++
	}
	if jumps == 0 {
		jumps = 1
	}
	newCapacity := used + jumps*t.cfg.JumpCapacity
	if newCapacity > t.cfg.MaxCapacity {
		newCapacity = t.cfg.MaxCapacity
	}

	if t.waiter != nil {
		waitBlock, err := t.chain.EarliestChangeCapacityBlock(ctx, providerID)
		if err != nil {
			return err
		}
		if err := t.waiter.WaitForBlock(ctx, waitBlock); err != nil {
			return err
		}
	}

	if err := t.chain.ChangeCapacity(ctx, newCapacity); err != nil {
		return err
	}

	available, err = t.chain.AvailableStorageCapacity(ctx, providerID)
	if err != nil {
		return err
	}
	if available < size {
		return types.ErrReachedMaximumCapacity
	}
	return nil
}

// rejectBucketMove implements spec.md §4.8's reject_bucket_move rollback:
// delete whatever file metadata was already inserted, remove the Forest,
// and retry the on-chain rejection up to MaxTryCount times.
func (t *Task) rejectBucketMove(ctx context.Context, bucketID types.Hash, insertedKeys []types.Hash) {
	for _, k := range insertedKeys {
		if err := t.files.DeleteFile(k); err != nil {
			t.log.Printf("deleting file %s during bucket move rollback: %v", k.String(), err)
		}
	}
	if err := t.forests.Remove(bucketID); err != nil {
		t.log.Printf("removing forest %s during bucket move rollback: %v", bucketID.String(), err)
	}

	tries := t.cfg.MaxTryCount
	if tries <= 0 {
		tries = 1
	}
	for attempt := 0; attempt < tries; attempt++ {
		if err := t.chain.MspRespondMoveBucketRequest(ctx, bucketID, false); err == nil {
			return
		}
	}
	t.log.Severe("giving up submitting bucket move rejection for " + bucketID.String() + " after retries")
}

// OnStartMovedBucketDownload implements spec.md §4.8's parallel-download
// handler.
func (t *Task) OnStartMovedBucketDownload(ctx context.Context, event types.StartMovedBucketDownload) error {
	t.mu.Lock()
	if _, busy := t.inProgress[event.BucketID]; busy {
		t.mu.Unlock()
		return types.ErrBucketDownloadInProgress
	}
	t.inProgress[event.BucketID] = struct{}{}
	t.mu.Unlock()
	defer func() {
		t.mu.Lock()
		delete(t.inProgress, event.BucketID)
		t.mu.Unlock()
	}()

	files, err := t.indexer.FilesInBucket(ctx, event.BucketID)
	if err != nil {
		return err
	}

	fileSem := make(chan struct{}, maxOne(t.cfg.MaxConcurrentFileDownloads))
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for _, m := range files {
		m := m
		fileSem <- struct{}{}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-fileSem }()
			if err := t.downloadFile(ctx, m); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				t.log.Printf("downloading file during bucket move: %v", err)
			}
		}()
	}
	wg.Wait()
	return firstErr
}

func (t *Task) downloadFile(ctx context.Context, m types.FileMetadata) error {
	fileKey := m.FileKey()
	chunksCount := m.ChunksCount()
	batchSize := uint64(maxOne(t.cfg.MaxChunksPerRequest))

	chunkSem := make(chan struct{}, maxOne(t.cfg.MaxConcurrentChunksPerFile))
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for start := uint64(0); start < chunksCount; start += batchSize {
		end := start + batchSize
		if end > chunksCount {
			end = chunksCount
		}
		batch := make([]types.ChunkId, 0, end-start)
		for id := start; id < end; id++ {
			batch = append(batch, types.ChunkId(id))
		}

		chunkSem <- struct{}{}
		wg.Add(1)
		go func(batch []types.ChunkId) {
			defer wg.Done()
			defer func() { <-chunkSem }()
			if err := t.downloadBatch(ctx, fileKey, batch); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
		}(batch)
	}
	wg.Wait()
	return firstErr
}

// downloadBatch tries, in order, the top-2 most-reliable peers plus
// peer_retry_attempts random peers, up to download_retry_attempts retries
// per peer (spec.md §4.8 step 4).
func (t *Task) downloadBatch(ctx context.Context, fileKey types.Hash, batch []types.ChunkId) error {
	reliable, err := t.peers.ReliablePeersForFile(fileKey)
	if err != nil {
		return err
	}
	bsps, err := t.indexer.BSPsStoringFile(ctx, fileKey)
	if err != nil {
		return err
	}
	candidates := selectPeers(reliable, bsps, t.cfg.PeerRetryAttempts)

	retries := maxOne(t.cfg.DownloadRetryAttempts)
	var lastErr error
	for _, peer := range candidates {
		for attempt := 0; attempt < retries; attempt++ {
			chunks, err := t.transfer.DownloadRequest(ctx, peer, fileKey, batch)
			if err != nil {
				lastErr = err
				continue
			}
			return t.writeChunks(fileKey, batch, chunks)
		}
	}
	return lastErr
}

// selectPeers picks the first two reliable peers plus up to extraRandom
// peers drawn at random from the remaining candidates (spec.md §4.8 step
// 4's "top-2 most-reliable plus N random" target selection).
func selectPeers(reliable, all []types.PeerID, extraRandom int) []types.PeerID {
	seen := make(map[types.PeerID]bool)
	out := make([]types.PeerID, 0, 2+extraRandom)
	for i := 0; i < len(reliable) && i < 2; i++ {
		if !seen[reliable[i]] {
			seen[reliable[i]] = true
			out = append(out, reliable[i])
		}
	}

	pool := make([]types.PeerID, 0, len(all))
	for _, p := range all {
		if !seen[p] {
			pool = append(pool, p)
		}
	}
	rand.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	for i := 0; i < extraRandom && i < len(pool); i++ {
		out = append(out, pool[i])
	}
	return out
}

// writeChunks writes each downloaded chunk, tolerating the already-present
// case so a bucket download is idempotent when started twice (spec.md
// §4.8's "Idempotency" note).
func (t *Task) writeChunks(fileKey types.Hash, batch []types.ChunkId, chunks [][]byte) error {
	for i, id := range batch {
		if i >= len(chunks) {
			break
		}
		outcome, err := t.files.WriteChunk(fileKey, id, chunks[i])
		if err == types.ErrFileChunkAlreadyExists {
			continue
		}
		if err != nil {
			return err
		}
		if outcome == types.FileComplete {
			t.log.Printf("bucket move download completed file %s", fileKey.String())
		}
	}
	return nil
}

func maxOne(n int) int {
	if n <= 0 {
		return 1
	}
	return n
}
