// Package upload implements the File Upload Task's MSP path (spec.md §4.7):
// accepting a new storage request, growing on-chain capacity when needed,
// and driving each proven chunk a user peer uploads through File Storage.
package upload

import (
	"context"

	"github.com/Moonsong-Labs/storage-hub-sub003/crypto"
	"github.com/Moonsong-Labs/storage-hub-sub003/persist"
	"github.com/Moonsong-Labs/storage-hub-sub003/types"
)

// BlockchainService is the slice of chain capability this task depends on.
type BlockchainService interface {
	types.ChainQueries
	types.ChainCalls
}

// BlockWaiter blocks until a given block height has been imported, for the
// "wait until the earliest allowed capacity-change tick" step spec.md §4.7
// step 3 describes. The Blockchain Service implements this against its own
// block-import subscription.
type BlockWaiter interface {
	WaitForBlock(ctx context.Context, height uint64) error
}

// Task implements the File Upload Task's two event handlers.
type Task struct {
	chain        BlockchainService
	waiter       BlockWaiter
	files        types.FileStorage
	peers        types.PeerManager
	log          *persist.Logger
	maxCapacity  uint64
	jumpCapacity uint64
}

// New constructs a Task. maxCapacity and jumpCapacity mirror
// config.CapacityConfig: the most this node will ever advertise, and the
// size of one capacity-growth step.
func New(chain BlockchainService, waiter BlockWaiter, files types.FileStorage, peers types.PeerManager, log *persist.Logger, maxCapacity, jumpCapacity uint64) *Task {
	return &Task{chain: chain, waiter: waiter, files: files, peers: peers, log: log, maxCapacity: maxCapacity, jumpCapacity: jumpCapacity}
}

// OnNewStorageRequest implements spec.md §4.7's first handler.
func (t *Task) OnNewStorageRequest(ctx context.Context, event types.NewStorageRequest) error {
	meta := types.FileMetadata{
		Owner:       event.Owner,
		BucketID:    event.BucketID,
		Location:    event.Location,
		Size:        event.Size,
		Fingerprint: event.Fingerprint,
	}
	if err := meta.Validate(); err != nil {
		return err
	}
	fileKey := meta.FileKey()

	providerID, role, err := t.chain.StorageProviderID(ctx)
	if err != nil {
		return err
	}
	if role != types.RoleMSP {
		return nil
	}

	if err := t.ensureCapacity(ctx, providerID, event.Size); err != nil {
		if err == types.ErrReachedMaximumCapacity {
			t.respondReject(ctx, event.BucketID, fileKey, err.Error())
		}
		return err
	}

	if err := t.files.InsertFile(fileKey, meta); err != nil {
		return err
	}

	for _, peer := range event.UserPeerIDs {
		if err := t.peers.AuthorizePeerForFile(fileKey, peer); err != nil {
			return err
		}
	}
	return nil
}

// ensureCapacity implements spec.md §4.7 step 3: grow on-chain capacity, in
// jump_capacity-sized steps bounded by maxCapacity, when the current
// available capacity cannot cover size.
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
	if used+size > t.maxCapacity {
		return types.ErrReachedMaximumCapacity
	}

	jumps := size / t.jumpCapacity
	if size%t.jumpCapacity != 0 {
		jumps++
	}
	if jumps == 0 {
		jumps = 1
	}
	newCapacity := used + jumps*t.jumpCapacity
	if newCapacity > t.maxCapacity {
		newCapacity = t.maxCapacity
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

// OnRemoteUploadRequest implements spec.md §4.7's second handler.
func (t *Task) OnRemoteUploadRequest(ctx context.Context, event types.RemoteUploadRequest) error {
	meta, err := t.files.GetMetadata(event.FileKey)
	if err != nil {
		return err
	}

	proven := event.FileKeyProof.ProvenChunks
	if len(proven) != 1 || !crypto.VerifyChunkProof(proven[0].Data, proven[0].MerkleProof, uint64(proven[0].ChunkId), proven[0].NumChunks, meta.Fingerprint) {
		t.rejectAndRollback(ctx, event, meta.BucketID, types.ErrReceivedInvalidProof, false)
		return types.ErrReceivedInvalidProof
	}
	chunk := proven[0]

	outcome, err := t.files.WriteChunk(event.FileKey, chunk.ChunkId, chunk.Data)
	switch err {
	case nil:
		// fall through
	case types.ErrFileChunkAlreadyExists:
		t.log.Severe("duplicate chunk " + event.FileKey.String() + " from peer " + string(event.Peer))
		return nil
	case types.ErrFingerprintMismatch:
		t.rejectAndRollback(ctx, event, meta.BucketID, types.ErrInternal, true)
		return err
	default:
		t.rejectAndRollback(ctx, event, meta.BucketID, types.ErrInternal, true)
		return err
	}

	if outcome != types.FileComplete {
		return nil
	}

	reliable, err := t.peers.ReliablePeersForFile(event.FileKey)
	if err != nil {
		t.log.Printf("listing reliable peers for completed file %s: %v", event.FileKey.String(), err)
	}
	for _, peer := range reliable {
		if err := t.peers.RevokePeerForFile(event.FileKey, peer); err != nil {
			t.log.Printf("revoking peer %s for completed file %s: %v", string(peer), event.FileKey.String(), err)
		}
	}

	return t.chain.MspRespondStorageRequests(ctx, meta.BucketID, []types.StorageRequestResponse{
		{FileKey: event.FileKey},
	})
}

// rejectAndRollback submits an MSP reject response and deletes the file;
// revokePeer additionally revokes the uploading peer's authorization, for
// the fatal-error rollback path (spec.md §4.7 step 5).
func (t *Task) rejectAndRollback(ctx context.Context, event types.RemoteUploadRequest, bucketID types.Hash, reason error, revokePeer bool) {
	t.respondReject(ctx, bucketID, event.FileKey, reason.Error())
	if err := t.files.DeleteFile(event.FileKey); err != nil {
		t.log.Printf("deleting file %s after rejection: %v", event.FileKey.String(), err)
	}
	if revokePeer {
		if err := t.peers.RevokePeerForFile(event.FileKey, event.Peer); err != nil {
			t.log.Printf("revoking peer %s for rejected file %s: %v", string(event.Peer), event.FileKey.String(), err)
		}
	}
}

func (t *Task) respondReject(ctx context.Context, bucketID, fileKey types.Hash, reason string) {
	resp := []types.StorageRequestResponse{{FileKey: fileKey, Reject: true, Reason: reason}}
	if err := t.chain.MspRespondStorageRequests(ctx, bucketID, resp); err != nil {
		t.log.Printf("submitting reject response for file %s: %v", fileKey.String(), err)
	}
}
