// Package chunktransfer implements the outbound Chunk Upload path (spec.md
// §4.9): batching a file's chunks under BatchChunkFileTransferMaxSize,
// proving each batch, and sending it to a peer under layered retry.
package chunktransfer

import (
	"context"
	"errors"
	"time"

	"github.com/Moonsong-Labs/storage-hub-sub003/persist"
	"github.com/Moonsong-Labs/storage-hub-sub003/types"
)

// Sentinel errors a PeerTransfer implementation classifies its failures
// into, so Sender can apply spec.md §4.9's layered retry policy. The peer
// protocol itself is opaque (spec.md §6); these are the only three failure
// kinds this layer distinguishes.
var (
	ErrPeerRefused  = errors.New("peer refused upload")
	ErrNetwork      = errors.New("network error")
	ErrNotConnected = errors.New("peer not connected")
)

const (
	refusedMaxRetries = 3
	refusedBackoff    = time.Second
	networkMaxRetries = 10
	networkBlockWait  = 5
)

// BlockWaiter blocks for n newly imported blocks, the gating delay spec.md
// §4.9 step 2 places between Network/NotConnected retries.
type BlockWaiter interface {
	WaitBlocks(ctx context.Context, n uint64) error
}

// Sender drives the outbound upload of one file to one peer.
type Sender struct {
	transfer types.PeerTransfer
	files    types.FileStorage
	waiter   BlockWaiter
	log      *persist.Logger
	sleep    func(time.Duration)
}

// New constructs a Sender.
func New(transfer types.PeerTransfer, files types.FileStorage, waiter BlockWaiter, log *persist.Logger) *Sender {
	return &Sender{transfer: transfer, files: files, waiter: waiter, log: log, sleep: time.Sleep}
}

// SendFile sends every chunk of fileKey to peer, in batches capped at
// types.BatchChunkFileTransferMaxSize, stopping as soon as the peer reports
// the file complete (spec.md §4.9 step 3).
func (s *Sender) SendFile(ctx context.Context, peer types.PeerID, fileKey types.Hash, meta types.FileMetadata) error {
	for _, batch := range buildBatches(meta) {
		proof, err := s.files.GenerateProof(fileKey, batch)
		if err != nil {
			return err
		}

		var data []byte
		for _, pc := range proof.ProvenChunks {
			data = append(data, pc.Data...)
		}

		result, err := s.sendWithRetry(ctx, peer, fileKey, proof, data)
		if err != nil {
			s.log.Printf("sending batch of file %s to peer %s: %v", fileKey.String(), string(peer), err)
			return err
		}
		if result.FileComplete {
			return nil
		}
	}
	return nil
}

// sendWithRetry implements spec.md §4.9 step 2's layered retry: a Refused
// response backs off briefly and retries up to 3 times; a Network or
// NotConnected failure waits for 5 newly imported blocks and retries up to
// 10 times. Any other error is terminal.
func (s *Sender) sendWithRetry(ctx context.Context, peer types.PeerID, fileKey types.Hash, proof types.KeyProof, data []byte) (types.UploadResult, error) {
	refusedAttempts := 0
	networkAttempts := 0
	for {
		result, err := s.transfer.UploadRequest(ctx, peer, fileKey, proof, data)
		if err == nil {
			return result, nil
		}

		switch {
		case errors.Is(err, ErrPeerRefused):
			refusedAttempts++
			if refusedAttempts > refusedMaxRetries {
				return types.UploadResult{}, err
			}
			s.sleep(refusedBackoff)
		case errors.Is(err, ErrNetwork), errors.Is(err, ErrNotConnected):
			networkAttempts++
			if networkAttempts > networkMaxRetries {
				return types.UploadResult{}, err
			}
			if s.waiter != nil {
				if werr := s.waiter.WaitBlocks(ctx, networkBlockWait); werr != nil {
					return types.UploadResult{}, werr
				}
			}
		default:
			return types.UploadResult{}, err
		}
	}
}

// buildBatches groups a file's chunk ids into batches whose total serialized
// size stays under types.BatchChunkFileTransferMaxSize, flushing the
// in-progress batch before a chunk that would push it over the cap (spec.md
// §8 boundary behavior).
func buildBatches(meta types.FileMetadata) [][]types.ChunkId {
	count := meta.ChunksCount()
	var batches [][]types.ChunkId
	var current []types.ChunkId
	var currentSize uint64

	for id := uint64(0); id < count; id++ {
		size := chunkSize(meta, id)
		if currentSize+size > types.BatchChunkFileTransferMaxSize && len(current) > 0 {
			batches = append(batches, current)
			current = nil
			currentSize = 0
		}
		current = append(current, types.ChunkId(id))
		currentSize += size
	}
	if len(current) > 0 {
		batches = append(batches, current)
	}
	return batches
}

// chunkSize returns the byte size of chunk id within meta's declared size:
// types.FileChunkSize for every chunk but the last, which may be shorter.
func chunkSize(meta types.FileMetadata, id uint64) uint64 {
	last := meta.ChunksCount() - 1
	if id < last {
		return types.FileChunkSize
	}
	rem := meta.Size % types.FileChunkSize
	if rem == 0 {
		return types.FileChunkSize
	}
	return rem
}
