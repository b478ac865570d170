package blockchain

import (
	"context"
	"sync"
	"time"

	threadgroup "github.com/NebulousLabs/threadgroup"
	gsrpctypes "github.com/centrifuge/go-substrate-rpc-client/v4/types"

	"github.com/Moonsong-Labs/storage-hub-sub003/persist"
	"github.com/Moonsong-Labs/storage-hub-sub003/types"
)

// service.go is the Blockchain Service actor (spec.md §4.5): a single
// long-lived goroutine with a typed inbox, a block-import stream, an event
// bus, and exclusive ownership of the nonce counter and the Forest-root
// write lock. It implements both types.ChainQueries and types.ChainCalls
// (queries.go, calls.go) so tasks depend only on those narrow interfaces,
// never on *Service or on gsrpc directly.

// ServiceConfig is the Blockchain Service's configuration group (spec.md
// §6): how long one extrinsic submission attempt waits before the retry
// loop considers it timed out.
type ServiceConfig struct {
	ExtrinsicRetryTimeout time.Duration
}

// EventDecoder turns one block's raw System.Events storage item into the
// domain events this node's role cares about (spec.md §4.5 "decode each
// event, dispatch the ones the node's role cares about"). The concrete
// decoder is chain-metadata-specific and supplied by the caller; Service
// itself only fans out whatever the decoder returns.
type EventDecoder func(meta interface{}, raw gsrpctypes.StorageDataRaw) ([]interface{}, error)

// command is the Blockchain Service inbox's envelope type: every inbox
// message is one of these, carrying a reply channel the caller blocks on.
type command struct {
	run   func(ctx context.Context) (interface{}, error)
	reply chan commandResult
}

type commandResult struct {
	value interface{}
	err   error
}

// Service is the Blockchain Service actor.
type Service struct {
	config  ServiceConfig
	client  *ChainClient
	bus     *EventBus
	lock    *writeLock
	nonce   nonceCounter
	log     *persist.Logger
	decoder EventDecoder

	inbox chan command
	tg    threadgroup.ThreadGroup

	heightMu sync.Mutex
	height   uint64
	advanced chan struct{}
}

// NewService constructs a Service bound to an already-dialed ChainClient.
// Call Start to begin the block-import loop.
func NewService(cfg ServiceConfig, client *ChainClient, decoder EventDecoder, log *persist.Logger) *Service {
	return &Service{
		config:  cfg,
		client:  client,
		bus:     NewEventBus(),
		lock:    newWriteLock(),
		log:      log,
		decoder:  decoder,
		inbox:    make(chan command, 64),
		advanced: make(chan struct{}),
	}
}

// Events returns the service's event bus, for tasks to subscribe to.
func (s *Service) Events() *EventBus {
	return s.bus
}

// AcquireWriteLock blocks until the Forest-root write lock is free and
// returns the RAII guard the caller must Release exactly once (spec.md
// §4.5, §9). The Blockchain Service calls this before dispatching any event
// whose handler will mutate a Forest root.
func (s *Service) AcquireWriteLock() types.ForestRootWriteLockGuard {
	return s.lock.acquire()
}

// SeedNonce primes the nonce counter from the chain's reported account
// nonce. Call once at startup before Start.
func (s *Service) SeedNonce(accountNonce uint64) {
	s.nonce.seed(accountNonce)
}

// Start launches the block-import loop as a background goroutine, tracked
// by the service's thread group so Stop can wait for it to exit cleanly.
func (s *Service) Start() error {
	headers, unsubscribe, err := s.client.SubscribeImportedBlocks()
	if err != nil {
		return err
	}
	if err := s.tg.Add(); err != nil {
		unsubscribe()
		return err
	}
	go func() {
		defer s.tg.Done()
		defer unsubscribe()
		s.run(headers)
	}()
	return nil
}

// Stop signals the block-import loop to exit and waits for it to finish.
func (s *Service) Stop() error {
	return s.tg.Stop()
}

func (s *Service) run(headers <-chan gsrpctypes.Header) {
	for {
		select {
		case <-s.tg.StopChan():
			return
		case header, ok := <-headers:
			if !ok {
				return
			}
			s.handleImportedBlock(header)
		case cmd := <-s.inbox:
			value, err := cmd.run(context.Background())
			cmd.reply <- commandResult{value: value, err: err}
		}
	}
}

// WaitForBlock blocks until a block at height target or later has been
// imported (the capacity-growth wait spec.md §4.7 step 3 describes, and the
// block-gated retry delay §4.9 step 2 describes).
func (s *Service) WaitForBlock(ctx context.Context, target uint64) error {
	for {
		s.heightMu.Lock()
		if s.height >= target {
			s.heightMu.Unlock()
			return nil
		}
		ch := s.advanced
		s.heightMu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// WaitBlocks blocks until n further blocks have been imported past the
// current height.
func (s *Service) WaitBlocks(ctx context.Context, n uint64) error {
	s.heightMu.Lock()
	target := s.height + n
	s.heightMu.Unlock()
	return s.WaitForBlock(ctx, target)
}

// setHeight records a newly imported block height and wakes every goroutine
// blocked in WaitForBlock/WaitBlocks.
func (s *Service) setHeight(height uint64) {
	s.heightMu.Lock()
	s.height = height
	ch := s.advanced
	s.advanced = make(chan struct{})
	s.heightMu.Unlock()
	close(ch)
}

func (s *Service) handleImportedBlock(header gsrpctypes.Header) {
	s.setHeight(uint64(header.Number))

	hash := header.Hash()
	raw, err := s.client.BlockEvents(hash)
	if err != nil {
		s.log.Printf("fetch block events for %s: %v", hash.Hex(), err)
		return
	}
	if raw == nil || s.decoder == nil {
		return
	}
	events, err := s.decoder(s.client.meta, raw)
	if err != nil {
		s.log.Printf("decode block events for %s: %v", hash.Hex(), err)
		return
	}
	for _, event := range events {
		s.bus.Publish(event)
	}
}

// Dispatch runs fn on the Service's own goroutine, serializing it with
// block-import handling exactly like any other inbox message (spec.md §4.5
// "typed command messages"). It blocks until fn completes.
func (s *Service) Dispatch(ctx context.Context, fn func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	reply := make(chan commandResult, 1)
	cmd := command{run: fn, reply: reply}
	select {
	case s.inbox <- cmd:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case res := <-reply:
		return res.value, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
