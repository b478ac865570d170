// Package node is the storage-provider node's composition root: it wires
// the Blockchain Service, Forest Handler, File Storage, and every task
// together into one running node (spec.md §3, §6).
package node

import (
	"path/filepath"

	"github.com/Moonsong-Labs/storage-hub-sub003/blockchain"
	"github.com/Moonsong-Labs/storage-hub-sub003/build"
	"github.com/Moonsong-Labs/storage-hub-sub003/config"
	"github.com/Moonsong-Labs/storage-hub-sub003/filestorage"
	"github.com/Moonsong-Labs/storage-hub-sub003/foresthandler"
	"github.com/Moonsong-Labs/storage-hub-sub003/persist"
	"github.com/Moonsong-Labs/storage-hub-sub003/persist/migrations"
	"github.com/Moonsong-Labs/storage-hub-sub003/tasks/bucketmove"
	"github.com/Moonsong-Labs/storage-hub-sub003/tasks/chunktransfer"
	"github.com/Moonsong-Labs/storage-hub-sub003/tasks/proofsubmission"
	"github.com/Moonsong-Labs/storage-hub-sub003/tasks/upload"
	"github.com/Moonsong-Labs/storage-hub-sub003/types"
)

// Dependencies are the collaborators this module treats as external and
// does not implement itself: the chain transport's dial target and keys,
// the peer transport, the indexer, and the block-event decoder (spec.md §6
// "Peer protocol surface (opaque to this spec)" and the indexer database
// schema note).
type Dependencies struct {
	ChainURL string
	Keys     blockchain.KeyStore
	// AccountHex is this provider's hex-encoded on-chain account id, used
	// once at startup to seed the Blockchain Service's nonce counter via
	// system_accountNextIndex. Deriving it from Keys is a
	// metadata-specific key-to-address computation left to the caller.
	AccountHex   string
	Peers        types.PeerManager
	Transfer     types.PeerTransfer
	Indexer      types.Indexer
	Decoder      blockchain.EventDecoder
	ProviderID   types.ProviderID
	ForestKeyFor func(types.ProviderID) types.Hash
}

// Node is every long-lived subsystem this storage provider runs, wired
// together and ready to Start.
type Node struct {
	Config  config.Config
	Client  *blockchain.ChainClient
	Service *blockchain.Service
	Forests types.ForestStorageHandler
	Files   types.FileStorage

	ProofSubmission *proofsubmission.Task
	Upload          *upload.Task
	BucketMove      *bucketmove.Task
	Sender          *chunktransfer.Sender

	accountHex string
	log        *persist.Logger
}

// New dials the chain, opens the Forest Handler and File Storage databases
// under cfg.Storage.StoragePath, and constructs every task against the
// Blockchain Service. Call Start to begin processing chain events.
func New(cfg config.Config, deps Dependencies) (*Node, error) {
	log, err := persist.NewLogger(filepath.Join(cfg.Storage.StoragePath, "shnode.log"))
	if err != nil {
		return nil, err
	}

	client, err := blockchain.Dial(deps.ChainURL, deps.Keys)
	if err != nil {
		return nil, err
	}

	service := blockchain.NewService(blockchain.ServiceConfig{
		ExtrinsicRetryTimeout: cfg.BlockchainService.ExtrinsicRetryTimeout,
	}, client, deps.Decoder, log)

	forests, err := foresthandler.New(filepath.Join(cfg.Storage.StoragePath, "forests"), cfg.ForestHandler.MaxOpenForests)
	if err != nil {
		client.Close()
		return nil, err
	}

	filesResult, err := migrations.OpenDBWithMigrations(
		filepath.Join(cfg.Storage.StoragePath, "files"),
		filestorage.ColumnFamilies,
		filestorage.SchemaMigrations,
	)
	if err != nil {
		client.Close()
		return nil, err
	}
	files := filestorage.New(filesResult.DB, filesResult.ColumnFamilies)

	forestKeyFor := deps.ForestKeyFor
	if forestKeyFor == nil {
		forestKeyFor = func(types.ProviderID) types.Hash { return types.FixedBSPForestKey }
	}

	proofTask := proofsubmission.New(service, forests, files, log, deps.ProviderID, forestKeyFor)
	uploadTask := upload.New(service, service, files, deps.Peers, log, cfg.Capacity.MaxCapacity, cfg.Capacity.JumpCapacity)
	bucketMoveTask := bucketmove.New(service, service, forests, files, deps.Peers, deps.Transfer, deps.Indexer, log, bucketmove.Config{
		MaxTryCount:                int(cfg.MSPMoveBucket.MaxTryCount),
		MaxConcurrentFileDownloads: int(cfg.MSPMoveBucket.MaxConcurrentFileDownloads),
		MaxConcurrentChunksPerFile: int(cfg.MSPMoveBucket.MaxConcurrentChunksPerFile),
		MaxChunksPerRequest:        int(cfg.MSPMoveBucket.MaxChunksPerRequest),
		PeerRetryAttempts:          int(cfg.MSPMoveBucket.ChunkRequestPeerRetryAttempts),
		DownloadRetryAttempts:      int(cfg.MSPMoveBucket.DownloadRetryAttempts),
		MaxCapacity:                cfg.Capacity.MaxCapacity,
		JumpCapacity:               cfg.Capacity.JumpCapacity,
	})
	sender := chunktransfer.New(deps.Transfer, files, service, log)

	return &Node{
		Config:          cfg,
		Client:          client,
		Service:         service,
		Forests:         forests,
		Files:           files,
		ProofSubmission: proofTask,
		Upload:          uploadTask,
		BucketMove:      bucketMoveTask,
		Sender:          sender,
		accountHex:      deps.AccountHex,
		log:             log,
	}, nil
}

// Start seeds the nonce counter from the chain's reported account nonce and
// begins the Blockchain Service's block-import loop.
func (n *Node) Start() error {
	nonce, err := n.Client.AccountNextIndex(n.accountHex)
	if err != nil {
		return err
	}
	n.Service.SeedNonce(nonce)
	return n.Service.Start()
}

// Close stops the block-import loop, closes the chain client, and closes
// the log. It does not close the Forest handler's or File Storage's
// databases.
func (n *Node) Close() error {
	stopErr := n.Service.Stop()
	n.Client.Close()
	logErr := n.log.Close()
	return build.ComposeErrors(stopErr, logErr)
}
