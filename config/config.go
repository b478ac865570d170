// Package config declares the typed configuration struct this node is
// wired up from (spec.md §6, "Configuration with enumerated options").
// Parsing configuration from a file or CLI flags is explicitly out of
// scope (spec.md Non-goals); callers populate a Config directly, the way
// the teacher's node package accepts an already-built modules.*Config
// rather than parsing one itself.
package config

import "time"

// CapacityConfig bounds how much storage this provider advertises and how
// far it grows in one change_capacity extrinsic (spec.md §4.7 step 3).
type CapacityConfig struct {
	// MaxCapacity is the most storage, in bytes, this provider will ever
	// advertise.
	MaxCapacity uint64
	// JumpCapacity is the size, in bytes, of one capacity-growth step.
	JumpCapacity uint64
}

// BlockchainServiceConfig configures the Blockchain Service actor
// (spec.md §4.5).
type BlockchainServiceConfig struct {
	// ExtrinsicRetryTimeout bounds how long a single extrinsic submission
	// attempt waits for inclusion before the retry loop treats it as timed
	// out.
	ExtrinsicRetryTimeout time.Duration
}

// ProofSubmissionConfig configures the Proof Submission Task (spec.md §4.6).
type ProofSubmissionConfig struct {
	// MaxSubmissionAttempts is not read by any component: submit_proof
	// retries up to the Blockchain Service's fixed default attempt count.
	MaxSubmissionAttempts uint
}

// MSPUploadConfig configures the File Upload Task's MSP path (spec.md §4.7).
type MSPUploadConfig struct {
	MaxTryCount       uint
	MaxTip            uint64
	MinDebt           uint64
	MSPChargingPeriod time.Duration
}

// MSPMoveBucketConfig configures the Bucket Move Task's MSP path
// (spec.md §4.8).
type MSPMoveBucketConfig struct {
	MaxTryCount                  uint
	MaxTip                       uint64
	ProcessingInterval           time.Duration
	MaxBatchSize                 uint
	MaxParallelTasks             uint
	MaxConcurrentFileDownloads   uint
	MaxConcurrentChunksPerFile   uint
	MaxChunksPerRequest          uint
	ChunkRequestPeerRetryAttempts uint
	DownloadRetryAttempts        uint
}

// BSPMoveBucketConfig configures the Bucket Move Task's BSP path.
type BSPMoveBucketConfig struct {
	MoveBucketAcceptedGracePeriod time.Duration
}

// ForestHandlerConfig configures the Forest Handler's bounded open-handle
// cache (spec.md §4.3).
type ForestHandlerConfig struct {
	MaxOpenForests int
}

// StorageConfig names the on-disk root every database this node opens is
// rooted under (spec.md §6 "On-disk layout").
type StorageConfig struct {
	StoragePath string
}

// Config is the complete, typed configuration this node is constructed
// from. Every group mirrors one of spec.md §6's enumerated configuration
// groups exactly.
type Config struct {
	Capacity          CapacityConfig
	BlockchainService BlockchainServiceConfig
	ProofSubmission   ProofSubmissionConfig
	MSPUpload         MSPUploadConfig
	MSPMoveBucket     MSPMoveBucketConfig
	BSPMoveBucket     BSPMoveBucketConfig
	ForestHandler     ForestHandlerConfig
	Storage           StorageConfig
}

// Default returns a Config populated with conservative defaults, the way
// the teacher's modules.DefaultConfig-style constructors do: a node is
// expected to override fields from its own configuration source before
// starting.
func Default() Config {
	return Config{
		Capacity: CapacityConfig{
			MaxCapacity:  1 << 40, // 1 TiB
			JumpCapacity: 1 << 30, // 1 GiB per growth step
		},
		BlockchainService: BlockchainServiceConfig{
			ExtrinsicRetryTimeout: 30 * time.Second,
		},
		ProofSubmission: ProofSubmissionConfig{
			MaxSubmissionAttempts: 5,
		},
		MSPUpload: MSPUploadConfig{
			MaxTryCount:       3,
			MaxTip:            0,
			MinDebt:           0,
			MSPChargingPeriod: time.Hour,
		},
		MSPMoveBucket: MSPMoveBucketConfig{
			MaxTryCount:                   3,
			MaxTip:                        0,
			ProcessingInterval:            time.Second,
			MaxBatchSize:                  32,
			MaxParallelTasks:              4,
			MaxConcurrentFileDownloads:    10,
			MaxConcurrentChunksPerFile:    4,
			MaxChunksPerRequest:           16,
			ChunkRequestPeerRetryAttempts: 2,
			DownloadRetryAttempts:         3,
		},
		BSPMoveBucket: BSPMoveBucketConfig{
			MoveBucketAcceptedGracePeriod: 10 * time.Minute,
		},
		ForestHandler: ForestHandlerConfig{
			MaxOpenForests: 100,
		},
		Storage: StorageConfig{
			StoragePath: "./storage",
		},
	}
}
