// Command shnode runs one storage-provider node: the Blockchain Service,
// Forest Handler, File Storage, and the Proof Submission, File Upload,
// Bucket Move, and Chunk Upload tasks wired against it (spec.md §3, §6).
//
// The peer transport, peer manager, and indexer are external collaborators
// per spec.md's Non-goals ("Peer protocol surface (opaque to this spec)");
// this command does not implement or dial them. A deployment wires its own
// peer-adapter package and passes it to node.New via node.Dependencies.
package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Moonsong-Labs/storage-hub-sub003/build"
	"github.com/Moonsong-Labs/storage-hub-sub003/config"
	"github.com/Moonsong-Labs/storage-hub-sub003/crypto"
	"github.com/Moonsong-Labs/storage-hub-sub003/node"
	"github.com/Moonsong-Labs/storage-hub-sub003/types"
)

var (
	chainURL     string
	storagePath  string
	secretKeyHex string
	accountHex   string
	providerHex  string
	maxCapacity  uint64
	jumpCapacity uint64
)

// hexKeyStore is the flag-supplied blockchain.KeyStore: a secret key read
// once at startup from a hex-encoded flag, held in memory for the life of
// the process. How a deployment actually protects that secret (an HSM, an
// encrypted keyfile, an env var) is outside this command's concern.
type hexKeyStore struct {
	sk crypto.SecretKey
}

func (k hexKeyStore) SecretKey() crypto.SecretKey { return k.sk }

func newHexKeyStore(s string) (hexKeyStore, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return hexKeyStore{}, fmt.Errorf("decode --secret-key: %w", err)
	}
	if len(raw) != crypto.SecretKeySize {
		return hexKeyStore{}, fmt.Errorf("--secret-key must be %d bytes, got %d", crypto.SecretKeySize, len(raw))
	}
	var sk crypto.SecretKey
	copy(sk[:], raw)
	return hexKeyStore{sk: sk}, nil
}

func rootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "shnode",
		Short:   "shnode runs a storage-provider node on a StorageHub-compatible chain",
		Version: build.Version,
		RunE:    runDaemon,
	}
	flags := cmd.Flags()
	flags.StringVar(&chainURL, "chain-url", "ws://127.0.0.1:9944", "websocket URL of the chain node to dial")
	flags.StringVar(&storagePath, "storage-path", "shnode-data", "directory this node's databases and log are rooted under")
	flags.StringVar(&secretKeyHex, "secret-key", "", "hex-encoded sr25519 secret key this node signs extrinsics with")
	flags.StringVar(&accountHex, "account", "", "hex-encoded on-chain account id matching --secret-key")
	flags.StringVar(&providerHex, "provider-id", "", "hex-encoded provider id this node submits proofs and accepts storage requests as")
	flags.Uint64Var(&maxCapacity, "max-capacity", config.Default().Capacity.MaxCapacity, "largest storage capacity, in bytes, this provider will ever advertise")
	flags.Uint64Var(&jumpCapacity, "jump-capacity", config.Default().Capacity.JumpCapacity, "size, in bytes, of one capacity-growth step")
	cmd.MarkFlagRequired("secret-key")
	cmd.MarkFlagRequired("account")
	cmd.MarkFlagRequired("provider-id")
	return cmd
}

func runDaemon(cmd *cobra.Command, args []string) error {
	keys, err := newHexKeyStore(secretKeyHex)
	if err != nil {
		return err
	}
	providerID, err := decodeProviderID(providerHex)
	if err != nil {
		return err
	}

	cfg := config.Default()
	cfg.Storage.StoragePath = storagePath
	cfg.Capacity.MaxCapacity = maxCapacity
	cfg.Capacity.JumpCapacity = jumpCapacity

	if err := os.MkdirAll(cfg.Storage.StoragePath, 0700); err != nil {
		return fmt.Errorf("create storage path: %w", err)
	}

	n, err := node.New(cfg, node.Dependencies{
		ChainURL:   chainURL,
		Keys:       keys,
		AccountHex: accountHex,
		ProviderID: providerID,
	})
	if err != nil {
		return fmt.Errorf("construct node: %w", err)
	}
	if err := n.Start(); err != nil {
		return fmt.Errorf("start node: %w", err)
	}
	defer n.Close()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	return n.Close()
}

func decodeProviderID(s string) (types.ProviderID, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return types.ProviderID{}, fmt.Errorf("decode --provider-id: %w", err)
	}
	var id types.ProviderID
	if len(raw) != len(id) {
		return types.ProviderID{}, fmt.Errorf("--provider-id must be %d bytes, got %d", len(id), len(raw))
	}
	copy(id[:], raw)
	return id, nil
}

func main() {
	if err := rootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "shnode:", err)
		os.Exit(1)
	}
}
