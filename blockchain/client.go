package blockchain

import (
	"context"
	"encoding/hex"
	"fmt"

	gsrpc "github.com/centrifuge/go-substrate-rpc-client/v4"
	"github.com/centrifuge/go-substrate-rpc-client/v4/signature"
	gsrpctypes "github.com/centrifuge/go-substrate-rpc-client/v4/types"

	"github.com/Moonsong-Labs/storage-hub-sub003/crypto"
)

// substrateNetwork is the SS58 address network byte used to derive the
// signing account's address from its raw public key. 42 is the generic
// Substrate "any network" prefix.
const substrateNetwork = 42

// client.go is the one place gsrpc's own vocabulary leaks into this
// package: block subscription, runtime-API queries, and extrinsic signing
// and submission (spec.md §1 "Chain transport", §4.5). Everything above
// this file (Service, the task packages) only ever sees types values.

// KeyStore is the external collaborator holding the node's signing secret
// (spec.md §4.5, "a fixed key-type from the key store"; out of scope per
// spec.md's Non-goals beyond this narrow read contract).
type KeyStore interface {
	SecretKey() crypto.SecretKey
}

// ChainClient wraps one gsrpc connection: cached metadata and runtime
// version, and the signing key for extrinsic construction.
type ChainClient struct {
	api            *gsrpc.SubstrateAPI
	meta           *gsrpctypes.Metadata
	genesisHash    gsrpctypes.Hash
	runtimeVersion gsrpctypes.RuntimeVersion
	keys           KeyStore
}

// Dial connects to a Substrate-compatible chain node at url and caches the
// metadata and runtime version every subsequent extrinsic is built against.
func Dial(url string, keys KeyStore) (*ChainClient, error) {
	api, err := gsrpc.NewSubstrateAPI(url)
	if err != nil {
		return nil, fmt.Errorf("dial chain client: %w", err)
	}
	meta, err := api.RPC.State.GetMetadataLatest()
	if err != nil {
		return nil, fmt.Errorf("fetch metadata: %w", err)
	}
	genesisHash, err := api.RPC.Chain.GetBlockHash(0)
	if err != nil {
		return nil, fmt.Errorf("fetch genesis hash: %w", err)
	}
	rv, err := api.RPC.State.GetRuntimeVersionLatest()
	if err != nil {
		return nil, fmt.Errorf("fetch runtime version: %w", err)
	}
	return &ChainClient{api: api, meta: meta, genesisHash: genesisHash, runtimeVersion: *rv, keys: keys}, nil
}

// Close releases the underlying connection.
func (c *ChainClient) Close() {
	if c.api != nil && c.api.Client != nil {
		c.api.Client.Close()
	}
}

// SubscribeImportedBlocks drives the Blockchain Service's block-import loop
// (spec.md §4.5's "Stream input"): it returns a channel of new headers and
// an unsubscribe function.
func (c *ChainClient) SubscribeImportedBlocks() (<-chan gsrpctypes.Header, func(), error) {
	sub, err := c.api.RPC.Chain.SubscribeNewHeads()
	if err != nil {
		return nil, nil, err
	}
	return sub.Chan(), sub.Unsubscribe, nil
}

// BlockEvents fetches and returns the raw System.Events storage item for a
// block, for the caller to decode into domain events.
func (c *ChainClient) BlockEvents(hash gsrpctypes.Hash) (gsrpctypes.StorageDataRaw, error) {
	key, err := gsrpctypes.CreateStorageKey(c.meta, "System", "Events", nil)
	if err != nil {
		return nil, err
	}
	var raw gsrpctypes.StorageDataRaw
	ok, err := c.api.RPC.State.GetStorage(key, &raw, hash)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return raw, nil
}

// RuntimeAPICall performs a generic runtime-API call at the chain head, for
// the narrow read-only queries spec.md §6 enumerates
// (query_storage_provider_id and friends): each caller SCALE-encodes its own
// arguments and decodes the raw response itself, so this file does not need
// to know each query's argument or return shape.
func (c *ChainClient) RuntimeAPICall(ctx context.Context, method string, encodedArgs []byte) ([]byte, error) {
	head, err := c.api.RPC.Chain.GetBlockHashLatest()
	if err != nil {
		return nil, err
	}
	raw, err := c.api.RPC.State.Call(method, hex.EncodeToString(encodedArgs), head)
	if err != nil {
		return nil, err
	}
	return raw, nil
}

// SubmitExtrinsic builds a signed call under nonce and tip and submits it,
// blocking until the chain reports it InBlock or rejects it.
func (c *ChainClient) SubmitExtrinsic(ctx context.Context, moduleName, callName string, nonce, tip uint64, args ...interface{}) error {
	call, err := gsrpctypes.NewCall(c.meta, moduleName+"."+callName, args...)
	if err != nil {
		return fmt.Errorf("build call %s.%s: %w", moduleName, callName, err)
	}
	ext := gsrpctypes.NewExtrinsic(call)

	kp, err := c.keyringPair()
	if err != nil {
		return fmt.Errorf("derive keyring pair: %w", err)
	}

	o := gsrpctypes.SignatureOptions{
		BlockHash:          c.genesisHash,
		Era:                gsrpctypes.ExtrinsicEra{IsImmortalEra: true},
		GenesisHash:        c.genesisHash,
		Nonce:              gsrpctypes.NewUCompactFromUInt(nonce),
		SpecVersion:        c.runtimeVersion.SpecVersion,
		Tip:                gsrpctypes.NewUCompactFromUInt(tip),
		TransactionVersion: c.runtimeVersion.TransactionVersion,
	}
	if err := ext.Sign(kp, o); err != nil {
		return fmt.Errorf("sign extrinsic %s.%s: %w", moduleName, callName, err)
	}

	sub, err := c.api.RPC.Author.SubmitAndWatchExtrinsic(ext)
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	for {
		select {
		case status := <-sub.Chan():
			switch {
			case status.IsInBlock, status.IsFinalized:
				return nil
			case status.IsDropped, status.IsInvalid, status.IsUsurped:
				return fmt.Errorf("extrinsic %s.%s rejected: %+v", moduleName, callName, status)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *ChainClient) keyringPair() (signature.KeyringPair, error) {
	secret := c.keys.SecretKey()
	return signature.KeyringPairFromSecret(hex.EncodeToString(secret[:]), substrateNetwork)
}

// AccountNextIndex reports the account's current nonce, used once at
// startup to seed the Blockchain Service's own nonce counter.
func (c *ChainClient) AccountNextIndex(accountHex string) (uint64, error) {
	var idx gsrpctypes.U32
	err := c.api.Client.Call(&idx, "system_accountNextIndex", accountHex)
	return uint64(idx), err
}
