// Package triebackend is the grocksdb-backed key-value store underneath
// every Forest: it stores trie nodes keyed by a hash of their node hash
// prefixed by the owning Forest's namespace, and tracks the Forest's
// current root at a single reserved key.
package triebackend

import (
	"github.com/linxGnu/grocksdb"

	"github.com/Moonsong-Labs/storage-hub-sub003/crypto"
)

// rootKey is the reserved key, within a Forest's column family, holding the
// 32 bytes of its current trie root.
var rootKey = []byte(":root")

// Backend is one Forest's view over a column family of a shared grocksdb
// database: every trie node it reads or writes is namespaced by prefix, so
// that (in principle) more than one Forest could share a column family
// without their node hashes colliding.
type Backend struct {
	db     *grocksdb.DB
	cf     *grocksdb.ColumnFamilyHandle
	prefix []byte
}

// New returns a Backend reading and writing column family cf of db, with
// every trie node key namespaced by prefix.
func New(db *grocksdb.DB, cf *grocksdb.ColumnFamilyHandle, prefix []byte) *Backend {
	return &Backend{db: db, cf: cf, prefix: append([]byte(nil), prefix...)}
}

// nodeKey derives the physical storage key for a trie node hash: the hash
// of this Backend's prefix concatenated with the node hash. Keying nodes
// this way, rather than by their hash alone, is what lets column families
// be shared across Forests without collision.
func (b *Backend) nodeKey(nodeHash crypto.Hash) []byte {
	h := crypto.HashAll(b.prefix, nodeHash)
	return h[:]
}

// GetNode implements trie.NodeSource: it reads the encoded node with the
// given content hash, or reports it absent.
func (b *Backend) GetNode(nodeHash crypto.Hash) ([]byte, bool) {
	ro := grocksdb.NewDefaultReadOptions()
	defer ro.Destroy()

	value, err := b.db.GetCF(ro, b.cf, b.nodeKey(nodeHash))
	if err != nil {
		return nil, false
	}
	defer value.Free()

	if !value.Exists() {
		return nil, false
	}
	return append([]byte(nil), value.Data()...), true
}

// StorageRoot reads the reserved root key, returning ok=false if the
// Forest has never been committed to (a fresh, empty backend).
func (b *Backend) StorageRoot() (crypto.Hash, bool, error) {
	ro := grocksdb.NewDefaultReadOptions()
	defer ro.Destroy()

	value, err := b.db.GetCF(ro, b.cf, rootKey)
	if err != nil {
		return crypto.Hash{}, false, err
	}
	defer value.Free()

	if !value.Exists() {
		return crypto.Hash{}, false, nil
	}
	var root crypto.Hash
	if err := root.LoadBytes(value.Data()); err != nil {
		return crypto.Hash{}, false, err
	}
	return root, true, nil
}

// Commit atomically writes every node in overlay plus the new root in a
// single write batch. Call sites are expected to have already checked the
// new root differs from the persisted one; Commit itself does not skip a
// redundant write.
func (b *Backend) Commit(overlay map[crypto.Hash][]byte, root crypto.Hash) error {
	batch := grocksdb.NewWriteBatch()
	defer batch.Destroy()

	for nodeHash, data := range overlay {
		batch.PutCF(b.cf, b.nodeKey(nodeHash), data)
	}
	batch.PutCF(b.cf, rootKey, root[:])

	wo := grocksdb.NewDefaultWriteOptions()
	defer wo.Destroy()
	return b.db.Write(wo, batch)
}

// DeleteAll removes the stored entry of every node hash in keys, plus the
// root key. Nodes not listed in keys are left in place.
// It is used when a Forest is destroyed in place rather than by deleting
// its entire on-disk directory (the in-memory/test variant of Forest
// removal, or a shared-column-family deployment).
func (b *Backend) DeleteAll(keys []crypto.Hash) error {
	batch := grocksdb.NewWriteBatch()
	defer batch.Destroy()

	for _, nodeHash := range keys {
		batch.DeleteCF(b.cf, b.nodeKey(nodeHash))
	}
	batch.DeleteCF(b.cf, rootKey)

	wo := grocksdb.NewDefaultWriteOptions()
	defer wo.Destroy()
	return b.db.Write(wo, batch)
}
