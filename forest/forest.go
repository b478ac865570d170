// Package forest implements types.ForestStorage: one Merkle Patricia trie
// of file keys, layered over a triebackend.Backend, with the read/write
// locking and deleting-flag semantics spec.md §4.2 requires.
package forest

import (
	"sync"

	"github.com/Moonsong-Labs/storage-hub-sub003/crypto"
	"github.com/Moonsong-Labs/storage-hub-sub003/trie"
	"github.com/Moonsong-Labs/storage-hub-sub003/types"
)

// backend is the subset of triebackend.Backend a Forest needs. Declaring
// it here (rather than depending on the concrete type) lets tests supply
// an in-memory double without a real grocksdb instance.
type backend interface {
	trie.NodeSource
	StorageRoot() (crypto.Hash, bool, error)
	Commit(overlay map[crypto.Hash][]byte, root crypto.Hash) error
}

// Forest is one bucket's (MSP) or the fixed (BSP) authenticated set of file
// keys. It is safe for concurrent use: readers (ContainsFileKey,
// GenerateProof, Root) may run in parallel; writers (InsertMetadata,
// DeleteFileKey) serialize against both readers and each other.
type Forest struct {
	mu       sync.RWMutex
	backend  backend
	root     crypto.Hash
	deleting bool
}

// Open loads (or initializes, if the backend has never been committed to)
// a Forest over backend.
func Open(b backend) (*Forest, error) {
	root, ok, err := b.StorageRoot()
	if err != nil {
		return nil, err
	}
	if !ok {
		root = crypto.Hash{} // the canonical empty-Forest root
	}
	return &Forest{backend: b, root: root}, nil
}

// MarkDeleting flags the Forest as being torn down. Every operation after
// this point fails explicitly rather than silently operating against a
// Forest whose backend is about to be removed.
func (f *Forest) MarkDeleting() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleting = true
}

func (f *Forest) checkNotDeleting() error {
	if f.deleting {
		return types.ErrForestDeleting
	}
	return nil
}

// Root returns the Forest's current root hash.
func (f *Forest) Root() types.Hash {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.root
}

// ContainsFileKey reports whether key is a member of the Forest.
func (f *Forest) ContainsFileKey(key types.Hash) (bool, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if err := f.checkNotDeleting(); err != nil {
		return false, err
	}
	return trie.New(f.backend, f.root).Contains(key), nil
}

// InsertMetadata derives m's file key, inserts it into the trie, and
// commits the new root. It returns types.ErrFileKeyAlreadyPresent if the
// key is already a member.
func (f *Forest) InsertMetadata(m types.FileMetadata) (types.Hash, error) {
	if err := m.Validate(); err != nil {
		return types.Hash{}, err
	}
	key := m.FileKey()

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkNotDeleting(); err != nil {
		return types.Hash{}, err
	}

	tr := trie.New(f.backend, f.root)
	if err := tr.Insert(key); err != nil {
		return types.Hash{}, err
	}
	if err := f.commit(tr); err != nil {
		return types.Hash{}, err
	}
	return key, nil
}

// DeleteFileKey removes key from the Forest. Deleting an absent key is a
// no-op, matching spec.md's idempotent delete semantics.
func (f *Forest) DeleteFileKey(key types.Hash) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkNotDeleting(); err != nil {
		return err
	}

	tr := trie.New(f.backend, f.root)
	tr.Delete(key)
	return f.commit(tr)
}

// GenerateProof answers every challenge in challenges against the current
// root. It takes only a read lock: proof generation does not mutate the
// trie and may run concurrently with other readers.
func (f *Forest) GenerateProof(challenges []types.Hash) (types.ForestProof, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if err := f.checkNotDeleting(); err != nil {
		return types.ForestProof{}, err
	}

	keys := make([][32]byte, len(challenges))
	for i, c := range challenges {
		keys[i] = c
	}

	tr := trie.New(f.backend, f.root)
	proof, err := tr.GenerateProof(keys)
	if err != nil {
		return types.ForestProof{}, err
	}
	for _, p := range proof.Proven {
		if p.IsEmpty() {
			return proof, types.ErrEmptyForestChallenged
		}
	}
	return proof, nil
}

// commit flushes tr's overlay and new root to the backend, skipping the
// write entirely when the root has not changed (spec.md's no-op-commit
// invariant). Callers must hold f.mu for writing.
func (f *Forest) commit(tr *trie.Trie) error {
	newRoot := tr.Root()
	if newRoot == f.root {
		return nil
	}
	if err := f.backend.Commit(tr.Overlay(), newRoot); err != nil {
		return err
	}
	f.root = newRoot
	return nil
}
