// Package trie implements the fixed-depth, fixed-hasher Merkle Patricia
// trie used by the Forest: an authenticated set of 32-byte file keys with
// no associated values, where only membership and lexicographic
// neighbor-ordering matter. Nodes are content-addressed by Blake2b-256 and
// read through a pluggable NodeSource, so the same trie logic serves both
// an in-memory overlay and a persisted, grocksdb-backed store.
package trie

import (
	"bytes"

	"github.com/Moonsong-Labs/storage-hub-sub003/crypto"
	"github.com/Moonsong-Labs/storage-hub-sub003/types"
)

// zero is the sentinel hash denoting an empty subtree (no node).
var zero crypto.Hash

// NodeSource reads previously committed trie nodes by their content hash.
// A Trie checks its in-memory overlay first and falls back to NodeSource
// only for nodes it did not itself just create.
type NodeSource interface {
	GetNode(h crypto.Hash) ([]byte, bool)
}

// Trie is a Merkle Patricia trie of 32-byte keys rooted at Root. Mutations
// are buffered in an in-memory overlay of newly created nodes; nothing is
// visible to NodeSource until a caller persists the overlay and advances
// the backend's stored root.
type Trie struct {
	source  NodeSource
	root    crypto.Hash
	overlay map[crypto.Hash][]byte
}

// New returns a Trie rooted at root, reading any node not found in its own
// overlay from source. Pass the zero Hash as root for a fresh, empty trie.
func New(source NodeSource, root crypto.Hash) *Trie {
	return &Trie{
		source:  source,
		root:    root,
		overlay: make(map[crypto.Hash][]byte),
	}
}

// Root returns the trie's current root hash. The zero Hash means the trie
// is empty.
func (t *Trie) Root() crypto.Hash {
	return t.root
}

// Overlay returns the set of newly created nodes, keyed by hash, that have
// not yet been flushed to the backend. A caller commits a Trie by writing
// this map (and the new Root) to its backend in a single batch.
func (t *Trie) Overlay() map[crypto.Hash][]byte {
	return t.overlay
}

func (t *Trie) fetch(h crypto.Hash) (*node, bool) {
	if h == zero {
		return nil, false
	}
	data, ok := t.overlay[h]
	if !ok {
		data, ok = t.source.GetNode(h)
		if !ok {
			return nil, false
		}
	}
	n, err := decodeNode(data)
	if err != nil {
		return nil, false
	}
	return n, true
}

func (t *Trie) put(n *node) crypto.Hash {
	data := encodeNode(n)
	h := crypto.HashBytes(data)
	t.overlay[h] = data
	return h
}

// Contains reports whether key is present in the trie.
func (t *Trie) Contains(key [32]byte) bool {
	return t.lookup(t.root, keyToNibbles(key))
}

func (t *Trie) lookup(nodeHash crypto.Hash, path []byte) bool {
	n, ok := t.fetch(nodeHash)
	if !ok {
		return false
	}
	switch n.Kind {
	case kindLeaf:
		return bytes.Equal(n.Path, path)
	case kindExtension:
		cp := commonPrefixLen(n.Path, path)
		if cp < len(n.Path) {
			return false
		}
		return t.lookup(n.Child, path[cp:])
	case kindBranch:
		if len(path) == 0 {
			return false
		}
		return t.lookup(n.Children[path[0]], path[1:])
	default:
		return false
	}
}

// Insert adds key to the trie, updating Root. It returns
// types.ErrFileKeyAlreadyPresent if key is already a member.
func (t *Trie) Insert(key [32]byte) error {
	newRoot, err := t.insert(t.root, keyToNibbles(key))
	if err != nil {
		return err
	}
	t.root = newRoot
	return nil
}

func (t *Trie) insert(nodeHash crypto.Hash, path []byte) (crypto.Hash, error) {
	if nodeHash == zero {
		return t.put(&node{Kind: kindLeaf, Path: append([]byte{}, path...)}), nil
	}

	n, _ := t.fetch(nodeHash)
	switch n.Kind {
	case kindLeaf:
		cp := commonPrefixLen(n.Path, path)
		if cp == len(n.Path) && cp == len(path) {
			return zero, types.ErrFileKeyAlreadyPresent
		}
		return t.splitLeaf(n, path, cp), nil

	case kindExtension:
		cp := commonPrefixLen(n.Path, path)
		if cp == len(n.Path) {
			newChild, err := t.insert(n.Child, path[cp:])
			if err != nil {
				return zero, err
			}
			return t.put(&node{Kind: kindExtension, Path: n.Path, Child: newChild}), nil
		}
		return t.splitExtension(n, path, cp), nil

	case kindBranch:
		if len(path) == 0 {
			return zero, types.ErrFileKeyAlreadyPresent
		}
		idx := path[0]
		newChild, err := t.insert(n.Children[idx], path[1:])
		if err != nil {
			return zero, err
		}
		children := n.Children
		children[idx] = newChild
		return t.put(&node{Kind: kindBranch, Children: children}), nil

	default:
		return zero, types.ErrInternal
	}
}

// splitLeaf replaces leaf n, whose remaining path diverges from path at
// nibble cp, with a branch (wrapped in an extension if cp > 0) holding both
// the old and new leaves.
func (t *Trie) splitLeaf(n *node, path []byte, cp int) crypto.Hash {
	var children [16]crypto.Hash
	children[n.Path[cp]] = t.put(&node{Kind: kindLeaf, Path: append([]byte{}, n.Path[cp+1:]...)})
	children[path[cp]] = t.put(&node{Kind: kindLeaf, Path: append([]byte{}, path[cp+1:]...)})
	branchHash := t.put(&node{Kind: kindBranch, Children: children})
	if cp == 0 {
		return branchHash
	}
	return t.put(&node{Kind: kindExtension, Path: append([]byte{}, n.Path[:cp]...), Child: branchHash})
}

// splitExtension replaces extension n, whose path diverges from path at
// nibble cp, with a branch (wrapped in a shortened extension if cp > 0)
// holding the old extension's remainder on one side and a new leaf on the
// other.
func (t *Trie) splitExtension(n *node, path []byte, cp int) crypto.Hash {
	var children [16]crypto.Hash

	var existingChild crypto.Hash
	if cp+1 < len(n.Path) {
		existingChild = t.put(&node{Kind: kindExtension, Path: append([]byte{}, n.Path[cp+1:]...), Child: n.Child})
	} else {
		existingChild = n.Child
	}
	children[n.Path[cp]] = existingChild
	children[path[cp]] = t.put(&node{Kind: kindLeaf, Path: append([]byte{}, path[cp+1:]...)})

	branchHash := t.put(&node{Kind: kindBranch, Children: children})
	if cp == 0 {
		return branchHash
	}
	return t.put(&node{Kind: kindExtension, Path: append([]byte{}, n.Path[:cp]...), Child: branchHash})
}

// Delete removes key from the trie if present, updating Root. Deleting an
// absent key is a no-op, matching the Forest's idempotent delete semantics.
func (t *Trie) Delete(key [32]byte) {
	t.root = t.delete(t.root, keyToNibbles(key))
}

func (t *Trie) delete(nodeHash crypto.Hash, path []byte) crypto.Hash {
	n, ok := t.fetch(nodeHash)
	if !ok {
		return zero
	}

	switch n.Kind {
	case kindLeaf:
		if bytes.Equal(n.Path, path) {
			return zero
		}
		return nodeHash

	case kindExtension:
		cp := commonPrefixLen(n.Path, path)
		if cp < len(n.Path) {
			return nodeHash
		}
		newChild := t.delete(n.Child, path[cp:])
		if newChild == n.Child {
			return nodeHash
		}
		if newChild == zero {
			return zero
		}
		return t.mergeExtension(n.Path, newChild)

	case kindBranch:
		if len(path) == 0 {
			return nodeHash
		}
		idx := path[0]
		newChildHash := t.delete(n.Children[idx], path[1:])
		if newChildHash == n.Children[idx] {
			return nodeHash
		}
		children := n.Children
		children[idx] = newChildHash

		count, last := 0, -1
		for i, h := range children {
			if h != zero {
				count++
				last = i
			}
		}
		switch count {
		case 0:
			return zero
		case 1:
			return t.mergeBranchChild(byte(last), children[last])
		default:
			return t.put(&node{Kind: kindBranch, Children: children})
		}

	default:
		return nodeHash
	}
}

// mergeExtension rebuilds an extension with path prefix, collapsing it into
// its child if the child is itself a leaf or extension so that two
// adjacent compressible nodes never persist separately.
func (t *Trie) mergeExtension(prefix []byte, childHash crypto.Hash) crypto.Hash {
	child, ok := t.fetch(childHash)
	if !ok {
		return t.put(&node{Kind: kindExtension, Path: prefix, Child: childHash})
	}
	switch child.Kind {
	case kindLeaf:
		return t.put(&node{Kind: kindLeaf, Path: append(append([]byte{}, prefix...), child.Path...)})
	case kindExtension:
		return t.put(&node{Kind: kindExtension, Path: append(append([]byte{}, prefix...), child.Path...), Child: child.Child})
	default:
		return t.put(&node{Kind: kindExtension, Path: prefix, Child: childHash})
	}
}

// mergeBranchChild folds a branch's sole remaining child, reached via
// nibble, into a single node prefixed by that nibble.
func (t *Trie) mergeBranchChild(nibble byte, childHash crypto.Hash) crypto.Hash {
	child, ok := t.fetch(childHash)
	if !ok {
		return t.put(&node{Kind: kindExtension, Path: []byte{nibble}, Child: childHash})
	}
	switch child.Kind {
	case kindLeaf:
		return t.put(&node{Kind: kindLeaf, Path: append([]byte{nibble}, child.Path...)})
	case kindExtension:
		return t.put(&node{Kind: kindExtension, Path: append([]byte{nibble}, child.Path...), Child: child.Child})
	default:
		return t.put(&node{Kind: kindExtension, Path: []byte{nibble}, Child: childHash})
	}
}
