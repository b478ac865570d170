package trie

import (
	"github.com/Moonsong-Labs/storage-hub-sub003/crypto"
	"github.com/Moonsong-Labs/storage-hub-sub003/encoding"
)

// kind identifies the shape of an encoded trie node.
type kind uint8

const (
	kindLeaf kind = iota
	kindExtension
	kindBranch
)

// node is one node of the Merkle Patricia trie. Only the fields relevant to
// its kind are populated; the rest are left at their zero value, which
// encodeNode still encodes and hashes like any other field.
//
//   - leaf:      Path holds the nibbles remaining between this node and the
//     full 32-byte key it terminates. Leaves carry no value:
//     membership in the Forest is the only fact a leaf records.
//   - extension: Path holds a run of nibbles shared by every key under
//     Child, compressing what would otherwise be a chain of
//     single-child branches.
//   - branch:    Children holds up to 16 child node hashes, indexed by the
//     next nibble of the key. A zero Hash marks an empty slot.
type node struct {
	Kind     kind
	Path     []byte
	Child    crypto.Hash
	Children [16]crypto.Hash
}

// wireNode is node's on-disk/hash representation. It is a separate type so
// that encodeNode/decodeNode have one unambiguous format regardless of how
// the in-memory node struct evolves.
type wireNode struct {
	Kind     uint8
	Path     []byte
	Child    crypto.Hash
	Children [16]crypto.Hash
}

func encodeNode(n *node) []byte {
	return encoding.Marshal(wireNode{
		Kind:     uint8(n.Kind),
		Path:     n.Path,
		Child:    n.Child,
		Children: n.Children,
	})
}

func decodeNode(data []byte) (*node, error) {
	var w wireNode
	if err := encoding.Unmarshal(data, &w); err != nil {
		return nil, err
	}
	return &node{
		Kind:     kind(w.Kind),
		Path:     w.Path,
		Child:    w.Child,
		Children: w.Children,
	}, nil
}

// hashNode returns the content hash of n's encoded form. This is both the
// node's identity in the backend key-value store and the value a parent
// node's Child/Children entry points to.
func hashNode(n *node) crypto.Hash {
	return crypto.HashBytes(encodeNode(n))
}
