package trie

import (
	"bytes"
	"sort"

	"github.com/Moonsong-Labs/storage-hub-sub003/crypto"
	"github.com/Moonsong-Labs/storage-hub-sub003/encoding"
	"github.com/Moonsong-Labs/storage-hub-sub003/types"
)

// recorder accumulates the encoded form of every node visited while
// answering a batch of challenges, so a compact proof can be serialized
// from exactly the nodes a verifier needs and nothing else.
type recorder struct {
	nodes map[crypto.Hash][]byte
}

func newRecorder() *recorder {
	return &recorder{nodes: make(map[crypto.Hash][]byte)}
}

func (r *recorder) visit(h crypto.Hash, data []byte) {
	if _, ok := r.nodes[h]; !ok {
		r.nodes[h] = append([]byte(nil), data...)
	}
}

// compactProofEntry is one (hash, encoded node) pair in a serialized
// compact proof.
type compactProofEntry struct {
	Hash crypto.Hash
	Data []byte
}

// serialize encodes the recorded node set as a deterministically ordered
// compact proof. Ordering by hash keeps the encoding stable across runs
// that visit the same nodes in a different order.
func (r *recorder) serialize() []byte {
	entries := make([]compactProofEntry, 0, len(r.nodes))
	for h, data := range r.nodes {
		entries = append(entries, compactProofEntry{Hash: h, Data: data})
	}
	sort.Slice(entries, func(i, j int) bool {
		return bytes.Compare(entries[i].Hash[:], entries[j].Hash[:]) < 0
	})
	return encoding.Marshal(entries)
}

// fetchRecording fetches the node at h (overlay first, then the backend),
// recording its encoded bytes into rec if found.
func (t *Trie) fetchRecording(h crypto.Hash, rec *recorder) (*node, bool) {
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
	rec.visit(h, data)
	n, err := decodeNode(data)
	if err != nil {
		return nil, false
	}
	return n, true
}

// GenerateProof builds a ForestProof covering every challenge key: an
// ExactKey entry when the key is present, or a NeighborKeys entry bounding
// where it would sit otherwise. All nodes visited while answering every
// challenge are recorded once into a single compact proof.
func (t *Trie) GenerateProof(challenges [][32]byte) (types.ForestProof, error) {
	rec := newRecorder()
	proven := make([]types.Proven, 0, len(challenges))

	for _, challenge := range challenges {
		path := keyToNibbles(challenge)
		if t.recordedLookup(t.root, path, rec) {
			proven = append(proven, types.Proven{
				Kind:     types.ProvenExactKey,
				ExactKey: challenge,
			})
			continue
		}

		left, hasLeft := t.floor(t.root, nil, path, rec)
		right, hasRight := t.ceil(t.root, nil, path, rec)

		p := types.Proven{Kind: types.ProvenNeighborKeys}
		if hasLeft {
			l := left
			p.Left = &l
		}
		if hasRight {
			r := right
			p.Right = &r
		}
		proven = append(proven, p)
	}

	return types.ForestProof{
		Proven:       proven,
		CompactProof: rec.serialize(),
		Root:         t.root,
	}, nil
}

func (t *Trie) recordedLookup(nodeHash crypto.Hash, path []byte, rec *recorder) bool {
	n, ok := t.fetchRecording(nodeHash, rec)
	if !ok {
		return false
	}
	switch n.Kind {
	case kindLeaf:
		return nibbleCompare(n.Path, path) == 0
	case kindExtension:
		cp := commonPrefixLen(n.Path, path)
		if cp < len(n.Path) {
			return false
		}
		return t.recordedLookup(n.Child, path[cp:], rec)
	case kindBranch:
		if len(path) == 0 {
			return false
		}
		return t.recordedLookup(n.Children[path[0]], path[1:], rec)
	default:
		return false
	}
}

// floor returns the greatest key <= target that exists under nodeHash, with
// prefix the nibbles already consumed on the path from the root.
func (t *Trie) floor(nodeHash crypto.Hash, prefix, target []byte, rec *recorder) ([32]byte, bool) {
	var zeroKey [32]byte
	n, ok := t.fetchRecording(nodeHash, rec)
	if !ok {
		return zeroKey, false
	}

	switch n.Kind {
	case kindLeaf:
		if nibbleCompare(n.Path, target) <= 0 {
			return nibblesToKey(append(append([]byte{}, prefix...), n.Path...)), true
		}
		return zeroKey, false

	case kindExtension:
		cp := commonPrefixLen(n.Path, target)
		childPrefix := append(append([]byte{}, prefix...), n.Path...)
		if cp == len(n.Path) {
			return t.floor(n.Child, childPrefix, target[cp:], rec)
		}
		if n.Path[cp] < target[cp] {
			return t.maxLeafUnder(n.Child, childPrefix, rec), true
		}
		return zeroKey, false

	case kindBranch:
		if len(target) == 0 {
			return zeroKey, false
		}
		idx := int(target[0])
		if n.Children[idx] != zero {
			if key, ok := t.floor(n.Children[idx], append(append([]byte{}, prefix...), byte(idx)), target[1:], rec); ok {
				return key, true
			}
		}
		for i := idx - 1; i >= 0; i-- {
			if n.Children[i] != zero {
				return t.maxLeafUnder(n.Children[i], append(append([]byte{}, prefix...), byte(i)), rec), true
			}
		}
		return zeroKey, false

	default:
		return zeroKey, false
	}
}

// ceil returns the least key >= target that exists under nodeHash.
func (t *Trie) ceil(nodeHash crypto.Hash, prefix, target []byte, rec *recorder) ([32]byte, bool) {
	var zeroKey [32]byte
	n, ok := t.fetchRecording(nodeHash, rec)
	if !ok {
		return zeroKey, false
	}

	switch n.Kind {
	case kindLeaf:
		if nibbleCompare(n.Path, target) >= 0 {
			return nibblesToKey(append(append([]byte{}, prefix...), n.Path...)), true
		}
		return zeroKey, false

	case kindExtension:
		cp := commonPrefixLen(n.Path, target)
		childPrefix := append(append([]byte{}, prefix...), n.Path...)
		if cp == len(n.Path) {
			return t.ceil(n.Child, childPrefix, target[cp:], rec)
		}
		if n.Path[cp] > target[cp] {
			return t.minLeafUnder(n.Child, childPrefix, rec), true
		}
		return zeroKey, false

	case kindBranch:
		if len(target) == 0 {
			return zeroKey, false
		}
		idx := int(target[0])
		if n.Children[idx] != zero {
			if key, ok := t.ceil(n.Children[idx], append(append([]byte{}, prefix...), byte(idx)), target[1:], rec); ok {
				return key, true
			}
		}
		for i := idx + 1; i < len(n.Children); i++ {
			if n.Children[i] != zero {
				return t.minLeafUnder(n.Children[i], append(append([]byte{}, prefix...), byte(i)), rec), true
			}
		}
		return zeroKey, false

	default:
		return zeroKey, false
	}
}

// maxLeafUnder returns the full key of the rightmost (lexicographically
// greatest) leaf reachable under nodeHash. It assumes nodeHash != zero.
func (t *Trie) maxLeafUnder(nodeHash crypto.Hash, prefix []byte, rec *recorder) [32]byte {
	n, _ := t.fetchRecording(nodeHash, rec)
	switch n.Kind {
	case kindLeaf:
		return nibblesToKey(append(append([]byte{}, prefix...), n.Path...))
	case kindExtension:
		return t.maxLeafUnder(n.Child, append(append([]byte{}, prefix...), n.Path...), rec)
	case kindBranch:
		for i := len(n.Children) - 1; i >= 0; i-- {
			if n.Children[i] != zero {
				return t.maxLeafUnder(n.Children[i], append(append([]byte{}, prefix...), byte(i)), rec)
			}
		}
	}
	var zeroKey [32]byte
	return zeroKey
}

// minLeafUnder returns the full key of the leftmost (lexicographically
// least) leaf reachable under nodeHash. It assumes nodeHash != zero.
func (t *Trie) minLeafUnder(nodeHash crypto.Hash, prefix []byte, rec *recorder) [32]byte {
	n, _ := t.fetchRecording(nodeHash, rec)
	switch n.Kind {
	case kindLeaf:
		return nibblesToKey(append(append([]byte{}, prefix...), n.Path...))
	case kindExtension:
		return t.minLeafUnder(n.Child, append(append([]byte{}, prefix...), n.Path...), rec)
	case kindBranch:
		for i := 0; i < len(n.Children); i++ {
			if n.Children[i] != zero {
				return t.minLeafUnder(n.Children[i], append(append([]byte{}, prefix...), byte(i)), rec)
			}
		}
	}
	var zeroKey [32]byte
	return zeroKey
}

// nibbleCompare compares two equal-length nibble slices lexicographically.
func nibbleCompare(a, b []byte) int {
	for i := range a {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}
