package types

import (
	"github.com/Moonsong-Labs/storage-hub-sub003/crypto"
)

// Hash is the content-addressed identifier used for file keys, fingerprints,
// chunk hashes, trie node hashes, and challenge seeds. It is an alias for
// crypto.Hash so that the domain types in this package and the hashing
// primitives in crypto share one definition instead of two.
type Hash = crypto.Hash

// HashSlice sorts a slice of Hash in crypto's byte-lexicographic order.
type HashSlice = crypto.HashSlice

// SortHashes sorts hs in place in byte-lexicographic order, the order the
// trie's leaf traversal and neighbor-proof construction rely on.
func SortHashes(hs []Hash) {
	crypto.SortHashes(hs)
}
