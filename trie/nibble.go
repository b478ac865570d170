package trie

import "github.com/Moonsong-Labs/storage-hub-sub003/build"

// keyToNibbles expands a 32-byte file key into 64 nibbles (4-bit values),
// high nibble of each byte first. The trie is keyed on nibbles rather than
// raw bytes so that branch nodes can fan out 16 ways per path element.
func keyToNibbles(key [32]byte) []byte {
	nibbles := make([]byte, 64)
	for i, b := range key {
		nibbles[2*i] = b >> 4
		nibbles[2*i+1] = b & 0x0f
	}
	return nibbles
}

// nibblesToKey packs 64 nibbles back into a 32-byte key. It panics if given
// anything other than exactly 64 nibbles, since every leaf in this trie
// terminates at a full-depth key.
func nibblesToKey(nibbles []byte) (key [32]byte) {
	if len(nibbles) != 64 {
		build.Critical("trie: expected exactly 64 nibbles, got", len(nibbles))
	}
	for i := 0; i < 32; i++ {
		key[i] = nibbles[2*i]<<4 | nibbles[2*i+1]
	}
	return key
}

// commonPrefixLen returns the number of leading nibbles shared by a and b.
func commonPrefixLen(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return i
}
