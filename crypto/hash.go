// Package crypto supplies the hashing and signing primitives used
// throughout the storage core. Every content-addressed identifier in the
// system - file keys, fingerprints, chunk hashes, and trie node hashes - is
// a Blake2b-256 digest. Because changing the hashing algorithm has much
// stronger implications than changing any other algorithm (it changes every
// identifier on the network), blake2b is the only supported hash; this
// package is not built to be pluggable.
package crypto

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"hash"
	"sort"

	"github.com/Moonsong-Labs/storage-hub-sub003/encoding"

	"golang.org/x/crypto/blake2b"
)

const (
	HashSize = 32
)

type (
	Hash [HashSize]byte

	// HashSlice is used for sorting
	HashSlice []Hash
)

var (
	ErrHashWrongLen = errors.New("encoded value has the wrong length to be a hash")
)

// NewHash returns a blake2b 256bit hasher.
func NewHash() hash.Hash {
	h, err := blake2b.New256(nil)
	if err != nil {
		// blake2b.New256(nil) only fails for a bad key length, and we never
		// supply a key.
		panic(err)
	}
	return h
}

// HashAll takes a set of objects as input, encodes them all using the encoding
// package, and then hashes the result.
func HashAll(objs ...interface{}) Hash {
	// Ideally we would just write HashBytes(encoding.MarshalAll(objs)).
	// Unfortunately, you can't pass 'objs' to MarshalAll without losing its
	// type information; MarshalAll would just see interface{}s.
	var b []byte
	for _, obj := range objs {
		b = append(b, encoding.Marshal(obj)...)
	}
	return HashBytes(b)
}

// HashBytes takes a byte slice and returns the result.
func HashBytes(data []byte) Hash {
	return Hash(blake2b.Sum256(data))
}

// HashObject takes an object as input, encodes it using the encoding package,
// and then hashes the result.
func HashObject(obj interface{}) Hash {
	return HashBytes(encoding.Marshal(obj))
}

// These functions implement sort.Interface, allowing hashes to be sorted.
func (hs HashSlice) Len() int           { return len(hs) }
func (hs HashSlice) Less(i, j int) bool { return bytes.Compare(hs[i][:], hs[j][:]) < 0 }
func (hs HashSlice) Swap(i, j int)      { hs[i], hs[j] = hs[j], hs[i] }

// MarshalJSON marshales a hash as a hex string.
func (h Hash) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.String())
}

// String prints the hash in hex.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// UnmarshalJSON decodes the json hex string of the hash.
func (h *Hash) UnmarshalJSON(b []byte) error {
	// *2 because there are 2 hex characters per byte.
	// +2 because the encoded JSON string has a `"` added at the beginning and end.
	if len(b) != HashSize*2+2 {
		return ErrHashWrongLen
	}

	// b[1 : len(b)-1] cuts off the leading and trailing `"` in the JSON string.
	hBytes, err := hex.DecodeString(string(b[1 : len(b)-1]))
	if err != nil {
		return errors.New("could not unmarshal crypto.Hash: " + err.Error())
	}
	copy(h[:], hBytes)
	return nil
}

// LoadString decodes a "0x"-prefixed (or bare) hex string into h. This is
// the inverse of String, and is how Hashes are read back out of the
// "0x<hex(key)>" on-disk directory names the forest handler uses for
// per-bucket Forests.
func (h *Hash) LoadString(s string) error {
	if len(s) >= 2 && s[0:2] == "0x" {
		s = s[2:]
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return err
	}
	return h.LoadBytes(b)
}

// LoadBytes copies b into h, failing if the length does not match.
func (h *Hash) LoadBytes(b []byte) error {
	if len(b) != HashSize {
		return ErrHashWrongLen
	}
	copy(h[:], b)
	return nil
}

// SortHashes sorts a slice of Hash in place in byte-lexicographic order,
// the order the trie's leaf traversal and neighbor-proof construction rely
// on.
func SortHashes(hs []Hash) {
	sort.Sort(HashSlice(hs))
}
