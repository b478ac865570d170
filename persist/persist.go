// Package persist implements this node's ambient persistence concerns:
// structured logging, small versioned JSON files, and a bbolt-backed
// bookkeeping store for small node-local state. Forest and file-chunk data
// live in grocksdb (see the trie, triebackend, forest, and filestorage
// packages); this package is only for the node's own small, non-authenticated
// state.
package persist

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
)

// persistDir names this package's subdirectory under the testing root. The
// package's own tests write into t.TempDir() instead.
const persistDir = "persist"

var (
	// ErrBadHeader indicates that a persisted file's header does not match
	// the header the caller expected.
	ErrBadHeader = errors.New("wrong header")

	// ErrBadVersion indicates that a persisted file or database's version
	// does not match the version the caller expected.
	ErrBadVersion = errors.New("wrong version")
)

// Metadata contains the header and version of a persisted file or
// database, used to sanity-check that a caller is opening the file it
// thinks it is opening.
type Metadata struct {
	Header  string
	Version string
}

// RandomSuffix returns a 20-character hex string suitable for disambiguating
// temporary filenames.
func RandomSuffix() string {
	b := make([]byte, 10)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}
