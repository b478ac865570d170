// Package foresthandler implements types.ForestStorageHandler: the
// lifecycle manager for every open forest.Forest a node holds, keyed by
// bucket id (MSP deployments) or types.FixedBSPForestKey (BSP
// deployments). It enforces spec.md §4.3's bounded open-handle LRU cache,
// lazy load, snapshot, and safe removal, and the known-set/open-cache lock
// ordering §9 calls out as a strict invariant.
package foresthandler

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/linxGnu/grocksdb"

	"github.com/Moonsong-Labs/storage-hub-sub003/forest"
	"github.com/Moonsong-Labs/storage-hub-sub003/persist/migrations"
	"github.com/Moonsong-Labs/storage-hub-sub003/triebackend"
	"github.com/Moonsong-Labs/storage-hub-sub003/types"
)

// trieNodesCF is the single column family a Forest's own database keeps
// its trie nodes and reserved root key in.
const trieNodesCF = "trie_nodes"

// schemaMigrations is the Forest database schema's migration set. It has
// no deprecated column families yet; new migrations are appended here as
// the schema evolves, never by renumbering an existing one.
var schemaMigrations = migrations.NewMigrationRunner(nil)

// openForest pairs a live *forest.Forest with the database handle backing
// it, so the handler can close the handle on eviction or removal.
type openForest struct {
	db     *grocksdb.DB
	forest *forest.Forest
}

// Handler manages many Forests under storageRoot, one subdirectory per
// key. It is safe for concurrent use.
type Handler struct {
	storageRoot string

	knownMu sync.Mutex
	known   map[types.Hash]struct{}

	cacheMu sync.Mutex
	cache   *lru.Cache[types.Hash, *openForest]
}

// New returns a Handler rooted at storageRoot, with at most maxOpenForests
// Forest databases held open at once. Keys already present on disk (from a
// previous run) are discovered and added to the known-set so Get can find
// them without an explicit Create.
func New(storageRoot string, maxOpenForests int) (*Handler, error) {
	h := &Handler{
		storageRoot: storageRoot,
		known:       make(map[types.Hash]struct{}),
	}

	cache, err := lru.NewWithEvict[types.Hash, *openForest](maxOpenForests, func(_ types.Hash, of *openForest) {
		of.db.Close()
	})
	if err != nil {
		return nil, err
	}
	h.cache = cache

	entries, err := os.ReadDir(storageRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return h, nil
		}
		return nil, err
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		var key types.Hash
		if err := key.LoadString(entry.Name()); err != nil {
			continue // not one of ours
		}
		h.known[key] = struct{}{}
	}
	return h, nil
}

func (h *Handler) dirFor(key types.Hash) string {
	return filepath.Join(h.storageRoot, fmt.Sprintf("0x%x", key[:]))
}

// open opens (creating column families as needed) the Forest database at
// key's directory and wraps it as a forest.Forest. Caller must hold
// h.cacheMu.
func (h *Handler) open(key types.Hash) (*openForest, error) {
	dir := h.dirFor(key)
	result, err := migrations.OpenDBWithMigrations(dir, []string{trieNodesCF}, schemaMigrations)
	if err != nil {
		return nil, err
	}
	backend := triebackend.New(result.DB, result.ColumnFamilies[trieNodesCF], key[:])
	f, err := forest.Open(backend)
	if err != nil {
		result.DB.Close()
		return nil, err
	}
	return &openForest{db: result.DB, forest: f}, nil
}

// Get returns the Forest for key if key is known, lazily opening it from
// disk if it was evicted from (or never loaded into) the open-handle
// cache.
func (h *Handler) Get(key types.Hash) (types.ForestStorage, bool, error) {
	h.knownMu.Lock()
	_, known := h.known[key]
	h.knownMu.Unlock()
	if !known {
		return nil, false, nil
	}

	h.cacheMu.Lock()
	defer h.cacheMu.Unlock()
	if of, ok := h.cache.Get(key); ok {
		return of.forest, true, nil
	}

	of, err := h.open(key)
	if err != nil {
		return nil, false, err
	}
	h.cache.Add(key, of)
	return of.forest, true, nil
}

// Create registers key in the known-set (if not already present) and
// returns its Forest, opening or creating the backing database as needed.
// A concurrent Create for an already-known key behaves exactly like Get.
func (h *Handler) Create(key types.Hash) (types.ForestStorage, error) {
	h.knownMu.Lock()
	defer h.knownMu.Unlock()

	if _, ok := h.known[key]; ok {
		h.cacheMu.Lock()
		defer h.cacheMu.Unlock()
		if of, ok := h.cache.Get(key); ok {
			return of.forest, nil
		}
		of, err := h.open(key)
		if err != nil {
			return nil, err
		}
		h.cache.Add(key, of)
		return of.forest, nil
	}

	h.cacheMu.Lock()
	of, err := h.open(key)
	if err != nil {
		h.cacheMu.Unlock()
		return nil, err
	}
	h.cache.Add(key, of)
	h.cacheMu.Unlock()

	h.known[key] = struct{}{}
	return of.forest, nil
}

// Snapshot copies src's on-disk database to dest's directory and opens it
// as a new, independently mutable Forest. If dest is already known, the
// existing Forest is returned instead (idempotent under concurrent
// snapshot calls racing on the same dest).
func (h *Handler) Snapshot(src, dest types.Hash) (types.ForestStorage, bool, error) {
	h.knownMu.Lock()
	if _, ok := h.known[dest]; ok {
		h.knownMu.Unlock()
		f, _, err := h.Get(dest)
		return f, true, err
	}
	h.knownMu.Unlock()

	srcForest, ok, err := h.Get(src)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, types.ErrForestKeyUnknown
	}
	_ = srcForest // the read lock spec.md calls for lives inside forest.Forest's own methods

	if err := copyDir(h.dirFor(src), h.dirFor(dest)); err != nil {
		return nil, false, err
	}

	h.knownMu.Lock()
	defer h.knownMu.Unlock()
	if _, ok := h.known[dest]; ok {
		h.cacheMu.Lock()
		defer h.cacheMu.Unlock()
		if of, ok := h.cache.Get(dest); ok {
			return of.forest, true, nil
		}
		of, err := h.open(dest)
		if err != nil {
			return nil, false, err
		}
		h.cache.Add(dest, of)
		return of.forest, true, nil
	}

	h.cacheMu.Lock()
	of, err := h.open(dest)
	if err != nil {
		h.cacheMu.Unlock()
		return nil, false, err
	}
	h.cache.Add(dest, of)
	h.cacheMu.Unlock()

	h.known[dest] = struct{}{}
	return of.forest, true, nil
}

// Remove destroys the Forest at key: it marks the handle deleting (so
// concurrent holders fail their next operation explicitly), removes the
// on-disk directory, evicts the cache entry (whose eviction callback closes
// its database), and then drops the known-set entry, in that fixed order.
func (h *Handler) Remove(key types.Hash) error {
	h.knownMu.Lock()
	defer h.knownMu.Unlock()

	h.cacheMu.Lock()
	if of, ok := h.cache.Get(key); ok {
		of.forest.MarkDeleting()
	}
	h.cacheMu.Unlock()

	if err := os.RemoveAll(h.dirFor(key)); err != nil {
		return err
	}

	h.cacheMu.Lock()
	h.cache.Remove(key)
	h.cacheMu.Unlock()

	delete(h.known, key)
	return nil
}

// IsPresent reports whether key is a known Forest, without opening it.
func (h *Handler) IsPresent(key types.Hash) bool {
	h.knownMu.Lock()
	defer h.knownMu.Unlock()
	_, ok := h.known[key]
	return ok
}
