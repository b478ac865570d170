package blockchain

import "sync"

// nonceCounter is the Blockchain Service's exclusively-owned nonce counter
// (spec.md §4.5, §5): every extrinsic submission increments it, and no other
// component ever reads or writes it directly.
type nonceCounter struct {
	mu   sync.Mutex
	next uint64
}

// seed initializes the counter from the chain's reported account nonce, the
// first time the service learns it.
func (n *nonceCounter) seed(accountNonce uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if accountNonce > n.next {
		n.next = accountNonce
	}
}

// take returns the next nonce to use and advances the counter.
func (n *nonceCounter) take() uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	v := n.next
	n.next++
	return v
}
