package crypto

// rand.go exposes the node's source of randomness. The bucket-move task
// (§4.8) needs uniform random peer selection ("chunk_request_peer_retry_attempts
// random peers"), and nothing else in the core needs anything stronger than
// what a well-audited randomness package already provides, so this just
// forwards to NebulousLabs/fastrand rather than hand-rolling a CSPRNG.

import (
	"github.com/NebulousLabs/fastrand"
)

// RandBytes returns n bytes of random data.
func RandBytes(n int) []byte {
	return fastrand.Bytes(n)
}

// RandIntn returns a uniform random value in [0,n). It panics if n <= 0.
func RandIntn(n int) int {
	return fastrand.Intn(n)
}

// Perm returns a random permutation of the integers [0,n).
func Perm(n int) []int {
	return fastrand.Perm(n)
}
