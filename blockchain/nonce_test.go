package blockchain

import "testing"

func TestNonceCounterTakeIncrements(t *testing.T) {
	var n nonceCounter
	if got := n.take(); got != 0 {
		t.Errorf("expected first nonce 0, got %d", got)
	}
	if got := n.take(); got != 1 {
		t.Errorf("expected second nonce 1, got %d", got)
	}
}

func TestNonceCounterSeedOnlyMovesForward(t *testing.T) {
	var n nonceCounter
	n.seed(10)
	if got := n.take(); got != 10 {
		t.Errorf("expected seeded nonce 10, got %d", got)
	}
	n.seed(3) // must not move the counter backward
	if got := n.take(); got != 11 {
		t.Errorf("expected nonce to keep advancing from 11, got %d", got)
	}
}
