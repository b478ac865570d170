package types

import "testing"

func TestProvenIsEmpty(t *testing.T) {
	empty := Proven{Kind: ProvenNeighborKeys}
	if !empty.IsEmpty() {
		t.Error("Proven with no left/right should be empty")
	}

	left := Hash{1}
	withLeft := Proven{Kind: ProvenNeighborKeys, Left: &left}
	if withLeft.IsEmpty() {
		t.Error("Proven with a left neighbor should not be empty")
	}

	exact := Proven{Kind: ProvenExactKey, ExactKey: Hash{9}}
	if exact.IsEmpty() {
		t.Error("ProvenExactKey should never be empty")
	}
}

func TestProvenKeys(t *testing.T) {
	left, right := Hash{1}, Hash{2}

	cases := []struct {
		name string
		p    Proven
		want int
	}{
		{"exact", Proven{Kind: ProvenExactKey, ExactKey: Hash{3}}, 1},
		{"both neighbors", Proven{Kind: ProvenNeighborKeys, Left: &left, Right: &right}, 2},
		{"left only", Proven{Kind: ProvenNeighborKeys, Left: &left}, 1},
		{"none", Proven{Kind: ProvenNeighborKeys}, 0},
	}
	for _, c := range cases {
		if got := len(c.p.Keys()); got != c.want {
			t.Errorf("%s: got %d keys, want %d", c.name, got, c.want)
		}
	}
}
