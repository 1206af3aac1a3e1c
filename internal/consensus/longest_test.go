package consensus

import (
	"context"
	"testing"

	"github.com/VeltarosLabs/powmesh/internal/blockchain"
)

func chainOf(t *testing.T, extra int, sender string) []blockchain.Block {
	t.Helper()
	c := blockchain.New(1)
	for i := 0; i < extra; i++ {
		if _, err := c.AddBlock(context.Background(), []blockchain.Transaction{blockchain.NewTransaction(sender, "Bob", 1)}); err != nil {
			t.Fatalf("AddBlock failed: %v", err)
		}
	}
	return c.Blocks()
}

func TestLongestChainKeepsOwnWithoutCandidates(t *testing.T) {
	own := chainOf(t, 1, "Alice")
	l := NewLongestChain(own)

	best, source := l.Best()
	if source != "" {
		t.Errorf("Expected own chain, got source %q", source)
	}
	if len(best) != len(own) {
		t.Errorf("Expected length %d, got %d", len(own), len(best))
	}
}

func TestLongestChainFirstMaximumWins(t *testing.T) {
	l := NewLongestChain(chainOf(t, 1, "A"))
	b := chainOf(t, 2, "B")
	c := chainOf(t, 2, "C")

	if v := l.Consider("b", b); v != Adopted {
		t.Fatalf("Expected b to be adopted, got %s", v)
	}
	if v := l.Consider("c", c); v != NotLonger {
		t.Fatalf("Expected c to tie and lose, got %s", v)
	}

	best, source := l.Best()
	if source != "b" {
		t.Errorf("Expected source b, got %q", source)
	}
	if best[len(best)-1].Hash != b[len(b)-1].Hash {
		t.Error("best chain is not b's chain")
	}
}

func TestLongestChainVerdicts(t *testing.T) {
	tampered := chainOf(t, 4, "M")
	tampered[2].Transactions[0].Amount = 99

	tests := []struct {
		name   string
		blocks []blockchain.Block
		want   Verdict
	}{
		{name: "shorter", blocks: chainOf(t, 0, "S"), want: NotLonger},
		{name: "equal", blocks: chainOf(t, 2, "E"), want: NotLonger},
		{name: "longer invalid", blocks: tampered, want: Invalid},
		{name: "longer valid", blocks: chainOf(t, 3, "L"), want: Adopted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewLongestChain(chainOf(t, 2, "own"))
			if got := l.Consider(tt.name, tt.blocks); got != tt.want {
				t.Errorf("Consider() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestLongestChainLaterLongerReplacesEarlier(t *testing.T) {
	l := NewLongestChain(chainOf(t, 0, "own"))
	l.Consider("two", chainOf(t, 2, "two"))
	l.Consider("three", chainOf(t, 3, "three"))
	l.Consider("also-three", chainOf(t, 3, "x"))

	if _, source := l.Best(); source != "three" {
		t.Errorf("Expected three, got %q", source)
	}
	if l.Len() != 4 {
		t.Errorf("Expected length 4, got %d", l.Len())
	}
}

func TestVerdictString(t *testing.T) {
	if Adopted.String() != "adopted" || Invalid.String() != "invalid" || NotLonger.String() != "not-longer" {
		t.Error("unexpected verdict names")
	}
}
