package consensus

import (
	"github.com/VeltarosLabs/powmesh/internal/blockchain"
)

// LongestChain picks the longest valid chain among the candidates it is
// shown. A candidate replaces the current best only when it is valid and
// strictly longer, so the first chain seen at the maximum length wins.
type LongestChain struct {
	best   []blockchain.Block
	source string
}

// NewLongestChain starts from the node's own chain, which is never
// re-validated here.
func NewLongestChain(own []blockchain.Block) *LongestChain {
	return &LongestChain{best: own}
}

func (l *LongestChain) Consider(source string, blocks []blockchain.Block) Verdict {
	if !blockchain.IsValid(blocks) {
		return Invalid
	}
	if len(blocks) <= len(l.best) {
		return NotLonger
	}
	l.best = blocks
	l.source = source
	return Adopted
}

// Best returns the chosen chain and where it came from. An empty source means
// the node's own chain was kept.
func (l *LongestChain) Best() ([]blockchain.Block, string) {
	return l.best, l.source
}

func (l *LongestChain) Len() int {
	return len(l.best)
}
