package blockchain

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var (
	ErrEmptyChain = errors.New("chain has no blocks")
	ErrStaleTip   = errors.New("chain tip changed while mining")
)

type IntegrityKind string

const (
	HashMismatch IntegrityKind = "hash mismatch"
	BrokenLink   IntegrityKind = "broken link"
)

// IntegrityError identifies the first block that fails validation.
type IntegrityError struct {
	Index int
	Kind  IntegrityKind
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("block at position %d: %s", e.Index, e.Kind)
}

// Chain is an append-only sequence of blocks rooted at a genesis block.
// Every read and write goes through mu.
type Chain struct {
	mu sync.RWMutex

	blocks     []Block
	difficulty uint32
}

func New(difficulty uint32) *Chain {
	return &Chain{
		blocks:     []Block{NewGenesisBlock()},
		difficulty: difficulty,
	}
}

func (c *Chain) Difficulty() uint32 {
	return c.difficulty
}

func (c *Chain) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.blocks)
}

func (c *Chain) Tip() Block {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.blocks) == 0 {
		return Block{}
	}
	return c.blocks[len(c.blocks)-1].clone()
}

// Blocks returns a deep copy of the chain.
func (c *Chain) Blocks() []Block {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return cloneBlocks(c.blocks)
}

// AddBlock mines a block on top of the current tip and appends it. Mining
// runs without holding the lock; if the tip moved in the meantime the block
// is discarded and ErrStaleTip is returned.
func (c *Chain) AddBlock(ctx context.Context, txs []Transaction) (Block, error) {
	c.mu.RLock()
	if len(c.blocks) == 0 {
		c.mu.RUnlock()
		return Block{}, ErrEmptyChain
	}
	prev := c.blocks[len(c.blocks)-1]
	c.mu.RUnlock()

	b := NewBlock(prev.Index+1, txs, prev.Hash)
	if err := b.Mine(ctx, c.difficulty); err != nil {
		return Block{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.blocks) == 0 {
		return Block{}, ErrStaleTip
	}
	tip := c.blocks[len(c.blocks)-1]
	if tip.Hash != prev.Hash || tip.Index != prev.Index {
		return Block{}, ErrStaleTip
	}
	c.blocks = append(c.blocks, b)
	return b.clone(), nil
}

func (c *Chain) IsValid() bool {
	return c.Validate() == nil
}

func (c *Chain) Validate() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Validate(c.blocks)
}

// ReplaceIfLonger swaps the chain for blocks only if blocks is strictly
// longer than the chain at the time the lock is taken.
func (c *Chain) ReplaceIfLonger(blocks []Block) bool {
	cp := cloneBlocks(blocks)
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(cp) <= len(c.blocks) {
		return false
	}
	c.blocks = cp
	return true
}

// Validate checks that every block's hash matches its content and that each
// block links to its predecessor. Proof-of-work is not re-checked. An empty
// slice is valid.
func Validate(blocks []Block) error {
	for i := range blocks {
		if !blocks[i].HashMatches() {
			return &IntegrityError{Index: i, Kind: HashMismatch}
		}
		if i > 0 && blocks[i-1].Hash != blocks[i].PreviousHash {
			return &IntegrityError{Index: i, Kind: BrokenLink}
		}
	}
	return nil
}

func IsValid(blocks []Block) bool {
	return Validate(blocks) == nil
}
