package blockchain

// Snapshot is the transport view of a chain: what a peer hands out when asked
// for its current state.
type Snapshot struct {
	Length     int     `json:"length"`
	Difficulty uint32  `json:"difficulty"`
	TipHash    string  `json:"tipHash"`
	Blocks     []Block `json:"blocks"`
}

func (c *Chain) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return MakeSnapshot(c.difficulty, c.blocks)
}

func MakeSnapshot(difficulty uint32, blocks []Block) Snapshot {
	s := Snapshot{
		Length:     len(blocks),
		Difficulty: difficulty,
		Blocks:     cloneBlocks(blocks),
	}
	if len(blocks) > 0 {
		s.TipHash = blocks[len(blocks)-1].Hash
	}
	return s
}

// Consistent reports whether the summary fields agree with the blocks.
func (s Snapshot) Consistent() bool {
	if s.Length != len(s.Blocks) {
		return false
	}
	if len(s.Blocks) == 0 {
		return s.TipHash == ""
	}
	return s.TipHash == s.Blocks[len(s.Blocks)-1].Hash
}
