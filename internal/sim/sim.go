// Package sim wires in-process nodes into a small network and drives them
// sequentially: transactions in, mining, then one consensus round per node.
package sim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/VeltarosLabs/powmesh/internal/blockchain"
	"github.com/VeltarosLabs/powmesh/internal/node"
)

type NodeReport struct {
	ID      string `json:"id"`
	Length  int    `json:"length"`
	TipHash string `json:"tipHash"`
	Valid   bool   `json:"valid"`
	Adopted bool   `json:"adopted"`
	Source  string `json:"source,omitempty"`
}

type Report struct {
	Difficulty uint32       `json:"difficulty"`
	Nodes      []NodeReport `json:"nodes"`
}

// Converged reports whether every node ended on the same length.
func (r Report) Converged() bool {
	if len(r.Nodes) == 0 {
		return true
	}
	for _, n := range r.Nodes[1:] {
		if n.Length != r.Nodes[0].Length {
			return false
		}
	}
	return true
}

type Network struct {
	difficulty uint32
	log        *slog.Logger
	nodes      []*node.Node
}

// NewNetwork creates size nodes named node1..nodeN. Nodes are not peered.
func NewNetwork(size int, difficulty uint32, log *slog.Logger) (*Network, error) {
	if size <= 0 {
		return nil, errors.New("network size must be positive")
	}
	if log == nil {
		return nil, errors.New("logger is required")
	}

	nw := &Network{difficulty: difficulty, log: log.With("component", "sim")}
	for i := 1; i <= size; i++ {
		n, err := node.New(node.Config{ID: fmt.Sprintf("node%d", i), Difficulty: difficulty}, log)
		if err != nil {
			return nil, err
		}
		nw.nodes = append(nw.nodes, n)
	}
	return nw, nil
}

// ConnectAll peers every node with every other node. Each side registers
// the other separately, in index order.
func (nw *Network) ConnectAll() {
	for _, a := range nw.nodes {
		for _, b := range nw.nodes {
			if a != b {
				a.AddOtherNode(b)
			}
		}
	}
}

func (nw *Network) Nodes() []*node.Node {
	out := make([]*node.Node, len(nw.nodes))
	copy(out, nw.nodes)
	return out
}

func (nw *Network) Node(i int) *node.Node {
	return nw.nodes[i]
}

func (nw *Network) Submit(ctx context.Context, i int, txs ...blockchain.Transaction) error {
	if i < 0 || i >= len(nw.nodes) {
		return fmt.Errorf("no node at index %d", i)
	}
	_, err := nw.nodes[i].AddBlock(ctx, txs)
	return err
}

// ConsensusAll runs consensus on each node in turn and reports the result.
func (nw *Network) ConsensusAll(ctx context.Context) (Report, error) {
	rep := Report{Difficulty: nw.difficulty}
	for _, n := range nw.nodes {
		out, err := n.Consensus(ctx)
		if err != nil {
			return Report{}, fmt.Errorf("consensus on %s: %w", n.ID(), err)
		}
		st := n.Status()
		rep.Nodes = append(rep.Nodes, NodeReport{
			ID:      st.ID,
			Length:  st.Length,
			TipHash: st.TipHash,
			Valid:   st.Valid,
			Adopted: out.Adopted,
			Source:  out.Source,
		})
	}
	return rep, nil
}

// RunScenario is the three-node walkthrough: node1 and node2 each mine
// Alice->Bob 100, node3 mines that plus Bob->Charlie 50, then every node runs
// consensus. No chain is strictly longer than another, so all keep length 2.
func RunScenario(ctx context.Context, difficulty uint32, log *slog.Logger) (Report, error) {
	nw, err := NewNetwork(3, difficulty, log)
	if err != nil {
		return Report{}, err
	}
	nw.ConnectAll()

	t1 := blockchain.NewTransaction("Alice", "Bob", 100)
	t2 := blockchain.NewTransaction("Bob", "Charlie", 50)

	if err := nw.Submit(ctx, 0, t1); err != nil {
		return Report{}, err
	}
	if err := nw.Submit(ctx, 1, t1); err != nil {
		return Report{}, err
	}
	if err := nw.Submit(ctx, 2, t1, t2); err != nil {
		return Report{}, err
	}

	rep, err := nw.ConsensusAll(ctx)
	if err != nil {
		return Report{}, err
	}
	for _, n := range rep.Nodes {
		nw.log.Info("node chain", "node", n.ID, "length", n.Length, "tip", n.TipHash, "valid", n.Valid)
	}
	return rep, nil
}
