package node

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/VeltarosLabs/powmesh/internal/blockchain"
	"github.com/VeltarosLabs/powmesh/internal/consensus"
)

// Peer is anything that can hand over a snapshot of its current chain.
// Validity is always judged by the caller from the returned blocks.
type Peer interface {
	ID() string
	Snapshot(ctx context.Context) ([]blockchain.Block, error)
}

type Config struct {
	ID         string
	Difficulty uint32
}

// Outcome summarizes one consensus round.
type Outcome struct {
	Adopted     bool   `json:"adopted"`
	Source      string `json:"source,omitempty"`
	Length      int    `json:"length"`
	Examined    int    `json:"examined"`
	Invalid     int    `json:"invalid"`
	Unreachable int    `json:"unreachable"`
}

type Status struct {
	ID         string `json:"id"`
	Length     int    `json:"length"`
	TipHash    string `json:"tipHash"`
	Difficulty uint32 `json:"difficulty"`
	Valid      bool   `json:"valid"`
	Peers      int    `json:"peers"`
}

// Node owns one chain and a growing, ordered set of peers.
type Node struct {
	cfg   Config
	log   *slog.Logger
	chain *blockchain.Chain

	peersMu sync.RWMutex
	peers   []Peer
}

func New(cfg Config, log *slog.Logger) (*Node, error) {
	if log == nil {
		return nil, errors.New("logger is required")
	}
	cfg.ID = strings.TrimSpace(cfg.ID)
	if cfg.ID == "" {
		return nil, errors.New("node ID is required")
	}
	if cfg.Difficulty > blockchain.MaxDifficulty {
		return nil, fmt.Errorf("difficulty out of range: %d", cfg.Difficulty)
	}

	return &Node{
		cfg:   cfg,
		log:   log.With("component", "node", "node", cfg.ID),
		chain: blockchain.New(cfg.Difficulty),
	}, nil
}

func (n *Node) ID() string { return n.cfg.ID }

func (n *Node) Chain() *blockchain.Chain { return n.chain }

// Snapshot lets in-process nodes act as each other's peers.
func (n *Node) Snapshot(_ context.Context) ([]blockchain.Block, error) {
	return n.chain.Blocks(), nil
}

// AddBlock mines the transactions into a new block on the local chain. It
// blocks until mining finishes or ctx is done.
func (n *Node) AddBlock(ctx context.Context, txs []blockchain.Transaction) (blockchain.Block, error) {
	start := time.Now()
	b, err := n.chain.AddBlock(ctx, txs)
	if err != nil {
		n.log.Warn("block not added", "txs", len(txs), "err", err)
		return blockchain.Block{}, err
	}
	n.log.Info("block mined",
		"index", b.Index,
		"hash", b.Hash,
		"nonce", b.Nonce,
		"txs", len(b.Transactions),
		"elapsed", time.Since(start).String(),
	)
	return b, nil
}

func (n *Node) IsValid() bool {
	return n.chain.IsValid()
}

// AddOtherNode registers p as a peer. Registration is one-directional.
// Peers are a set of references: registering the same peer value twice is a
// no-op, while distinct peers sharing an ID are both kept. Implementations
// must be comparable, which pointer types are.
func (n *Node) AddOtherNode(p Peer) bool {
	if p == nil {
		return false
	}

	n.peersMu.Lock()
	defer n.peersMu.Unlock()
	for _, q := range n.peers {
		if q == p {
			return false
		}
	}
	return n.addPeerLocked(p)
}

// AddRemotePeer registers p unless a peer with the same ID is already known.
// Remote peers are identified by their address, so a second dial of the same
// address yields a new value that must not be registered again.
func (n *Node) AddRemotePeer(p Peer) bool {
	if p == nil {
		return false
	}
	id := p.ID()

	n.peersMu.Lock()
	defer n.peersMu.Unlock()
	for _, q := range n.peers {
		if q == p || q.ID() == id {
			return false
		}
	}
	return n.addPeerLocked(p)
}

func (n *Node) addPeerLocked(p Peer) bool {
	n.peers = append(n.peers, p)
	n.log.Debug("peer registered", "peer", p.ID(), "peers", len(n.peers))
	return true
}

// Peers returns the peers in registration order.
func (n *Node) Peers() []Peer {
	n.peersMu.RLock()
	defer n.peersMu.RUnlock()
	out := make([]Peer, len(n.peers))
	copy(out, n.peers)
	return out
}

func (n *Node) PeerIDs() []string {
	peers := n.Peers()
	out := make([]string, 0, len(peers))
	for _, p := range peers {
		out = append(out, p.ID())
	}
	return out
}

func (n *Node) PeerCount() int {
	n.peersMu.RLock()
	defer n.peersMu.RUnlock()
	return len(n.peers)
}

// Consensus visits every peer once, in registration order, and adopts the
// longest valid chain that is strictly longer than the local one. Peers that
// fail to answer are skipped. The only error returned is ctx's.
//
// No lock is held while peers are queried, so two nodes running consensus
// against each other cannot deadlock. The commit re-checks length under the
// chain lock, which keeps a block appended meanwhile from being lost.
func (n *Node) Consensus(ctx context.Context) (Outcome, error) {
	own := n.chain.Blocks()
	sel := consensus.NewLongestChain(own)

	var out Outcome
	for _, p := range n.Peers() {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		blocks, err := p.Snapshot(ctx)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return out, ctxErr
			}
			out.Unreachable++
			n.log.Warn("peer unreachable", "peer", p.ID(), "err", err)
			continue
		}

		out.Examined++
		v := sel.Consider(p.ID(), blocks)
		if v == consensus.Invalid {
			out.Invalid++
		}
		n.log.Debug("peer chain considered", "peer", p.ID(), "length", len(blocks), "verdict", v.String())
	}

	best, source := sel.Best()
	if source != "" {
		if n.chain.ReplaceIfLonger(best) {
			out.Adopted = true
			out.Source = source
			n.log.Info("adopted peer chain", "peer", source, "length", len(best), "previousLength", len(own), "tip", n.chain.Tip().Hash)
		} else {
			n.log.Warn("local chain grew during consensus; keeping it", "peer", source, "length", len(best))
		}
	}
	out.Length = n.chain.Len()
	return out, nil
}

func (n *Node) Status() Status {
	snap := n.chain.Snapshot()
	return Status{
		ID:         n.cfg.ID,
		Length:     snap.Length,
		TipHash:    snap.TipHash,
		Difficulty: snap.Difficulty,
		Valid:      blockchain.IsValid(snap.Blocks),
		Peers:      n.PeerCount(),
	}
}
