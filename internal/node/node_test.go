package node

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/VeltarosLabs/powmesh/internal/blockchain"
	"github.com/VeltarosLabs/powmesh/internal/logging"
)

type stubPeer struct {
	mu     sync.Mutex
	id     string
	blocks []blockchain.Block
	err    error
	calls  int
}

func (p *stubPeer) ID() string { return p.id }

func (p *stubPeer) Snapshot(_ context.Context) ([]blockchain.Block, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return p.blocks, nil
}

func newTestNode(t *testing.T, id string) *Node {
	t.Helper()
	n, err := New(Config{ID: id, Difficulty: 1}, logging.Nop())
	if err != nil {
		t.Fatalf("New(%s) failed: %v", id, err)
	}
	return n
}

// withLength mines blocks until the node's chain has the given length.
func withLength(t *testing.T, n *Node, length int, sender string) *Node {
	t.Helper()
	for n.Chain().Len() < length {
		tx := blockchain.NewTransaction(sender, "Bob", uint64(n.Chain().Len()))
		if _, err := n.AddBlock(context.Background(), []blockchain.Transaction{tx}); err != nil {
			t.Fatalf("AddBlock failed: %v", err)
		}
	}
	return n
}

func hashes(blocks []blockchain.Block) []string {
	out := make([]string, 0, len(blocks))
	for _, b := range blocks {
		out = append(out, b.Hash)
	}
	return out
}

func sameChain(a, b []blockchain.Block) bool {
	ha, hb := hashes(a), hashes(b)
	if len(ha) != len(hb) {
		return false
	}
	for i := range ha {
		if ha[i] != hb[i] {
			return false
		}
	}
	return true
}

func TestNewValidatesConfig(t *testing.T) {
	if _, err := New(Config{ID: "a"}, nil); err == nil {
		t.Error("Expected error for nil logger")
	}
	if _, err := New(Config{ID: "  "}, logging.Nop()); err == nil {
		t.Error("Expected error for empty ID")
	}
	if _, err := New(Config{ID: "a", Difficulty: 65}, logging.Nop()); err == nil {
		t.Error("Expected error for difficulty above 64")
	}
}

func TestAddBlockAndIsValidDelegate(t *testing.T) {
	n := newTestNode(t, "a")
	b, err := n.AddBlock(context.Background(), []blockchain.Transaction{blockchain.NewTransaction("Alice", "Bob", 100)})
	if err != nil {
		t.Fatalf("AddBlock failed: %v", err)
	}
	if b.Index != 1 {
		t.Errorf("Expected index 1, got %d", b.Index)
	}
	if !n.IsValid() {
		t.Error("node chain should be valid")
	}
	if n.Chain().Len() != 2 {
		t.Errorf("Expected length 2, got %d", n.Chain().Len())
	}
}

func TestAddOtherNodeIsOneDirectionalAndOrdered(t *testing.T) {
	a := newTestNode(t, "a")
	b := newTestNode(t, "b")
	c := newTestNode(t, "c")

	if !a.AddOtherNode(b) || !a.AddOtherNode(c) {
		t.Fatal("first registration should succeed")
	}
	if a.AddOtherNode(b) {
		t.Error("duplicate registration should be ignored")
	}
	if a.AddOtherNode(nil) {
		t.Error("nil peer should be ignored")
	}

	ids := a.PeerIDs()
	if len(ids) != 2 || ids[0] != "b" || ids[1] != "c" {
		t.Errorf("Expected [b c], got %v", ids)
	}
	if b.PeerCount() != 0 {
		t.Error("registration must not be reciprocated automatically")
	}
}

func TestAddOtherNodeKeepsDistinctPeersSharingAnID(t *testing.T) {
	a := withLength(t, newTestNode(t, "a"), 2, "A")
	short := withLength(t, newTestNode(t, "x"), 2, "S")
	long := withLength(t, newTestNode(t, "x"), 4, "L")

	if !a.AddOtherNode(short) {
		t.Fatal("first peer should be registered")
	}
	if !a.AddOtherNode(long) {
		t.Fatal("a different peer with the same ID should be registered")
	}
	if a.PeerCount() != 2 {
		t.Fatalf("Expected 2 peers, got %d", a.PeerCount())
	}

	out, err := a.Consensus(context.Background())
	if err != nil {
		t.Fatalf("Consensus failed: %v", err)
	}
	if !out.Adopted || out.Length != 4 || out.Examined != 2 {
		t.Errorf("Expected the longer chain to be adopted, got %+v", out)
	}
	if !sameChain(a.Chain().Blocks(), long.Chain().Blocks()) {
		t.Error("a should hold the longer peer's chain")
	}
}

func TestAddRemotePeerDedupesByID(t *testing.T) {
	a := newTestNode(t, "a")
	first := &stubPeer{id: "http://peer:8080"}
	redial := &stubPeer{id: "http://peer:8080"}
	other := &stubPeer{id: "http://other:8080"}

	if !a.AddRemotePeer(first) {
		t.Fatal("first registration should succeed")
	}
	if a.AddRemotePeer(redial) {
		t.Error("a second dial of the same address should be ignored")
	}
	if a.AddRemotePeer(first) {
		t.Error("the same peer value should be ignored")
	}
	if !a.AddRemotePeer(other) {
		t.Error("a different address should be registered")
	}
	if a.AddRemotePeer(nil) {
		t.Error("nil peer should be ignored")
	}

	ids := a.PeerIDs()
	if len(ids) != 2 || ids[0] != "http://peer:8080" || ids[1] != "http://other:8080" {
		t.Errorf("unexpected peers: %v", ids)
	}
}

func TestConsensusFirstLongestPeerWins(t *testing.T) {
	a := withLength(t, newTestNode(t, "a"), 2, "A")
	b := withLength(t, newTestNode(t, "b"), 3, "B")
	c := withLength(t, newTestNode(t, "c"), 3, "C")
	a.AddOtherNode(b)
	a.AddOtherNode(c)

	out, err := a.Consensus(context.Background())
	if err != nil {
		t.Fatalf("Consensus failed: %v", err)
	}

	if !out.Adopted || out.Source != "b" {
		t.Errorf("Expected adoption from b, got %+v", out)
	}
	if out.Length != 3 || a.Chain().Len() != 3 {
		t.Errorf("Expected length 3, got %d", a.Chain().Len())
	}
	if !sameChain(a.Chain().Blocks(), b.Chain().Blocks()) {
		t.Error("a should hold b's chain")
	}
	if sameChain(a.Chain().Blocks(), c.Chain().Blocks()) {
		t.Error("a must not hold c's chain")
	}
	if out.Examined != 2 || out.Invalid != 0 || out.Unreachable != 0 {
		t.Errorf("unexpected counters: %+v", out)
	}
}

func TestConsensusNoImprovingPeer(t *testing.T) {
	a := withLength(t, newTestNode(t, "a"), 3, "A")
	a.AddOtherNode(withLength(t, newTestNode(t, "b"), 3, "B"))
	a.AddOtherNode(withLength(t, newTestNode(t, "c"), 2, "C"))
	a.AddOtherNode(newTestNode(t, "d"))
	before := a.Chain().Blocks()

	out, err := a.Consensus(context.Background())
	if err != nil {
		t.Fatalf("Consensus failed: %v", err)
	}
	if out.Adopted {
		t.Errorf("nothing should be adopted, got %+v", out)
	}
	if !sameChain(before, a.Chain().Blocks()) {
		t.Error("chain changed although no peer was strictly longer")
	}
}

func TestConsensusWithoutPeers(t *testing.T) {
	a := withLength(t, newTestNode(t, "a"), 2, "A")
	before := a.Chain().Blocks()

	out, err := a.Consensus(context.Background())
	if err != nil {
		t.Fatalf("Consensus failed: %v", err)
	}
	if out.Adopted || out.Examined != 0 || out.Length != 2 {
		t.Errorf("unexpected outcome: %+v", out)
	}
	if !sameChain(before, a.Chain().Blocks()) {
		t.Error("chain changed without peers")
	}
}

func TestConsensusRejectsInvalidLongerChain(t *testing.T) {
	a := withLength(t, newTestNode(t, "a"), 2, "A")
	forged := withLength(t, newTestNode(t, "m"), 5, "M").Chain().Blocks()
	forged[3].Transactions[0].Amount = 1_000_000

	a.AddOtherNode(&stubPeer{id: "mallory", blocks: forged})
	before := a.Chain().Blocks()

	out, err := a.Consensus(context.Background())
	if err != nil {
		t.Fatalf("Consensus failed: %v", err)
	}
	if out.Adopted {
		t.Fatal("invalid chain was adopted")
	}
	if out.Invalid != 1 {
		t.Errorf("Expected one invalid peer, got %+v", out)
	}
	if !sameChain(before, a.Chain().Blocks()) {
		t.Error("chain changed after rejecting an invalid peer")
	}
}

func TestConsensusSkipsUnreachablePeers(t *testing.T) {
	a := withLength(t, newTestNode(t, "a"), 2, "A")
	b := withLength(t, newTestNode(t, "b"), 4, "B")
	a.AddOtherNode(&stubPeer{id: "down", err: errors.New("connection refused")})
	a.AddOtherNode(b)

	out, err := a.Consensus(context.Background())
	if err != nil {
		t.Fatalf("Consensus failed: %v", err)
	}
	if out.Unreachable != 1 || !out.Adopted || out.Source != "b" {
		t.Errorf("unexpected outcome: %+v", out)
	}
}

func TestConsensusReevaluatesPeersEachCall(t *testing.T) {
	a := withLength(t, newTestNode(t, "a"), 2, "A")
	good := withLength(t, newTestNode(t, "b"), 3, "B").Chain().Blocks()
	bad := withLength(t, newTestNode(t, "b2"), 3, "B").Chain().Blocks()
	bad[1].PreviousHash = "nope"

	peer := &stubPeer{id: "b", blocks: bad}
	a.AddOtherNode(peer)

	if out, _ := a.Consensus(context.Background()); out.Adopted {
		t.Fatal("invalid chain adopted on first round")
	}

	peer.mu.Lock()
	peer.blocks = good
	peer.mu.Unlock()

	out, err := a.Consensus(context.Background())
	if err != nil {
		t.Fatalf("Consensus failed: %v", err)
	}
	if !out.Adopted {
		t.Fatal("repaired peer chain should be adopted on the next round")
	}
	if peer.calls != 2 {
		t.Errorf("Expected peer to be queried twice, got %d", peer.calls)
	}
}

func TestConsensusCanceled(t *testing.T) {
	a := newTestNode(t, "a")
	a.AddOtherNode(newTestNode(t, "b"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := a.Consensus(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
}

func TestConsensusWithSelfAsPeer(t *testing.T) {
	a := withLength(t, newTestNode(t, "a"), 2, "A")
	a.AddOtherNode(a)
	before := a.Chain().Blocks()

	out, err := a.Consensus(context.Background())
	if err != nil {
		t.Fatalf("Consensus failed: %v", err)
	}
	if out.Adopted || !sameChain(before, a.Chain().Blocks()) {
		t.Error("a node must not replace its chain with itself")
	}
}

func TestConcurrentConsensusAndMining(t *testing.T) {
	a := newTestNode(t, "a")
	b := newTestNode(t, "b")
	a.AddOtherNode(b)
	b.AddOtherNode(a)

	var wg sync.WaitGroup
	for _, n := range []*Node{a, b} {
		n := n
		wg.Add(2)
		go func() {
			defer wg.Done()
			for i := 0; i < 5; i++ {
				_, err := n.AddBlock(context.Background(), []blockchain.Transaction{blockchain.NewTransaction(n.ID(), "x", 1)})
				if err != nil && !errors.Is(err, blockchain.ErrStaleTip) {
					t.Errorf("AddBlock failed: %v", err)
				}
			}
		}()
		go func() {
			defer wg.Done()
			for i := 0; i < 5; i++ {
				if _, err := n.Consensus(context.Background()); err != nil {
					t.Errorf("Consensus failed: %v", err)
				}
			}
		}()
	}
	wg.Wait()

	if !a.IsValid() || !b.IsValid() {
		t.Fatal("chains must stay valid under concurrent use")
	}
}

func TestStatus(t *testing.T) {
	a := withLength(t, newTestNode(t, "a"), 3, "A")
	a.AddOtherNode(newTestNode(t, "b"))

	st := a.Status()
	if st.ID != "a" || st.Length != 3 || !st.Valid || st.Peers != 1 || st.Difficulty != 1 {
		t.Errorf("unexpected status: %+v", st)
	}
	if st.TipHash != a.Chain().Tip().Hash {
		t.Error("status tip hash mismatch")
	}
}
