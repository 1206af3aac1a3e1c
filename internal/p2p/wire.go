package p2p

import (
	"github.com/VeltarosLabs/powmesh/internal/blockchain"
	"github.com/VeltarosLabs/powmesh/pkg/api"
)

func ToWireTransactions(txs []blockchain.Transaction) []api.Transaction {
	out := make([]api.Transaction, 0, len(txs))
	for _, tx := range txs {
		out = append(out, api.Transaction{Sender: tx.Sender, Recipient: tx.Recipient, Amount: tx.Amount})
	}
	return out
}

func FromWireTransactions(txs []api.Transaction) []blockchain.Transaction {
	out := make([]blockchain.Transaction, 0, len(txs))
	for _, tx := range txs {
		out = append(out, blockchain.NewTransaction(tx.Sender, tx.Recipient, tx.Amount))
	}
	return out
}

func ToWireBlock(b blockchain.Block) api.Block {
	return api.Block{
		Index:        b.Index,
		Timestamp:    b.Timestamp,
		Transactions: ToWireTransactions(b.Transactions),
		PreviousHash: b.PreviousHash,
		Hash:         b.Hash,
		Nonce:        b.Nonce,
	}
}

func FromWireBlock(b api.Block) blockchain.Block {
	return blockchain.Block{
		Index:        b.Index,
		Timestamp:    b.Timestamp,
		Transactions: FromWireTransactions(b.Transactions),
		PreviousHash: b.PreviousHash,
		Hash:         b.Hash,
		Nonce:        b.Nonce,
	}
}

func ToWireChain(s blockchain.Snapshot) api.Chain {
	blocks := make([]api.Block, 0, len(s.Blocks))
	for _, b := range s.Blocks {
		blocks = append(blocks, ToWireBlock(b))
	}
	return api.Chain{
		Length:     s.Length,
		Difficulty: s.Difficulty,
		TipHash:    s.TipHash,
		Blocks:     blocks,
	}
}

func FromWireChain(c api.Chain) blockchain.Snapshot {
	blocks := make([]blockchain.Block, 0, len(c.Blocks))
	for _, b := range c.Blocks {
		blocks = append(blocks, FromWireBlock(b))
	}
	return blockchain.Snapshot{
		Length:     c.Length,
		Difficulty: c.Difficulty,
		TipHash:    c.TipHash,
		Blocks:     blocks,
	}
}
