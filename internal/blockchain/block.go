package blockchain

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	vcrypto "github.com/VeltarosLabs/powmesh/internal/crypto"
)

const (
	GenesisPreviousHash        = "0"
	GenesisDifficulty   uint32 = 1

	// MaxDifficulty is the hex length of a SHA-256 digest.
	MaxDifficulty uint32 = 64

	// Mining polls its context once per mineCheckInterval attempts.
	mineCheckInterval = 1 << 12
)

var (
	ErrMiningCanceled = errors.New("mining canceled")
	ErrNonceExhausted = errors.New("nonce space exhausted before difficulty was met")
)

type Block struct {
	Index        uint64        `json:"index"`
	Timestamp    uint64        `json:"timestamp"`
	Transactions []Transaction `json:"transactions"`
	PreviousHash string        `json:"previousHash"`
	Hash         string        `json:"hash"`
	Nonce        uint64        `json:"nonce"`
}

// NowUnix is the block clock. Tests replace it to get reproducible digests.
var NowUnix = func() uint64 { return uint64(time.Now().UTC().Unix()) }

// NewBlock returns an unmined block stamped with the current time.
func NewBlock(index uint64, txs []Transaction, previousHash string) Block {
	return Block{
		Index:        index,
		Timestamp:    NowUnix(),
		Transactions: cloneTransactions(txs),
		PreviousHash: previousHash,
		Hash:         "",
		Nonce:        0,
	}
}

func NewGenesisBlock() Block {
	b := NewBlock(0, nil, GenesisPreviousHash)
	if err := b.Mine(context.Background(), GenesisDifficulty); err != nil {
		panic("genesis mining failed: " + err.Error())
	}
	return b
}

// Digest hashes index, timestamp, each transaction's sender, recipient and
// amount, the previous hash and the nonce, in that order, as decimal text.
// Other implementations must reproduce this byte sequence exactly.
func (b *Block) Digest() string {
	parts := make([]string, 0, 4+3*len(b.Transactions))
	parts = append(parts,
		strconv.FormatUint(b.Index, 10),
		strconv.FormatUint(b.Timestamp, 10),
	)
	for _, tx := range b.Transactions {
		parts = append(parts, tx.Sender, tx.Recipient, strconv.FormatUint(tx.Amount, 10))
	}
	parts = append(parts, b.PreviousHash, strconv.FormatUint(b.Nonce, 10))
	return vcrypto.Sha256Hex(parts...)
}

// Mine increments the nonce until the digest has difficulty leading zeros.
// At least one digest is computed, so Hash == Digest() holds on success even
// at difficulty 0. On error the block is left half-mined and must be dropped.
func (b *Block) Mine(ctx context.Context, difficulty uint32) error {
	if difficulty > MaxDifficulty {
		return fmt.Errorf("difficulty %d exceeds digest length %d: %w", difficulty, MaxDifficulty, ErrNonceExhausted)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrMiningCanceled, err)
	}

	for attempts := uint64(1); ; attempts++ {
		if b.Nonce == math.MaxUint64 {
			return ErrNonceExhausted
		}
		b.Nonce++
		b.Hash = b.Digest()
		if MeetsDifficulty(b.Hash, difficulty) {
			return nil
		}
		if attempts%mineCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("%w: %w", ErrMiningCanceled, err)
			}
		}
	}
}

// HashMatches reports whether the stored hash equals a fresh digest.
func (b *Block) HashMatches() bool {
	return b.Hash == b.Digest()
}

func MeetsDifficulty(hash string, difficulty uint32) bool {
	return vcrypto.HasZeroPrefix(hash, difficulty)
}

func (b Block) clone() Block {
	b.Transactions = cloneTransactions(b.Transactions)
	return b
}

func cloneBlocks(blocks []Block) []Block {
	out := make([]Block, len(blocks))
	for i := range blocks {
		out[i] = blocks[i].clone()
	}
	return out
}
