package blockchain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Transaction is a plain value transfer record. It carries no signature and
// is never checked against balances.
type Transaction struct {
	Sender    string `json:"sender"`
	Recipient string `json:"recipient"`
	Amount    uint64 `json:"amount"`
}

func NewTransaction(sender, recipient string, amount uint64) Transaction {
	return Transaction{Sender: sender, Recipient: recipient, Amount: amount}
}

func (t Transaction) String() string {
	return fmt.Sprintf("%s->%s:%d", t.Sender, t.Recipient, t.Amount)
}

// ParseTransaction parses the "sender:recipient:amount" form used by the CLI.
func ParseTransaction(s string) (Transaction, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 3 {
		return Transaction{}, fmt.Errorf("transaction %q: want sender:recipient:amount", s)
	}
	sender := strings.TrimSpace(parts[0])
	recipient := strings.TrimSpace(parts[1])
	if sender == "" || recipient == "" {
		return Transaction{}, errors.New("transaction sender and recipient must not be empty")
	}
	amount, err := strconv.ParseUint(strings.TrimSpace(parts[2]), 10, 64)
	if err != nil {
		return Transaction{}, fmt.Errorf("transaction %q: invalid amount: %w", s, err)
	}
	return NewTransaction(sender, recipient, amount), nil
}

func cloneTransactions(txs []Transaction) []Transaction {
	out := make([]Transaction, len(txs))
	copy(out, txs)
	return out
}
