package usage

import (
	"context"
	"sync"
)

// Ledger is the append-only usage store plus the durable balance counter.
type Ledger interface {
	// Append records one usage event; records are never updated or deleted
	Append(ctx context.Context, record Record) error

	// IncrementBalance atomically adjusts an account's credit balance
	IncrementBalance(ctx context.Context, accountID string, delta float64) error

	// Balance returns an account's current credit balance
	Balance(ctx context.Context, accountID string) (float64, error)
}

// MemoryLedger is an in-process Ledger used in tests and single-node setups
type MemoryLedger struct {
	mu       sync.Mutex
	records  []Record
	balances map[string]float64
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{balances: make(map[string]float64)}
}

// Append implements Ledger
func (l *MemoryLedger) Append(ctx context.Context, record Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, record)
	return nil
}

// IncrementBalance implements Ledger
func (l *MemoryLedger) IncrementBalance(ctx context.Context, accountID string, delta float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[accountID] += delta
	return nil
}

// Balance implements Ledger
func (l *MemoryLedger) Balance(ctx context.Context, accountID string) (float64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[accountID], nil
}

// Records returns a copy of all appended records
func (l *MemoryLedger) Records() []Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Record, len(l.records))
	copy(out, l.records)
	return out
}
