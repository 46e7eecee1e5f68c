// Package collector implements TransactionCollector, the completion
// cascade's terminal step: a transaction that has just finished
// (PopEntry on the root entry flipped IsCompleted to true) is handed
// here before it is removed from the live registry, exactly the
// ordering AggregateBuilder.add/collector/Trace rely on in the original
// source ("onCompletedTransaction before removeTransaction").
package collector

import (
	"sync"

	"github.com/varsh009/glowroot/internal/model"
)

// TransactionCollector receives every transaction exactly once, at the
// moment its root entry is popped, before it is removed from the
// registry of live transactions.
type TransactionCollector interface {
	OnCompletedTransaction(tx *model.Transaction)
}

// InMemoryCollector is a TransactionCollector that retains completed
// transactions in memory, bounded by maxStored, for tests and for
// driving an AggregateBuilder. It holds completed transactions only;
// transactions that have started but not yet completed are not tracked
// here (they are enumerated through the live registry).
type InMemoryCollector struct {
	mu        sync.Mutex
	completed []*model.Transaction
	maxStored int
}

// NewInMemoryCollector returns a collector that retains at most
// maxStored completed transactions, discarding the oldest once the cap
// is reached. maxStored <= 0 means unbounded.
func NewInMemoryCollector(maxStored int) *InMemoryCollector {
	return &InMemoryCollector{maxStored: maxStored}
}

// OnCompletedTransaction implements TransactionCollector.
func (c *InMemoryCollector) OnCompletedTransaction(tx *model.Transaction) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.completed = append(c.completed, tx)
	if c.maxStored > 0 && len(c.completed) > c.maxStored {
		drop := len(c.completed) - c.maxStored
		c.completed = c.completed[drop:]
	}
}

// Completed returns a snapshot slice of every completed transaction
// currently retained, oldest first.
func (c *InMemoryCollector) Completed() []*model.Transaction {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*model.Transaction, len(c.completed))
	copy(out, c.completed)
	return out
}

// Len returns the number of completed transactions currently retained.
func (c *InMemoryCollector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.completed)
}

// Clear discards every retained completed transaction.
func (c *InMemoryCollector) Clear() {
	c.mu.Lock()
	c.completed = nil
	c.mu.Unlock()
}
