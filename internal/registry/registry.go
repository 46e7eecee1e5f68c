// Package registry holds the process-wide set of live transactions.
// The instrumentation facade threads "the current transaction" through
// a context.Context value (see the top-level package's context
// helpers) rather than a true OS thread-local — Go exposes no public
// per-goroutine identity API — but the set of all transactions
// currently in flight, needed by snapshot and collector code to
// enumerate active/partial traces, genuinely is process-wide shared
// state, and is what this package owns.
package registry

import (
	"sync"

	"github.com/varsh009/glowroot/internal/model"
)

const shardCount = 16

// Registry is a sharded concurrent set of live transactions. Sharding
// by the transaction id's low bits keeps start/end contention low
// without needing a single global lock — the "lock-free concurrent set
// or sharded set" spec §4.3 calls for.
type Registry struct {
	shards [shardCount]shard
}

type shard struct {
	mu sync.RWMutex
	m  map[model.ID]*model.Transaction
}

// New returns an empty registry.
func New() *Registry {
	r := &Registry{}
	for i := range r.shards {
		r.shards[i].m = make(map[model.ID]*model.Transaction)
	}
	return r
}

func (r *Registry) shardFor(id model.ID) *shard {
	return &r.shards[id[0]%shardCount]
}

// Add registers tx as live.
func (r *Registry) Add(tx *model.Transaction) {
	s := r.shardFor(tx.ID())
	s.mu.Lock()
	s.m[tx.ID()] = tx
	s.mu.Unlock()
}

// Remove unregisters tx. It is safe to call even if tx was never added
// or was already removed.
func (r *Registry) Remove(tx *model.Transaction) {
	s := r.shardFor(tx.ID())
	s.mu.Lock()
	delete(s.m, tx.ID())
	s.mu.Unlock()
}

// All returns a snapshot slice of every currently-live transaction,
// safe to iterate without holding any lock.
func (r *Registry) All() []*model.Transaction {
	out := make([]*model.Transaction, 0)
	for i := range r.shards {
		s := &r.shards[i]
		s.mu.RLock()
		for _, tx := range s.m {
			out = append(out, tx)
		}
		s.mu.RUnlock()
	}
	return out
}

// Len returns the number of currently-live transactions.
func (r *Registry) Len() int {
	n := 0
	for i := range r.shards {
		s := &r.shards[i]
		s.mu.RLock()
		n += len(s.m)
		s.mu.RUnlock()
	}
	return n
}
