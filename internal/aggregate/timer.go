package aggregate

import "github.com/varsh009/glowroot/internal/model"

// AggregateTimer is one node of a merged timer tree accumulated across
// many transactions, mirroring AggregateBuilder.AggregateTimer in the
// original source: name, totalMicros, count, and children merged by
// name rather than by position, since different transactions can
// produce structurally different timer trees for the same (type, name)
// bucket.
type AggregateTimer struct {
	Name        string
	TotalMicros int64
	Count       int64
	children    []*AggregateTimer
	byName      map[string]*AggregateTimer
}

func newAggregateTimer(name string) *AggregateTimer {
	return &AggregateTimer{Name: name, byName: make(map[string]*AggregateTimer)}
}

// NewAggregateTimerTree returns an empty synthetic root, exactly like
// the builder's own synthetic root aggregate timer: it accumulates the
// real root timer's total and count across every folded transaction,
// rather than being any single transaction's own root.
func NewAggregateTimerTree() *AggregateTimer {
	return newAggregateTimer("")
}

// Add folds one transaction's materialized timer tree into the
// receiver. Calling this on the synthetic root with a transaction's
// root timer is addToTimers from spec §4.5.
func (a *AggregateTimer) Add(t *model.Timer) {
	a.TotalMicros += microsFromNanos(t.Total)
	a.Count += t.Count
	for _, child := range t.Children {
		a.mergeChild(child)
	}
}

func (a *AggregateTimer) mergeChild(t *model.Timer) {
	child, ok := a.byName[t.Name]
	if !ok {
		child = newAggregateTimer(t.Name)
		a.byName[t.Name] = child
		a.children = append(a.children, child)
	}
	child.Add(t)
}

// Children returns the receiver's merged child timers, in first-seen
// order.
func (a *AggregateTimer) Children() []*AggregateTimer { return a.children }

func microsFromNanos(ns int64) int64 { return ns / 1000 }
