package model

// Timer is an immutable, materialized view of one node in a timer tree,
// used for serialization (snapshots and aggregates). It is built on
// demand from the live TimerTree; it never backs live measurement.
type Timer struct {
	Name     string
	Total    int64 // nanoseconds
	Count    int64
	Children []*Timer
}

// timerNode is one live node in a transaction's timer tree, stored by
// index in TimerTree.nodes (the "arena" described in the data model:
// every timer is reachable from the root, so an index-keyed slab stands
// in for a pointer graph with back-references, and avoids one heap
// allocation per timer).
type timerNode struct {
	name      *TimerName
	parent    int // -1 for the root
	children  []int
	byName    map[*TimerName]int
	total     int64
	count     int64
	startTick int64
	running   bool
}

// TimerTree owns every timer belonging to one transaction. The zero
// value is not usable; construct with NewTimerTree.
type TimerTree struct {
	nodes []timerNode
}

// NewTimerTree creates a tree with a single running root timer.
func NewTimerTree(rootName *TimerName, startTick int64) *TimerTree {
	t := &TimerTree{nodes: make([]timerNode, 0, 8)}
	t.nodes = append(t.nodes, timerNode{
		name:      rootName,
		parent:    -1,
		byName:    make(map[*TimerName]int),
		count:     1,
		startTick: startTick,
		running:   true,
	})
	return t
}

// Root returns the index of the root timer.
func (t *TimerTree) Root() int { return 0 }

// Parent returns the parent index of idx, or -1 if idx is the root.
func (t *TimerTree) Parent(idx int) int { return t.nodes[idx].parent }

// IsRunning reports whether the timer at idx currently has an open
// measurement slice.
func (t *TimerTree) IsRunning(idx int) bool { return t.nodes[idx].running }

// StartNested starts (or resumes) a child timer named name under
// parentIdx. If parentIdx already has a child with this TimerName, that
// child is reused and its count incremented, rather than creating a
// duplicate sibling — this is what lets a loop of same-named operations
// fold into one node instead of N siblings.
func (t *TimerTree) StartNested(parentIdx int, name *TimerName, startTick int64) int {
	parent := &t.nodes[parentIdx]
	if idx, ok := parent.byName[name]; ok {
		child := &t.nodes[idx]
		child.count++
		child.startTick = startTick
		child.running = true
		return idx
	}
	idx := len(t.nodes)
	t.nodes = append(t.nodes, timerNode{
		name:      name,
		parent:    parentIdx,
		byName:    make(map[*TimerName]int),
		count:     1,
		startTick: startTick,
		running:   true,
	})
	parent.children = append(parent.children, idx)
	parent.byName[name] = idx
	return idx
}

// Stop closes the currently open measurement slice on the timer at idx.
// Stopping a timer that is not running is a no-op (consistent with the
// rest of the engine: end* calls are idempotent after the first).
func (t *TimerTree) Stop(idx int, endTick int64) {
	n := &t.nodes[idx]
	if !n.running {
		return
	}
	n.total += endTick - n.startTick
	n.running = false
}

// Total returns the accumulated total for idx, including the elapsed
// time of a currently open slice as of tick (pass the current tick for
// a running timer; the value is ignored if the timer is stopped). This
// is how an active snapshot normalizes in-flight timers to one capture
// tick without taking a lock.
func (t *TimerTree) Total(idx int, tick int64) int64 {
	n := &t.nodes[idx]
	if n.running {
		return n.total + (tick - n.startTick)
	}
	return n.total
}

// Snapshot materializes the subtree rooted at idx into an immutable
// Timer tree, normalizing any still-running timers to tick.
func (t *TimerTree) Snapshot(idx int, tick int64) *Timer {
	n := &t.nodes[idx]
	out := &Timer{
		Name:  nameOrEmpty(n.name),
		Total: t.Total(idx, tick),
		Count: n.count,
	}
	if len(n.children) > 0 {
		out.Children = make([]*Timer, 0, len(n.children))
		for _, c := range n.children {
			out.Children = append(out.Children, t.Snapshot(c, tick))
		}
	}
	return out
}

func nameOrEmpty(n *TimerName) string {
	if n == nil {
		return ""
	}
	return n.Name()
}
