package model

import "github.com/varsh009/glowroot/internal/log"

// MessageSupplier lazily produces the human-readable message for an
// entry. It is evaluated only when the entry is serialized (snapshot or
// storage), never on the hot instrumentation path.
type MessageSupplier interface {
	Message() string
}

// MessageFunc adapts a plain function to MessageSupplier.
type MessageFunc func() string

// Message implements MessageSupplier.
func (f MessageFunc) Message() string { return f() }

// ErrorMessage describes an error attached to an entry or transaction.
// Exception is nil when the error was reported without a Go error value
// (for example, a plugin reporting a logical failure) — in that case the
// caller captures a stack trace, mirroring the Java original's
// ReadableErrorMessage.getExceptionInfo() == null branch.
type ErrorMessage struct {
	Message   string
	Exception error
}

// Entry is an immutable, materialized view of one node in an entry
// tree, used for serialization.
type Entry struct {
	StartTick            int64
	EndTick              int64
	Message              string
	Error                *ErrorMessage
	StackTrace           []string
	LimitExceededMarker  bool
	Children             []*Entry
}

// entryNode is one live node in a transaction's entry tree.
type entryNode struct {
	parent     int
	children   []int
	startTick  int64
	endTick    int64
	ended      bool
	message    MessageSupplier
	err        *ErrorMessage
	stackTrace []string
	timerIdx   int
	limitMarker bool
}

// EntryTree owns every entry belonging to one transaction, plus the
// stack of currently-open entries (innermost last).
type EntryTree struct {
	nodes []entryNode
	open  []int // LIFO stack of open entry indices
}

// NewEntryTree creates a tree with a single open root entry.
func NewEntryTree(startTick int64, message MessageSupplier, timerIdx int) *EntryTree {
	t := &EntryTree{nodes: make([]entryNode, 0, 16)}
	t.nodes = append(t.nodes, entryNode{
		parent:   -1,
		startTick: startTick,
		message:  message,
		timerIdx: timerIdx,
	})
	t.open = []int{0}
	return t
}

// Root returns the index of the root entry.
func (t *EntryTree) Root() int { return 0 }

// Depth returns the number of currently open entries.
func (t *EntryTree) Depth() int { return len(t.open) }

// Current returns the index of the innermost open entry, or -1 if none
// is open (which should not happen while the transaction is live).
func (t *EntryTree) Current() int {
	if len(t.open) == 0 {
		return -1
	}
	return t.open[len(t.open)-1]
}

// Push opens a new entry as a child of the current innermost open entry
// and returns its index.
func (t *EntryTree) Push(startTick int64, message MessageSupplier, timerIdx int) int {
	parentIdx := t.Current()
	idx := len(t.nodes)
	t.nodes = append(t.nodes, entryNode{
		parent:    parentIdx,
		startTick: startTick,
		message:   message,
		timerIdx:  timerIdx,
	})
	if parentIdx >= 0 {
		t.nodes[parentIdx].children = append(t.nodes[parentIdx].children, idx)
	}
	t.open = append(t.open, idx)
	return idx
}

// Pop closes the entry at idx. If idx is not the innermost open entry —
// an out-of-order end*, which the weaver should never produce but which
// the facade must survive without corrupting the stack — every entry
// above idx on the open stack is force-closed at endTick first, with a
// warning logged once per occurrence, and then idx itself is closed.
// Calling Pop on an entry that is already closed is a no-op.
func (t *EntryTree) Pop(idx int, endTick int64, err *ErrorMessage) {
	if t.nodes[idx].ended {
		return
	}
	pos := -1
	for i := len(t.open) - 1; i >= 0; i-- {
		if t.open[i] == idx {
			pos = i
			break
		}
	}
	if pos == -1 {
		// idx isn't open at all (shouldn't happen, but stay defensive).
		t.close(idx, endTick, err)
		return
	}
	if pos != len(t.open)-1 {
		log.Warnf("trace entry popped out of order at depth %d (expected %d); force-closing %d intervening entries",
			pos, len(t.open)-1, len(t.open)-1-pos)
		for i := len(t.open) - 1; i > pos; i-- {
			t.close(t.open[i], endTick, nil)
		}
	}
	t.close(idx, endTick, err)
	t.open = t.open[:pos]
}

func (t *EntryTree) close(idx int, endTick int64, err *ErrorMessage) {
	n := &t.nodes[idx]
	n.endTick = endTick
	n.err = err
	n.ended = true
}

// TimerIndex returns the index, in the owning transaction's TimerTree,
// of the timer that idx owns.
func (t *EntryTree) TimerIndex(idx int) int { return t.nodes[idx].timerIdx }

// SetStackTrace attaches a captured stack trace to idx.
func (t *EntryTree) SetStackTrace(idx int, frames []string) {
	t.nodes[idx].stackTrace = frames
}

// AddFlat appends a zero-duration (or pre-timed), non-nested entry as a
// child of the currently open entry, bypassing the open-entry stack
// entirely. This is how the limit-exceeded marker and the cap-exceeded
// flat error/slow entries are recorded: they are known to have already
// ended, so there is nothing to push and later pop.
func (t *EntryTree) AddFlat(startTick, endTick int64, message MessageSupplier, err *ErrorMessage, limitMarker bool) int {
	parentIdx := t.Current()
	idx := len(t.nodes)
	t.nodes = append(t.nodes, entryNode{
		parent:      parentIdx,
		startTick:   startTick,
		endTick:     endTick,
		ended:       true,
		message:     message,
		err:         err,
		timerIdx:    -1,
		limitMarker: limitMarker,
	})
	if parentIdx >= 0 {
		t.nodes[parentIdx].children = append(t.nodes[parentIdx].children, idx)
	}
	return idx
}

// Snapshot materializes the subtree rooted at idx into an immutable
// Entry tree. Evaluating each node's lazy MessageSupplier happens here,
// exactly once, at serialization time.
func (t *EntryTree) Snapshot(idx int) *Entry {
	n := &t.nodes[idx]
	out := &Entry{
		StartTick:           n.startTick,
		EndTick:             n.endTick,
		Error:               n.err,
		StackTrace:          n.stackTrace,
		LimitExceededMarker: n.limitMarker,
	}
	if n.message != nil {
		out.Message = n.message.Message()
	}
	if len(n.children) > 0 {
		out.Children = make([]*Entry, 0, len(n.children))
		for _, c := range n.children {
			out.Children = append(out.Children, t.Snapshot(c))
		}
	}
	return out
}
