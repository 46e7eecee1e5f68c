package model

// ProfileNode is an immutable, materialized view of one stack frame in
// a merged stack-sampling profile tree.
type ProfileNode struct {
	Frame       string
	SampleCount int64
	Children    []*ProfileNode
}

// profileNode is the live, mutable counterpart, merged by frame
// identity (the function name) rather than by position — the same
// policy the timer tree and the aggregate timer tree use, and for the
// same reason: unrelated call stacks that happen to share a prefix
// should collapse into one branch.
type profileNode struct {
	frame       string
	sampleCount int64
	children    []*profileNode
	byFrame     map[string]*profileNode
}

func newProfileNode(frame string) *profileNode {
	return &profileNode{frame: frame, byFrame: make(map[string]*profileNode)}
}

// Profile accumulates periodic stack samples for one transaction into a
// merged frame tree, restoring the stack-sampling feature present in
// the original collector's AggregateBuilder.addToProfile but compressed
// out of the distilled spec.
type Profile struct {
	root        *profileNode
	sampleCount int64
}

// NewProfile returns an empty profile tree.
func NewProfile() *Profile {
	return &Profile{root: newProfileNode("")}
}

// AddSample merges one stack sample into the tree. frames is ordered
// outermost-first (frames[0] is the root of the call stack, e.g. the
// goroutine's entry point; the last element is where execution was
// when the sample was taken) — the orientation runtime.Stack output
// must be reversed into before calling this.
func (p *Profile) AddSample(frames []string) {
	p.sampleCount++
	node := p.root
	for _, frame := range frames {
		child, ok := node.byFrame[frame]
		if !ok {
			child = newProfileNode(frame)
			node.byFrame[frame] = child
			node.children = append(node.children, child)
		}
		node = child
	}
	node.sampleCount++
}

// SampleCount returns the total number of samples merged into this
// profile.
func (p *Profile) SampleCount() int64 { return p.sampleCount }

// Snapshot materializes the tree into an immutable ProfileNode tree.
func (p *Profile) Snapshot() *ProfileNode {
	return snapshotProfileNode(p.root)
}

func snapshotProfileNode(n *profileNode) *ProfileNode {
	out := &ProfileNode{Frame: n.frame, SampleCount: n.sampleCount}
	if len(n.children) > 0 {
		out.Children = make([]*ProfileNode, 0, len(n.children))
		for _, c := range n.children {
			out.Children = append(out.Children, snapshotProfileNode(c))
		}
	}
	return out
}
