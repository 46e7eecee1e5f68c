package aggregate

import "github.com/varsh009/glowroot/internal/model"

// AggregateProfileNode is one node of a stack-sampling profile tree
// merged across many transactions, by frame identity — the same policy
// model.Profile uses for one transaction, lifted to the aggregate
// level, matching AggregateBuilder.addToProfile in the original source.
type AggregateProfileNode struct {
	Frame       string
	SampleCount int64
	children    []*AggregateProfileNode
	byFrame     map[string]*AggregateProfileNode
}

func newAggregateProfileNode(frame string) *AggregateProfileNode {
	return &AggregateProfileNode{Frame: frame, byFrame: make(map[string]*AggregateProfileNode)}
}

// NewAggregateProfileTree returns an empty synthetic root.
func NewAggregateProfileTree() *AggregateProfileNode {
	return newAggregateProfileNode("")
}

// Merge folds one transaction's materialized profile tree into the
// receiver.
func (a *AggregateProfileNode) Merge(n *model.ProfileNode) {
	a.SampleCount += n.SampleCount
	for _, child := range n.Children {
		a.mergeChild(child)
	}
}

func (a *AggregateProfileNode) mergeChild(n *model.ProfileNode) {
	child, ok := a.byFrame[n.Frame]
	if !ok {
		child = newAggregateProfileNode(n.Frame)
		a.byFrame[n.Frame] = child
		a.children = append(a.children, child)
	}
	child.Merge(n)
}

// Children returns the receiver's merged child frames, in first-seen
// order.
func (a *AggregateProfileNode) Children() []*AggregateProfileNode { return a.children }
