// Package aggregate implements the periodic fold of many completed
// transactions into per-(transactionType, transactionName) summaries:
// a latency histogram, a merged timer tree, a merged profile tree, and
// scalar accumulators — the Go counterpart of the original source's
// collector.AggregateBuilder, generalized to spec §4.5.
package aggregate

import (
	"github.com/cespare/xxhash/v2"

	"github.com/varsh009/glowroot/internal/model"
)

// BucketKey identifies one aggregation bucket: the per-(type,name)
// buckets, or the per-type-overall bucket when Name is empty.
type BucketKey struct {
	Type string
	Name string
}

// Hash returns a fast, allocation-light hash of the key for indexing a
// bucket store by integer rather than by string pair — the same
// approach elastic-apm-server's txmetrics/servicetxmetrics aggregators
// use to key their own aggregation maps.
func (k BucketKey) Hash() uint64 {
	h := xxhash.New()
	_, _ = h.WriteString(k.Type)
	_, _ = h.Write([]byte{0})
	_, _ = h.WriteString(k.Name)
	return h.Sum64()
}

// Aggregate is the immutable record emitted by Build: one bucket's
// accumulated summary as of one capture time.
type Aggregate struct {
	CaptureTimeMillis int64

	TransactionCount int64
	ErrorCount       int64
	TraceCount       int64
	TotalMicros      int64

	TotalCPUMicros      *int64
	TotalBlockedMicros  *int64
	TotalWaitedMicros   *int64
	TotalAllocatedBytes *int64

	HistogramBytes []byte

	Timers *AggregateTimer

	ProfileSampleCount int64
	Profile            *AggregateProfileNode
}

// Builder incrementally folds transactions into one bucket's
// accumulators. The zero value is not usable; construct with
// NewBuilder.
type Builder struct {
	transactionCount int64
	errorCount       int64
	traceCount       int64
	totalMicros      int64

	totalCPUMicros      *int64
	totalBlockedMicros  *int64
	totalWaitedMicros   *int64
	totalAllocatedBytes *int64

	histogram *LazyHistogram
	timers    *AggregateTimer

	profileSampleCount int64
	profile            *AggregateProfileNode
}

// NewBuilder returns an empty accumulator for one bucket.
func NewBuilder() *Builder {
	return &Builder{
		histogram: NewLazyHistogram(),
		timers:    NewAggregateTimerTree(),
		profile:   NewAggregateProfileTree(),
	}
}

// Add folds one completed transaction into the bucket. stored reports
// whether this transaction is going to be persisted as a full trace
// (traceCount only counts those); it is an external storage-threshold
// decision, not something derivable from the transaction alone.
func (b *Builder) Add(tx *model.Transaction, stored bool) {
	durationMicros := microsFromNanos(tx.EndTick() - tx.StartTick())
	b.totalMicros += durationMicros
	b.transactionCount++
	if tx.Error() != "" {
		b.errorCount++
	}
	if stored {
		b.traceCount++
	}
	if info := tx.ThreadInfo(); info != nil {
		if info.CPUTime != nil {
			addMicros(&b.totalCPUMicros, *info.CPUTime)
		}
		if info.BlockedTime != nil {
			addMicros(&b.totalBlockedMicros, *info.BlockedTime)
		}
		if info.WaitedTime != nil {
			addMicros(&b.totalWaitedMicros, *info.WaitedTime)
		}
		if info.AllocatedBytes != nil {
			addInt64(&b.totalAllocatedBytes, *info.AllocatedBytes)
		}
	}
	b.histogram.Add(durationMicros)
}

// AddToTimers merges one transaction's materialized root timer into the
// bucket's synthetic-root merged timer tree.
func (b *Builder) AddToTimers(root *model.Timer) {
	b.timers.Add(root)
}

// AddToProfile merges one transaction's materialized profile tree into
// the bucket's merged profile tree and advances the sample counter by
// sampleCount, the transaction's own total sample count.
func (b *Builder) AddToProfile(root *model.ProfileNode, sampleCount int64) {
	if root == nil {
		return
	}
	b.profile.Merge(root)
	b.profileSampleCount += sampleCount
}

// Build emits the immutable Aggregate as of captureTimeMillis.
func (b *Builder) Build(captureTimeMillis int64) *Aggregate {
	return &Aggregate{
		CaptureTimeMillis: captureTimeMillis,

		TransactionCount: b.transactionCount,
		ErrorCount:       b.errorCount,
		TraceCount:       b.traceCount,
		TotalMicros:      b.totalMicros,

		TotalCPUMicros:      b.totalCPUMicros,
		TotalBlockedMicros:  b.totalBlockedMicros,
		TotalWaitedMicros:   b.totalWaitedMicros,
		TotalAllocatedBytes: b.totalAllocatedBytes,

		HistogramBytes: b.histogram.Encode(),
		Timers:         b.timers,

		ProfileSampleCount: b.profileSampleCount,
		Profile:            b.profile,
	}
}

// Merge folds other's accumulators into the receiver, used to combine
// two buckets (e.g. an in-flight bucket with a just-flushed one).
// Merging with an empty bucket is the identity operation.
func (b *Builder) Merge(other *Builder) {
	b.transactionCount += other.transactionCount
	b.errorCount += other.errorCount
	b.traceCount += other.traceCount
	b.totalMicros += other.totalMicros

	mergeOptional(&b.totalCPUMicros, other.totalCPUMicros)
	mergeOptional(&b.totalBlockedMicros, other.totalBlockedMicros)
	mergeOptional(&b.totalWaitedMicros, other.totalWaitedMicros)
	mergeOptional(&b.totalAllocatedBytes, other.totalAllocatedBytes)

	b.histogram.Merge(other.histogram)
	b.timers.Add(snapshotAggregateTimer(other.timers))

	b.profileSampleCount += other.profileSampleCount
	b.profile.Merge(snapshotAggregateProfileNode(other.profile))
}

func addMicros(dst **int64, nanos int64) { addInt64(dst, nanos/1000) }

func addInt64(dst **int64, v int64) {
	if *dst == nil {
		nv := v
		*dst = &nv
		return
	}
	**dst += v
}

func mergeOptional(dst **int64, src *int64) {
	if src == nil {
		return
	}
	addInt64(dst, *src)
}

// snapshotAggregateTimer converts an already-merged AggregateTimer back
// into the model.Timer shape so Builder.Merge can reuse mergeChild's
// by-name merge logic across two Builders' trees.
func snapshotAggregateTimer(a *AggregateTimer) *model.Timer {
	out := &model.Timer{Name: a.Name, Total: a.TotalMicros * 1000, Count: a.Count}
	for _, c := range a.Children() {
		out.Children = append(out.Children, snapshotAggregateTimer(c))
	}
	return out
}

func snapshotAggregateProfileNode(a *AggregateProfileNode) *model.ProfileNode {
	out := &model.ProfileNode{Frame: a.Frame, SampleCount: a.SampleCount}
	for _, c := range a.Children() {
		out.Children = append(out.Children, snapshotAggregateProfileNode(c))
	}
	return out
}
