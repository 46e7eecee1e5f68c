package aggregate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/varsh009/glowroot/internal/model"
)

func completedTx(startTick, endTick int64, errMsg string) *model.Transaction {
	tx := model.New(0, startTick, "Web", "GET /", model.MessageFunc(func() string { return "GET /" }), nil)
	var em *model.ErrorMessage
	if errMsg != "" {
		em = &model.ErrorMessage{Message: errMsg}
		tx.SetError(errMsg)
	}
	tx.PopEntry(tx.Entries().Root(), endTick, em)
	return tx
}

func TestBucketKeyHashIsStableAndDistinguishesNames(t *testing.T) {
	k1 := BucketKey{Type: "Web", Name: "GET /"}
	k2 := BucketKey{Type: "Web", Name: "GET /"}
	k3 := BucketKey{Type: "Web", Name: "POST /"}
	assert.Equal(t, k1.Hash(), k2.Hash())
	assert.NotEqual(t, k1.Hash(), k3.Hash())
}

func TestBuilderAddAccumulatesDurationErrorAndTraceCount(t *testing.T) {
	b := NewBuilder()

	b.Add(completedTx(0, 100_000, ""), true)
	b.Add(completedTx(0, 200_000, ""), true)
	b.Add(completedTx(0, 500_000, "boom"), false)

	agg := b.Build(1000)
	assert.Equal(t, int64(3), agg.TransactionCount)
	assert.Equal(t, int64(800), agg.TotalMicros)
	assert.Equal(t, int64(1), agg.ErrorCount)
	assert.Equal(t, int64(2), agg.TraceCount)
	require.NotEmpty(t, agg.HistogramBytes)
}

func TestBuilderAddToTimersMergesByName(t *testing.T) {
	b := NewBuilder()

	for i := 0; i < 3; i++ {
		tx := completedTx(0, 100, "")
		rootTimer := tx.Timers().Snapshot(tx.RootTimer(), tx.EndTick())
		b.AddToTimers(rootTimer)
	}

	agg := b.Build(1000)
	require.NotNil(t, agg.Timers)
	assert.Equal(t, int64(3), agg.Timers.Count)
}

func TestBuilderAddToProfileMergesByFrame(t *testing.T) {
	b := NewBuilder()
	tx := completedTx(0, 100, "")
	tx.AddProfileSample([]string{"main", "handler"})
	tx.AddProfileSample([]string{"main", "handler"})

	b.AddToProfile(tx.Profile().Snapshot(), tx.ProfileSampleCount())

	agg := b.Build(1000)
	assert.Equal(t, int64(2), agg.ProfileSampleCount)
	require.Len(t, agg.Profile.Children(), 1)
	assert.Equal(t, "main", agg.Profile.Children()[0].Frame)
}

func TestBuilderMergeWithEmptyBucketIsIdentity(t *testing.T) {
	b := NewBuilder()
	b.Add(completedTx(0, 100, ""), true)
	b.Add(completedTx(0, 200, "boom"), false)

	before := b.Build(1000)

	empty := NewBuilder()
	b.Merge(empty)

	after := b.Build(1000)
	assert.Equal(t, before.TransactionCount, after.TransactionCount)
	assert.Equal(t, before.TotalMicros, after.TotalMicros)
	assert.Equal(t, before.ErrorCount, after.ErrorCount)
	assert.Equal(t, before.TraceCount, after.TraceCount)
}

func TestBuilderMergeCombinesTwoBuckets(t *testing.T) {
	a := NewBuilder()
	a.Add(completedTx(0, 100_000, ""), true)

	b := NewBuilder()
	b.Add(completedTx(0, 200_000, ""), true)

	a.Merge(b)
	agg := a.Build(1000)
	assert.Equal(t, int64(2), agg.TransactionCount)
	assert.Equal(t, int64(300), agg.TotalMicros)
}

func TestLazyHistogramAddAndDistribution(t *testing.T) {
	h := NewLazyHistogram()
	h.Add(100)
	h.Add(200)
	h.Add(500)

	assert.Equal(t, int64(3), h.TotalCount())
	counts, values := h.Distribution()
	assert.Len(t, counts, len(values))
	assert.NotEmpty(t, counts)
}

func TestLazyHistogramMergeWithEmptyIsIdentity(t *testing.T) {
	h := NewLazyHistogram()
	h.Add(100)
	h.Add(300)

	empty := NewLazyHistogram()
	h.Merge(empty)

	assert.Equal(t, int64(2), h.TotalCount())
}
