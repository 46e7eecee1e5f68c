package glowroot

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/varsh009/glowroot/internal/clock"
	"github.com/varsh009/glowroot/internal/collector"
	"github.com/varsh009/glowroot/internal/config"
	"github.com/varsh009/glowroot/internal/model"
	"github.com/varsh009/glowroot/internal/registry"
)

type constMessage string

func (m constMessage) Message() string { return string(m) }

func newTestTracer(t *testing.T, maxEntries int) (*Tracer, *config.StaticConfigService, *collector.InMemoryCollector, *clock.Fake) {
	t.Helper()
	cfg, err := config.NewStaticConfigService(nil)
	require.NoError(t, err)
	cfg.SetMaxTraceEntriesPerTransaction(maxEntries)

	reg := registry.New()
	coll := collector.NewInMemoryCollector(100)
	clk := clock.NewFake(0, 0)
	tr := NewTracer(cfg, "", reg, coll, nil, clk)
	return tr, cfg, coll, clk
}

func timerName(t *testing.T, tr *Tracer, key string) *model.TimerName {
	t.Helper()
	return tr.GetTimerName(key, key, 0)
}

// Scenario: a single entry started and ended well under the cap
// produces exactly one child of the root entry, with entryCount
// reflecting both the root and the child.
func TestEndToEndSingleEntryUnderCap(t *testing.T) {
	tr, _, coll, clk := newTestTracer(t, 100)

	ctx, root := tr.StartTransaction(context.Background(), "web", "GET /x", constMessage("GET /x"), timerName(t, tr, "root"))
	require.True(t, tr.IsInTransaction(ctx))

	clk.Advance(1000, 0)
	entry := tr.StartTraceEntry(ctx, constMessage("query"), timerName(t, tr, "query"))
	clk.Advance(500, 0)
	entry.End()

	clk.Advance(200, 0)
	root.End()

	require.Equal(t, 1, coll.Len())
	tx := coll.Completed()[0]
	assert.EqualValues(t, 2, tx.EntryCount())
	snap := tx.Entries().Snapshot(tx.Entries().Root())
	assert.Len(t, snap.Children, 1)
	assert.Equal(t, "query", snap.Children[0].Message)
}

// Scenario: entries nested three deep all close and fold into the
// expected tree shape.
func TestEndToEndNestedEntries(t *testing.T) {
	tr, _, coll, clk := newTestTracer(t, 100)

	ctx, root := tr.StartTransaction(context.Background(), "web", "GET /x", constMessage("GET /x"), timerName(t, tr, "root"))

	e1 := tr.StartTraceEntry(ctx, constMessage("outer"), timerName(t, tr, "outer"))
	clk.Advance(100, 0)
	e2 := tr.StartTraceEntry(ctx, constMessage("middle"), timerName(t, tr, "middle"))
	clk.Advance(100, 0)
	e3 := tr.StartTraceEntry(ctx, constMessage("inner"), timerName(t, tr, "inner"))
	clk.Advance(100, 0)

	e3.End()
	e2.End()
	e1.End()
	root.End()

	require.Equal(t, 1, coll.Len())
	tx := coll.Completed()[0]
	snap := tx.Entries().Snapshot(tx.Entries().Root())
	require.Len(t, snap.Children, 1)
	require.Len(t, snap.Children[0].Children, 1)
	require.Len(t, snap.Children[0].Children[0].Children, 1)
	assert.Equal(t, "inner", snap.Children[0].Children[0].Children[0].Message)
}

// Scenario: once entryCount reaches the cap, further StartTraceEntry
// calls return dummy handles that record no tree node on a plain End,
// while entryCount still advances once per call, past the cap.
func TestEndToEndEntryCapExceeded(t *testing.T) {
	tr, _, coll, clk := newTestTracer(t, 2)

	ctx, root := tr.StartTransaction(context.Background(), "web", "GET /x", constMessage("GET /x"), timerName(t, tr, "root"))

	// The root entry counts as 1, bringing the cap of 2 within reach of
	// exactly one more live entry; the remaining four StartTraceEntry
	// calls are all over cap and return dummies.
	for i := 0; i < 5; i++ {
		e := tr.StartTraceEntry(ctx, constMessage("child"), timerName(t, tr, "child"))
		clk.Advance(10, 0)
		e.End()
	}

	root.End()

	require.Equal(t, 1, coll.Len())
	tx := coll.Completed()[0]
	snap := tx.Entries().Snapshot(tx.Entries().Root())
	// The limit-exceeded marker plus the one real (first) entry are the
	// root's only materialized children; every dummy's plain End left
	// no trace.
	assert.Len(t, snap.Children, 2)
	var sawMarker bool
	for _, c := range snap.Children {
		if c.LimitExceededMarker {
			sawMarker = true
		}
	}
	assert.True(t, sawMarker)
	assert.EqualValues(t, 6, tx.EntryCount())
}

// Scenario: a dummy entry ended with an error still materializes a
// flat node, since error entries are allowed through up to 2x the cap.
func TestEndToEndDummyEntryWithErrorStillRecorded(t *testing.T) {
	tr, _, coll, clk := newTestTracer(t, 2)

	ctx, root := tr.StartTransaction(context.Background(), "web", "GET /x", constMessage("GET /x"), timerName(t, tr, "root"))

	// The root entry brings entryCount to 1, leaving room for exactly one
	// more live entry before the cap of 2 is reached.
	live := tr.StartTraceEntry(ctx, constMessage("a"), timerName(t, tr, "a"))
	clk.Advance(10, 0)
	live.End()

	// This one is over cap (entryCount is already 2) but still under 2x
	// the cap, so its EndWithError still gets through.
	dummy := tr.StartTraceEntry(ctx, constMessage("failing call"), timerName(t, tr, "call"))
	clk.Advance(10, 0)
	dummy.EndWithError(&model.ErrorMessage{Message: "boom"})

	root.End()

	require.Equal(t, 1, coll.Len())
	tx := coll.Completed()[0]
	snap := tx.Entries().Snapshot(tx.Entries().Root())
	var sawError bool
	for _, c := range snap.Children {
		if c.Error != nil && c.Error.Message == "boom" {
			sawError = true
		}
	}
	assert.True(t, sawError)
}

// Scenario: a transaction's own entries and timers never leak into an
// unrelated, concurrently started transaction (no cross-transaction
// "re-entry").
func TestEndToEndTransactionsDoNotLeakAcrossContexts(t *testing.T) {
	tr, _, coll, clk := newTestTracer(t, 100)

	ctx1, root1 := tr.StartTransaction(context.Background(), "web", "GET /a", constMessage("GET /a"), timerName(t, tr, "root"))
	ctx2, root2 := tr.StartTransaction(context.Background(), "web", "GET /b", constMessage("GET /b"), timerName(t, tr, "root"))

	e1 := tr.StartTraceEntry(ctx1, constMessage("a-work"), timerName(t, tr, "work"))
	e2 := tr.StartTraceEntry(ctx2, constMessage("b-work"), timerName(t, tr, "work"))
	clk.Advance(10, 0)
	e1.End()
	e2.End()
	root1.End()
	root2.End()

	require.Equal(t, 2, coll.Len())
	wantChild := map[string]string{"GET /a": "a-work", "GET /b": "b-work"}
	for _, tx := range coll.Completed() {
		snap := tx.Entries().Snapshot(tx.Entries().Root())
		require.Len(t, snap.Children, 1)
		assert.Equal(t, wantChild[snap.Message], snap.Children[0].Message)
	}
}

// Scenario: starting a transaction on a context that already carries
// one behaves like StartTraceEntry instead of creating a second root.
func TestEndToEndStartTransactionOnExistingContextNests(t *testing.T) {
	tr, _, coll, clk := newTestTracer(t, 100)

	ctx, root := tr.StartTransaction(context.Background(), "web", "GET /x", constMessage("GET /x"), timerName(t, tr, "root"))
	ctx2, nested := tr.StartTransaction(ctx, "web", "ignored", constMessage("nested"), timerName(t, tr, "nested"))

	tx1, _ := FromContext(ctx)
	tx2, _ := FromContext(ctx2)
	assert.Equal(t, tx1.ID(), tx2.ID())

	clk.Advance(10, 0)
	nested.End()
	root.End()

	require.Equal(t, 1, coll.Len())
	tx := coll.Completed()[0]
	snap := tx.Entries().Snapshot(tx.Entries().Root())
	require.Len(t, snap.Children, 1)
	assert.Equal(t, "nested", snap.Children[0].Message)
}

// Scenario: SetTransactionCustomDetail populates the free-form detail
// blob independently of SetTransactionCustomAttribute's indexed
// multimap, and both survive into the completed snapshot.
func TestEndToEndCustomDetailDistinctFromCustomAttributes(t *testing.T) {
	tr, _, coll, clk := newTestTracer(t, 100)

	ctx, root := tr.StartTransaction(context.Background(), "web", "GET /x", constMessage("GET /x"), timerName(t, tr, "root"))
	tr.SetTransactionCustomAttribute(ctx, "tag", "checkout")
	tr.SetTransactionCustomDetail(ctx, "cart", map[string]any{"items": 3})

	clk.Advance(10, 0)
	root.End()

	require.Equal(t, 1, coll.Len())
	tx := coll.Completed()[0]
	assert.Equal(t, []string{"checkout"}, tx.CustomAttributes()["tag"])
	assert.Equal(t, map[string]any{"items": 3}, tx.CustomDetail()["cart"])
	assert.NotContains(t, tx.CustomDetail(), "tag")
}

// Scenario: once the root entry closes, the completion cascade runs
// exactly once — handed to the collector and removed from the registry
// in that order — even if some other code tried to pop the root again.
func TestEndToEndCompletionCascadeRunsOnce(t *testing.T) {
	tr, _, coll, clk := newTestTracer(t, 100)

	ctx, root := tr.StartTransaction(context.Background(), "web", "GET /x", constMessage("GET /x"), timerName(t, tr, "root"))
	tx, _ := FromContext(ctx)

	clk.Advance(10, 0)
	root.End()
	root.End() // idempotent: PopEntry on an already-closed root is a no-op

	assert.Equal(t, 1, coll.Len())
	assert.True(t, tx.IsCompleted())
	assert.EqualValues(t, 1, tx.EntryCount())
}
