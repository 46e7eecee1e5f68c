package glowroot

import "github.com/varsh009/glowroot/internal/model"

// TraceEntry is the handle returned by StartTransaction and
// StartTraceEntry. Per spec §9 it has three variants — live, dummy
// (the per-transaction cap was exceeded), and no-op (disabled or
// invalid arguments) — sharing this one capability set so instrumented
// code never needs to branch on which variant it holds.
type TraceEntry interface {
	// End closes the entry with no error, using the current tick.
	End()
	// EndWithStackTrace closes the entry, capturing a stack trace if the
	// entry's elapsed time is at least thresholdNanos.
	EndWithStackTrace(thresholdNanos int64)
	// EndWithError closes the entry with errMsg attached.
	EndWithError(errMsg *model.ErrorMessage)
	// MessageSupplier returns the entry's lazy message supplier.
	MessageSupplier() model.MessageSupplier
}

// Timer is the handle returned by StartTimer. It has two variants in
// practice — live and no-op — since the per-transaction entry cap that
// produces TraceEntry's dummy variant has no analogue for a bare timer.
type Timer interface {
	// Stop closes the timer's currently open measurement slice, using
	// the current tick.
	Stop()
}

// liveEntry is a TraceEntry backed by a real node in the transaction's
// entry tree.
type liveEntry struct {
	tracer    *Tracer
	tx        *model.Transaction
	idx       int
	timerIdx  int
	startTick int64
	message   model.MessageSupplier
}

func (e *liveEntry) End() {
	e.finish(e.tracer.clock.Read(), nil)
}

func (e *liveEntry) EndWithStackTrace(thresholdNanos int64) {
	endTick := e.tracer.clock.Read()
	if endTick-e.startTick >= thresholdNanos {
		e.tx.Entries().SetStackTrace(e.idx, captureStackTrace(3))
	}
	e.finish(endTick, nil)
}

func (e *liveEntry) EndWithError(errMsg *model.ErrorMessage) {
	e.finish(e.tracer.clock.Read(), errMsg)
}

func (e *liveEntry) finish(endTick int64, errMsg *model.ErrorMessage) {
	e.tx.StopTimer(e.timerIdx, endTick)
	e.tracer.popEntry(e.tx, e.idx, endTick, errMsg)
}

func (e *liveEntry) MessageSupplier() model.MessageSupplier { return e.message }

// dummyEntry is a TraceEntry created once the per-transaction entry cap
// has been exceeded: it still times its operation (a real, nested
// timer) but contributes no node to the entry tree, except that
// EndWithStackTrace/EndWithError may still append a flat entry as long
// as the transaction is under 2x the cap — the "error entries and slow
// entries still get through up to double the cap" allowance.
type dummyEntry struct {
	tracer    *Tracer
	tx        *model.Transaction
	timerIdx  int
	startTick int64
	message   model.MessageSupplier
}

func (e *dummyEntry) End() {
	e.tx.StopTimer(e.timerIdx, e.tracer.clock.Read())
}

// EndWithStackTrace, unlike AddTraceEntry, does not touch entryCount:
// the dummy entry was already counted against entryCount when it was
// created (the cap-exceeded branch of StartTraceEntry). Materializing it
// as a flat node here, because it turned out slow enough to be
// interesting, finalizes that same logical entry rather than creating a
// second one — so it is allowed through as long as entryCount (already
// incremented) is still under 2x the cap.
func (e *dummyEntry) EndWithStackTrace(thresholdNanos int64) {
	endTick := e.tracer.clock.Read()
	e.tx.StopTimer(e.timerIdx, endTick)
	if endTick-e.startTick < thresholdNanos {
		return
	}
	if !e.tracer.underDoubleCap(e.tx) {
		return
	}
	idx := e.tx.Entries().AddFlat(e.startTick, endTick, e.message, nil, false)
	e.tx.Entries().SetStackTrace(idx, captureStackTrace(3))
}

// EndWithError finalizes the dummy entry as a flat error node under the
// same already-counted budget as EndWithStackTrace.
func (e *dummyEntry) EndWithError(errMsg *model.ErrorMessage) {
	endTick := e.tracer.clock.Read()
	e.tx.StopTimer(e.timerIdx, endTick)
	if !e.tracer.underDoubleCap(e.tx) {
		return
	}
	e.tx.Entries().AddFlat(e.startTick, endTick, e.message, errMsg, false)
}

func (e *dummyEntry) MessageSupplier() model.MessageSupplier { return e.message }

// noopEntry is the singleton TraceEntry returned for disabled tracing
// or invalid arguments; every method is a deliberate no-op.
type noopEntry struct{}

var noopEntrySingleton TraceEntry = noopEntry{}

func (noopEntry) End()                                  {}
func (noopEntry) EndWithStackTrace(thresholdNanos int64) {}
func (noopEntry) EndWithError(errMsg *model.ErrorMessage) {}
func (noopEntry) MessageSupplier() model.MessageSupplier { return nil }

// liveTimer is a Timer backed by a real node in the transaction's timer
// tree.
type liveTimer struct {
	tracer *Tracer
	tx     *model.Transaction
	idx    int
}

func (t *liveTimer) Stop() {
	t.tx.StopTimer(t.idx, t.tracer.clock.Read())
}

// noopTimer is the singleton Timer returned for disabled tracing,
// invalid arguments, or when no current transaction exists.
type noopTimer struct{}

var noopTimerSingleton Timer = noopTimer{}

func (noopTimer) Stop() {}
