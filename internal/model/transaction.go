package model

import (
	"sync"
	"sync/atomic"

	uatomic "go.uber.org/atomic"
)

// CancelFunc cancels a scheduled background task (immediate trace-store
// or user-profiling). Cancellation is advisory: an already-running
// callback is allowed to finish.
type CancelFunc func()

// Transaction is the root aggregate of one traced unit of work: its
// entry tree, its timer tree, and the classification/metadata fields
// instrumentation mutates as the transaction runs.
//
// Per-transaction state is created and mutated on exactly one
// goroutine (the one running the instrumented code); the fields that
// snapshot/aggregate code reads from other goroutines are published
// either through atomic counters or through copy-on-write pointers, so
// readers never take a lock that could block the owning goroutine, and
// never observe a partially-written map.
type Transaction struct {
	id              ID
	startTimeMillis int64
	startTick       int64

	captureTick atomic.Int64 // set once, on completion
	endTick     atomic.Int64

	transactionType atomic.Pointer[string]
	transactionName atomic.Pointer[string]
	headline        string // derived once from the root message, immutable thereafter
	user            atomic.Pointer[string]
	errorMsg        atomic.Pointer[string]

	customAttributes atomic.Pointer[map[string][]string]
	customDetail     atomic.Pointer[map[string]any]

	// entries/timers are only ever touched by the owning goroutine
	// except for the read-only Snapshot methods, which tolerate torn
	// reads against an in-flight write by design (see spec §4.4).
	entries *EntryTree
	timers  *TimerTree

	mu               sync.Mutex // guards currentTimerIdx only
	currentTimerIdx  int

	threadInfo atomic.Pointer[ThreadInfo]
	gcInfo     atomic.Pointer[GCInfo]
	profile    *Profile

	entryCount         uatomic.Int64
	profileSampleCount uatomic.Int64
	markerAdded        uatomic.Bool

	traceStoreThresholdOverrideMillis atomic.Int64 // -1 means unset
	userProfileTask                   atomic.Pointer[CancelFunc]
	immediateTraceStoreTask           atomic.Pointer[CancelFunc]

	completed uatomic.Bool
}

// New creates a transaction with an already-started root timer and an
// already-open root entry, exactly as PluginServices.startTransaction
// does in one step.
func New(startTimeMillis, startTick int64, transactionType, transactionName string,
	rootMessage MessageSupplier, rootTimerName *TimerName) *Transaction {

	tx := &Transaction{
		id:              NewID(),
		startTimeMillis: startTimeMillis,
		startTick:       startTick,
		timers:          NewTimerTree(rootTimerName, startTick),
		profile:         NewProfile(),
	}
	tx.transactionType.Store(&transactionType)
	tx.transactionName.Store(&transactionName)
	if rootMessage != nil {
		tx.headline = rootMessage.Message()
	}
	tx.traceStoreThresholdOverrideMillis.Store(-1)
	tx.entries = NewEntryTree(startTick, rootMessage, tx.timers.Root())
	tx.currentTimerIdx = tx.timers.Root()
	tx.entryCount.Inc() // root entry is pushed as part of transaction creation
	return tx
}

// ID returns the transaction's stable identity.
func (t *Transaction) ID() ID { return t.id }

// StartTimeMillis returns the wall-clock start time.
func (t *Transaction) StartTimeMillis() int64 { return t.startTimeMillis }

// StartTick returns the monotonic start tick.
func (t *Transaction) StartTick() int64 { return t.startTick }

// CaptureTick returns the tick at which this transaction was captured
// for completion; zero until the root entry is popped.
func (t *Transaction) CaptureTick() int64 { return t.captureTick.Load() }

// EndTick returns the root entry's end tick; zero until completed.
func (t *Transaction) EndTick() int64 { return t.endTick.Load() }

// TransactionType returns the current transaction type.
func (t *Transaction) TransactionType() string { return derefOr(t.transactionType.Load(), "") }

// SetTransactionType sets the transaction type. No-op before completion
// is not enforced here; the facade is responsible for routing calls
// only to live transactions.
func (t *Transaction) SetTransactionType(v string) { t.transactionType.Store(&v) }

// TransactionName returns the current transaction name.
func (t *Transaction) TransactionName() string { return derefOr(t.transactionName.Load(), "") }

// SetTransactionName sets the transaction name.
func (t *Transaction) SetTransactionName(v string) { t.transactionName.Store(&v) }

// Headline returns the transaction's headline, derived once from the
// root message supplier at creation.
func (t *Transaction) Headline() string { return t.headline }

// User returns the current user, or "" if none was set.
func (t *Transaction) User() string { return derefOr(t.user.Load(), "") }

// SetUser sets the user. Returns true the first time a non-empty user
// is set (the caller uses this to decide whether to kick off user
// profiling, exactly once).
func (t *Transaction) SetUser(v string) (firstAssignment bool) {
	if v == "" {
		return false
	}
	firstAssignment = t.user.Load() == nil
	t.user.Store(&v)
	return firstAssignment
}

// Error returns the transaction-level error message, or "" if none.
func (t *Transaction) Error() string { return derefOr(t.errorMsg.Load(), "") }

// SetError sets the transaction-level error message.
func (t *Transaction) SetError(v string) { t.errorMsg.Store(&v) }

// PutCustomAttribute appends value to the multi-valued attribute named
// name, using copy-on-write so concurrent readers never see a map
// being mutated in place.
func (t *Transaction) PutCustomAttribute(name, value string) {
	for {
		old := t.customAttributes.Load()
		next := make(map[string][]string, mapLenOrZero(old))
		if old != nil {
			for k, v := range *old {
				next[k] = v
			}
		}
		next[name] = append(append([]string{}, next[name]...), value)
		if t.customAttributes.CompareAndSwap(old, &next) {
			return
		}
	}
}

// CustomAttributes returns the current custom attribute map. The
// returned map must not be mutated by the caller.
func (t *Transaction) CustomAttributes() map[string][]string {
	p := t.customAttributes.Load()
	if p == nil {
		return nil
	}
	return *p
}

// PutCustomDetail sets a value in the transaction's nested display
// detail map, again via copy-on-write.
func (t *Transaction) PutCustomDetail(name string, value any) {
	for {
		old := t.customDetail.Load()
		next := make(map[string]any, mapLenOrZero(old))
		if old != nil {
			for k, v := range *old {
				next[k] = v
			}
		}
		next[name] = value
		if t.customDetail.CompareAndSwap(old, &next) {
			return
		}
	}
}

// CustomDetail returns the current custom detail map.
func (t *Transaction) CustomDetail() map[string]any {
	p := t.customDetail.Load()
	if p == nil {
		return nil
	}
	return *p
}

// Entries returns the transaction's entry tree.
func (t *Transaction) Entries() *EntryTree { return t.entries }

// Timers returns the transaction's timer tree.
func (t *Transaction) Timers() *TimerTree { return t.timers }

// RootTimer returns the index of the root timer.
func (t *Transaction) RootTimer() int { return t.timers.Root() }

// CurrentTimer returns the index of the innermost currently-live timer.
// Per spec §4.2, if none is set (which should be impossible while the
// transaction is live) callers must fall back to a no-op rather than
// corrupt the tree; ok reports whether a current timer exists.
func (t *Transaction) CurrentTimer() (idx int, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.currentTimerIdx < 0 {
		return 0, false
	}
	return t.currentTimerIdx, true
}

// SetCurrentTimer updates the innermost currently-live timer pointer.
// It is independent of the entry stack: timers nest more finely than
// entries (a startTimer call has no matching entry).
func (t *Transaction) SetCurrentTimer(idx int) {
	t.mu.Lock()
	t.currentTimerIdx = idx
	t.mu.Unlock()
}

// StopTimer closes the timer at idx and, if idx was the current timer,
// restores the current-timer pointer to idx's parent — keeping
// CurrentTimer in lockstep with whichever StartTraceEntry/StartTimer
// call is ending, the same way the entry tree's open stack unwinds on
// every Pop.
func (t *Transaction) StopTimer(idx int, endTick int64) {
	t.timers.Stop(idx, endTick)
	t.mu.Lock()
	if t.currentTimerIdx == idx {
		t.currentTimerIdx = t.timers.Parent(idx)
	}
	t.mu.Unlock()
}

// PushEntry opens a new entry under the current entry stack, owned by
// the timer at timerIdx, and increments entryCount. It returns the new
// entry's index.
func (t *Transaction) PushEntry(startTick int64, message MessageSupplier, timerIdx int) int {
	t.entryCount.Inc()
	return t.entries.Push(startTick, message, timerIdx)
}

// PopEntry closes the entry at idx. If idx is the root entry, the
// transaction is marked complete and its capture tick/end tick are
// recorded; popping the root again after that changes nothing. The
// caller (the facade) is responsible for running the completion cascade
// exactly once, which it detects via IsCompleted flipping from false to
// true as a result of this call.
func (t *Transaction) PopEntry(idx int, endTick int64, errMsg *ErrorMessage) {
	t.entries.Pop(idx, endTick, errMsg)
	if idx == t.entries.Root() && !t.completed.Load() {
		t.StopTimer(t.timers.Root(), endTick)
		t.captureTick.Store(endTick)
		t.endTick.Store(endTick)
		t.completed.Store(true)
	}
}

// AddEntry appends a flat, non-nested entry (bypassing the open-entry
// stack) and increments entryCount. Used by the facade's AddTraceEntry;
// the cap-exceeded flat error/slow entries go through EntryTree.AddFlat
// directly, since their dummy handle was already counted.
func (t *Transaction) AddEntry(startTick, endTick int64, message MessageSupplier, errMsg *ErrorMessage) int {
	t.entryCount.Inc()
	return t.entries.AddFlat(startTick, endTick, message, errMsg, false)
}

// AddEntryLimitExceededMarkerIfNeeded appends the one-time
// "limit exceeded" marker entry the first time it is called for this
// transaction, and is a no-op on every subsequent call.
func (t *Transaction) AddEntryLimitExceededMarkerIfNeeded() {
	if !t.markerAdded.CompareAndSwap(false, true) {
		return
	}
	t.entries.AddFlat(0, 0, MessageFunc(func() string { return "trace entry limit exceeded" }), nil, true)
}

// EntryCount returns the total number of entries created, including
// the root and ones suppressed by the cap. The limit-exceeded marker
// itself is not counted.
func (t *Transaction) EntryCount() int64 { return t.entryCount.Load() }

// IncrementEntryCount increments the entry counter without creating an
// entry — used when a trace entry is started after the cap is reached
// and a dummy handle is returned instead, so the counter still reflects
// "this operation happened" even though no entry was pushed.
func (t *Transaction) IncrementEntryCount() { t.entryCount.Inc() }

// ProfileSampleCount returns the number of stack samples folded into
// this transaction's profile.
func (t *Transaction) ProfileSampleCount() int64 { return t.profileSampleCount.Load() }

// Profile returns the transaction's stack-sampling profile tree.
func (t *Transaction) Profile() *Profile { return t.profile }

// AddProfileSample merges one stack sample into the transaction's
// profile and increments the sample counter.
func (t *Transaction) AddProfileSample(frames []string) {
	t.profile.AddSample(frames)
	t.profileSampleCount.Inc()
}

// ThreadInfo returns the transaction's thread-info probe data, or nil
// if the probe was never started or is unavailable.
func (t *Transaction) ThreadInfo() *ThreadInfo { return t.threadInfo.Load() }

// SetThreadInfo records the transaction's thread-info probe data.
func (t *Transaction) SetThreadInfo(info *ThreadInfo) { t.threadInfo.Store(info) }

// GCInfo returns the transaction's GC-info probe data, or nil.
func (t *Transaction) GCInfo() *GCInfo { return t.gcInfo.Load() }

// SetGCInfo records the transaction's GC-info probe data.
func (t *Transaction) SetGCInfo(info *GCInfo) { t.gcInfo.Store(info) }

// SetTraceStoreThresholdOverrideMillis sets the per-transaction
// override, in milliseconds. Negative values are rejected by the
// facade before reaching here.
func (t *Transaction) SetTraceStoreThresholdOverrideMillis(v int64) {
	t.traceStoreThresholdOverrideMillis.Store(v)
}

// TraceStoreThresholdOverrideMillis returns the override, or (-1,
// false) if none was set.
func (t *Transaction) TraceStoreThresholdOverrideMillis() (int64, bool) {
	v := t.traceStoreThresholdOverrideMillis.Load()
	return v, v >= 0
}

// SetUserProfileTask records the cancel function for a scheduled
// user-profiling task, if one was started.
func (t *Transaction) SetUserProfileTask(cancel CancelFunc) { t.userProfileTask.Store(&cancel) }

// UserProfileTask returns the cancel function for the scheduled
// user-profiling task, or nil if none was scheduled.
func (t *Transaction) UserProfileTask() CancelFunc { return derefFuncOr(t.userProfileTask.Load()) }

// SetImmediateTraceStoreTask records the cancel function for a
// scheduled immediate trace-store task, if one was started.
func (t *Transaction) SetImmediateTraceStoreTask(cancel CancelFunc) {
	t.immediateTraceStoreTask.Store(&cancel)
}

// ImmediateTraceStoreTask returns the cancel function for the scheduled
// immediate trace-store task, or nil if none was scheduled.
func (t *Transaction) ImmediateTraceStoreTask() CancelFunc {
	return derefFuncOr(t.immediateTraceStoreTask.Load())
}

// IsCompleted reports whether the root entry has been popped.
func (t *Transaction) IsCompleted() bool { return t.completed.Load() }

func derefOr(p *string, fallback string) string {
	if p == nil {
		return fallback
	}
	return *p
}

func derefFuncOr(p *CancelFunc) CancelFunc {
	if p == nil {
		return nil
	}
	return *p
}

func mapLenOrZero[K comparable, V any](p *map[K]V) int {
	if p == nil {
		return 0
	}
	return len(*p)
}
