// Package glowroot is the instrumentation-facing facade: the Go
// analogue of the original source's PluginServicesImpl. It validates
// arguments, consults configuration, and starts/stops entries and
// timers on the transaction reachable through a context.Context,
// enforcing the per-transaction entry cap — all without ever returning
// an error or panicking into instrumented code.
package glowroot

import (
	"context"
	"sync"
	"sync/atomic"

	uatomic "go.uber.org/atomic"

	"github.com/varsh009/glowroot/internal/clock"
	"github.com/varsh009/glowroot/internal/collector"
	"github.com/varsh009/glowroot/internal/config"
	"github.com/varsh009/glowroot/internal/log"
	"github.com/varsh009/glowroot/internal/model"
	"github.com/varsh009/glowroot/internal/probe"
	"github.com/varsh009/glowroot/internal/registry"
)

// UserProfileScheduler may install a cancellable, periodic stack-sample
// probe on a transaction the first time a user is assigned to it.
// internal/profiler.TickerScheduler implements this.
type UserProfileScheduler interface {
	MaybeScheduleUserProfiling(tx *model.Transaction, user string)
}

type probeStart struct {
	thread probe.ThreadInfoSnapshot
	gc     probe.GCInfoSnapshot
}

// clockSource is the combination of clock.Ticker and clock.Clock the
// tracer actually needs: a monotonic duration source for timers plus a
// wall-clock source for transaction start timestamps. clock.System and
// clock.Fake both satisfy it.
type clockSource interface {
	clock.Ticker
	clock.Clock
}

// Tracer is the facade every instrumentation call site goes through.
// Construct one per plugin (or with pluginID == "" for a host that
// isn't a plugin) with NewTracer.
type Tracer struct {
	cfg       config.Service
	pluginID  string // "" once downgraded to "no plugin bound" mode
	registry  *registry.Registry
	collector collector.TransactionCollector
	scheduler UserProfileScheduler
	clock     clockSource

	timerNames    *model.TimerNameCache
	threadSampler *probe.ThreadInfoSampler
	gcSampler     *probe.GCInfoSampler

	enabled                       uatomic.Bool
	captureThreadInfo             uatomic.Bool
	captureGcInfo                 uatomic.Bool
	maxTraceEntriesPerTransaction uatomic.Int64
	pluginConfig                  atomic.Pointer[config.PluginConfig]

	probeMu    sync.Mutex
	probeStart map[model.ID]probeStart
}

// NewTracer wires cfg/reg/coll/sched/clk together into a ready-to-use
// facade. If pluginID names a plugin the config service doesn't know
// about, the tracer logs a warning and downgrades to "no plugin bound"
// mode rather than failing construction, matching spec §7's
// configuration-fault handling.
func NewTracer(cfg config.Service, pluginID string, reg *registry.Registry,
	coll collector.TransactionCollector, sched UserProfileScheduler, clk clockSource) *Tracer {

	t := &Tracer{
		cfg:           cfg,
		registry:      reg,
		collector:     coll,
		scheduler:     sched,
		clock:         clk,
		timerNames:    model.NewTimerNameCache(),
		threadSampler: probe.NewThreadInfoSampler(),
		gcSampler:     probe.NewGCInfoSampler(),
		probeStart:    make(map[model.ID]probeStart),
	}

	if pluginID != "" {
		if _, ok := cfg.PluginConfig(pluginID); ok {
			t.pluginID = pluginID
			cfg.AddPluginConfigListener(pluginID, t)
		} else {
			log.Warnf("glowroot: unknown plugin id %q, continuing with no plugin bound", pluginID)
		}
	}
	cfg.AddConfigListener(t)
	t.OnChange()
	return t
}

// OnChange implements config.ConfigListener, refreshing every cached
// field read on the hot path. It runs synchronously on whatever
// goroutine triggered the configuration mutation.
func (t *Tracer) OnChange() {
	general := t.cfg.GeneralConfig()
	adv := t.cfg.AdvancedConfig()
	t.enabled.Store(general.Enabled())
	t.captureThreadInfo.Store(adv.CaptureThreadInfo())
	t.captureGcInfo.Store(adv.CaptureGcInfo())
	t.maxTraceEntriesPerTransaction.Store(int64(adv.MaxTraceEntriesPerTransaction()))

	if t.pluginID == "" {
		t.pluginConfig.Store(nil)
		return
	}
	if pc, ok := t.cfg.PluginConfig(t.pluginID); ok {
		t.pluginConfig.Store(&pc)
	} else {
		t.pluginConfig.Store(nil)
	}
}

func (t *Tracer) cachedPluginConfig() config.PluginConfig {
	p := t.pluginConfig.Load()
	if p == nil {
		return nil
	}
	return *p
}

// IsEnabled reports general.enabled ∧ (no plugin bound ∨ plugin.enabled).
func (t *Tracer) IsEnabled() bool {
	if !t.enabled.Load() {
		return false
	}
	if t.pluginID == "" {
		return true
	}
	pc := t.cachedPluginConfig()
	if pc == nil {
		return true
	}
	return pc.Enabled()
}

// GetStringProperty returns name's current value from the cached
// plugin config, or "" if no plugin is bound.
func (t *Tracer) GetStringProperty(name string) string {
	if pc := t.cachedPluginConfig(); pc != nil {
		return pc.GetStringProperty(name)
	}
	return ""
}

// GetBooleanProperty returns name's current value from the cached
// plugin config, or false if no plugin is bound.
func (t *Tracer) GetBooleanProperty(name string) bool {
	if pc := t.cachedPluginConfig(); pc != nil {
		return pc.GetBooleanProperty(name)
	}
	return false
}

// GetDoubleProperty returns (value, true) from the cached plugin
// config, or (0, false) if no plugin is bound or the property is unset.
func (t *Tracer) GetDoubleProperty(name string) (float64, bool) {
	if pc := t.cachedPluginConfig(); pc != nil {
		return pc.GetDoubleProperty(name)
	}
	return 0, false
}

// RegisterConfigListener is a no-op if no plugin is bound; otherwise it
// routes this plugin's config changes to listener.
func (t *Tracer) RegisterConfigListener(listener config.ConfigListener) {
	if t.pluginID == "" {
		return
	}
	t.cfg.AddPluginConfigListener(t.pluginID, listener)
}

// GetTimerName returns the interned TimerName for adviceKey, creating
// it on first use with name/flags.
func (t *Tracer) GetTimerName(adviceKey model.AdviceKey, name string, flags model.TimerFlag) *model.TimerName {
	return t.timerNames.GetName(adviceKey, name, flags)
}

// IsInTransaction reports whether ctx carries a current transaction.
func (t *Tracer) IsInTransaction(ctx context.Context) bool {
	_, ok := FromContext(ctx)
	return ok
}

// StartTransaction begins a new transaction, or — if ctx already
// carries one, since transactions do not nest — behaves exactly like
// StartTraceEntry. The returned context carries the (possibly newly
// created) transaction; the caller must thread it to every nested
// facade call and defer entry.End() (or one of its siblings).
func (t *Tracer) StartTransaction(ctx context.Context, transactionType, transactionName string,
	messageSupplier model.MessageSupplier, timerName *model.TimerName) (context.Context, TraceEntry) {

	if tx, ok := FromContext(ctx); ok {
		return ctx, t.startTraceEntryOn(tx, messageSupplier, timerName)
	}
	if !t.IsEnabled() || messageSupplier == nil || timerName == nil {
		return ctx, noopEntrySingleton
	}

	startTick := t.clock.Read()
	tx := model.New(t.clock.CurrentTimeMillis(), startTick, transactionType, transactionName, messageSupplier, timerName)
	t.registry.Add(tx)
	t.startProbes(tx)

	entry := &liveEntry{
		tracer:    t,
		tx:        tx,
		idx:       tx.Entries().Root(),
		timerIdx:  tx.RootTimer(),
		startTick: startTick,
		message:   messageSupplier,
	}
	return NewContext(ctx, tx), entry
}

// StartTraceEntry starts a new entry under ctx's current transaction.
// If ctx carries no transaction, or either argument is invalid, it
// returns the no-op sentinel without mutating anything.
func (t *Tracer) StartTraceEntry(ctx context.Context, messageSupplier model.MessageSupplier, timerName *model.TimerName) TraceEntry {
	tx, ok := FromContext(ctx)
	if !ok {
		return noopEntrySingleton
	}
	return t.startTraceEntryOn(tx, messageSupplier, timerName)
}

func (t *Tracer) startTraceEntryOn(tx *model.Transaction, messageSupplier model.MessageSupplier, timerName *model.TimerName) TraceEntry {
	if !t.IsEnabled() || messageSupplier == nil || timerName == nil {
		return noopEntrySingleton
	}

	startTick := t.clock.Read()
	parentTimerIdx, ok := tx.CurrentTimer()
	if !ok {
		log.Warnf("glowroot: no current timer for an in-flight transaction, falling back to no-op")
		return noopEntrySingleton
	}
	timerIdx := tx.Timers().StartNested(parentTimerIdx, timerName, startTick)
	tx.SetCurrentTimer(timerIdx)

	if tx.EntryCount() < t.maxTraceEntriesPerTransaction.Load() {
		idx := tx.PushEntry(startTick, messageSupplier, timerIdx)
		return &liveEntry{tracer: t, tx: tx, idx: idx, timerIdx: timerIdx, startTick: startTick, message: messageSupplier}
	}

	tx.IncrementEntryCount()
	tx.AddEntryLimitExceededMarkerIfNeeded()
	return &dummyEntry{tracer: t, tx: tx, timerIdx: timerIdx, startTick: startTick, message: messageSupplier}
}

// StartTimer starts a nested timer under ctx's current transaction's
// current timer, without creating any entry.
func (t *Tracer) StartTimer(ctx context.Context, timerName *model.TimerName) Timer {
	tx, ok := FromContext(ctx)
	if !ok || !t.IsEnabled() || timerName == nil {
		return noopTimerSingleton
	}
	parentTimerIdx, ok := tx.CurrentTimer()
	if !ok {
		log.Warnf("glowroot: no current timer for an in-flight transaction, falling back to no-op")
		return noopTimerSingleton
	}
	startTick := t.clock.Read()
	timerIdx := tx.Timers().StartNested(parentTimerIdx, timerName, startTick)
	tx.SetCurrentTimer(timerIdx)
	return &liveTimer{tracer: t, tx: tx, idx: timerIdx}
}

// AddTraceEntry appends a zero-duration entry carrying errMsg, as long
// as ctx carries a current transaction and entryCount is still under
// 2x the cap. If errMsg carries no exception, a stack trace is captured
// and stripped of facade frames.
func (t *Tracer) AddTraceEntry(ctx context.Context, errMsg *model.ErrorMessage) {
	tx, ok := FromContext(ctx)
	if !ok || errMsg == nil || !t.IsEnabled() {
		return
	}
	if !t.underDoubleCap(tx) {
		return
	}
	tick := t.clock.Read()
	idx := tx.AddEntry(tick, tick, model.MessageFunc(func() string { return errMsg.Message }), errMsg)
	if errMsg.Exception == nil {
		tx.Entries().SetStackTrace(idx, captureStackTrace(3))
	}
}

func (t *Tracer) underDoubleCap(tx *model.Transaction) bool {
	return tx.EntryCount() < 2*t.maxTraceEntriesPerTransaction.Load()
}

// SetTransactionType sets ctx's current transaction's type, if any.
func (t *Tracer) SetTransactionType(ctx context.Context, v string) {
	if tx, ok := FromContext(ctx); ok {
		tx.SetTransactionType(v)
	}
}

// SetTransactionName sets ctx's current transaction's name, if any.
func (t *Tracer) SetTransactionName(ctx context.Context, v string) {
	if tx, ok := FromContext(ctx); ok {
		tx.SetTransactionName(v)
	}
}

// SetTransactionError sets ctx's current transaction's error message,
// if any.
func (t *Tracer) SetTransactionError(ctx context.Context, v string) {
	if tx, ok := FromContext(ctx); ok {
		tx.SetError(v)
	}
}

// SetTransactionUser sets ctx's current transaction's user, if any, and
// triggers user-profile scheduling on the first non-empty assignment.
func (t *Tracer) SetTransactionUser(ctx context.Context, v string) {
	tx, ok := FromContext(ctx)
	if !ok {
		return
	}
	if first := tx.SetUser(v); first && t.scheduler != nil {
		t.scheduler.MaybeScheduleUserProfiling(tx, v)
	}
}

// SetTransactionCustomAttribute appends value to ctx's current
// transaction's multi-valued custom attribute named name, if any.
func (t *Tracer) SetTransactionCustomAttribute(ctx context.Context, name, value string) {
	if tx, ok := FromContext(ctx); ok {
		tx.PutCustomAttribute(name, value)
	}
}

// SetTransactionCustomDetail sets name to value in ctx's current
// transaction's nested custom-detail map, if any. Unlike
// SetTransactionCustomAttribute's multimap (meant for indexed search),
// this is the free-form detail blob attached to a trace for display.
func (t *Tracer) SetTransactionCustomDetail(ctx context.Context, name string, value any) {
	if tx, ok := FromContext(ctx); ok {
		tx.PutCustomDetail(name, value)
	}
}

// SetTraceStoreThreshold sets a per-transaction override, in
// milliseconds, rejecting negative values (log at error, no mutation).
func (t *Tracer) SetTraceStoreThreshold(ctx context.Context, millis int64) {
	if millis < 0 {
		log.Errorf("glowroot: SetTraceStoreThreshold called with negative duration %dms", millis)
		return
	}
	if tx, ok := FromContext(ctx); ok {
		tx.SetTraceStoreThresholdOverrideMillis(millis)
	}
}

func (t *Tracer) startProbes(tx *model.Transaction) {
	if !t.captureThreadInfo.Load() && !t.captureGcInfo.Load() {
		return
	}
	var ps probeStart
	if t.captureThreadInfo.Load() {
		ps.thread = t.threadSampler.Sample()
	}
	if t.captureGcInfo.Load() {
		ps.gc = t.gcSampler.Sample()
	}
	t.probeMu.Lock()
	t.probeStart[tx.ID()] = ps
	t.probeMu.Unlock()
}

func (t *Tracer) finishProbes(tx *model.Transaction) {
	t.probeMu.Lock()
	ps, ok := t.probeStart[tx.ID()]
	delete(t.probeStart, tx.ID())
	t.probeMu.Unlock()
	if !ok {
		return
	}
	if t.captureThreadInfo.Load() {
		tx.SetThreadInfo(t.threadSampler.Delta(ps.thread, t.threadSampler.Sample()))
	}
	if t.captureGcInfo.Load() {
		tx.SetGCInfo(t.gcSampler.Delta(ps.gc, t.gcSampler.Sample()))
	}
}

// popEntry closes idx on tx and, if that was the root entry, runs the
// completion cascade exactly once.
func (t *Tracer) popEntry(tx *model.Transaction, idx int, endTick int64, errMsg *model.ErrorMessage) {
	wasCompleted := tx.IsCompleted()
	tx.PopEntry(idx, endTick, errMsg)
	if !wasCompleted && tx.IsCompleted() {
		t.completeTransaction(tx)
	}
}

// completeTransaction runs the mandatory completion cascade: cancel
// background tasks, finalize probes, hand the transaction to the
// collector, and only then remove it from the registry — the ordering
// spec §4.1 calls mandatory, so a consumer enumerating the registry
// never misses a completed-but-uncollected transaction.
func (t *Tracer) completeTransaction(tx *model.Transaction) {
	if cancel := tx.ImmediateTraceStoreTask(); cancel != nil {
		cancel()
	}
	if cancel := tx.UserProfileTask(); cancel != nil {
		cancel()
	}
	t.finishProbes(tx)
	if t.collector != nil {
		t.collector.OnCompletedTransaction(tx)
	}
	t.registry.Remove(tx)
}
