package model

// ThreadInfo is a best-effort, Go-native substitute for Glowroot's JVM
// ThreadInfoComponent: per-transaction CPU/blocked/waited time and
// allocated bytes, captured as a delta between transaction start and
// end. Any field may be nil if the corresponding probe was unavailable
// (spec's "probe faults: silently omit the corresponding snapshot
// fields").
type ThreadInfo struct {
	CPUTime         *int64 // nanoseconds
	BlockedTime     *int64 // nanoseconds
	WaitedTime      *int64 // nanoseconds
	AllocatedBytes  *int64
}

// GCInfo is a best-effort substitute for Glowroot's GcInfoComponent: the
// delta in GC count and pause time observed between transaction start
// and end, process-wide (Go exposes GC stats per-process, not per
// goroutine, so — like the allocation counter above — this is shared
// across all concurrently running transactions rather than being
// transaction-exclusive; see DESIGN.md).
type GCInfo struct {
	CollectionCount int64
	CollectionTime  int64 // nanoseconds
}
