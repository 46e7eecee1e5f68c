// Package probe captures the best-effort thread/GC telemetry that the
// transaction-level ThreadInfo and GCInfo fields hold. The JVM exposes
// these per-thread; Go's runtime only exposes them per-process, so a
// probe here reports a process-wide delta rather than one exclusive to
// the transaction being measured — see DESIGN.md for the tradeoff.
package probe

import (
	"runtime"

	"github.com/varsh009/glowroot/internal/model"
)

// ThreadInfoSampler captures a model.ThreadInfo delta between two points
// in a transaction's lifetime. Go exposes no per-goroutine CPU/blocked/
// waited clocks, so CPUTime/BlockedTime/WaitedTime are always nil;
// AllocatedBytes is populated from runtime.MemStats.TotalAlloc, which is
// process-wide but still a useful "did this request allocate a lot"
// signal in the same spirit as the JVM probe.
type ThreadInfoSampler struct{}

// NewThreadInfoSampler returns a ready-to-use sampler.
func NewThreadInfoSampler() *ThreadInfoSampler { return &ThreadInfoSampler{} }

// ThreadInfoSnapshot is a point-in-time reading; Delta turns two of
// these into a model.ThreadInfo.
type ThreadInfoSnapshot struct {
	totalAlloc uint64
}

// Sample takes a point-in-time reading.
func (s *ThreadInfoSampler) Sample() ThreadInfoSnapshot {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return ThreadInfoSnapshot{totalAlloc: ms.TotalAlloc}
}

// Delta returns the ThreadInfo representing everything that happened
// between start and end.
func (s *ThreadInfoSampler) Delta(start, end ThreadInfoSnapshot) *model.ThreadInfo {
	allocated := int64(end.totalAlloc - start.totalAlloc)
	return &model.ThreadInfo{AllocatedBytes: &allocated}
}
