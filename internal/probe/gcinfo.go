package probe

import (
	"runtime/debug"

	"github.com/varsh009/glowroot/internal/model"
)

// GCInfoSampler captures a model.GCInfo delta using runtime/debug's
// process-wide GC statistics, the closest Go analogue to the JVM's
// per-collector GC bean that the original GcInfoComponent polled.
type GCInfoSampler struct{}

// NewGCInfoSampler returns a ready-to-use sampler.
func NewGCInfoSampler() *GCInfoSampler { return &GCInfoSampler{} }

// GCInfoSnapshot is a point-in-time reading.
type GCInfoSnapshot struct {
	numGC      int64
	pauseTotal int64 // nanoseconds
}

// Sample takes a point-in-time reading.
func (s *GCInfoSampler) Sample() GCInfoSnapshot {
	var stats debug.GCStats
	debug.ReadGCStats(&stats)
	return GCInfoSnapshot{
		numGC:      stats.NumGC,
		pauseTotal: int64(stats.PauseTotal),
	}
}

// Delta returns the GCInfo representing every collection that ran
// between start and end.
func (s *GCInfoSampler) Delta(start, end GCInfoSnapshot) *model.GCInfo {
	return &model.GCInfo{
		CollectionCount: end.numGC - start.numGC,
		CollectionTime:  end.pauseTotal - start.pauseTotal,
	}
}
