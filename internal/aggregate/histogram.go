package aggregate

import (
	"bytes"
	"encoding/binary"
	"sync"

	"github.com/elastic/go-hdrhistogram"
)

const (
	minDurationMicros   = 0
	maxDurationMicros   = 1_000_000_000_000 // 10^12 μs, per the detail-floor requirement
	significantFigures  = 2                 // ~1% relative precision at all magnitudes
)

// LazyHistogram is a latency histogram over microsecond-valued samples
// with O(1) update and bounded memory, satisfying the detail-floor
// requirement: values up to 10^12 μs, ~1% relative precision, and a
// compact binary encoding. The underlying hdrhistogram.Histogram isn't
// allocated until the first sample, mirroring the teacher pack's own
// lazy-allocate-on-first-record pattern (elastic-apm-server's
// txmetrics aggregator only calls hdrhistogram.New once per bucket, on
// first use, and Reset()s it on bucket reuse rather than reallocating).
type LazyHistogram struct {
	mu sync.Mutex
	h  *hdrhistogram.Histogram
}

// NewLazyHistogram returns an empty histogram.
func NewLazyHistogram() *LazyHistogram { return &LazyHistogram{} }

// Add records one sample, in microseconds.
func (l *LazyHistogram) Add(valueMicros int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ensure()
	l.h.RecordValueAtomic(valueMicros)
}

func (l *LazyHistogram) ensure() {
	if l.h == nil {
		l.h = hdrhistogram.New(minDurationMicros, maxDurationMicros, significantFigures)
	}
}

// Reset clears all recorded samples without releasing the underlying
// histogram's memory, so a bucket can be reused for the next interval.
func (l *LazyHistogram) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.h != nil {
		l.h.Reset()
	}
}

// Merge folds other's samples into l. Merging an empty histogram into l
// (or l being empty) leaves the non-empty side's distribution
// unchanged, satisfying the "merge with empty bucket is identity"
// round-trip property.
func (l *LazyHistogram) Merge(other *LazyHistogram) {
	other.mu.Lock()
	oh := other.h
	other.mu.Unlock()
	if oh == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ensure()
	l.h.Merge(oh)
}

// TotalCount returns the number of samples recorded.
func (l *LazyHistogram) TotalCount() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.h == nil {
		return 0
	}
	return l.h.TotalCount()
}

// Distribution returns the non-empty buckets as parallel counts/values
// slices, values being each bucket's upper bound in microseconds — the
// same shape elastic-apm-server's txmetrics aggregator extracts for its
// own histogram field in storage.
func (l *LazyHistogram) Distribution() (counts []int64, values []float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.h == nil {
		return nil, nil
	}
	for _, b := range l.h.Distribution() {
		if b.Count <= 0 {
			continue
		}
		counts = append(counts, b.Count)
		values = append(values, float64(b.To))
	}
	return counts, values
}

// Encode serializes the histogram's non-empty buckets to a compact
// binary buffer: a count, then (count, value) pairs.
func (l *LazyHistogram) Encode() []byte {
	counts, values := l.Distribution()
	var buf bytes.Buffer
	binary.Write(&buf, binary.BigEndian, int64(len(counts)))
	for i := range counts {
		binary.Write(&buf, binary.BigEndian, counts[i])
		binary.Write(&buf, binary.BigEndian, values[i])
	}
	return buf.Bytes()
}
