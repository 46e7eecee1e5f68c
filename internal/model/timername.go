package model

import "sync"

// AdviceKey identifies one instrumentation site. A plugin declares a
// package-level sentinel (for example, a *byte or a named empty struct
// pointer) per advice and reuses it on every on-enter call; the tracer
// interns the associated TimerName the first time it sees that key.
//
// This is the Go translation of "equality by the identity of the
// instrumentation advice class" — Go has no class identity, but a
// comparable sentinel value declared once per call site plays the same
// role.
type AdviceKey interface{}

// TimerFlag holds bit flags describing how a timer should behave.
type TimerFlag uint8

const (
	// FlagTraceEntry marks a timer whose matching advice also creates a
	// trace entry (as opposed to a timer-only measurement).
	FlagTraceEntry TimerFlag = 1 << iota
	// FlagExtended marks a timer that nests deeply enough to warrant
	// extended (more expensive) bookkeeping in the aggregate.
	FlagExtended
)

// TimerName is an interned, immutable handle naming one measurement
// site. Two calls to TimerNameCache.GetName with the same AdviceKey
// return the identical *TimerName.
type TimerName struct {
	name  string
	flags TimerFlag
}

// Name returns the display name used when merging timers by name.
func (t *TimerName) Name() string { return t.name }

// Flags returns the flag bits associated with this timer name.
func (t *TimerName) Flags() TimerFlag { return t.flags }

// TimerNameCache interns TimerName values by advice identity so that
// repeated on-enter calls from the same instrumentation site reuse one
// TimerName instance instead of allocating a fresh one every time.
type TimerNameCache struct {
	mu    sync.RWMutex
	names map[AdviceKey]*TimerName
}

// NewTimerNameCache returns an empty cache.
func NewTimerNameCache() *TimerNameCache {
	return &TimerNameCache{names: make(map[AdviceKey]*TimerName)}
}

// GetName returns the interned TimerName for key, creating and caching
// one labeled name with flags on first use.
func (c *TimerNameCache) GetName(key AdviceKey, name string, flags TimerFlag) *TimerName {
	c.mu.RLock()
	if tn, ok := c.names[key]; ok {
		c.mu.RUnlock()
		return tn
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if tn, ok := c.names[key]; ok {
		return tn
	}
	tn := &TimerName{name: name, flags: flags}
	c.names[key] = tn
	return tn
}
