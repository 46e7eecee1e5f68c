// Package snapshot builds immutable TraceSnapshot records from a
// transaction — active, partial, or completed — normalized to a
// capture tick, the Go analogue of the original source's
// collector.TraceCreator and collector.Trace.
package snapshot

import (
	"github.com/varsh009/glowroot/internal/model"
)

// Existence records whether a large, separately-stored component of a
// trace (its entries, its profile) is present, absent, or has expired
// out of retention. EXPIRED is reserved in the data model per the
// original source's Trace.entriesExistence()/profileExistence() but is
// never produced by this builder — nothing here implements retention
// expiry.
type Existence uint8

const (
	No Existence = iota
	Yes
	Expired
)

// TraceSnapshot is an immutable capture of a transaction, normalized to
// a single capture tick so that duration and every per-timer total are
// mutually consistent even if the transaction is still running.
type TraceSnapshot struct {
	ID      string
	Active  bool
	Partial bool

	StartTimeMillis   int64
	CaptureTimeMillis int64
	DurationNanos     int64

	TransactionType string
	TransactionName string
	Headline        string
	Error           string
	User            string

	CustomAttributes map[string][]string
	CustomDetail     map[string]any

	Timers *model.Timer

	ThreadInfo *model.ThreadInfo
	GCInfo     *model.GCInfo

	EntryCount         int64
	ProfileSampleCount int64

	EntriesExistence Existence
	ProfileExistence Existence

	Entries *model.Entry
	Profile *model.ProfileNode
}

// BuildActive produces a snapshot of a still-running transaction,
// normalized to captureTick/captureTimeMillis without taking any lock
// that could block the owning goroutine — every field read here is
// either atomic or, per spec, tolerant of a torn read.
func BuildActive(tx *model.Transaction, captureTick, captureTimeMillis int64) *TraceSnapshot {
	return build(tx, true, false, captureTick, captureTimeMillis)
}

// BuildPartial produces an intermediate snapshot of a still-running,
// long-lived transaction, identical to an active snapshot except for
// the partial flag — used when a long-running transaction is stored
// before it completes.
func BuildPartial(tx *model.Transaction, captureTick, captureTimeMillis int64) *TraceSnapshot {
	return build(tx, true, true, captureTick, captureTimeMillis)
}

// BuildCompleted produces a snapshot of a completed transaction, using
// its own recorded capture tick and end tick rather than an
// externally-supplied one.
func BuildCompleted(tx *model.Transaction, captureTimeMillis int64) *TraceSnapshot {
	return build(tx, false, false, tx.CaptureTick(), captureTimeMillis)
}

func build(tx *model.Transaction, active, partial bool, captureTick, captureTimeMillis int64) *TraceSnapshot {
	s := &TraceSnapshot{
		ID:      tx.ID().String(),
		Active:  active,
		Partial: partial,

		StartTimeMillis:   tx.StartTimeMillis(),
		CaptureTimeMillis: captureTimeMillis,
		DurationNanos:     captureTick - tx.StartTick(),

		TransactionType: tx.TransactionType(),
		TransactionName: tx.TransactionName(),
		Headline:        tx.Headline(),
		Error:           tx.Error(),
		User:            tx.User(),

		CustomAttributes: tx.CustomAttributes(),
		CustomDetail:     tx.CustomDetail(),

		Timers: tx.Timers().Snapshot(tx.RootTimer(), captureTick),

		ThreadInfo: tx.ThreadInfo(),
		GCInfo:     tx.GCInfo(),

		EntryCount:         tx.EntryCount(),
		ProfileSampleCount: tx.ProfileSampleCount(),
	}

	s.EntriesExistence = Yes
	s.Entries = tx.Entries().Snapshot(tx.Entries().Root())

	if tx.ProfileSampleCount() > 0 {
		s.ProfileExistence = Yes
		s.Profile = tx.Profile().Snapshot()
	} else {
		s.ProfileExistence = No
	}

	return s
}
