// Package policy controls how the client's event log entries reach a Sink.
//
// Two delivery policies exist:
//   - StrictPolicy writes every entry through to the sink synchronously.
//   - StreamingPolicy buffers entries and flushes them from a background
//     goroutine, reporting failures through a callback instead of returning them.
//
// NoopPolicy discards entries and is used when a sender is disabled.
package policy

import (
	"context"
	"maps"
	"sync"

	"github.com/justapithecus/rlfeed/types"
)

// Policy accepts event log entries for persistence.
type Policy interface {
	// Ingest accepts one entry. Whether it is written immediately,
	// buffered, or dropped depends on the implementation.
	Ingest(ctx context.Context, entry types.Entry) error

	// Flush writes any buffered entries.
	Flush(ctx context.Context) error

	// Close flushes and releases the underlying sink.
	Close() error

	// Stats returns a consistent snapshot of policy counters.
	Stats() Stats
}

// Stats holds policy counters.
type Stats struct {
	// TotalEntries is the number of entries passed to Ingest.
	TotalEntries int64
	// EntriesPersisted is the number of entries the sink accepted.
	EntriesPersisted int64
	// EntriesDropped is the number of entries discarded.
	EntriesDropped int64
	// DroppedByKind breaks EntriesDropped down by entry kind.
	DroppedByKind map[types.EntryKind]int64
	// Buffered is the number of entries waiting for a flush.
	Buffered int64
	// FlushCount is the number of flush operations.
	FlushCount int64
	// Errors is the number of failed sink writes.
	Errors int64
}

// statsRecorder keeps Stats behind a mutex.
//
// StrictPolicy and NoopPolicy use the locking methods. StreamingPolicy uses
// the Locked variants while holding its own mu so buffer state and counters
// stay consistent.
type statsRecorder struct {
	mu    sync.Mutex
	stats Stats
}

func newStatsRecorder() *statsRecorder {
	return &statsRecorder{
		stats: Stats{DroppedByKind: make(map[types.EntryKind]int64)},
	}
}

func (r *statsRecorder) incTotal() {
	r.mu.Lock()
	r.stats.TotalEntries++
	r.mu.Unlock()
}

func (r *statsRecorder) incPersisted(n int64) {
	r.mu.Lock()
	r.stats.EntriesPersisted += n
	r.mu.Unlock()
}

func (r *statsRecorder) incDropped(kind types.EntryKind) {
	r.mu.Lock()
	r.incDroppedLocked(kind)
	r.mu.Unlock()
}

func (r *statsRecorder) incErrors() {
	r.mu.Lock()
	r.stats.Errors++
	r.mu.Unlock()
}

func (r *statsRecorder) incFlush() {
	r.mu.Lock()
	r.stats.FlushCount++
	r.mu.Unlock()
}

func (r *statsRecorder) snapshot() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked(r.stats.Buffered)
}

// --- Locked methods; caller holds the owning policy's mu ---

func (r *statsRecorder) incTotalLocked() {
	r.stats.TotalEntries++
}

func (r *statsRecorder) incPersistedLocked(n int64) {
	r.stats.EntriesPersisted += n
}

func (r *statsRecorder) incDroppedLocked(kind types.EntryKind) {
	r.stats.EntriesDropped++
	r.stats.DroppedByKind[kind]++
}

func (r *statsRecorder) incErrorsLocked() {
	r.stats.Errors++
}

func (r *statsRecorder) incFlushLocked() {
	r.stats.FlushCount++
}

func (r *statsRecorder) snapshotLocked(buffered int64) Stats {
	s := r.stats
	s.Buffered = buffered
	s.DroppedByKind = maps.Clone(r.stats.DroppedByKind)
	return s
}
