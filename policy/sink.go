package policy

import (
	"context"
	"sync"

	"github.com/justapithecus/rlfeed/types"
)

// Sink persists batches of event log entries.
// Implementations write to a binlog file, a lode dataset, or a stub.
type Sink interface {
	// WriteEntries persists a batch, preserving order within the batch.
	WriteEntries(ctx context.Context, entries []types.Entry) error

	// Close releases any resources held by the sink.
	Close() error
}

// EntryChecker is implemented by sinks that cannot accept every entry.
// CheckEntry reports whether a single entry could be written.
type EntryChecker interface {
	CheckEntry(e *types.Entry) error
}

// StubSink is a test sink that records writes in memory.
type StubSink struct {
	mu sync.Mutex

	// EntriesWritten is the total count of entries written.
	EntriesWritten int64
	// Batches is the number of WriteEntries calls that succeeded.
	Batches int64
	// Closed indicates whether Close was called.
	Closed bool
	// Written stores all written entries in write order.
	Written []types.Entry

	// ErrorOnWrite, if non-nil, is returned by WriteEntries.
	ErrorOnWrite error
}

// NewStubSink creates a new stub sink.
func NewStubSink() *StubSink {
	return &StubSink{Written: make([]types.Entry, 0)}
}

// WriteEntries records the batch.
func (s *StubSink) WriteEntries(_ context.Context, entries []types.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ErrorOnWrite != nil {
		return s.ErrorOnWrite
	}

	s.Batches++
	s.EntriesWritten += int64(len(entries))
	s.Written = append(s.Written, entries...)
	return nil
}

// SetError changes the error returned by subsequent writes.
func (s *StubSink) SetError(err error) {
	s.mu.Lock()
	s.ErrorOnWrite = err
	s.mu.Unlock()
}

// Close marks the sink as closed.
func (s *StubSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Closed = true
	return nil
}

// Entries returns a copy of everything written so far.
func (s *StubSink) Entries() []types.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]types.Entry, len(s.Written))
	copy(out, s.Written)
	return out
}

// Stats returns a snapshot of sink statistics.
func (s *StubSink) Stats() StubSinkStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return StubSinkStats{
		EntriesWritten: s.EntriesWritten,
		Batches:        s.Batches,
		Closed:         s.Closed,
	}
}

// StubSinkStats is a snapshot of StubSink statistics.
type StubSinkStats struct {
	EntriesWritten int64
	Batches        int64
	Closed         bool
}

var _ Sink = (*StubSink)(nil)
