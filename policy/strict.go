package policy

import (
	"context"

	"github.com/justapithecus/rlfeed/types"
)

// StrictPolicy writes every entry through to the sink.
//
//   - No buffering: the caller blocks on sink latency.
//   - No drops.
//   - Sink errors are returned to the caller.
type StrictPolicy struct {
	sink  Sink
	stats *statsRecorder
}

// NewStrictPolicy creates a strict policy writing to sink.
func NewStrictPolicy(sink Sink) *StrictPolicy {
	return &StrictPolicy{sink: sink, stats: newStatsRecorder()}
}

// Ingest writes the entry immediately as a batch of one.
func (p *StrictPolicy) Ingest(ctx context.Context, entry types.Entry) error {
	p.stats.incTotal()

	if err := p.sink.WriteEntries(ctx, []types.Entry{entry}); err != nil {
		p.stats.incErrors()
		return err
	}

	p.stats.incPersisted(1)
	return nil
}

// Flush is a no-op; nothing is buffered.
func (p *StrictPolicy) Flush(_ context.Context) error {
	p.stats.incFlush()
	return nil
}

// Close closes the underlying sink.
func (p *StrictPolicy) Close() error {
	return p.sink.Close()
}

// Stats returns policy statistics.
func (p *StrictPolicy) Stats() Stats {
	return p.stats.snapshot()
}

var _ Policy = (*StrictPolicy)(nil)
