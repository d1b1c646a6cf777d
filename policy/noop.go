package policy

import (
	"context"

	"github.com/justapithecus/rlfeed/types"
)

// NoopPolicy accepts entries and discards them. Every entry counts as dropped.
type NoopPolicy struct {
	stats *statsRecorder
}

// NewNoopPolicy creates a new no-op policy.
func NewNoopPolicy() *NoopPolicy {
	return &NoopPolicy{stats: newStatsRecorder()}
}

// Ingest discards the entry.
func (p *NoopPolicy) Ingest(_ context.Context, entry types.Entry) error {
	p.stats.incTotal()
	p.stats.incDropped(entry.Kind)
	return nil
}

// Flush is a no-op.
func (p *NoopPolicy) Flush(_ context.Context) error {
	p.stats.incFlush()
	return nil
}

// Close is a no-op.
func (p *NoopPolicy) Close() error { return nil }

// Stats returns the policy statistics.
func (p *NoopPolicy) Stats() Stats {
	return p.stats.snapshot()
}

var _ Policy = (*NoopPolicy)(nil)
