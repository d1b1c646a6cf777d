package lode

import (
	"context"

	"github.com/justapithecus/rlfeed/metrics"
	"github.com/justapithecus/rlfeed/policy"
	"github.com/justapithecus/rlfeed/types"
)

// InstrumentedSink wraps a policy.Sink and records write outcomes.
// Each WriteEntries call increments sink_write_success or
// sink_write_failure on the collector.
type InstrumentedSink struct {
	inner     policy.Sink
	collector *metrics.Collector
}

// NewInstrumentedSink wraps a sink with metrics instrumentation.
func NewInstrumentedSink(inner policy.Sink, collector *metrics.Collector) *InstrumentedSink {
	return &InstrumentedSink{inner: inner, collector: collector}
}

// WriteEntries delegates to the inner sink and records success or failure.
func (s *InstrumentedSink) WriteEntries(ctx context.Context, entries []types.Entry) error {
	err := s.inner.WriteEntries(ctx, entries)
	if err != nil {
		s.collector.IncSinkWriteFailure()
	} else {
		s.collector.IncSinkWriteSuccess()
	}
	return err
}

// Close delegates to the inner sink.
func (s *InstrumentedSink) Close() error {
	return s.inner.Close()
}

// Verify InstrumentedSink implements policy.Sink.
var _ policy.Sink = (*InstrumentedSink)(nil)
