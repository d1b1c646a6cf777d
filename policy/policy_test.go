package policy_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/justapithecus/rlfeed/policy"
	"github.com/justapithecus/rlfeed/types"
)

func interactionEntry(id string) types.Entry {
	return types.NewInteractionEntry("app", &types.Interaction{
		EventID:       id,
		ActionIDs:     []uint64{1},
		Probabilities: []float32{1},
	})
}

func observationEntry(id string) types.Entry {
	return types.NewObservationEntry("app", &types.Observation{EventID: id, Value: 1})
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

// --- StrictPolicy ---

func TestStrictPolicy_WritesThrough(t *testing.T) {
	sink := policy.NewStubSink()
	pol := policy.NewStrictPolicy(sink)

	for _, e := range []types.Entry{interactionEntry("e1"), observationEntry("e1")} {
		if err := pol.Ingest(t.Context(), e); err != nil {
			t.Fatalf("Ingest failed: %v", err)
		}
	}

	stats := sink.Stats()
	if stats.EntriesWritten != 2 || stats.Batches != 2 {
		t.Errorf("sink stats = %+v, want 2 entries in 2 batches", stats)
	}

	ps := pol.Stats()
	if ps.TotalEntries != 2 || ps.EntriesPersisted != 2 {
		t.Errorf("policy stats = %+v", ps)
	}
}

func TestStrictPolicy_SinkErrorReturned(t *testing.T) {
	sinkErr := errors.New("disk full")
	sink := policy.NewStubSink()
	sink.ErrorOnWrite = sinkErr
	pol := policy.NewStrictPolicy(sink)

	err := pol.Ingest(t.Context(), observationEntry("e1"))
	if !errors.Is(err, sinkErr) {
		t.Fatalf("Ingest error = %v, want %v", err, sinkErr)
	}
	if got := pol.Stats().Errors; got != 1 {
		t.Errorf("Errors = %d, want 1", got)
	}
}

func TestStrictPolicy_CloseClosesSink(t *testing.T) {
	sink := policy.NewStubSink()
	pol := policy.NewStrictPolicy(sink)

	if err := pol.Flush(t.Context()); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if err := pol.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !sink.Stats().Closed {
		t.Error("sink should be closed")
	}
	if pol.Stats().FlushCount != 1 {
		t.Errorf("FlushCount = %d, want 1", pol.Stats().FlushCount)
	}
}

// --- NoopPolicy ---

func TestNoopPolicy_CountsDrops(t *testing.T) {
	pol := policy.NewNoopPolicy()
	_ = pol.Ingest(t.Context(), interactionEntry("e1"))
	_ = pol.Ingest(t.Context(), observationEntry("e1"))
	_ = pol.Ingest(t.Context(), observationEntry("e2"))

	s := pol.Stats()
	if s.TotalEntries != 3 || s.EntriesDropped != 3 {
		t.Errorf("stats = %+v", s)
	}
	if s.DroppedByKind[types.EntryKindObservation] != 2 {
		t.Errorf("DroppedByKind[observation] = %d, want 2", s.DroppedByKind[types.EntryKindObservation])
	}
}

func TestStats_SnapshotIsCopy(t *testing.T) {
	pol := policy.NewNoopPolicy()
	_ = pol.Ingest(t.Context(), observationEntry("e1"))

	s := pol.Stats()
	s.DroppedByKind[types.EntryKindObservation] = 99

	if pol.Stats().DroppedByKind[types.EntryKindObservation] != 1 {
		t.Error("mutating a snapshot must not affect the policy")
	}
}

// --- StreamingPolicy ---

func mustNewStreamingPolicy(t *testing.T, sink policy.Sink, config policy.StreamingConfig) *policy.StreamingPolicy {
	t.Helper()
	pol, err := policy.NewStreamingPolicy(sink, config)
	if err != nil {
		t.Fatalf("NewStreamingPolicy failed: %v", err)
	}
	t.Cleanup(func() { _ = pol.Close() })
	return pol
}

func TestStreamingPolicy_InvalidConfig(t *testing.T) {
	_, err := policy.NewStreamingPolicy(policy.NewStubSink(), policy.StreamingConfig{})
	if !errors.Is(err, policy.ErrStreamingInvalidConfig) {
		t.Errorf("expected ErrStreamingInvalidConfig, got %v", err)
	}
}

func TestParseQueueMode(t *testing.T) {
	tests := []struct {
		in      string
		want    policy.QueueMode
		wantErr bool
	}{
		{"", policy.QueueModeDrop, false},
		{"DROP", policy.QueueModeDrop, false},
		{"BLOCK", policy.QueueModeBlock, false},
		{"block", "", true},
	}
	for _, tt := range tests {
		got, err := policy.ParseQueueMode(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseQueueMode(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseQueueMode(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestStreamingPolicy_BuffersUntilFlush(t *testing.T) {
	sink := policy.NewStubSink()
	pol := mustNewStreamingPolicy(t, sink, policy.StreamingConfig{FlushInterval: time.Hour})

	for _, id := range []string{"e1", "e2", "e3"} {
		if err := pol.Ingest(t.Context(), observationEntry(id)); err != nil {
			t.Fatalf("Ingest failed: %v", err)
		}
	}

	if sink.Stats().EntriesWritten != 0 {
		t.Fatal("entries should stay buffered before a trigger fires")
	}
	if got := pol.Stats().Buffered; got != 3 {
		t.Errorf("Buffered = %d, want 3", got)
	}

	if err := pol.Flush(t.Context()); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	written := sink.Entries()
	if len(written) != 3 {
		t.Fatalf("written = %d, want 3", len(written))
	}
	for i, id := range []string{"e1", "e2", "e3"} {
		if written[i].EventID() != id {
			t.Errorf("written[%d] = %q, want %q", i, written[i].EventID(), id)
		}
	}
	if pol.FlushTriggerStats()[policy.FlushTriggerTermination] != 1 {
		t.Error("expected one termination flush")
	}
}

func TestStreamingPolicy_CountTriggerFlushesInBackground(t *testing.T) {
	sink := policy.NewStubSink()
	pol := mustNewStreamingPolicy(t, sink, policy.StreamingConfig{FlushCount: 2})

	_ = pol.Ingest(t.Context(), observationEntry("e1"))
	_ = pol.Ingest(t.Context(), observationEntry("e2"))

	waitFor(t, func() bool { return sink.Stats().EntriesWritten == 2 })

	if pol.FlushTriggerStats()[policy.FlushTriggerCount] < 1 {
		t.Error("expected a count-triggered flush")
	}
}

func TestStreamingPolicy_IntervalTrigger(t *testing.T) {
	sink := policy.NewStubSink()
	pol := mustNewStreamingPolicy(t, sink, policy.StreamingConfig{FlushInterval: 10 * time.Millisecond})

	_ = pol.Ingest(t.Context(), interactionEntry("e1"))

	waitFor(t, func() bool { return sink.Stats().EntriesWritten == 1 })
}

func TestStreamingPolicy_BackgroundErrorReportedAndRetained(t *testing.T) {
	sinkErr := errors.New("bucket unavailable")
	sink := policy.NewStubSink()
	sink.SetError(sinkErr)

	var (
		mu   sync.Mutex
		errs []error
	)
	pol := mustNewStreamingPolicy(t, sink, policy.StreamingConfig{
		FlushInterval: 10 * time.Millisecond,
		OnFlushError: func(err error) {
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
		},
	})

	if err := pol.Ingest(t.Context(), observationEntry("e1")); err != nil {
		t.Fatalf("Ingest must not surface background failures: %v", err)
	}

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(errs) > 0
	})
	mu.Lock()
	if !errors.Is(errs[0], sinkErr) {
		t.Errorf("OnFlushError got %v, want %v", errs[0], sinkErr)
	}
	mu.Unlock()

	// The failed batch is retried once the sink recovers.
	sink.SetError(nil)
	waitFor(t, func() bool { return sink.Stats().EntriesWritten == 1 })
}

func TestStreamingPolicy_DropModeWhenFull(t *testing.T) {
	sink := policy.NewStubSink()
	var dropped []string
	pol := mustNewStreamingPolicy(t, sink, policy.StreamingConfig{
		FlushInterval: time.Hour,
		MaxBuffered:   2,
		QueueMode:     policy.QueueModeDrop,
		OnDrop:        func(e types.Entry) { dropped = append(dropped, e.EventID()) },
	})

	for _, id := range []string{"e1", "e2", "e3", "e4"} {
		if err := pol.Ingest(t.Context(), observationEntry(id)); err != nil {
			t.Fatalf("Ingest failed: %v", err)
		}
	}

	s := pol.Stats()
	if s.Buffered != 2 || s.EntriesDropped != 2 {
		t.Errorf("stats = %+v, want 2 buffered and 2 dropped", s)
	}

	// Close waits for the flusher, which delivers pending drop reports.
	if err := pol.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if len(dropped) != 2 || dropped[0] != "e3" || dropped[1] != "e4" {
		t.Errorf("dropped = %v, want [e3 e4]", dropped)
	}
}

func TestStreamingPolicy_DropReportedOffIngestPath(t *testing.T) {
	release := make(chan struct{})
	reported := make(chan string, 1)
	pol := mustNewStreamingPolicy(t, policy.NewStubSink(), policy.StreamingConfig{
		FlushInterval: time.Hour,
		MaxBuffered:   1,
		QueueMode:     policy.QueueModeDrop,
		OnDrop: func(e types.Entry) {
			<-release
			reported <- e.EventID()
		},
	})

	// A blocking OnDrop must not stall Ingest.
	done := make(chan error, 1)
	go func() {
		if err := pol.Ingest(t.Context(), observationEntry("e1")); err != nil {
			done <- err
			return
		}
		done <- pol.Ingest(t.Context(), observationEntry("e2"))
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Ingest failed: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Ingest blocked on OnDrop")
	}

	close(release)
	select {
	case id := <-reported:
		if id != "e2" {
			t.Errorf("reported %q, want e2", id)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("drop was never reported")
	}
}

func TestStreamingPolicy_BlockModeFlushesInline(t *testing.T) {
	sink := policy.NewStubSink()
	pol := mustNewStreamingPolicy(t, sink, policy.StreamingConfig{
		FlushInterval: time.Hour,
		MaxBuffered:   2,
		QueueMode:     policy.QueueModeBlock,
	})

	for _, id := range []string{"e1", "e2", "e3"} {
		if err := pol.Ingest(t.Context(), observationEntry(id)); err != nil {
			t.Fatalf("Ingest failed: %v", err)
		}
	}

	if got := sink.Stats().EntriesWritten; got != 2 {
		t.Errorf("EntriesWritten = %d, want 2 after inline flush", got)
	}
	if got := pol.Stats().Buffered; got != 1 {
		t.Errorf("Buffered = %d, want 1", got)
	}
	if pol.Stats().EntriesDropped != 0 {
		t.Error("block mode must never drop")
	}
}

func TestStreamingPolicy_BlockModeFlushFailure(t *testing.T) {
	sinkErr := errors.New("write failed")
	sink := policy.NewStubSink()
	sink.SetError(sinkErr)
	pol := mustNewStreamingPolicy(t, sink, policy.StreamingConfig{
		FlushInterval: time.Hour,
		MaxBuffered:   1,
		QueueMode:     policy.QueueModeBlock,
	})

	_ = pol.Ingest(t.Context(), observationEntry("e1"))
	err := pol.Ingest(t.Context(), observationEntry("e2"))
	if !errors.Is(err, policy.ErrBufferFull) || !errors.Is(err, sinkErr) {
		t.Errorf("Ingest error = %v, want ErrBufferFull wrapping sink error", err)
	}
}

func TestStreamingPolicy_CloseFlushesAndRejects(t *testing.T) {
	sink := policy.NewStubSink()
	pol, err := policy.NewStreamingPolicy(sink, policy.StreamingConfig{FlushInterval: time.Hour})
	if err != nil {
		t.Fatalf("NewStreamingPolicy failed: %v", err)
	}

	_ = pol.Ingest(t.Context(), observationEntry("e1"))
	if err := pol.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	stats := sink.Stats()
	if stats.EntriesWritten != 1 || !stats.Closed {
		t.Errorf("sink stats = %+v, want 1 entry and closed", stats)
	}

	if err := pol.Ingest(t.Context(), observationEntry("e2")); !errors.Is(err, policy.ErrPolicyClosed) {
		t.Errorf("Ingest after Close error = %v, want ErrPolicyClosed", err)
	}
	if err := pol.Close(); err != nil {
		t.Errorf("second Close should be a no-op, got %v", err)
	}
}

func TestStreamingPolicy_CloseReturnsFinalFlushError(t *testing.T) {
	sinkErr := errors.New("final write failed")
	sink := policy.NewStubSink()
	sink.SetError(sinkErr)
	pol, err := policy.NewStreamingPolicy(sink, policy.StreamingConfig{FlushInterval: time.Hour})
	if err != nil {
		t.Fatalf("NewStreamingPolicy failed: %v", err)
	}

	_ = pol.Ingest(t.Context(), observationEntry("e1"))
	if err := pol.Close(); !errors.Is(err, sinkErr) {
		t.Errorf("Close error = %v, want %v", err, sinkErr)
	}
}

func TestStreamingPolicy_ConcurrentIngest(t *testing.T) {
	sink := policy.NewStubSink()
	pol := mustNewStreamingPolicy(t, sink, policy.StreamingConfig{FlushCount: 7, FlushInterval: 5 * time.Millisecond})

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				_ = pol.Ingest(t.Context(), observationEntry("e"))
			}
		}()
	}
	wg.Wait()

	if err := pol.Flush(t.Context()); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if got := sink.Stats().EntriesWritten; got != 200 {
		t.Errorf("EntriesWritten = %d, want 200", got)
	}
}
