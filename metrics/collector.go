// Package metrics provides per-run metrics collection.
//
// The Collector accumulates counters during a single adapter run. It is a
// leaf package with no internal dependencies. Sender policy counters are
// absorbed from policy.Stats when the client closes rather than recorded
// live, which avoids double-counting.
package metrics

import (
	"maps"
	"sync"
)

// Snapshot is an immutable point-in-time view of all run metrics.
type Snapshot struct {
	// Dispatch
	LinesRead       int64
	OutcomeRecords  int64
	DecisionRecords int64
	DispatchErrors  int64

	// Client calls
	ChooseCalls      int64
	OutcomeCalls     int64
	ClientCallErrors int64
	BackgroundErrors int64

	// Senders (absorbed from policy.Stats at close)
	EntriesReceived  int64
	EntriesPersisted int64
	EntriesDropped   int64
	DroppedByKind    map[string]int64

	// Sink writes
	SinkWriteSuccess int64
	SinkWriteFailure int64

	// Dimensions
	AppID         string
	RunID         string
	SenderBackend string
	QueueMode     string
}

// Collector accumulates metrics during a single run.
// All increment methods are nil-receiver safe.
type Collector struct {
	mu sync.Mutex

	linesRead       int64
	outcomeRecords  int64
	decisionRecords int64
	dispatchErrors  int64

	chooseCalls      int64
	outcomeCalls     int64
	clientCallErrors int64
	backgroundErrors int64

	entriesReceived  int64
	entriesPersisted int64
	entriesDropped   int64
	droppedByKind    map[string]int64

	sinkWriteSuccess int64
	sinkWriteFailure int64

	appID         string
	runID         string
	senderBackend string
	queueMode     string
}

// NewCollector creates a Collector with dimension labels.
func NewCollector(appID, runID, senderBackend, queueMode string) *Collector {
	return &Collector{
		droppedByKind: make(map[string]int64),
		appID:         appID,
		runID:         runID,
		senderBackend: senderBackend,
		queueMode:     queueMode,
	}
}

func (c *Collector) add(field *int64, n int64) {
	c.mu.Lock()
	*field += n
	c.mu.Unlock()
}

// --- Dispatch ---

// IncLinesRead records one input line.
func (c *Collector) IncLinesRead() {
	if c == nil {
		return
	}
	c.add(&c.linesRead, 1)
}

// IncOutcomeRecords records one classified outcome record.
func (c *Collector) IncOutcomeRecords() {
	if c == nil {
		return
	}
	c.add(&c.outcomeRecords, 1)
}

// IncDecisionRecords records one classified decision record.
func (c *Collector) IncDecisionRecords() {
	if c == nil {
		return
	}
	c.add(&c.decisionRecords, 1)
}

// IncDispatchErrors records a fatal dispatch error.
func (c *Collector) IncDispatchErrors() {
	if c == nil {
		return
	}
	c.add(&c.dispatchErrors, 1)
}

// --- Client ---

// IncChooseCalls records a choose call.
func (c *Collector) IncChooseCalls() {
	if c == nil {
		return
	}
	c.add(&c.chooseCalls, 1)
}

// IncOutcomeCalls records a reportOutcome call.
func (c *Collector) IncOutcomeCalls() {
	if c == nil {
		return
	}
	c.add(&c.outcomeCalls, 1)
}

// IncClientCallErrors records a failed synchronous client call.
func (c *Collector) IncClientCallErrors() {
	if c == nil {
		return
	}
	c.add(&c.clientCallErrors, 1)
}

// IncBackgroundErrors records an error delivered to the error sink.
func (c *Collector) IncBackgroundErrors() {
	if c == nil {
		return
	}
	c.add(&c.backgroundErrors, 1)
}

// --- Sinks ---

// IncSinkWriteSuccess records a successful sink batch write.
func (c *Collector) IncSinkWriteSuccess() {
	if c == nil {
		return
	}
	c.add(&c.sinkWriteSuccess, 1)
}

// IncSinkWriteFailure records a failed sink batch write.
func (c *Collector) IncSinkWriteFailure() {
	if c == nil {
		return
	}
	c.add(&c.sinkWriteFailure, 1)
}

// AbsorbSenderStats adds one sender's policy counters. It is called once
// per sender when the client closes.
func (c *Collector) AbsorbSenderStats(received, persisted, dropped int64, droppedByKind map[string]int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entriesReceived += received
	c.entriesPersisted += persisted
	c.entriesDropped += dropped
	for k, v := range droppedByKind {
		c.droppedByKind[k] += v
	}
}

// Snapshot returns a consistent copy of all counters.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{DroppedByKind: map[string]int64{}}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	return Snapshot{
		LinesRead:        c.linesRead,
		OutcomeRecords:   c.outcomeRecords,
		DecisionRecords:  c.decisionRecords,
		DispatchErrors:   c.dispatchErrors,
		ChooseCalls:      c.chooseCalls,
		OutcomeCalls:     c.outcomeCalls,
		ClientCallErrors: c.clientCallErrors,
		BackgroundErrors: c.backgroundErrors,
		EntriesReceived:  c.entriesReceived,
		EntriesPersisted: c.entriesPersisted,
		EntriesDropped:   c.entriesDropped,
		DroppedByKind:    maps.Clone(c.droppedByKind),
		SinkWriteSuccess: c.sinkWriteSuccess,
		SinkWriteFailure: c.sinkWriteFailure,
		AppID:            c.appID,
		RunID:            c.runID,
		SenderBackend:    c.senderBackend,
		QueueMode:        c.queueMode,
	}
}
