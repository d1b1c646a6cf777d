// Package client is a local contextual-decision client. It ranks actions
// for a decision context, logs every decision (interaction) and outcome
// (observation) through a pair of senders, and reports failures of its
// background flushing through an errsink.ErrorSink.
package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/justapithecus/lode/lode"

	"github.com/justapithecus/rlfeed/errsink"
	"github.com/justapithecus/rlfeed/log"
	"github.com/justapithecus/rlfeed/metrics"
	"github.com/justapithecus/rlfeed/policy"
	"github.com/justapithecus/rlfeed/types"
)

// LiveModel is the client. It is safe for concurrent use.
type LiveModel struct {
	cfg       *Config
	sink      errsink.ErrorSink
	logger    *log.Logger
	collector *metrics.Collector
	runID     string
	now       func() time.Time

	sinkFactory  SinkFactory
	storeFactory lode.StoreFactory

	interactions policy.Policy
	observations policy.Policy
	checks       map[types.EntryKind]policy.EntryChecker

	mu          sync.RWMutex // guards initialized and closed
	initialized bool
	closed      bool
}

// Option configures a LiveModel.
type Option func(*LiveModel)

// WithLogger sets the logger. Defaults to log.Nop.
func WithLogger(l *log.Logger) Option {
	return func(m *LiveModel) { m.logger = l }
}

// WithCollector records sink writes into c.
func WithCollector(c *metrics.Collector) Option {
	return func(m *LiveModel) { m.collector = c }
}

// WithRunID tags lode records with id. Defaults to a random UUID.
func WithRunID(id string) Option {
	return func(m *LiveModel) { m.runID = id }
}

// WithClock overrides the clock used by ClockTimeProvider.
func WithClock(now func() time.Time) Option {
	return func(m *LiveModel) { m.now = now }
}

// WithSinkFactory replaces how sender sinks are opened.
func WithSinkFactory(f SinkFactory) Option {
	return func(m *LiveModel) { m.sinkFactory = f }
}

// New builds a client and its senders. The sink receives background
// errors for the lifetime of the client. Failures are returned as
// *InitializationError.
func New(ctx context.Context, cfg *Config, sink errsink.ErrorSink, opts ...Option) (*LiveModel, error) {
	if cfg == nil {
		return nil, &InitializationError{Err: newError(CodeConfig, "nil configuration", nil)}
	}
	if err := cfg.Validate(); err != nil {
		return nil, &InitializationError{Err: err}
	}
	if sink == nil {
		sink = errsink.Nop
	}

	m := &LiveModel{
		cfg:    cfg,
		sink:   sink,
		logger: log.Nop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.runID == "" {
		m.runID = uuid.NewString()
	}
	if cfg.TimeProvider == NullTimeProvider {
		m.now = func() time.Time { return time.Time{} }
	}
	if m.sinkFactory == nil {
		m.sinkFactory = m.defaultSinkFactory
	}
	m.logger = m.logger.Named("client")

	var err error
	if m.interactions, err = m.newSender(ctx, types.EntryKindInteraction, cfg.Interaction); err != nil {
		return nil, &InitializationError{Err: err}
	}
	if m.observations, err = m.newSender(ctx, types.EntryKindObservation, cfg.Observation); err != nil {
		_ = m.interactions.Close()
		return nil, &InitializationError{Err: err}
	}

	return m, nil
}

// Init readies the client. It must be called before Choose or
// ReportOutcome. Calling it again has no effect.
func (m *LiveModel) Init(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if m.initialized {
		return nil
	}
	m.initialized = true

	m.logger.Info("client initialized", map[string]any{
		"epsilon":            m.cfg.Epsilon,
		"interaction_sender": m.cfg.Interaction.Implementation,
		"observation_sender": m.cfg.Observation.Implementation,
		"queue_mode":         string(m.cfg.QueueMode),
	})
	return nil
}

func (m *LiveModel) ready() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return ErrClosed
	}
	if !m.initialized {
		return ErrNotInitialized
	}
	return nil
}

// Choose ranks the actions listed in the context's _multi array and logs
// the decision.
func (m *LiveModel) Choose(ctx context.Context, contextJSON []byte, eventID string) (*types.RankingResponse, error) {
	if err := m.ready(); err != nil {
		return nil, err
	}
	if eventID == "" {
		return nil, newError(CodeInvalidArgument, "event id is required", nil)
	}

	n, err := countActions(contextJSON)
	if err != nil {
		return nil, err
	}

	resp := &types.RankingResponse{
		EventID: eventID,
		ModelID: NoModelID,
		Ranking: rankEpsilonGreedy(eventID, n, m.cfg.Epsilon),
	}

	in := resp.Interaction(contextJSON)
	in.Timestamp = m.now()
	entry := types.NewInteractionEntry(m.cfg.AppID, in)
	if err := m.checkEntry(&entry); err != nil {
		return nil, err
	}
	if err := m.interactions.Ingest(ctx, entry); err != nil {
		return nil, newError(CodeSendFailure, "log interaction", err)
	}
	return resp, nil
}

// ReportOutcome logs an outcome for a previously chosen event.
func (m *LiveModel) ReportOutcome(ctx context.Context, eventID string, value float64) error {
	if err := m.ready(); err != nil {
		return err
	}
	if eventID == "" {
		return newError(CodeInvalidArgument, "event id is required", nil)
	}

	ob := &types.Observation{
		EventID:   eventID,
		Timestamp: m.now(),
		Value:     float32(value),
	}
	entry := types.NewObservationEntry(m.cfg.AppID, ob)
	if err := m.checkEntry(&entry); err != nil {
		return err
	}
	if err := m.observations.Ingest(ctx, entry); err != nil {
		return newError(CodeSendFailure, "log observation", err)
	}
	return nil
}

// checkEntry rejects entries the sender's sink could never write, so
// they fail the call instead of poisoning a batch.
func (m *LiveModel) checkEntry(e *types.Entry) error {
	c, ok := m.checks[e.Kind]
	if !ok {
		return nil
	}
	if err := c.CheckEntry(e); err != nil {
		return newError(CodeInvalidArgument, fmt.Sprintf("%s event %s rejected", e.Kind, e.EventID()), err)
	}
	return nil
}

// Close flushes and closes both senders and folds their counters into
// the collector. Calling it again returns nil.
func (m *LiveModel) Close(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	var errs []error
	for _, pol := range []policy.Policy{m.interactions, m.observations} {
		// Close retries a failed flush, so only its error is returned.
		if err := pol.Flush(ctx); err != nil {
			m.logger.Warn("sender flush failed before close", map[string]any{"error": err.Error()})
		}
		errs = append(errs, pol.Close())
		st := pol.Stats()
		m.collector.AbsorbSenderStats(st.TotalEntries, st.EntriesPersisted, st.EntriesDropped, droppedByKind(st))
	}

	err := errors.Join(errs...)
	m.logger.Info("client closed", map[string]any{"error": errString(err)})
	return err
}

// SenderStats returns the interaction and observation policy counters.
func (m *LiveModel) SenderStats() (interactions, observations policy.Stats) {
	return m.interactions.Stats(), m.observations.Stats()
}

// RunID returns the id lode records are tagged with.
func (m *LiveModel) RunID() string {
	return m.runID
}

func droppedByKind(st policy.Stats) map[string]int64 {
	out := make(map[string]int64, len(st.DroppedByKind))
	for k, v := range st.DroppedByKind {
		out[string(k)] = v
	}
	return out
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
