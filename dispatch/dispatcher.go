package dispatch

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"

	"github.com/justapithecus/rlfeed/log"
	"github.com/justapithecus/rlfeed/metrics"
	"github.com/justapithecus/rlfeed/types"
)

// DefaultMaxLineSize bounds a single input line.
const DefaultMaxLineSize = 16 * 1024 * 1024

// Client is the decision client the dispatcher drives. It must be
// initialized before ProcessStream is called.
type Client interface {
	Choose(ctx context.Context, contextJSON []byte, eventID string) (*types.RankingResponse, error)
	ReportOutcome(ctx context.Context, eventID string, value float64) error
}

// Stats counts what one ProcessStream call did.
type Stats struct {
	Lines           int64
	OutcomeRecords  int64
	DecisionRecords int64
	ChooseCalls     int64
	OutcomeCalls    int64
}

// Dispatcher classifies input lines and issues client calls, one line at
// a time, in input order.
type Dispatcher struct {
	client      Client
	logger      *log.Logger
	collector   *metrics.Collector
	maxLineSize int
	stats       Stats
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger. Each client call is logged at debug level.
func WithLogger(l *log.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

// WithCollector counts lines, records and calls into c.
func WithCollector(c *metrics.Collector) Option {
	return func(d *Dispatcher) { d.collector = c }
}

// WithMaxLineSize overrides DefaultMaxLineSize.
func WithMaxLineSize(n int) Option {
	return func(d *Dispatcher) { d.maxLineSize = n }
}

// New creates a dispatcher over an initialized client.
func New(client Client, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		client:      client,
		logger:      log.Nop(),
		maxLineSize: DefaultMaxLineSize,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.Named("dispatch")
	return d
}

// Stats returns the counters accumulated so far.
func (d *Dispatcher) Stats() Stats {
	return d.stats
}

// ProcessStream reads r to the end, dispatching each line before reading
// the next. Blank lines are skipped.
//
// Returns:
//   - nil: input exhausted
//   - *Error with Kind=ErrorMalformedRecord or ErrorMissingField: bad line
//   - *Error with Kind=ErrorClientCall: Choose or ReportOutcome failed
//   - *Error with Kind=ErrorRead: the reader failed or a line was too long
//   - *Error with Kind=ErrorCanceled: ctx was canceled
//
// Every error stops processing; no later line is read.
func (d *Dispatcher) ProcessStream(ctx context.Context, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, min(64*1024, d.maxLineSize)), d.maxLineSize)

	lineNo := 0
	for {
		if err := ctx.Err(); err != nil {
			return d.fail(&Error{Kind: ErrorCanceled, Line: lineNo, Err: err})
		}
		if !scanner.Scan() {
			break
		}
		lineNo++

		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		d.stats.Lines++
		d.collector.IncLinesRead()

		if err := d.dispatchLine(ctx, lineNo, line); err != nil {
			return d.fail(err)
		}
	}

	if err := scanner.Err(); err != nil {
		return d.fail(&Error{Kind: ErrorRead, Line: lineNo + 1, Err: err})
	}

	d.logger.Debug("stream exhausted", map[string]any{
		"lines":            d.stats.Lines,
		"outcome_records":  d.stats.OutcomeRecords,
		"decision_records": d.stats.DecisionRecords,
	})
	return nil
}

func (d *Dispatcher) fail(err error) error {
	d.collector.IncDispatchErrors()
	var de *Error
	if errors.As(err, &de) {
		d.logger.Error("dispatch failed", map[string]any{
			"kind":     de.Kind.String(),
			"line":     de.Line,
			"event_id": de.EventID,
			"error":    err.Error(),
		})
	}
	return err
}

func (d *Dispatcher) dispatchLine(ctx context.Context, lineNo int, line []byte) error {
	rec, err := ParseLine(line)
	if err != nil {
		var de *Error
		if errors.As(err, &de) {
			de.Line = lineNo
		}
		return err
	}

	switch r := rec.(type) {
	case *OutcomeRecord:
		d.stats.OutcomeRecords++
		d.collector.IncOutcomeRecords()
		return d.reportOutcome(ctx, lineNo, r.ID, r.Reward)

	case *DecisionRecord:
		d.stats.DecisionRecords++
		d.collector.IncDecisionRecords()
		if err := d.choose(ctx, lineNo, r); err != nil {
			return err
		}
		if r.HasImmediateOutcome() {
			return d.reportOutcome(ctx, lineNo, r.ID, r.ImmediateOutcome())
		}
		return nil
	}
	return nil
}

func (d *Dispatcher) choose(ctx context.Context, lineNo int, r *DecisionRecord) error {
	d.logger.Debug("choose", map[string]any{"line": lineNo, "event_id": r.ID})
	d.stats.ChooseCalls++
	d.collector.IncChooseCalls()

	if _, err := d.client.Choose(ctx, r.Context, r.ID); err != nil {
		d.collector.IncClientCallErrors()
		return &Error{Kind: ErrorClientCall, Line: lineNo, EventID: r.ID, Op: "choose", Err: err}
	}
	return nil
}

func (d *Dispatcher) reportOutcome(ctx context.Context, lineNo int, eventID string, value float64) error {
	d.logger.Debug("report_outcome", map[string]any{"line": lineNo, "event_id": eventID, "value": value})
	d.stats.OutcomeCalls++
	d.collector.IncOutcomeCalls()

	if err := d.client.ReportOutcome(ctx, eventID, value); err != nil {
		d.collector.IncClientCallErrors()
		return &Error{Kind: ErrorClientCall, Line: lineNo, EventID: eventID, Op: "report_outcome", Err: err}
	}
	return nil
}
