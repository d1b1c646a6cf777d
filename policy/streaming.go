package policy

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/justapithecus/rlfeed/log"
	"github.com/justapithecus/rlfeed/types"
)

// QueueMode selects what Ingest does when the buffer is at MaxBuffered.
type QueueMode string

const (
	// QueueModeDrop discards the incoming entry and reports it via OnDrop.
	QueueModeDrop QueueMode = "DROP"
	// QueueModeBlock flushes inline before accepting the entry.
	QueueModeBlock QueueMode = "BLOCK"
)

// ParseQueueMode parses a queue mode name. Empty means QueueModeDrop.
func ParseQueueMode(s string) (QueueMode, error) {
	switch QueueMode(s) {
	case "", QueueModeDrop:
		return QueueModeDrop, nil
	case QueueModeBlock:
		return QueueModeBlock, nil
	default:
		return "", fmt.Errorf("invalid queue mode %q (must be DROP or BLOCK)", s)
	}
}

// StreamingConfig configures a StreamingPolicy.
type StreamingConfig struct {
	// FlushCount wakes the background flusher once N entries accumulate.
	// Zero disables the count trigger.
	FlushCount int

	// FlushInterval flushes on a ticker. Zero disables the ticker.
	FlushInterval time.Duration

	// MaxBuffered bounds the buffer. Zero means unbounded.
	MaxBuffered int

	// QueueMode applies once MaxBuffered is reached.
	QueueMode QueueMode

	// OnFlushError receives background flush failures. Called from the
	// flusher goroutine.
	OnFlushError func(err error)

	// OnDrop receives entries discarded in QueueModeDrop. Called from the
	// flusher goroutine, never from Ingest.
	OnDrop func(entry types.Entry)

	// Logger is optional.
	Logger *log.Logger
}

// FlushTrigger identifies which trigger caused a flush.
type FlushTrigger string

const (
	// FlushTriggerCount indicates a count-threshold flush.
	FlushTriggerCount FlushTrigger = "count"
	// FlushTriggerInterval indicates a ticker flush.
	FlushTriggerInterval FlushTrigger = "interval"
	// FlushTriggerFull indicates an inline flush in QueueModeBlock.
	FlushTriggerFull FlushTrigger = "full"
	// FlushTriggerTermination indicates an explicit Flush or Close.
	FlushTriggerTermination FlushTrigger = "termination"
)

var (
	// ErrStreamingInvalidConfig is returned when StreamingConfig is invalid.
	ErrStreamingInvalidConfig = errors.New("invalid streaming config: at least one of FlushCount or FlushInterval must be set")
	// ErrBufferFull is returned in QueueModeBlock when the inline flush fails.
	ErrBufferFull = errors.New("buffer full")
	// ErrPolicyClosed is returned by Ingest after Close.
	ErrPolicyClosed = errors.New("policy closed")
)

// StreamingPolicy buffers entries and flushes them in the background.
//
// Background flush failures never reach Ingest callers; they are passed to
// OnFlushError and the batch is kept for the next trigger.
//
// Locking:
//   - mu guards the buffer and stats
//   - flushMu serializes flushes from the background loop, Flush and
//     QueueModeBlock ingestion
//   - triggerFlush swaps the buffer under mu, writes outside it, and
//     restores the batch in front of newer entries on failure
type StreamingPolicy struct {
	sink   Sink
	config StreamingConfig
	logger *log.Logger

	mu      sync.Mutex
	buffer  []types.Entry
	dropped []types.Entry // awaiting OnDrop
	stats   *statsRecorder
	stopped bool

	flushMu sync.Mutex

	flushByCount       int64
	flushByInterval    int64
	flushByFull        int64
	flushByTermination int64

	kickCh chan struct{}
	dropCh chan struct{}
	stopCh chan struct{}
	done   chan struct{}
}

// NewStreamingPolicy creates a streaming policy and starts its flusher.
func NewStreamingPolicy(sink Sink, config StreamingConfig) (*StreamingPolicy, error) {
	if config.FlushCount <= 0 && config.FlushInterval <= 0 {
		return nil, ErrStreamingInvalidConfig
	}
	if config.QueueMode == "" {
		config.QueueMode = QueueModeDrop
	}

	p := &StreamingPolicy{
		sink:   sink,
		config: config,
		logger: config.Logger,
		buffer: make([]types.Entry, 0, 128),
		stats:  newStatsRecorder(),
		kickCh: make(chan struct{}, 1),
		dropCh: make(chan struct{}, 1),
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}

	go p.flushLoop()

	return p, nil
}

// Ingest appends the entry to the buffer.
func (p *StreamingPolicy) Ingest(ctx context.Context, entry types.Entry) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return ErrPolicyClosed
	}
	p.stats.incTotalLocked()

	if p.config.MaxBuffered > 0 && len(p.buffer) >= p.config.MaxBuffered {
		if p.config.QueueMode == QueueModeDrop {
			p.stats.incDroppedLocked(entry.Kind)
			if p.config.OnDrop != nil {
				p.dropped = append(p.dropped, entry)
			}
			p.mu.Unlock()
			p.logDrop(entry)
			select {
			case p.dropCh <- struct{}{}:
			default:
			}
			return nil
		}

		p.mu.Unlock()
		if err := p.triggerFlush(ctx, FlushTriggerFull); err != nil {
			return fmt.Errorf("%w: %w", ErrBufferFull, err)
		}
		p.mu.Lock()
	}

	p.buffer = append(p.buffer, entry)
	shouldKick := p.config.FlushCount > 0 && len(p.buffer) >= p.config.FlushCount
	p.mu.Unlock()

	if shouldKick {
		select {
		case p.kickCh <- struct{}{}:
		default:
		}
	}

	return nil
}

// Flush writes all buffered entries and returns the sink error, if any.
func (p *StreamingPolicy) Flush(ctx context.Context) error {
	return p.triggerFlush(ctx, FlushTriggerTermination)
}

func (p *StreamingPolicy) triggerFlush(ctx context.Context, trigger FlushTrigger) error {
	p.flushMu.Lock()
	defer p.flushMu.Unlock()

	p.mu.Lock()
	switch trigger {
	case FlushTriggerCount:
		p.flushByCount++
	case FlushTriggerInterval:
		p.flushByInterval++
	case FlushTriggerFull:
		p.flushByFull++
	case FlushTriggerTermination:
		p.flushByTermination++
	}
	p.stats.incFlushLocked()

	batch := p.buffer
	if len(batch) == 0 {
		p.mu.Unlock()
		return nil
	}
	p.buffer = make([]types.Entry, 0, 128)
	p.mu.Unlock()

	if err := p.sink.WriteEntries(ctx, batch); err != nil {
		p.mu.Lock()
		p.stats.incErrorsLocked()
		p.buffer = append(batch, p.buffer...)
		p.mu.Unlock()
		p.logFlushFailure(trigger, len(batch), err)
		return err
	}

	p.mu.Lock()
	p.stats.incPersistedLocked(int64(len(batch)))
	p.mu.Unlock()

	p.logFlush(trigger, len(batch))
	return nil
}

// Close stops the flusher, performs a final flush and closes the sink.
// The final flush error and the sink close error are joined.
func (p *StreamingPolicy) Close() error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil
	}
	p.stopped = true
	close(p.stopCh)
	p.mu.Unlock()

	<-p.done

	flushErr := p.Flush(context.Background())
	return errors.Join(flushErr, p.sink.Close())
}

// Stats returns a snapshot taken under the buffer lock.
func (p *StreamingPolicy) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.stats.snapshotLocked(int64(len(p.buffer)))
}

// FlushTriggerStats returns per-trigger flush counts.
func (p *StreamingPolicy) FlushTriggerStats() map[FlushTrigger]int64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	return map[FlushTrigger]int64{
		FlushTriggerCount:       p.flushByCount,
		FlushTriggerInterval:    p.flushByInterval,
		FlushTriggerFull:        p.flushByFull,
		FlushTriggerTermination: p.flushByTermination,
	}
}

// flushLoop is the background sender.
func (p *StreamingPolicy) flushLoop() {
	defer close(p.done)

	var tick <-chan time.Time
	if p.config.FlushInterval > 0 {
		ticker := time.NewTicker(p.config.FlushInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-p.kickCh:
			p.backgroundFlush(FlushTriggerCount)
		case <-tick:
			p.mu.Lock()
			hasData := len(p.buffer) > 0
			p.mu.Unlock()
			if hasData {
				p.backgroundFlush(FlushTriggerInterval)
			}
		case <-p.dropCh:
			p.reportDrops()
		case <-p.stopCh:
			p.reportDrops()
			return
		}
	}
}

// reportDrops hands pending dropped entries to OnDrop.
func (p *StreamingPolicy) reportDrops() {
	p.mu.Lock()
	pending := p.dropped
	p.dropped = nil
	p.mu.Unlock()

	for _, e := range pending {
		p.config.OnDrop(e)
	}
}

func (p *StreamingPolicy) backgroundFlush(trigger FlushTrigger) {
	err := p.triggerFlush(context.Background(), trigger)
	if err != nil && p.config.OnFlushError != nil {
		p.config.OnFlushError(err)
	}
}

// --- Logging helpers ---

func (p *StreamingPolicy) logFlush(trigger FlushTrigger, entries int) {
	if p.logger == nil {
		return
	}
	p.logger.Debug("streaming flush", map[string]any{
		"trigger": string(trigger),
		"entries": entries,
		"policy":  "streaming",
	})
}

func (p *StreamingPolicy) logFlushFailure(trigger FlushTrigger, entries int, err error) {
	if p.logger == nil {
		return
	}
	p.logger.Error("streaming flush failed", map[string]any{
		"trigger": string(trigger),
		"entries": entries,
		"error":   err.Error(),
		"policy":  "streaming",
	})
}

func (p *StreamingPolicy) logDrop(entry types.Entry) {
	if p.logger == nil {
		return
	}
	p.logger.Warn("streaming buffer full, entry dropped", map[string]any{
		"kind":     string(entry.Kind),
		"event_id": entry.EventID(),
		"policy":   "streaming",
	})
}

var _ Policy = (*StreamingPolicy)(nil)
