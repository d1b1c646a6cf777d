// Package adapter publishes run completion notifications to downstream
// systems once an rlfeed run has finished.
package adapter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/justapithecus/rlfeed/log"
	"github.com/justapithecus/rlfeed/types"
)

// ContractVersion is stamped on every published event.
const ContractVersion = "1"

// EventTypeRunCompleted is the event_type of run completion events.
const EventTypeRunCompleted = "run_completed"

// DefaultRetries is the default number of retry attempts.
const DefaultRetries = 3

// DefaultBackoff is the delay before the first retry; it doubles after
// each attempt.
const DefaultBackoff = 500 * time.Millisecond

// Adapter publishes run completion events to a downstream system.
type Adapter interface {
	// Publish sends a run completion event. Must respect ctx.
	Publish(ctx context.Context, event *types.RunCompletedEvent) error

	// Close releases adapter resources.
	Close() error
}

// Stamp fills the contract fields of ev.
func Stamp(ev *types.RunCompletedEvent) {
	ev.ContractVersion = ContractVersion
	ev.EventType = EventTypeRunCompleted
	if !ev.StartedAt.IsZero() && !ev.CompletedAt.IsZero() {
		ev.DurationMs = ev.CompletedAt.Sub(ev.StartedAt).Milliseconds()
	}
}

// permanentError stops Retry without further attempts.
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked by Permanent.
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}

// Retry calls fn up to 1+retries times with exponential backoff between
// attempts. It stops early on success, on a Permanent error, or when ctx
// is done. name prefixes returned errors.
func Retry(ctx context.Context, name string, retries int, backoff time.Duration, fn func(ctx context.Context) error) error {
	var lastErr error
	attempts := 1 + retries

	for i := range attempts {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s: context canceled: %w", name, err)
		}

		if i > 0 {
			delay := time.Duration(1<<uint(i-1)) * backoff
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return fmt.Errorf("%s: context canceled during backoff: %w", name, ctx.Err())
			case <-timer.C:
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if IsPermanent(lastErr) {
			return fmt.Errorf("%s: non-retriable error: %w", name, lastErr)
		}
	}

	return fmt.Errorf("%s: failed after %d attempts: %w", name, attempts, lastErr)
}

// Notify publishes ev through a and logs the outcome. Publish failures are
// logged and returned; they never affect the run itself.
func Notify(ctx context.Context, a Adapter, ev *types.RunCompletedEvent, logger *log.Logger) error {
	if logger == nil {
		logger = log.Nop()
	}
	Stamp(ev)

	fields := map[string]any{
		"run_id": ev.RunID,
		"status": string(ev.Status),
	}
	if err := a.Publish(ctx, ev); err != nil {
		fields["error"] = err.Error()
		logger.Warn("run completion publish failed", fields)
		return err
	}
	logger.Info("run completion published", fields)
	return nil
}
