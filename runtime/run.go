// Package runtime wires one rlfeed run: error sink, client, dispatcher
// over the input stream, and shutdown.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/justapithecus/rlfeed/client"
	"github.com/justapithecus/rlfeed/dispatch"
	"github.com/justapithecus/rlfeed/errsink"
	"github.com/justapithecus/rlfeed/log"
	"github.com/justapithecus/rlfeed/metrics"
	"github.com/justapithecus/rlfeed/policy"
	"github.com/justapithecus/rlfeed/types"
)

// DefaultCloseTimeout bounds the final flush of the senders.
const DefaultCloseTimeout = 30 * time.Second

// RunConfig configures a single run.
type RunConfig struct {
	// Client is the parsed client configuration (required).
	Client *client.Config
	// Input is the NDJSON event stream (required).
	Input io.Reader
	// RunID tags stored records. Defaults to a random UUID.
	RunID string
	// Diagnostics receives one human-readable line per background error.
	// If nil, background errors are only logged and counted.
	Diagnostics io.Writer
	// ErrorSink receives background errors in addition to the built-in
	// sinks. Optional.
	ErrorSink errsink.ErrorSink
	// Logger defaults to log.Nop.
	Logger *log.Logger
	// Collector records run metrics. If nil, one is created.
	Collector *metrics.Collector
	// MaxLineSize overrides dispatch.DefaultMaxLineSize when > 0.
	MaxLineSize int
	// CloseTimeout overrides DefaultCloseTimeout when > 0.
	CloseTimeout time.Duration
	// ClientOptions are passed to client.New (for testing).
	ClientOptions []client.Option
}

// RunResult represents the result of a run.
type RunResult struct {
	RunID string
	AppID string
	// ExitCode is one of the Exit* constants.
	ExitCode int
	// Err is the fatal initialization or stream error, if any.
	Err error
	// CloseErr is the sender shutdown error, if any.
	CloseErr error

	Dispatch     dispatch.Stats
	Interactions policy.Stats
	Observations policy.Stats
	Metrics      metrics.Snapshot

	StartedAt   time.Time
	CompletedAt time.Time
}

// Duration is the wall time of the run.
func (r *RunResult) Duration() time.Duration {
	return r.CompletedAt.Sub(r.StartedAt)
}

// Event builds the completion notification for the run.
func (r *RunResult) Event() *types.RunCompletedEvent {
	ev := &types.RunCompletedEvent{
		RunID:            r.RunID,
		AppID:            r.AppID,
		Status:           statusFor(r.ExitCode),
		Lines:            r.Dispatch.Lines,
		DecisionRecords:  r.Dispatch.DecisionRecords,
		OutcomeRecords:   r.Dispatch.OutcomeRecords,
		BackgroundErrors: r.Metrics.BackgroundErrors,
		DroppedEntries:   r.Metrics.EntriesDropped,
		StartedAt:        r.StartedAt,
		CompletedAt:      r.CompletedAt,
		DurationMs:       r.Duration().Milliseconds(),
	}
	if err := errors.Join(r.Err, r.CloseErr); err != nil {
		ev.Error = err.Error()
	}
	return ev
}

// RunOrchestrator orchestrates a single run.
type RunOrchestrator struct {
	config *RunConfig
	logger *log.Logger
}

// NewRunOrchestrator validates config and fills defaults.
func NewRunOrchestrator(config *RunConfig) (*RunOrchestrator, error) {
	if config == nil || config.Client == nil {
		return nil, errors.New("run config requires a client configuration")
	}
	if config.Input == nil {
		return nil, errors.New("run config requires an input stream")
	}
	if config.RunID == "" {
		config.RunID = uuid.NewString()
	}
	if config.Collector == nil {
		config.Collector = metrics.NewCollector(
			config.Client.AppID,
			config.RunID,
			config.Client.Interaction.Backend(),
			string(config.Client.QueueMode),
		)
	}
	if config.CloseTimeout <= 0 {
		config.CloseTimeout = DefaultCloseTimeout
	}

	logger := config.Logger
	if logger == nil {
		logger = log.Nop()
	}

	return &RunOrchestrator{
		config: config,
		logger: logger.Named("runtime"),
	}, nil
}

// Execute runs the stream end to end:
//  1. Build the error sink and the client
//  2. Init the client
//  3. Dispatch every input line
//  4. Close the client, flushing its senders, on every path
//
// Failures are reported in the result, never as a returned error.
func (r *RunOrchestrator) Execute(ctx context.Context) *RunResult {
	cfg := r.config
	result := &RunResult{
		RunID:     cfg.RunID,
		AppID:     cfg.Client.AppID,
		StartedAt: time.Now(),
	}

	r.logger.Info("starting run", map[string]any{
		"interaction_sender": cfg.Client.Interaction.Implementation,
		"observation_sender": cfg.Client.Observation.Implementation,
	})

	sink := errsink.New(errsink.Options{
		Logger:      r.logger,
		Diagnostics: cfg.Diagnostics,
		Collector:   cfg.Collector,
	})
	if cfg.ErrorSink != nil {
		sink = errsink.Multi(sink, errsink.Safe(cfg.ErrorSink))
	}

	opts := append([]client.Option{
		client.WithLogger(r.logger),
		client.WithCollector(cfg.Collector),
		client.WithRunID(cfg.RunID),
	}, cfg.ClientOptions...)

	model, err := client.New(ctx, cfg.Client, sink, opts...)
	if err != nil {
		return r.finish(result, err, nil)
	}

	runErr := r.dispatch(ctx, model, result)

	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.CloseTimeout)
	closeErr := model.Close(closeCtx)
	cancel()
	if closeErr != nil {
		closeErr = fmt.Errorf("close client: %w", closeErr)
	}

	result.Interactions, result.Observations = model.SenderStats()
	return r.finish(result, runErr, closeErr)
}

func (r *RunOrchestrator) dispatch(ctx context.Context, model *client.LiveModel, result *RunResult) error {
	if err := model.Init(ctx); err != nil {
		return &client.InitializationError{Err: err}
	}

	var dopts []dispatch.Option
	dopts = append(dopts, dispatch.WithLogger(r.logger), dispatch.WithCollector(r.config.Collector))
	if r.config.MaxLineSize > 0 {
		dopts = append(dopts, dispatch.WithMaxLineSize(r.config.MaxLineSize))
	}

	d := dispatch.New(model, dopts...)
	err := d.ProcessStream(ctx, r.config.Input)
	result.Dispatch = d.Stats()
	return err
}

func (r *RunOrchestrator) finish(result *RunResult, runErr, closeErr error) *RunResult {
	result.Err = runErr
	result.CloseErr = closeErr
	result.ExitCode = DetermineExitCode(runErr, closeErr)
	result.CompletedAt = time.Now()
	result.Metrics = r.config.Collector.Snapshot()

	fields := map[string]any{
		"exit_code":   result.ExitCode,
		"lines":       result.Dispatch.Lines,
		"duration_ms": result.Duration().Milliseconds(),
	}
	if runErr != nil {
		fields["error"] = runErr.Error()
	}
	if closeErr != nil {
		fields["close_error"] = closeErr.Error()
	}
	if result.ExitCode == ExitSuccess {
		r.logger.Info("run completed", fields)
	} else {
		r.logger.Error("run failed", fields)
	}
	return result
}
