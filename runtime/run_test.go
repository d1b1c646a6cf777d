package runtime

import (
	"bytes"
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"

	"github.com/justapithecus/rlfeed/client"
	"github.com/justapithecus/rlfeed/errsink"
	"github.com/justapithecus/rlfeed/policy"
	"github.com/justapithecus/rlfeed/types"
)

const stream = `{"EventId":"e1","c":{"GUser":{"id":"rnc"},"_multi":[{"TAction":{"topic":"HerbGarden"}},{"TAction":{"topic":"BeyBlades"}}]}}
{"EventId":"e1","RewardValue":1}
{"EventId":"e2","_label_cost":-1,"c":{"GUser":{"id":"mk"},"_multi":[{"TAction":{"topic":"SodaSaver"}}]}}
`

type sinks struct {
	interactions *policy.StubSink
	observations *policy.StubSink
}

func (s *sinks) factory(_ context.Context, kind types.EntryKind, _ client.SenderConfig) (policy.Sink, error) {
	if kind == types.EntryKindInteraction {
		return s.interactions, nil
	}
	return s.observations, nil
}

func newSinks() *sinks {
	return &sinks{interactions: policy.NewStubSink(), observations: policy.NewStubSink()}
}

func clientConfig(t *testing.T, batchMs int) *client.Config {
	t.Helper()
	cfg, err := client.CreateConfig(`{
		"ApplicationID": "app-1",
		"InitialExplorationEpsilon": 0,
		"interaction.send.batchintervalms": ` + strconv.Itoa(batchMs) + `,
		"observation.send.batchintervalms": ` + strconv.Itoa(batchMs) + `
	}`)
	if err != nil {
		t.Fatalf("CreateConfig failed: %v", err)
	}
	return cfg
}

func execute(t *testing.T, cfg *RunConfig) *RunResult {
	t.Helper()
	orch, err := NewRunOrchestrator(cfg)
	if err != nil {
		t.Fatalf("NewRunOrchestrator failed: %v", err)
	}
	return orch.Execute(t.Context())
}

func TestExecute_Success(t *testing.T) {
	s := newSinks()
	var diag bytes.Buffer

	res := execute(t, &RunConfig{
		Client:        clientConfig(t, 0),
		Input:         strings.NewReader(stream),
		RunID:         "run-1",
		Diagnostics:   &diag,
		ClientOptions: []client.Option{client.WithSinkFactory(s.factory)},
	})

	if res.Err != nil || res.CloseErr != nil {
		t.Fatalf("Execute errors = %v, %v", res.Err, res.CloseErr)
	}
	if res.ExitCode != ExitSuccess {
		t.Errorf("ExitCode = %d, want %d", res.ExitCode, ExitSuccess)
	}
	if res.RunID != "run-1" || res.AppID != "app-1" {
		t.Errorf("RunID, AppID = %q, %q", res.RunID, res.AppID)
	}
	if d := res.Dispatch; d.Lines != 3 || d.DecisionRecords != 2 || d.OutcomeRecords != 1 {
		t.Errorf("dispatch stats = %+v, want 3 lines, 2 decisions, 1 outcome", d)
	}

	if n := len(s.interactions.Entries()); n != 2 {
		t.Errorf("interactions persisted = %d, want 2", n)
	}
	// The second decision carries an inline outcome.
	if n := len(s.observations.Entries()); n != 2 {
		t.Errorf("observations persisted = %d, want 2", n)
	}
	if !s.interactions.Stats().Closed || !s.observations.Stats().Closed {
		t.Error("sinks not closed")
	}

	if res.Metrics.EntriesPersisted != 4 {
		t.Errorf("Metrics.EntriesPersisted = %d, want 4", res.Metrics.EntriesPersisted)
	}
	if res.Interactions.EntriesPersisted != 2 {
		t.Errorf("Interactions.EntriesPersisted = %d, want 2", res.Interactions.EntriesPersisted)
	}
	if diag.Len() != 0 {
		t.Errorf("unexpected diagnostics: %s", diag.String())
	}
}

func TestExecute_DefaultsRunID(t *testing.T) {
	s := newSinks()
	res := execute(t, &RunConfig{
		Client:        clientConfig(t, 0),
		Input:         strings.NewReader(""),
		ClientOptions: []client.Option{client.WithSinkFactory(s.factory)},
	})

	if res.ExitCode != ExitSuccess {
		t.Errorf("ExitCode = %d, want %d", res.ExitCode, ExitSuccess)
	}
	if res.RunID == "" {
		t.Error("RunID not generated")
	}
}

func TestExecute_StreamError(t *testing.T) {
	s := newSinks()
	input := `{"EventId":"e1","RewardValue":1}
{"RewardValue":1}
{"EventId":"e3","RewardValue":1}
`
	res := execute(t, &RunConfig{
		Client:        clientConfig(t, 0),
		Input:         strings.NewReader(input),
		ClientOptions: []client.Option{client.WithSinkFactory(s.factory)},
	})

	if res.Err == nil {
		t.Fatal("expected stream error")
	}
	if res.ExitCode != ExitStreamError {
		t.Errorf("ExitCode = %d, want %d", res.ExitCode, ExitStreamError)
	}
	if !strings.Contains(res.Err.Error(), "line 2") {
		t.Errorf("Err = %v, want mention of line 2", res.Err)
	}
	if res.Dispatch.Lines != 2 {
		t.Errorf("Dispatch.Lines = %d, want 2", res.Dispatch.Lines)
	}

	// The client is still closed and the first outcome persisted.
	if !s.observations.Stats().Closed {
		t.Error("observation sink not closed")
	}
	if n := len(s.observations.Entries()); n != 1 {
		t.Errorf("observations persisted = %d, want 1", n)
	}
}

func TestExecute_InitError(t *testing.T) {
	res := execute(t, &RunConfig{
		Client: clientConfig(t, 0),
		Input:  strings.NewReader(stream),
		ClientOptions: []client.Option{client.WithSinkFactory(
			func(context.Context, types.EntryKind, client.SenderConfig) (policy.Sink, error) {
				return nil, errors.New("bucket missing")
			},
		)},
	})

	if !client.IsInitializationError(res.Err) {
		t.Fatalf("Err = %v, want initialization error", res.Err)
	}
	if res.ExitCode != ExitInitError {
		t.Errorf("ExitCode = %d, want %d", res.ExitCode, ExitInitError)
	}
	if res.Dispatch.Lines != 0 {
		t.Errorf("Dispatch.Lines = %d, want 0", res.Dispatch.Lines)
	}
}

func TestExecute_CloseError(t *testing.T) {
	s := newSinks()
	s.interactions.SetError(errors.New("disk full"))
	rec := errsink.NewRecorder()

	res := execute(t, &RunConfig{
		Client:        clientConfig(t, 60000),
		Input:         strings.NewReader(stream),
		ErrorSink:     rec,
		ClientOptions: []client.Option{client.WithSinkFactory(s.factory)},
	})

	if res.Err != nil {
		t.Fatalf("Err = %v, want nil", res.Err)
	}
	if res.CloseErr == nil || !strings.Contains(res.CloseErr.Error(), "disk full") {
		t.Fatalf("CloseErr = %v, want disk full", res.CloseErr)
	}
	if res.ExitCode != ExitStorageError {
		t.Errorf("ExitCode = %d, want %d", res.ExitCode, ExitStorageError)
	}
	if n := len(s.observations.Entries()); n != 2 {
		t.Errorf("observations persisted = %d, want 2", n)
	}

	ev := res.Event()
	if ev.Status != types.RunStatusFailed {
		t.Errorf("Event().Status = %v, want %v", ev.Status, types.RunStatusFailed)
	}
	if !strings.Contains(ev.Error, "disk full") {
		t.Errorf("Event().Error = %q, want disk full", ev.Error)
	}
}

func TestNewRunOrchestrator_Validation(t *testing.T) {
	if _, err := NewRunOrchestrator(nil); err == nil {
		t.Error("expected error for nil config")
	}
	if _, err := NewRunOrchestrator(&RunConfig{Client: clientConfig(t, 0)}); err == nil {
		t.Error("expected error for missing input")
	}
}

func TestRunResult_Event(t *testing.T) {
	s := newSinks()
	res := execute(t, &RunConfig{
		Client:        clientConfig(t, 0),
		Input:         strings.NewReader(stream),
		RunID:         "run-9",
		ClientOptions: []client.Option{client.WithSinkFactory(s.factory)},
	})

	ev := res.Event()
	if ev.RunID != "run-9" || ev.AppID != "app-1" {
		t.Errorf("RunID, AppID = %q, %q", ev.RunID, ev.AppID)
	}
	if ev.Status != types.RunStatusCompleted || ev.Error != "" {
		t.Errorf("Status, Error = %v, %q", ev.Status, ev.Error)
	}
	if ev.Lines != 3 || ev.DecisionRecords != 2 || ev.OutcomeRecords != 1 {
		t.Errorf("counts = %d lines, %d decisions, %d outcomes", ev.Lines, ev.DecisionRecords, ev.OutcomeRecords)
	}
	if ev.CompletedAt.Before(ev.StartedAt) {
		t.Errorf("CompletedAt %v before StartedAt %v", ev.CompletedAt, ev.StartedAt)
	}
}

func TestDetermineExitCode(t *testing.T) {
	initErr := &client.InitializationError{Err: errors.New("bad")}
	streamErr := errors.New("line 3: malformed")
	closeErr := errors.New("flush")

	tests := []struct {
		name     string
		runErr   error
		closeErr error
		want     int
	}{
		{"success", nil, nil, ExitSuccess},
		{"init", initErr, nil, ExitInitError},
		{"init wins over close", initErr, closeErr, ExitInitError},
		{"stream", streamErr, nil, ExitStreamError},
		{"stream wins over close", streamErr, closeErr, ExitStreamError},
		{"close", nil, closeErr, ExitStorageError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetermineExitCode(tt.runErr, tt.closeErr); got != tt.want {
				t.Errorf("DetermineExitCode(%v, %v) = %d, want %d", tt.runErr, tt.closeErr, got, tt.want)
			}
		})
	}
}
