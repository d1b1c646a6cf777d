package types //nolint:revive // types is a valid package name

import (
	"errors"
	"testing"
	"time"
)

func TestEntryKind_Valid(t *testing.T) {
	tests := []struct {
		kind EntryKind
		want bool
	}{
		{EntryKindInteraction, true},
		{EntryKindObservation, true},
		{"", false},
		{"decision", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			if got := tt.kind.Valid(); got != tt.want {
				t.Errorf("EntryKind(%q).Valid() = %v, want %v", tt.kind, got, tt.want)
			}
		})
	}
}

func TestEntry_Validate(t *testing.T) {
	interaction := &Interaction{
		EventID:       "e1",
		ActionIDs:     []uint64{2, 1},
		Probabilities: []float32{0.9, 0.1},
	}

	tests := []struct {
		name    string
		entry   Entry
		wantErr bool
	}{
		{"interaction", NewInteractionEntry("app", interaction), false},
		{"observation", NewObservationEntry("app", &Observation{EventID: "e1", Value: 1}), false},
		{"wrong version", Entry{Version: "0", Kind: EntryKindObservation, Observation: &Observation{EventID: "e1"}}, true},
		{"unknown kind", Entry{Version: LogFormatVersion, Kind: "x"}, true},
		{"missing payload", Entry{Version: LogFormatVersion, Kind: EntryKindInteraction}, true},
		{"both payloads", Entry{
			Version:     LogFormatVersion,
			Kind:        EntryKindObservation,
			Interaction: interaction,
			Observation: &Observation{EventID: "e1"},
		}, true},
		{"empty event id", NewObservationEntry("app", &Observation{}), true},
		{"mismatched probabilities", NewInteractionEntry("app", &Interaction{
			EventID:       "e1",
			ActionIDs:     []uint64{1, 2},
			Probabilities: []float32{1},
		}), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.entry.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidEntry) {
				t.Errorf("Validate() error should wrap ErrInvalidEntry, got %v", err)
			}
		})
	}
}

func TestEntry_Accessors(t *testing.T) {
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	e := NewObservationEntry("app", &Observation{EventID: "e9", Timestamp: ts})

	if got := e.EventID(); got != "e9" {
		t.Errorf("EventID() = %q, want e9", got)
	}
	if got := e.Timestamp(); !got.Equal(ts) {
		t.Errorf("Timestamp() = %v, want %v", got, ts)
	}

	var empty Entry
	if empty.EventID() != "" || !empty.Timestamp().IsZero() {
		t.Error("empty entry should have no event id or timestamp")
	}
}

func TestRankingResponse_Interaction(t *testing.T) {
	resp := RankingResponse{
		EventID: "e1",
		ModelID: "N/A",
		Ranking: []ActionProbability{
			{ActionID: 2, Probability: 0.8},
			{ActionID: 0, Probability: 0.1},
			{ActionID: 1, Probability: 0.1},
		},
	}

	chosen, err := resp.ChosenAction()
	if err != nil {
		t.Fatalf("ChosenAction failed: %v", err)
	}
	if chosen != 2 {
		t.Errorf("ChosenAction() = %d, want 2", chosen)
	}

	in := resp.Interaction([]byte(`{"a":1}`))
	want := []uint64{3, 1, 2}
	for i, id := range in.ActionIDs {
		if id != want[i] {
			t.Errorf("ActionIDs[%d] = %d, want %d", i, id, want[i])
		}
	}
	if in.PassProbability != 1 {
		t.Errorf("PassProbability = %v, want 1", in.PassProbability)
	}
	if string(in.Context) != `{"a":1}` {
		t.Errorf("Context = %s", in.Context)
	}
}

func TestRankingResponse_Empty(t *testing.T) {
	var resp RankingResponse
	if _, err := resp.ChosenAction(); !errors.Is(err, ErrEmptyRanking) {
		t.Errorf("ChosenAction() error = %v, want ErrEmptyRanking", err)
	}
}
