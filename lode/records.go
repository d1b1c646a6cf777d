package lode

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/justapithecus/rlfeed/types"
)

// Record is the stored shape of one log entry.
// Lode HiveLayout partitions on app_id, kind and day, so those keys are
// always present. Seq orders records written by one sink and is unique
// per run and kind.
type Record struct {
	Version string `json:"v"`
	AppID   string `json:"app_id"`
	Kind    string `json:"kind"`
	Day     string `json:"day"`
	RunID   string `json:"run_id"`
	Seq     int64  `json:"seq"`
	EventID string `json:"event_id"`
	Ts      string `json:"ts"`

	// Interaction fields
	Context         string    `json:"context,omitempty"`
	ActionIDs       []uint64  `json:"action_ids,omitempty"`
	Probabilities   []float32 `json:"probabilities,omitempty"`
	ModelID         string    `json:"model_id,omitempty"`
	PassProbability *float32  `json:"pass_probability,omitempty"`

	// Observation fields
	Value *float32 `json:"value,omitempty"`
}

// toRecordMap converts an entry to the map form lode writes.
// day is used when the entry carries no timestamp.
func toRecordMap(e types.Entry, runID string, seq int64, day string) map[string]any {
	ts := e.Timestamp()
	if !ts.IsZero() {
		day = DeriveDay(ts)
	}

	m := map[string]any{
		"v":        e.Version,
		"app_id":   e.AppID,
		"kind":     string(e.Kind),
		"day":      day,
		"run_id":   runID,
		"seq":      seq,
		"event_id": e.EventID(),
		"ts":       formatTs(ts),
	}

	switch {
	case e.Interaction != nil:
		in := e.Interaction
		m["context"] = string(in.Context)
		m["action_ids"] = in.ActionIDs
		m["probabilities"] = in.Probabilities
		m["model_id"] = in.ModelID
		m["pass_probability"] = in.PassProbability
	case e.Observation != nil:
		m["value"] = e.Observation.Value
	}
	return m
}

// FromRecord decodes one item returned by lode Dataset.Read.
func FromRecord(item any) (Record, types.Entry, error) {
	var rec Record

	raw, err := json.Marshal(item)
	if err != nil {
		return rec, types.Entry{}, fmt.Errorf("encode stored record: %w", err)
	}
	if err := json.Unmarshal(raw, &rec); err != nil {
		return rec, types.Entry{}, fmt.Errorf("decode stored record: %w", err)
	}

	entry, err := rec.Entry()
	return rec, entry, err
}

// Entry rebuilds the log entry a record was written from.
func (r *Record) Entry() (types.Entry, error) {
	ts, err := parseTs(r.Ts)
	if err != nil {
		return types.Entry{}, fmt.Errorf("record %s/%d: %w", r.RunID, r.Seq, err)
	}

	var e types.Entry
	switch types.EntryKind(r.Kind) {
	case types.EntryKindInteraction:
		pass := float32(1)
		if r.PassProbability != nil {
			pass = *r.PassProbability
		}
		e = types.NewInteractionEntry(r.AppID, &types.Interaction{
			EventID:         r.EventID,
			Timestamp:       ts,
			Context:         []byte(r.Context),
			ActionIDs:       r.ActionIDs,
			Probabilities:   r.Probabilities,
			ModelID:         r.ModelID,
			PassProbability: pass,
		})
	case types.EntryKindObservation:
		var v float32
		if r.Value != nil {
			v = *r.Value
		}
		e = types.NewObservationEntry(r.AppID, &types.Observation{
			EventID:   r.EventID,
			Timestamp: ts,
			Value:     v,
		})
	default:
		return types.Entry{}, fmt.Errorf("%w: unknown kind %q", types.ErrInvalidEntry, r.Kind)
	}

	if r.Version != "" {
		e.Version = r.Version
	}
	if err := e.Validate(); err != nil {
		return types.Entry{}, err
	}
	return e, nil
}

func formatTs(ts time.Time) string {
	if ts.IsZero() {
		return ""
	}
	return ts.UTC().Format(time.RFC3339Nano)
}

func parseTs(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	ts, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid ts %q: %w", s, err)
	}
	return ts, nil
}
