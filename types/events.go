// Package types defines core domain types shared across rlfeed packages.
//
//nolint:revive // types is a common Go package naming convention
package types

import (
	"errors"
	"fmt"
	"time"
)

// EntryKind discriminates event log entries.
type EntryKind string

// Entry kinds written by the client senders.
const (
	EntryKindInteraction EntryKind = "interaction"
	EntryKindObservation EntryKind = "observation"
)

// Valid reports whether k is a known entry kind.
func (k EntryKind) Valid() bool {
	return k == EntryKindInteraction || k == EntryKindObservation
}

// Interaction is the logged form of a single choose call.
// ActionIDs are 1-based and ordered with the chosen action first,
// matching what downstream DSJSON consumers expect.
type Interaction struct {
	EventID         string    `msgpack:"event_id" json:"event_id"`
	Timestamp       time.Time `msgpack:"ts" json:"ts"`
	Context         []byte    `msgpack:"context" json:"-"`
	ActionIDs       []uint64  `msgpack:"action_ids" json:"action_ids"`
	Probabilities   []float32 `msgpack:"probabilities" json:"probabilities"`
	ModelID         string    `msgpack:"model_id" json:"model_id"`
	PassProbability float32   `msgpack:"pass_probability" json:"pass_probability"`
}

// Observation is the logged form of a single reportOutcome call.
type Observation struct {
	EventID   string    `msgpack:"event_id" json:"event_id"`
	Timestamp time.Time `msgpack:"ts" json:"ts"`
	Value     float32   `msgpack:"value" json:"value"`
}

// Entry is one event log record. Exactly one of Interaction and
// Observation is set, selected by Kind.
type Entry struct {
	Version     string       `msgpack:"v" json:"v"`
	Kind        EntryKind    `msgpack:"kind" json:"kind"`
	AppID       string       `msgpack:"app_id" json:"app_id"`
	Interaction *Interaction `msgpack:"interaction,omitempty" json:"interaction,omitempty"`
	Observation *Observation `msgpack:"observation,omitempty" json:"observation,omitempty"`
}

// NewInteractionEntry wraps an interaction in an entry.
func NewInteractionEntry(appID string, in *Interaction) Entry {
	return Entry{Version: LogFormatVersion, Kind: EntryKindInteraction, AppID: appID, Interaction: in}
}

// NewObservationEntry wraps an observation in an entry.
func NewObservationEntry(appID string, ob *Observation) Entry {
	return Entry{Version: LogFormatVersion, Kind: EntryKindObservation, AppID: appID, Observation: ob}
}

// ErrInvalidEntry is returned by Entry.Validate.
var ErrInvalidEntry = errors.New("invalid log entry")

// EventID returns the event id of whichever payload is set.
func (e *Entry) EventID() string {
	switch {
	case e.Interaction != nil:
		return e.Interaction.EventID
	case e.Observation != nil:
		return e.Observation.EventID
	default:
		return ""
	}
}

// Timestamp returns the timestamp of whichever payload is set.
func (e *Entry) Timestamp() time.Time {
	switch {
	case e.Interaction != nil:
		return e.Interaction.Timestamp
	case e.Observation != nil:
		return e.Observation.Timestamp
	default:
		return time.Time{}
	}
}

// Validate checks the kind/payload pairing and the format version.
func (e *Entry) Validate() error {
	if e.Version != LogFormatVersion {
		return fmt.Errorf("%w: unsupported version %q", ErrInvalidEntry, e.Version)
	}
	switch e.Kind {
	case EntryKindInteraction:
		if e.Interaction == nil || e.Observation != nil {
			return fmt.Errorf("%w: interaction entry must carry only an interaction", ErrInvalidEntry)
		}
		if len(e.Interaction.ActionIDs) == 0 || len(e.Interaction.ActionIDs) != len(e.Interaction.Probabilities) {
			return fmt.Errorf("%w: interaction %q has mismatched actions and probabilities", ErrInvalidEntry, e.Interaction.EventID)
		}
	case EntryKindObservation:
		if e.Observation == nil || e.Interaction != nil {
			return fmt.Errorf("%w: observation entry must carry only an observation", ErrInvalidEntry)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidEntry, e.Kind)
	}
	if e.EventID() == "" {
		return fmt.Errorf("%w: empty event id", ErrInvalidEntry)
	}
	return nil
}
