// Package joiner joins logged interactions with their observations into
// DSJSON training lines.
package joiner

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	lodelib "github.com/justapithecus/lode/lode"

	"github.com/justapithecus/rlfeed/binlog"
	"github.com/justapithecus/rlfeed/lode"
	"github.com/justapithecus/rlfeed/types"
)

// DefaultReward is used for interactions with no observation.
const DefaultReward = 0

// ErrInvalidContext is returned when a logged context is not valid JSON.
var ErrInvalidContext = errors.New("interaction context is not valid JSON")

// Line is one DSJSON record. Field order is the on-disk order.
type Line struct {
	Version          string          `json:"Version"`
	EventID          string          `json:"EventId"`
	LabelCost        float32         `json:"_label_cost"`
	LabelProbability float32         `json:"_label_probability"`
	LabelAction      uint64          `json:"_label_Action"`
	LabelIndex       uint64          `json:"_labelIndex"`
	Actions          []uint64        `json:"a"`
	Context          json.RawMessage `json:"c"`
	Probabilities    []float32       `json:"p"`
	VWState          VWState         `json:"VWState"`
	PDrop            *float32        `json:"pdrop,omitempty"`
}

// VWState carries the model id that produced the ranking.
type VWState struct {
	ModelID string `json:"m"`
}

// Summary counts what a join saw and produced.
type Summary struct {
	Interactions int `json:"interactions"`
	Observations int `json:"observations"`
	Joined       int `json:"joined"`
	Unjoined     int `json:"unjoined"`
	// Orphans are observations whose event id never had an interaction.
	Orphans int `json:"orphans"`
	// Duplicates are observations ignored because an earlier one won.
	Duplicates int `json:"duplicates"`
}

// Joiner accumulates entries and emits one line per interaction, in the
// order the interactions were added.
type Joiner struct {
	interactions []*types.Interaction
	rewards      map[string]float32
	seen         map[string]struct{}
	observations int
	duplicates   int
}

// New creates an empty joiner.
func New() *Joiner {
	return &Joiner{
		rewards: make(map[string]float32),
		seen:    make(map[string]struct{}),
	}
}

// Add records an entry. The first observation for an event id wins.
func (j *Joiner) Add(e *types.Entry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	switch e.Kind {
	case types.EntryKindInteraction:
		j.interactions = append(j.interactions, e.Interaction)
		j.seen[e.Interaction.EventID] = struct{}{}
	case types.EntryKindObservation:
		j.observations++
		if _, ok := j.rewards[e.Observation.EventID]; ok {
			j.duplicates++
			return nil
		}
		j.rewards[e.Observation.EventID] = e.Observation.Value
	}
	return nil
}

// AddAll records every entry in order.
func (j *Joiner) AddAll(entries []types.Entry) error {
	for i := range entries {
		if err := j.Add(&entries[i]); err != nil {
			return err
		}
	}
	return nil
}

// Summary reports counts for the entries added so far.
func (j *Joiner) Summary() Summary {
	s := Summary{
		Interactions: len(j.interactions),
		Observations: j.observations,
		Duplicates:   j.duplicates,
	}
	for _, in := range j.interactions {
		if _, ok := j.rewards[in.EventID]; ok {
			s.Joined++
		} else {
			s.Unjoined++
		}
	}
	for id := range j.rewards {
		if _, ok := j.seen[id]; !ok {
			s.Orphans++
		}
	}
	return s
}

// Lines builds the DSJSON records without writing them.
func (j *Joiner) Lines() ([]Line, error) {
	lines := make([]Line, 0, len(j.interactions))
	for _, in := range j.interactions {
		reward, ok := j.rewards[in.EventID]
		if !ok {
			reward = DefaultReward
		}
		line, err := NewLine(in, reward)
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// Emit writes one DSJSON line per interaction to w.
func (j *Joiner) Emit(w io.Writer) (Summary, error) {
	lines, err := j.Lines()
	if err != nil {
		return Summary{}, err
	}

	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)
	for i := range lines {
		if err := enc.Encode(&lines[i]); err != nil {
			return Summary{}, fmt.Errorf("encode event %s: %w", lines[i].EventID, err)
		}
	}
	if err := bw.Flush(); err != nil {
		return Summary{}, err
	}
	return j.Summary(), nil
}

// NewLine joins one interaction with its reward. The label is the first
// (chosen) action; cost is the negated reward.
func NewLine(in *types.Interaction, reward float32) (Line, error) {
	if len(in.ActionIDs) == 0 || len(in.ActionIDs) != len(in.Probabilities) || in.ActionIDs[0] == 0 {
		return Line{}, fmt.Errorf("event %s: %w", in.EventID, types.ErrInvalidEntry)
	}
	ctx := json.RawMessage(in.Context)
	if len(ctx) == 0 || !json.Valid(ctx) {
		return Line{}, fmt.Errorf("event %s: %w", in.EventID, ErrInvalidContext)
	}

	top := in.ActionIDs[0]
	line := Line{
		Version:          "1",
		EventID:          in.EventID,
		LabelCost:        -reward,
		LabelProbability: in.Probabilities[0],
		LabelAction:      top,
		LabelIndex:       top - 1,
		Actions:          in.ActionIDs,
		Context:          ctx,
		Probabilities:    in.Probabilities,
		VWState:          VWState{ModelID: in.ModelID},
	}
	if in.PassProbability < 1 {
		pdrop := 1 - in.PassProbability
		line.PDrop = &pdrop
	}
	return line, nil
}

// LoadFiles adds every entry from the interaction and observation log
// files. Either path may be empty.
func (j *Joiner) LoadFiles(interactionsPath, observationsPath string) error {
	for _, path := range []string{interactionsPath, observationsPath} {
		if path == "" {
			continue
		}
		if err := binlog.ReadFile(path, j.Add); err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
	}
	return nil
}

// LoadDataset adds every interaction, then every observation, stored in a
// lode dataset for appID.
func (j *Joiner) LoadDataset(ctx context.Context, ds lodelib.Dataset, appID string) error {
	for _, kind := range []types.EntryKind{types.EntryKindInteraction, types.EntryKindObservation} {
		entries, err := lode.ReadEntries(ctx, ds, lode.Filter{AppID: appID, Kind: kind})
		if err != nil {
			return err
		}
		if err := j.AddAll(entries); err != nil {
			return err
		}
	}
	return nil
}
