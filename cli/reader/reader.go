package reader

import (
	"context"
	"errors"
	"fmt"

	"github.com/justapithecus/rlfeed/binlog"
	"github.com/justapithecus/rlfeed/joiner"
	"github.com/justapithecus/rlfeed/lode"
	"github.com/justapithecus/rlfeed/types"
)

// ErrNoSource is returned when a JoinSource selects nothing.
var ErrNoSource = errors.New("no interactions file, observations file or lode path given")

// LogReader reads binlog files and lode datasets from local storage.
type LogReader struct{}

// NewLogReader creates a reader over local files.
func NewLogReader() *LogReader {
	return &LogReader{}
}

// InspectLog reads the binlog file at path.
func (r *LogReader) InspectLog(path string, limit int) (*InspectLogResponse, error) {
	resp := &InspectLogResponse{Path: path, Entries: []EntryRow{}}

	err := binlog.ReadFile(path, func(e *types.Entry) error {
		resp.add(e, limit)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return resp, nil
}

func (resp *InspectLogResponse) add(e *types.Entry, limit int) {
	resp.Total++
	if resp.AppID == "" {
		resp.AppID = e.AppID
	}
	switch e.Kind {
	case types.EntryKindInteraction:
		resp.Interactions++
	case types.EntryKindObservation:
		resp.Observations++
	}

	row := NewEntryRow(resp.Total-1, e)
	if row.Timestamp != nil {
		if resp.First == nil || row.Timestamp.Before(*resp.First) {
			resp.First = row.Timestamp
		}
		if resp.Last == nil || row.Timestamp.After(*resp.Last) {
			resp.Last = row.Timestamp
		}
	}
	if limit <= 0 || len(resp.Entries) < limit {
		resp.Entries = append(resp.Entries, row)
	}
}

// NewEntryRow flattens an entry.
func NewEntryRow(index int, e *types.Entry) EntryRow {
	row := EntryRow{
		Index:   index,
		Kind:    string(e.Kind),
		EventID: e.EventID(),
	}
	if ts := e.Timestamp(); !ts.IsZero() {
		ts = ts.UTC()
		row.Timestamp = &ts
	}
	switch {
	case e.Interaction != nil:
		in := e.Interaction
		row.Actions = len(in.ActionIDs)
		row.ModelID = in.ModelID
		if len(in.ActionIDs) > 0 {
			chosen := in.ActionIDs[0]
			row.Chosen = &chosen
		}
		if len(in.Probabilities) > 0 {
			p := in.Probabilities[0]
			row.Probability = &p
		}
	case e.Observation != nil:
		v := e.Observation.Value
		row.Value = &v
	}
	return row
}

// LoadJoiner reads every entry src selects into a new joiner.
func LoadJoiner(ctx context.Context, src JoinSource) (*joiner.Joiner, error) {
	j := joiner.New()
	switch {
	case src.LodePath != "":
		dataset := src.Dataset
		if dataset == "" {
			dataset = lode.DefaultDataset
		}
		ds, err := lode.NewReadDatasetFS(dataset, src.LodePath)
		if err != nil {
			return nil, err
		}
		if err := j.LoadDataset(ctx, ds, src.AppID); err != nil {
			return nil, err
		}
	case src.Interactions != "" || src.Observations != "":
		if err := j.LoadFiles(src.Interactions, src.Observations); err != nil {
			return nil, err
		}
	default:
		return nil, ErrNoSource
	}
	return j, nil
}

// Describe names the source for display.
func (src JoinSource) Describe() string {
	if src.LodePath != "" {
		return "lode:" + src.LodePath
	}
	return fmt.Sprintf("files:%s,%s", src.Interactions, src.Observations)
}

// JoinStats joins src and summarizes the result.
func (r *LogReader) JoinStats(ctx context.Context, src JoinSource) (*JoinStats, error) {
	j, err := LoadJoiner(ctx, src)
	if err != nil {
		return nil, err
	}
	return NewJoinStats(src.Describe(), j.Summary()), nil
}

// NewJoinStats computes the join rate for a summary.
func NewJoinStats(source string, s joiner.Summary) *JoinStats {
	stats := &JoinStats{Source: source, Summary: s}
	if s.Interactions > 0 {
		stats.JoinRate = float64(s.Joined) / float64(s.Interactions)
	}
	return stats
}
