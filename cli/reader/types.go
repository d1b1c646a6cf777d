// Package reader is the read side of the rlfeed CLI. It turns event logs
// (binlog files or a lode dataset) into the payloads that inspect and
// stats render.
package reader

import (
	"time"

	"github.com/justapithecus/rlfeed/joiner"
)

// EntryRow is one event log entry flattened for display.
type EntryRow struct {
	Index       int        `json:"index" yaml:"index"`
	Kind        string     `json:"kind" yaml:"kind"`
	EventID     string     `json:"event_id" yaml:"event_id"`
	Timestamp   *time.Time `json:"ts,omitempty" yaml:"ts,omitempty"`
	Chosen      *uint64    `json:"chosen_action,omitempty" yaml:"chosen_action,omitempty"`
	Probability *float32   `json:"probability,omitempty" yaml:"probability,omitempty"`
	Actions     int        `json:"actions,omitempty" yaml:"actions,omitempty"`
	ModelID     string     `json:"model_id,omitempty" yaml:"model_id,omitempty"`
	Value       *float32   `json:"value,omitempty" yaml:"value,omitempty"`
}

// InspectLogResponse describes the contents of one event log.
type InspectLogResponse struct {
	Path         string     `json:"path" yaml:"path"`
	AppID        string     `json:"app_id" yaml:"app_id"`
	Total        int        `json:"total" yaml:"total"`
	Interactions int        `json:"interactions" yaml:"interactions"`
	Observations int        `json:"observations" yaml:"observations"`
	First        *time.Time `json:"first_ts,omitempty" yaml:"first_ts,omitempty"`
	Last         *time.Time `json:"last_ts,omitempty" yaml:"last_ts,omitempty"`
	// Entries holds at most the requested number of rows.
	Entries []EntryRow `json:"entries" yaml:"entries"`
}

// JoinSource selects where join and stats read entries from. Either the
// two binlog paths or LodePath is set.
type JoinSource struct {
	Interactions string
	Observations string

	LodePath string
	Dataset  string
	AppID    string
}

// JoinStats is the stats payload: the join summary plus its join rate.
type JoinStats struct {
	Source string `json:"source" yaml:"source"`

	joiner.Summary `yaml:",inline"`

	JoinRate float64 `json:"join_rate" yaml:"join_rate"`
}
