// Package lode persists event log entries to a lode dataset.
//
// Entries are written as JSONL records under a Hive layout partitioned by
// app_id, kind and day. The same layout is used on the read path so the
// joiner can consume what the lode senders produced.
package lode

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/justapithecus/lode/lode"

	"github.com/justapithecus/rlfeed/policy"
	"github.com/justapithecus/rlfeed/types"
)

// DefaultDataset is the dataset ID used when none is configured.
const DefaultDataset = "rlfeed"

// partitionKeys is the Hive layout shared by the read and write paths.
var partitionKeys = []string{"app_id", "kind", "day"}

// DeriveDay computes the partition day for a timestamp (YYYY-MM-DD, UTC).
func DeriveDay(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// Config holds lode sink configuration.
type Config struct {
	// Dataset is the lode dataset ID. Defaults to DefaultDataset.
	Dataset string
	// AppID is the application the entries belong to.
	AppID string
	// RunID tags every record so a run's entries can be told apart.
	RunID string
	// Day is the partition day for entries without a timestamp.
	// Defaults to the day the sink was created.
	Day string
}

// Validate checks required fields.
func (c *Config) Validate() error {
	if c.AppID == "" {
		return errors.New("lode sink: app id is required")
	}
	if c.RunID == "" {
		return errors.New("lode sink: run id is required")
	}
	return nil
}

func newDataset(dataset string, factory lode.StoreFactory) (lode.Dataset, error) {
	if dataset == "" {
		dataset = DefaultDataset
	}
	ds, err := lode.NewDataset(
		lode.DatasetID(dataset),
		factory,
		lode.WithHiveLayout(partitionKeys...),
		lode.WithCodec(lode.NewJSONLCodec()),
	)
	if err != nil {
		return nil, WrapInitError(err, dataset)
	}
	return ds, nil
}

// Sink is a lode-backed implementation of policy.Sink.
// Each WriteEntries call produces one dataset write.
type Sink struct {
	dataset lode.Dataset
	config  Config

	mu     sync.Mutex // guards seq and closed
	seq    int64
	closed bool
}

// NewSink creates a sink over the given store factory.
// Use lode.NewMemory with a shared factory for tests.
func NewSink(cfg Config, factory lode.StoreFactory) (*Sink, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Dataset == "" {
		cfg.Dataset = DefaultDataset
	}
	if cfg.Day == "" {
		cfg.Day = DeriveDay(time.Now())
	}

	ds, err := newDataset(cfg.Dataset, factory)
	if err != nil {
		return nil, err
	}
	return &Sink{dataset: ds, config: cfg}, nil
}

// NewFSSink creates a sink with filesystem storage rooted at root.
func NewFSSink(cfg Config, root string) (*Sink, error) {
	return NewSink(cfg, lode.NewFSFactory(root))
}

// WriteEntries implements policy.Sink. Sequence numbers advance only
// after a successful write.
func (s *Sink) WriteEntries(ctx context.Context, entries []types.Entry) error {
	if len(entries) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return policy.ErrPolicyClosed
	}

	records := make([]any, 0, len(entries))
	for i, e := range entries {
		records = append(records, toRecordMap(e, s.config.RunID, s.seq+int64(i)+1, s.config.Day))
	}

	if _, err := s.dataset.Write(ctx, records, lode.Metadata{}); err != nil {
		return WrapWriteError(err, s.config.Dataset)
	}
	s.seq += int64(len(entries))
	return nil
}

// Close implements policy.Sink. The dataset holds no open handles.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Written returns the number of entries persisted so far.
func (s *Sink) Written() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}

// Verify Sink implements policy.Sink.
var _ policy.Sink = (*Sink)(nil)
