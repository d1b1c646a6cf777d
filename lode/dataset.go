package lode

import (
	"context"
	"fmt"
	"strings"

	"github.com/justapithecus/lode/lode"

	"github.com/justapithecus/rlfeed/types"
)

// NewReadDataset creates a dataset for reading with the write-path layout.
func NewReadDataset(dataset string, factory lode.StoreFactory) (lode.Dataset, error) {
	return newDataset(dataset, factory)
}

// NewReadDatasetFS creates a read dataset with filesystem storage.
func NewReadDatasetFS(dataset, rootPath string) (lode.Dataset, error) {
	return NewReadDataset(dataset, lode.NewFSFactory(rootPath))
}

// Filter narrows ReadEntries. Empty fields match everything.
type Filter struct {
	AppID string
	Kind  types.EntryKind
	RunID string
}

func (f Filter) matches(rec *Record) bool {
	if f.AppID != "" && rec.AppID != f.AppID {
		return false
	}
	if f.Kind != "" && rec.Kind != string(f.Kind) {
		return false
	}
	if f.RunID != "" && rec.RunID != f.RunID {
		return false
	}
	return true
}

type recordKey struct {
	runID string
	kind  string
	seq   int64
}

// ReadEntries returns every stored entry matching f, oldest snapshot first.
// A record seen in more than one snapshot is returned once.
func ReadEntries(ctx context.Context, ds lode.Dataset, f Filter) ([]types.Entry, error) {
	snapshots, err := ds.Snapshots(ctx)
	if err != nil {
		return nil, WrapReadError(err, string(ds.ID())+"/snapshots")
	}

	seen := make(map[recordKey]struct{})
	var entries []types.Entry

	for _, snap := range snapshots {
		// Manifest paths are a coarse pre-filter; record fields decide.
		if !snapshotMatchesFilter(snap, "app_id", f.AppID) {
			continue
		}
		if !snapshotMatchesFilter(snap, "kind", string(f.Kind)) {
			continue
		}

		data, err := ds.Read(ctx, snap.ID)
		if err != nil {
			return nil, WrapReadError(err, fmt.Sprintf("%s/snapshot/%s", ds.ID(), snap.ID))
		}

		for _, item := range data {
			rec, entry, err := FromRecord(item)
			if err != nil {
				return nil, err
			}
			if !f.matches(&rec) {
				continue
			}
			key := recordKey{runID: rec.RunID, kind: rec.Kind, seq: rec.Seq}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			entries = append(entries, entry)
		}
	}

	return entries, nil
}

// snapshotMatchesFilter checks if a snapshot's file paths match
// the given partition key=value filter.
func snapshotMatchesFilter(snap *lode.DatasetSnapshot, key, value string) bool {
	if value == "" {
		return true
	}
	for _, f := range snap.Manifest.Files {
		if matchesPartitionValue(f.Path, key, value) {
			return true
		}
	}
	return false
}

// matchesPartitionValue checks if a Hive-partitioned path contains an exact
// key=value segment, so app_id=a does not match app_id=ab.
func matchesPartitionValue(path, key, value string) bool {
	segment := key + "=" + value
	for _, part := range strings.Split(path, "/") {
		if part == segment {
			return true
		}
	}
	return false
}
