package binlog

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/justapithecus/rlfeed/policy"
	"github.com/justapithecus/rlfeed/types"
)

// FileSink appends framed entries to a log file. It implements policy.Sink.
//
// A batch is written whole or not at all: every entry is encoded before
// anything reaches the file, and a failed write truncates the file back to
// its previous length.
type FileSink struct {
	path string

	mu     sync.Mutex // guards file, size and closed
	file   *os.File
	size   int64
	closed bool
}

// OpenFileSink opens path for appending, creating it if needed.
func OpenFileSink(path string) (*FileSink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open event log %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("stat event log %s: %w", path, err)
	}
	return &FileSink{
		path: path,
		file: f,
		size: info.Size(),
	}, nil
}

// Path returns the file the sink appends to.
func (s *FileSink) Path() string {
	return s.path
}

// CheckEntry implements policy.EntryChecker. It fails for entries that
// cannot be framed, so callers can reject them before they join a batch.
func (s *FileSink) CheckEntry(e *types.Entry) error {
	payload, err := EncodeEntry(e)
	if err != nil {
		return err
	}
	if len(payload) > MaxPayloadSize {
		return &FrameError{
			Kind: FrameErrorTooLarge,
			Msg:  fmt.Sprintf("payload size %d exceeds maximum %d", len(payload), MaxPayloadSize),
		}
	}
	return nil
}

// WriteEntries implements policy.Sink.
func (s *FileSink) WriteEntries(ctx context.Context, entries []types.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var batch bytes.Buffer
	enc := NewFrameEncoder(&batch)
	for i := range entries {
		if err := enc.WriteEntry(&entries[i]); err != nil {
			return fmt.Errorf("write %s: entry %s: %w", s.path, entries[i].EventID(), err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return policy.ErrPolicyClosed
	}

	n, err := s.file.Write(batch.Bytes())
	if err != nil {
		if n > 0 {
			if terr := s.file.Truncate(s.size); terr != nil {
				return fmt.Errorf("write %s: %w (truncate: %v)", s.path, err, terr)
			}
		}
		return fmt.Errorf("write %s: %w", s.path, err)
	}
	s.size += int64(n)
	return nil
}

// Close closes the file. Safe to call twice.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.file.Close()
}

var (
	_ policy.Sink         = (*FileSink)(nil)
	_ policy.EntryChecker = (*FileSink)(nil)
)
