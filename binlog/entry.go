package binlog

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/justapithecus/rlfeed/types"
)

// EncodeEntry encodes an entry as a msgpack payload.
func EncodeEntry(e *types.Entry) ([]byte, error) {
	payload, err := msgpack.Marshal(e)
	if err != nil {
		return nil, &FrameError{
			Kind: FrameErrorDecode,
			Msg:  "failed to encode entry",
			Err:  err,
		}
	}
	return payload, nil
}

// DecodeEntry decodes and validates a msgpack payload.
func DecodeEntry(payload []byte) (*types.Entry, error) {
	var e types.Entry
	if err := msgpack.Unmarshal(payload, &e); err != nil {
		return nil, &FrameError{
			Kind: FrameErrorDecode,
			Msg:  "failed to decode entry",
			Err:  err,
		}
	}
	if err := e.Validate(); err != nil {
		return nil, &FrameError{
			Kind: FrameErrorDecode,
			Msg:  "invalid entry",
			Err:  err,
		}
	}
	return &e, nil
}

// WriteEntry frames and writes one entry.
func (e *FrameEncoder) WriteEntry(entry *types.Entry) error {
	payload, err := EncodeEntry(entry)
	if err != nil {
		return err
	}
	return e.WriteFrame(payload)
}

// ErrStop can be returned by a ReadEntries callback to end iteration early
// without an error.
var ErrStop = errors.New("stop iteration")

// ReadEntries calls fn for every entry in r, in order. It returns nil at a
// clean end of stream and stops at the first framing, decode or callback
// error.
func ReadEntries(r io.Reader, fn func(*types.Entry) error) error {
	dec := NewFrameDecoder(r)
	for n := 0; ; n++ {
		payload, err := dec.ReadFrame()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("frame %d: %w", n, err)
		}

		entry, err := DecodeEntry(payload)
		if err != nil {
			return fmt.Errorf("frame %d: %w", n, err)
		}
		if err := fn(entry); err != nil {
			if errors.Is(err, ErrStop) {
				return nil
			}
			return err
		}
	}
}

// ReadFile calls fn for every entry in the log file at path.
func ReadFile(path string, fn func(*types.Entry) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	return ReadEntries(f, fn)
}

// LoadFile returns every entry in the log file at path.
func LoadFile(path string) ([]types.Entry, error) {
	var entries []types.Entry
	err := ReadFile(path, func(e *types.Entry) error {
		entries = append(entries, *e)
		return nil
	})
	return entries, err
}
