package binlog

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/justapithecus/rlfeed/policy"
	"github.com/justapithecus/rlfeed/types"
)

// encodeFrame encodes a payload with its length prefix.
func encodeFrame(payload []byte) []byte {
	buf := make([]byte, LengthPrefixSize+len(payload))
	binary.BigEndian.PutUint32(buf[:LengthPrefixSize], uint32(len(payload)))
	copy(buf[LengthPrefixSize:], payload)
	return buf
}

var ts = time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

func interaction(eventID string) types.Entry {
	return types.NewInteractionEntry("app", &types.Interaction{
		EventID:         eventID,
		Timestamp:       ts,
		Context:         []byte(`{"_multi":[{},{}]}`),
		ActionIDs:       []uint64{1, 2},
		Probabilities:   []float32{0.5, 0.5},
		ModelID:         "N/A",
		PassProbability: 1,
	})
}

func observation(eventID string, v float32) types.Entry {
	return types.NewObservationEntry("app", &types.Observation{EventID: eventID, Timestamp: ts, Value: v})
}

func TestFrameEncoder_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	enc := NewFrameEncoder(&buf)

	want := []types.Entry{interaction("e1"), observation("e1", 1), interaction("e2")}
	for i := range want {
		if err := enc.WriteEntry(&want[i]); err != nil {
			t.Fatalf("WriteEntry failed: %v", err)
		}
	}

	var got []types.Entry
	err := ReadEntries(&buf, func(e *types.Entry) error {
		got = append(got, *e)
		return nil
	})
	if err != nil {
		t.Fatalf("ReadEntries failed: %v", err)
	}

	if len(got) != len(want) {
		t.Fatalf("read %d entries, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].Kind != want[i].Kind || got[i].EventID() != want[i].EventID() {
			t.Errorf("entry %d = %s/%s, want %s/%s", i, got[i].Kind, got[i].EventID(), want[i].Kind, want[i].EventID())
		}
	}
	in := got[0].Interaction
	if string(in.Context) != `{"_multi":[{},{}]}` {
		t.Errorf("Context = %s", in.Context)
	}
	if !in.Timestamp.Equal(ts) {
		t.Errorf("Timestamp = %v, want %v", in.Timestamp, ts)
	}
	if got[1].Observation.Value != 1 {
		t.Errorf("Value = %v, want 1", got[1].Observation.Value)
	}
}

func TestFrameDecoder_EmptyStream(t *testing.T) {
	dec := NewFrameDecoder(bytes.NewReader(nil))
	if _, err := dec.ReadFrame(); err != io.EOF {
		t.Errorf("ReadFrame on empty stream = %v, want io.EOF", err)
	}
}

func TestFrameDecoder_Errors(t *testing.T) {
	oversized := make([]byte, LengthPrefixSize)
	binary.BigEndian.PutUint32(oversized, MaxPayloadSize+1)

	tests := []struct {
		name      string
		input     []byte
		wantKind  FrameErrorKind
		wantFatal bool
	}{
		{"partial length prefix", []byte{0x00, 0x01}, FrameErrorTruncated, true},
		{"truncated payload", encodeFrame([]byte("abcdef"))[:7], FrameErrorTruncated, true},
		{"oversized frame", oversized, FrameErrorTooLarge, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewFrameDecoder(bytes.NewReader(tt.input)).ReadFrame()
			var frameErr *FrameError
			if !errors.As(err, &frameErr) {
				t.Fatalf("error = %v, want *FrameError", err)
			}
			if frameErr.Kind != tt.wantKind {
				t.Errorf("Kind = %s, want %s", frameErr.Kind, tt.wantKind)
			}
			if IsFatalFrameError(err) != tt.wantFatal {
				t.Errorf("IsFatalFrameError = %v, want %v", IsFatalFrameError(err), tt.wantFatal)
			}
		})
	}
}

func TestDecodeEntry_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
	}{
		{"not msgpack", []byte{0xc1}},
		{"msgpack string", []byte{0xa3, 'a', 'b', 'c'}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeEntry(tt.payload)
			var frameErr *FrameError
			if !errors.As(err, &frameErr) || frameErr.Kind != FrameErrorDecode {
				t.Fatalf("error = %v, want decode FrameError", err)
			}
			if frameErr.IsFatal() {
				t.Error("decode errors are not fatal")
			}
		})
	}
}

func TestDecodeEntry_FailsValidation(t *testing.T) {
	bad := types.NewObservationEntry("app", &types.Observation{EventID: ""})
	payload, err := EncodeEntry(&bad)
	if err != nil {
		t.Fatalf("EncodeEntry failed: %v", err)
	}
	if _, err := DecodeEntry(payload); !errors.Is(err, types.ErrInvalidEntry) {
		t.Errorf("DecodeEntry = %v, want ErrInvalidEntry", err)
	}
}

func TestFrameEncoder_RejectsOversized(t *testing.T) {
	var buf bytes.Buffer
	err := NewFrameEncoder(&buf).WriteFrame(make([]byte, MaxPayloadSize+1))
	var frameErr *FrameError
	if !errors.As(err, &frameErr) || frameErr.Kind != FrameErrorTooLarge {
		t.Fatalf("error = %v, want too_large FrameError", err)
	}
	if buf.Len() != 0 {
		t.Errorf("wrote %d bytes for a rejected frame", buf.Len())
	}
}

func TestReadEntries_StopsEarly(t *testing.T) {
	var buf bytes.Buffer
	enc := NewFrameEncoder(&buf)
	for _, id := range []string{"e1", "e2", "e3"} {
		e := interaction(id)
		if err := enc.WriteEntry(&e); err != nil {
			t.Fatalf("WriteEntry failed: %v", err)
		}
	}

	var seen int
	err := ReadEntries(&buf, func(*types.Entry) error {
		seen++
		if seen == 2 {
			return ErrStop
		}
		return nil
	})
	if err != nil {
		t.Fatalf("ReadEntries = %v, want nil", err)
	}
	if seen != 2 {
		t.Errorf("callback ran %d times, want 2", seen)
	}
}

func TestReadEntries_TruncatedTail(t *testing.T) {
	var buf bytes.Buffer
	e := interaction("e1")
	if err := NewFrameEncoder(&buf).WriteEntry(&e); err != nil {
		t.Fatalf("WriteEntry failed: %v", err)
	}
	buf.Write([]byte{0x00, 0x00})

	var seen int
	err := ReadEntries(&buf, func(*types.Entry) error {
		seen++
		return nil
	})
	if !IsFatalFrameError(err) {
		t.Errorf("ReadEntries = %v, want fatal frame error", err)
	}
	if seen != 1 {
		t.Errorf("callback ran %d times before the bad frame, want 1", seen)
	}
}

func TestFileSink_AppendAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "interaction.fb.data")

	sink, err := OpenFileSink(path)
	if err != nil {
		t.Fatalf("OpenFileSink failed: %v", err)
	}
	if err := sink.WriteEntries(t.Context(), []types.Entry{interaction("e1"), interaction("e2")}); err != nil {
		t.Fatalf("WriteEntries failed: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Errorf("second Close = %v, want nil", err)
	}

	// Reopening appends after the existing frames.
	sink, err = OpenFileSink(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	if err := sink.WriteEntries(t.Context(), []types.Entry{interaction("e3")}); err != nil {
		t.Fatalf("WriteEntries failed: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	entries, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	var ids []string
	for _, e := range entries {
		ids = append(ids, e.EventID())
	}
	if len(ids) != 3 || ids[0] != "e1" || ids[2] != "e3" {
		t.Errorf("event ids = %v, want [e1 e2 e3]", ids)
	}
}

func TestFileSink_FailedBatchLeavesNoFrames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mixed.fb.data")
	sink, err := OpenFileSink(path)
	if err != nil {
		t.Fatalf("OpenFileSink failed: %v", err)
	}

	big := interaction("big")
	big.Interaction.Context = bytes.Repeat([]byte("x"), MaxFrameSize+1)
	batch := []types.Entry{observation("ok", 1), big}

	// A retried batch must not append the leading entry again.
	for range 3 {
		if err := sink.WriteEntries(t.Context(), batch); err == nil {
			t.Fatal("WriteEntries with oversized entry succeeded")
		}
	}
	if err := sink.WriteEntries(t.Context(), []types.Entry{observation("after", 2)}); err != nil {
		t.Fatalf("WriteEntries failed: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	entries, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if len(entries) != 1 || entries[0].EventID() != "after" {
		var ids []string
		for _, e := range entries {
			ids = append(ids, e.EventID())
		}
		t.Errorf("event ids = %v, want [after]", ids)
	}
}

func TestFileSink_CheckEntry(t *testing.T) {
	sink, err := OpenFileSink(filepath.Join(t.TempDir(), "log"))
	if err != nil {
		t.Fatalf("OpenFileSink failed: %v", err)
	}
	defer sink.Close()

	ok := interaction("e1")
	if err := sink.CheckEntry(&ok); err != nil {
		t.Errorf("CheckEntry(small) = %v, want nil", err)
	}

	big := interaction("big")
	big.Interaction.Context = bytes.Repeat([]byte("x"), MaxFrameSize+1)
	err = sink.CheckEntry(&big)
	var fe *FrameError
	if !errors.As(err, &fe) || fe.Kind != FrameErrorTooLarge {
		t.Errorf("CheckEntry(big) = %v, want too-large frame error", err)
	}
}

func TestFileSink_WriteAfterClose(t *testing.T) {
	sink, err := OpenFileSink(filepath.Join(t.TempDir(), "log"))
	if err != nil {
		t.Fatalf("OpenFileSink failed: %v", err)
	}
	_ = sink.Close()

	err = sink.WriteEntries(t.Context(), []types.Entry{interaction("e1")})
	if !errors.Is(err, policy.ErrPolicyClosed) {
		t.Errorf("WriteEntries after Close = %v, want ErrPolicyClosed", err)
	}
}

func TestOpenFileSink_BadPath(t *testing.T) {
	if _, err := OpenFileSink(filepath.Join(t.TempDir(), "missing", "log")); err == nil {
		t.Error("expected error for missing directory")
	}
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("LoadFile = %v, want ErrNotExist", err)
	}
}
