package binlog

import (
	"bytes"
	"testing"
	"testing/iotest"

	"github.com/justapithecus/rlfeed/types"
)

// buildEntryStream encodes n alternating interaction/observation entries.
func buildEntryStream(b *testing.B, n int) []byte {
	b.Helper()
	var buf bytes.Buffer
	enc := NewFrameEncoder(&buf)
	for i := range n {
		e := interaction("evt")
		if i%2 == 1 {
			e = observation("evt", 1)
		}
		if err := enc.WriteEntry(&e); err != nil {
			b.Fatalf("WriteEntry: %v", err)
		}
	}
	return buf.Bytes()
}

func BenchmarkReadEntries(b *testing.B) {
	data := buildEntryStream(b, 1000)
	b.SetBytes(int64(len(data)))
	b.ResetTimer()
	b.ReportAllocs()
	for range b.N {
		if err := ReadEntries(bytes.NewReader(data), func(*types.Entry) error { return nil }); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkReadEntries_OneByteReader exercises the decoder against a reader
// that returns a single byte per call.
func BenchmarkReadEntries_OneByteReader(b *testing.B) {
	data := buildEntryStream(b, 100)
	b.SetBytes(int64(len(data)))
	b.ResetTimer()
	b.ReportAllocs()
	for range b.N {
		r := iotest.OneByteReader(bytes.NewReader(data))
		if err := ReadEntries(r, func(*types.Entry) error { return nil }); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkWriteEntry(b *testing.B) {
	e := interaction("evt")
	var buf bytes.Buffer
	enc := NewFrameEncoder(&buf)

	b.ReportAllocs()
	for range b.N {
		buf.Reset()
		if err := enc.WriteEntry(&e); err != nil {
			b.Fatal(err)
		}
	}
}
