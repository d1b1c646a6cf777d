package iox

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

type spyCloser struct {
	closed bool
	err    error
}

func (s *spyCloser) Close() error { s.closed = true; return s.err }

func TestDiscardClose(t *testing.T) {
	s := &spyCloser{err: errors.New("ignored")}
	DiscardClose(s)
	if !s.closed {
		t.Fatal("Close was not called")
	}
}

func TestCloseFunc(t *testing.T) {
	s := &spyCloser{}
	fn := CloseFunc(s)
	if s.closed {
		t.Fatal("Close called before invoking returned func")
	}
	fn()
	if !s.closed {
		t.Fatal("Close was not called")
	}
}

func TestCloseAll(t *testing.T) {
	errA := errors.New("a")
	errB := errors.New("b")
	first := &spyCloser{err: errA}
	second := &spyCloser{}
	third := &spyCloser{err: errB}

	err := CloseAll(first, nil, second, third)
	if !first.closed || !second.closed || !third.closed {
		t.Fatal("every closer should be closed")
	}
	if !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Errorf("CloseAll error = %v, want both errors joined", err)
	}
}

func TestCloseAll_NoErrors(t *testing.T) {
	if err := CloseAll(&spyCloser{}, &spyCloser{}); err != nil {
		t.Errorf("CloseAll error = %v, want nil", err)
	}
}

func TestOpenInput_Stdin(t *testing.T) {
	for _, path := range []string{"", StdStream} {
		rc, err := OpenInput(path)
		if err != nil {
			t.Fatalf("OpenInput(%q) failed: %v", path, err)
		}
		if err := rc.Close(); err != nil {
			t.Errorf("closing stdin wrapper should be a no-op, got %v", err)
		}
	}
}

func TestCreateOutput_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.txt")
	wc, err := CreateOutput(path)
	if err != nil {
		t.Fatalf("CreateOutput failed: %v", err)
	}
	if _, err := wc.Write([]byte("hello")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := wc.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	rc, err := OpenInput(path)
	if err != nil {
		t.Fatalf("OpenInput failed: %v", err)
	}
	defer DiscardClose(rc)
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(got) != "hello" {
		t.Errorf("file contents = %q, want hello", got)
	}
}
