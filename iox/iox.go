// Package iox provides I/O helpers for resource cleanup and CLI stream selection.
package iox

import (
	"errors"
	"io"
	"os"
)

// DiscardClose closes c and discards the error.
//
//	defer iox.DiscardClose(f)
func DiscardClose(c io.Closer) { _ = c.Close() }

// CloseFunc returns a cleanup function that closes c, for t.Cleanup:
//
//	t.Cleanup(iox.CloseFunc(client))
func CloseFunc(c io.Closer) func() {
	return func() { _ = c.Close() }
}

// CloseAll closes every non-nil closer in order and joins the errors.
func CloseAll(closers ...io.Closer) error {
	var errs []error
	for _, c := range closers {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// StdStream is the path that selects stdin or stdout.
const StdStream = "-"

type nopReadCloser struct{ io.Reader }

func (nopReadCloser) Close() error { return nil }

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// OpenInput opens path for reading. An empty path or "-" returns stdin,
// whose Close is a no-op.
func OpenInput(path string) (io.ReadCloser, error) {
	if path == "" || path == StdStream {
		return nopReadCloser{os.Stdin}, nil
	}
	return os.Open(path)
}

// CreateOutput creates (or truncates) path for writing. An empty path or
// "-" returns stdout, whose Close is a no-op.
func CreateOutput(path string) (io.WriteCloser, error) {
	if path == "" || path == StdStream {
		return nopWriteCloser{os.Stdout}, nil
	}
	return os.Create(path)
}
