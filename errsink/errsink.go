// Package errsink receives failures raised by the client's background
// machinery after the call that caused them has already returned.
//
// Sinks may be invoked from any goroutine, concurrently with dispatch and
// after the stream has ended. OnError never panics and never blocks on
// dispatcher state.
package errsink

import (
	"fmt"
	"io"
	"sync"

	"github.com/justapithecus/rlfeed/log"
	"github.com/justapithecus/rlfeed/metrics"
)

// ErrorSink handles an asynchronous (code, message) error report.
type ErrorSink interface {
	OnError(code int, message string)
}

// Func adapts a function to ErrorSink.
type Func func(code int, message string)

// OnError calls f.
func (f Func) OnError(code int, message string) {
	f(code, message)
}

// Nop discards every report.
var Nop ErrorSink = Func(func(int, string) {})

// diagnosticPrefix opens every human-readable background error line.
const diagnosticPrefix = "Background error in Inference API"

// FormatDiagnostic renders the human-readable line for a report.
func FormatDiagnostic(message string) string {
	return diagnosticPrefix + ": " + message
}

// WriterSink writes one diagnostic line per report to w. Writes are
// serialized; write failures are ignored.
type WriterSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterSink creates a sink writing to w.
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

// OnError implements ErrorSink.
func (s *WriterSink) OnError(_ int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = fmt.Fprintln(s.w, FormatDiagnostic(message))
}

// LogSink records each report as a structured warning.
type LogSink struct {
	logger *log.Logger
}

// NewLogSink creates a sink logging through logger.
func NewLogSink(logger *log.Logger) *LogSink {
	return &LogSink{logger: logger.Named("errsink")}
}

// OnError implements ErrorSink.
func (s *LogSink) OnError(code int, message string) {
	s.logger.Warn("background error", map[string]any{
		"code":    code,
		"message": message,
	})
}

// CountingSink increments the background error counter.
type CountingSink struct {
	collector *metrics.Collector
}

// NewCountingSink creates a sink counting into c. A nil collector is allowed.
func NewCountingSink(c *metrics.Collector) *CountingSink {
	return &CountingSink{collector: c}
}

// OnError implements ErrorSink.
func (s *CountingSink) OnError(int, string) {
	s.collector.IncBackgroundErrors()
}

// Multi fans a report out to every sink in order. Nil sinks are skipped.
func Multi(sinks ...ErrorSink) ErrorSink {
	filtered := make([]ErrorSink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			filtered = append(filtered, s)
		}
	}
	return multi(filtered)
}

type multi []ErrorSink

func (m multi) OnError(code int, message string) {
	for _, s := range m {
		s.OnError(code, message)
	}
}

// Safe wraps a sink so a panic inside it is recovered and discarded.
func Safe(inner ErrorSink) ErrorSink {
	return safe{inner: inner}
}

type safe struct {
	inner ErrorSink
}

func (s safe) OnError(code int, message string) {
	defer func() { _ = recover() }()
	s.inner.OnError(code, message)
}

// Options configures New.
type Options struct {
	// Logger receives a structured warning per report. Optional.
	Logger *log.Logger
	// Diagnostics receives the human-readable line. Optional.
	Diagnostics io.Writer
	// Collector counts reports. Optional.
	Collector *metrics.Collector
}

// New builds the sink used by the run command: count, log and print,
// each isolated against panics.
func New(opts Options) ErrorSink {
	var sinks []ErrorSink
	if opts.Collector != nil {
		sinks = append(sinks, Safe(NewCountingSink(opts.Collector)))
	}
	if opts.Logger != nil {
		sinks = append(sinks, Safe(NewLogSink(opts.Logger)))
	}
	if opts.Diagnostics != nil {
		sinks = append(sinks, Safe(NewWriterSink(opts.Diagnostics)))
	}
	return Safe(Multi(sinks...))
}

// Report is one recorded OnError call.
type Report struct {
	Code    int
	Message string
}

// Recorder is a test sink that keeps every report.
type Recorder struct {
	mu      sync.Mutex
	reports []Report
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// OnError implements ErrorSink.
func (r *Recorder) OnError(code int, message string) {
	r.mu.Lock()
	r.reports = append(r.reports, Report{Code: code, Message: message})
	r.mu.Unlock()
}

// Reports returns a copy of the recorded reports.
func (r *Recorder) Reports() []Report {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Report, len(r.reports))
	copy(out, r.reports)
	return out
}

// Len returns the number of recorded reports.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.reports)
}

var (
	_ ErrorSink = Func(nil)
	_ ErrorSink = (*WriterSink)(nil)
	_ ErrorSink = (*LogSink)(nil)
	_ ErrorSink = (*CountingSink)(nil)
	_ ErrorSink = (*Recorder)(nil)
)
