package errsink

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/justapithecus/rlfeed/log"
	"github.com/justapithecus/rlfeed/metrics"
	"github.com/justapithecus/rlfeed/types"
)

func TestWriterSink(t *testing.T) {
	var buf bytes.Buffer
	NewWriterSink(&buf).OnError(7, "flush failed")

	assert.Equal(t, "Background error in Inference API: flush failed\n", buf.String())
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(&types.RunMeta{RunID: "run-1", AppID: "app"}, &buf, zapcore.DebugLevel)

	NewLogSink(logger).OnError(12, "queue full")

	out := buf.String()
	assert.Contains(t, out, `"message":"background error"`)
	assert.Contains(t, out, `"code":12`)
	assert.Contains(t, out, `"run_id":"run-1"`)
}

func TestCountingSink(t *testing.T) {
	c := metrics.NewCollector("app", "run-1", "file", "DROP")
	sink := NewCountingSink(c)
	sink.OnError(1, "a")
	sink.OnError(2, "b")

	assert.Equal(t, int64(2), c.Snapshot().BackgroundErrors)

	// nil collector is a no-op
	NewCountingSink(nil).OnError(1, "a")
}

func TestMulti_SkipsNilAndPreservesOrder(t *testing.T) {
	var order []string
	first := Func(func(int, string) { order = append(order, "first") })
	second := Func(func(int, string) { order = append(order, "second") })

	Multi(first, nil, second).OnError(1, "x")

	assert.Equal(t, []string{"first", "second"}, order)
}

func TestSafe_RecoversPanic(t *testing.T) {
	panicky := Func(func(int, string) { panic("boom") })
	rec := NewRecorder()

	require.NotPanics(t, func() {
		Multi(Safe(panicky), rec).OnError(3, "after panic")
	})
	assert.Equal(t, []Report{{Code: 3, Message: "after panic"}}, rec.Reports())
}

func TestNew_ComposesAllSinks(t *testing.T) {
	var diag, logs bytes.Buffer
	c := metrics.NewCollector("app", "run-1", "file", "DROP")

	sink := New(Options{
		Logger:      log.New(nil, &logs, zapcore.DebugLevel),
		Diagnostics: &diag,
		Collector:   c,
	})
	sink.OnError(5, "disk full")

	assert.Equal(t, int64(1), c.Snapshot().BackgroundErrors)
	assert.True(t, strings.HasPrefix(diag.String(), "Background error in Inference API: disk full"))
	assert.Contains(t, logs.String(), "disk full")
}

func TestNew_Empty(t *testing.T) {
	require.NotPanics(t, func() { New(Options{}).OnError(1, "ignored") })
}

func TestRecorder_Concurrent(t *testing.T) {
	rec := NewRecorder()
	sink := New(Options{Diagnostics: &bytes.Buffer{}})
	both := Multi(rec, sink)

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			both.OnError(i, "concurrent")
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, rec.Len())
}

func TestNop(t *testing.T) {
	require.NotPanics(t, func() { Nop.OnError(1, "x") })
}
