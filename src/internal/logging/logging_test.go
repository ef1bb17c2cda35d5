// FILE: logfan/src/internal/logging/logging_test.go
package logging

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"logfan/src/internal/core"
	"logfan/src/internal/engine"
	"logfan/src/internal/logconfig"
	"logfan/src/internal/sink"

	"github.com/lixenwraith/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu   sync.Mutex
	msgs []core.LogMessage
	err  error
}

func (r *recorder) Submit(msg core.LogMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.msgs = append(r.msgs, msg)
	return nil
}

func (r *recorder) all() []core.LogMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]core.LogMessage(nil), r.msgs...)
}

func TestThresholdFiltersBeforeSubmit(t *testing.T) {
	reg := logconfig.New()
	rec := &recorder{}
	l := New(reg, rec)

	l.LogDebug("not shown")
	l.Debugf("expensive %v", "args")
	l.LogTrace("not shown")
	assert.Empty(t, rec.all())

	l.LogInfo("shown")
	l.Errorf("disk %s", "full")
	l.Logf(core.SeverityWarning, "%d%%", 95)
	l.LogString(core.SeverityCritical, "raw")

	got := rec.all()
	require.Len(t, got, 4)
	assert.Equal(t, core.SeverityError, got[1].Severity)
	assert.Equal(t, "disk full", got[1].Text)
	assert.Equal(t, "95%", got[2].Text)
	assert.Equal(t, core.SeverityCritical, got[3].Severity)

	reg.SetThreshold(core.SeverityTrace)
	assert.True(t, l.IsSeverityLevelEnabled(core.SeverityTrace))
	l.LogTrace("now shown")
	assert.Len(t, rec.all(), 5)
}

func TestLocationCapture(t *testing.T) {
	reg := logconfig.New()
	rec := &recorder{}
	l := New(reg, rec)

	l.LogError("no location")
	reg.SetShowLocation(true)
	l.LogError("with location")
	l.Infof("formatted %d", 1)

	got := rec.all()
	require.Len(t, got, 3)
	assert.True(t, got[0].Location.IsZero())
	assert.Zero(t, got[0].GoroutineID)

	for _, m := range got[1:] {
		assert.Equal(t, "logging_test.go", filepath.Base(m.Location.File))
		assert.Contains(t, m.Location.Function, "TestLocationCapture")
		assert.NotZero(t, m.Location.Line)
		assert.NotZero(t, m.GoroutineID)
	}
	assert.Equal(t, got[1].Location.Line+1, got[2].Location.Line)
	assert.NotZero(t, got[1].PID)
}

func TestLogStream(t *testing.T) {
	reg := logconfig.New()
	reg.SetShowLocation(true)
	rec := &recorder{}
	l := New(reg, rec)

	t.Run("accumulates until close", func(t *testing.T) {
		s := l.Stream(core.SeverityWarning)
		s.Print("copied ", 3)
		s.Printf(" of %d", 5)
		fmt.Fprint(s, " files")
		assert.Empty(t, rec.all())

		require.NoError(t, s.Close())
		require.NoError(t, s.Close())
		got := rec.all()
		require.Len(t, got, 1)
		assert.Equal(t, "copied 3 of 5 files", got[0].Text)
		assert.Equal(t, core.SeverityWarning, got[0].Severity)
		assert.Contains(t, got[0].Location.Function, "TestLogStream")
	})

	t.Run("empty body is not emitted", func(t *testing.T) {
		before := len(rec.all())
		require.NoError(t, l.Stream(core.SeverityError).Close())
		assert.Len(t, rec.all(), before)
	})

	t.Run("disabled severity discards", func(t *testing.T) {
		before := len(rec.all())
		s := l.Stream(core.SeverityDebug)
		n, err := s.Write([]byte("dropped"))
		require.NoError(t, err)
		assert.Equal(t, 7, n)
		require.NoError(t, s.Close())
		assert.Len(t, rec.all(), before)
	})
}

func TestHexDumps(t *testing.T) {
	reg := logconfig.New()
	rec := &recorder{}
	l := New(reg, rec)

	l.ListenTransmit("COM1", []byte{0x00, 0x0a, 0xff})
	assert.Empty(t, rec.all(), "gated by listen output")

	reg.EnableLogType(core.LogToListen)
	l.ListenTransmit("COM1", []byte{0x00, 0x0a, 0xff})
	l.ListenReceive("", []byte{0x41})

	got := rec.all()
	require.Len(t, got, 2)
	assert.Equal(t, "COM1 > 00 0a ff", got[0].Text)
	assert.Equal(t, core.SeverityTrace, got[0].Severity)
	assert.Equal(t, "< 41", got[1].Text)
}

func TestRejectedSubmissions(t *testing.T) {
	rec := &recorder{err: errors.New("stopped")}
	l := New(logconfig.New(), rec)
	l.LogError("lost")
	assert.Equal(t, uint64(1), l.Rejected())

	orphan := New(logconfig.New(), nil)
	orphan.LogError("nowhere")
	assert.Equal(t, uint64(1), orphan.Rejected())
}

func TestSeverityString(t *testing.T) {
	assert.Equal(t, "Error", SeverityString(core.SeverityError))
	assert.Equal(t, "Emergency", SeverityString(core.SeverityEmergency))
}

func TestThroughEngine(t *testing.T) {
	reg := logconfig.New()
	reg.SetLogType(core.LogToList)
	list := sink.NewList(10)
	e := engine.New(engine.Options{Registry: reg, Sinks: []sink.Sink{list}}, log.NewLogger())
	require.NoError(t, e.Start())

	l := New(reg, e)
	l.LogDebug("below threshold")
	l.LogError("disk full")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, e.Shutdown(ctx))

	assert.Equal(t, uint64(1), e.Enqueued())
	require.Equal(t, 1, list.Len())
	m, _ := list.Get(0)
	assert.Equal(t, "disk full", m.Text)

	l.LogError("after shutdown")
	assert.Equal(t, uint64(1), l.Rejected())
}
