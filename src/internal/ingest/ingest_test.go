// FILE: logfan/src/internal/ingest/ingest_test.go
package ingest

import (
	"strings"
	"sync"
	"testing"

	"logfan/src/internal/core"
	"logfan/src/internal/logconfig"
	"logfan/src/internal/logging"

	"github.com/lixenwraith/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu   sync.Mutex
	msgs []core.LogMessage
}

func (r *recorder) Submit(msg core.LogMessage) error {
	r.mu.Lock()
	r.msgs = append(r.msgs, msg)
	r.mu.Unlock()
	return nil
}

func TestDetectSeverity(t *testing.T) {
	tests := []struct {
		line string
		want core.Severity
		ok   bool
	}{
		{"[ERROR] disk full", core.SeverityError, true},
		{"2024-01-02 WARN: slow", core.SeverityWarning, true},
		{"panic: runtime error", core.SeverityEmergency, true},
		{"debug: cache miss", core.SeverityDebug, true},
		{"plain text", 0, false},
		{"ERROR: retry after [WARN]", core.SeverityError, true},
	}
	for _, tt := range tests {
		got, ok := DetectSeverity(tt.line)
		assert.Equal(t, tt.ok, ok, tt.line)
		if tt.ok {
			assert.Equal(t, tt.want, got, tt.line)
		}
	}
}

func TestReaderRun(t *testing.T) {
	reg := logconfig.New()
	reg.SetThreshold(core.SeverityInfo)
	rec := &recorder{}
	target := logging.New(reg, rec)

	input := strings.NewReader("starting\r\n\n[DEBUG] noisy\nERROR: disk full\n   \nINFO: done\n")
	r := NewReader("stdin", input, target, core.SeverityNotice, log.NewLogger())
	require.NoError(t, r.Run(t.Context()))

	require.Len(t, rec.msgs, 3)
	assert.Equal(t, "starting", rec.msgs[0].Text)
	assert.Equal(t, core.SeverityNotice, rec.msgs[0].Severity)
	assert.Equal(t, core.SeverityError, rec.msgs[1].Severity)
	assert.Equal(t, "INFO: done", rec.msgs[2].Text)

	st := r.Stats()
	assert.Equal(t, "stdin", st.Name)
	assert.Equal(t, uint64(4), st.Lines)
	assert.Equal(t, uint64(1), st.Filtered)
	assert.False(t, st.LastEntryTime.IsZero())
}
