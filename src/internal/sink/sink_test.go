// FILE: logfan/src/internal/sink/sink_test.go
package sink

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"logfan/src/internal/config"
	"logfan/src/internal/core"
	"logfan/src/internal/directory"
	"logfan/src/internal/format"

	"github.com/lixenwraith/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *log.Logger {
	return log.NewLogger()
}

func rawFormatter(t *testing.T) format.Formatter {
	t.Helper()
	f, err := format.New("raw", nil, newTestLogger())
	require.NoError(t, err)
	return f
}

func msg(sev core.Severity, text string) core.LogMessage {
	return core.LogMessage{
		Time:     time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		Severity: sev,
		Text:     text,
	}
}

func TestConsoleSinkTargets(t *testing.T) {
	tests := []struct {
		target     string
		wantStdout string
		wantStderr string
	}{
		{"stdout", "info\nerror\n", ""},
		{"stderr", "", "info\nerror\n"},
		{"split", "info\n", "error\n"},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			s := NewConsoleSinkWriters(config.ConsoleConfig{Target: tt.target, Color: "auto"},
				&stdout, &stderr, rawFormatter(t), newTestLogger())

			require.NoError(t, s.Write(msg(core.SeverityInfo, "info")))
			require.NoError(t, s.Write(msg(core.SeverityError, "error")))

			assert.Equal(t, tt.wantStdout, stdout.String())
			assert.Equal(t, tt.wantStderr, stderr.String())
			assert.Equal(t, uint64(2), s.GetStats().TotalProcessed)
		})
	}
}

func TestConsoleSinkColor(t *testing.T) {
	var stdout bytes.Buffer
	s := NewConsoleSinkWriters(config.ConsoleConfig{Color: "always"}, &stdout, &stdout, rawFormatter(t), newTestLogger())

	require.NoError(t, s.Write(msg(core.SeverityError, "boom")))
	assert.Equal(t, "\033[31mboom\033[0m\n", stdout.String())

	stdout.Reset()
	require.NoError(t, s.Write(msg(core.SeverityInfo, "plain")))
	assert.Equal(t, "plain\n", stdout.String())
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("closed") }

func TestConsoleSinkWriteError(t *testing.T) {
	s := NewConsoleSinkWriters(config.ConsoleConfig{}, failingWriter{}, failingWriter{}, rawFormatter(t), newTestLogger())
	assert.Error(t, s.Write(msg(core.SeverityInfo, "x")))
	assert.Equal(t, uint64(1), s.GetStats().Errors)
}

func TestFileSinkValidation(t *testing.T) {
	logger := newTestLogger()
	f := rawFormatter(t)

	_, err := NewFileSink(config.FileSinkConfig{Name: "out"}, f, logger)
	assert.Error(t, err)
	_, err = NewFileSink(config.FileSinkConfig{Directory: t.TempDir()}, f, logger)
	assert.Error(t, err)
	_, err = NewFileSink(config.FileSinkConfig{Directory: t.TempDir(), Name: "out", Mode: "mirror"}, f, logger)
	assert.Error(t, err)
}

func TestFileSinkBackupRotation(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileSink(config.FileSinkConfig{
		Directory:  dir,
		Name:       "app.log",
		Mode:       "backup",
		MaxSizeMB:  1,
		MaxBackups: 2,
	}, rawFormatter(t), newTestLogger())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	// Force rotation after every second line
	s.maxBytes = 12

	for _, text := range []string{"line1", "line2", "line3", "line4", "line5"} {
		require.NoError(t, s.Write(msg(core.SeverityInfo, text)))
	}
	require.NoError(t, s.Flush())

	read := func(name string) string {
		data, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err)
		return string(data)
	}
	assert.Equal(t, "line5\n", read("app.log"))
	assert.Equal(t, "line3\nline4\n", read("app.log.1"))
	assert.Equal(t, "line1\nline2\n", read("app.log.2"))
	assert.NoFileExists(t, filepath.Join(dir, "app.log.3"))

	stats := s.GetStats()
	assert.Equal(t, uint64(5), stats.TotalProcessed)
	assert.Equal(t, uint64(2), stats.Details["rotations"])
}

type fakeDirectory struct {
	backups []string
	fail    error
}

func (d *fakeDirectory) IncludeList() ([]string, error) { return []string{"app.log"}, nil }
func (d *fakeDirectory) IncludeListToString() string    { return "include=*" }
func (d *fakeDirectory) BackupFiles(active string) error {
	d.backups = append(d.backups, active)
	return d.fail
}

type memFile struct {
	buf    bytes.Buffer
	closed bool
}

func (f *memFile) Append(p []byte) error { _, err := f.buf.Write(p); return err }
func (f *memFile) Size() int64           { return int64(f.buf.Len()) }
func (f *memFile) Path() string          { return "mem/app.log" }
func (f *memFile) Close() error          { f.closed = true; return nil }

func TestDirectorySinkCollaborator(t *testing.T) {
	dir := &fakeDirectory{}
	var files []*memFile
	open := func() (directory.File, error) {
		f := &memFile{}
		files = append(files, f)
		return f, nil
	}

	s, err := NewDirectorySink(dir, open, 8, rawFormatter(t), newTestLogger())
	require.NoError(t, err)

	require.NoError(t, s.Write(msg(core.SeverityInfo, "aaaa")))
	require.NoError(t, s.Write(msg(core.SeverityInfo, "bbbb")))
	assert.Equal(t, []string{"mem/app.log"}, dir.backups)
	require.Len(t, files, 2)
	assert.True(t, files[0].closed)
	assert.Equal(t, "bbbb\n", files[1].buf.String())

	t.Run("rotation failure keeps writing", func(t *testing.T) {
		dir.fail = errors.New("permission denied")
		err := s.Write(msg(core.SeverityInfo, "cccc"))
		assert.ErrorIs(t, err, dir.fail)
		require.Len(t, files, 3)
		assert.Equal(t, "cccc\n", files[2].buf.String())
		assert.Equal(t, uint64(1), s.GetStats().Errors)

		require.NoError(t, s.Write(msg(core.SeverityInfo, "d")))
		assert.Equal(t, "cccc\nd\n", files[2].buf.String())
	})
}

func TestDirectorySinkExcludedActiveFile(t *testing.T) {
	root := t.TempDir()
	local, err := directory.NewLocal(root, []string{"*.log"}, nil, 2)
	require.NoError(t, err)
	open := func() (directory.File, error) { return local.Open("app.txt") }

	s, err := NewDirectorySink(local, open, 10, rawFormatter(t), newTestLogger())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	require.NoError(t, s.Write(msg(core.SeverityInfo, "first-msg")))
	for _, text := range []string{"second-msg", "third-msg"} {
		err := s.Write(msg(core.SeverityInfo, text))
		assert.ErrorIs(t, err, directory.ErrNotIncluded)
	}
	require.NoError(t, s.Flush())

	data, err := os.ReadFile(filepath.Join(root, "app.txt"))
	require.NoError(t, err)
	assert.Equal(t, "first-msg\nsecond-msg\nthird-msg\n", string(data))

	stats := s.GetStats()
	assert.Equal(t, uint64(3), stats.TotalProcessed)
	assert.Equal(t, uint64(2), stats.Errors)
	assert.Equal(t, uint64(0), stats.Details["rotations"])
	assert.Equal(t, uint64(2), stats.Details["rotate_errors"])
	assert.NoFileExists(t, filepath.Join(root, "app.txt.1"))
}

func TestListNewestFirst(t *testing.T) {
	l := NewList(3)
	assert.Equal(t, 3, l.MaxSize())
	_, ok := l.Get(0)
	assert.False(t, ok)

	for _, text := range []string{"a", "b", "c", "d"} {
		require.NoError(t, l.Write(msg(core.SeverityInfo, text)))
	}

	assert.Equal(t, 3, l.Len())
	assert.Equal(t, uint64(4), l.ChangeNumber())

	first, ok := l.Get(0)
	require.True(t, ok)
	assert.Equal(t, "d", first.Text)
	last, ok := l.Get(2)
	require.True(t, ok)
	assert.Equal(t, "b", last.Text)
	_, ok = l.Get(3)
	assert.False(t, ok)

	var texts []string
	for _, m := range l.Snapshot() {
		texts = append(texts, m.Text)
	}
	assert.Equal(t, []string{"d", "c", "b"}, texts)

	l.Clear()
	assert.Equal(t, 0, l.Len())
	assert.Equal(t, uint64(5), l.ChangeNumber())
	assert.Equal(t, uint64(4), l.GetStats().TotalProcessed)
}

func TestListDefaultSize(t *testing.T) {
	assert.Equal(t, DefaultListSize, NewList(0).MaxSize())
}
