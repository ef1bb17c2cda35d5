// FILE: logfan/src/cmd/logfan/commands_test.go
package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"logfan/src/internal/config"
	"logfan/src/internal/listen"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatRecord(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 30, 45, 120_000_000, time.UTC)
	assert.Equal(t, "2024-03-01T12:30:45.120 [api] disk full",
		formatRecord(listen.TextRecord{Time: ts, PreText: "api", Text: "disk full\n"}))
	assert.Equal(t, "plain", formatRecord(listen.TextRecord{Text: "plain"}))
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"console", "listen"}, splitList(" console, ,listen "))
	assert.Nil(t, splitList(""))
}

func TestRestartRequired(t *testing.T) {
	old := config.Defaults()
	cur := config.Defaults()
	assert.Empty(t, restartRequired(old, cur))

	cur.Engine.Threshold = "error"
	cur.Listeners = []config.ListenerConfig{{Name: "v", Kind: "console"}}
	assert.Empty(t, restartRequired(old, cur), "runtime sections apply live")

	cur.Console.Color = "never"
	cur.Status.Port = 9000
	cur.Engine.QueuePolicy = "drop_oldest"
	assert.Equal(t, []string{"engine.queue", "console", "status"}, restartRequired(old, cur))
}

func TestShouldReload(t *testing.T) {
	assert.True(t, shouldReload("engine.threshold"))
	assert.True(t, shouldReload("listeners"))
	assert.False(t, shouldReload("logging.level"))
}

func TestTLSCommand(t *testing.T) {
	dir := t.TempDir()
	var out bytes.Buffer
	cmd := &tlsCommand{out: &out}
	err := cmd.Execute([]string{
		"--cn", "localhost",
		"--hosts", "localhost,127.0.0.1",
		"--cert-out", filepath.Join(dir, "c.pem"),
		"--key-out", filepath.Join(dir, "k.pem"),
	})
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "c.pem"))
	assert.FileExists(t, filepath.Join(dir, "k.pem"))
	assert.Contains(t, out.String(), "c.pem")

	assert.Error(t, (&tlsCommand{out: &out}).Execute([]string{"--days", "3"}))
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, (&versionCommand{out: &out}).Execute(nil))
	assert.Contains(t, out.String(), "logfan")
}

func TestConsoleOnlyLoggersWriteNoFiles(t *testing.T) {
	t.Chdir(t.TempDir())

	diag, err := commandLogger(false)
	require.NoError(t, err)
	diag.Info("msg", "subcommand diagnostics")
	require.NoError(t, diag.Shutdown(time.Second))

	for _, output := range []string{"none", "stderr"} {
		cfg := &config.Config{Logging: &config.LogConfig{Output: output, Level: "info"}}
		require.NoError(t, initializeLogger(cfg), output)
		logger.Info("msg", "daemon diagnostics", "output", output)
		require.NoError(t, logger.Shutdown(time.Second))
		logger = nil
	}

	entries, err := os.ReadDir(".")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestScreenQuiet(t *testing.T) {
	var out, errOut bytes.Buffer
	s := &screen{out: &out, err: &errOut}

	s.announce("Listener %s: console\n", "tty")
	s.warn("Logger shutdown error: %v\n", "timeout")
	assert.Equal(t, "Listener tty: console\n", out.String())
	assert.Equal(t, "Logger shutdown error: timeout\n", errOut.String())

	out.Reset()
	errOut.Reset()
	s.quiet = true
	s.announce("hidden\n")
	s.warn("hidden\n")
	assert.Empty(t, out.String())
	assert.Empty(t, errOut.String())
}
