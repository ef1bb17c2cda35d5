// FILE: logfan/src/internal/listen/listener_test.go
package listen

import (
	"bytes"
	"errors"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"logfan/src/internal/core"

	"github.com/lixenwraith/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *log.Logger {
	return log.NewLogger()
}

// fakeClient records writes in memory.
type fakeClient struct {
	clientState
	mu      sync.Mutex
	got     [][]byte
	failing bool
	closed  atomic.Bool
}

func newFakeClient(name string) *fakeClient {
	c := &fakeClient{}
	c.setup(name)
	return c
}

func (c *fakeClient) Write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failing {
		c.markDisconnected()
		return ErrDisconnected
	}
	c.got = append(c.got, data)
	c.messages.Add(1)
	return nil
}

func (c *fakeClient) Close() error {
	c.closed.Store(true)
	c.markDisconnected()
	return nil
}

func (c *fakeClient) writes() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.got...)
}

// countingStream counts Encode calls.
type countingStream struct {
	calls atomic.Int64
}

func (s *countingStream) Encode(msg core.LogMessage) ([]byte, error) {
	s.calls.Add(1)
	return []byte(msg.Text), nil
}

func TestBaseEncodesOncePerDelivery(t *testing.T) {
	stream := &countingStream{}
	b := NewBase("l1", core.ListenServer, stream, newTestLogger())

	c1, c2, c3 := newFakeClient("a"), newFakeClient("b"), newFakeClient("c")
	b.Attach(c1)
	b.Attach(c2)
	b.Attach(c3)
	assert.True(t, b.IsActive())

	require.NoError(t, b.Deliver(core.NewLogMessage(core.SeverityInfo, "hello", core.Location{})))
	assert.Equal(t, int64(1), stream.calls.Load())
	assert.Equal(t, 3, b.Clients())
	for _, c := range []*fakeClient{c1, c2, c3} {
		require.Len(t, c.writes(), 1)
		assert.Equal(t, "hello", string(c.writes()[0]))
	}
	assert.Equal(t, uint64(1), b.NumberOfMessages())
}

func TestBaseEvictsDeadClientOnNextDelivery(t *testing.T) {
	b := NewBase("l1", core.ListenServer, &countingStream{}, newTestLogger())
	live, dead := newFakeClient("live"), newFakeClient("dead")
	b.Attach(live)
	b.Attach(dead)
	b.Poll()
	require.Equal(t, 2, b.Clients())

	dead.markDisconnected()

	require.NoError(t, b.Deliver(core.NewLogMessage(core.SeverityInfo, "m1", core.Location{})))
	assert.Equal(t, 1, b.Clients())
	assert.True(t, dead.closed.Load())
	assert.Len(t, live.writes(), 1)
	assert.Empty(t, dead.writes())
	assert.Equal(t, uint64(1), b.NumberOfMessages(), "one increment per delivery")
	assert.Equal(t, uint64(1), b.Stats().Evicted)
}

func TestBaseWriteFailureEvictsLazily(t *testing.T) {
	b := NewBase("l1", core.ListenServer, &countingStream{}, newTestLogger())
	bad := newFakeClient("bad")
	bad.failing = true
	b.Attach(bad)

	require.NoError(t, b.Deliver(core.NewLogMessage(core.SeverityInfo, "m1", core.Location{})))
	assert.Equal(t, 1, b.Clients(), "eviction waits for the next delivery")
	assert.Equal(t, uint64(1), b.Stats().WriteErrors)

	b.Poll()
	assert.Equal(t, 0, b.Clients())
	assert.False(t, b.IsActive())
}

func TestBaseSkipsEncodeWithoutInterest(t *testing.T) {
	stream := &countingStream{}
	b := NewBase("l1", core.ListenServer, stream, newTestLogger())

	require.NoError(t, b.Deliver(core.NewLogMessage(core.SeverityInfo, "nobody", core.Location{})))
	assert.Zero(t, stream.calls.Load())
	assert.Zero(t, b.NumberOfMessages())

	c := newFakeClient("errors-only")
	c.SetLevelMask(core.MaskFrom(core.SeverityError))
	b.Attach(c)

	require.NoError(t, b.Deliver(core.NewLogMessage(core.SeverityInfo, "filtered", core.Location{})))
	require.NoError(t, b.Deliver(core.NewLogMessage(core.SeverityError, "kept", core.Location{})))
	assert.Equal(t, int64(1), stream.calls.Load())
	require.Len(t, c.writes(), 1)
	assert.Equal(t, "kept", string(c.writes()[0]))
}

func TestBaseListenerLevel(t *testing.T) {
	b := NewBase("l1", core.ListenServer, &countingStream{}, newTestLogger())
	c := newFakeClient("a")
	b.Attach(c)
	b.SetLogLevel(core.MaskFrom(core.SeverityWarning))

	require.NoError(t, b.Deliver(core.NewLogMessage(core.SeverityInfo, "info", core.Location{})))
	require.NoError(t, b.Deliver(core.NewLogMessage(core.SeverityWarning, "warn", core.Location{})))
	assert.Len(t, c.writes(), 1)
	assert.Equal(t, "Warning,Error,Critical,Alert,Emergency", b.LogLevel().String())
}

func TestBaseEncodeError(t *testing.T) {
	stream := StreamFunc(func(core.LogMessage) ([]byte, error) { return nil, errors.New("boom") })
	b := NewBase("l1", core.ListenServer, stream, newTestLogger())
	b.Attach(newFakeClient("a"))

	err := b.Deliver(core.NewLogMessage(core.SeverityInfo, "x", core.Location{}))
	assert.Error(t, err)
	assert.Zero(t, b.NumberOfMessages())
	assert.Equal(t, uint64(1), b.Stats().EncodeErrors)
}

func TestBaseAttachWakesAndHooks(t *testing.T) {
	b := NewBase("l1", core.ListenServer, &countingStream{}, newTestLogger())
	var wakes atomic.Int64
	b.SetWaker(func() { wakes.Add(1) })

	var attached []uint64
	b.OnAttach(func(c Client) { attached = append(attached, c.ID()) })

	c := newFakeClient("a")
	b.Attach(c)
	assert.Equal(t, int64(1), wakes.Load())
	assert.Equal(t, 0, b.Clients())
	assert.True(t, b.IsActive(), "pending clients make the listener active")

	b.Poll()
	assert.Equal(t, []uint64{c.ID()}, attached)
	assert.Equal(t, 1, b.Clients())
}

func TestBaseCloseClients(t *testing.T) {
	b := NewBase("l1", core.ListenServer, &countingStream{}, newTestLogger())
	attached, pending := newFakeClient("a"), newFakeClient("b")
	b.Attach(attached)
	b.Poll()
	b.Attach(pending)

	b.CloseClients()
	assert.True(t, attached.closed.Load())
	assert.True(t, pending.closed.Load())
	assert.False(t, b.IsActive())

	late := newFakeClient("late")
	b.Attach(late)
	assert.True(t, late.closed.Load())

	require.NoError(t, b.Deliver(core.NewLogMessage(core.SeverityInfo, "x", core.Location{})))
	assert.Zero(t, b.NumberOfMessages())
}

func TestConsoleListener(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(core.ListenConfig{Name: "console", Kind: core.ListenConsole, PreText: "[app]"}, &buf, newTestLogger())
	require.NoError(t, c.Start(t.Context()))
	assert.True(t, c.IsActive())

	ts := time.Date(2024, 1, 2, 3, 4, 5, 6_000_000, time.UTC)
	msg := core.LogMessage{Time: ts, Severity: core.SeverityError, Text: "disk full"}
	require.NoError(t, c.Deliver(msg))
	assert.Equal(t, "2024-01-02 03:04:05.006 [app] disk full\n", buf.String())
	assert.Equal(t, uint64(1), c.NumberOfMessages())

	c.Stop()
	assert.False(t, c.IsActive())
}

func TestConnClientWritesInOrder(t *testing.T) {
	server, peer := net.Pipe()
	c := NewConnClient(server, false)

	done := make(chan string)
	go func() {
		var sb strings.Builder
		buf := make([]byte, 64)
		for sb.Len() < 6 {
			n, err := peer.Read(buf)
			if err != nil {
				break
			}
			sb.Write(buf[:n])
		}
		done <- sb.String()
	}()

	require.NoError(t, c.Write([]byte("ab")))
	require.NoError(t, c.Write([]byte("cd")))
	require.NoError(t, c.Write([]byte("ef")))

	select {
	case got := <-done:
		assert.Equal(t, "abcdef", got)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for writes")
	}

	require.NoError(t, peer.Close())
	require.NoError(t, c.Write([]byte("x")))
	assert.Eventually(t, func() bool { return !c.IsConnected() }, 2*time.Second, 10*time.Millisecond)
	assert.ErrorIs(t, c.Write([]byte("y")), ErrDisconnected)
	_ = c.Close()
}
