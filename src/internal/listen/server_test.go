// FILE: logfan/src/internal/listen/server_test.go
package listen

import (
	"context"
	"net"
	"testing"
	"time"

	"logfan/src/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return port
}

func TestServerStreamsToTail(t *testing.T) {
	cfg := core.ListenConfig{Name: "srv", Address: "127.0.0.1", Port: freePort(t), Kind: core.ListenServer, PreText: "node1"}
	l, err := New(cfg, Options{}, newTestLogger())
	require.NoError(t, err)
	srv := l.(*Server)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, srv.Start(ctx))
	defer srv.Stop()

	records := make(chan TextRecord, 16)
	levels := make(chan core.SeverityMask, 1)
	tail := &Tail{
		Address:  cfg.HostPort(),
		Mask:     core.MaskFrom(core.SeverityWarning),
		Retry:    100 * time.Millisecond,
		OnRecord: func(r TextRecord) { records <- r },
		OnLevels: func(m core.SeverityMask) {
			select {
			case levels <- m:
			default:
			}
		},
		Logger: newTestLogger(),
	}
	go func() { _ = tail.Run(ctx) }()

	require.Eventually(t, func() bool {
		srv.Poll()
		clients := srv.Snapshot()
		return len(clients) == 1 && clients[0].LevelMask() == core.MaskFrom(core.SeverityWarning)
	}, 3*time.Second, 10*time.Millisecond)

	select {
	case m := <-levels:
		assert.Equal(t, core.AllSeverities, m)
	case <-time.After(2 * time.Second):
		t.Fatal("no level announcement")
	}

	require.NoError(t, srv.Deliver(core.NewLogMessage(core.SeverityInfo, "filtered", core.Location{})))
	require.NoError(t, srv.Deliver(core.NewLogMessage(core.SeverityError, "disk full", core.Location{})))

	select {
	case r := <-records:
		assert.Equal(t, "disk full", r.Text)
		assert.Equal(t, "node1", r.PreText)
		assert.WithinDuration(t, time.Now(), r.Time, 5*time.Second)
	case <-time.After(2 * time.Second):
		t.Fatal("no record received")
	}
	assert.Equal(t, uint64(1), srv.NumberOfMessages())
}

// nextText skips control frames until a text frame arrives.
func nextText(t *testing.T, conn net.Conn) TextRecord {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		f, err := ReadFrame(conn)
		require.NoError(t, err)
		if f.Type != FrameText {
			continue
		}
		rec, err := DecodeText(f.Body)
		require.NoError(t, err)
		return rec
	}
}

func TestServerEvictsKilledViewer(t *testing.T) {
	cfg := core.ListenConfig{Name: "viewers", Address: "127.0.0.1", Port: freePort(t), Kind: core.ListenServer}
	srv := NewServer(cfg, nil, newTestLogger())
	require.NoError(t, srv.Start(context.Background()))
	defer srv.Stop()

	kept, err := net.Dial("tcp", cfg.HostPort())
	require.NoError(t, err)
	defer kept.Close()
	killed, err := net.Dial("tcp", cfg.HostPort())
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		srv.Poll()
		return srv.Clients() == 2
	}, 3*time.Second, 10*time.Millisecond)

	require.NoError(t, srv.Deliver(core.NewLogMessage(core.SeverityInfo, "both", core.Location{})))
	assert.Equal(t, "both", nextText(t, kept).Text)
	assert.Equal(t, "both", nextText(t, killed).Text)
	before := srv.NumberOfMessages()

	require.NoError(t, killed.Close())
	require.Eventually(t, func() bool {
		srv.Poll()
		return srv.Clients() == 1
	}, 3*time.Second, 10*time.Millisecond)

	require.NoError(t, srv.Deliver(core.NewLogMessage(core.SeverityInfo, "survivor", core.Location{})))
	assert.Equal(t, 1, srv.Clients())
	assert.Equal(t, "survivor", nextText(t, kept).Text)
	assert.Equal(t, before+1, srv.NumberOfMessages())
	assert.Equal(t, uint64(1), srv.Stats().Evicted)
}

func TestServerBindFailure(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	port := l.Addr().(*net.TCPAddr).Port

	srv := NewServer(core.ListenConfig{Name: "busy", Address: "127.0.0.1", Port: port}, nil, newTestLogger())
	assert.Error(t, srv.Start(context.Background()))
	srv.Stop()
}

func TestServerRelaysPeerText(t *testing.T) {
	got := make(chan string, 1)
	relay := func(from, share string, rec TextRecord) { got <- share + ":" + rec.Text }

	cfg := core.ListenConfig{Name: "agg", Address: "127.0.0.1", Port: freePort(t)}
	srv := NewServer(cfg, relay, newTestLogger())
	require.NoError(t, srv.Start(context.Background()))
	defer srv.Stop()

	conn, err := net.Dial("tcp", cfg.HostPort())
	require.NoError(t, err)
	defer conn.Close()

	frames := AppendFrame(nil, FrameHello, []byte("edge"))
	frames = append(frames, EncodeText(time.Now(), "", "forwarded")...)
	_, err = conn.Write(frames)
	require.NoError(t, err)

	select {
	case s := <-got:
		assert.Equal(t, "edge:forwarded", s)
	case <-time.After(2 * time.Second):
		t.Fatal("relay not called")
	}
}

func TestProxyForwardsToAggregator(t *testing.T) {
	agg, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer agg.Close()
	port := agg.Addr().(*net.TCPAddr).Port

	cfg := core.ListenConfig{Name: "px", Address: "127.0.0.1", Port: port, Kind: core.ListenProxy, ShareName: "edge"}
	l, err := New(cfg, Options{Retry: 50 * time.Millisecond}, newTestLogger())
	require.NoError(t, err)
	require.NoError(t, l.Start(context.Background()))
	defer l.Stop()

	conn, err := agg.Accept()
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))

	hello, err := ReadFrame(conn)
	require.NoError(t, err)
	assert.Equal(t, FrameHello, hello.Type)
	assert.Equal(t, "edge", string(hello.Body))

	require.Eventually(t, func() bool {
		l.Poll()
		return l.Clients() == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, l.Deliver(core.NewLogMessage(core.SeverityNotice, "via proxy", core.Location{})))
	f, err := ReadFrame(conn)
	require.NoError(t, err)
	rec, err := DecodeText(f.Body)
	require.NoError(t, err)
	assert.Equal(t, "via proxy", rec.Text)
}

func TestNewRejectsBadConfig(t *testing.T) {
	_, err := New(core.ListenConfig{Kind: core.ListenServer, Port: 1}, Options{}, newTestLogger())
	assert.Error(t, err)
	_, err = New(core.ListenConfig{Name: "x", Kind: core.ListenServer}, Options{}, newTestLogger())
	assert.Error(t, err)
	_, err = New(core.ListenConfig{Name: "x", Kind: core.ListenKind(9), Port: 1}, Options{}, newTestLogger())
	assert.Error(t, err)
}
