// FILE: logfan/src/internal/syslogserver/server_test.go
package syslogserver

import (
	"bufio"
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"logfan/src/internal/config"
	"logfan/src/internal/core"
	"logfan/src/internal/syslog"
	ltls "logfan/src/internal/tls"

	"github.com/lixenwraith/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *log.Logger {
	return log.NewLogger()
}

func freePort(t *testing.T) int64 {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return int64(port)
}

func freeUDPPort(t *testing.T) int64 {
	t.Helper()
	c, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	port := c.LocalAddr().(*net.UDPAddr).Port
	require.NoError(t, c.Close())
	return int64(port)
}

func msg(sev core.Severity, text string) core.LogMessage {
	return core.NewLogMessage(sev, text, core.Location{File: "main.go", Line: 42, Function: "main.run"})
}

// readFrame reads one octet-counted frame.
func readFrame(t *testing.T, r *bufio.Reader) *syslog.Message {
	t.Helper()
	var n int
	_, err := fmt.Fscanf(r, "%d ", &n)
	require.NoError(t, err)
	buf := make([]byte, n)
	_, err = io.ReadFull(r, buf)
	require.NoError(t, err)
	m, err := syslog.Parse(buf)
	require.NoError(t, err)
	return m
}

func waitClients(t *testing.T, s Server, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		s.Poll()
		return s.NofConnections() == n
	}, 3*time.Second, 10*time.Millisecond)
}

func TestStateMachine(t *testing.T) {
	srv, err := New(config.SyslogConfig{Name: "s1", Type: "tcp", Address: "127.0.0.1", Port: freePort(t)}, newTestLogger())
	require.NoError(t, err)

	assert.Equal(t, StateStopped, srv.State())
	assert.False(t, srv.IsOperable())

	require.NoError(t, srv.Start(context.Background()))
	assert.Equal(t, StateOperable, srv.State())
	assert.True(t, srv.IsOperable())
	assert.ErrorIs(t, srv.Start(context.Background()), ErrAlreadyStarted)

	srv.Stop()
	assert.Equal(t, StateStopped, srv.State())
	assert.False(t, srv.IsOperable())
	srv.Stop()
}

func TestBindFailureLeavesStopped(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	port := int64(l.Addr().(*net.TCPAddr).Port)

	srv, err := NewTCP(config.SyslogConfig{Name: "busy", Address: "127.0.0.1", Port: port}, newTestLogger())
	require.NoError(t, err)
	assert.Error(t, srv.Start(context.Background()))
	assert.Equal(t, StateStopped, srv.State())
}

func TestTCPDeliveryIndexAndSeverity(t *testing.T) {
	cfg := config.SyslogConfig{Name: "tcp1", Type: "tcp", Address: "127.0.0.1", Port: freePort(t), Facility: "local4"}
	srv, err := New(cfg, newTestLogger())
	require.NoError(t, err)
	srv.Configure("app", true)
	require.NoError(t, srv.Start(context.Background()))
	defer srv.Stop()

	conn, err := net.Dial("tcp", fmt.Sprintf("127.0.0.1:%d", cfg.Port))
	require.NoError(t, err)
	defer conn.Close()
	waitClients(t, srv, 1)

	require.NoError(t, srv.Deliver(msg(core.SeverityDebug, "below minimum")))
	require.NoError(t, srv.Deliver(msg(core.SeverityError, "disk full")))
	require.NoError(t, srv.Deliver(msg(core.SeverityInfo, "second")))
	assert.Equal(t, uint64(2), srv.Index(), "filtered messages do not consume an index")
	assert.Equal(t, uint64(2), srv.NofMessages())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	r := bufio.NewReader(conn)

	first := readFrame(t, r)
	assert.Equal(t, uint64(1), first.Index)
	assert.Equal(t, syslog.SeverityError, first.Severity)
	assert.Equal(t, syslog.FacilityLocal4, first.Facility)
	assert.Equal(t, 20*8+3, first.Priority())
	assert.Equal(t, "app", first.AppName)
	assert.Equal(t, "disk full", first.Text)
	loc, ok := first.Lookup(syslog.SourceLocationID)
	require.True(t, ok)
	line, _ := loc.Get("Line")
	assert.Equal(t, "42", line)

	second := readFrame(t, r)
	assert.Equal(t, uint64(2), second.Index)
	assert.Equal(t, syslog.SeverityInformational, second.Severity)
}

func TestIndexSurvivesReconnect(t *testing.T) {
	cfg := config.SyslogConfig{Name: "tcp-re", Type: "tcp", Address: "127.0.0.1", Port: freePort(t)}
	srv, err := New(cfg, newTestLogger())
	require.NoError(t, err)
	require.NoError(t, srv.Start(context.Background()))
	defer srv.Stop()
	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Port)

	first, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	waitClients(t, srv, 1)
	require.NoError(t, srv.Deliver(msg(core.SeverityInfo, "before")))
	require.NoError(t, first.SetReadDeadline(time.Now().Add(3*time.Second)))
	m := readFrame(t, bufio.NewReader(first))
	assert.Equal(t, uint64(1), m.Index)
	assert.Equal(t, "before", m.Text)

	require.NoError(t, first.Close())
	waitClients(t, srv, 0)

	second, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer second.Close()
	waitClients(t, srv, 1)
	require.NoError(t, srv.Deliver(msg(core.SeverityInfo, "after")))
	require.NoError(t, second.SetReadDeadline(time.Now().Add(3*time.Second)))
	m = readFrame(t, bufio.NewReader(second))
	assert.Equal(t, uint64(2), m.Index)
	assert.Equal(t, "after", m.Text)
	assert.Equal(t, uint64(2), srv.Index())
}

func TestTCPInbound(t *testing.T) {
	cfg := config.SyslogConfig{Name: "tcp-in", Type: "tcp", Address: "127.0.0.1", Port: freePort(t)}
	srv, err := New(cfg, newTestLogger())
	require.NoError(t, err)
	require.NoError(t, srv.Start(context.Background()))
	defer srv.Stop()

	_, ok := srv.GetMsg(context.Background(), false)
	assert.False(t, ok)

	conn, err := net.Dial("tcp", fmt.Sprintf("127.0.0.1:%d", cfg.Port))
	require.NoError(t, err)
	defer conn.Close()

	m := syslog.NewMessage("from peer")
	m.Severity = syslog.SeverityWarning
	m.Index = 7
	_, err = conn.Write(syslog.AppendFrame(nil, m))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	got, ok := srv.GetMsg(ctx, true)
	require.True(t, ok)
	assert.Equal(t, "from peer", got.Text)
	assert.Equal(t, syslog.SeverityWarning, got.Severity)
	assert.Equal(t, uint64(7), got.Index)
}

func TestGetMsgHonorsContext(t *testing.T) {
	srv, err := NewSubscriber(config.SyslogConfig{Name: "sub", Remote: "127.0.0.1:1"}, newTestLogger())
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, ok := srv.GetMsg(ctx, true)
	assert.False(t, ok)
}

func TestSubscriberStopDuringDial(t *testing.T) {
	sub, err := NewSubscriber(config.SyslogConfig{Name: "sub", Remote: "127.0.0.1:1"}, newTestLogger())
	require.NoError(t, err)

	local, remote := net.Pipe()
	defer remote.Close()
	dialing := make(chan struct{})
	// The dial completes only after Stop has cancelled the loop
	sub.dialFn = func(ctx context.Context) (net.Conn, error) {
		close(dialing)
		<-ctx.Done()
		return local, nil
	}
	require.NoError(t, sub.Start(context.Background()))
	<-dialing

	stopped := make(chan struct{})
	go func() {
		sub.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(3 * time.Second):
		t.Fatal("Stop hung on a connection opened during shutdown")
	}

	// The late connection was closed
	require.NoError(t, remote.SetReadDeadline(time.Now().Add(time.Second)))
	_, err = remote.Read(make([]byte, 1))
	assert.ErrorIs(t, err, io.EOF)
	assert.False(t, sub.Connected())
}

func TestPublisherBacklogAndSubscriber(t *testing.T) {
	port := freePort(t)
	pub, err := NewPublisher(config.SyslogConfig{Name: "pub", Address: "127.0.0.1", Port: port, Backlog: 2}, newTestLogger())
	require.NoError(t, err)
	require.NoError(t, pub.Start(context.Background()))
	defer pub.Stop()

	for i := 1; i <= 3; i++ {
		require.NoError(t, pub.Deliver(msg(core.SeverityNotice, fmt.Sprintf("early %d", i))))
	}
	assert.Equal(t, uint64(3), pub.Index(), "publisher encodes without subscribers")

	sub, err := NewSubscriber(config.SyslogConfig{
		Name:    "sub",
		Remote:  fmt.Sprintf("127.0.0.1:%d", port),
		RetryMS: 50,
	}, newTestLogger())
	require.NoError(t, err)
	require.NoError(t, sub.Start(context.Background()))
	defer sub.Stop()

	waitClients(t, pub, 1)
	require.NoError(t, pub.Deliver(msg(core.SeverityError, "live")))

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	var texts []string
	var indexes []uint64
	for i := 0; i < 3; i++ {
		m, ok := sub.GetMsg(ctx, true)
		require.True(t, ok)
		texts = append(texts, m.Text)
		indexes = append(indexes, m.Index)
	}
	assert.Equal(t, []string{"early 2", "early 3", "live"}, texts)
	assert.Equal(t, []uint64{2, 3, 4}, indexes)
	assert.Zero(t, sub.Gaps())
	assert.True(t, sub.Connected())
}

func TestSubscriberGapTracking(t *testing.T) {
	sub, err := NewSubscriber(config.SyslogConfig{Name: "sub", Remote: "127.0.0.1:1"}, newTestLogger())
	require.NoError(t, err)

	for _, idx := range []uint64{1, 2, 5, 5, 6} {
		m := syslog.NewMessage("x")
		m.Index = idx
		sub.track(m, nil)
	}
	assert.Equal(t, uint64(2), sub.Gaps())
	assert.Equal(t, uint64(1), sub.duplicates.Load())
	assert.Equal(t, 4, sub.inbound.Len())
}

func TestUDPSendAndReceive(t *testing.T) {
	rport := freeUDPPort(t)
	receiver, err := New(config.SyslogConfig{Name: "udp-rx", Type: "udp", Address: "127.0.0.1", Port: rport}, newTestLogger())
	require.NoError(t, err)
	require.NoError(t, receiver.Start(context.Background()))
	defer receiver.Stop()

	sender, err := New(config.SyslogConfig{
		Name:     "udp-tx",
		Type:     "udp",
		Remote:   fmt.Sprintf("127.0.0.1:%d", rport),
		Facility: "user",
	}, newTestLogger())
	require.NoError(t, err)
	require.NoError(t, sender.Start(context.Background()))
	defer sender.Stop()
	assert.True(t, sender.IsActive())

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	// datagrams may be lost before the receiver is ready
	var got string
	require.Eventually(t, func() bool {
		_ = sender.Deliver(msg(core.SeverityError, "over udp"))
		m, ok := receiver.GetMsg(ctx, false)
		if ok {
			got = m.Text
			assert.Equal(t, syslog.FacilityUser, m.Facility)
		}
		return ok
	}, 3*time.Second, 50*time.Millisecond)
	assert.Equal(t, "over udp", got)
}

func TestTLSServer(t *testing.T) {
	dir := t.TempDir()
	certFile := filepath.Join(dir, "srv.crt")
	keyFile := filepath.Join(dir, "srv.key")
	require.NoError(t, ltls.WriteSelfSigned(ltls.SelfSignedRequest{CommonName: "localhost", Hosts: []string{"127.0.0.1"}}, certFile, keyFile))

	port := freePort(t)
	srv, err := New(config.SyslogConfig{
		Name:    "tls1",
		Type:    "tls",
		Address: "127.0.0.1",
		Port:    port,
		TLS:     &config.TLSServerConfig{Enabled: true, CertFile: certFile, KeyFile: keyFile},
	}, newTestLogger())
	require.NoError(t, err)
	require.NoError(t, srv.Start(context.Background()))
	defer srv.Stop()

	addr := fmt.Sprintf("127.0.0.1:%d", port)

	// a plaintext peer fails the handshake and is never attached
	plain, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	_, _ = plain.Write([]byte("not a tls hello\r\n\r\n"))
	require.Eventually(t, func() bool {
		return srv.Stats().Details["handshake_errors"].(uint64) == 1
	}, 3*time.Second, 10*time.Millisecond)
	_ = plain.Close()

	pemData, err := os.ReadFile(certFile)
	require.NoError(t, err)
	pool := x509.NewCertPool()
	require.True(t, pool.AppendCertsFromPEM(pemData))

	conn, err := tls.Dial("tcp", addr, &tls.Config{RootCAs: pool, ServerName: "127.0.0.1"})
	require.NoError(t, err)
	defer conn.Close()

	waitClients(t, srv, 1)
	require.NoError(t, srv.Deliver(msg(core.SeverityCritical, "secure")))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	m := readFrame(t, bufio.NewReader(conn))
	assert.Equal(t, "secure", m.Text)
	assert.Equal(t, syslog.SeverityCritical, m.Severity)
	assert.Equal(t, uint64(1), m.Index)
}

func TestNewValidation(t *testing.T) {
	_, err := New(config.SyslogConfig{Name: "x", Type: "carrier-pigeon"}, newTestLogger())
	assert.Error(t, err)

	_, err = New(config.SyslogConfig{Name: "x", Type: "tcp"}, newTestLogger())
	assert.Error(t, err, "port required")

	_, err = New(config.SyslogConfig{Name: "x", Type: "tcp", Port: 1514, Facility: "nope"}, newTestLogger())
	assert.Error(t, err)

	_, err = New(config.SyslogConfig{Name: "x", Type: "tls", Port: 6514}, newTestLogger())
	assert.Error(t, err, "tls section required")

	_, err = New(config.SyslogConfig{Name: "x", Type: "subscriber"}, newTestLogger())
	assert.Error(t, err)

	assert.Equal(t, []string{"publisher", "subscriber", "tcp", "tls", "udp"}, Types())
}
