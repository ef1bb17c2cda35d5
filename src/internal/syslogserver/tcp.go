// FILE: logfan/src/internal/syslogserver/tcp.go
package syslogserver

import (
	"context"
	"fmt"
	"sync"

	"logfan/src/internal/config"
	"logfan/src/internal/core"
	"logfan/src/internal/listen"
	"logfan/src/internal/syslog"

	"github.com/lixenwraith/log"
	"github.com/panjf2000/gnet/v2"
)

// TCPServer accepts collectors on a port. Every connection is a client that
// receives octet-counted frames, and frames sent by peers are queued for GetMsg.
type TCPServer struct {
	*base
	runner   *engineRunner
	backlog  *backlog
	stopOnce sync.Once
}

type tcpConn struct {
	client *listen.GnetClient
	buf    []byte
}

type tcpHandler struct {
	gnet.BuiltinEventEngine
	srv   *TCPServer
	mu    sync.RWMutex
	conns map[gnet.Conn]*tcpConn
}

func NewTCP(cfg config.SyslogConfig, logger *log.Logger) (*TCPServer, error) {
	return newTCPServer(cfg, "tcp", 0, logger)
}

// NewPublisher creates a TCP server that replays its most recent messages
// to each subscriber when it connects.
func NewPublisher(cfg config.SyslogConfig, logger *log.Logger) (*TCPServer, error) {
	size := int(cfg.Backlog)
	if size <= 0 {
		size = defaultBacklog
	}
	return newTCPServer(cfg, "publisher", size, logger)
}

func newTCPServer(cfg config.SyslogConfig, typ string, backlogSize int, logger *log.Logger) (*TCPServer, error) {
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("syslog server %s: invalid port %d", cfg.Name, cfg.Port)
	}
	b, err := newBase(cfg, typ, core.ListenServer, true, logger)
	if err != nil {
		return nil, err
	}
	s := &TCPServer{base: b}
	if backlogSize > 0 {
		s.backlog = newBacklog(backlogSize)
		s.OnEncoded(s.backlog.add, true)
		s.OnAttach(s.replay)
	}
	return s, nil
}

func (s *TCPServer) Start(ctx context.Context) error {
	if err := s.beginStart(); err != nil {
		return err
	}
	s.runner = newEngineRunner()
	h := &tcpHandler{srv: s, conns: make(map[gnet.Conn]*tcpConn)}
	err := s.runner.start(h, "tcp://"+s.hostPort(), s.logger, "syslog_"+s.typ)
	if err != nil {
		err = fmt.Errorf("syslog server %s: bind %s: %w", s.Name(), s.hostPort(), err)
	}
	return s.finishStart(err)
}

func (s *TCPServer) Stop() {
	s.stopOnce.Do(func() {
		if s.runner != nil {
			s.runner.stop()
		}
		s.markStopped()
	})
}

func (s *TCPServer) Stats() listen.Stats {
	st := s.stats()
	st.Details["address"] = s.hostPort()
	if s.backlog != nil {
		st.Details["backlog"] = s.backlog.len()
	}
	return st
}

// replay runs on the delivering goroutine, before the client sees live messages.
func (s *TCPServer) replay(c listen.Client) {
	for _, frame := range s.backlog.snapshot() {
		if err := c.Write(frame); err != nil {
			return
		}
	}
}

func (h *tcpHandler) OnBoot(eng gnet.Engine) gnet.Action {
	h.srv.runner.boot(eng)
	return gnet.None
}

func (h *tcpHandler) OnOpen(c gnet.Conn) (out []byte, action gnet.Action) {
	if h.srv.Stopping() {
		return nil, gnet.Close
	}
	client := listen.NewGnetClient(c)
	h.mu.Lock()
	h.conns[c] = &tcpConn{client: client}
	h.mu.Unlock()

	h.srv.Attach(client)
	h.srv.logger.Debug("msg", "Syslog peer connected",
		"component", "syslog_"+h.srv.typ,
		"server", h.srv.Name(),
		"remote_addr", client.RemoteAddr())
	return nil, gnet.None
}

func (h *tcpHandler) OnClose(c gnet.Conn, err error) gnet.Action {
	h.mu.Lock()
	tc, ok := h.conns[c]
	delete(h.conns, c)
	h.mu.Unlock()

	if ok {
		_ = tc.client.Close()
		h.srv.logger.Debug("msg", "Syslog peer disconnected",
			"component", "syslog_"+h.srv.typ,
			"server", h.srv.Name(),
			"remote_addr", tc.client.RemoteAddr(),
			"error", err)
	}
	return gnet.None
}

// OnTraffic splits octet-counted frames and queues the parsed messages.
func (h *tcpHandler) OnTraffic(c gnet.Conn) gnet.Action {
	data, _ := c.Next(-1)

	h.mu.RLock()
	tc, ok := h.conns[c]
	h.mu.RUnlock()
	if !ok || h.srv.backlog != nil {
		// publishers do not take input
		return gnet.None
	}

	tc.buf = append(tc.buf, data...)
	for {
		frame, n, err := syslog.SplitFrame(tc.buf)
		if err != nil {
			h.srv.receive(nil, err)
			return gnet.Close
		}
		if n == 0 {
			break
		}
		h.srv.receive(syslog.Parse(frame))
		tc.buf = tc.buf[n:]
	}
	if len(tc.buf) == 0 {
		tc.buf = nil
	}
	return gnet.None
}

// backlog keeps the last encoded frames of a publisher.
type backlog struct {
	mu     sync.Mutex
	frames [][]byte
	next   int
	full   bool
}

func newBacklog(size int) *backlog {
	return &backlog{frames: make([][]byte, size)}
}

func (b *backlog) add(frame []byte) {
	b.mu.Lock()
	b.frames[b.next] = frame
	b.next = (b.next + 1) % len(b.frames)
	if b.next == 0 {
		b.full = true
	}
	b.mu.Unlock()
}

// snapshot returns the frames oldest first.
func (b *backlog) snapshot() [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.full {
		return append([][]byte(nil), b.frames[:b.next]...)
	}
	out := make([][]byte, 0, len(b.frames))
	out = append(out, b.frames[b.next:]...)
	return append(out, b.frames[:b.next]...)
}

func (b *backlog) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.full {
		return len(b.frames)
	}
	return b.next
}
