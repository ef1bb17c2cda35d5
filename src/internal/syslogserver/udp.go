// FILE: logfan/src/internal/syslogserver/udp.go
package syslogserver

import (
	"context"
	"fmt"
	"net"
	"sync"

	"logfan/src/internal/config"
	"logfan/src/internal/core"
	"logfan/src/internal/listen"
	"logfan/src/internal/syslog"

	"github.com/lixenwraith/log"
	"github.com/panjf2000/gnet/v2"
)

// UDPServer sends datagrams to one remote collector and optionally receives
// datagrams on its own port. Delivery is best effort.
type UDPServer struct {
	*base
	runner   *engineRunner
	remote   *listen.ConnClient
	stopOnce sync.Once
}

type udpHandler struct {
	gnet.BuiltinEventEngine
	srv *UDPServer
}

func NewUDP(cfg config.SyslogConfig, logger *log.Logger) (*UDPServer, error) {
	if cfg.Remote == "" && cfg.Port <= 0 {
		return nil, fmt.Errorf("syslog server %s: udp needs a remote or a port", cfg.Name)
	}
	b, err := newBase(cfg, "udp", core.ListenProxy, false, logger)
	if err != nil {
		return nil, err
	}
	return &UDPServer{base: b}, nil
}

func (s *UDPServer) Start(ctx context.Context) error {
	if err := s.beginStart(); err != nil {
		return err
	}
	return s.finishStart(s.open())
}

func (s *UDPServer) open() error {
	if s.cfg.Port > 0 {
		s.runner = newEngineRunner()
		addr := "udp://" + s.hostPort()
		if err := s.runner.start(&udpHandler{srv: s}, addr, s.logger, "syslog_udp"); err != nil {
			return fmt.Errorf("syslog server %s: bind %s: %w", s.Name(), s.hostPort(), err)
		}
	}
	if s.cfg.Remote != "" {
		conn, err := net.Dial("udp", s.cfg.Remote)
		if err != nil {
			if s.runner != nil {
				s.runner.stop()
			}
			return fmt.Errorf("syslog server %s: dial %s: %w", s.Name(), s.cfg.Remote, err)
		}
		s.remote = listen.NewConnClient(conn, true)
		s.Attach(s.remote)
		s.Poll()
	}
	return nil
}

func (s *UDPServer) Stop() {
	s.stopOnce.Do(func() {
		if s.runner != nil {
			s.runner.stop()
		}
		s.markStopped()
	})
}

func (s *UDPServer) Stats() listen.Stats {
	st := s.stats()
	st.Details["remote"] = s.cfg.Remote
	if s.remote != nil {
		st.Details["send_errors"] = s.remote.Errors()
		st.Details["send_drops"] = s.remote.Dropped()
	}
	return st
}

func (h *udpHandler) OnBoot(eng gnet.Engine) gnet.Action {
	h.srv.runner.boot(eng)
	return gnet.None
}

// OnTraffic parses each datagram as one message.
func (h *udpHandler) OnTraffic(c gnet.Conn) gnet.Action {
	data, _ := c.Next(-1)
	if len(data) == 0 {
		return gnet.None
	}
	h.srv.receive(syslog.Parse(data))
	return gnet.None
}
