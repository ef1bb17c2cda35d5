// FILE: logfan/src/internal/syslogserver/tls.go
package syslogserver

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"logfan/src/internal/config"
	"logfan/src/internal/core"
	"logfan/src/internal/listen"
	"logfan/src/internal/syslog"
	ltls "logfan/src/internal/tls"

	"github.com/lixenwraith/log"
)

const handshakeTimeout = 10 * time.Second

// TLSServer accepts collectors over TLS. A connection becomes a client only
// after its handshake completed.
type TLSServer struct {
	*base
	tlsConf *tls.Config

	ln       net.Listener
	wg       sync.WaitGroup
	stopOnce sync.Once

	handshakeErrors atomic.Uint64
}

func NewTLS(cfg config.SyslogConfig, logger *log.Logger) (*TLSServer, error) {
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("syslog server %s: invalid port %d", cfg.Name, cfg.Port)
	}
	mgr, err := ltls.NewServerManager(cfg.TLS, logger)
	if err != nil {
		return nil, fmt.Errorf("syslog server %s: %w", cfg.Name, err)
	}
	if mgr == nil {
		return nil, fmt.Errorf("syslog server %s: tls section is required", cfg.Name)
	}
	return NewTLSWithConfig(cfg, mgr.GetTCPConfig(), logger)
}

// NewTLSWithConfig uses a prepared tls.Config instead of certificate files.
func NewTLSWithConfig(cfg config.SyslogConfig, tlsConf *tls.Config, logger *log.Logger) (*TLSServer, error) {
	if tlsConf == nil {
		return nil, fmt.Errorf("syslog server %s: tls config is required", cfg.Name)
	}
	b, err := newBase(cfg, "tls", core.ListenServer, true, logger)
	if err != nil {
		return nil, err
	}
	return &TLSServer{base: b, tlsConf: tlsConf}, nil
}

func (s *TLSServer) Start(ctx context.Context) error {
	if err := s.beginStart(); err != nil {
		return err
	}
	ln, err := tls.Listen("tcp", s.hostPort(), s.tlsConf)
	if err != nil {
		return s.finishStart(fmt.Errorf("syslog server %s: bind %s: %w", s.Name(), s.hostPort(), err))
	}
	s.ln = ln

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.acceptLoop()
	}()
	return s.finishStart(nil)
}

// Addr returns the bound address once started.
func (s *TLSServer) Addr() net.Addr {
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

func (s *TLSServer) Stop() {
	s.stopOnce.Do(func() {
		s.BeginStop()
		if s.ln != nil {
			_ = s.ln.Close()
		}
		s.markStopped()
		s.wg.Wait()
	})
}

func (s *TLSServer) Stats() listen.Stats {
	st := s.stats()
	st.Details["address"] = s.hostPort()
	st.Details["handshake_errors"] = s.handshakeErrors.Load()
	return st
}

func (s *TLSServer) acceptLoop() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Warn("msg", "TLS accept failed",
				"component", "syslog_tls",
				"server", s.Name(),
				"error", err)
			continue
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serve(conn.(*tls.Conn))
		}()
	}
}

func (s *TLSServer) serve(conn *tls.Conn) {
	_ = conn.SetDeadline(time.Now().Add(handshakeTimeout))
	if err := conn.Handshake(); err != nil {
		s.handshakeErrors.Add(1)
		s.logger.Warn("msg", "TLS handshake failed",
			"component", "syslog_tls",
			"server", s.Name(),
			"remote_addr", conn.RemoteAddr().String(),
			"error", err)
		_ = conn.Close()
		return
	}
	_ = conn.SetDeadline(time.Time{})

	client := listen.NewConnClient(conn, false)
	s.Attach(client)
	s.logger.Debug("msg", "TLS peer connected",
		"component", "syslog_tls",
		"server", s.Name(),
		"remote_addr", client.RemoteAddr(),
		"tls_version", conn.ConnectionState().Version)

	syslog.ReadFrames(conn, s.receive)
	_ = client.Close()
}
