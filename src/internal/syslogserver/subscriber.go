// FILE: logfan/src/internal/syslogserver/subscriber.go
package syslogserver

import (
	"context"
	"crypto/tls"
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
	"golang.org/x/time/rate"
)

// Subscriber dials a publisher and queues every received message for GetMsg.
// It never sends log messages itself.
type Subscriber struct {
	*base
	tlsConf *tls.Config
	retry   time.Duration
	dialFn  func(ctx context.Context) (net.Conn, error)

	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once

	connMu sync.Mutex
	conn   net.Conn

	connected  atomic.Bool
	connects   atomic.Uint64
	lastIndex  atomic.Uint64
	gaps       atomic.Uint64
	duplicates atomic.Uint64
}

func NewSubscriber(cfg config.SyslogConfig, logger *log.Logger) (*Subscriber, error) {
	if cfg.Remote == "" {
		return nil, fmt.Errorf("syslog server %s: subscriber needs a remote", cfg.Name)
	}
	b, err := newBase(cfg, "subscriber", core.ListenProxy, true, logger)
	if err != nil {
		return nil, err
	}
	mgr, err := ltls.NewClientManager(cfg.ClientTLS, logger)
	if err != nil {
		return nil, fmt.Errorf("syslog server %s: %w", cfg.Name, err)
	}
	s := &Subscriber{base: b, retry: listen.DefaultRetryInterval}
	s.dialFn = s.dial
	if mgr != nil {
		s.tlsConf = mgr.GetConfig()
	}
	if cfg.RetryMS > 0 {
		s.retry = time.Duration(cfg.RetryMS) * time.Millisecond
	}
	return s, nil
}

func (s *Subscriber) Start(ctx context.Context) error {
	if err := s.beginStart(); err != nil {
		return err
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.connectLoop(ctx)
	}()
	return s.finishStart(nil)
}

func (s *Subscriber) Stop() {
	s.stopOnce.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
		s.connMu.Lock()
		if s.conn != nil {
			_ = s.conn.Close()
		}
		s.connMu.Unlock()
		s.markStopped()
		s.wg.Wait()
	})
}

// Connected reports whether a publisher connection is up.
func (s *Subscriber) Connected() bool {
	return s.connected.Load()
}

// Gaps returns the number of sequence numbers skipped by the publisher stream.
func (s *Subscriber) Gaps() uint64 {
	return s.gaps.Load()
}

func (s *Subscriber) Stats() listen.Stats {
	st := s.stats()
	st.Details["remote"] = s.cfg.Remote
	st.Details["connected"] = s.connected.Load()
	st.Details["connects"] = s.connects.Load()
	st.Details["last_index"] = s.lastIndex.Load()
	st.Details["gaps"] = s.gaps.Load()
	st.Details["duplicates"] = s.duplicates.Load()
	return st
}

func (s *Subscriber) connectLoop(ctx context.Context) {
	limiter := rate.NewLimiter(rate.Every(s.retry), 1)
	for {
		if err := limiter.Wait(ctx); err != nil {
			return
		}
		conn, err := s.dialFn(ctx)
		if err != nil {
			s.logger.Debug("msg", "Subscriber connect failed",
				"component", "syslog_subscriber",
				"server", s.Name(),
				"remote", s.cfg.Remote,
				"error", err)
			continue
		}

		// Stop may have run while dialing and found no conn to close
		s.connMu.Lock()
		if ctx.Err() != nil {
			s.connMu.Unlock()
			_ = conn.Close()
			return
		}
		s.conn = conn
		s.connMu.Unlock()
		s.connected.Store(true)
		s.connects.Add(1)
		s.logger.Info("msg", "Subscriber connected",
			"component", "syslog_subscriber",
			"server", s.Name(),
			"remote", s.cfg.Remote)

		syslog.ReadFrames(conn, s.track)

		s.connected.Store(false)
		_ = conn.Close()
		if ctx.Err() != nil {
			return
		}
		s.logger.Warn("msg", "Subscriber connection lost",
			"component", "syslog_subscriber",
			"server", s.Name(),
			"remote", s.cfg.Remote)
	}
}

func (s *Subscriber) dial(ctx context.Context) (net.Conn, error) {
	d := &net.Dialer{Timeout: 5 * time.Second}
	if s.tlsConf != nil {
		return (&tls.Dialer{NetDialer: d, Config: s.tlsConf}).DialContext(ctx, "tcp", s.cfg.Remote)
	}
	return d.DialContext(ctx, "tcp", s.cfg.Remote)
}

// track drops replayed duplicates and counts index gaps before queuing.
func (s *Subscriber) track(m *syslog.Message, err error) {
	if err == nil && m != nil && m.Index > 0 {
		last := s.lastIndex.Load()
		switch {
		case m.Index == 1 && last > 1:
			// publisher restarted
		case m.Index <= last:
			s.duplicates.Add(1)
			return
		case last > 0 && m.Index > last+1:
			s.gaps.Add(m.Index - last - 1)
		}
		s.lastIndex.Store(m.Index)
	}
	s.receive(m, err)
}
