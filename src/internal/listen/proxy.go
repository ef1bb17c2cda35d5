// FILE: logfan/src/internal/listen/proxy.go
package listen

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"logfan/src/internal/core"

	"github.com/lixenwraith/log"
	"golang.org/x/time/rate"
)

// DefaultRetryInterval paces reconnect attempts of outbound listeners.
const DefaultRetryInterval = 5 * time.Second

// Proxy connects to a remote aggregator and forwards framed log lines to it.
// The aggregator is the only client.
type Proxy struct {
	*Base
	cfg     core.ListenConfig
	tlsConf *tls.Config
	retry   time.Duration
	logger  *log.Logger

	cancel     context.CancelFunc
	wg         sync.WaitGroup
	stopOnce   sync.Once
	connects   atomic.Uint64
	dialErrors atomic.Uint64
}

func NewProxy(cfg core.ListenConfig, tlsConf *tls.Config, retry time.Duration, logger *log.Logger) *Proxy {
	if retry <= 0 {
		retry = DefaultRetryInterval
	}
	return &Proxy{
		Base:    NewBase(cfg.Name, core.ListenProxy, FrameStream{PreText: cfg.PreText}, logger),
		cfg:     cfg,
		tlsConf: tlsConf,
		retry:   retry,
		logger:  logger,
	}
}

// Start launches the connect loop. It does not wait for the first connection.
func (p *Proxy) Start(ctx context.Context) error {
	ctx, p.cancel = context.WithCancel(ctx)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.connectLoop(ctx)
	}()
	p.logger.Info("msg", "Listen proxy started",
		"component", "listen_proxy",
		"listener", p.Name(),
		"remote", p.cfg.HostPort())
	return nil
}

func (p *Proxy) Stop() {
	p.stopOnce.Do(func() {
		p.BeginStop()
		if p.cancel != nil {
			p.cancel()
		}
		p.CloseClients()
		p.wg.Wait()
		p.logger.Info("msg", "Listen proxy stopped",
			"component", "listen_proxy",
			"listener", p.Name(),
			"messages", p.NumberOfMessages())
	})
}

func (p *Proxy) Stats() Stats {
	st := p.Base.Stats()
	st.Details = map[string]any{
		"remote":      p.cfg.HostPort(),
		"share_name":  p.cfg.ShareName,
		"tls":         p.tlsConf != nil,
		"connects":    p.connects.Load(),
		"dial_errors": p.dialErrors.Load(),
	}
	return st
}

func (p *Proxy) connectLoop(ctx context.Context) {
	limiter := rate.NewLimiter(rate.Every(p.retry), 1)
	for {
		if err := limiter.Wait(ctx); err != nil {
			return
		}
		conn, err := p.dial(ctx)
		if err != nil {
			p.dialErrors.Add(1)
			p.logger.Debug("msg", "Proxy connect failed",
				"component", "listen_proxy",
				"listener", p.Name(),
				"remote", p.cfg.HostPort(),
				"error", err)
			continue
		}
		p.connects.Add(1)

		if p.cfg.ShareName != "" {
			if _, err := conn.Write(AppendFrame(nil, FrameHello, []byte(p.cfg.ShareName))); err != nil {
				_ = conn.Close()
				continue
			}
		}

		client := NewConnClient(conn, false)
		p.Attach(client)
		p.readControl(client)
		_ = client.Close()

		if ctx.Err() != nil {
			return
		}
	}
}

func (p *Proxy) dial(ctx context.Context) (net.Conn, error) {
	d := &net.Dialer{Timeout: 5 * time.Second}
	if p.tlsConf != nil {
		td := &tls.Dialer{NetDialer: d, Config: p.tlsConf}
		return td.DialContext(ctx, "tcp", p.cfg.HostPort())
	}
	return d.DialContext(ctx, "tcp", p.cfg.HostPort())
}

// readControl consumes level frames from the aggregator until the connection ends.
func (p *Proxy) readControl(client *ConnClient) {
	for {
		f, err := ReadFrame(client.Conn())
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				p.logger.Debug("msg", "Proxy connection ended",
					"component", "listen_proxy",
					"listener", p.Name(),
					"error", err)
			}
			client.markDisconnected()
			return
		}
		switch f.Type {
		case FrameLogLevel:
			if mask, err := DecodeLogLevel(f.Body); err == nil {
				client.SetLevelMask(mask)
			}
		case FrameLogLevelText:
			if mask, err := core.ParseSeverityMask(string(f.Body)); err == nil && mask != 0 {
				client.SetLevelMask(mask)
			}
		}
	}
}
