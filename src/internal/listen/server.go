// FILE: logfan/src/internal/listen/server.go
package listen

import (
	"context"
	"fmt"
	"sync"
	"time"

	"logfan/src/internal/core"

	"github.com/lixenwraith/log"
	"github.com/lixenwraith/log/compat"
	"github.com/panjf2000/gnet/v2"
)

// RelayFunc receives text frames sent by connected peers, usually proxies of
// other processes forwarding their own log lines.
type RelayFunc func(from string, shareName string, rec TextRecord)

// Server accepts viewer connections and streams framed log lines to them.
type Server struct {
	*Base
	cfg    core.ListenConfig
	relay  RelayFunc
	logger *log.Logger

	handler  *serverHandler
	engine   *gnet.Engine
	engineMu sync.Mutex
	runDone  chan struct{}
	stopOnce sync.Once
}

// serverHandler implements gnet.EventHandler for the server listener.
type serverHandler struct {
	gnet.BuiltinEventEngine
	srv    *Server
	booted chan struct{}
	conns  map[gnet.Conn]*GnetClient
	mu     sync.RWMutex
}

func NewServer(cfg core.ListenConfig, relay RelayFunc, logger *log.Logger) *Server {
	return &Server{
		Base:    NewBase(cfg.Name, core.ListenServer, FrameStream{PreText: cfg.PreText}, logger),
		cfg:     cfg,
		relay:   relay,
		logger:  logger,
		runDone: make(chan struct{}),
	}
}

// Start binds the port. It returns once the event loop is running or the bind failed.
func (s *Server) Start(ctx context.Context) error {
	s.handler = &serverHandler{
		srv:    s,
		booted: make(chan struct{}),
		conns:  make(map[gnet.Conn]*GnetClient),
	}

	addr := fmt.Sprintf("tcp://%s", s.cfg.HostPort())
	opts := []gnet.Option{
		gnet.WithLogger(compat.NewGnetAdapter(s.logger)),
		gnet.WithMulticore(true),
	}

	errChan := make(chan error, 1)
	go func() {
		defer close(s.runDone)
		s.logger.Info("msg", "Starting listen server",
			"component", "listen_server",
			"listener", s.Name(),
			"address", s.cfg.HostPort())
		err := gnet.Run(s.handler, addr, opts...)
		if err != nil {
			s.logger.Error("msg", "Listen server failed",
				"component", "listen_server",
				"listener", s.Name(),
				"error", err)
		}
		errChan <- err
	}()

	select {
	case err := <-errChan:
		if err == nil {
			err = fmt.Errorf("listen server %s exited during startup", s.Name())
		}
		return err
	case <-s.handler.booted:
	case <-ctx.Done():
		s.Stop()
		return ctx.Err()
	}

	go func() {
		select {
		case <-ctx.Done():
			s.stopEngine()
		case <-s.runDone:
		}
	}()

	s.logger.Info("msg", "Listen server started",
		"component", "listen_server",
		"listener", s.Name(),
		"address", s.cfg.HostPort())
	return nil
}

// Stop shuts the event loop down and closes every client.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		s.BeginStop()
		s.stopEngine()
		if s.handler != nil {
			select {
			case <-s.runDone:
			case <-time.After(3 * time.Second):
				s.logger.Warn("msg", "Listen server did not stop in time",
					"component", "listen_server",
					"listener", s.Name())
			}
		}
		s.CloseClients()
		s.logger.Info("msg", "Listen server stopped",
			"component", "listen_server",
			"listener", s.Name(),
			"messages", s.NumberOfMessages())
	})
}

func (s *Server) stopEngine() {
	s.engineMu.Lock()
	engine := s.engine
	s.engine = nil
	s.engineMu.Unlock()

	if engine != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		(*engine).Stop(ctx)
	}
}

func (s *Server) Stats() Stats {
	st := s.Base.Stats()
	st.Details = map[string]any{
		"address":  s.cfg.HostPort(),
		"pre_text": s.cfg.PreText,
	}
	return st
}

// OnBoot is called when the server starts.
func (h *serverHandler) OnBoot(eng gnet.Engine) gnet.Action {
	h.srv.engineMu.Lock()
	h.srv.engine = &eng
	h.srv.engineMu.Unlock()
	close(h.booted)
	return gnet.None
}

// OnOpen registers the connection and announces the available levels.
func (h *serverHandler) OnOpen(c gnet.Conn) (out []byte, action gnet.Action) {
	if h.srv.Stopping() {
		return nil, gnet.Close
	}
	client := NewGnetClient(c)

	h.mu.Lock()
	h.conns[c] = client
	h.mu.Unlock()

	h.srv.Attach(client)
	h.srv.logger.Debug("msg", "Viewer connected",
		"component", "listen_server",
		"listener", h.srv.Name(),
		"remote_addr", client.RemoteAddr())

	return AppendFrame(nil, FrameLogLevelText, []byte(core.AllSeverities.String())), gnet.None
}

// OnClose marks the client dead; the delivering goroutine evicts it.
func (h *serverHandler) OnClose(c gnet.Conn, err error) gnet.Action {
	h.mu.Lock()
	client, ok := h.conns[c]
	delete(h.conns, c)
	h.mu.Unlock()

	if ok {
		client.markDisconnected()
		h.srv.logger.Debug("msg", "Viewer disconnected",
			"component", "listen_server",
			"listener", h.srv.Name(),
			"remote_addr", client.RemoteAddr(),
			"messages", client.Messages(),
			"error", err)
	}
	return gnet.None
}

// OnTraffic decodes control frames sent by viewers and proxies.
func (h *serverHandler) OnTraffic(c gnet.Conn) gnet.Action {
	h.mu.RLock()
	client, ok := h.conns[c]
	h.mu.RUnlock()

	data, _ := c.Next(-1)
	if !ok {
		return gnet.None
	}

	frames, err := client.feed(data)
	for _, f := range frames {
		h.srv.handleFrame(client, f)
	}
	if err != nil {
		h.srv.logger.Warn("msg", "Invalid frame from peer",
			"component", "listen_server",
			"listener", h.srv.Name(),
			"remote_addr", client.RemoteAddr(),
			"error", err)
		return gnet.Close
	}
	return gnet.None
}

func (s *Server) handleFrame(client *GnetClient, f Frame) {
	switch f.Type {
	case FrameLogLevel:
		mask, err := DecodeLogLevel(f.Body)
		if err != nil {
			return
		}
		client.SetLevelMask(mask)
	case FrameLogLevelText:
		mask, err := core.ParseSeverityMask(string(f.Body))
		if err != nil {
			s.logger.Debug("msg", "Ignoring log level text",
				"component", "listen_server",
				"text", string(f.Body),
				"error", err)
			return
		}
		client.SetLevelMask(mask)
	case FrameHello:
		client.shareName.Store(string(f.Body))
	case FrameText:
		if s.relay == nil {
			return
		}
		rec, err := DecodeText(f.Body)
		if err != nil {
			return
		}
		s.relay(client.RemoteAddr(), client.ShareName(), rec)
	default:
		s.logger.Debug("msg", "Unknown frame",
			"component", "listen_server",
			"type", uint32(f.Type),
			"head", FormatHex(f.Body[:min(len(f.Body), 16)]))
	}
}
