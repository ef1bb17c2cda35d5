// FILE: logfan/src/internal/status/status.go
package status

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"logfan/src/internal/config"
	"logfan/src/internal/engine"
	"logfan/src/internal/version"

	"github.com/lixenwraith/log"
	"github.com/lixenwraith/log/compat"
	"github.com/valyala/fasthttp"
)

const healthPath = "/health"

// Provider supplies the data served by the endpoint. *engine.Engine is the
// usual implementation.
type Provider interface {
	Stats() engine.Stats
	Healthy() bool
}

// Server exposes engine statistics and a health check over HTTP.
type Server struct {
	config   config.StatusConfig
	provider Provider
	limiter  *ipLimiter
	logger   *log.Logger

	server    *fasthttp.Server
	listener  net.Listener
	startTime time.Time
	done      chan struct{}
	stopOnce  sync.Once

	requests atomic.Uint64
}

// New creates a status server. Nothing listens until Start.
func New(cfg config.StatusConfig, provider Provider, logger *log.Logger) *Server {
	if cfg.Path == "" {
		cfg.Path = "/status"
	}
	return &Server{
		config:   cfg,
		provider: provider,
		limiter:  newIPLimiter(cfg.RequestsPerSecond, int(cfg.BurstSize)),
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Start binds the configured address and serves in the background.
// Bind errors are returned directly. The server stops when ctx is done.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("status server: %w", err)
	}
	s.listener = ln
	s.startTime = time.Now()

	s.server = &fasthttp.Server{
		Name:             fmt.Sprintf("logfan/%s", version.Short()),
		Handler:          s.requestHandler,
		DisableKeepalive: false,
		Logger:           compat.NewFastHTTPAdapter(s.logger),
		ReadTimeout:      10 * time.Second,
		WriteTimeout:     10 * time.Second,
	}

	go func() {
		defer close(s.done)
		s.logger.Info("msg", "Status server started",
			"component", "status",
			"address", ln.Addr().String(),
			"path", s.config.Path)
		if err := s.server.Serve(ln); err != nil {
			s.logger.Error("msg", "Status server failed",
				"component", "status",
				"error", err)
		}
	}()

	context.AfterFunc(ctx, s.Stop)
	return nil
}

// Addr returns the bound address, useful when the port was 0.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop shuts the server down, waiting up to 2 seconds for open requests.
func (s *Server) Stop() {
	if s.server == nil {
		return
	}
	s.stopOnce.Do(func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.server.ShutdownWithContext(shutdownCtx); err != nil {
			s.logger.Warn("msg", "Status server shutdown incomplete",
				"component", "status",
				"error", err)
		}
	})
	<-s.done
}

func (s *Server) requestHandler(ctx *fasthttp.RequestCtx) {
	s.requests.Add(1)
	ctx.SetContentType("application/json")

	if !s.limiter.allow(ctx.RemoteAddr().String()) {
		ctx.SetStatusCode(fasthttp.StatusTooManyRequests)
		json.NewEncoder(ctx).Encode(map[string]any{
			"error": "Too many requests",
		})
		return
	}

	if !ctx.IsGet() && !ctx.IsHead() {
		ctx.SetStatusCode(fasthttp.StatusMethodNotAllowed)
		json.NewEncoder(ctx).Encode(map[string]any{
			"error": "Method not allowed",
		})
		return
	}

	switch string(ctx.Path()) {
	case s.config.Path:
		s.handleStatus(ctx)
	case healthPath:
		s.handleHealth(ctx)
	default:
		ctx.SetStatusCode(fasthttp.StatusNotFound)
		json.NewEncoder(ctx).Encode(map[string]any{
			"error": "Not Found",
		})
	}
}

func (s *Server) handleStatus(ctx *fasthttp.RequestCtx) {
	status := map[string]any{
		"service": "logfan",
		"version": version.Short(),
		"server": map[string]any{
			"uptime_seconds": int(time.Since(s.startTime).Seconds()),
			"requests":       s.requests.Load(),
			"rate_limit":     s.limiter.stats(),
		},
		"endpoints": map[string]string{
			"status": s.config.Path,
			"health": healthPath,
		},
		"engine": s.provider.Stats(),
	}

	data, err := json.Marshal(status)
	if err != nil {
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
		return
	}
	ctx.SetBody(data)
}

func (s *Server) handleHealth(ctx *fasthttp.RequestCtx) {
	if s.provider.Healthy() {
		ctx.SetBodyString(`{"status":"ok"}`)
		return
	}
	ctx.SetStatusCode(fasthttp.StatusServiceUnavailable)
	ctx.SetBodyString(`{"status":"degraded"}`)
}
