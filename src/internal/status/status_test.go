// FILE: logfan/src/internal/status/status_test.go
package status

import (
	"context"
	"encoding/json"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"logfan/src/internal/config"
	"logfan/src/internal/engine"

	"github.com/lixenwraith/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
)

func newTestLogger() *log.Logger {
	return log.NewLogger()
}

type fakeProvider struct {
	healthy atomic.Bool
}

func (p *fakeProvider) Stats() engine.Stats {
	return engine.Stats{Threshold: "Info", Enqueued: 7, Delivered: 5, Dropped: 2}
}

func (p *fakeProvider) Healthy() bool { return p.healthy.Load() }

func startServer(t *testing.T, cfg config.StatusConfig, p Provider) *Server {
	t.Helper()
	cfg.Host = "127.0.0.1"
	cfg.Port = 0
	s := New(cfg, p, newTestLogger())
	require.NoError(t, s.Start(t.Context()))
	t.Cleanup(s.Stop)
	return s
}

func get(t *testing.T, url string) (int, []byte) {
	t.Helper()
	code, body, err := fasthttp.GetTimeout(nil, url, 3*time.Second)
	require.NoError(t, err)
	return code, body
}

func TestStatusEndpoint(t *testing.T) {
	p := &fakeProvider{}
	p.healthy.Store(true)
	s := startServer(t, config.StatusConfig{Path: "/stats"}, p)
	base := "http://" + s.Addr()

	code, body := get(t, base+"/stats")
	assert.Equal(t, fasthttp.StatusOK, code)

	var doc struct {
		Service string       `json:"service"`
		Engine  engine.Stats `json:"engine"`
	}
	require.NoError(t, json.Unmarshal(body, &doc))
	assert.Equal(t, "logfan", doc.Service)
	assert.Equal(t, uint64(7), doc.Engine.Enqueued)
	assert.Equal(t, doc.Engine.Enqueued, doc.Engine.Delivered+doc.Engine.Dropped)

	code, body = get(t, base+"/health")
	assert.Equal(t, fasthttp.StatusOK, code)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))

	p.healthy.Store(false)
	code, _ = get(t, base+"/health")
	assert.Equal(t, fasthttp.StatusServiceUnavailable, code)

	code, _ = get(t, base+"/missing")
	assert.Equal(t, fasthttp.StatusNotFound, code)
}

func TestStatusRateLimit(t *testing.T) {
	p := &fakeProvider{}
	p.healthy.Store(true)
	s := startServer(t, config.StatusConfig{RequestsPerSecond: 0.001, BurstSize: 2}, p)
	url := "http://" + s.Addr() + "/health"

	code, _ := get(t, url)
	assert.Equal(t, fasthttp.StatusOK, code)
	code, _ = get(t, url)
	assert.Equal(t, fasthttp.StatusOK, code)
	code, _ = get(t, url)
	assert.Equal(t, fasthttp.StatusTooManyRequests, code)

	st := s.limiter.stats()
	assert.Equal(t, uint64(3), st["total_requests"])
	assert.Equal(t, uint64(1), st["blocked_requests"])
}

func TestStatusBindFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	s := New(config.StatusConfig{Host: "127.0.0.1", Port: int64(ln.Addr().(*net.TCPAddr).Port)}, &fakeProvider{}, newTestLogger())
	assert.Error(t, s.Start(context.Background()))
	s.Stop()
}

func TestIPLimiterDisabled(t *testing.T) {
	var l *ipLimiter = newIPLimiter(0, 5)
	assert.Nil(t, l)
	assert.True(t, l.allow("10.0.0.1:5000"))
	assert.Equal(t, false, l.stats()["enabled"])

	l = newIPLimiter(1, 0)
	assert.True(t, l.allow("10.0.0.1:5000"))
	assert.False(t, l.allow("10.0.0.1:5001"), "same host, different port")
	assert.True(t, l.allow("10.0.0.2:5000"))
}
