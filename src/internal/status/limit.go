// FILE: logfan/src/internal/status/limit.go
package status

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

const (
	idleTimeout     = 5 * time.Minute
	cleanupInterval = time.Minute
)

// ipLimiter applies a token bucket per client IP. Idle entries are pruned
// lazily during checks.
type ipLimiter struct {
	limit rate.Limit
	burst int

	mu          sync.Mutex
	clients     map[string]*clientLimiter
	lastCleanup time.Time

	total   atomic.Uint64
	blocked atomic.Uint64
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// newIPLimiter returns nil when limiting is disabled.
func newIPLimiter(perSecond float64, burst int) *ipLimiter {
	if perSecond <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return &ipLimiter{
		limit:       rate.Limit(perSecond),
		burst:       burst,
		clients:     make(map[string]*clientLimiter),
		lastCleanup: time.Now(),
	}
}

// allow reports whether a request from remoteAddr may proceed.
func (l *ipLimiter) allow(remoteAddr string) bool {
	if l == nil {
		return true
	}
	l.total.Add(1)

	ip := remoteAddr
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		ip = host
	}

	now := time.Now()
	l.mu.Lock()
	if now.Sub(l.lastCleanup) > cleanupInterval {
		for key, c := range l.clients {
			if now.Sub(c.lastSeen) > idleTimeout {
				delete(l.clients, key)
			}
		}
		l.lastCleanup = now
	}
	c, ok := l.clients[ip]
	if !ok {
		c = &clientLimiter{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[ip] = c
	}
	c.lastSeen = now
	allowed := c.limiter.AllowN(now, 1)
	l.mu.Unlock()

	if !allowed {
		l.blocked.Add(1)
	}
	return allowed
}

func (l *ipLimiter) stats() map[string]any {
	if l == nil {
		return map[string]any{"enabled": false}
	}
	l.mu.Lock()
	tracked := len(l.clients)
	l.mu.Unlock()
	return map[string]any{
		"enabled":             true,
		"requests_per_second": float64(l.limit),
		"burst_size":          l.burst,
		"total_requests":      l.total.Load(),
		"blocked_requests":    l.blocked.Load(),
		"tracked_ips":         tracked,
	}
}
