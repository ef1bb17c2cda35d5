// FILE: logfan/src/internal/engine/reporter.go
package engine

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// Reporter is the fallback channel for sink failures. Every error is counted
// per source; at most one line per interval is written to the output.
type Reporter struct {
	out     io.Writer
	limiter *rate.Limiter

	mu     sync.Mutex
	counts map[string]uint64

	total      atomic.Uint64
	suppressed atomic.Uint64
}

// NewReporter writes to out, allowing one report per interval.
// A non-positive interval disables throttling.
func NewReporter(out io.Writer, interval time.Duration) *Reporter {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &Reporter{
		out:     out,
		limiter: rate.NewLimiter(limit, 1),
		counts:  make(map[string]uint64),
	}
}

// Report records err for source and prints it unless throttled.
func (r *Reporter) Report(source string, err error) {
	if err == nil {
		return
	}
	r.total.Add(1)
	r.mu.Lock()
	r.counts[source]++
	r.mu.Unlock()

	if !r.limiter.Allow() {
		r.suppressed.Add(1)
		return
	}
	if skipped := r.suppressed.Swap(0); skipped > 0 {
		fmt.Fprintf(r.out, "logfan: %s: %v (%d more errors suppressed)\n", source, err, skipped)
		return
	}
	fmt.Fprintf(r.out, "logfan: %s: %v\n", source, err)
}

// Counts returns the number of errors seen per source.
func (r *Reporter) Counts() map[string]uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]uint64, len(r.counts))
	for k, v := range r.counts {
		out[k] = v
	}
	return out
}

// Total returns the number of errors reported.
func (r *Reporter) Total() uint64 {
	return r.total.Load()
}
