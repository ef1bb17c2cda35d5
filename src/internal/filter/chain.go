// FILE: logfan/src/internal/filter/chain.go
package filter

import (
	"fmt"
	"sync/atomic"

	"logfan/src/internal/config"
	"logfan/src/internal/core"

	"github.com/lixenwraith/log"
)

// Chain applies filters in order; a message must pass all of them.
type Chain struct {
	filters []*Filter
	logger  *log.Logger

	totalProcessed atomic.Uint64
	totalPassed    atomic.Uint64
}

// NewChain builds a chain from configs. An empty list yields a chain that
// passes everything.
func NewChain(configs []config.FilterConfig, logger *log.Logger) (*Chain, error) {
	chain := &Chain{
		filters: make([]*Filter, 0, len(configs)),
		logger:  logger,
	}

	for i, cfg := range configs {
		filter, err := NewFilter(cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("filter[%d]: %w", i, err)
		}
		chain.filters = append(chain.filters, filter)
	}

	if len(configs) > 0 {
		logger.Info("msg", "Filter chain created",
			"component", "filter_chain",
			"filter_count", len(configs))
	}
	return chain, nil
}

func (c *Chain) Apply(msg core.LogMessage) bool {
	c.totalProcessed.Add(1)

	for i, filter := range c.filters {
		if !filter.Apply(msg) {
			c.logger.Debug("msg", "Message filtered out",
				"component", "filter_chain",
				"filter_index", i,
				"filter_type", filter.config.Type)
			return false
		}
	}

	c.totalPassed.Add(1)
	return true
}

// Len returns the number of filters.
func (c *Chain) Len() int {
	return len(c.filters)
}

func (c *Chain) GetStats() map[string]any {
	filterStats := make([]map[string]any, len(c.filters))
	for i, filter := range c.filters {
		filterStats[i] = filter.GetStats()
	}

	return map[string]any{
		"filter_count":    len(c.filters),
		"total_processed": c.totalProcessed.Load(),
		"total_passed":    c.totalPassed.Load(),
		"filters":         filterStats,
	}
}
