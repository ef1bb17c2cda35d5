// FILE: logfan/src/internal/filter/chain_test.go
package filter

import (
	"testing"

	"logfan/src/internal/config"
	"logfan/src/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewChain(t *testing.T) {
	logger := newTestLogger()

	t.Run("Success", func(t *testing.T) {
		chain, err := NewChain([]config.FilterConfig{
			{Type: config.FilterTypeInclude, Patterns: []string{"apple"}},
			{Type: config.FilterTypeExclude, Patterns: []string{"banana"}},
		}, logger)
		require.NoError(t, err)
		assert.Equal(t, 2, chain.Len())
	})

	t.Run("ErrorInvalidRegexInChain", func(t *testing.T) {
		chain, err := NewChain([]config.FilterConfig{
			{Patterns: []string{"apple"}},
			{Patterns: []string{"["}},
		}, logger)
		assert.Error(t, err)
		assert.Nil(t, chain)
		assert.Contains(t, err.Error(), "filter[1]")
	})
}

func TestChain_Apply(t *testing.T) {
	logger := newTestLogger()
	m := core.NewLogMessage(core.SeverityInfo, "an apple a day", core.Location{})

	t.Run("EmptyChain", func(t *testing.T) {
		chain, err := NewChain(nil, logger)
		require.NoError(t, err)
		assert.True(t, chain.Apply(m))
	})

	t.Run("AllFiltersPass", func(t *testing.T) {
		chain, err := NewChain([]config.FilterConfig{
			{Type: config.FilterTypeInclude, Patterns: []string{"apple"}},
			{Type: config.FilterTypeInclude, Patterns: []string{"day"}},
			{Type: config.FilterTypeExclude, Patterns: []string{"banana"}},
		}, logger)
		require.NoError(t, err)
		assert.True(t, chain.Apply(m))
	})

	t.Run("OneFilterFails", func(t *testing.T) {
		chain, err := NewChain([]config.FilterConfig{
			{Type: config.FilterTypeInclude, Patterns: []string{"apple"}},
			{Type: config.FilterTypeExclude, Patterns: []string{"day"}},
		}, logger)
		require.NoError(t, err)
		assert.False(t, chain.Apply(m))

		stats := chain.GetStats()
		assert.Equal(t, uint64(1), stats["total_processed"])
		assert.Equal(t, uint64(0), stats["total_passed"])
	})
}
