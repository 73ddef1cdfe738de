package strategy

import (
	"testing"

	"realtime_strategies/internal/market"
	"realtime_strategies/internal/mock"
	"realtime_strategies/internal/params"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryOrderAndFiltering(t *testing.T) {
	logger := mock.NewLogger()
	reg := NewRegistry()
	reg.Register(NewSkew(logger), true)
	reg.Register(NewMomentum(logger), true)
	reg.Register(NewVelocity(logger), false)

	assert.Equal(t, []string{
		params.StrategyOrderbookSkew,
		params.StrategyTradeMomentum,
		params.StrategyTickerVelocity,
	}, reg.IDs())

	depthStrategies := reg.EnabledFor(market.KindDepth)
	require.Len(t, depthStrategies, 1)
	assert.Equal(t, params.StrategyOrderbookSkew, depthStrategies[0].ID())

	// Disabled strategies are filtered even when the kind matches.
	assert.Empty(t, reg.EnabledFor(market.KindTicker))

	require.True(t, reg.SetEnabled(params.StrategyTickerVelocity, true))
	tickers := reg.EnabledFor(market.KindTicker)
	require.Len(t, tickers, 1)
	assert.Equal(t, params.StrategyTickerVelocity, tickers[0].ID())

	assert.False(t, reg.SetEnabled("no_such_strategy", true))
	assert.True(t, reg.IsEnabled(params.StrategyTradeMomentum))

	flags := reg.Flags()
	assert.True(t, flags[params.StrategyTickerVelocity])
}
