package strategy

import (
	"context"
	"testing"
	"time"

	"realtime_strategies/internal/mock"
	"realtime_strategies/internal/params"
	"realtime_strategies/internal/signal"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCrossExchangeEmitsPairedSignals(t *testing.T) {
	quotes := NewQuoteCache()
	c := NewCrossExchange(quotes, mock.NewLogger())
	now := time.Now()

	quotes.Set("coinbase", "BTCUSDT", decimal.NewFromInt(50250), now)

	sigs, err := c.OnEvent(context.Background(),
		tradeEvent("BTCUSDT", 50000, 0.5, true, now),
		defaultParams(params.StrategyCrossExchangeSpread))
	require.NoError(t, err)
	require.Len(t, sigs, 2)

	buy, sell := sigs[0], sigs[1]
	assert.Equal(t, signal.TypeBuy, buy.Type)
	assert.Equal(t, "binance", buy.Metadata["buy_exchange"])
	assert.Equal(t, 50000.0, buy.Metadata["buy_price"])
	assert.Equal(t, "binance", buy.Metadata["target_exchange"])

	assert.Equal(t, signal.TypeSell, sell.Type)
	assert.Equal(t, "coinbase", sell.Metadata["sell_exchange"])
	assert.Equal(t, 50250.0, sell.Metadata["sell_price"])
	assert.Equal(t, "coinbase", sell.Metadata["target_exchange"])

	assert.InDelta(t, 0.5, buy.Metadata["spread_percent"].(float64), 1e-9)
	assert.Equal(t, buy.ConfidenceScore, sell.ConfidenceScore)
}

func TestCrossExchangeRateLimitsPerVenuePair(t *testing.T) {
	quotes := NewQuoteCache()
	c := NewCrossExchange(quotes, mock.NewLogger())
	now := time.Now()
	p := defaultParams(params.StrategyCrossExchangeSpread)

	quotes.Set("coinbase", "BTCUSDT", decimal.NewFromInt(50250), now)
	sigs, err := c.OnEvent(context.Background(), tradeEvent("BTCUSDT", 50000, 0.5, true, now), p)
	require.NoError(t, err)
	require.Len(t, sigs, 2)

	// The same opportunity a minute later is suppressed.
	quotes.Set("coinbase", "BTCUSDT", decimal.NewFromInt(50250), now.Add(time.Minute))
	sigs, err = c.OnEvent(context.Background(), tradeEvent("BTCUSDT", 50000, 0.5, true, now.Add(time.Minute)), p)
	require.NoError(t, err)
	assert.Empty(t, sigs)
}

func TestCrossExchangeIgnoresStaleQuotes(t *testing.T) {
	quotes := NewQuoteCache()
	c := NewCrossExchange(quotes, mock.NewLogger())
	now := time.Now()

	quotes.Set("coinbase", "BTCUSDT", decimal.NewFromInt(51000), now.Add(-2*time.Minute))

	sigs, err := c.OnEvent(context.Background(),
		tradeEvent("BTCUSDT", 50000, 0.5, true, now),
		defaultParams(params.StrategyCrossExchangeSpread))
	require.NoError(t, err)
	assert.Empty(t, sigs)
}

func TestCrossExchangeBelowThresholdIsQuiet(t *testing.T) {
	quotes := NewQuoteCache()
	c := NewCrossExchange(quotes, mock.NewLogger())
	now := time.Now()

	quotes.Set("coinbase", "BTCUSDT", decimal.NewFromInt(50100), now)

	sigs, err := c.OnEvent(context.Background(),
		tradeEvent("BTCUSDT", 50000, 0.5, true, now),
		defaultParams(params.StrategyCrossExchangeSpread))
	require.NoError(t, err)
	assert.Empty(t, sigs)
}

func TestCrossExchangeHighSpreadBoostsConfidence(t *testing.T) {
	quotes := NewQuoteCache()
	c := NewCrossExchange(quotes, mock.NewLogger())
	now := time.Now()

	// 1.5% spread clears the high-conviction threshold.
	quotes.Set("kraken", "BTCUSDT", decimal.NewFromInt(50750), now)

	sigs, err := c.OnEvent(context.Background(),
		tradeEvent("BTCUSDT", 50000, 0.5, true, now),
		defaultParams(params.StrategyCrossExchangeSpread))
	require.NoError(t, err)
	require.Len(t, sigs, 2)
	assert.GreaterOrEqual(t, sigs[0].ConfidenceScore, 0.85)
}
