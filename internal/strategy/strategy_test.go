package strategy

import (
	"testing"
	"time"

	"realtime_strategies/internal/core"
	"realtime_strategies/internal/market"
	"realtime_strategies/internal/params"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func depthEvent(symbol string, bids, asks [][2]float64, ts time.Time) *market.DepthUpdate {
	mk := func(levels [][2]float64) []market.PriceLevel {
		out := make([]market.PriceLevel, 0, len(levels))
		for _, l := range levels {
			out = append(out, market.PriceLevel{
				Price:    decimal.NewFromFloat(l[0]),
				Quantity: decimal.NewFromFloat(l[1]),
			})
		}
		return out
	}
	return &market.DepthUpdate{Symbol: symbol, EventTime: ts, Bids: mk(bids), Asks: mk(asks)}
}

func tickerEvent(symbol string, lastPrice float64, ts time.Time) *market.Ticker {
	return &market.Ticker{Symbol: symbol, EventTime: ts, LastPrice: decimal.NewFromFloat(lastPrice)}
}

func tradeEvent(symbol string, price, qty float64, takerBuy bool, ts time.Time) *market.Trade {
	return &market.Trade{
		Symbol:       symbol,
		EventTime:    ts,
		Price:        decimal.NewFromFloat(price),
		Quantity:     decimal.NewFromFloat(qty),
		BuyerIsMaker: !takerBuy,
		TradeTime:    ts,
	}
}

func defaultParams(id string) core.Params {
	return core.Params(params.Defaults(id))
}

func TestEmitGateEnforcesMinimumInterval(t *testing.T) {
	gate := newEmitGate()
	now := time.Now()

	assert.True(t, gate.allow("BTCUSDT", time.Minute, now))
	assert.False(t, gate.allow("BTCUSDT", time.Minute, now.Add(30*time.Second)))
	assert.True(t, gate.allow("BTCUSDT", time.Minute, now.Add(61*time.Second)))

	// Independent keys do not interfere.
	assert.True(t, gate.allow("ETHUSDT", time.Minute, now))
}
