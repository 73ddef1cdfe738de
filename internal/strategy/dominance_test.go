package strategy

import (
	"context"
	"testing"
	"time"

	"realtime_strategies/internal/mock"
	"realtime_strategies/internal/params"
	"realtime_strategies/internal/signal"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDominanceRotatesIntoBTC(t *testing.T) {
	d := NewDominance(mock.NewLogger())
	now := time.Now()

	// Two hours of BTC-only momentum puts dominance at the top of the band,
	// and the primed history makes the trend read as rising.
	d.priceHistory["BTCUSDT"] = []priceSample{
		{ts: now.Add(-2 * time.Hour), price: 50000},
		{ts: now.Add(-time.Hour), price: 51000},
	}
	d.domHistory = []dominanceSample{
		{ts: now.Add(-2 * time.Hour), value: 70},
		{ts: now.Add(-time.Hour), value: 71},
	}

	sigs, err := d.OnEvent(context.Background(),
		tickerEvent("BTCUSDT", 52000, now),
		defaultParams(params.StrategyBTCDominance))
	require.NoError(t, err)
	require.Len(t, sigs, 1)

	sig := sigs[0]
	assert.Equal(t, "BTCUSDT", sig.Symbol)
	assert.Equal(t, signal.TypeBuy, sig.Type)
	assert.Equal(t, signal.ActionOpenLong, sig.Action)
	assert.Equal(t, 0.80, sig.ConfidenceScore)
	assert.Equal(t, "dominance_rotation", sig.Metadata["strategy_type"])
	assert.Equal(t, "rising", sig.Metadata["trend"])
	assert.InDelta(t, 80.0, sig.Metadata["dominance"].(float64), 1e-9)
}

func TestDominanceMomentumOn24hChange(t *testing.T) {
	d := NewDominance(mock.NewLogger())
	now := time.Now()

	// BTC and ETH move in lockstep, so dominance sits mid-band and only the
	// 24h change against the day-old sample drives the signal.
	d.priceHistory["BTCUSDT"] = []priceSample{
		{ts: now.Add(-2 * time.Hour), price: 50000},
		{ts: now.Add(-time.Hour), price: 50500},
	}
	d.priceHistory["ETHUSDT"] = []priceSample{
		{ts: now.Add(-2 * time.Hour), price: 3000},
		{ts: now.Add(-time.Hour), price: 3060},
	}
	d.domHistory = []dominanceSample{
		{ts: now.Add(-25 * time.Hour), value: 48},
		{ts: now.Add(-2 * time.Hour), value: 54},
		{ts: now.Add(-time.Hour), value: 54.5},
	}

	sigs, err := d.OnEvent(context.Background(),
		tickerEvent("BTCUSDT", 51000, now),
		defaultParams(params.StrategyBTCDominance))
	require.NoError(t, err)
	require.Len(t, sigs, 1)

	sig := sigs[0]
	assert.Equal(t, signal.TypeBuy, sig.Type)
	assert.Equal(t, "dominance_momentum", sig.Metadata["strategy_type"])
	// Symmetric momentum lands dominance at 55; change is 7 points over 24h.
	assert.InDelta(t, 55.0, sig.Metadata["dominance"].(float64), 1e-9)
	assert.InDelta(t, 7.0, sig.Metadata["change_24h"].(float64), 1e-9)
	assert.InDelta(t, 0.7, sig.ConfidenceScore, 1e-9)
}

func TestDominanceRateLimited(t *testing.T) {
	d := NewDominance(mock.NewLogger())
	now := time.Now()
	p := defaultParams(params.StrategyBTCDominance)

	d.priceHistory["BTCUSDT"] = []priceSample{
		{ts: now.Add(-2 * time.Hour), price: 50000},
		{ts: now.Add(-time.Hour), price: 51000},
	}
	d.domHistory = []dominanceSample{
		{ts: now.Add(-2 * time.Hour), value: 70},
		{ts: now.Add(-time.Hour), value: 71},
	}

	sigs, err := d.OnEvent(context.Background(), tickerEvent("BTCUSDT", 52000, now), p)
	require.NoError(t, err)
	require.Len(t, sigs, 1)

	// Still rotating an hour later, but inside the 4h interval.
	sigs, err = d.OnEvent(context.Background(), tickerEvent("BTCUSDT", 53000, now.Add(time.Hour)), p)
	require.NoError(t, err)
	assert.Empty(t, sigs)
}

func TestDominanceQuietWithoutHistory(t *testing.T) {
	d := NewDominance(mock.NewLogger())

	sigs, err := d.OnEvent(context.Background(),
		tickerEvent("BTCUSDT", 50000, time.Now()),
		defaultParams(params.StrategyBTCDominance))
	require.NoError(t, err)
	assert.Empty(t, sigs)
}

func TestDominanceIgnoresOtherSymbols(t *testing.T) {
	d := NewDominance(mock.NewLogger())

	sigs, err := d.OnEvent(context.Background(),
		tickerEvent("SOLUSDT", 150, time.Now()),
		defaultParams(params.StrategyBTCDominance))
	require.NoError(t, err)
	assert.Empty(t, sigs)
}
