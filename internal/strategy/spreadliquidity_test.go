package strategy

import (
	"context"
	"testing"
	"time"

	"realtime_strategies/internal/market"
	"realtime_strategies/internal/mock"
	"realtime_strategies/internal/params"
	"realtime_strategies/internal/signal"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// slDepth builds a one-level book around a 50000 mid with the given spread
// in basis points.
func slDepth(spreadBps, bidQty, askQty float64, ts time.Time) *market.DepthUpdate {
	half := 50000 * spreadBps / 10000 / 2
	return depthEvent("BTCUSDT",
		[][2]float64{{50000 - half, bidQty}},
		[][2]float64{{50000 + half, askQty}},
		ts)
}

func slFeed(t *testing.T, s *SpreadLiquidity, p map[string]interface{}, evt *market.DepthUpdate) []*signal.Signal {
	t.Helper()
	sigs, err := s.OnEvent(context.Background(), evt, p)
	require.NoError(t, err)
	return sigs
}

func TestSpreadLiquiditySellsOnRapidWidening(t *testing.T) {
	s := NewSpreadLiquidity(mock.NewLogger())
	p := defaultParams(params.StrategySpreadLiquidity)
	now := time.Now()

	// A long stretch of 1bps ticks with 20 units of depth.
	for i := 0; i < 19; i++ {
		sigs := slFeed(t, s, p, slDepth(1, 10, 10, now.Add(time.Duration(i)*time.Second)))
		assert.Empty(t, sigs)
	}

	// The spread blows out to 20bps while four fifths of the depth vanishes.
	sigs := slFeed(t, s, p, slDepth(20, 2, 2, now.Add(19*time.Second)))
	require.Len(t, sigs, 1)

	sig := sigs[0]
	assert.Equal(t, signal.TypeSell, sig.Type)
	// The book was balanced before the event, so the defensive action is to
	// close longs rather than open a short.
	assert.Equal(t, signal.ActionCloseLong, sig.Action)
	assert.Equal(t, "widening", sig.Metadata["event_type"])
	assert.InDelta(t, 20.0, sig.Metadata["spread_ratio"].(float64), 1e-9)
	assert.InDelta(t, 0.8, sig.Metadata["depth_reduction_pct"].(float64), 1e-9)
	assert.InDelta(t, 0.92, sig.ConfidenceScore, 1e-9)
}

func TestSpreadLiquidityShortsWhenBookWasAskHeavy(t *testing.T) {
	s := NewSpreadLiquidity(mock.NewLogger())
	p := defaultParams(params.StrategySpreadLiquidity)
	now := time.Now()

	for i := 0; i < 19; i++ {
		slFeed(t, s, p, slDepth(1, 4, 10, now.Add(time.Duration(i)*time.Second)))
	}
	sigs := slFeed(t, s, p, slDepth(20, 0.8, 2, now.Add(19*time.Second)))
	require.Len(t, sigs, 1)
	assert.Equal(t, signal.TypeSell, sigs[0].Type)
	assert.Equal(t, signal.ActionOpenShort, sigs[0].Action)
}

func TestSpreadLiquidityBuysWhenWideSpreadNormalizes(t *testing.T) {
	s := NewSpreadLiquidity(mock.NewLogger())
	p := defaultParams(params.StrategySpreadLiquidity)
	p["history_size"] = 5
	now := time.Now()

	// Tight baseline, then the spread jumps to 30bps and stays there long
	// enough to register as a persistent liquidity event.
	for i := 0; i < 3; i++ {
		slFeed(t, s, p, slDepth(1, 10, 10, now.Add(time.Duration(i)*time.Second)))
	}
	wideAt := []time.Duration{
		3 * time.Second,
		33 * time.Second,
		33200 * time.Millisecond,
		33400 * time.Millisecond,
		33600 * time.Millisecond,
	}
	for _, off := range wideAt {
		sigs := slFeed(t, s, p, slDepth(30, 10, 10, now.Add(off)))
		assert.Empty(t, sigs)
	}

	// The snap back to 3bps after 31 seconds of wide quoting is liquidity
	// returning.
	sigs := slFeed(t, s, p, slDepth(3, 10, 10, now.Add(34*time.Second)))
	require.Len(t, sigs, 1)

	sig := sigs[0]
	assert.Equal(t, signal.TypeBuy, sig.Type)
	assert.Equal(t, signal.ActionOpenLong, sig.Action)
	assert.Equal(t, "narrowing", sig.Metadata["event_type"])
	assert.InDelta(t, 31.0, sig.Metadata["persistence_seconds"].(float64), 1e-9)
}

func TestSpreadLiquidityNeedsHistory(t *testing.T) {
	s := NewSpreadLiquidity(mock.NewLogger())
	p := defaultParams(params.StrategySpreadLiquidity)
	now := time.Now()

	sigs := slFeed(t, s, p, slDepth(1, 10, 10, now))
	assert.Empty(t, sigs)
	sigs = slFeed(t, s, p, slDepth(50, 1, 1, now.Add(time.Second)))
	assert.Empty(t, sigs)
}

func TestSpreadLiquidityIgnoresEmptyBook(t *testing.T) {
	s := NewSpreadLiquidity(mock.NewLogger())
	depth := depthEvent("BTCUSDT", [][2]float64{{50000, 5}}, nil, time.Now())

	sigs, err := s.OnEvent(context.Background(), depth, defaultParams(params.StrategySpreadLiquidity))
	require.NoError(t, err)
	assert.Empty(t, sigs)
}
