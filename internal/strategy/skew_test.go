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

func TestSkewBuyOnBidHeavyBook(t *testing.T) {
	s := NewSkew(mock.NewLogger())
	now := time.Now()

	// Top-5 bid volume 12.0 against ask volume 8.0 with a 0.15% spread.
	depth := depthEvent("BTCUSDT",
		[][2]float64{{50000, 4}, {49999, 3}, {49998, 2}, {49997, 2}, {49996, 1}},
		[][2]float64{{50075, 2}, {50076, 2}, {50077, 2}, {50078, 1}, {50079, 1}},
		now)

	sigs, err := s.OnEvent(context.Background(), depth, defaultParams(params.StrategyOrderbookSkew))
	require.NoError(t, err)
	require.Len(t, sigs, 1)

	sig := sigs[0]
	assert.Equal(t, signal.TypeBuy, sig.Type)
	assert.Equal(t, signal.ActionOpenLong, sig.Action)
	assert.Equal(t, params.StrategyOrderbookSkew, sig.StrategyName)
	assert.Equal(t, "BTCUSDT", sig.Symbol)
	assert.InDelta(t, 1.5, sig.Metadata["imbalance"].(float64), 1e-9)
	// |1.5 - 1| / (1.2 - 1) clamps to 1.
	assert.Equal(t, 1.0, sig.ConfidenceScore)
	assert.Equal(t, signal.ConfidenceHigh, sig.Confidence)
}

func TestSkewSellOnAskHeavyBook(t *testing.T) {
	s := NewSkew(mock.NewLogger())
	depth := depthEvent("BTCUSDT",
		[][2]float64{{50000, 1}},
		[][2]float64{{50100, 4}},
		time.Now())

	sigs, err := s.OnEvent(context.Background(), depth, defaultParams(params.StrategyOrderbookSkew))
	require.NoError(t, err)
	require.Len(t, sigs, 1)
	assert.Equal(t, signal.TypeSell, sigs[0].Type)
	assert.Equal(t, signal.ActionOpenShort, sigs[0].Action)
}

func TestSkewRejectsNarrowSpread(t *testing.T) {
	s := NewSkew(mock.NewLogger())
	// 0.02% spread is below the 0.1% default floor.
	depth := depthEvent("BTCUSDT",
		[][2]float64{{50000, 12}},
		[][2]float64{{50010, 2}},
		time.Now())

	sigs, err := s.OnEvent(context.Background(), depth, defaultParams(params.StrategyOrderbookSkew))
	require.NoError(t, err)
	assert.Empty(t, sigs)
}

func TestSkewNeutralBookIsQuiet(t *testing.T) {
	s := NewSkew(mock.NewLogger())
	depth := depthEvent("BTCUSDT",
		[][2]float64{{50000, 5}},
		[][2]float64{{50100, 5}},
		time.Now())

	sigs, err := s.OnEvent(context.Background(), depth, defaultParams(params.StrategyOrderbookSkew))
	require.NoError(t, err)
	assert.Empty(t, sigs)
}

func TestSkewEmptySideIsQuiet(t *testing.T) {
	s := NewSkew(mock.NewLogger())
	depth := depthEvent("BTCUSDT", [][2]float64{{50000, 5}}, nil, time.Now())

	sigs, err := s.OnEvent(context.Background(), depth, defaultParams(params.StrategyOrderbookSkew))
	require.NoError(t, err)
	assert.Empty(t, sigs)
}

func TestSkewThrottlesRepeatedImbalance(t *testing.T) {
	s := NewSkew(mock.NewLogger())
	ctx := context.Background()
	p := defaultParams(params.StrategyOrderbookSkew)
	now := time.Now()

	skewed := func(ts time.Time) *market.DepthUpdate {
		return depthEvent("BTCUSDT",
			[][2]float64{{50000, 12}},
			[][2]float64{{50100, 2}},
			ts)
	}

	// Five qualifying books a millisecond apart yield exactly one signal.
	var all []*signal.Signal
	for i := 0; i < 5; i++ {
		sigs, err := s.OnEvent(ctx, skewed(now.Add(time.Duration(i)*time.Millisecond)), p)
		require.NoError(t, err)
		all = append(all, sigs...)
	}
	assert.Len(t, all, 1)

	// Once min_signal_interval has passed the symbol may emit again.
	sigs, err := s.OnEvent(ctx, skewed(now.Add(61*time.Second)), p)
	require.NoError(t, err)
	assert.Len(t, sigs, 1)
}
