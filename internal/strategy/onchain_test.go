package strategy

import (
	"context"
	"sync"
	"testing"
	"time"

	"realtime_strategies/internal/mock"
	"realtime_strategies/internal/params"
	"realtime_strategies/internal/signal"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSource struct {
	mu    sync.Mutex
	calls int
	snap  OnchainSnapshot
}

func (s *countingSource) Fetch(ctx context.Context, asset string) (OnchainSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.snap, nil
}

func (s *countingSource) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// primeOnchain seeds a baseline/current snapshot pair and suppresses
// fetching so the decision runs against exactly these numbers.
func primeOnchain(o *Onchain, asset string, now time.Time, baseline, current OnchainSnapshot) {
	baseline.Asset, current.Asset = asset, asset
	baseline.Timestamp = now.Add(-25 * time.Hour)
	current.Timestamp = now.Add(-time.Hour)
	o.mu.Lock()
	o.history[asset] = []OnchainSnapshot{baseline, current}
	o.lastFetch[asset] = now
	o.mu.Unlock()
}

func TestOnchainBuysOnNetworkGrowth(t *testing.T) {
	o := NewOnchain(&countingSource{}, mock.NewLogger())
	now := time.Now()

	primeOnchain(o, "BTC", now,
		OnchainSnapshot{ActiveAddresses: 1_000_000, TxVolume: 5e9, HashRate: 500, ExchangeInflow: 100, ExchangeOutflow: 100},
		OnchainSnapshot{ActiveAddresses: 1_100_000, TxVolume: 5.5e9, HashRate: 520, ExchangeInflow: 100, ExchangeOutflow: 200})

	sigs, err := o.OnEvent(context.Background(),
		tickerEvent("BTCUSDT", 50000, now),
		defaultParams(params.StrategyOnchainMetrics))
	require.NoError(t, err)
	require.Len(t, sigs, 1)

	sig := sigs[0]
	assert.Equal(t, signal.TypeBuy, sig.Type)
	assert.Equal(t, signal.ActionOpenLong, sig.Action)
	assert.Equal(t, "network_growth", sig.Metadata["signal_type"])
	assert.Equal(t, "BTC", sig.Metadata["asset"])
	// 10% address and volume growth: (10+10)/30, under the strong-signal cap.
	assert.InDelta(t, 20.0/30.0, sig.ConfidenceScore, 1e-9)
}

func TestOnchainGrowthNeedsHashrateConfirmation(t *testing.T) {
	o := NewOnchain(&countingSource{}, mock.NewLogger())
	now := time.Now()

	// Activity is up but hashrate is flat, so the BTC growth case is vetoed.
	primeOnchain(o, "BTC", now,
		OnchainSnapshot{ActiveAddresses: 1_000_000, TxVolume: 5e9, HashRate: 500},
		OnchainSnapshot{ActiveAddresses: 1_100_000, TxVolume: 5.5e9, HashRate: 500})

	sigs, err := o.OnEvent(context.Background(),
		tickerEvent("BTCUSDT", 50000, now),
		defaultParams(params.StrategyOnchainMetrics))
	require.NoError(t, err)
	assert.Empty(t, sigs)
}

func TestOnchainSellsOnExchangeInflow(t *testing.T) {
	o := NewOnchain(&countingSource{}, mock.NewLogger())
	now := time.Now()

	primeOnchain(o, "ETH", now,
		OnchainSnapshot{ActiveAddresses: 500_000, TxVolume: 2e9, DefiTVL: 50e9, ExchangeInflow: 400, ExchangeOutflow: 400},
		OnchainSnapshot{ActiveAddresses: 500_000, TxVolume: 2e9, DefiTVL: 50e9, ExchangeInflow: 2500, ExchangeOutflow: 500})

	sigs, err := o.OnEvent(context.Background(),
		tickerEvent("ETHUSDT", 3000, now),
		defaultParams(params.StrategyOnchainMetrics))
	require.NoError(t, err)
	require.Len(t, sigs, 1)

	sig := sigs[0]
	assert.Equal(t, signal.TypeSell, sig.Type)
	assert.Equal(t, signal.ActionOpenShort, sig.Action)
	assert.Equal(t, "exchange_inflow_pressure", sig.Metadata["signal_type"])
	assert.InDelta(t, 2000.0, sig.Metadata["net_exchange_flow"].(float64), 1e-9)
	// Net inflow of 2000 scales to 0.4 against the 5000 full-confidence mark.
	assert.InDelta(t, 0.4, sig.ConfidenceScore, 1e-9)
}

func TestOnchainRefreshesAtMostHourly(t *testing.T) {
	src := &countingSource{snap: OnchainSnapshot{ActiveAddresses: 1_000_000}}
	o := NewOnchain(src, mock.NewLogger())
	now := time.Now()
	p := defaultParams(params.StrategyOnchainMetrics)
	ctx := context.Background()

	_, err := o.OnEvent(ctx, tickerEvent("BTCUSDT", 50000, now), p)
	require.NoError(t, err)
	_, err = o.OnEvent(ctx, tickerEvent("BTCUSDT", 50000, now.Add(10*time.Minute)), p)
	require.NoError(t, err)
	_, err = o.OnEvent(ctx, tickerEvent("BTCUSDT", 50000, now.Add(70*time.Minute)), p)
	require.NoError(t, err)

	assert.Equal(t, 2, src.count())
}

func TestOnchainIgnoresUnmappedSymbols(t *testing.T) {
	src := &countingSource{}
	o := NewOnchain(src, mock.NewLogger())

	sigs, err := o.OnEvent(context.Background(),
		tickerEvent("SOLUSDT", 150, time.Now()),
		defaultParams(params.StrategyOnchainMetrics))
	require.NoError(t, err)
	assert.Empty(t, sigs)
	assert.Zero(t, src.count())
}
