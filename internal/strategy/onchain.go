package strategy

import (
	"context"
	"math"
	"strings"
	"sync"
	"time"

	"realtime_strategies/internal/core"
	"realtime_strategies/internal/market"
	"realtime_strategies/internal/params"
	"realtime_strategies/internal/signal"
)

// OnchainSnapshot is one point-in-time view of network metrics for an asset.
// HashRate applies to BTC, DefiTVL to ETH; the other fields apply to both.
type OnchainSnapshot struct {
	Asset           string
	ActiveAddresses float64
	TxVolume        float64
	HashRate        float64
	DefiTVL         float64
	ExchangeInflow  float64
	ExchangeOutflow float64
	Timestamp       time.Time
}

// OnchainSource supplies metric snapshots. Production implementations poll
// external metric APIs; tests feed synthetic snapshots.
type OnchainSource interface {
	Fetch(ctx context.Context, asset string) (OnchainSnapshot, error)
}

// onchainRefreshInterval is how often the strategy refreshes a snapshot
// per asset, independent of event rate
const onchainRefreshInterval = time.Hour

// onchainHistoryLimit bounds per-asset history to a week of hourly samples
const onchainHistoryLimit = 7 * 24

// Onchain trades network fundamentals: growing on-chain activity is
// bullish, with hashrate (BTC) or DeFi TVL (ETH) as confirmation; a large
// net flow of coins onto exchanges is distribution and bearish.
type Onchain struct {
	logger core.ILogger
	source OnchainSource
	gate   *emitGate

	mu        sync.Mutex
	history   map[string][]OnchainSnapshot
	lastFetch map[string]time.Time
}

// NewOnchain creates the on-chain metrics strategy over the given source
func NewOnchain(source OnchainSource, logger core.ILogger) *Onchain {
	return &Onchain{
		logger:    logger.WithField("strategy", params.StrategyOnchainMetrics),
		source:    source,
		gate:      newEmitGate(),
		history:   make(map[string][]OnchainSnapshot),
		lastFetch: make(map[string]time.Time),
	}
}

func (o *Onchain) ID() string { return params.StrategyOnchainMetrics }

func (o *Onchain) Wants(kind market.EventKind) bool {
	return kind == market.KindTicker || kind == market.KindTrade
}

func (o *Onchain) OnEvent(ctx context.Context, evt market.Event, p core.Params) ([]*signal.Signal, error) {
	symbol := evt.GetSymbol()
	asset := onchainAsset(symbol)
	if asset == "" {
		return nil, nil
	}
	price := eventPrice(evt)
	if price.Sign() <= 0 {
		return nil, nil
	}
	now := evt.GetEventTime()

	o.refresh(ctx, asset, now)

	growthThreshold := p.Float("network_growth_threshold", 5.0)
	inflowThreshold := p.Float("net_inflow_threshold", 1000.0)
	minInterval := seconds(p.Float("min_signal_interval", 3600))
	baseConfidence := p.Float("base_confidence", 0.77)
	strongConfidence := p.Float("strong_signal_confidence", 0.85)

	o.mu.Lock()
	current, baseline, ok := o.growthPairLocked(asset, now)
	o.mu.Unlock()
	if !ok {
		return nil, nil
	}

	addressGrowth := percentChange(baseline.ActiveAddresses, current.ActiveAddresses)
	volumeGrowth := percentChange(baseline.TxVolume, current.TxVolume)
	netFlow := current.ExchangeInflow - current.ExchangeOutflow

	var (
		typ        signal.Type
		action     signal.Action
		confidence float64
		mode       string
	)
	switch {
	case addressGrowth > growthThreshold && volumeGrowth > growthThreshold:
		// Confirmation differs per asset: BTC wants network security
		// improving, ETH wants ecosystem usage growing.
		if asset == "BTC" && percentChange(baseline.HashRate, current.HashRate) <= 0 {
			return nil, nil
		}
		if asset == "ETH" && percentChange(baseline.DefiTVL, current.DefiTVL) <= 5 {
			return nil, nil
		}
		typ, action = signal.TypeBuy, signal.ActionOpenLong
		confidence = math.Min(strongConfidence, (addressGrowth+volumeGrowth)/30)
		mode = "network_growth"
	case netFlow > inflowThreshold:
		typ, action = signal.TypeSell, signal.ActionOpenShort
		confidence = math.Min(baseConfidence, netFlow/5000)
		mode = "exchange_inflow_pressure"
	default:
		return nil, nil
	}

	if !o.gate.allow(asset, minInterval, now) {
		return nil, nil
	}

	sig := signal.New(symbol, typ, action, confidence, price, o.ID(), map[string]interface{}{
		"asset":                  asset,
		"active_addresses_24h":   addressGrowth,
		"transaction_volume_24h": volumeGrowth,
		"net_exchange_flow":      netFlow,
		"signal_type":            mode,
	})
	o.logger.Info("On-chain metrics signal",
		"symbol", symbol, "type", string(typ), "mode", mode)
	return []*signal.Signal{sig}, nil
}

// refresh fetches a fresh snapshot for the asset at most once per refresh
// interval. Fetch failures are logged and swallowed; stale history keeps
// serving until the next attempt.
func (o *Onchain) refresh(ctx context.Context, asset string, now time.Time) {
	o.mu.Lock()
	last, ok := o.lastFetch[asset]
	if ok && now.Sub(last) < onchainRefreshInterval {
		o.mu.Unlock()
		return
	}
	o.lastFetch[asset] = now
	o.mu.Unlock()

	snap, err := o.source.Fetch(ctx, asset)
	if err != nil {
		o.logger.Warn("On-chain metrics fetch failed", "asset", asset, "error", err)
		return
	}
	if snap.Timestamp.IsZero() {
		snap.Timestamp = now
	}
	snap.Asset = asset

	o.mu.Lock()
	hist := append(o.history[asset], snap)
	if n := len(hist) - onchainHistoryLimit; n > 0 {
		hist = append(hist[:0], hist[n:]...)
	}
	o.history[asset] = hist
	o.mu.Unlock()
}

// growthPairLocked returns the latest snapshot plus the newest one at least
// 24 hours older, the pair the decision table compares
func (o *Onchain) growthPairLocked(asset string, now time.Time) (OnchainSnapshot, OnchainSnapshot, bool) {
	hist := o.history[asset]
	if len(hist) < 2 {
		return OnchainSnapshot{}, OnchainSnapshot{}, false
	}
	current := hist[len(hist)-1]
	dayAgo := now.Add(-24 * time.Hour)
	var baseline *OnchainSnapshot
	for i := range hist {
		if hist[i].Timestamp.After(dayAgo) {
			break
		}
		baseline = &hist[i]
	}
	if baseline == nil {
		return OnchainSnapshot{}, OnchainSnapshot{}, false
	}
	return current, *baseline, true
}

func onchainAsset(symbol string) string {
	switch {
	case strings.HasPrefix(symbol, "BTC"):
		return "BTC"
	case strings.HasPrefix(symbol, "ETH"):
		return "ETH"
	}
	return ""
}

func percentChange(prev, curr float64) float64 {
	if prev == 0 {
		return 0
	}
	return (curr - prev) / prev * 100
}
