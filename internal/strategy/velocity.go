package strategy

import (
	"context"
	"math"
	"sync"
	"time"

	"realtime_strategies/internal/core"
	"realtime_strategies/internal/market"
	"realtime_strategies/internal/params"
	"realtime_strategies/internal/signal"
)

type priceSample struct {
	ts    time.Time
	price float64
}

// Velocity watches 24h-ticker last prices and reacts to the percentage
// change across a short rolling time window.
type Velocity struct {
	logger core.ILogger
	gate   *emitGate

	mu      sync.Mutex
	samples map[string][]priceSample
}

// NewVelocity creates the ticker velocity strategy
func NewVelocity(logger core.ILogger) *Velocity {
	return &Velocity{
		logger:  logger.WithField("strategy", params.StrategyTickerVelocity),
		gate:    newEmitGate(),
		samples: make(map[string][]priceSample),
	}
}

func (v *Velocity) ID() string { return params.StrategyTickerVelocity }

func (v *Velocity) Wants(kind market.EventKind) bool { return kind == market.KindTicker }

func (v *Velocity) OnEvent(ctx context.Context, evt market.Event, p core.Params) ([]*signal.Signal, error) {
	ticker, ok := evt.(*market.Ticker)
	if !ok || ticker.LastPrice.Sign() <= 0 {
		return nil, nil
	}

	window := seconds(p.Float("time_window", 60))
	buyThreshold := p.Float("buy_threshold", 0.5)
	sellThreshold := p.Float("sell_threshold", -0.5)
	minPriceChange := p.Float("min_price_change", 0.1)
	minInterval := seconds(p.Float("min_signal_interval", 60))

	now := ticker.EventTime
	price := ticker.LastPrice.InexactFloat64()

	v.mu.Lock()
	samples := append(v.samples[ticker.Symbol], priceSample{ts: now, price: price})
	cutoff := now.Add(-window)
	firstKept := 0
	for firstKept < len(samples) && samples[firstKept].ts.Before(cutoff) {
		firstKept++
	}
	if firstKept > 0 {
		samples = append(samples[:0], samples[firstKept:]...)
	}
	v.samples[ticker.Symbol] = samples
	oldest := samples[0]
	v.mu.Unlock()

	if len(samples) < 2 || oldest.price <= 0 {
		return nil, nil
	}

	velocity := (price - oldest.price) / oldest.price * 100
	if math.Abs(velocity) < minPriceChange {
		return nil, nil
	}

	var (
		typ       signal.Type
		action    signal.Action
		threshold float64
	)
	switch {
	case velocity >= buyThreshold:
		typ, action, threshold = signal.TypeBuy, signal.ActionOpenLong, buyThreshold
	case velocity <= sellThreshold:
		typ, action, threshold = signal.TypeSell, signal.ActionOpenShort, sellThreshold
	default:
		return nil, nil
	}

	if !v.gate.allow(ticker.Symbol, minInterval, now) {
		return nil, nil
	}

	// Confidence is 0.5 at the threshold and saturates at twice it.
	confidence := clamp(math.Abs(velocity)/(2*math.Abs(threshold)), 0, 1)

	sig := signal.New(ticker.Symbol, typ, action, confidence, ticker.LastPrice, v.ID(), map[string]interface{}{
		"velocity_percent": velocity,
		"window_seconds":   window.Seconds(),
		"window_samples":   len(samples),
	})
	v.logger.Debug("Ticker velocity signal",
		"symbol", ticker.Symbol, "type", string(typ), "velocity", velocity)
	return []*signal.Signal{sig}, nil
}
