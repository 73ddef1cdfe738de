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

	"github.com/shopspring/decimal"
)

type dominanceSample struct {
	ts    time.Time
	value float64
}

// Dominance approximates Bitcoin market dominance from the relative price
// momentum of BTC, ETH and BNB and emits rotation signals on BTCUSDT.
// High dominance with a rising trend rotates into BTC; low dominance with
// a falling trend rotates out; in between, large 24h dominance moves alone
// drive momentum signals.
type Dominance struct {
	logger core.ILogger
	gate   *emitGate

	mu           sync.Mutex
	priceHistory map[string][]priceSample
	domHistory   []dominanceSample
	lastPrice    map[string]decimal.Decimal
}

var dominanceSymbols = []string{"BTCUSDT", "ETHUSDT", "BNBUSDT"}

// NewDominance creates the Bitcoin dominance strategy
func NewDominance(logger core.ILogger) *Dominance {
	return &Dominance{
		logger:       logger.WithField("strategy", params.StrategyBTCDominance),
		gate:         newEmitGate(),
		priceHistory: make(map[string][]priceSample),
		lastPrice:    make(map[string]decimal.Decimal),
	}
}

func (d *Dominance) ID() string { return params.StrategyBTCDominance }

func (d *Dominance) Wants(kind market.EventKind) bool {
	return kind == market.KindTicker || kind == market.KindTrade
}

func (d *Dominance) OnEvent(ctx context.Context, evt market.Event, p core.Params) ([]*signal.Signal, error) {
	symbol := evt.GetSymbol()
	if !isDominanceSymbol(symbol) {
		return nil, nil
	}

	price := eventPrice(evt)
	if price.Sign() <= 0 {
		return nil, nil
	}

	windowHours := p.Int("window_hours", 24)
	highThreshold := p.Float("high_threshold", 70.0)
	lowThreshold := p.Float("low_threshold", 40.0)
	changeThreshold := p.Float("change_threshold", 5.0)
	minInterval := seconds(p.Float("min_signal_interval", 14400))
	confidenceHigh := p.Float("base_confidence_high", 0.80)
	confidenceLow := p.Float("base_confidence_low", 0.75)
	momentumConfidence := p.Float("momentum_confidence", 0.70)

	now := evt.GetEventTime()
	window := time.Duration(windowHours) * time.Hour

	d.mu.Lock()
	d.recordPriceLocked(symbol, price, now, window)

	dominance, ok := d.dominanceLocked(now, window)
	if !ok {
		d.mu.Unlock()
		return nil, nil
	}
	d.recordDominanceLocked(dominance, now)
	trend := d.trendLocked()
	change24h := d.change24hLocked(now)
	btcPrice := d.lastPrice["BTCUSDT"]
	d.mu.Unlock()

	if btcPrice.Sign() <= 0 {
		return nil, nil
	}

	var (
		typ          signal.Type
		action       signal.Action
		confidence   float64
		strategyMode string
	)
	switch {
	case dominance > highThreshold && (trend == "rising" || change24h > changeThreshold):
		typ, action = signal.TypeBuy, signal.ActionOpenLong
		confidence = confidenceHigh
		strategyMode = "dominance_rotation"
	case dominance < lowThreshold && (trend == "falling" || change24h < -changeThreshold):
		typ, action = signal.TypeSell, signal.ActionOpenShort
		confidence = confidenceLow
		strategyMode = "dominance_rotation"
	case math.Abs(change24h) > changeThreshold:
		confidence = math.Min(momentumConfidence, math.Abs(change24h)/10)
		strategyMode = "dominance_momentum"
		if change24h > 0 {
			typ, action = signal.TypeBuy, signal.ActionOpenLong
		} else {
			typ, action = signal.TypeSell, signal.ActionOpenShort
		}
	default:
		return nil, nil
	}

	// All dominance signals target BTCUSDT, so one key covers the strategy.
	if !d.gate.allow("BTCUSDT", minInterval, now) {
		return nil, nil
	}

	sig := signal.New("BTCUSDT", typ, action, confidence, btcPrice, d.ID(), map[string]interface{}{
		"dominance":     dominance,
		"trend":         trend,
		"change_24h":    change24h,
		"strategy_type": strategyMode,
	})
	d.logger.Info("Bitcoin dominance signal",
		"type", string(typ), "dominance", dominance, "trend", trend, "change_24h", change24h)
	return []*signal.Signal{sig}, nil
}

func isDominanceSymbol(symbol string) bool {
	for _, s := range dominanceSymbols {
		if s == symbol {
			return true
		}
	}
	return false
}

func eventPrice(evt market.Event) decimal.Decimal {
	switch e := evt.(type) {
	case *market.Ticker:
		return e.LastPrice
	case *market.Trade:
		return e.Price
	}
	return decimal.Zero
}

func (d *Dominance) recordPriceLocked(symbol string, price decimal.Decimal, now time.Time, window time.Duration) {
	d.lastPrice[symbol] = price
	// Keep one extra hour so a sample just outside the window still anchors
	// the momentum baseline.
	cutoff := now.Add(-window - time.Hour)
	samples := append(d.priceHistory[symbol], priceSample{ts: now, price: price.InexactFloat64()})
	firstKept := 0
	for firstKept < len(samples) && samples[firstKept].ts.Before(cutoff) {
		firstKept++
	}
	if firstKept > 0 {
		samples = append(samples[:0], samples[firstKept:]...)
	}
	d.priceHistory[symbol] = samples
}

// dominanceLocked computes the momentum-share proxy normalized into the
// 30-80% band. It reports false when BTC history is too thin or the total
// momentum is not positive (no dominance computable).
func (d *Dominance) dominanceLocked(now time.Time, window time.Duration) (float64, bool) {
	if len(d.priceHistory["BTCUSDT"]) < 2 {
		return 0, false
	}
	windowStart := now.Add(-window)

	btc := momentumOver(d.priceHistory["BTCUSDT"], windowStart)
	eth := momentumOver(d.priceHistory["ETHUSDT"], windowStart)
	bnb := momentumOver(d.priceHistory["BNBUSDT"], windowStart)

	total := btc + eth + bnb
	if total <= 0 {
		return 0, false
	}
	return 30 + (btc/total)*50, true
}

// momentumOver is the percent price change across the window, shifted by a
// +10 base so flat assets still contribute and floored at zero
func momentumOver(samples []priceSample, windowStart time.Time) float64 {
	var inWindow []priceSample
	for _, s := range samples {
		if !s.ts.Before(windowStart) {
			inWindow = append(inWindow, s)
		}
	}
	if len(inWindow) < 2 {
		return 0
	}
	start := inWindow[0].price
	end := inWindow[len(inWindow)-1].price
	if start <= 0 {
		return 0
	}
	momentum := (end - start) / start * 100
	return math.Max(0, momentum+10)
}

func (d *Dominance) recordDominanceLocked(dominance float64, now time.Time) {
	cutoff := now.Add(-48 * time.Hour)
	hist := append(d.domHistory, dominanceSample{ts: now, value: dominance})
	firstKept := 0
	for firstKept < len(hist) && hist[firstKept].ts.Before(cutoff) {
		firstKept++
	}
	if firstKept > 0 {
		hist = append(hist[:0], hist[firstKept:]...)
	}
	d.domHistory = hist
}

// trendLocked classifies the last three dominance samples. A move of more
// than one point end to end counts as a trend.
func (d *Dominance) trendLocked() string {
	if len(d.domHistory) < 3 {
		return "unknown"
	}
	recent := d.domHistory[len(d.domHistory)-3:]
	switch {
	case recent[2].value > recent[0].value+1:
		return "rising"
	case recent[2].value < recent[0].value-1:
		return "falling"
	}
	return "stable"
}

// change24hLocked is the dominance delta versus the most recent sample at
// least 24 hours old; zero when no such sample exists
func (d *Dominance) change24hLocked(now time.Time) float64 {
	if len(d.domHistory) < 2 {
		return 0
	}
	dayAgo := now.Add(-24 * time.Hour)
	var past *dominanceSample
	for i := range d.domHistory {
		if d.domHistory[i].ts.After(dayAgo) {
			break
		}
		past = &d.domHistory[i]
	}
	if past == nil {
		return 0
	}
	return d.domHistory[len(d.domHistory)-1].value - past.value
}
