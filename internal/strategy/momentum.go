package strategy

import (
	"context"
	"math"
	"sync"

	"realtime_strategies/internal/core"
	"realtime_strategies/internal/market"
	"realtime_strategies/internal/params"
	"realtime_strategies/internal/signal"
)

type tradeSample struct {
	price    float64
	quantity float64
	// takerBuy is true when the aggressor bought, i.e. the buyer was NOT
	// the resting maker order.
	takerBuy bool
}

// Momentum scores short-term trade flow per symbol as a weighted blend of
// price change, signed quantity share, and taker direction. Each component
// is normalized into [-1, 1] before weighting.
type Momentum struct {
	logger core.ILogger
	gate   *emitGate

	mu      sync.Mutex
	windows map[string][]tradeSample
}

// NewMomentum creates the trade momentum strategy
func NewMomentum(logger core.ILogger) *Momentum {
	return &Momentum{
		logger:  logger.WithField("strategy", params.StrategyTradeMomentum),
		gate:    newEmitGate(),
		windows: make(map[string][]tradeSample),
	}
}

func (m *Momentum) ID() string { return params.StrategyTradeMomentum }

func (m *Momentum) Wants(kind market.EventKind) bool { return kind == market.KindTrade }

func (m *Momentum) OnEvent(ctx context.Context, evt market.Event, p core.Params) ([]*signal.Signal, error) {
	trade, ok := evt.(*market.Trade)
	if !ok || trade.Price.Sign() <= 0 {
		return nil, nil
	}

	priceWeight := p.Float("price_weight", 0.4)
	qtyWeight := p.Float("quantity_weight", 0.3)
	makerWeight := p.Float("maker_weight", 0.3)
	buyThreshold := p.Float("buy_threshold", 0.7)
	sellThreshold := p.Float("sell_threshold", -0.7)
	minQuantity := p.Float("min_quantity", 0.001)
	windowSize := p.Int("window_size", 50)
	minInterval := seconds(p.Float("min_signal_interval", 30))
	if windowSize < 2 {
		windowSize = 2
	}

	sample := tradeSample{
		price:    trade.Price.InexactFloat64(),
		quantity: trade.Quantity.InexactFloat64(),
		takerBuy: !trade.BuyerIsMaker,
	}

	m.mu.Lock()
	window := append(m.windows[trade.Symbol], sample)
	if n := len(window) - windowSize; n > 0 {
		window = append(window[:0], window[n:]...)
	}
	m.windows[trade.Symbol] = window
	score, ok := momentumScore(window, priceWeight, qtyWeight, makerWeight)
	m.mu.Unlock()

	// Undersized windows and dust trades never signal; the sample is
	// still recorded above.
	if !ok || sample.quantity < minQuantity {
		return nil, nil
	}

	var (
		typ    signal.Type
		action signal.Action
	)
	switch {
	case score >= buyThreshold:
		typ, action = signal.TypeBuy, signal.ActionOpenLong
	case score <= sellThreshold:
		typ, action = signal.TypeSell, signal.ActionOpenShort
	default:
		return nil, nil
	}

	if !m.gate.allow(trade.Symbol, minInterval, trade.EventTime) {
		return nil, nil
	}

	sig := signal.New(trade.Symbol, typ, action, clamp(math.Abs(score), 0, 1), trade.Price, m.ID(), map[string]interface{}{
		"momentum_score": score,
		"window_trades":  len(window),
		"last_quantity":  sample.quantity,
	})
	m.logger.Debug("Trade momentum signal",
		"symbol", trade.Symbol, "type", string(typ), "score", score)
	return []*signal.Signal{sig}, nil
}

// momentumScore blends the three flow components over the window. A window
// of fewer than two trades carries no direction.
func momentumScore(window []tradeSample, priceWeight, qtyWeight, makerWeight float64) (float64, bool) {
	if len(window) < 2 {
		return 0, false
	}

	first := window[0].price
	last := window[len(window)-1].price
	if first <= 0 {
		return 0, false
	}
	// A 1% move over the window saturates the price component.
	priceComponent := clamp((last-first)/first*100, -1, 1)

	var buyQty, sellQty, buyCount, sellCount float64
	for _, s := range window {
		if s.takerBuy {
			buyQty += s.quantity
			buyCount++
		} else {
			sellQty += s.quantity
			sellCount++
		}
	}
	totalQty := buyQty + sellQty
	if totalQty <= 0 {
		return 0, false
	}
	qtyComponent := (buyQty - sellQty) / totalQty
	makerComponent := (buyCount - sellCount) / float64(len(window))

	return priceWeight*priceComponent + qtyWeight*qtyComponent + makerWeight*makerComponent, true
}
