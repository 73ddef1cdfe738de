package strategy

import (
	"context"
	"math"

	"realtime_strategies/internal/core"
	"realtime_strategies/internal/market"
	"realtime_strategies/internal/params"
	"realtime_strategies/internal/signal"
)

// PrimaryVenue is the venue fed by the inbound market data stream
const PrimaryVenue = "binance"

// CrossExchange compares the primary stream's price against cached quotes
// from other venues and emits a paired arbitrage signal when the gap
// exceeds the threshold: BUY at the cheap venue, SELL at the expensive one.
// External venue quotes are fed into the shared QuoteCache by a poller.
type CrossExchange struct {
	logger core.ILogger
	quotes *QuoteCache
	gate   *emitGate
}

// NewCrossExchange creates the cross-exchange spread strategy over the
// given quote cache
func NewCrossExchange(quotes *QuoteCache, logger core.ILogger) *CrossExchange {
	return &CrossExchange{
		logger: logger.WithField("strategy", params.StrategyCrossExchangeSpread),
		quotes: quotes,
		gate:   newEmitGate(),
	}
}

func (c *CrossExchange) ID() string { return params.StrategyCrossExchangeSpread }

func (c *CrossExchange) Wants(kind market.EventKind) bool {
	return kind == market.KindTicker || kind == market.KindTrade
}

func (c *CrossExchange) OnEvent(ctx context.Context, evt market.Event, p core.Params) ([]*signal.Signal, error) {
	price := eventPrice(evt)
	if price.Sign() <= 0 {
		return nil, nil
	}
	symbol := evt.GetSymbol()
	now := evt.GetEventTime()
	c.quotes.Set(PrimaryVenue, symbol, price, now)

	threshold := p.Float("spread_threshold_percent", 0.5)
	minInterval := seconds(p.Float("min_signal_interval", 300))
	maxPosition := p.Float("max_position_size", 500)
	maxAge := seconds(p.Float("price_max_age_seconds", 60))
	highSpreadThreshold := p.Float("high_spread_threshold", 1.0)
	highSpreadConfidence := p.Float("high_spread_confidence", 0.85)

	fresh := c.quotes.Snapshot(symbol, maxAge, now)
	if len(fresh) < 2 {
		return nil, nil
	}

	low, high := fresh[0], fresh[0]
	for _, q := range fresh[1:] {
		if q.Price.LessThan(low.Price) {
			low = q
		}
		if q.Price.GreaterThan(high.Price) {
			high = q
		}
	}
	if low.Venue == high.Venue || low.Price.Sign() <= 0 {
		return nil, nil
	}

	spread := high.Price.Sub(low.Price).Div(low.Price).InexactFloat64() * 100
	if spread < threshold {
		return nil, nil
	}

	if !c.gate.allow(symbol+"|"+high.Venue+"|"+low.Venue, minInterval, now) {
		return nil, nil
	}

	confidence := math.Min(0.95, spread/2)
	if spread >= highSpreadThreshold {
		confidence = math.Max(confidence, highSpreadConfidence)
	}

	metadata := func(target string) map[string]interface{} {
		return map[string]interface{}{
			"spread_percent":     spread,
			"buy_exchange":       low.Venue,
			"sell_exchange":      high.Venue,
			"buy_price":          low.Price.InexactFloat64(),
			"sell_price":         high.Price.InexactFloat64(),
			"target_exchange":    target,
			"arbitrage_type":     "cross_exchange",
			"position_size_usdt": math.Min(maxPosition, maxPosition*confidence),
		}
	}

	buy := signal.New(symbol, signal.TypeBuy, signal.ActionOpenLong, confidence, low.Price, c.ID(), metadata(low.Venue))
	sell := signal.New(symbol, signal.TypeSell, signal.ActionOpenShort, confidence, high.Price, c.ID(), metadata(high.Venue))

	c.logger.Info("Cross-exchange arbitrage signals",
		"symbol", symbol, "spread_percent", spread,
		"buy_exchange", low.Venue, "sell_exchange", high.Venue)
	return []*signal.Signal{buy, sell}, nil
}
