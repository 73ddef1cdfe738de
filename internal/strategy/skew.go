package strategy

import (
	"context"
	"math"

	"realtime_strategies/internal/core"
	"realtime_strategies/internal/market"
	"realtime_strategies/internal/params"
	"realtime_strategies/internal/signal"
)

// Skew trades order book imbalance: when the summed bid volume over the top
// levels dominates the ask volume (or vice versa) and the spread is wide
// enough to matter, the book is leaning and a directional signal is emitted.
type Skew struct {
	logger core.ILogger
	gate   *emitGate
}

// NewSkew creates the order book skew strategy
func NewSkew(logger core.ILogger) *Skew {
	return &Skew{
		logger: logger.WithField("strategy", params.StrategyOrderbookSkew),
		gate:   newEmitGate(),
	}
}

func (s *Skew) ID() string { return params.StrategyOrderbookSkew }

func (s *Skew) Wants(kind market.EventKind) bool { return kind == market.KindDepth }

func (s *Skew) OnEvent(ctx context.Context, evt market.Event, p core.Params) ([]*signal.Signal, error) {
	depth, ok := evt.(*market.DepthUpdate)
	if !ok || len(depth.Bids) == 0 || len(depth.Asks) == 0 {
		return nil, nil
	}

	topLevels := p.Int("top_levels", 5)
	buyThreshold := p.Float("buy_threshold", 1.2)
	sellThreshold := p.Float("sell_threshold", 0.8)
	minSpread := p.Float("min_spread_percent", 0.1)
	minInterval := seconds(p.Float("min_signal_interval", 60))

	spread := depth.SpreadPercent().InexactFloat64()
	if spread < minSpread {
		return nil, nil
	}

	bidVolume := sumTopQuantity(depth.Bids, topLevels)
	askVolume := sumTopQuantity(depth.Asks, topLevels)
	if askVolume <= 0 || bidVolume <= 0 {
		return nil, nil
	}
	imbalance := bidVolume / askVolume

	var (
		typ    signal.Type
		action signal.Action
	)
	switch {
	case imbalance >= buyThreshold:
		typ, action = signal.TypeBuy, signal.ActionOpenLong
	case imbalance <= sellThreshold:
		typ, action = signal.TypeSell, signal.ActionOpenShort
	default:
		return nil, nil
	}

	if !s.gate.allow(depth.Symbol, minInterval, depth.EventTime) {
		return nil, nil
	}

	denom := buyThreshold - 1
	if denom <= 0 {
		denom = 1
	}
	confidence := clamp(math.Abs(imbalance-1)/denom, 0, 1)

	sig := signal.New(depth.Symbol, typ, action, confidence, depth.MidPrice(), s.ID(), map[string]interface{}{
		"imbalance":      imbalance,
		"bid_volume":     bidVolume,
		"ask_volume":     askVolume,
		"top_levels":     topLevels,
		"spread_percent": spread,
	})
	s.logger.Debug("Order book skew signal",
		"symbol", depth.Symbol, "type", string(typ), "imbalance", imbalance)
	return []*signal.Signal{sig}, nil
}
