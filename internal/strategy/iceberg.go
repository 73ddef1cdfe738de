package strategy

import (
	"context"

	"realtime_strategies/internal/core"
	"realtime_strategies/internal/market"
	"realtime_strategies/internal/orderbook"
	"realtime_strategies/internal/params"
	"realtime_strategies/internal/signal"
)

// Iceberg surfaces hidden institutional orders from the shared order book
// tracker. A hidden bid is support (BUY), a hidden ask is resistance
// (SELL); the strongest pattern near the mid price wins. The tracker is
// fed by the dispatcher before strategies run, so this strategy only reads.
type Iceberg struct {
	logger  core.ILogger
	tracker *orderbook.Tracker
	gate    *emitGate
}

// NewIceberg creates the iceberg detector over the shared tracker
func NewIceberg(tracker *orderbook.Tracker, logger core.ILogger) *Iceberg {
	return &Iceberg{
		logger:  logger.WithField("strategy", params.StrategyIcebergDetector),
		tracker: tracker,
		gate:    newEmitGate(),
	}
}

func (i *Iceberg) ID() string { return params.StrategyIcebergDetector }

func (i *Iceberg) Wants(kind market.EventKind) bool { return kind == market.KindDepth }

func (i *Iceberg) OnEvent(ctx context.Context, evt market.Event, p core.Params) ([]*signal.Signal, error) {
	depth, ok := evt.(*market.DepthUpdate)
	if !ok || len(depth.Bids) == 0 || len(depth.Asks) == 0 {
		return nil, nil
	}

	detection := orderbook.DetectionParams{
		ProximityPercent:     p.Float("proximity_percent", 1.0),
		DepletionThreshold:   p.Float("depletion_threshold", 0.3),
		RefillThreshold:      p.Float("refill_threshold", 0.8),
		MinRefillCount:       p.Int("min_refill_count", 2),
		FastRefillSeconds:    p.Float("fast_refill_seconds", 5.0),
		ConsistencyThreshold: p.Float("consistency_threshold", 0.9),
		PersistenceSeconds:   p.Float("persistence_seconds", 120.0),
	}
	minConfidence := p.Float("min_confidence", 0.6)
	minInterval := seconds(p.Float("min_signal_interval", 120))
	sideFilter := p.String("side_filter", "both")

	mid := depth.MidPrice()
	patterns := i.tracker.DetectIcebergs(depth.Symbol, mid, detection)
	if len(patterns) == 0 {
		return nil, nil
	}

	// Patterns arrive strongest first; take the best one that clears the
	// confidence floor and side filter.
	for _, pat := range patterns {
		if pat.Confidence < minConfidence {
			break
		}
		if sideFilter != "both" && string(pat.Side) != sideFilter {
			continue
		}

		var (
			typ    signal.Type
			action signal.Action
		)
		if pat.Side == orderbook.SideBid {
			typ, action = signal.TypeBuy, signal.ActionOpenLong
		} else {
			typ, action = signal.TypeSell, signal.ActionOpenShort
		}

		key := depth.Symbol + "|" + pat.Price.String() + "|" + string(pat.Side)
		if !i.gate.allow(key, minInterval, depth.EventTime) {
			return nil, nil
		}

		price := pat.Price.InexactFloat64()
		midFloat := mid.InexactFloat64()
		distancePct := 0.0
		if midFloat > 0 {
			distancePct = (midFloat - price) / midFloat * 100
			if distancePct < 0 {
				distancePct = -distancePct
			}
		}

		sig := signal.New(depth.Symbol, typ, action, pat.Confidence, mid, i.ID(), map[string]interface{}{
			"pattern_type":          pat.PatternType,
			"iceberg_price":         price,
			"iceberg_side":          string(pat.Side),
			"refill_count":          pat.RefillCount,
			"avg_refill_latency":    pat.AvgRefillLatency,
			"volume_consistency":    pat.VolumeConsistency,
			"persistence_seconds":   pat.PersistenceSeconds,
			"distance_to_level_pct": distancePct,
		})
		i.logger.Info("Iceberg signal",
			"symbol", depth.Symbol, "side", string(pat.Side),
			"price", price, "pattern", pat.PatternType, "confidence", pat.Confidence)
		return []*signal.Signal{sig}, nil
	}
	return nil, nil
}
