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

// Spreads narrower than this are never treated as liquidity events
const minEventSpreadBps = 10.0

// A wide spread must persist this long before its normalization is a signal
const widePersistence = 30 * time.Second

type spreadTick struct {
	ts        time.Time
	spreadBps float64
	depth     float64
	imbalance float64 // top-N bid/ask volume ratio before the event resolves
}

type wideSpreadEvent struct {
	start     time.Time
	spreadBps float64
}

// SpreadLiquidity detects liquidity withdrawal and return from spread
// dynamics. A tight spread widening rapidly while depth evaporates means
// makers are pulling out (defensive SELL); a persistently wide spread
// snapping back means liquidity is returning (BUY). The defensive action
// depends on the pre-event imbalance: a bid-heavy book closes longs rather
// than opening shorts.
type SpreadLiquidity struct {
	logger core.ILogger
	gate   *emitGate

	mu         sync.Mutex
	history    map[string][]spreadTick
	wideEvents map[string]wideSpreadEvent
}

// NewSpreadLiquidity creates the spread/liquidity strategy
func NewSpreadLiquidity(logger core.ILogger) *SpreadLiquidity {
	return &SpreadLiquidity{
		logger:     logger.WithField("strategy", params.StrategySpreadLiquidity),
		gate:       newEmitGate(),
		history:    make(map[string][]spreadTick),
		wideEvents: make(map[string]wideSpreadEvent),
	}
}

func (s *SpreadLiquidity) ID() string { return params.StrategySpreadLiquidity }

func (s *SpreadLiquidity) Wants(kind market.EventKind) bool { return kind == market.KindDepth }

func (s *SpreadLiquidity) OnEvent(ctx context.Context, evt market.Event, p core.Params) ([]*signal.Signal, error) {
	depth, ok := evt.(*market.DepthUpdate)
	if !ok || len(depth.Bids) == 0 || len(depth.Asks) == 0 {
		return nil, nil
	}

	historySize := p.Int("history_size", 20)
	ratioThreshold := p.Float("spread_ratio_threshold", 2.5)
	velocityThreshold := p.Float("velocity_threshold", 0.5)
	depthDropThreshold := p.Float("depth_drop_threshold", 0.5)
	topLevels := p.Int("top_levels", 5)
	minInterval := seconds(p.Float("min_signal_interval", 60))
	baseConfidence := p.Float("base_confidence", 0.7)

	bestBid := depth.Bids[0].Price.InexactFloat64()
	bestAsk := depth.Asks[0].Price.InexactFloat64()
	if bestBid <= 0 || bestAsk <= bestBid {
		return nil, nil
	}
	midPrice := (bestBid + bestAsk) / 2
	spreadBps := (bestAsk - bestBid) / midPrice * 10000

	bidVolume := sumTopQuantity(depth.Bids, topLevels)
	askVolume := sumTopQuantity(depth.Asks, topLevels)
	if askVolume <= 0 {
		return nil, nil
	}
	totalDepth := bidVolume + askVolume
	imbalance := bidVolume / askVolume

	now := depth.EventTime
	tick := spreadTick{ts: now, spreadBps: spreadBps, depth: totalDepth, imbalance: imbalance}

	s.mu.Lock()
	history := append(s.history[depth.Symbol], tick)
	if n := len(history) - historySize; n > 0 {
		history = append(history[:0], history[n:]...)
	}
	s.history[depth.Symbol] = history

	if len(history) < 3 {
		s.mu.Unlock()
		return nil, nil
	}

	// Comparative metrics against the window excluding the current tick.
	past := history[:len(history)-1]
	var avgSpread, avgDepth float64
	for _, t := range past {
		avgSpread += t.spreadBps
		avgDepth += t.depth
	}
	avgSpread /= float64(len(past))
	avgDepth /= float64(len(past))

	spreadRatio := 1.0
	if avgSpread > 0 {
		spreadRatio = spreadBps / avgSpread
	}
	velocity := 0.0
	oldest := history[0]
	if dt := now.Sub(oldest.ts).Seconds(); dt > 0 && oldest.spreadBps > 0 {
		velocity = (spreadBps - oldest.spreadBps) / oldest.spreadBps / dt
	}
	depthDrop := 0.0
	if avgDepth > 0 {
		depthDrop = 1 - totalDepth/avgDepth
	}
	preImbalance := history[len(history)-2].imbalance

	// Wide spread normalizing after persisting: liquidity returning.
	if wide, tracking := s.wideEvents[depth.Symbol]; tracking {
		persistence := now.Sub(wide.start)
		if velocity < -velocityThreshold && spreadRatio < ratioThreshold && persistence > widePersistence {
			delete(s.wideEvents, depth.Symbol)
			s.mu.Unlock()
			confidence := math.Min(0.95, baseConfidence+
				(spreadRatio-ratioThreshold)*0.05+
				math.Min(0.10, persistence.Seconds()/300*0.10))
			return s.emit(depth, signal.TypeBuy, signal.ActionOpenLong, confidence, map[string]interface{}{
				"event_type":          "narrowing",
				"spread_bps":          spreadBps,
				"spread_ratio":        spreadRatio,
				"spread_velocity":     velocity,
				"total_depth":         totalDepth,
				"pre_imbalance":       preImbalance,
				"persistence_seconds": persistence.Seconds(),
			}, minInterval, now)
		}
	}

	// Start tracking an abnormal wide spread.
	if spreadRatio > ratioThreshold && spreadBps > minEventSpreadBps {
		if _, tracking := s.wideEvents[depth.Symbol]; !tracking {
			s.wideEvents[depth.Symbol] = wideSpreadEvent{start: now, spreadBps: spreadBps}
		}
	}
	s.mu.Unlock()

	// Rapid widening with depth evaporating: liquidity withdrawal.
	if velocity > velocityThreshold && spreadRatio > ratioThreshold*1.2 && depthDrop > depthDropThreshold {
		action := signal.ActionOpenShort
		if preImbalance >= 1 {
			action = signal.ActionCloseLong
		}
		confidence := math.Min(0.95, baseConfidence+math.Abs(velocity)*0.10+depthDrop*0.15)
		return s.emit(depth, signal.TypeSell, action, confidence, map[string]interface{}{
			"event_type":          "widening",
			"spread_bps":          spreadBps,
			"spread_ratio":        spreadRatio,
			"spread_velocity":     velocity,
			"total_depth":         totalDepth,
			"depth_reduction_pct": depthDrop,
			"pre_imbalance":       preImbalance,
		}, minInterval, now)
	}

	return nil, nil
}

func (s *SpreadLiquidity) emit(depth *market.DepthUpdate, typ signal.Type, action signal.Action, confidence float64, metadata map[string]interface{}, minInterval time.Duration, now time.Time) ([]*signal.Signal, error) {
	if !s.gate.allow(depth.Symbol, minInterval, now) {
		return nil, nil
	}
	sig := signal.New(depth.Symbol, typ, action, confidence, depth.MidPrice(), s.ID(), metadata)
	s.logger.Info("Spread liquidity signal",
		"symbol", depth.Symbol, "type", string(typ),
		"event_type", metadata["event_type"], "spread_bps", metadata["spread_bps"])
	return []*signal.Signal{sig}, nil
}
