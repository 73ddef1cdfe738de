package signal

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Wire field constants shared with the trade engine contract
const (
	SourceName       = "realtime-strategies"
	DefaultTimeframe = "tick"
	OrderTypeMarket  = "market"
	TimeInForceGTC   = "GTC"
)

// Adapter maps internal signals onto the trade engine wire contract
type Adapter struct{}

// NewAdapter creates an adapter
func NewAdapter() *Adapter {
	return &Adapter{}
}

// Transform converts a signal into the trade engine wire dictionary. The
// action mapping is stable: applying it to an already mapped action string
// yields the same string.
func (a *Adapter) Transform(sig *Signal) map[string]interface{} {
	id := uuid.NewString()
	signalID := sig.SignalID
	if signalID == "" {
		signalID = uuid.NewString()
	}

	timeframe := DefaultTimeframe
	if tf, ok := sig.Metadata["timeframe"].(string); ok && tf != "" {
		timeframe = tf
	}

	metadata := make(map[string]interface{}, len(sig.Metadata)+3)
	for k, v := range sig.Metadata {
		metadata[k] = v
	}
	metadata["original_signal_type"] = string(sig.Type)
	metadata["original_signal_action"] = string(sig.Action)
	metadata["original_confidence"] = string(sig.Confidence)

	price := sig.Price.InexactFloat64()

	return map[string]interface{}{
		"id":            id,
		"signal_id":     signalID,
		"strategy_id":   sig.StrategyName + "_" + sig.Symbol,
		"strategy_mode": "deterministic",

		"symbol":      sig.Symbol,
		"signal_type": MapType(sig.Type),
		"action":      MapAction(sig.Action),
		"confidence":  sig.ConfidenceScore,
		"strength":    MapStrength(sig.ConfidenceScore),

		"price":         price,
		"quantity":      DefaultQuantity(sig.Price),
		"current_price": price,
		"target_price":  price,

		"source":   SourceName,
		"strategy": sig.StrategyName,
		"metadata": metadata,

		"timeframe":     timeframe,
		"order_type":    OrderTypeMarket,
		"time_in_force": TimeInForceGTC,

		"stop_loss":       nil,
		"stop_loss_pct":   DefaultStopLoss(sig.ConfidenceScore),
		"take_profit":     nil,
		"take_profit_pct": DefaultTakeProfit(sig.ConfidenceScore),

		"timestamp": sig.Timestamp.UTC().Format(time.RFC3339Nano),
	}
}

// MapType lowercases a signal type for the wire; unknown values map to
// hold. Already-mapped wire values pass through unchanged.
func MapType(t Type) string {
	switch t {
	case TypeBuy, Type("buy"):
		return "buy"
	case TypeSell, Type("sell"):
		return "sell"
	}
	return "hold"
}

// MapAction maps a position action onto the trade engine action verb.
// Both close actions collapse into "close". Already-mapped wire verbs
// pass through unchanged, so applying the mapping twice is a no-op.
func MapAction(a Action) string {
	switch a {
	case ActionOpenLong, Action("buy"):
		return "buy"
	case ActionOpenShort, Action("sell"):
		return "sell"
	case ActionCloseLong, ActionCloseShort, Action("close"):
		return "close"
	}
	return "hold"
}

// MapStrength buckets a confidence score into trade engine strength bands
func MapStrength(score float64) string {
	switch {
	case score >= 0.9:
		return "extreme"
	case score >= 0.7:
		return "strong"
	case score >= 0.5:
		return "medium"
	}
	return "weak"
}

// DefaultQuantity sizes an order by price magnitude: $100 worth for
// large-cap prices, $50 for mid-caps, $20 for low-price assets.
func DefaultQuantity(price decimal.Decimal) float64 {
	p := price.InexactFloat64()
	if p <= 0 {
		return 0
	}
	switch {
	case p > 10000:
		return round(100/p, 4)
	case p > 100:
		return round(50/p, 2)
	}
	return round(20/p, 2)
}

// DefaultStopLoss tightens the stop as confidence rises
func DefaultStopLoss(score float64) float64 {
	switch {
	case score >= 0.8:
		return 0.02
	case score >= 0.6:
		return 0.03
	}
	return 0.05
}

// DefaultTakeProfit widens the target as confidence rises
func DefaultTakeProfit(score float64) float64 {
	switch {
	case score >= 0.8:
		return 0.05
	case score >= 0.6:
		return 0.04
	}
	return 0.03
}

func round(v float64, places int) float64 {
	shift := decimal.NewFromFloat(v).Round(int32(places))
	f, _ := shift.Float64()
	return f
}
