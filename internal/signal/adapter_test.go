package signal

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransformCoreFields(t *testing.T) {
	sig := New("BTCUSDT", TypeBuy, ActionOpenLong, 0.85, decimal.NewFromInt(50000), "orderbook_skew",
		map[string]interface{}{"imbalance": 1.5})
	sig.Timestamp = time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)

	wire := NewAdapter().Transform(sig)

	assert.Equal(t, "BTCUSDT", wire["symbol"])
	assert.Equal(t, "buy", wire["signal_type"])
	assert.Equal(t, "buy", wire["action"])
	assert.Equal(t, 0.85, wire["confidence"])
	assert.Equal(t, "strong", wire["strength"])
	assert.Equal(t, 50000.0, wire["price"])
	assert.Equal(t, 50000.0, wire["current_price"])
	assert.Equal(t, SourceName, wire["source"])
	assert.Equal(t, "orderbook_skew", wire["strategy"])
	assert.Equal(t, "orderbook_skew_BTCUSDT", wire["strategy_id"])
	assert.Equal(t, "tick", wire["timeframe"])
	assert.Equal(t, "market", wire["order_type"])
	assert.Equal(t, "GTC", wire["time_in_force"])
	assert.Equal(t, "2026-02-10T12:00:00Z", wire["timestamp"])

	assert.NotEmpty(t, wire["id"])
	assert.NotEmpty(t, wire["signal_id"])

	meta, ok := wire["metadata"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, 1.5, meta["imbalance"])
	assert.Equal(t, "BUY", meta["original_signal_type"])
	assert.Equal(t, "OPEN_LONG", meta["original_signal_action"])
	assert.Equal(t, "HIGH", meta["original_confidence"])
}

func TestTransformPreservesSignalID(t *testing.T) {
	sig := New("ETHUSDT", TypeSell, ActionOpenShort, 0.6, decimal.NewFromInt(3000), "trade_momentum", nil)
	sig.SignalID = "abc-123"

	wire := NewAdapter().Transform(sig)
	assert.Equal(t, "abc-123", wire["signal_id"])
	assert.NotEqual(t, "abc-123", wire["id"])
}

func TestMapActionIsIdempotentOverWireValues(t *testing.T) {
	cases := map[Action]string{
		ActionOpenLong:   "buy",
		ActionOpenShort:  "sell",
		ActionCloseLong:  "close",
		ActionCloseShort: "close",
		ActionHold:       "hold",
	}
	for action, want := range cases {
		got := MapAction(action)
		assert.Equal(t, want, got)
		// A wire value fed back through the mapping stays unchanged.
		assert.Equal(t, got, MapAction(Action(got)), "re-mapping %q", got)
	}
}

func TestMapTypeIsIdempotentOverWireValues(t *testing.T) {
	for typ, want := range map[Type]string{TypeBuy: "buy", TypeSell: "sell", TypeHold: "hold"} {
		got := MapType(typ)
		assert.Equal(t, want, got)
		assert.Equal(t, got, MapType(Type(got)), "re-mapping %q", got)
	}
}

func TestMapStrengthBands(t *testing.T) {
	tests := []struct {
		score float64
		want  string
	}{
		{0.95, "extreme"},
		{0.9, "extreme"},
		{0.75, "strong"},
		{0.7, "strong"},
		{0.5, "medium"},
		{0.49, "weak"},
		{0.0, "weak"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MapStrength(tt.score), "score %v", tt.score)
	}
}

func TestDefaultQuantityTiers(t *testing.T) {
	assert.Equal(t, 0.002, DefaultQuantity(decimal.NewFromInt(50000)))
	assert.Equal(t, 0.17, DefaultQuantity(decimal.NewFromInt(300)))
	assert.Equal(t, 40.0, DefaultQuantity(decimal.NewFromFloat(0.5)))
	assert.Equal(t, 0.0, DefaultQuantity(decimal.Zero))
}

func TestRiskTiers(t *testing.T) {
	assert.Equal(t, 0.02, DefaultStopLoss(0.85))
	assert.Equal(t, 0.03, DefaultStopLoss(0.65))
	assert.Equal(t, 0.05, DefaultStopLoss(0.4))

	assert.Equal(t, 0.05, DefaultTakeProfit(0.85))
	assert.Equal(t, 0.04, DefaultTakeProfit(0.65))
	assert.Equal(t, 0.03, DefaultTakeProfit(0.4))
}

func TestBucketConfidence(t *testing.T) {
	assert.Equal(t, ConfidenceHigh, BucketConfidence(0.9))
	assert.Equal(t, ConfidenceMedium, BucketConfidence(0.6))
	assert.Equal(t, ConfidenceLow, BucketConfidence(0.2))
}

func TestNewClampsScore(t *testing.T) {
	sig := New("BTCUSDT", TypeBuy, ActionOpenLong, 1.7, decimal.NewFromInt(1), "x", nil)
	assert.Equal(t, 1.0, sig.ConfidenceScore)

	sig = New("BTCUSDT", TypeSell, ActionOpenShort, -0.5, decimal.NewFromInt(1), "x", nil)
	assert.Equal(t, 0.0, sig.ConfidenceScore)
}
