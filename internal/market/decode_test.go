package market

import (
	"errors"
	"testing"
	"time"

	apperrors "realtime_strategies/pkg/errors"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeMessage_Depth(t *testing.T) {
	payload := []byte(`{
		"stream": "btcusdt@depth20@100ms",
		"data": {
			"e": "depthUpdate", "E": 1700000000000, "s": "BTCUSDT",
			"U": 100, "u": 105,
			"b": [["50000.00","2.5"],["49999.50","1.0"]],
			"a": [["50001.00","3.0"],["50002.00","0.5"]]
		}
	}`)

	evt, err := DecodeMessage(payload)
	require.NoError(t, err)

	depth, ok := evt.(*DepthUpdate)
	require.True(t, ok, "expected *DepthUpdate, got %T", evt)

	assert.Equal(t, "BTCUSDT", depth.GetSymbol())
	assert.Equal(t, KindDepth, depth.Kind())
	assert.Equal(t, int64(100), depth.FirstUpdateID)
	assert.Equal(t, int64(105), depth.FinalUpdateID)
	assert.Equal(t, time.UnixMilli(1700000000000), depth.GetEventTime())
	require.Len(t, depth.Bids, 2)
	require.Len(t, depth.Asks, 2)
	assert.True(t, depth.Bids[0].Price.Equal(decimal.RequireFromString("50000.00")))
	assert.True(t, depth.Asks[0].Quantity.Equal(decimal.RequireFromString("3.0")))
}

func TestDecodeMessage_DepthEnforcesOrdering(t *testing.T) {
	// Bids arrive ascending, asks descending; decode must normalize.
	payload := []byte(`{
		"stream": "btcusdt@depth",
		"data": {
			"E": 1700000000000, "s": "BTCUSDT", "U": 1, "u": 2,
			"b": [["49999.50","1.0"],["50000.00","2.5"]],
			"a": [["50002.00","0.5"],["50001.00","3.0"]]
		}
	}`)

	evt, err := DecodeMessage(payload)
	require.NoError(t, err)
	depth := evt.(*DepthUpdate)

	assert.True(t, depth.Bids[0].Price.GreaterThan(depth.Bids[1].Price), "bids must descend")
	assert.True(t, depth.Asks[0].Price.LessThan(depth.Asks[1].Price), "asks must ascend")
}

func TestDecodeMessage_DepthKeepsZeroQuantity(t *testing.T) {
	payload := []byte(`{
		"stream": "btcusdt@depth",
		"data": {
			"E": 1700000000000, "s": "BTCUSDT", "U": 1, "u": 2,
			"b": [["50000.00","0"]],
			"a": []
		}
	}`)

	evt, err := DecodeMessage(payload)
	require.NoError(t, err)
	depth := evt.(*DepthUpdate)
	require.Len(t, depth.Bids, 1)
	assert.True(t, depth.Bids[0].Quantity.IsZero())
}

func TestDecodeMessage_Trade(t *testing.T) {
	payload := []byte(`{
		"stream": "ethusdt@trade",
		"data": {
			"e": "trade", "E": 1700000001000, "s": "ETHUSDT",
			"t": 42, "p": "3000.10", "q": "1.25", "T": 1700000000990, "m": true
		}
	}`)

	evt, err := DecodeMessage(payload)
	require.NoError(t, err)

	trade, ok := evt.(*Trade)
	require.True(t, ok)
	assert.Equal(t, "ETHUSDT", trade.GetSymbol())
	assert.Equal(t, int64(42), trade.TradeID)
	assert.True(t, trade.Price.Equal(decimal.RequireFromString("3000.10")))
	assert.True(t, trade.Quantity.Equal(decimal.RequireFromString("1.25")))
	assert.True(t, trade.BuyerIsMaker)
	assert.Equal(t, time.UnixMilli(1700000000990), trade.TradeTime)
}

func TestDecodeMessage_Ticker(t *testing.T) {
	payload := []byte(`{
		"stream": "bnbusdt@ticker",
		"data": {
			"e": "24hrTicker", "E": 1700000002000, "s": "BNBUSDT",
			"P": "2.50", "c": "310.5", "o": "302.9", "h": "311.0", "l": "300.0",
			"v": "120000", "q": "36000000", "F": 1, "L": 5000, "n": 5000
		}
	}`)

	evt, err := DecodeMessage(payload)
	require.NoError(t, err)

	tick, ok := evt.(*Ticker)
	require.True(t, ok)
	assert.Equal(t, "BNBUSDT", tick.GetSymbol())
	assert.True(t, tick.LastPrice.Equal(decimal.RequireFromString("310.5")))
	assert.True(t, tick.PriceChangePercent.Equal(decimal.RequireFromString("2.50")))
	assert.Equal(t, int64(5000), tick.TradeCount)
}

func TestDecodeMessage_SymbolRules(t *testing.T) {
	// Lowercase symbols are normalized to uppercase.
	payload := []byte(`{
		"stream": "btcusdt@trade",
		"data": {"E": 1700000001000, "s": "btcusdt", "t": 1, "p": "1.0", "q": "1.0", "T": 1700000001000, "m": false}
	}`)
	evt, err := DecodeMessage(payload)
	require.NoError(t, err)
	assert.Equal(t, "BTCUSDT", evt.GetSymbol())

	// Short symbols are rejected.
	short := []byte(`{
		"stream": "btc@trade",
		"data": {"E": 1700000001000, "s": "BTC", "t": 1, "p": "1.0", "q": "1.0", "T": 1700000001000, "m": false}
	}`)
	_, err = DecodeMessage(short)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrDecode))
}

func TestDecodeMessage_Errors(t *testing.T) {
	tests := []struct {
		name     string
		payload  string
		sentinel error
	}{
		{
			name:     "unknown stream suffix",
			payload:  `{"stream": "btcusdt@kline_1m", "data": {"s": "BTCUSDT"}}`,
			sentinel: apperrors.ErrUnknownEvent,
		},
		{
			name:     "no suffix at all",
			payload:  `{"stream": "btcusdt", "data": {"s": "BTCUSDT"}}`,
			sentinel: apperrors.ErrUnknownEvent,
		},
		{
			name:     "malformed json",
			payload:  `{"stream": "btcusdt@trade", "data": {`,
			sentinel: apperrors.ErrDecode,
		},
		{
			name:     "missing data",
			payload:  `{"stream": "btcusdt@trade"}`,
			sentinel: apperrors.ErrDecode,
		},
		{
			name:     "trade missing price",
			payload:  `{"stream": "btcusdt@trade", "data": {"E": 1700000001000, "s": "BTCUSDT", "t": 1, "q": "1.0", "T": 1700000001000}}`,
			sentinel: apperrors.ErrDecode,
		},
		{
			name:     "negative depth quantity",
			payload:  `{"stream": "btcusdt@depth", "data": {"E": 1700000001000, "s": "BTCUSDT", "b": [["50000","-1"]], "a": []}}`,
			sentinel: apperrors.ErrDecode,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeMessage([]byte(tt.payload))
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.sentinel), "expected %v, got %v", tt.sentinel, err)
		})
	}
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	events := []Event{
		&DepthUpdate{
			Symbol:        "BTCUSDT",
			EventTime:     time.UnixMilli(1700000000000),
			FirstUpdateID: 10,
			FinalUpdateID: 12,
			Bids: []PriceLevel{
				{Price: decimal.RequireFromString("50000"), Quantity: decimal.RequireFromString("2.5")},
				{Price: decimal.RequireFromString("49999.5"), Quantity: decimal.RequireFromString("1")},
			},
			Asks: []PriceLevel{
				{Price: decimal.RequireFromString("50001"), Quantity: decimal.RequireFromString("3")},
			},
		},
		&Trade{
			Symbol:       "ETHUSDT",
			EventTime:    time.UnixMilli(1700000001000),
			TradeID:      7,
			Price:        decimal.RequireFromString("3000.1"),
			Quantity:     decimal.RequireFromString("0.25"),
			BuyerIsMaker: true,
			TradeTime:    time.UnixMilli(1700000000990),
		},
		&Ticker{
			Symbol:             "BNBUSDT",
			EventTime:          time.UnixMilli(1700000002000),
			LastPrice:          decimal.RequireFromString("310.5"),
			Open:               decimal.RequireFromString("302.9"),
			High:               decimal.RequireFromString("311"),
			Low:                decimal.RequireFromString("300"),
			Volume:             decimal.RequireFromString("120000"),
			QuoteVolume:        decimal.RequireFromString("36000000"),
			PriceChangePercent: decimal.RequireFromString("2.5"),
			FirstTradeID:       1,
			LastTradeID:        5000,
			TradeCount:         5000,
		},
	}

	for _, original := range events {
		raw, err := EncodeMessage(original)
		require.NoError(t, err)

		decoded, err := DecodeMessage(raw)
		require.NoError(t, err)
		assert.Equal(t, original, decoded)
	}
}
