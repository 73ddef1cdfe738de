package market

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func depthWith(bids, asks []PriceLevel) *DepthUpdate {
	return &DepthUpdate{
		Symbol:    "BTCUSDT",
		EventTime: time.UnixMilli(1700000000000),
		Bids:      bids,
		Asks:      asks,
	}
}

func lvl(price, qty string) PriceLevel {
	return PriceLevel{
		Price:    decimal.RequireFromString(price),
		Quantity: decimal.RequireFromString(qty),
	}
}

func TestDepthUpdate_MidPrice(t *testing.T) {
	d := depthWith(
		[]PriceLevel{lvl("50000", "2"), lvl("49999", "1")},
		[]PriceLevel{lvl("50002", "3")},
	)
	assert.True(t, d.MidPrice().Equal(decimal.RequireFromString("50001")))
}

func TestDepthUpdate_MidPriceEmptySide(t *testing.T) {
	noBids := depthWith(nil, []PriceLevel{lvl("50002", "3")})
	assert.True(t, noBids.MidPrice().IsZero())

	noAsks := depthWith([]PriceLevel{lvl("50000", "2")}, nil)
	assert.True(t, noAsks.MidPrice().IsZero())
	assert.True(t, noAsks.SpreadPercent().IsZero())
}

func TestDepthUpdate_SpreadPercent(t *testing.T) {
	d := depthWith(
		[]PriceLevel{lvl("50000", "2")},
		[]PriceLevel{lvl("50075", "3")},
	)
	// (50075 - 50000) / 50000 * 100 = 0.15
	assert.True(t, d.SpreadPercent().Equal(decimal.RequireFromString("0.15")),
		"got %s", d.SpreadPercent())
}

func TestEventKind_String(t *testing.T) {
	assert.Equal(t, "depth", KindDepth.String())
	assert.Equal(t, "trade", KindTrade.String())
	assert.Equal(t, "ticker", KindTicker.String())
	assert.Equal(t, "unknown", EventKind(99).String())
}
