// Package market defines the typed market events flowing through the pipeline
package market

import (
	"time"

	"github.com/shopspring/decimal"
)

// EventKind identifies one of the three market event variants
type EventKind int

const (
	KindDepth EventKind = iota
	KindTrade
	KindTicker
)

func (k EventKind) String() string {
	switch k {
	case KindDepth:
		return "depth"
	case KindTrade:
		return "trade"
	case KindTicker:
		return "ticker"
	}
	return "unknown"
}

// Event is the closed sum of market event variants. Only the types in this
// package implement it; strategies select variants with a type switch.
type Event interface {
	Kind() EventKind
	GetSymbol() string
	GetEventTime() time.Time

	isMarketEvent()
}

// PriceLevel is one order book level. Prices and quantities are parsed into
// arbitrary-precision decimals at decode; no binary float is ever involved.
type PriceLevel struct {
	Price    decimal.Decimal
	Quantity decimal.Decimal
}

// DepthUpdate is a snapshot or delta of top order book levels.
// Bids are ordered by descending price, asks by ascending price.
type DepthUpdate struct {
	Symbol        string
	EventTime     time.Time
	FirstUpdateID int64
	FinalUpdateID int64
	Bids          []PriceLevel
	Asks          []PriceLevel
}

func (d *DepthUpdate) Kind() EventKind         { return KindDepth }
func (d *DepthUpdate) GetSymbol() string       { return d.Symbol }
func (d *DepthUpdate) GetEventTime() time.Time { return d.EventTime }
func (d *DepthUpdate) isMarketEvent()          {}

// BestBid returns the highest bid level
func (d *DepthUpdate) BestBid() (PriceLevel, bool) {
	if len(d.Bids) == 0 {
		return PriceLevel{}, false
	}
	return d.Bids[0], true
}

// BestAsk returns the lowest ask level
func (d *DepthUpdate) BestAsk() (PriceLevel, bool) {
	if len(d.Asks) == 0 {
		return PriceLevel{}, false
	}
	return d.Asks[0], true
}

// MidPrice returns (best bid + best ask) / 2, or zero when either side is empty
func (d *DepthUpdate) MidPrice() decimal.Decimal {
	bid, okB := d.BestBid()
	ask, okA := d.BestAsk()
	if !okB || !okA {
		return decimal.Zero
	}
	return bid.Price.Add(ask.Price).Div(two)
}

// SpreadPercent returns (best ask - best bid) / best bid * 100,
// or zero when either side is empty or the best bid is zero
func (d *DepthUpdate) SpreadPercent() decimal.Decimal {
	bid, okB := d.BestBid()
	ask, okA := d.BestAsk()
	if !okB || !okA || bid.Price.Sign() <= 0 {
		return decimal.Zero
	}
	return ask.Price.Sub(bid.Price).Div(bid.Price).Mul(hundred)
}

// Trade is a single executed trade print
type Trade struct {
	Symbol    string
	EventTime time.Time
	TradeID   int64
	Price     decimal.Decimal
	Quantity  decimal.Decimal
	// BuyerIsMaker is true when the buyer was the resting order,
	// i.e. the aggressor sold into the book.
	BuyerIsMaker bool
	TradeTime    time.Time
}

func (t *Trade) Kind() EventKind         { return KindTrade }
func (t *Trade) GetSymbol() string       { return t.Symbol }
func (t *Trade) GetEventTime() time.Time { return t.EventTime }
func (t *Trade) isMarketEvent()          {}

// Ticker is a 24-hour rolling window statistics update
type Ticker struct {
	Symbol             string
	EventTime          time.Time
	LastPrice          decimal.Decimal
	Open               decimal.Decimal
	High               decimal.Decimal
	Low                decimal.Decimal
	Volume             decimal.Decimal
	QuoteVolume        decimal.Decimal
	PriceChangePercent decimal.Decimal
	FirstTradeID       int64
	LastTradeID        int64
	TradeCount         int64
}

func (t *Ticker) Kind() EventKind         { return KindTicker }
func (t *Ticker) GetSymbol() string       { return t.Symbol }
func (t *Ticker) GetEventTime() time.Time { return t.EventTime }
func (t *Ticker) isMarketEvent()          {}

var (
	two     = decimal.NewFromInt(2)
	hundred = decimal.NewFromInt(100)
)
