package market

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	apperrors "realtime_strategies/pkg/errors"

	"github.com/shopspring/decimal"
)

// MinSymbolLength is the shortest symbol accepted at decode
const MinSymbolLength = 6

// busEnvelope is the combined-stream wrapper carried on the inbound subject
type busEnvelope struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

type depthPayload struct {
	EventType string     `json:"e,omitempty"`
	EventTime int64      `json:"E"`
	Symbol    string     `json:"s"`
	FirstID   int64      `json:"U"`
	FinalID   int64      `json:"u"`
	Bids      [][]string `json:"b"`
	Asks      [][]string `json:"a"`
}

type tradePayload struct {
	EventType    string `json:"e,omitempty"`
	EventTime    int64  `json:"E"`
	Symbol       string `json:"s"`
	TradeID      int64  `json:"t"`
	Price        string `json:"p"`
	Quantity     string `json:"q"`
	TradeTime    int64  `json:"T"`
	BuyerIsMaker bool   `json:"m"`
}

type tickerPayload struct {
	EventType          string `json:"e,omitempty"`
	EventTime          int64  `json:"E"`
	Symbol             string `json:"s"`
	PriceChangePercent string `json:"P"`
	LastPrice          string `json:"c"`
	Open               string `json:"o"`
	High               string `json:"h"`
	Low                string `json:"l"`
	Volume             string `json:"v"`
	QuoteVolume        string `json:"q"`
	FirstTradeID       int64  `json:"F"`
	LastTradeID        int64  `json:"L"`
	TradeCount         int64  `json:"n"`
}

// StreamSuffix returns the stream-type portion after the first '@',
// e.g. "depth20@100ms" for "btcusdt@depth20@100ms"
func StreamSuffix(stream string) string {
	if i := strings.Index(stream, "@"); i >= 0 {
		return stream[i+1:]
	}
	return ""
}

// DecodeMessage parses one inbound bus payload into a typed market event.
// The stream suffix selects the variant; malformed payloads return an error
// wrapping ErrDecode and unrecognized suffixes wrap ErrUnknownEvent.
func DecodeMessage(payload []byte) (Event, error) {
	var env busEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrDecode, err)
	}
	if env.Stream == "" || len(env.Data) == 0 {
		return nil, fmt.Errorf("%w: missing stream or data", apperrors.ErrDecode)
	}

	suffix := StreamSuffix(env.Stream)
	switch {
	case strings.HasPrefix(suffix, "depth"):
		return decodeDepth(env.Data)
	case suffix == "trade":
		return decodeTrade(env.Data)
	case suffix == "ticker":
		return decodeTicker(env.Data)
	}
	return nil, fmt.Errorf("%w: stream %q", apperrors.ErrUnknownEvent, env.Stream)
}

func decodeDepth(data json.RawMessage) (*DepthUpdate, error) {
	var p depthPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: depth: %v", apperrors.ErrDecode, err)
	}
	symbol, err := normalizeSymbol(p.Symbol)
	if err != nil {
		return nil, err
	}
	if p.EventTime <= 0 {
		return nil, fmt.Errorf("%w: depth: missing event time", apperrors.ErrDecode)
	}

	bids, err := parseLevels(p.Bids, true)
	if err != nil {
		return nil, fmt.Errorf("%w: depth bids: %v", apperrors.ErrDecode, err)
	}
	asks, err := parseLevels(p.Asks, false)
	if err != nil {
		return nil, fmt.Errorf("%w: depth asks: %v", apperrors.ErrDecode, err)
	}

	return &DepthUpdate{
		Symbol:        symbol,
		EventTime:     time.UnixMilli(p.EventTime),
		FirstUpdateID: p.FirstID,
		FinalUpdateID: p.FinalID,
		Bids:          bids,
		Asks:          asks,
	}, nil
}

func decodeTrade(data json.RawMessage) (*Trade, error) {
	var p tradePayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: trade: %v", apperrors.ErrDecode, err)
	}
	symbol, err := normalizeSymbol(p.Symbol)
	if err != nil {
		return nil, err
	}
	if p.EventTime <= 0 || p.Price == "" || p.Quantity == "" {
		return nil, fmt.Errorf("%w: trade: missing required fields", apperrors.ErrDecode)
	}

	price, err := parsePositive(p.Price)
	if err != nil {
		return nil, fmt.Errorf("%w: trade price: %v", apperrors.ErrDecode, err)
	}
	qty, err := parsePositive(p.Quantity)
	if err != nil {
		return nil, fmt.Errorf("%w: trade quantity: %v", apperrors.ErrDecode, err)
	}

	tradeTime := p.TradeTime
	if tradeTime <= 0 {
		tradeTime = p.EventTime
	}

	return &Trade{
		Symbol:       symbol,
		EventTime:    time.UnixMilli(p.EventTime),
		TradeID:      p.TradeID,
		Price:        price,
		Quantity:     qty,
		BuyerIsMaker: p.BuyerIsMaker,
		TradeTime:    time.UnixMilli(tradeTime),
	}, nil
}

func decodeTicker(data json.RawMessage) (*Ticker, error) {
	var p tickerPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: ticker: %v", apperrors.ErrDecode, err)
	}
	symbol, err := normalizeSymbol(p.Symbol)
	if err != nil {
		return nil, err
	}
	if p.EventTime <= 0 || p.LastPrice == "" {
		return nil, fmt.Errorf("%w: ticker: missing required fields", apperrors.ErrDecode)
	}

	last, err := parsePositive(p.LastPrice)
	if err != nil {
		return nil, fmt.Errorf("%w: ticker last price: %v", apperrors.ErrDecode, err)
	}

	t := &Ticker{
		Symbol:       symbol,
		EventTime:    time.UnixMilli(p.EventTime),
		LastPrice:    last,
		FirstTradeID: p.FirstTradeID,
		LastTradeID:  p.LastTradeID,
		TradeCount:   p.TradeCount,
	}

	// The remaining statistics are optional on partial ticker payloads.
	t.Open = parseOrZero(p.Open)
	t.High = parseOrZero(p.High)
	t.Low = parseOrZero(p.Low)
	t.Volume = parseOrZero(p.Volume)
	t.QuoteVolume = parseOrZero(p.QuoteVolume)
	t.PriceChangePercent = parseOrZero(p.PriceChangePercent)

	return t, nil
}

// EncodeMessage serializes an event back into the inbound wire shape.
// Decode(Encode(evt)) yields an equal event for every well-formed event.
func EncodeMessage(evt Event) ([]byte, error) {
	var (
		suffix string
		data   interface{}
	)

	switch e := evt.(type) {
	case *DepthUpdate:
		suffix = "depth"
		data = depthPayload{
			EventType: "depthUpdate",
			EventTime: e.EventTime.UnixMilli(),
			Symbol:    e.Symbol,
			FirstID:   e.FirstUpdateID,
			FinalID:   e.FinalUpdateID,
			Bids:      encodeLevels(e.Bids),
			Asks:      encodeLevels(e.Asks),
		}
	case *Trade:
		suffix = "trade"
		data = tradePayload{
			EventType:    "trade",
			EventTime:    e.EventTime.UnixMilli(),
			Symbol:       e.Symbol,
			TradeID:      e.TradeID,
			Price:        e.Price.String(),
			Quantity:     e.Quantity.String(),
			TradeTime:    e.TradeTime.UnixMilli(),
			BuyerIsMaker: e.BuyerIsMaker,
		}
	case *Ticker:
		suffix = "ticker"
		data = tickerPayload{
			EventType:          "24hrTicker",
			EventTime:          e.EventTime.UnixMilli(),
			Symbol:             e.Symbol,
			PriceChangePercent: e.PriceChangePercent.String(),
			LastPrice:          e.LastPrice.String(),
			Open:               e.Open.String(),
			High:               e.High.String(),
			Low:                e.Low.String(),
			Volume:             e.Volume.String(),
			QuoteVolume:        e.QuoteVolume.String(),
			FirstTradeID:       e.FirstTradeID,
			LastTradeID:        e.LastTradeID,
			TradeCount:         e.TradeCount,
		}
	default:
		return nil, fmt.Errorf("%w: %T", apperrors.ErrUnknownEvent, evt)
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(busEnvelope{
		Stream: strings.ToLower(evt.GetSymbol()) + "@" + suffix,
		Data:   raw,
	})
}

func normalizeSymbol(s string) (string, error) {
	symbol := strings.ToUpper(strings.TrimSpace(s))
	if len(symbol) < MinSymbolLength {
		return "", fmt.Errorf("%w: symbol %q shorter than %d chars", apperrors.ErrDecode, s, MinSymbolLength)
	}
	return symbol, nil
}

// parseLevels converts raw [price, qty] string pairs and enforces book
// ordering: bids descending, asks ascending. Zero quantities are kept
// since downstream refill detection anchors on them.
func parseLevels(raw [][]string, descending bool) ([]PriceLevel, error) {
	levels := make([]PriceLevel, 0, len(raw))
	for _, entry := range raw {
		if len(entry) < 2 {
			return nil, fmt.Errorf("level needs price and quantity, got %v", entry)
		}
		price, err := decimal.NewFromString(entry[0])
		if err != nil {
			return nil, fmt.Errorf("price %q: %v", entry[0], err)
		}
		if price.Sign() <= 0 {
			return nil, fmt.Errorf("price %q not positive", entry[0])
		}
		qty, err := decimal.NewFromString(entry[1])
		if err != nil {
			return nil, fmt.Errorf("quantity %q: %v", entry[1], err)
		}
		if qty.Sign() < 0 {
			return nil, fmt.Errorf("quantity %q negative", entry[1])
		}
		levels = append(levels, PriceLevel{Price: price, Quantity: qty})
	}

	sort.SliceStable(levels, func(i, j int) bool {
		if descending {
			return levels[i].Price.GreaterThan(levels[j].Price)
		}
		return levels[i].Price.LessThan(levels[j].Price)
	})
	return levels, nil
}

func encodeLevels(levels []PriceLevel) [][]string {
	out := make([][]string, 0, len(levels))
	for _, lvl := range levels {
		out = append(out, []string{lvl.Price.String(), lvl.Quantity.String()})
	}
	return out
}

func parsePositive(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, err
	}
	if d.Sign() <= 0 {
		return decimal.Zero, fmt.Errorf("value %q not positive", s)
	}
	return d, nil
}

func parseOrZero(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
