// Package venues polls external exchanges for comparison prices and
// on-chain metric snapshots. Everything here is advisory: fetch failures
// are logged and counted, never surfaced to the signal pipeline.
package venues

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	phttp "realtime_strategies/pkg/http"
)

// Fetcher returns the latest traded price for a symbol on one venue.
// Symbols use the primary stream's convention (e.g. BTCUSDT).
type Fetcher interface {
	Venue() string
	FetchPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// DefaultCoinbaseURL is the public Coinbase Exchange REST endpoint
const DefaultCoinbaseURL = "https://api.exchange.coinbase.com"

// Coinbase fetches spot prices from the Coinbase Exchange public API
type Coinbase struct {
	client *phttp.Client
}

// NewCoinbase creates a Coinbase fetcher against the given base URL
func NewCoinbase(baseURL string, timeout time.Duration) *Coinbase {
	if baseURL == "" {
		baseURL = DefaultCoinbaseURL
	}
	return &Coinbase{client: phttp.NewClient(baseURL, timeout)}
}

func (c *Coinbase) Venue() string { return "coinbase" }

// FetchPrice returns the last trade price for the product mapped from the
// stream symbol (BTCUSDT -> BTC-USDT)
func (c *Coinbase) FetchPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	product, err := coinbaseProduct(symbol)
	if err != nil {
		return decimal.Zero, err
	}

	body, err := c.client.Get(ctx, "/products/"+product+"/ticker", nil)
	if err != nil {
		return decimal.Zero, err
	}

	var ticker struct {
		Price string `json:"price"`
	}
	if err := json.Unmarshal(body, &ticker); err != nil {
		return decimal.Zero, fmt.Errorf("decode coinbase ticker: %w", err)
	}
	price, err := decimal.NewFromString(ticker.Price)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse coinbase price %q: %w", ticker.Price, err)
	}
	if price.Sign() <= 0 {
		return decimal.Zero, fmt.Errorf("non-positive coinbase price for %s", product)
	}
	return price, nil
}

// knownQuotes are the quote currencies recognized at the symbol tail
var knownQuotes = []string{"USDT", "USDC", "BUSD", "USD", "EUR", "BTC", "ETH"}

// coinbaseProduct converts a stream symbol to a Coinbase product id
func coinbaseProduct(symbol string) (string, error) {
	s := strings.ToUpper(symbol)
	for _, quote := range knownQuotes {
		if strings.HasSuffix(s, quote) && len(s) > len(quote) {
			return s[:len(s)-len(quote)] + "-" + quote, nil
		}
	}
	return "", fmt.Errorf("cannot map symbol %s to a coinbase product", symbol)
}
