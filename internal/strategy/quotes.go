package strategy

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Quote is the latest observed price for a symbol on one venue
type Quote struct {
	Venue      string
	Symbol     string
	Price      decimal.Decimal
	ObservedAt time.Time
}

// QuoteCache holds the freshest price per (venue, symbol). The primary
// venue is fed from the inbound stream by the cross-exchange strategy;
// other venues are fed by an external poller.
type QuoteCache struct {
	mu     sync.RWMutex
	quotes map[string]Quote
}

// NewQuoteCache creates an empty cache
func NewQuoteCache() *QuoteCache {
	return &QuoteCache{quotes: make(map[string]Quote)}
}

// Set records a price observation for a venue and symbol
func (c *QuoteCache) Set(venue, symbol string, price decimal.Decimal, at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.quotes[venue+"|"+symbol] = Quote{Venue: venue, Symbol: symbol, Price: price, ObservedAt: at}
}

// Snapshot returns every quote for symbol observed within maxAge of now
func (c *QuoteCache) Snapshot(symbol string, maxAge time.Duration, now time.Time) []Quote {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []Quote
	for _, q := range c.quotes {
		if q.Symbol == symbol && now.Sub(q.ObservedAt) <= maxAge {
			out = append(out, q)
		}
	}
	return out
}

// Venues lists the venues currently holding any quote
func (c *QuoteCache) Venues() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	seen := make(map[string]struct{})
	var out []string
	for _, q := range c.quotes {
		if _, ok := seen[q.Venue]; !ok {
			seen[q.Venue] = struct{}{}
			out = append(out, q.Venue)
		}
	}
	return out
}
