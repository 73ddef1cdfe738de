// Package orderbook tracks order book level history and derives
// microstructure patterns used by depth-based strategies.
package orderbook

import (
	"sync"
	"sync/atomic"
	"time"

	"realtime_strategies/internal/core"
	"realtime_strategies/internal/market"
	"realtime_strategies/pkg/telemetry"

	"github.com/shopspring/decimal"
)

// Side marks which half of the book a level belongs to
type Side string

const (
	SideBid Side = "bid"
	SideAsk Side = "ask"
)

// Config bounds the tracker's memory footprint
type Config struct {
	// HistoryWindow is how long samples and idle levels are retained.
	HistoryWindow time.Duration
	// MaxSymbols caps live symbols; beyond it the least recently
	// touched symbol is evicted.
	MaxSymbols int
	// MaxLevelsPerSymbol caps live price buckets per symbol across both sides.
	MaxLevelsPerSymbol int
	// MaxSamplesPerLevel caps the ring length of one price bucket.
	MaxSamplesPerLevel int
	// PriceStep quantizes incoming prices into buckets.
	PriceStep decimal.Decimal
}

// DefaultConfig returns the tracker limits used in production
func DefaultConfig() Config {
	return Config{
		HistoryWindow:      5 * time.Minute,
		MaxSymbols:         100,
		MaxLevelsPerSymbol: 200,
		MaxSamplesPerLevel: 100,
		PriceStep:          decimal.New(1, -2), // 0.01
	}
}

// Sample is one observation of a price bucket
type Sample struct {
	Timestamp time.Time
	Quantity  decimal.Decimal
}

// level is the rolling history of one price bucket
type level struct {
	price     decimal.Decimal
	side      Side
	samples   []Sample // ordered oldest to newest
	lastTouch time.Time
}

// book holds both sides for one symbol
type book struct {
	bids      map[string]*level
	asks      map[string]*level
	lastTouch time.Time
}

func (b *book) levelCount() int {
	return len(b.bids) + len(b.asks)
}

// Tracker maintains per-symbol, per-side price bucket history.
// Safe for concurrent use; the dispatcher writes, strategies and the
// admin surface read.
type Tracker struct {
	mu     sync.RWMutex
	cfg    Config
	books  map[string]*book
	logger core.ILogger

	totalLevelsTracked int64
	icebergsDetected   int64
}

// NewTracker creates a tracker with the given limits
func NewTracker(cfg Config, logger core.ILogger) *Tracker {
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = 5 * time.Minute
	}
	if cfg.MaxSymbols <= 0 {
		cfg.MaxSymbols = 100
	}
	if cfg.MaxLevelsPerSymbol <= 0 {
		cfg.MaxLevelsPerSymbol = 200
	}
	if cfg.MaxSamplesPerLevel <= 0 {
		cfg.MaxSamplesPerLevel = 100
	}
	if cfg.PriceStep.Sign() <= 0 {
		cfg.PriceStep = decimal.New(1, -2)
	}
	return &Tracker{
		cfg:    cfg,
		books:  make(map[string]*book),
		logger: logger.WithField("component", "orderbook_tracker"),
	}
}

// Update ingests one depth snapshot. Bids arrive descending and asks
// ascending; every (price, qty) pair is appended to its bucket's ring,
// stale samples and idle buckets are dropped, and the symbol and level
// limits are enforced.
func (t *Tracker) Update(symbol string, bids, asks []market.PriceLevel, ts time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	bk, ok := t.books[symbol]
	if !ok {
		bk = &book{
			bids: make(map[string]*level),
			asks: make(map[string]*level),
		}
		t.books[symbol] = bk
		t.evictSymbolsLocked(symbol)
	}
	bk.lastTouch = ts

	for _, lv := range bids {
		t.updateLevelLocked(bk.bids, SideBid, lv, ts)
	}
	for _, lv := range asks {
		t.updateLevelLocked(bk.asks, SideAsk, lv, ts)
	}

	t.sweepIdleLocked(bk, ts)
	t.evictLevelsLocked(bk)

	telemetry.GetGlobalMetrics().SetTrackedSymbols("orderbook", int64(len(t.books)))
}

func (t *Tracker) updateLevelLocked(side map[string]*level, s Side, lv market.PriceLevel, ts time.Time) {
	bucket := t.quantize(lv.Price)
	key := bucket.String()

	entry, ok := side[key]
	if !ok {
		entry = &level{price: bucket, side: s}
		side[key] = entry
		t.totalLevelsTracked++
	}

	entry.samples = append(entry.samples, Sample{Timestamp: ts, Quantity: lv.Quantity})
	entry.lastTouch = ts

	// Trim the window; a sample exactly at (ts - window) survives.
	cutoff := ts.Add(-t.cfg.HistoryWindow)
	firstKept := 0
	for firstKept < len(entry.samples) && entry.samples[firstKept].Timestamp.Before(cutoff) {
		firstKept++
	}
	if firstKept > 0 {
		entry.samples = append(entry.samples[:0], entry.samples[firstKept:]...)
	}
	if n := len(entry.samples) - t.cfg.MaxSamplesPerLevel; n > 0 {
		entry.samples = append(entry.samples[:0], entry.samples[n:]...)
	}
}

// sweepIdleLocked drops levels whose latest sample fell out of the window
func (t *Tracker) sweepIdleLocked(bk *book, now time.Time) {
	cutoff := now.Add(-t.cfg.HistoryWindow)
	for key, lv := range bk.bids {
		if lv.lastTouch.Before(cutoff) {
			delete(bk.bids, key)
		}
	}
	for key, lv := range bk.asks {
		if lv.lastTouch.Before(cutoff) {
			delete(bk.asks, key)
		}
	}
}

// evictSymbolsLocked enforces MaxSymbols by dropping the book with the
// oldest most-recent sample; keep always survives.
func (t *Tracker) evictSymbolsLocked(keep string) {
	for len(t.books) > t.cfg.MaxSymbols {
		var (
			oldestSym string
			oldest    time.Time
		)
		for sym, bk := range t.books {
			if sym == keep {
				continue
			}
			if oldestSym == "" || bk.lastTouch.Before(oldest) {
				oldestSym = sym
				oldest = bk.lastTouch
			}
		}
		if oldestSym == "" {
			return
		}
		delete(t.books, oldestSym)
		t.logger.Debug("Evicted symbol from tracker", "symbol", oldestSym)
	}
}

// evictLevelsLocked enforces MaxLevelsPerSymbol by dropping the bucket
// with the oldest last touch, either side
func (t *Tracker) evictLevelsLocked(bk *book) {
	for bk.levelCount() > t.cfg.MaxLevelsPerSymbol {
		var (
			oldestKey  string
			oldestSide map[string]*level
			oldest     time.Time
			found      bool
		)
		for key, lv := range bk.bids {
			if !found || lv.lastTouch.Before(oldest) {
				oldestKey, oldestSide, oldest, found = key, bk.bids, lv.lastTouch, true
			}
		}
		for key, lv := range bk.asks {
			if !found || lv.lastTouch.Before(oldest) {
				oldestKey, oldestSide, oldest, found = key, bk.asks, lv.lastTouch, true
			}
		}
		if !found {
			return
		}
		delete(oldestSide, oldestKey)
	}
}

func (t *Tracker) quantize(price decimal.Decimal) decimal.Decimal {
	return price.Div(t.cfg.PriceStep).Floor().Mul(t.cfg.PriceStep)
}

// Stats is a point-in-time summary of tracker occupancy
type Stats struct {
	Symbols            int
	ActiveBidLevels    int
	ActiveAskLevels    int
	TotalLevelsTracked int64
	IcebergsDetected   int64
}

// GetStats returns current tracker occupancy
func (t *Tracker) GetStats() Stats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	st := Stats{
		Symbols:            len(t.books),
		TotalLevelsTracked: t.totalLevelsTracked,
		IcebergsDetected:   atomic.LoadInt64(&t.icebergsDetected),
	}
	for _, bk := range t.books {
		st.ActiveBidLevels += len(bk.bids)
		st.ActiveAskLevels += len(bk.asks)
	}
	return st
}

// Symbols lists the symbols currently tracked
func (t *Tracker) Symbols() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]string, 0, len(t.books))
	for sym := range t.books {
		out = append(out, sym)
	}
	return out
}

// LevelSamples returns a copy of the ring for one quantized price bucket,
// mainly for inspection endpoints and tests
func (t *Tracker) LevelSamples(symbol string, side Side, price decimal.Decimal) []Sample {
	t.mu.RLock()
	defer t.mu.RUnlock()

	bk, ok := t.books[symbol]
	if !ok {
		return nil
	}
	levels := bk.bids
	if side == SideAsk {
		levels = bk.asks
	}
	lv, ok := levels[t.quantize(price).String()]
	if !ok {
		return nil
	}
	out := make([]Sample, len(lv.samples))
	copy(out, lv.samples)
	return out
}
