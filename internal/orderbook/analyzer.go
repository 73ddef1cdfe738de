package orderbook

import (
	"sort"
	"sync"
	"time"

	"realtime_strategies/internal/market"

	"github.com/shopspring/decimal"
)

// DepthMetrics is a point-in-time view of one symbol's book shape
type DepthMetrics struct {
	Symbol    string    `json:"symbol"`
	Timestamp time.Time `json:"timestamp"`

	BidVolume        decimal.Decimal `json:"bid_volume"`
	AskVolume        decimal.Decimal `json:"ask_volume"`
	ImbalanceRatio   float64         `json:"imbalance_ratio"`   // (bid - ask) / (bid + ask)
	ImbalancePercent float64         `json:"imbalance_percent"` // ratio * 100

	BuyPressure  float64 `json:"buy_pressure"`  // 0-100
	SellPressure float64 `json:"sell_pressure"` // 0-100
	NetPressure  float64 `json:"net_pressure"`  // buy - sell

	TotalLiquidity decimal.Decimal `json:"total_liquidity"`
	BidDepth5      decimal.Decimal `json:"bid_depth_5"`
	AskDepth5      decimal.Decimal `json:"ask_depth_5"`
	BidDepth10     decimal.Decimal `json:"bid_depth_10"`
	AskDepth10     decimal.Decimal `json:"ask_depth_10"`

	BestBid   decimal.Decimal `json:"best_bid"`
	BestAsk   decimal.Decimal `json:"best_ask"`
	SpreadAbs decimal.Decimal `json:"spread_abs"`
	SpreadBps float64         `json:"spread_bps"`
	MidPrice  decimal.Decimal `json:"mid_price"`

	BidLevels   int `json:"bid_levels"`
	AskLevels   int `json:"ask_levels"`
	TotalLevels int `json:"total_levels"`
}

// AnalyzerConfig bounds the analyzer's retention
type AnalyzerConfig struct {
	MetricsTTL time.Duration
	MaxSymbols int
}

// DefaultAnalyzerConfig returns the retention used in production
func DefaultAnalyzerConfig() AnalyzerConfig {
	return AnalyzerConfig{
		MetricsTTL: 5 * time.Minute,
		MaxSymbols: 100,
	}
}

// DepthAnalyzer keeps the latest depth metrics per symbol for the
// inspection endpoints. It is fed by the dispatcher on every depth update.
type DepthAnalyzer struct {
	mu      sync.RWMutex
	cfg     AnalyzerConfig
	current map[string]DepthMetrics
	touched map[string]time.Time
}

// NewDepthAnalyzer creates an analyzer with the given retention
func NewDepthAnalyzer(cfg AnalyzerConfig) *DepthAnalyzer {
	if cfg.MetricsTTL <= 0 {
		cfg.MetricsTTL = 5 * time.Minute
	}
	if cfg.MaxSymbols <= 0 {
		cfg.MaxSymbols = 100
	}
	return &DepthAnalyzer{
		cfg:     cfg,
		current: make(map[string]DepthMetrics),
		touched: make(map[string]time.Time),
	}
}

// Analyze computes metrics for one depth snapshot and retains them
func (a *DepthAnalyzer) Analyze(symbol string, bids, asks []market.PriceLevel, ts time.Time) DepthMetrics {
	bidVol := sumQuantities(bids)
	askVol := sumQuantities(asks)
	total := bidVol.Add(askVol)

	m := DepthMetrics{
		Symbol:         symbol,
		Timestamp:      ts,
		BidVolume:      bidVol,
		AskVolume:      askVol,
		TotalLiquidity: total,
		BidDepth5:      sumQuantities(topN(bids, 5)),
		AskDepth5:      sumQuantities(topN(asks, 5)),
		BidDepth10:     sumQuantities(topN(bids, 10)),
		AskDepth10:     sumQuantities(topN(asks, 10)),
		BidLevels:      len(bids),
		AskLevels:      len(asks),
		TotalLevels:    len(bids) + len(asks),
	}

	if total.Sign() > 0 {
		totalF := total.InexactFloat64()
		bidF := bidVol.InexactFloat64()
		askF := askVol.InexactFloat64()
		m.ImbalanceRatio = (bidF - askF) / totalF
		m.ImbalancePercent = m.ImbalanceRatio * 100
		m.BuyPressure = bidF / totalF * 100
		m.SellPressure = askF / totalF * 100
		m.NetPressure = m.BuyPressure - m.SellPressure
	}

	if len(bids) > 0 && len(asks) > 0 {
		m.BestBid = bids[0].Price
		m.BestAsk = asks[0].Price
		m.SpreadAbs = m.BestAsk.Sub(m.BestBid)
		m.MidPrice = m.BestBid.Add(m.BestAsk).Div(decimal.NewFromInt(2))
		if m.MidPrice.Sign() > 0 {
			m.SpreadBps = m.SpreadAbs.Div(m.MidPrice).InexactFloat64() * 10000
		}
	}

	a.mu.Lock()
	a.current[symbol] = m
	a.touched[symbol] = ts
	a.sweepLocked(ts)
	a.mu.Unlock()

	return m
}

// Current returns the latest metrics for a symbol
func (a *DepthAnalyzer) Current(symbol string) (DepthMetrics, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	m, ok := a.current[symbol]
	return m, ok
}

// All returns the latest metrics for every tracked symbol
func (a *DepthAnalyzer) All() map[string]DepthMetrics {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make(map[string]DepthMetrics, len(a.current))
	for sym, m := range a.current {
		out[sym] = m
	}
	return out
}

// Summary aggregates pressure across all tracked symbols
type Summary struct {
	Symbols         int      `json:"symbols"`
	AvgNetPressure  float64  `json:"avg_net_pressure"`
	TopBuyPressure  []string `json:"top_buy_pressure"`
	TopSellPressure []string `json:"top_sell_pressure"`
}

// MarketSummary returns a cross-symbol pressure overview
func (a *DepthAnalyzer) MarketSummary(limit int) Summary {
	if limit <= 0 {
		limit = 5
	}
	a.mu.RLock()
	defer a.mu.RUnlock()

	s := Summary{Symbols: len(a.current)}
	if len(a.current) == 0 {
		return s
	}

	type entry struct {
		symbol   string
		pressure float64
	}
	entries := make([]entry, 0, len(a.current))
	var sum float64
	for sym, m := range a.current {
		entries = append(entries, entry{sym, m.NetPressure})
		sum += m.NetPressure
	}
	s.AvgNetPressure = sum / float64(len(entries))

	sort.Slice(entries, func(i, j int) bool { return entries[i].pressure > entries[j].pressure })
	for i := 0; i < len(entries) && i < limit; i++ {
		if entries[i].pressure > 0 {
			s.TopBuyPressure = append(s.TopBuyPressure, entries[i].symbol)
		}
	}
	for i := len(entries) - 1; i >= 0 && len(s.TopSellPressure) < limit; i-- {
		if entries[i].pressure < 0 {
			s.TopSellPressure = append(s.TopSellPressure, entries[i].symbol)
		}
	}
	return s
}

func (a *DepthAnalyzer) sweepLocked(now time.Time) {
	cutoff := now.Add(-a.cfg.MetricsTTL)
	for sym, ts := range a.touched {
		if ts.Before(cutoff) {
			delete(a.current, sym)
			delete(a.touched, sym)
		}
	}
	// Enforce the symbol cap by dropping the stalest entries.
	for len(a.current) > a.cfg.MaxSymbols {
		var (
			oldestSym string
			oldest    time.Time
		)
		for sym, ts := range a.touched {
			if oldestSym == "" || ts.Before(oldest) {
				oldestSym, oldest = sym, ts
			}
		}
		if oldestSym == "" {
			return
		}
		delete(a.current, oldestSym)
		delete(a.touched, oldestSym)
	}
}

func sumQuantities(levels []market.PriceLevel) decimal.Decimal {
	sum := decimal.Zero
	for _, lv := range levels {
		sum = sum.Add(lv.Quantity)
	}
	return sum
}

func topN(levels []market.PriceLevel, n int) []market.PriceLevel {
	if len(levels) <= n {
		return levels
	}
	return levels[:n]
}
