package params

import "sort"

// Strategy identifiers
const (
	StrategyOrderbookSkew       = "orderbook_skew"
	StrategyTradeMomentum       = "trade_momentum"
	StrategyTickerVelocity      = "ticker_velocity"
	StrategyBTCDominance        = "btc_dominance"
	StrategyCrossExchangeSpread = "cross_exchange_spread"
	StrategyOnchainMetrics      = "onchain_metrics"
	StrategyIcebergDetector     = "iceberg_detector"
	StrategySpreadLiquidity     = "spread_liquidity"
)

// Parameter types accepted by schemas
const (
	TypeInt    = "int"
	TypeFloat  = "float"
	TypeBool   = "bool"
	TypeString = "string"
	TypeList   = "list"
)

// ParamSchema describes one parameter for validation
type ParamSchema struct {
	Type          string        `json:"type"`
	Min           *float64      `json:"min,omitempty"`
	Max           *float64      `json:"max,omitempty"`
	AllowedValues []interface{} `json:"allowed_values,omitempty"`
	Description   string        `json:"description"`
}

// Metadata describes one strategy for the admin surface
type Metadata struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Type        string `json:"type"`
}

func f(v float64) *float64 { return &v }

var strategyDefaults = map[string]map[string]interface{}{
	StrategyOrderbookSkew: {
		"top_levels":          5,
		"buy_threshold":       1.2,
		"sell_threshold":      0.8,
		"min_spread_percent":  0.1,
		"min_signal_interval": 60,
	},
	StrategyTradeMomentum: {
		"price_weight":        0.4,
		"quantity_weight":     0.3,
		"maker_weight":        0.3,
		"buy_threshold":       0.7,
		"sell_threshold":      -0.7,
		"min_quantity":        0.001,
		"window_size":         50,
		"min_signal_interval": 30,
	},
	StrategyTickerVelocity: {
		"time_window":         60,
		"buy_threshold":       0.5,
		"sell_threshold":      -0.5,
		"min_price_change":    0.1,
		"min_signal_interval": 60,
	},
	StrategyBTCDominance: {
		"high_threshold":       70.0,
		"low_threshold":        40.0,
		"change_threshold":     5.0,
		"window_hours":         24,
		"min_signal_interval":  14400,
		"base_confidence_high": 0.80,
		"base_confidence_low":  0.75,
		"momentum_confidence":  0.70,
	},
	StrategyCrossExchangeSpread: {
		"spread_threshold_percent": 0.5,
		"min_signal_interval":      300,
		"max_position_size":        500,
		"exchanges":                []string{"binance", "coinbase"},
		"price_max_age_seconds":    60,
		"base_confidence":          0.75,
		"high_spread_threshold":    1.0,
		"high_spread_confidence":   0.85,
	},
	StrategyOnchainMetrics: {
		"whale_threshold_btc":             100.0,
		"whale_threshold_eth":             1000.0,
		"exchange_flow_threshold_percent": 10.0,
		"network_growth_threshold":        5.0,
		"net_inflow_threshold":            1000.0,
		"min_signal_interval":             3600,
		"base_confidence":                 0.77,
		"strong_signal_confidence":        0.85,
	},
	StrategyIcebergDetector: {
		"proximity_percent":    1.0,
		"depletion_threshold":  0.3,
		"refill_threshold":     0.8,
		"min_refill_count":     2,
		"fast_refill_seconds":  5.0,
		"consistency_threshold": 0.9,
		"persistence_seconds":  120.0,
		"min_confidence":       0.6,
		"min_signal_interval":  120,
		"side_filter":          "both",
	},
	StrategySpreadLiquidity: {
		"history_size":           20,
		"spread_ratio_threshold": 2.5,
		"velocity_threshold":     0.5,
		"depth_drop_threshold":   0.5,
		"top_levels":             5,
		"min_signal_interval":    60,
		"base_confidence":        0.7,
	},
}

var parameterSchemas = map[string]map[string]ParamSchema{
	StrategyOrderbookSkew: {
		"top_levels":          {Type: TypeInt, Min: f(1), Max: f(20), Description: "Order book levels summed per side"},
		"buy_threshold":       {Type: TypeFloat, Min: f(1.0), Max: f(5.0), Description: "Bid/ask volume ratio above which to buy"},
		"sell_threshold":      {Type: TypeFloat, Min: f(0.1), Max: f(1.0), Description: "Bid/ask volume ratio below which to sell"},
		"min_spread_percent":  {Type: TypeFloat, Min: f(0.0), Max: f(5.0), Description: "Minimum spread percent to consider the book actionable"},
		"min_signal_interval": {Type: TypeInt, Min: f(1), Max: f(3600), Description: "Minimum time between signals per symbol (seconds)"},
	},
	StrategyTradeMomentum: {
		"price_weight":        {Type: TypeFloat, Min: f(0.0), Max: f(1.0), Description: "Weight of the price change component"},
		"quantity_weight":     {Type: TypeFloat, Min: f(0.0), Max: f(1.0), Description: "Weight of the quantity share component"},
		"maker_weight":        {Type: TypeFloat, Min: f(0.0), Max: f(1.0), Description: "Weight of the maker flow component"},
		"buy_threshold":       {Type: TypeFloat, Min: f(0.1), Max: f(1.0), Description: "Momentum score at or above which to buy"},
		"sell_threshold":      {Type: TypeFloat, Min: f(-1.0), Max: f(-0.1), Description: "Momentum score at or below which to sell"},
		"min_quantity":        {Type: TypeFloat, Min: f(0.0), Max: f(1000.0), Description: "Minimum trade quantity to react to"},
		"window_size":         {Type: TypeInt, Min: f(10), Max: f(500), Description: "Trades kept in the rolling window"},
		"min_signal_interval": {Type: TypeInt, Min: f(1), Max: f(3600), Description: "Minimum time between signals per symbol (seconds)"},
	},
	StrategyTickerVelocity: {
		"time_window":         {Type: TypeInt, Min: f(10), Max: f(3600), Description: "Price sample window in seconds"},
		"buy_threshold":       {Type: TypeFloat, Min: f(0.05), Max: f(10.0), Description: "Velocity percent at or above which to buy"},
		"sell_threshold":      {Type: TypeFloat, Min: f(-10.0), Max: f(-0.05), Description: "Velocity percent at or below which to sell"},
		"min_price_change":    {Type: TypeFloat, Min: f(0.0), Max: f(5.0), Description: "Minimum absolute price change percent"},
		"min_signal_interval": {Type: TypeInt, Min: f(1), Max: f(3600), Description: "Minimum time between signals per symbol (seconds)"},
	},
	StrategyBTCDominance: {
		"high_threshold":       {Type: TypeFloat, Min: f(60.0), Max: f(90.0), Description: "High dominance threshold percentage"},
		"low_threshold":        {Type: TypeFloat, Min: f(30.0), Max: f(50.0), Description: "Low dominance threshold percentage"},
		"change_threshold":     {Type: TypeFloat, Min: f(1.0), Max: f(15.0), Description: "Minimum dominance change percentage for signal"},
		"window_hours":         {Type: TypeInt, Min: f(12), Max: f(72), Description: "Time window for dominance calculation (hours)"},
		"min_signal_interval":  {Type: TypeInt, Min: f(3600), Max: f(86400), Description: "Minimum time between signals (seconds)"},
		"base_confidence_high": {Type: TypeFloat, Min: f(0.5), Max: f(1.0), Description: "Confidence for high-dominance rotation signals"},
		"base_confidence_low":  {Type: TypeFloat, Min: f(0.5), Max: f(1.0), Description: "Confidence for low-dominance rotation signals"},
		"momentum_confidence":  {Type: TypeFloat, Min: f(0.5), Max: f(1.0), Description: "Confidence for pure momentum signals"},
	},
	StrategyCrossExchangeSpread: {
		"spread_threshold_percent": {Type: TypeFloat, Min: f(0.1), Max: f(5.0), Description: "Minimum spread percentage for signal"},
		"min_signal_interval":      {Type: TypeInt, Min: f(60), Max: f(3600), Description: "Minimum time between signals (seconds)"},
		"max_position_size":        {Type: TypeInt, Min: f(100), Max: f(10000), Description: "Maximum position size in USDT"},
		"exchanges":                {Type: TypeList, Description: "Venues polled for comparison prices"},
		"price_max_age_seconds":    {Type: TypeInt, Min: f(5), Max: f(600), Description: "Maximum cached venue price age"},
		"base_confidence":          {Type: TypeFloat, Min: f(0.5), Max: f(1.0), Description: "Confidence for threshold-level spreads"},
		"high_spread_threshold":    {Type: TypeFloat, Min: f(0.2), Max: f(10.0), Description: "Spread percent treated as high conviction"},
		"high_spread_confidence":   {Type: TypeFloat, Min: f(0.5), Max: f(1.0), Description: "Confidence for high-conviction spreads"},
	},
	StrategyOnchainMetrics: {
		"whale_threshold_btc":             {Type: TypeFloat, Min: f(10), Max: f(1000), Description: "Whale transaction threshold (BTC)"},
		"whale_threshold_eth":             {Type: TypeFloat, Min: f(100), Max: f(10000), Description: "Whale transaction threshold (ETH)"},
		"exchange_flow_threshold_percent": {Type: TypeFloat, Min: f(5.0), Max: f(50.0), Description: "Exchange flow change threshold percentage"},
		"network_growth_threshold":        {Type: TypeFloat, Min: f(1.0), Max: f(50.0), Description: "24h network activity growth percent treated as strong"},
		"net_inflow_threshold":            {Type: TypeFloat, Min: f(100.0), Max: f(100000.0), Description: "Net exchange inflow treated as distribution"},
		"min_signal_interval":             {Type: TypeInt, Min: f(1800), Max: f(86400), Description: "Minimum time between signals (seconds)"},
		"base_confidence":                 {Type: TypeFloat, Min: f(0.5), Max: f(1.0), Description: "Confidence for baseline signals"},
		"strong_signal_confidence":        {Type: TypeFloat, Min: f(0.5), Max: f(1.0), Description: "Confidence for confirmed signals"},
	},
	StrategyIcebergDetector: {
		"proximity_percent":     {Type: TypeFloat, Min: f(0.1), Max: f(5.0), Description: "Detection band around mid price, percent"},
		"depletion_threshold":   {Type: TypeFloat, Min: f(0.05), Max: f(0.9), Description: "Fraction of peak quantity counting as depleted"},
		"refill_threshold":      {Type: TypeFloat, Min: f(0.1), Max: f(1.0), Description: "Fraction of peak quantity counting as refilled"},
		"min_refill_count":      {Type: TypeInt, Min: f(1), Max: f(20), Description: "Refill transitions required for the refill pattern"},
		"fast_refill_seconds":   {Type: TypeFloat, Min: f(0.5), Max: f(60.0), Description: "Maximum mean refill latency (seconds)"},
		"consistency_threshold": {Type: TypeFloat, Min: f(0.5), Max: f(1.0), Description: "Minimum volume consistency score"},
		"persistence_seconds":   {Type: TypeFloat, Min: f(10.0), Max: f(3600.0), Description: "Minimum level lifetime (seconds)"},
		"min_confidence":        {Type: TypeFloat, Min: f(0.0), Max: f(1.0), Description: "Minimum pattern confidence to emit"},
		"min_signal_interval":   {Type: TypeInt, Min: f(10), Max: f(3600), Description: "Minimum time between signals per level (seconds)"},
		"side_filter":           {Type: TypeString, AllowedValues: []interface{}{"both", "bid", "ask"}, Description: "Which book side to emit signals for"},
	},
	StrategySpreadLiquidity: {
		"history_size":           {Type: TypeInt, Min: f(5), Max: f(200), Description: "Depth ticks kept in the rolling window"},
		"spread_ratio_threshold": {Type: TypeFloat, Min: f(1.1), Max: f(10.0), Description: "Spread widening ratio versus rolling average"},
		"velocity_threshold":     {Type: TypeFloat, Min: f(0.05), Max: f(10.0), Description: "Spread widening velocity, percent per second"},
		"depth_drop_threshold":   {Type: TypeFloat, Min: f(0.1), Max: f(0.95), Description: "Fractional top-of-book depth reduction"},
		"top_levels":             {Type: TypeInt, Min: f(1), Max: f(20), Description: "Levels summed for depth comparison"},
		"min_signal_interval":    {Type: TypeInt, Min: f(10), Max: f(3600), Description: "Minimum time between signals (seconds)"},
		"base_confidence":        {Type: TypeFloat, Min: f(0.5), Max: f(1.0), Description: "Confidence for defensive signals"},
	},
}

var strategyMetadata = map[string]Metadata{
	StrategyOrderbookSkew: {
		Name:        "Order Book Skew",
		Description: "Detects bid/ask volume imbalance in the top of the order book",
		Category:    "Microstructure",
		Type:        "orderbook",
	},
	StrategyTradeMomentum: {
		Name:        "Trade Momentum",
		Description: "Accumulates directional pressure from the recent trade flow",
		Category:    "Momentum",
		Type:        "trade",
	},
	StrategyTickerVelocity: {
		Name:        "Ticker Velocity",
		Description: "Measures last-price velocity over a rolling ticker window",
		Category:    "Momentum",
		Type:        "ticker",
	},
	StrategyBTCDominance: {
		Name:        "Bitcoin Dominance",
		Description: "Monitors Bitcoin market dominance to generate rotation signals between BTC and altcoins",
		Category:    "Market Logic",
		Type:        "rotation",
	},
	StrategyCrossExchangeSpread: {
		Name:        "Cross-Exchange Spread",
		Description: "Monitors price differences across exchanges to identify arbitrage opportunities",
		Category:    "Market Logic",
		Type:        "arbitrage",
	},
	StrategyOnchainMetrics: {
		Name:        "On-Chain Metrics",
		Description: "Analyzes blockchain data for whale activity and exchange flows",
		Category:    "Market Logic",
		Type:        "fundamental",
	},
	StrategyIcebergDetector: {
		Name:        "Iceberg Detector",
		Description: "Detects hidden orders via refill, consistency and persistence patterns at price levels",
		Category:    "Microstructure",
		Type:        "orderbook",
	},
	StrategySpreadLiquidity: {
		Name:        "Spread / Liquidity",
		Description: "Emits defensive signals on sudden spread widening with liquidity withdrawal",
		Category:    "Microstructure",
		Type:        "orderbook",
	},
}

// ListStrategyIDs returns all known strategy ids, sorted
func ListStrategyIDs() []string {
	out := make([]string, 0, len(strategyDefaults))
	for id := range strategyDefaults {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Defaults returns a copy of the built-in defaults for a strategy,
// or nil for an unknown id
func Defaults(strategyID string) map[string]interface{} {
	return copyParams(strategyDefaults[strategyID])
}

// Schema returns the parameter schema for a strategy, or nil
func Schema(strategyID string) map[string]ParamSchema {
	return parameterSchemas[strategyID]
}

// MetadataFor returns display metadata for a strategy; unknown ids get a
// generic placeholder so listings never fail.
func MetadataFor(strategyID string) Metadata {
	if md, ok := strategyMetadata[strategyID]; ok {
		return md
	}
	return Metadata{
		Name:        strategyID,
		Description: "No description available",
		Category:    "Market Logic",
		Type:        "unknown",
	}
}

// IsKnownStrategy reports whether the id has registered defaults
func IsKnownStrategy(strategyID string) bool {
	_, ok := strategyDefaults[strategyID]
	return ok
}
