package params

import (
	"os"
	"strconv"
	"strings"
)

// envBindings maps parameters to the environment variable names carried
// over from earlier deployments of this service. Only variables actually
// present in the environment contribute; an empty result falls through to
// the built-in defaults.
var envBindings = map[string]map[string]string{
	StrategyOrderbookSkew: {
		"top_levels":         "ORDERBOOK_SKEW_TOP_LEVELS",
		"buy_threshold":      "ORDERBOOK_SKEW_BUY_THRESHOLD",
		"sell_threshold":     "ORDERBOOK_SKEW_SELL_THRESHOLD",
		"min_spread_percent": "ORDERBOOK_SKEW_MIN_SPREAD_PERCENT",
	},
	StrategyTradeMomentum: {
		"price_weight":    "TRADE_MOMENTUM_PRICE_WEIGHT",
		"quantity_weight": "TRADE_MOMENTUM_QUANTITY_WEIGHT",
		"maker_weight":    "TRADE_MOMENTUM_MAKER_WEIGHT",
		"buy_threshold":   "TRADE_MOMENTUM_BUY_THRESHOLD",
		"sell_threshold":  "TRADE_MOMENTUM_SELL_THRESHOLD",
		"min_quantity":    "TRADE_MOMENTUM_MIN_QUANTITY",
	},
	StrategyTickerVelocity: {
		"time_window":      "TICKER_VELOCITY_TIME_WINDOW",
		"buy_threshold":    "TICKER_VELOCITY_BUY_THRESHOLD",
		"sell_threshold":   "TICKER_VELOCITY_SELL_THRESHOLD",
		"min_price_change": "TICKER_VELOCITY_MIN_PRICE_CHANGE",
	},
	StrategyBTCDominance: {
		"high_threshold":      "BTC_DOMINANCE_HIGH_THRESHOLD",
		"low_threshold":       "BTC_DOMINANCE_LOW_THRESHOLD",
		"change_threshold":    "BTC_DOMINANCE_CHANGE_THRESHOLD",
		"window_hours":        "BTC_DOMINANCE_WINDOW_HOURS",
		"min_signal_interval": "BTC_DOMINANCE_MIN_SIGNAL_INTERVAL",
	},
	StrategyCrossExchangeSpread: {
		"spread_threshold_percent": "SPREAD_THRESHOLD_PERCENT",
		"min_signal_interval":      "SPREAD_MIN_SIGNAL_INTERVAL",
		"max_position_size":        "SPREAD_MAX_POSITION_SIZE",
		"exchanges":                "SPREAD_EXCHANGES",
	},
	StrategyOnchainMetrics: {
		"network_growth_threshold": "ONCHAIN_NETWORK_GROWTH_THRESHOLD",
		"net_inflow_threshold":     "ONCHAIN_VOLUME_THRESHOLD",
		"min_signal_interval":      "ONCHAIN_MIN_SIGNAL_INTERVAL",
	},
	StrategyIcebergDetector: {
		"proximity_percent":   "ICEBERG_PROXIMITY_PERCENT",
		"min_refill_count":    "ICEBERG_MIN_REFILL_COUNT",
		"min_signal_interval": "ICEBERG_MIN_SIGNAL_INTERVAL",
	},
	StrategySpreadLiquidity: {
		"spread_ratio_threshold": "SPREAD_LIQUIDITY_RATIO_THRESHOLD",
		"velocity_threshold":     "SPREAD_LIQUIDITY_VELOCITY_THRESHOLD",
		"min_signal_interval":    "SPREAD_LIQUIDITY_MIN_SIGNAL_INTERVAL",
	},
}

// envParameters reads the environment fallback layer for one strategy.
// Values are parsed according to the schema type; unparseable values are
// skipped rather than failing resolution.
func envParameters(strategyID string) map[string]interface{} {
	bindings := envBindings[strategyID]
	if bindings == nil {
		return nil
	}
	schema := Schema(strategyID)

	var out map[string]interface{}
	for param, envName := range bindings {
		raw, ok := os.LookupEnv(envName)
		if !ok || raw == "" {
			continue
		}
		value, ok := parseEnvValue(raw, schema[param].Type)
		if !ok {
			continue
		}
		if out == nil {
			out = make(map[string]interface{})
		}
		out[param] = value
	}
	return out
}

func parseEnvValue(raw, schemaType string) (interface{}, bool) {
	switch schemaType {
	case TypeInt:
		v, err := strconv.Atoi(raw)
		return v, err == nil
	case TypeFloat:
		v, err := strconv.ParseFloat(raw, 64)
		return v, err == nil
	case TypeBool:
		v, err := strconv.ParseBool(strings.ToLower(raw))
		return v, err == nil
	case TypeList:
		parts := strings.Split(raw, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		return out, len(out) > 0
	}
	return raw, true
}
