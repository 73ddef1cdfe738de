package venues

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"realtime_strategies/internal/strategy"
	phttp "realtime_strategies/pkg/http"
)

// OnchainClient implements strategy.OnchainSource against the metrics
// aggregator's REST API: GET /v1/metrics/{asset} returns the current
// network snapshot for BTC or ETH.
type OnchainClient struct {
	client *phttp.Client
}

// NewOnchainClient creates a client for the given aggregator base URL
func NewOnchainClient(baseURL string, timeout time.Duration) *OnchainClient {
	return &OnchainClient{client: phttp.NewClient(baseURL, timeout)}
}

type onchainPayload struct {
	Asset           string  `json:"asset"`
	ActiveAddresses float64 `json:"active_addresses"`
	TxVolume        float64 `json:"tx_volume"`
	HashRate        float64 `json:"hash_rate"`
	DefiTVL         float64 `json:"defi_tvl"`
	ExchangeInflow  float64 `json:"exchange_inflow"`
	ExchangeOutflow float64 `json:"exchange_outflow"`
	Timestamp       int64   `json:"timestamp"`
}

// Fetch returns the current snapshot for an asset
func (c *OnchainClient) Fetch(ctx context.Context, asset string) (strategy.OnchainSnapshot, error) {
	body, err := c.client.Get(ctx, "/v1/metrics/"+asset, nil)
	if err != nil {
		return strategy.OnchainSnapshot{}, err
	}

	var payload onchainPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return strategy.OnchainSnapshot{}, fmt.Errorf("decode onchain metrics: %w", err)
	}

	ts := time.Now()
	if payload.Timestamp > 0 {
		ts = time.UnixMilli(payload.Timestamp)
	}
	return strategy.OnchainSnapshot{
		Asset:           asset,
		ActiveAddresses: payload.ActiveAddresses,
		TxVolume:        payload.TxVolume,
		HashRate:        payload.HashRate,
		DefiTVL:         payload.DefiTVL,
		ExchangeInflow:  payload.ExchangeInflow,
		ExchangeOutflow: payload.ExchangeOutflow,
		Timestamp:       ts,
	}, nil
}
