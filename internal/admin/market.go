package admin

import (
	"net/http"
	"strconv"
)

func (s *Server) handleMarketDepth(w http.ResponseWriter, r *http.Request) {
	symbol := normalizeSymbol(r.PathValue("symbol"))
	metrics, ok := s.analyzer.Current(symbol)
	if !ok {
		writeError(w, http.StatusNotFound, CodeNotFound, "no depth data for "+symbol)
		return
	}
	writeSuccess(w, http.StatusOK, metrics, nil)
}

func (s *Server) handleMarketPressure(w http.ResponseWriter, r *http.Request) {
	symbol := normalizeSymbol(r.PathValue("symbol"))
	metrics, ok := s.analyzer.Current(symbol)
	if !ok {
		writeError(w, http.StatusNotFound, CodeNotFound, "no depth data for "+symbol)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]interface{}{
		"symbol":            metrics.Symbol,
		"timestamp":         metrics.Timestamp,
		"buy_pressure":      metrics.BuyPressure,
		"sell_pressure":     metrics.SellPressure,
		"net_pressure":      metrics.NetPressure,
		"imbalance_ratio":   metrics.ImbalanceRatio,
		"imbalance_percent": metrics.ImbalancePercent,
	}, nil)
}

func (s *Server) handleMarketSummary(w http.ResponseWriter, r *http.Request) {
	limit := 5
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	writeSuccess(w, http.StatusOK, s.analyzer.MarketSummary(limit), nil)
}
