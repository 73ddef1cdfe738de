package admin

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"realtime_strategies/internal/params"
	apperrors "realtime_strategies/pkg/errors"
)

// setConfigRequest is the body for config writes
type setConfigRequest struct {
	Parameters   map[string]interface{} `json:"parameters"`
	ChangedBy    string                 `json:"changed_by"`
	Reason       string                 `json:"reason"`
	ValidateOnly bool                   `json:"validate_only"`
}

// rollbackRequest is the body for rollback and restore
type rollbackRequest struct {
	Symbol        string `json:"symbol"`
	TargetVersion int    `json:"target_version"`
	RollbackID    string `json:"rollback_id"`
	ChangedBy     string `json:"changed_by"`
	Reason        string `json:"reason"`
}

func (s *Server) handleListStrategies(w http.ResponseWriter, r *http.Request) {
	infos := s.manager.ListStrategies(r.Context())
	writeSuccess(w, http.StatusOK, map[string]interface{}{
		"strategies": infos,
		"count":      len(infos),
	}, nil)
}

func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !params.IsKnownStrategy(id) {
		writeError(w, http.StatusNotFound, CodeNotFound, "unknown strategy: "+id)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]interface{}{
		"strategy_id": id,
		"schema":      params.Schema(id),
	}, nil)
}

func (s *Server) handleDefaults(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !params.IsKnownStrategy(id) {
		writeError(w, http.StatusNotFound, CodeNotFound, "unknown strategy: "+id)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]interface{}{
		"strategy_id": id,
		"defaults":    params.Defaults(id),
	}, nil)
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	symbol := normalizeSymbol(r.PathValue("symbol"))
	if !params.IsKnownStrategy(id) {
		writeError(w, http.StatusNotFound, CodeNotFound, "unknown strategy: "+id)
		return
	}

	resolved := s.manager.GetConfig(r.Context(), id, symbol)
	writeSuccess(w, http.StatusOK, resolved, map[string]interface{}{
		"strategy_id": id,
		"symbol":      symbol,
	})
}

func (s *Server) handleSetConfig(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	symbol := normalizeSymbol(r.PathValue("symbol"))
	if !params.IsKnownStrategy(id) {
		writeError(w, http.StatusNotFound, CodeNotFound, "unknown strategy: "+id)
		return
	}

	var body setConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid request body: "+err.Error())
		return
	}
	if len(body.Parameters) == 0 {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "parameters are required")
		return
	}

	cfg, issues, err := s.manager.SetConfig(r.Context(), params.SetRequest{
		StrategyID:   id,
		Symbol:       symbol,
		Parameters:   body.Parameters,
		ChangedBy:    body.ChangedBy,
		Reason:       body.Reason,
		ValidateOnly: body.ValidateOnly,
	})
	if len(issues) > 0 {
		writeErrorDetails(w, http.StatusBadRequest, CodeValidationError,
			"parameter validation failed", issues)
		return
	}
	if err != nil {
		s.logger.Error("Config write failed", "strategy", id, "symbol", symbol, "error", err)
		writeError(w, http.StatusInternalServerError, CodeInternalError, err.Error())
		return
	}
	if body.ValidateOnly {
		writeSuccess(w, http.StatusOK, map[string]interface{}{
			"valid":       true,
			"strategy_id": id,
			"symbol":      symbol,
		}, nil)
		return
	}
	writeSuccess(w, http.StatusOK, cfg, nil)
}

func (s *Server) handleDeleteConfig(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	symbol := normalizeSymbol(r.PathValue("symbol"))
	if !params.IsKnownStrategy(id) {
		writeError(w, http.StatusNotFound, CodeNotFound, "unknown strategy: "+id)
		return
	}

	changedBy := r.URL.Query().Get("changed_by")
	reason := r.URL.Query().Get("reason")
	err := s.manager.DeleteConfig(r.Context(), id, symbol, changedBy, reason)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			writeError(w, http.StatusNotFound, CodeNotFound, "no config to delete")
			return
		}
		s.logger.Error("Config delete failed", "strategy", id, "symbol", symbol, "error", err)
		writeError(w, http.StatusInternalServerError, CodeDeleteFailed, err.Error())
		return
	}
	writeSuccess(w, http.StatusOK, map[string]interface{}{
		"deleted":     true,
		"strategy_id": id,
		"symbol":      symbol,
	}, nil)
}

func (s *Server) handleRollback(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !params.IsKnownStrategy(id) {
		writeError(w, http.StatusNotFound, CodeNotFound, "unknown strategy: "+id)
		return
	}

	var body rollbackRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid request body: "+err.Error())
		return
	}

	cfg, err := s.manager.Rollback(r.Context(), params.RollbackRequest{
		StrategyID:    id,
		Symbol:        normalizeSymbol(body.Symbol),
		TargetVersion: body.TargetVersion,
		RollbackID:    body.RollbackID,
		ChangedBy:     body.ChangedBy,
		Reason:        body.Reason,
	})
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrNotFound):
			writeError(w, http.StatusNotFound, CodeNotFound, err.Error())
		case errors.Is(err, apperrors.ErrValidation):
			writeError(w, http.StatusBadRequest, CodeValidationError, err.Error())
		default:
			s.logger.Error("Rollback failed", "strategy", id, "error", err)
			writeError(w, http.StatusInternalServerError, CodeRollbackFailed, err.Error())
		}
		return
	}
	writeSuccess(w, http.StatusOK, cfg, map[string]interface{}{
		"rolled_back_to_version": cfg.Version,
	})
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !params.IsKnownStrategy(id) {
		writeError(w, http.StatusNotFound, CodeNotFound, "unknown strategy: "+id)
		return
	}

	symbol := normalizeSymbol(r.URL.Query().Get("symbol"))
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, CodeBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	records, err := s.manager.AuditTrail(r.Context(), id, symbol, limit)
	if err != nil {
		s.logger.Error("Audit trail read failed", "strategy", id, "error", err)
		writeError(w, http.StatusInternalServerError, CodeInternalError, err.Error())
		return
	}
	writeSuccess(w, http.StatusOK, map[string]interface{}{
		"records": records,
		"count":   len(records),
	}, map[string]interface{}{
		"strategy_id": id,
		"symbol":      symbol,
		"limit":       limit,
	})
}

func (s *Server) handleCacheRefresh(w http.ResponseWriter, r *http.Request) {
	before := s.manager.CacheSize()
	s.manager.RefreshCache()
	writeSuccess(w, http.StatusOK, map[string]interface{}{
		"invalidated": before,
	}, nil)
}

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
