package params

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"realtime_strategies/internal/core"
	apperrors "realtime_strategies/pkg/errors"
	"realtime_strategies/pkg/telemetry"
)

// DefaultCacheTTL is how long resolved configs stay valid in memory
const DefaultCacheTTL = 60 * time.Second

// Manager resolves, validates and mutates strategy configuration.
//
// Resolution priority: cache, store symbol override, store global,
// environment fallback, built-in defaults. Every mutation writes exactly
// one audit record and invalidates the affected cache key.
type Manager struct {
	store  Store // nil when running without a document store
	cache  *ttlCache
	ttl    time.Duration
	logger core.ILogger

	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}
}

// NewManager creates a configuration manager. store may be nil, in which
// case only reads work (environment + defaults) and all writes fail.
func NewManager(store Store, cacheTTL time.Duration, logger core.ILogger) *Manager {
	if cacheTTL <= 0 {
		cacheTTL = DefaultCacheTTL
	}
	return &Manager{
		store:  store,
		cache:  newTTLCache(cacheTTL),
		ttl:    cacheTTL,
		logger: logger.WithField("component", "config_manager"),
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Start connects the store and launches the background cache sweeper
func (m *Manager) Start(ctx context.Context) error {
	if m.store != nil {
		if err := m.store.Connect(ctx); err != nil {
			return fmt.Errorf("config store connect: %w", err)
		}
		m.logger.Info("Config store connected")
	} else {
		m.logger.Warn("Running without config store, writes disabled")
	}

	go m.sweepLoop()
	m.logger.Info("Configuration manager started", "cache_ttl", m.ttl.String())
	return nil
}

// Stop halts the sweeper and closes the store
func (m *Manager) Stop(ctx context.Context) error {
	m.stopOnce.Do(func() { close(m.stopCh) })
	<-m.done
	if m.store != nil {
		if err := m.store.Close(ctx); err != nil {
			return err
		}
	}
	m.logger.Info("Configuration manager stopped")
	return nil
}

func (m *Manager) sweepLoop() {
	defer close(m.done)
	ticker := time.NewTicker(m.ttl)
	defer ticker.Stop()
	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			if removed := m.cache.sweep(); removed > 0 {
				m.logger.Debug("Swept expired config cache entries", "removed", removed)
			}
		}
	}
}

// GetConfig resolves the effective configuration for (strategy, symbol).
// symbol may be empty for the global view. Store outages fall through to
// the environment and built-in defaults; resolution never fails for a
// known strategy.
func (m *Manager) GetConfig(ctx context.Context, strategyID, symbol string) Resolved {
	key := cacheKey(strategyID, symbol)
	if cached, ok := m.cache.get(key); ok {
		cached.CacheHit = true
		telemetry.GetGlobalMetrics().AddConfigCacheHit(ctx)
		return cached
	}
	telemetry.GetGlobalMetrics().AddConfigCacheMiss(ctx)

	resolved := m.resolveUncached(ctx, strategyID, symbol)
	m.cache.set(key, resolved)
	return resolved
}

func (m *Manager) resolveUncached(ctx context.Context, strategyID, symbol string) Resolved {
	if m.storeReady() {
		if symbol != "" {
			if cfg, err := m.store.GetSymbolConfig(ctx, strategyID, symbol); err == nil {
				return storedToResolved(cfg, true)
			} else if !errors.Is(err, apperrors.ErrNotFound) {
				m.logger.Warn("Symbol config lookup failed", "strategy", strategyID, "symbol", symbol, "error", err)
			}
		}
		if cfg, err := m.store.GetGlobalConfig(ctx, strategyID); err == nil {
			return storedToResolved(cfg, false)
		} else if !errors.Is(err, apperrors.ErrNotFound) {
			m.logger.Warn("Global config lookup failed", "strategy", strategyID, "error", err)
		}
	}

	if envParams := envParameters(strategyID); envParams != nil {
		return Resolved{Parameters: envParams, Source: SourceEnvironment}
	}
	return Resolved{Parameters: Defaults(strategyID), Source: SourceDefault}
}

// Resolve implements core.IParamResolver for strategies
func (m *Manager) Resolve(ctx context.Context, strategyID, symbol string) (core.Params, error) {
	resolved := m.GetConfig(ctx, strategyID, symbol)
	return core.Params(resolved.Parameters), nil
}

// Validate checks parameters against the strategy schema without touching
// any state
func (m *Manager) Validate(strategyID string, parameters map[string]interface{}) []ValidationIssue {
	return Validate(strategyID, parameters)
}

// SetConfig validates and persists one configuration write. On validation
// failure the issues are returned and nothing is mutated; in ValidateOnly
// mode a clean validation also mutates nothing. A successful write bumps
// the version by one, preserves the original creation time, writes exactly
// one audit record and invalidates the cache key.
func (m *Manager) SetConfig(ctx context.Context, req SetRequest) (*StrategyConfig, []ValidationIssue, error) {
	if issues := Validate(req.StrategyID, req.Parameters); len(issues) > 0 {
		return nil, issues, fmt.Errorf("%w: %s", apperrors.ErrValidation, issues[0].Message)
	}
	if req.ValidateOnly {
		return nil, nil, nil
	}
	if !m.storeReady() {
		return nil, nil, apperrors.ErrStoreUnavailable
	}

	existing, err := m.readExisting(ctx, req.StrategyID, req.Symbol)
	if err != nil {
		return nil, nil, err
	}

	now := time.Now().UTC()
	version := 1
	createdAt := now
	action := ActionCreate
	var oldParams map[string]interface{}
	if existing != nil {
		version = existing.Version + 1
		createdAt = existing.CreatedAt
		action = ActionUpdate
		oldParams = existing.Parameters
	}

	cfg := &StrategyConfig{
		StrategyID: req.StrategyID,
		Symbol:     req.Symbol,
		Parameters: copyParams(req.Parameters),
		Version:    version,
		CreatedAt:  createdAt,
		UpdatedAt:  now,
		CreatedBy:  req.ChangedBy,
	}
	if req.Reason != "" {
		cfg.Metadata = map[string]interface{}{"reason": req.Reason}
	}

	if req.Symbol != "" {
		err = m.store.UpsertSymbolConfig(ctx, cfg)
	} else {
		err = m.store.UpsertGlobalConfig(ctx, cfg)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("persist config: %w", err)
	}

	// The audit copy carries the version so rollback can address it.
	auditNew := copyParams(req.Parameters)
	auditNew["version"] = version
	if _, err := m.store.CreateAuditRecord(ctx, &AuditRecord{
		StrategyID:    req.StrategyID,
		Symbol:        req.Symbol,
		Action:        action,
		OldParameters: copyParams(oldParams),
		NewParameters: auditNew,
		ChangedBy:     req.ChangedBy,
		ChangedAt:     now,
		Reason:        req.Reason,
	}); err != nil {
		return nil, nil, fmt.Errorf("write audit record: %w", err)
	}

	m.cache.invalidate(cacheKey(req.StrategyID, req.Symbol))
	m.logger.Info("Config updated",
		"strategy", req.StrategyID, "symbol", req.Symbol,
		"version", version, "action", action, "changed_by", req.ChangedBy)
	return cfg, nil, nil
}

// DeleteConfig removes one configuration and writes a DELETE audit record.
// The preceding read is best effort: a failed read still allows the delete
// but leaves old_parameters empty.
func (m *Manager) DeleteConfig(ctx context.Context, strategyID, symbol, changedBy, reason string) error {
	if !m.storeReady() {
		return apperrors.ErrStoreUnavailable
	}

	existing, err := m.readExisting(ctx, strategyID, symbol)
	if err != nil {
		m.logger.Warn("Pre-delete config read failed", "strategy", strategyID, "symbol", symbol, "error", err)
	}

	if symbol != "" {
		err = m.store.DeleteSymbolConfig(ctx, strategyID, symbol)
	} else {
		err = m.store.DeleteGlobalConfig(ctx, strategyID)
	}
	if err != nil {
		return err
	}

	var oldParams map[string]interface{}
	if existing != nil {
		oldParams = existing.Parameters
	}
	if _, err := m.store.CreateAuditRecord(ctx, &AuditRecord{
		StrategyID:    strategyID,
		Symbol:        symbol,
		Action:        ActionDelete,
		OldParameters: copyParams(oldParams),
		ChangedBy:     changedBy,
		ChangedAt:     time.Now().UTC(),
		Reason:        reason,
	}); err != nil {
		return fmt.Errorf("write audit record: %w", err)
	}

	m.cache.invalidate(cacheKey(strategyID, symbol))
	m.logger.Info("Config deleted", "strategy", strategyID, "symbol", symbol, "changed_by", changedBy)
	return nil
}

// Rollback restores the parameters recorded by a historical audit entry,
// selected by target version, audit id, or (neither given) the state
// preceding the latest change. The restore is applied as a regular update:
// the version keeps increasing and a fresh audit record is written.
func (m *Manager) Rollback(ctx context.Context, req RollbackRequest) (*StrategyConfig, error) {
	if !m.storeReady() {
		return nil, apperrors.ErrStoreUnavailable
	}

	parameters, described, err := m.rollbackTarget(ctx, req)
	if err != nil {
		return nil, err
	}

	// The embedded version belongs to the historical record, not the new one.
	delete(parameters, "version")

	reason := req.Reason
	if reason == "" {
		reason = described
	}
	cfg, issues, err := m.SetConfig(ctx, SetRequest{
		StrategyID: req.StrategyID,
		Symbol:     req.Symbol,
		Parameters: parameters,
		ChangedBy:  req.ChangedBy,
		Reason:     "Rollback: " + reason,
	})
	if err != nil {
		if len(issues) > 0 {
			return nil, fmt.Errorf("rollback parameters no longer valid: %s", issues[0].Message)
		}
		return nil, err
	}
	return cfg, nil
}

func (m *Manager) rollbackTarget(ctx context.Context, req RollbackRequest) (map[string]interface{}, string, error) {
	switch {
	case req.TargetVersion > 0:
		rec, err := m.store.GetAuditRecordByVersion(ctx, req.StrategyID, req.TargetVersion, req.Symbol)
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, "", fmt.Errorf("%w: version %d for strategy %s", apperrors.ErrNotFound, req.TargetVersion, req.StrategyID)
		}
		if err != nil {
			return nil, "", err
		}
		return copyParams(rec.NewParameters), fmt.Sprintf("restore version %d", req.TargetVersion), nil

	case req.TargetVersion < 0:
		return nil, "", fmt.Errorf("%w: invalid version number %d", apperrors.ErrValidation, req.TargetVersion)

	case req.RollbackID != "":
		rec, err := m.store.GetAuditRecordByID(ctx, req.RollbackID)
		if err != nil {
			return nil, "", err
		}
		// Cross-strategy audit ids are refused: callers must not be able to
		// inject another strategy's parameters by guessing ids.
		if rec.StrategyID != req.StrategyID {
			return nil, "", fmt.Errorf("%w: audit record %s not found for strategy %s", apperrors.ErrNotFound, req.RollbackID, req.StrategyID)
		}
		if rec.NewParameters == nil {
			return nil, "", fmt.Errorf("%w: audit record %s has no parameters to restore", apperrors.ErrValidation, req.RollbackID)
		}
		return copyParams(rec.NewParameters), "restore audit " + req.RollbackID, nil
	}

	// Default: the state before the most recent change.
	trail, err := m.store.GetAuditTrail(ctx, req.StrategyID, req.Symbol, 10)
	if err != nil {
		return nil, "", err
	}
	for _, rec := range trail {
		if rec.OldParameters != nil {
			return copyParams(rec.OldParameters), "restore previous version", nil
		}
	}
	return nil, "", fmt.Errorf("%w: no previous version for strategy %s", apperrors.ErrNotFound, req.StrategyID)
}

// ListStrategies returns every known strategy with its override coverage
func (m *Manager) ListStrategies(ctx context.Context) []StrategyInfo {
	ids := ListStrategyIDs()
	out := make([]StrategyInfo, 0, len(ids))
	for _, id := range ids {
		md := MetadataFor(id)
		info := StrategyInfo{
			StrategyID:     id,
			Name:           md.Name,
			Description:    md.Description,
			Category:       md.Category,
			Type:           md.Type,
			ParameterCount: len(Defaults(id)),
		}
		if m.storeReady() {
			if _, err := m.store.GetGlobalConfig(ctx, id); err == nil {
				info.HasGlobalConfig = true
			}
			if overrides, err := m.store.ListSymbolOverrides(ctx, id); err == nil {
				info.SymbolOverrides = overrides
			}
		}
		out = append(out, info)
	}
	return out
}

// AuditTrail returns the change history, most recent first
func (m *Manager) AuditTrail(ctx context.Context, strategyID, symbol string, limit int) ([]AuditRecord, error) {
	if !m.storeReady() {
		return nil, nil
	}
	return m.store.GetAuditTrail(ctx, strategyID, symbol, limit)
}

// RefreshCache drops every cached entry immediately
func (m *Manager) RefreshCache() {
	m.cache.clear()
	m.logger.Info("Configuration cache cleared")
}

// CacheSize reports the live cache entry count for health snapshots
func (m *Manager) CacheSize() int {
	return m.cache.len()
}

// StoreHealthy reports whether the backing store answers pings
func (m *Manager) StoreHealthy(ctx context.Context) error {
	if m.store == nil {
		return nil
	}
	return m.store.Ping(ctx)
}

func (m *Manager) storeReady() bool {
	return m.store != nil && m.store.IsConnected()
}

func (m *Manager) readExisting(ctx context.Context, strategyID, symbol string) (*StrategyConfig, error) {
	var (
		cfg *StrategyConfig
		err error
	)
	if symbol != "" {
		cfg, err = m.store.GetSymbolConfig(ctx, strategyID, symbol)
	} else {
		cfg, err = m.store.GetGlobalConfig(ctx, strategyID)
	}
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read existing config: %w", err)
	}
	return cfg, nil
}

func storedToResolved(cfg *StrategyConfig, isOverride bool) Resolved {
	created := cfg.CreatedAt
	updated := cfg.UpdatedAt
	return Resolved{
		Parameters: copyParams(cfg.Parameters),
		Version:    cfg.Version,
		Source:     SourceStore,
		IsOverride: isOverride,
		CreatedAt:  &created,
		UpdatedAt:  &updated,
	}
}

// DescribeKey renders the cache key format used in logs and admin output
func DescribeKey(strategyID, symbol string) string {
	return cacheKey(strategyID, symbol)
}
