package params

import (
	"context"
	"fmt"
	"sync"

	apperrors "realtime_strategies/pkg/errors"
)

// MemoryStore is an in-process Store used by tests and store-less
// deployments. Audit ids are sequential for deterministic assertions.
type MemoryStore struct {
	mu        sync.RWMutex
	connected bool
	global    map[string]*StrategyConfig          // strategy -> config
	symbol    map[string]map[string]*StrategyConfig // strategy -> symbol -> config
	audit     []AuditRecord
	nextID    int
}

// NewMemoryStore creates an empty memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		global: make(map[string]*StrategyConfig),
		symbol: make(map[string]map[string]*StrategyConfig),
		nextID: 1,
	}
}

func (s *MemoryStore) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = true
	return nil
}

func (s *MemoryStore) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = false
	return nil
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	if !s.IsConnected() {
		return apperrors.ErrNotConnected
	}
	return nil
}

func (s *MemoryStore) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

func (s *MemoryStore) GetGlobalConfig(ctx context.Context, strategyID string) (*StrategyConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg, ok := s.global[strategyID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return cloneConfig(cfg), nil
}

func (s *MemoryStore) GetSymbolConfig(ctx context.Context, strategyID, symbol string) (*StrategyConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg, ok := s.symbol[strategyID][symbol]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return cloneConfig(cfg), nil
}

func (s *MemoryStore) UpsertGlobalConfig(ctx context.Context, cfg *StrategyConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.global[cfg.StrategyID] = cloneConfig(cfg)
	return nil
}

func (s *MemoryStore) UpsertSymbolConfig(ctx context.Context, cfg *StrategyConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byID, ok := s.symbol[cfg.StrategyID]
	if !ok {
		byID = make(map[string]*StrategyConfig)
		s.symbol[cfg.StrategyID] = byID
	}
	byID[cfg.Symbol] = cloneConfig(cfg)
	return nil
}

func (s *MemoryStore) DeleteGlobalConfig(ctx context.Context, strategyID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.global[strategyID]; !ok {
		return apperrors.ErrNotFound
	}
	delete(s.global, strategyID)
	return nil
}

func (s *MemoryStore) DeleteSymbolConfig(ctx context.Context, strategyID, symbol string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.symbol[strategyID][symbol]; !ok {
		return apperrors.ErrNotFound
	}
	delete(s.symbol[strategyID], symbol)
	return nil
}

func (s *MemoryStore) ListSymbolOverrides(ctx context.Context, strategyID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for sym := range s.symbol[strategyID] {
		out = append(out, sym)
	}
	return out, nil
}

func (s *MemoryStore) CreateAuditRecord(ctx context.Context, rec *AuditRecord) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *rec
	stored.ID = fmt.Sprintf("audit_%d", s.nextID)
	s.nextID++
	stored.OldParameters = copyParams(rec.OldParameters)
	stored.NewParameters = copyParams(rec.NewParameters)
	s.audit = append(s.audit, stored)
	return stored.ID, nil
}

func (s *MemoryStore) GetAuditTrail(ctx context.Context, strategyID, symbol string, limit int) ([]AuditRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []AuditRecord
	// Most recent first.
	for i := len(s.audit) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		rec := s.audit[i]
		if rec.StrategyID != strategyID {
			continue
		}
		if symbol != "" && rec.Symbol != symbol {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *MemoryStore) GetAuditRecordByID(ctx context.Context, id string) (*AuditRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.audit {
		if s.audit[i].ID == id {
			rec := s.audit[i]
			return &rec, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (s *MemoryStore) GetAuditRecordByVersion(ctx context.Context, strategyID string, version int, symbol string) (*AuditRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.audit) - 1; i >= 0; i-- {
		rec := s.audit[i]
		if rec.StrategyID != strategyID || rec.NewParameters == nil {
			continue
		}
		// Global and per-symbol configs version independently.
		if rec.Symbol != symbol {
			continue
		}
		if v, ok := asNumber(rec.NewParameters["version"]); ok && int(v) == version {
			return &rec, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

// AuditCount reports the number of stored audit records, for tests
func (s *MemoryStore) AuditCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.audit)
}

func cloneConfig(cfg *StrategyConfig) *StrategyConfig {
	out := *cfg
	out.Parameters = copyParams(cfg.Parameters)
	out.Metadata = copyParams(cfg.Metadata)
	return &out
}
