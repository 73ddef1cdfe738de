package params

import (
	"context"
	"testing"
	"time"

	apperrors "realtime_strategies/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedVersions(t *testing.T, mgr *Manager, strategyID string, thresholds ...float64) {
	t.Helper()
	for _, th := range thresholds {
		_, issues, err := mgr.SetConfig(context.Background(), SetRequest{
			StrategyID: strategyID,
			Parameters: map[string]interface{}{"buy_threshold": th},
			ChangedBy:  "seeder",
		})
		require.NoError(t, err)
		require.Empty(t, issues)
	}
}

func TestRollbackByVersion(t *testing.T) {
	mgr, store := newTestManager(t)
	ctx := context.Background()

	seedVersions(t, mgr, StrategyOrderbookSkew, 1.1, 1.2, 1.3)

	cfg, err := mgr.Rollback(ctx, RollbackRequest{
		StrategyID:    StrategyOrderbookSkew,
		TargetVersion: 1,
		ChangedBy:     "operator",
	})
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Version)
	assert.Equal(t, 1.1, cfg.Parameters["buy_threshold"])
	// The historical record's embedded version must not leak into the
	// restored parameter set.
	_, hasVersion := cfg.Parameters["version"]
	assert.False(t, hasVersion)

	trail, err := mgr.AuditTrail(ctx, StrategyOrderbookSkew, "", 10)
	require.NoError(t, err)
	require.Len(t, trail, 4)
	assert.Equal(t, ActionUpdate, trail[0].Action)
	assert.Contains(t, trail[0].Reason, "Rollback")
	assert.Equal(t, ActionCreate, trail[3].Action)
	assert.Equal(t, 4, store.AuditCount())
}

func TestRollbackByAuditID(t *testing.T) {
	mgr, _ := newTestManager(t)
	ctx := context.Background()

	seedVersions(t, mgr, StrategyOrderbookSkew, 1.1, 1.2)

	trail, err := mgr.AuditTrail(ctx, StrategyOrderbookSkew, "", 10)
	require.NoError(t, err)
	require.Len(t, trail, 2)
	createRecord := trail[1]

	cfg, err := mgr.Rollback(ctx, RollbackRequest{
		StrategyID: StrategyOrderbookSkew,
		RollbackID: createRecord.ID,
		ChangedBy:  "operator",
	})
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Version)
	assert.Equal(t, 1.1, cfg.Parameters["buy_threshold"])
}

func TestRollbackRefusesCrossStrategyAuditID(t *testing.T) {
	mgr, store := newTestManager(t)
	ctx := context.Background()

	seedVersions(t, mgr, StrategyOrderbookSkew, 1.1)
	trail, err := mgr.AuditTrail(ctx, StrategyOrderbookSkew, "", 1)
	require.NoError(t, err)
	foreignID := trail[0].ID

	auditsBefore := store.AuditCount()
	_, err = mgr.Rollback(ctx, RollbackRequest{
		StrategyID: StrategyBTCDominance,
		RollbackID: foreignID,
		ChangedBy:  "attacker",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.Contains(t, err.Error(), "not found for strategy")

	// Refusal leaves no trace: no state change, no audit record.
	assert.Equal(t, auditsBefore, store.AuditCount())
	_, err = store.GetGlobalConfig(ctx, StrategyBTCDominance)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestRollbackDefaultsToPreviousVersion(t *testing.T) {
	mgr, _ := newTestManager(t)
	ctx := context.Background()

	seedVersions(t, mgr, StrategyOrderbookSkew, 1.1, 1.2)

	cfg, err := mgr.Rollback(ctx, RollbackRequest{
		StrategyID: StrategyOrderbookSkew,
		ChangedBy:  "operator",
	})
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Version)
	assert.Equal(t, 1.1, cfg.Parameters["buy_threshold"])
}

func TestRollbackUnknownVersion(t *testing.T) {
	mgr, _ := newTestManager(t)
	seedVersions(t, mgr, StrategyOrderbookSkew, 1.1)

	_, err := mgr.Rollback(context.Background(), RollbackRequest{
		StrategyID:    StrategyOrderbookSkew,
		TargetVersion: 9,
		ChangedBy:     "operator",
	})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestRollbackInvalidVersionNumber(t *testing.T) {
	mgr, _ := newTestManager(t)
	_, err := mgr.Rollback(context.Background(), RollbackRequest{
		StrategyID:    StrategyOrderbookSkew,
		TargetVersion: -1,
		ChangedBy:     "operator",
	})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestRollbackPerSymbolIsIndependent(t *testing.T) {
	mgr, _ := newTestManager(t)
	ctx := context.Background()

	// Global v1..v2 and a BTCUSDT override v1.
	seedVersions(t, mgr, StrategyOrderbookSkew, 1.1, 1.2)
	_, _, err := mgr.SetConfig(ctx, SetRequest{
		StrategyID: StrategyOrderbookSkew,
		Symbol:     "BTCUSDT",
		Parameters: map[string]interface{}{"buy_threshold": 2.0},
		ChangedBy:  "seeder",
	})
	require.NoError(t, err)

	// Rolling the override back to version 1 targets the override's own
	// audit line, not the global one.
	cfg, err := mgr.Rollback(ctx, RollbackRequest{
		StrategyID:    StrategyOrderbookSkew,
		Symbol:        "BTCUSDT",
		TargetVersion: 1,
		ChangedBy:     "operator",
	})
	require.NoError(t, err)
	assert.Equal(t, "BTCUSDT", cfg.Symbol)
	assert.Equal(t, 2, cfg.Version)
	assert.Equal(t, 2.0, cfg.Parameters["buy_threshold"])
}

func TestTTLCacheExpiry(t *testing.T) {
	cache := newTTLCache(10 * time.Millisecond)
	cache.set("a", Resolved{Source: SourceDefault})
	_, ok := cache.get("a")
	assert.True(t, ok)

	time.Sleep(20 * time.Millisecond)
	_, ok = cache.get("a")
	assert.False(t, ok)
	// Expired entries linger until the sweep removes them.
	assert.Equal(t, 1, cache.sweep())
	assert.Equal(t, 0, cache.len())
}
