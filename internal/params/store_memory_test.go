package params

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreReturnsIndependentCopies(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Connect(context.Background()))
	t.Cleanup(func() { _ = store.Close(context.Background()) })

	require.NoError(t, store.UpsertGlobalConfig(context.Background(), &StrategyConfig{
		StrategyID: StrategyOrderbookSkew,
		Parameters: map[string]interface{}{"buy_threshold": 1.4},
		Version:    1,
	}))

	first, err := store.GetGlobalConfig(context.Background(), StrategyOrderbookSkew)
	require.NoError(t, err)

	// Mutating a fetched config must not leak into the store.
	first.Parameters["buy_threshold"] = 99.0
	first.Version = 42

	second, err := store.GetGlobalConfig(context.Background(), StrategyOrderbookSkew)
	require.NoError(t, err)
	assert.Equal(t, 1.4, second.Parameters["buy_threshold"])
	assert.Equal(t, 1, second.Version)
}
