package params

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateDefaultsAgainstOwnSchemas(t *testing.T) {
	for _, id := range ListStrategyIDs() {
		issues := Validate(id, Defaults(id))
		assert.Empty(t, issues, "defaults of %s must validate cleanly", id)
	}
}

func TestValidateUnknownParameter(t *testing.T) {
	issues := Validate(StrategyOrderbookSkew, map[string]interface{}{"no_such_param": 1})
	require.Len(t, issues, 1)
	assert.Equal(t, CodeUnknownParameter, issues[0].Code)
	assert.Equal(t, "no_such_param", issues[0].Parameter)
}

func TestValidateTypeMismatch(t *testing.T) {
	issues := Validate(StrategyOrderbookSkew, map[string]interface{}{"top_levels": "five"})
	require.Len(t, issues, 1)
	assert.Equal(t, CodeInvalidType, issues[0].Code)

	issues = Validate(StrategyOrderbookSkew, map[string]interface{}{"top_levels": 5.5})
	require.Len(t, issues, 1)
	assert.Equal(t, CodeInvalidType, issues[0].Code)

	issues = Validate(StrategyIcebergDetector, map[string]interface{}{"side_filter": 2})
	require.Len(t, issues, 1)
	assert.Equal(t, CodeInvalidType, issues[0].Code)
}

func TestValidateRange(t *testing.T) {
	issues := Validate(StrategyOrderbookSkew, map[string]interface{}{"top_levels": 25})
	require.Len(t, issues, 1)
	assert.Equal(t, CodeOutOfRange, issues[0].Code)
	assert.Equal(t, 20.0, issues[0].Suggested)

	issues = Validate(StrategyOrderbookSkew, map[string]interface{}{"buy_threshold": 0.5})
	require.Len(t, issues, 1)
	assert.Equal(t, CodeOutOfRange, issues[0].Code)
	assert.Equal(t, 1.0, issues[0].Suggested)
}

func TestValidateAllowedValues(t *testing.T) {
	issues := Validate(StrategyIcebergDetector, map[string]interface{}{"side_filter": "upward"})
	require.Len(t, issues, 1)
	assert.Equal(t, CodeOutOfRange, issues[0].Code)
	assert.Equal(t, "both", issues[0].Suggested)

	assert.Empty(t, Validate(StrategyIcebergDetector, map[string]interface{}{"side_filter": "bid"}))
}

func TestValidateIntAcceptsJSONNumbers(t *testing.T) {
	// JSON decoding hands integers over as float64.
	assert.Empty(t, Validate(StrategyOrderbookSkew, map[string]interface{}{"top_levels": 5.0}))
}

func TestValidateListType(t *testing.T) {
	assert.Empty(t, Validate(StrategyCrossExchangeSpread, map[string]interface{}{
		"exchanges": []interface{}{"binance", "kraken"},
	}))
	issues := Validate(StrategyCrossExchangeSpread, map[string]interface{}{"exchanges": "binance"})
	require.Len(t, issues, 1)
	assert.Equal(t, CodeInvalidType, issues[0].Code)
}

func TestValidateUnknownStrategyAcceptsAll(t *testing.T) {
	assert.Empty(t, Validate("no_such_strategy", map[string]interface{}{"anything": 42}))
}

func TestValidateCollectsMultipleIssues(t *testing.T) {
	issues := Validate(StrategyOrderbookSkew, map[string]interface{}{
		"top_levels":   0,
		"mystery_knob": true,
	})
	assert.Len(t, issues, 2)
}
