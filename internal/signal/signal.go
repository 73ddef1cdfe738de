// Package signal defines the trading signal model and its transformation
// into the downstream trade engine wire format.
package signal

import (
	"time"

	"github.com/shopspring/decimal"
)

// Type is the directional classification of a signal
type Type string

const (
	TypeBuy  Type = "BUY"
	TypeSell Type = "SELL"
	TypeHold Type = "HOLD"
)

// Action is the position-level intent of a signal
type Action string

const (
	ActionOpenLong   Action = "OPEN_LONG"
	ActionOpenShort  Action = "OPEN_SHORT"
	ActionCloseLong  Action = "CLOSE_LONG"
	ActionCloseShort Action = "CLOSE_SHORT"
	ActionHold       Action = "HOLD"
)

// Confidence buckets a confidence score into coarse bands
type Confidence string

const (
	ConfidenceHigh   Confidence = "HIGH"
	ConfidenceMedium Confidence = "MEDIUM"
	ConfidenceLow    Confidence = "LOW"
)

// BucketConfidence maps a score in [0,1] to its band
func BucketConfidence(score float64) Confidence {
	switch {
	case score >= 0.8:
		return ConfidenceHigh
	case score >= 0.5:
		return ConfidenceMedium
	}
	return ConfidenceLow
}

// Signal is one trading signal emitted by a strategy. Once created it is
// immutable; the pipeline owns it until it is published or dropped.
type Signal struct {
	Symbol          string
	Type            Type
	Action          Action
	Confidence      Confidence
	ConfidenceScore float64
	Price           decimal.Decimal
	StrategyName    string
	SignalID        string
	Metadata        map[string]interface{}
	Timestamp       time.Time
}

// New builds a signal with the confidence band derived from the score and
// the timestamp set to now. Metadata may be nil.
func New(symbol string, typ Type, action Action, score float64, price decimal.Decimal, strategy string, metadata map[string]interface{}) *Signal {
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return &Signal{
		Symbol:          symbol,
		Type:            typ,
		Action:          action,
		Confidence:      BucketConfidence(score),
		ConfidenceScore: score,
		Price:           price,
		StrategyName:    strategy,
		Metadata:        metadata,
		Timestamp:       time.Now(),
	}
}
