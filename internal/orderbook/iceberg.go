package orderbook

import (
	"math"
	"sort"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
)

// Pattern tags ordered by precedence; a bucket qualifying under several
// rules takes the first matching tag.
const (
	PatternRefill     = "refill"
	PatternConsistent = "consistent"
	PatternPersistent = "persistent"
)

// DetectionParams tunes iceberg detection. Zero values fall back to the
// defaults below, so partially populated parameter snapshots are safe.
type DetectionParams struct {
	// ProximityPercent limits detection to buckets within this percent
	// of the reference price, measured as absolute quote distance.
	ProximityPercent float64
	// DepletionThreshold is the fraction of peak quantity at or below
	// which a level counts as depleted.
	DepletionThreshold float64
	// RefillThreshold is the fraction of peak quantity at or above
	// which a depleted level counts as refilled.
	RefillThreshold float64
	// MinRefillCount is the refill transitions needed for the refill tag.
	MinRefillCount int
	// FastRefillSeconds is the maximum mean depletion-to-refill latency
	// for the refill tag.
	FastRefillSeconds float64
	// ConsistencyThreshold is the minimum volume-consistency score
	// (1 - stdev/mean, clamped to [0,1]) for the consistent tag.
	ConsistencyThreshold float64
	// PersistenceSeconds is the minimum lifetime of non-zero quantity
	// for the persistent tag.
	PersistenceSeconds float64
}

// DefaultDetectionParams returns the production detection thresholds
func DefaultDetectionParams() DetectionParams {
	return DetectionParams{
		ProximityPercent:     1.0,
		DepletionThreshold:   0.3,
		RefillThreshold:      0.8,
		MinRefillCount:       2,
		FastRefillSeconds:    5.0,
		ConsistencyThreshold: 0.9,
		PersistenceSeconds:   120.0,
	}
}

func (p DetectionParams) normalized() DetectionParams {
	def := DefaultDetectionParams()
	if p.ProximityPercent <= 0 {
		p.ProximityPercent = def.ProximityPercent
	}
	if p.DepletionThreshold <= 0 {
		p.DepletionThreshold = def.DepletionThreshold
	}
	if p.RefillThreshold <= 0 {
		p.RefillThreshold = def.RefillThreshold
	}
	if p.MinRefillCount < 1 {
		p.MinRefillCount = def.MinRefillCount
	}
	if p.FastRefillSeconds <= 0 {
		p.FastRefillSeconds = def.FastRefillSeconds
	}
	if p.ConsistencyThreshold <= 0 {
		p.ConsistencyThreshold = def.ConsistencyThreshold
	}
	if p.PersistenceSeconds <= 0 {
		p.PersistenceSeconds = def.PersistenceSeconds
	}
	return p
}

// IcebergPattern is one detected hidden-order pattern at a price bucket
type IcebergPattern struct {
	Symbol string
	Side   Side
	Price  decimal.Decimal

	RefillCount        int
	AvgRefillLatency   float64 // seconds between depletion and refill
	VolumeConsistency  float64 // 0-1, higher is steadier sizing
	PersistenceSeconds float64

	PatternType string
	Confidence  float64
	DetectedAt  time.Time
}

// DetectIcebergs returns all iceberg patterns for buckets within the
// proximity band around refPrice, strongest first. An empty book or a
// non-positive reference price yields no patterns.
func (t *Tracker) DetectIcebergs(symbol string, refPrice decimal.Decimal, params DetectionParams) []IcebergPattern {
	if refPrice.Sign() <= 0 {
		return nil
	}
	p := params.normalized()
	limit := refPrice.Mul(decimal.NewFromFloat(p.ProximityPercent)).Div(oneHundred)
	now := time.Now()

	t.mu.RLock()
	bk, ok := t.books[symbol]
	if !ok {
		t.mu.RUnlock()
		return nil
	}

	var patterns []IcebergPattern
	scan := func(levels map[string]*level) {
		for _, lv := range levels {
			if lv.price.Sub(refPrice).Abs().GreaterThan(limit) {
				continue
			}
			if pat, ok := analyzeLevel(symbol, lv, p, now); ok {
				patterns = append(patterns, pat)
			}
		}
	}
	scan(bk.bids)
	scan(bk.asks)
	t.mu.RUnlock()

	if len(patterns) > 0 {
		atomic.AddInt64(&t.icebergsDetected, int64(len(patterns)))
	}

	sort.Slice(patterns, func(i, j int) bool {
		if patterns[i].Confidence != patterns[j].Confidence {
			return patterns[i].Confidence > patterns[j].Confidence
		}
		if patterns[i].Side != patterns[j].Side {
			return patterns[i].Side == SideBid
		}
		return patterns[i].Price.LessThan(patterns[j].Price)
	})
	return patterns
}

// analyzeLevel computes the three pattern scores for one bucket and decides
// whether it qualifies. Confidence is the max of the normalized scores;
// the tag follows refill > consistent > persistent precedence.
func analyzeLevel(symbol string, lv *level, p DetectionParams, now time.Time) (IcebergPattern, bool) {
	refills, meanLatency := countRefills(lv.samples, p)
	consistency, nonZero := volumeConsistency(lv.samples)
	persistence := persistenceSpan(lv.samples)

	refillOK := refills >= p.MinRefillCount && meanLatency <= p.FastRefillSeconds
	consistentOK := consistency >= p.ConsistencyThreshold && nonZero >= 3
	persistentOK := persistence >= p.PersistenceSeconds

	if !refillOK && !consistentOK && !persistentOK {
		return IcebergPattern{}, false
	}

	tag := PatternPersistent
	switch {
	case refillOK:
		tag = PatternRefill
	case consistentOK:
		tag = PatternConsistent
	}

	confidence := math.Min(1, float64(refills)/float64(p.MinRefillCount))
	confidence = math.Max(confidence, consistency)
	confidence = math.Max(confidence, math.Min(1, persistence/p.PersistenceSeconds))

	return IcebergPattern{
		Symbol:             symbol,
		Side:               lv.side,
		Price:              lv.price,
		RefillCount:        refills,
		AvgRefillLatency:   meanLatency,
		VolumeConsistency:  consistency,
		PersistenceSeconds: persistence,
		PatternType:        tag,
		Confidence:         confidence,
		DetectedAt:         now,
	}, true
}

// countRefills counts transitions from a depleted sample (qty at or below
// depletion-threshold of peak) back to a refilled sample (qty at or above
// refill-threshold of peak), and the mean latency between the two.
func countRefills(samples []Sample, p DetectionParams) (int, float64) {
	peak := decimal.Zero
	for _, s := range samples {
		if s.Quantity.GreaterThan(peak) {
			peak = s.Quantity
		}
	}
	if peak.Sign() <= 0 {
		return 0, 0
	}

	depletionLevel := peak.Mul(decimal.NewFromFloat(p.DepletionThreshold))
	refillLevel := peak.Mul(decimal.NewFromFloat(p.RefillThreshold))

	var (
		depleted   bool
		depletedAt time.Time
		refills    int
		latencySum float64
	)
	for _, s := range samples {
		if !depleted {
			if s.Quantity.LessThanOrEqual(depletionLevel) {
				depleted = true
				depletedAt = s.Timestamp
			}
			continue
		}
		if s.Quantity.GreaterThanOrEqual(refillLevel) {
			refills++
			latencySum += s.Timestamp.Sub(depletedAt).Seconds()
			depleted = false
		}
	}

	if refills == 0 {
		return 0, 0
	}
	return refills, latencySum / float64(refills)
}

// volumeConsistency returns 1 - clamp(stdev/mean, 0, 1) over non-zero
// samples, and the non-zero sample count. Fewer than 3 samples score 0.
func volumeConsistency(samples []Sample) (float64, int) {
	var vals []float64
	for _, s := range samples {
		if s.Quantity.Sign() > 0 {
			vals = append(vals, s.Quantity.InexactFloat64())
		}
	}
	if len(vals) < 3 {
		return 0, len(vals)
	}

	var sum float64
	for _, v := range vals {
		sum += v
	}
	mean := sum / float64(len(vals))
	if mean <= 0 {
		return 0, len(vals)
	}

	var variance float64
	for _, v := range vals {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(vals))

	ratio := math.Sqrt(variance) / mean
	if ratio > 1 {
		ratio = 1
	}
	return 1 - ratio, len(vals)
}

// persistenceSpan is the seconds between the first and last sample with
// positive quantity
func persistenceSpan(samples []Sample) float64 {
	var (
		first, last time.Time
		seen        bool
	)
	for _, s := range samples {
		if s.Quantity.Sign() <= 0 {
			continue
		}
		if !seen {
			first = s.Timestamp
			seen = true
		}
		last = s.Timestamp
	}
	if !seen {
		return 0
	}
	return last.Sub(first).Seconds()
}

var oneHundred = decimal.NewFromInt(100)
