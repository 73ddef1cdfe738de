// Package strategy implements the signal-generating strategies and the
// registry the dispatcher iterates. Each strategy keeps its own rolling
// state partitioned by symbol and receives a resolved parameter snapshot
// per event.
package strategy

import (
	"math"
	"sync"
	"time"

	"realtime_strategies/internal/market"
)

// emitGate enforces a minimum wall-clock interval between signals sharing
// a suppression key. Keys are strategy-specific tuples flattened to strings.
type emitGate struct {
	mu   sync.Mutex
	last map[string]time.Time
}

func newEmitGate() *emitGate {
	return &emitGate{last: make(map[string]time.Time)}
}

// allow reports whether a signal keyed by key may be emitted at now and
// records the emission when it may
func (g *emitGate) allow(key string, minInterval time.Duration, now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if prev, ok := g.last[key]; ok && now.Sub(prev) < minInterval {
		return false
	}
	g.last[key] = now
	return true
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}

// sumTopQuantity sums the quantities of the first n levels as float64
func sumTopQuantity(levels []market.PriceLevel, n int) float64 {
	if n > len(levels) {
		n = len(levels)
	}
	var sum float64
	for _, lv := range levels[:n] {
		sum += lv.Quantity.InexactFloat64()
	}
	return sum
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}
