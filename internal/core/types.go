package core

import (
	"encoding/json"
	"strconv"
)

// Params holds the resolved parameter set handed to a strategy run.
// Values originate from builtin defaults, the config store, or environment
// overrides, so numeric entries may arrive as int, int32, int64, float64
// or json.Number depending on the source.
type Params map[string]interface{}

// Float returns the parameter as float64, or def when absent or not numeric
func (p Params) Float(key string, def float64) float64 {
	v, ok := p[key]
	if !ok {
		return def
	}
	if f, ok := toFloat(v); ok {
		return f
	}
	return def
}

// Int returns the parameter as int, or def when absent or not numeric
func (p Params) Int(key string, def int) int {
	v, ok := p[key]
	if !ok {
		return def
	}
	if f, ok := toFloat(v); ok {
		return int(f)
	}
	return def
}

// Bool returns the parameter as bool, or def when absent or not boolean
func (p Params) Bool(key string, def bool) bool {
	if v, ok := p[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

// String returns the parameter as string, or def when absent
func (p Params) String(key, def string) string {
	if v, ok := p[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// Strings returns the parameter as a string slice. Store drivers may hand
// back []interface{} for list values, so both shapes are accepted.
func (p Params) Strings(key string) []string {
	v, ok := p[key]
	if !ok {
		return nil
	}
	switch vv := v.(type) {
	case []string:
		return vv
	case []interface{}:
		out := make([]string, 0, len(vv))
		for _, e := range vv {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Clone returns a shallow copy safe to mutate without affecting the source
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

func toFloat(v interface{}) (float64, bool) {
	switch vv := v.(type) {
	case float64:
		return vv, true
	case float32:
		return float64(vv), true
	case int:
		return float64(vv), true
	case int32:
		return float64(vv), true
	case int64:
		return float64(vv), true
	case uint:
		return float64(vv), true
	case uint64:
		return float64(vv), true
	case json.Number:
		f, err := vv.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(vv, 64)
		return f, err == nil
	}
	return 0, false
}

// DispatchStats is a snapshot of dispatcher counters since process start
type DispatchStats struct {
	Consumed       uint64
	DecodeErrors   uint64
	StrategyErrors uint64
	SignalsEmitted uint64
}

// PublishStats is a snapshot of publisher counters since process start
type PublishStats struct {
	Enqueued     uint64
	Published    uint64
	Dropped      uint64
	Failed       uint64
	QueueDepth   int
	BreakerState string
}
