package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric names
const (
	MetricMessagesConsumedTotal   = "strategies_messages_consumed_total"
	MetricDecodeErrorsTotal       = "strategies_decode_errors_total"
	MetricStrategyExecutionsTotal = "strategies_strategy_executions_total"
	MetricStrategyLatency         = "strategies_strategy_latency_ms"
	MetricSignalsEmittedTotal     = "strategies_signals_emitted_total"
	MetricSignalsPublishedTotal   = "strategies_signals_published_total"
	MetricSignalsDroppedTotal     = "strategies_signals_dropped_total"
	MetricPublishLatency          = "strategies_publish_latency_ms"
	MetricConfigCacheHitsTotal    = "strategies_config_cache_hits_total"
	MetricConfigCacheMissesTotal  = "strategies_config_cache_misses_total"
	MetricCircuitBreakerOpen      = "strategies_circuit_breaker_open"
	MetricQueueDepth              = "strategies_queue_depth"
	MetricTrackedSymbols          = "strategies_tracked_symbols"
)

// Execution outcome attribute values for MetricStrategyExecutionsTotal
const (
	OutcomeSuccess  = "success"
	OutcomeFailure  = "failure"
	OutcomeNoSignal = "no_signal"
)

// MetricsHolder holds initialized instruments
type MetricsHolder struct {
	MessagesConsumedTotal   metric.Int64Counter
	DecodeErrorsTotal       metric.Int64Counter
	StrategyExecutionsTotal metric.Int64Counter
	StrategyLatency         metric.Float64Histogram
	SignalsEmittedTotal     metric.Int64Counter
	SignalsPublishedTotal   metric.Int64Counter
	SignalsDroppedTotal     metric.Int64Counter
	PublishLatency          metric.Float64Histogram
	ConfigCacheHitsTotal    metric.Int64Counter
	ConfigCacheMissesTotal  metric.Int64Counter
	CircuitBreakerOpen      metric.Int64ObservableGauge
	QueueDepth              metric.Int64ObservableGauge
	TrackedSymbols          metric.Int64ObservableGauge

	// State for observable gauges
	mu                sync.RWMutex
	cbOpenMap         map[string]int64
	queueDepthMap     map[string]int64
	trackedSymbolsMap map[string]int64
}

var (
	globalMetrics *MetricsHolder
	initOnce      sync.Once
)

// GetGlobalMetrics returns the singleton metrics holder
func GetGlobalMetrics() *MetricsHolder {
	initOnce.Do(func() {
		globalMetrics = &MetricsHolder{
			cbOpenMap:         make(map[string]int64),
			queueDepthMap:     make(map[string]int64),
			trackedSymbolsMap: make(map[string]int64),
		}
		// Initialization of instruments happens in InitMetrics
	})
	return globalMetrics
}

// InitMetrics initializes instruments using the meter
func (m *MetricsHolder) InitMetrics(meter metric.Meter) error {
	var err error

	m.MessagesConsumedTotal, err = meter.Int64Counter(MetricMessagesConsumedTotal, metric.WithDescription("Total bus messages consumed, labelled by stream kind"))
	if err != nil {
		return err
	}

	m.DecodeErrorsTotal, err = meter.Int64Counter(MetricDecodeErrorsTotal, metric.WithDescription("Total messages dropped because they failed to decode"))
	if err != nil {
		return err
	}

	m.StrategyExecutionsTotal, err = meter.Int64Counter(MetricStrategyExecutionsTotal, metric.WithDescription("Strategy runs, labelled by strategy and outcome"))
	if err != nil {
		return err
	}

	m.StrategyLatency, err = meter.Float64Histogram(MetricStrategyLatency, metric.WithDescription("Per-run strategy evaluation latency"), metric.WithUnit("ms"))
	if err != nil {
		return err
	}

	m.SignalsEmittedTotal, err = meter.Int64Counter(MetricSignalsEmittedTotal, metric.WithDescription("Signals produced by strategies"))
	if err != nil {
		return err
	}

	m.SignalsPublishedTotal, err = meter.Int64Counter(MetricSignalsPublishedTotal, metric.WithDescription("Signals delivered to the bus"))
	if err != nil {
		return err
	}

	m.SignalsDroppedTotal, err = meter.Int64Counter(MetricSignalsDroppedTotal, metric.WithDescription("Signals dropped, labelled by reason"))
	if err != nil {
		return err
	}

	m.PublishLatency, err = meter.Float64Histogram(MetricPublishLatency, metric.WithDescription("Latency of bus publish calls"), metric.WithUnit("ms"))
	if err != nil {
		return err
	}

	m.ConfigCacheHitsTotal, err = meter.Int64Counter(MetricConfigCacheHitsTotal, metric.WithDescription("Parameter cache hits"))
	if err != nil {
		return err
	}

	m.ConfigCacheMissesTotal, err = meter.Int64Counter(MetricConfigCacheMissesTotal, metric.WithDescription("Parameter cache misses"))
	if err != nil {
		return err
	}

	// Observables
	m.CircuitBreakerOpen, err = meter.Int64ObservableGauge(MetricCircuitBreakerOpen, metric.WithDescription("Circuit breaker open state (1=open, 0=closed)"),
		metric.WithInt64Callback(func(ctx context.Context, obs metric.Int64Observer) error {
			m.mu.RLock()
			defer m.mu.RUnlock()
			for component, val := range m.cbOpenMap {
				obs.Observe(val, metric.WithAttributes(attribute.String("component", component)))
			}
			return nil
		}))
	if err != nil {
		return err
	}

	m.QueueDepth, err = meter.Int64ObservableGauge(MetricQueueDepth, metric.WithDescription("Current depth of internal queues"),
		metric.WithInt64Callback(func(ctx context.Context, obs metric.Int64Observer) error {
			m.mu.RLock()
			defer m.mu.RUnlock()
			for queue, val := range m.queueDepthMap {
				obs.Observe(val, metric.WithAttributes(attribute.String("queue", queue)))
			}
			return nil
		}))
	if err != nil {
		return err
	}

	m.TrackedSymbols, err = meter.Int64ObservableGauge(MetricTrackedSymbols, metric.WithDescription("Symbols currently held by the order book tracker"),
		metric.WithInt64Callback(func(ctx context.Context, obs metric.Int64Observer) error {
			m.mu.RLock()
			defer m.mu.RUnlock()
			for tracker, val := range m.trackedSymbolsMap {
				obs.Observe(val, metric.WithAttributes(attribute.String("tracker", tracker)))
			}
			return nil
		}))
	if err != nil {
		return err
	}

	return nil
}

// Counter helpers. Safe to call before InitMetrics; recording is skipped
// until instruments exist, which keeps unit tests free of SDK setup.

func (m *MetricsHolder) AddMessageConsumed(ctx context.Context, kind string) {
	if m.MessagesConsumedTotal != nil {
		m.MessagesConsumedTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
	}
}

func (m *MetricsHolder) AddDecodeError(ctx context.Context) {
	if m.DecodeErrorsTotal != nil {
		m.DecodeErrorsTotal.Add(ctx, 1)
	}
}

func (m *MetricsHolder) AddStrategyExecution(ctx context.Context, strategy, outcome string) {
	if m.StrategyExecutionsTotal != nil {
		m.StrategyExecutionsTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("strategy", strategy),
			attribute.String("outcome", outcome),
		))
	}
}

func (m *MetricsHolder) RecordStrategyLatency(ctx context.Context, strategy string, ms float64) {
	if m.StrategyLatency != nil {
		m.StrategyLatency.Record(ctx, ms, metric.WithAttributes(attribute.String("strategy", strategy)))
	}
}

func (m *MetricsHolder) AddSignalEmitted(ctx context.Context, strategy string) {
	if m.SignalsEmittedTotal != nil {
		m.SignalsEmittedTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("strategy", strategy)))
	}
}

func (m *MetricsHolder) AddSignalPublished(ctx context.Context) {
	if m.SignalsPublishedTotal != nil {
		m.SignalsPublishedTotal.Add(ctx, 1)
	}
}

func (m *MetricsHolder) AddSignalDropped(ctx context.Context, reason string) {
	if m.SignalsDroppedTotal != nil {
		m.SignalsDroppedTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
	}
}

func (m *MetricsHolder) RecordPublishLatency(ctx context.Context, ms float64) {
	if m.PublishLatency != nil {
		m.PublishLatency.Record(ctx, ms)
	}
}

func (m *MetricsHolder) AddConfigCacheHit(ctx context.Context) {
	if m.ConfigCacheHitsTotal != nil {
		m.ConfigCacheHitsTotal.Add(ctx, 1)
	}
}

func (m *MetricsHolder) AddConfigCacheMiss(ctx context.Context) {
	if m.ConfigCacheMissesTotal != nil {
		m.ConfigCacheMissesTotal.Add(ctx, 1)
	}
}

// Helpers to update observable state

func (m *MetricsHolder) SetCircuitBreakerOpen(component string, open bool) {
	val := int64(0)
	if open {
		val = 1
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cbOpenMap[component] = val
}

func (m *MetricsHolder) SetQueueDepth(queue string, depth int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queueDepthMap[queue] = depth
}

func (m *MetricsHolder) SetTrackedSymbols(tracker string, count int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trackedSymbolsMap[tracker] = count
}

func (m *MetricsHolder) GetCircuitBreakerOpen() map[string]int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make(map[string]int64)
	for k, v := range m.cbOpenMap {
		res[k] = v
	}
	return res
}

func (m *MetricsHolder) GetQueueDepth() map[string]int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make(map[string]int64)
	for k, v := range m.queueDepthMap {
		res[k] = v
	}
	return res
}

func (m *MetricsHolder) GetTrackedSymbols() map[string]int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make(map[string]int64)
	for k, v := range m.trackedSymbolsMap {
		res[k] = v
	}
	return res
}
