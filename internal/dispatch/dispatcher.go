// Package dispatch consumes market data from the bus and fans each event
// out to the enabled strategies.
package dispatch

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"realtime_strategies/internal/config"
	"realtime_strategies/internal/core"
	"realtime_strategies/internal/market"
	"realtime_strategies/internal/orderbook"
	"realtime_strategies/internal/strategy"
	"realtime_strategies/pkg/concurrency"
	apperrors "realtime_strategies/pkg/errors"
	"realtime_strategies/pkg/telemetry"
)

// State is the dispatcher lifecycle state
type State string

const (
	StateInitializing State = "initializing"
	StateConnecting   State = "connecting"
	StateSubscribed   State = "subscribed"
	StateRunning      State = "running"
	StateDraining     State = "draining"
	StateStopped      State = "stopped"
)

// statsWindow bounds the rolling processing-time sample set
const statsWindow = 1000

// Dispatcher subscribes to the market data subject in a queue group,
// decodes payloads, keeps the order book tracker current and runs every
// enabled strategy sequentially per message. Strategy failures are isolated:
// one broken strategy never stops the others or the message flow.
type Dispatcher struct {
	cfg      config.BusConfig
	dcfg     config.DispatchConfig
	bus      core.IBus
	registry *strategy.Registry
	resolver core.IParamResolver
	tracker  *orderbook.Tracker
	analyzer *orderbook.DepthAnalyzer
	sink     core.ISignalSink
	logger   core.ILogger
	metrics  *telemetry.MetricsHolder
	tracer   trace.Tracer
	pool     *concurrency.WorkerPool

	mu    sync.Mutex
	state State
	sub   core.ISubscription

	consumed       atomic.Uint64
	decodeErrors   atomic.Uint64
	strategyErrors atomic.Uint64
	signalsEmitted atomic.Uint64
	signalsDropped atomic.Uint64

	statsMu     sync.Mutex
	procSamples []float64 // ms, ring of statsWindow
	procNext    int
	procMax     float64
}

// New creates a dispatcher over the given bus and strategy registry
func New(cfg config.BusConfig, dcfg config.DispatchConfig, bus core.IBus, registry *strategy.Registry,
	resolver core.IParamResolver, tracker *orderbook.Tracker, sink core.ISignalSink, logger core.ILogger) *Dispatcher {
	d := &Dispatcher{
		cfg:      cfg,
		dcfg:     dcfg,
		bus:      bus,
		registry: registry,
		resolver: resolver,
		tracker:  tracker,
		sink:     sink,
		logger:   logger.WithField("component", "dispatcher"),
		metrics:  telemetry.GetGlobalMetrics(),
		tracer:   telemetry.GetTracer("dispatcher"),
		state:    StateInitializing,
	}
	d.pool = concurrency.NewWorkerPool(concurrency.PoolConfig{
		Name:        "dispatch",
		MaxWorkers:  dcfg.Workers,
		MaxCapacity: dcfg.Workers * 64,
	}, logger)
	return d
}

// SetAnalyzer attaches a depth analyzer fed on every depth update. The
// admin market endpoints read from it; dispatch works without one.
func (d *Dispatcher) SetAnalyzer(a *orderbook.DepthAnalyzer) {
	d.analyzer = a
}

// Run subscribes and processes messages until the context is cancelled,
// then drains in-flight work
func (d *Dispatcher) Run(ctx context.Context) error {
	d.setState(StateConnecting)
	if !d.bus.IsConnected() {
		d.setState(StateStopped)
		return fmt.Errorf("%w: bus not connected", apperrors.ErrNotConnected)
	}

	sub, err := d.bus.QueueSubscribe(d.cfg.ConsumerSubject, d.cfg.QueueGroup, func(subject string, data []byte) {
		payload := data
		d.pool.Submit(func() {
			d.process(ctx, subject, payload)
		})
	})
	if err != nil {
		d.setState(StateStopped)
		return fmt.Errorf("subscribe: %w", err)
	}
	d.mu.Lock()
	d.sub = sub
	d.mu.Unlock()
	d.setState(StateSubscribed)

	d.logger.Info("Dispatcher running",
		"subject", d.cfg.ConsumerSubject, "queue", d.cfg.QueueGroup, "workers", d.dcfg.Workers)
	d.setState(StateRunning)

	<-ctx.Done()
	return d.shutdown()
}

func (d *Dispatcher) shutdown() error {
	d.setState(StateDraining)
	d.mu.Lock()
	sub := d.sub
	d.mu.Unlock()
	if sub != nil {
		if err := sub.Drain(); err != nil {
			d.logger.Warn("Subscription drain failed", "error", err)
		}
	}
	d.pool.Stop()
	d.setState(StateStopped)
	d.logger.Info("Dispatcher stopped", "consumed", d.consumed.Load())
	return nil
}

// process handles one bus message end to end
func (d *Dispatcher) process(ctx context.Context, subject string, data []byte) {
	start := time.Now()
	ctx, span := d.tracer.Start(ctx, "dispatch.process")
	defer span.End()

	d.consumed.Add(1)

	evt, err := market.DecodeMessage(data)
	if err != nil {
		d.decodeErrors.Add(1)
		d.metrics.AddDecodeError(ctx)
		d.logger.Debug("Dropping undecodable message", "subject", subject, "error", err)
		return
	}
	kind := evt.Kind()
	d.metrics.AddMessageConsumed(ctx, kind.String())
	span.SetAttributes(
		attribute.String("symbol", evt.GetSymbol()),
		attribute.String("kind", kind.String()),
	)

	if depth, ok := evt.(*market.DepthUpdate); ok {
		d.tracker.Update(depth.Symbol, depth.Bids, depth.Asks, depth.EventTime)
		d.metrics.SetTrackedSymbols("orderbook", int64(d.tracker.GetStats().Symbols))
		if d.analyzer != nil {
			d.analyzer.Analyze(depth.Symbol, depth.Bids, depth.Asks, depth.EventTime)
		}
	}

	for _, strat := range d.registry.EnabledFor(kind) {
		d.runStrategy(ctx, strat, evt)
	}

	d.recordProcessing(time.Since(start))
}

// runStrategy executes one strategy for one event with error isolation
func (d *Dispatcher) runStrategy(ctx context.Context, strat core.IStrategy, evt market.Event) {
	id := strat.ID()
	params, err := d.resolver.Resolve(ctx, id, evt.GetSymbol())
	if err != nil {
		// Resolution falls back to builtin defaults internally, so an error
		// here means even those are unavailable for this id.
		d.strategyErrors.Add(1)
		d.metrics.AddStrategyExecution(ctx, id, telemetry.OutcomeFailure)
		d.logger.Warn("Parameter resolution failed", "strategy", id, "error", err)
		return
	}

	start := time.Now()
	sigs, err := strat.OnEvent(ctx, evt, params)
	d.metrics.RecordStrategyLatency(ctx, id, float64(time.Since(start).Microseconds())/1000)

	if err != nil {
		d.strategyErrors.Add(1)
		d.metrics.AddStrategyExecution(ctx, id, telemetry.OutcomeFailure)
		d.logger.Error("Strategy failed", "strategy", id, "symbol", evt.GetSymbol(), "error", err)
		return
	}
	if len(sigs) == 0 {
		d.metrics.AddStrategyExecution(ctx, id, telemetry.OutcomeNoSignal)
		return
	}
	d.metrics.AddStrategyExecution(ctx, id, telemetry.OutcomeSuccess)

	deadline := time.Duration(d.dcfg.EnqueueDeadlineMS) * time.Millisecond
	for _, sig := range sigs {
		d.signalsEmitted.Add(1)
		d.metrics.AddSignalEmitted(ctx, id)

		enqCtx, cancel := context.WithTimeout(ctx, deadline)
		err := d.sink.Enqueue(enqCtx, sig)
		cancel()
		if err != nil {
			d.signalsDropped.Add(1)
			d.metrics.AddSignalDropped(ctx, "enqueue_deadline")
			d.logger.Warn("Signal dropped at enqueue",
				"strategy", id, "symbol", sig.Symbol, "error", err)
		}
	}
}

func (d *Dispatcher) recordProcessing(elapsed time.Duration) {
	ms := float64(elapsed.Microseconds()) / 1000
	d.statsMu.Lock()
	defer d.statsMu.Unlock()
	if len(d.procSamples) < statsWindow {
		d.procSamples = append(d.procSamples, ms)
	} else {
		d.procSamples[d.procNext] = ms
		d.procNext = (d.procNext + 1) % statsWindow
	}
	if ms > d.procMax {
		d.procMax = ms
	}
}

func (d *Dispatcher) setState(s State) {
	d.mu.Lock()
	prev := d.state
	d.state = s
	d.mu.Unlock()
	if prev != s {
		d.logger.Info("Dispatcher state change", "from", string(prev), "to", string(s))
	}
}

// GetState returns the current lifecycle state
func (d *Dispatcher) GetState() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// DispatchStats implements core.IDispatcherStats
func (d *Dispatcher) DispatchStats() core.DispatchStats {
	return core.DispatchStats{
		Consumed:       d.consumed.Load(),
		DecodeErrors:   d.decodeErrors.Load(),
		StrategyErrors: d.strategyErrors.Load(),
		SignalsEmitted: d.signalsEmitted.Load(),
	}
}

// Metrics returns a snapshot for the heartbeat and admin surfaces
func (d *Dispatcher) Metrics() map[string]interface{} {
	avg, max := d.processingStats()
	stats := d.DispatchStats()
	return map[string]interface{}{
		"state":              string(d.GetState()),
		"consumed":           stats.Consumed,
		"decode_errors":      stats.DecodeErrors,
		"strategy_errors":    stats.StrategyErrors,
		"signals_emitted":    stats.SignalsEmitted,
		"signals_dropped":    d.signalsDropped.Load(),
		"avg_processing_ms":  avg,
		"max_processing_ms":  max,
		"enabled_strategies": d.registry.IDs(),
	}
}

func (d *Dispatcher) processingStats() (avg, max float64) {
	d.statsMu.Lock()
	defer d.statsMu.Unlock()
	if len(d.procSamples) == 0 {
		return 0, 0
	}
	var sum float64
	for _, s := range d.procSamples {
		sum += s
	}
	return sum / float64(len(d.procSamples)), d.procMax
}

// HealthStatus reports whether the dispatcher is consuming
func (d *Dispatcher) HealthStatus() error {
	switch d.GetState() {
	case StateRunning, StateSubscribed:
		return nil
	case StateDraining, StateStopped:
		return fmt.Errorf("%w: dispatcher %s", apperrors.ErrShuttingDown, d.GetState())
	}
	return fmt.Errorf("dispatcher not running: %s", d.GetState())
}
