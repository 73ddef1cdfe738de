// Package publish delivers signals to the egress subject behind a bounded
// queue and a circuit breaker.
package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/circuitbreaker"

	"realtime_strategies/internal/config"
	"realtime_strategies/internal/core"
	"realtime_strategies/internal/signal"
	apperrors "realtime_strategies/pkg/errors"
	"realtime_strategies/pkg/telemetry"
)

// statsWindow bounds the rolling publish-latency sample set
const statsWindow = 1000

// Publisher drains a bounded queue of signals onto the bus. Producers block
// up to their context deadline when the queue is full. A breaker trips after
// the configured number of consecutive publish failures; while open, signals
// are dropped and counted instead of hammering the bus, and a single trial
// is allowed once the recovery timeout elapses.
type Publisher struct {
	subject string
	cfg     config.PublishConfig
	bus     core.IBus
	adapter *signal.Adapter
	logger  core.ILogger
	metrics *telemetry.MetricsHolder

	breaker  circuitbreaker.CircuitBreaker[any]
	executor failsafe.Executor[any]

	queue   chan *signal.Signal
	stopped chan struct{}

	tap       func(payload []byte)
	onBreaker func(state string)

	enqueued  atomic.Uint64
	published atomic.Uint64
	dropped   atomic.Uint64
	failed    atomic.Uint64

	statsMu    sync.Mutex
	latSamples []float64 // ms, ring of statsWindow
	latNext    int
	latMax     float64
}

// New creates a publisher for the given egress subject
func New(busCfg config.BusConfig, cfg config.PublishConfig, bus core.IBus, logger core.ILogger) *Publisher {
	log := logger.WithField("component", "publisher")
	metrics := telemetry.GetGlobalMetrics()

	p := &Publisher{
		subject: busCfg.PublisherSubject,
		cfg:     cfg,
		bus:     bus,
		adapter: signal.NewAdapter(),
		logger:  log,
		metrics: metrics,
		queue:   make(chan *signal.Signal, cfg.QueueSize),
		stopped: make(chan struct{}),
	}

	p.breaker = circuitbreaker.NewBuilder[any]().
		WithFailureThreshold(uint(cfg.FailureThreshold)).
		WithSuccessThreshold(1). // one half-open trial decides
		WithDelay(time.Duration(cfg.RecoveryTimeoutSec) * time.Second).
		OnOpen(func(e circuitbreaker.StateChangedEvent) {
			log.Warn("Circuit breaker opened", "from", e.OldState.String())
			metrics.SetCircuitBreakerOpen("publisher", true)
			p.notifyBreaker("open")
		}).
		OnHalfOpen(func(e circuitbreaker.StateChangedEvent) {
			log.Info("Circuit breaker half-open, allowing trial publish")
			p.notifyBreaker("half_open")
		}).
		OnClose(func(e circuitbreaker.StateChangedEvent) {
			log.Info("Circuit breaker closed", "from", e.OldState.String())
			metrics.SetCircuitBreakerOpen("publisher", false)
			p.notifyBreaker("closed")
		}).
		Build()
	p.executor = failsafe.With[any](p.breaker)
	return p
}

// SetTap attaches a consumer that receives a copy of every published wire
// payload. Set before Run; the live tap uses it to mirror egress.
func (p *Publisher) SetTap(tap func(payload []byte)) {
	p.tap = tap
}

// SetBreakerListener attaches a callback invoked on every breaker state
// change. Set before Run; alerting hooks in here.
func (p *Publisher) SetBreakerListener(fn func(state string)) {
	p.onBreaker = fn
}

func (p *Publisher) notifyBreaker(state string) {
	if p.onBreaker != nil {
		p.onBreaker(state)
	}
}

// Enqueue implements core.ISignalSink. It blocks while the queue is full
// until the context deadline, then reports the signal as undeliverable.
func (p *Publisher) Enqueue(ctx context.Context, sig *signal.Signal) error {
	select {
	case <-p.stopped:
		return fmt.Errorf("%w: publisher stopped", apperrors.ErrShuttingDown)
	default:
	}

	select {
	case p.queue <- sig:
		p.enqueued.Add(1)
		p.metrics.SetQueueDepth("publish", int64(len(p.queue)))
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", apperrors.ErrQueueFull, ctx.Err())
	case <-p.stopped:
		return fmt.Errorf("%w: publisher stopped", apperrors.ErrShuttingDown)
	}
}

// Run drains the queue with the configured number of workers until the
// context is cancelled, then finishes whatever is already queued
func (p *Publisher) Run(ctx context.Context) error {
	p.logger.Info("Publisher running",
		"subject", p.subject, "workers", p.cfg.Workers, "queue_size", p.cfg.QueueSize)

	var wg sync.WaitGroup
	for i := 0; i < p.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.worker(ctx)
		}()
	}
	wg.Wait()

	close(p.stopped)
	p.logger.Info("Publisher stopped",
		"published", p.published.Load(), "dropped", p.dropped.Load(), "failed", p.failed.Load())
	return nil
}

func (p *Publisher) worker(ctx context.Context) {
	for {
		select {
		case sig := <-p.queue:
			p.deliver(ctx, sig)
		case <-ctx.Done():
			// Drain what is already queued, then exit.
			for {
				select {
				case sig := <-p.queue:
					p.deliver(context.Background(), sig)
				default:
					return
				}
			}
		}
	}
}

// deliver transforms one signal to the wire dictionary and publishes it
// through the breaker
func (p *Publisher) deliver(ctx context.Context, sig *signal.Signal) {
	p.metrics.SetQueueDepth("publish", int64(len(p.queue)))

	payload, err := json.Marshal(p.adapter.Transform(sig))
	if err != nil {
		p.failed.Add(1)
		p.logger.Error("Signal marshal failed", "strategy", sig.StrategyName, "error", err)
		return
	}

	start := time.Now()
	err = p.executor.Run(func() error {
		return p.bus.Publish(p.subject, payload)
	})

	switch {
	case errors.Is(err, circuitbreaker.ErrOpen):
		p.dropped.Add(1)
		p.metrics.AddSignalDropped(ctx, "breaker_open")
		p.logger.Warn("Signal dropped, circuit breaker open",
			"strategy", sig.StrategyName, "symbol", sig.Symbol)
	case err != nil:
		p.failed.Add(1)
		p.logger.Error("Publish failed",
			"strategy", sig.StrategyName, "symbol", sig.Symbol, "error", err)
	default:
		elapsed := float64(time.Since(start).Microseconds()) / 1000
		p.published.Add(1)
		if p.tap != nil {
			p.tap(payload)
		}
		p.metrics.AddSignalPublished(ctx)
		p.metrics.RecordPublishLatency(ctx, elapsed)
		p.recordLatency(elapsed)
		p.logger.Debug("Signal published",
			"strategy", sig.StrategyName, "symbol", sig.Symbol, "type", string(sig.Type))
	}
}

func (p *Publisher) recordLatency(ms float64) {
	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	if len(p.latSamples) < statsWindow {
		p.latSamples = append(p.latSamples, ms)
	} else {
		p.latSamples[p.latNext] = ms
		p.latNext = (p.latNext + 1) % statsWindow
	}
	if ms > p.latMax {
		p.latMax = ms
	}
}

// BreakerState returns the current breaker state as a lowercase word
func (p *Publisher) BreakerState() string {
	switch p.breaker.State() {
	case circuitbreaker.OpenState:
		return "open"
	case circuitbreaker.HalfOpenState:
		return "half_open"
	default:
		return "closed"
	}
}

// PublishStats implements core.IPublisherStats
func (p *Publisher) PublishStats() core.PublishStats {
	return core.PublishStats{
		Enqueued:     p.enqueued.Load(),
		Published:    p.published.Load(),
		Dropped:      p.dropped.Load(),
		Failed:       p.failed.Load(),
		QueueDepth:   len(p.queue),
		BreakerState: p.BreakerState(),
	}
}

// Metrics returns a snapshot for the heartbeat and admin surfaces
func (p *Publisher) Metrics() map[string]interface{} {
	avg, max := p.latencyStats()
	stats := p.PublishStats()
	return map[string]interface{}{
		"enqueued":       stats.Enqueued,
		"published":      stats.Published,
		"dropped":        stats.Dropped,
		"failed":         stats.Failed,
		"queue_depth":    stats.QueueDepth,
		"breaker_state":  stats.BreakerState,
		"avg_publish_ms": avg,
		"max_publish_ms": max,
	}
}

func (p *Publisher) latencyStats() (avg, max float64) {
	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	if len(p.latSamples) == 0 {
		return 0, 0
	}
	var sum float64
	for _, s := range p.latSamples {
		sum += s
	}
	return sum / float64(len(p.latSamples)), p.latMax
}

// HealthStatus reports whether the publisher is accepting and delivering
func (p *Publisher) HealthStatus() error {
	select {
	case <-p.stopped:
		return fmt.Errorf("%w: publisher stopped", apperrors.ErrShuttingDown)
	default:
	}
	if !p.bus.IsConnected() {
		return fmt.Errorf("%w: bus disconnected", apperrors.ErrNotConnected)
	}
	return nil
}
