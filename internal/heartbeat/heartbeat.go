// Package heartbeat periodically logs pipeline throughput so a silent
// service is distinguishable from a stuck one.
package heartbeat

import (
	"context"
	"sync"
	"time"

	"realtime_strategies/internal/config"
	"realtime_strategies/internal/core"
)

// DetailSource supplies extra per-component metrics for detailed reports
type DetailSource interface {
	Metrics() map[string]interface{}
}

// Reporter logs a heartbeat every interval with message/signal deltas,
// per-second rates and running totals. It only reads snapshots; it never
// touches the pipeline.
type Reporter struct {
	cfg        config.HeartbeatConfig
	dispatcher core.IDispatcherStats
	publisher  core.IPublisherStats
	health     core.IHealthMonitor
	details    map[string]DetailSource
	logger     core.ILogger
	tap        func(report map[string]interface{})

	mu        sync.Mutex
	startedAt time.Time
	prevDisp  core.DispatchStats
	prevPub   core.PublishStats
	prevAt    time.Time
	beats     uint64
}

// New creates a heartbeat reporter
func New(cfg config.HeartbeatConfig, dispatcher core.IDispatcherStats, publisher core.IPublisherStats,
	health core.IHealthMonitor, logger core.ILogger) *Reporter {
	return &Reporter{
		cfg:        cfg,
		dispatcher: dispatcher,
		publisher:  publisher,
		health:     health,
		details:    make(map[string]DetailSource),
		logger:     logger.WithField("component", "heartbeat"),
	}
}

// SetTap attaches a consumer that receives a copy of every heartbeat
// report. Set before Run; the live tap mirrors beats to its clients.
func (r *Reporter) SetTap(tap func(report map[string]interface{})) {
	r.tap = tap
}

// AddDetailSource registers a component whose metrics appear in detailed
// reports
func (r *Reporter) AddDetailSource(name string, src DetailSource) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.details[name] = src
}

// Run emits a heartbeat every interval until the context is cancelled
func (r *Reporter) Run(ctx context.Context) error {
	if !r.cfg.Enabled {
		<-ctx.Done()
		return nil
	}

	now := time.Now()
	r.mu.Lock()
	r.startedAt = now
	r.prevAt = now
	r.prevDisp = r.dispatcher.DispatchStats()
	r.prevPub = r.publisher.PublishStats()
	r.mu.Unlock()

	interval := time.Duration(r.cfg.IntervalSeconds) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.logger.Info("Heartbeat started", "interval_seconds", r.cfg.IntervalSeconds)
	for {
		select {
		case <-ticker.C:
			r.beat(time.Now())
		case <-ctx.Done():
			r.logger.Info("Heartbeat stopped")
			return nil
		}
	}
}

func (r *Reporter) beat(now time.Time) {
	report := r.buildReport(now)

	fields := make([]interface{}, 0, len(report)*2)
	for k, v := range report {
		fields = append(fields, k, v)
	}
	r.logger.Info("Heartbeat", fields...)

	if r.tap != nil {
		r.tap(report)
	}

	if r.cfg.DetailedStats {
		r.mu.Lock()
		sources := make(map[string]DetailSource, len(r.details))
		for name, src := range r.details {
			sources[name] = src
		}
		r.mu.Unlock()

		for name, src := range sources {
			m := src.Metrics()
			detail := make([]interface{}, 0, len(m)*2)
			for k, v := range m {
				detail = append(detail, k, v)
			}
			r.logger.Info("Heartbeat detail: "+name, detail...)
		}
		if r.health != nil {
			r.logger.Info("Heartbeat health", "components", r.health.GetStatus())
		}
	}
}

// buildReport computes deltas and rates against the previous beat
func (r *Reporter) buildReport(now time.Time) map[string]interface{} {
	disp := r.dispatcher.DispatchStats()
	pub := r.publisher.PublishStats()

	r.mu.Lock()
	elapsed := now.Sub(r.prevAt).Seconds()
	uptime := now.Sub(r.startedAt).Seconds()
	prevDisp, prevPub := r.prevDisp, r.prevPub
	r.prevDisp, r.prevPub = disp, pub
	r.prevAt = now
	r.beats++
	beats := r.beats
	r.mu.Unlock()

	consumedDelta := disp.Consumed - prevDisp.Consumed
	emittedDelta := disp.SignalsEmitted - prevDisp.SignalsEmitted
	publishedDelta := pub.Published - prevPub.Published

	rate := func(delta uint64) float64 {
		if elapsed <= 0 {
			return 0
		}
		return float64(delta) / elapsed
	}

	return map[string]interface{}{
		"beat":                beats,
		"uptime_seconds":      uptime,
		"consumed_delta":      consumedDelta,
		"consumed_per_sec":    rate(consumedDelta),
		"signals_delta":       emittedDelta,
		"signals_per_sec":     rate(emittedDelta),
		"published_delta":     publishedDelta,
		"published_per_sec":   rate(publishedDelta),
		"consumed_total":      disp.Consumed,
		"decode_errors_total": disp.DecodeErrors,
		"strategy_errs_total": disp.StrategyErrors,
		"signals_total":       disp.SignalsEmitted,
		"published_total":     pub.Published,
		"dropped_total":       pub.Dropped,
		"failed_total":        pub.Failed,
		"publish_queue_depth": pub.QueueDepth,
		"publish_breaker":     pub.BreakerState,
	}
}
