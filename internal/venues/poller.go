package venues

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"realtime_strategies/internal/core"
	"realtime_strategies/internal/strategy"
)

// PollerConfig bounds the outbound polling loop
type PollerConfig struct {
	Symbols           []string
	Interval          time.Duration
	RequestsPerSecond float64
}

// Poller periodically fetches comparison prices from external venues into
// the shared quote cache. One poller drives all fetchers; a rate limiter
// paces requests so a long symbol list cannot burst against venue APIs.
type Poller struct {
	cfg      PollerConfig
	fetchers []Fetcher
	cache    *strategy.QuoteCache
	limiter  *rate.Limiter
	logger   core.ILogger

	fetches  atomic.Uint64
	failures atomic.Uint64
}

// NewPoller creates a poller feeding the given quote cache
func NewPoller(cfg PollerConfig, cache *strategy.QuoteCache, fetchers []Fetcher, logger core.ILogger) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Second
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 2
	}
	return &Poller{
		cfg:      cfg,
		fetchers: fetchers,
		cache:    cache,
		limiter:  rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		logger:   logger.WithField("component", "venue_poller"),
	}
}

// Run polls until the context is cancelled
func (p *Poller) Run(ctx context.Context) error {
	if len(p.fetchers) == 0 || len(p.cfg.Symbols) == 0 {
		<-ctx.Done()
		return nil
	}

	p.logger.Info("Venue poller running",
		"venues", len(p.fetchers), "symbols", p.cfg.Symbols, "interval", p.cfg.Interval.String())

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	p.pollAll(ctx)
	for {
		select {
		case <-ticker.C:
			p.pollAll(ctx)
		case <-ctx.Done():
			p.logger.Info("Venue poller stopped",
				"fetches", p.fetches.Load(), "failures", p.failures.Load())
			return nil
		}
	}
}

func (p *Poller) pollAll(ctx context.Context) {
	for _, fetcher := range p.fetchers {
		for _, symbol := range p.cfg.Symbols {
			if err := p.limiter.Wait(ctx); err != nil {
				return
			}
			p.pollOne(ctx, fetcher, symbol)
		}
	}
}

func (p *Poller) pollOne(ctx context.Context, fetcher Fetcher, symbol string) {
	p.fetches.Add(1)
	price, err := fetcher.FetchPrice(ctx, symbol)
	if err != nil {
		p.failures.Add(1)
		p.logger.Debug("Venue price fetch failed",
			"venue", fetcher.Venue(), "symbol", symbol, "error", err)
		return
	}
	p.cache.Set(fetcher.Venue(), symbol, price, time.Now())
}

// Metrics returns a snapshot for the heartbeat detail report
func (p *Poller) Metrics() map[string]interface{} {
	return map[string]interface{}{
		"fetches":  p.fetches.Load(),
		"failures": p.failures.Load(),
		"venues":   len(p.fetchers),
		"symbols":  len(p.cfg.Symbols),
	}
}
