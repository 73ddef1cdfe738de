package publish

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"realtime_strategies/internal/config"
	"realtime_strategies/internal/mock"
	"realtime_strategies/internal/signal"
	apperrors "realtime_strategies/pkg/errors"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSignal(strategy string) *signal.Signal {
	return signal.New("BTCUSDT", signal.TypeBuy, signal.ActionOpenLong, 0.9,
		decimal.NewFromInt(50000), strategy, map[string]interface{}{"imbalance": 1.5})
}

func startPublisher(t *testing.T, bus *mock.Bus, mutate func(*config.PublishConfig)) (*Publisher, func()) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Publish.Workers = 1
	cfg.Publish.RecoveryTimeoutSec = 1
	if mutate != nil {
		mutate(&cfg.Publish)
	}

	p := New(cfg.Bus, cfg.Publish, bus, mock.NewLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	stop := func() {
		cancel()
		require.NoError(t, <-done)
	}
	return p, stop
}

func TestPublisherDeliversWirePayload(t *testing.T) {
	bus := mock.NewBus()
	p, stop := startPublisher(t, bus, nil)
	defer stop()

	require.NoError(t, p.Enqueue(context.Background(), testSignal("orderbook_skew")))
	require.Eventually(t, func() bool {
		return bus.PublishedCount("signals.trading") == 1
	}, time.Second, 5*time.Millisecond)

	var wire map[string]interface{}
	require.NoError(t, json.Unmarshal(bus.Published("signals.trading")[0], &wire))
	assert.Equal(t, "orderbook_skew_BTCUSDT", wire["strategy_id"])
	assert.Equal(t, "buy", wire["signal_type"])
	assert.Equal(t, "buy", wire["action"])
	assert.Equal(t, "extreme", wire["strength"])
	assert.Equal(t, "realtime-strategies", wire["source"])

	stats := p.PublishStats()
	assert.Equal(t, uint64(1), stats.Enqueued)
	assert.Equal(t, uint64(1), stats.Published)
	assert.Equal(t, "closed", stats.BreakerState)
}

func TestPublisherBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	bus := mock.NewBus()
	p, stop := startPublisher(t, bus, func(c *config.PublishConfig) {
		c.FailureThreshold = 3
	})
	defer stop()

	busErr := errors.New("bus down")
	bus.FailNextPublishes(busErr, busErr, busErr)

	for i := 0; i < 4; i++ {
		require.NoError(t, p.Enqueue(context.Background(), testSignal("orderbook_skew")))
	}

	// Three failures trip the breaker; the fourth signal is dropped without
	// a bus attempt.
	require.Eventually(t, func() bool {
		s := p.PublishStats()
		return s.Failed == 3 && s.Dropped == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 3, bus.PublishAttempts())
	assert.Equal(t, "open", p.BreakerState())

	// After the recovery timeout a single trial goes through and closes the
	// breaker again.
	time.Sleep(1100 * time.Millisecond)
	require.NoError(t, p.Enqueue(context.Background(), testSignal("orderbook_skew")))
	require.Eventually(t, func() bool {
		return p.PublishStats().Published == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, "closed", p.BreakerState())
	assert.Equal(t, 4, bus.PublishAttempts())
}

func TestPublisherEnqueueBlocksThenTimesOut(t *testing.T) {
	bus := mock.NewBus()
	cfg := config.DefaultConfig()
	cfg.Publish.QueueSize = 1
	// Not running: nothing drains the queue.
	p := New(cfg.Bus, cfg.Publish, bus, mock.NewLogger())

	require.NoError(t, p.Enqueue(context.Background(), testSignal("orderbook_skew")))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := p.Enqueue(ctx, testSignal("orderbook_skew"))
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrQueueFull)
}

func TestPublisherDrainsQueueOnShutdown(t *testing.T) {
	bus := mock.NewBus()
	p, stop := startPublisher(t, bus, func(c *config.PublishConfig) {
		c.QueueSize = 10
	})

	for i := 0; i < 3; i++ {
		require.NoError(t, p.Enqueue(context.Background(), testSignal("trade_momentum")))
	}
	stop()

	assert.Equal(t, 3, bus.PublishedCount("signals.trading"))

	err := p.Enqueue(context.Background(), testSignal("trade_momentum"))
	assert.ErrorIs(t, err, apperrors.ErrShuttingDown)
}
