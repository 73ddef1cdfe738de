package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"realtime_strategies/internal/config"
	"realtime_strategies/internal/core"
	"realtime_strategies/internal/market"
	"realtime_strategies/internal/mock"
	"realtime_strategies/internal/orderbook"
	"realtime_strategies/internal/params"
	"realtime_strategies/internal/signal"
	"realtime_strategies/internal/strategy"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type defaultsResolver struct{}

func (defaultsResolver) Resolve(ctx context.Context, strategyID, symbol string) (core.Params, error) {
	return core.Params(params.Defaults(strategyID)), nil
}

type brokenStrategy struct{}

func (brokenStrategy) ID() string                       { return "broken" }
func (brokenStrategy) Wants(kind market.EventKind) bool { return true }
func (brokenStrategy) OnEvent(ctx context.Context, evt market.Event, p core.Params) ([]*signal.Signal, error) {
	return nil, errors.New("boom")
}

func encodeDepth(t *testing.T, symbol string, bids, asks [][2]string, ts time.Time) []byte {
	t.Helper()
	toLevels := func(raw [][2]string) []market.PriceLevel {
		out := make([]market.PriceLevel, 0, len(raw))
		for _, lv := range raw {
			out = append(out, market.PriceLevel{
				Price:    decimal.RequireFromString(lv[0]),
				Quantity: decimal.RequireFromString(lv[1]),
			})
		}
		return out
	}
	payload, err := market.EncodeMessage(&market.DepthUpdate{
		Symbol:        symbol,
		EventTime:     ts,
		FirstUpdateID: 1,
		FinalUpdateID: 2,
		Bids:          toLevels(bids),
		Asks:          toLevels(asks),
	})
	require.NoError(t, err)
	return payload
}

// skewDepth is a bid-heavy book with a wide enough spread to fire the
// order book skew strategy.
func skewDepth(t *testing.T, ts time.Time) []byte {
	return encodeDepth(t, "BTCUSDT",
		[][2]string{{"50000", "12"}},
		[][2]string{{"50075", "8"}},
		ts)
}

func startDispatcher(t *testing.T, reg *strategy.Registry, sink core.ISignalSink, mutate func(*config.Config)) (*Dispatcher, *mock.Bus, *orderbook.Tracker, func()) {
	t.Helper()
	cfg := config.DefaultConfig()
	if mutate != nil {
		mutate(cfg)
	}

	bus := mock.NewBus()
	tracker := orderbook.NewTracker(orderbook.DefaultConfig(), mock.NewLogger())
	d := New(cfg.Bus, cfg.Dispatch, bus, reg, defaultsResolver{}, tracker, sink, mock.NewLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	require.Eventually(t, func() bool {
		return d.GetState() == StateRunning
	}, time.Second, 5*time.Millisecond)

	stop := func() {
		cancel()
		require.NoError(t, <-done)
		assert.Equal(t, StateStopped, d.GetState())
	}
	return d, bus, tracker, stop
}

func TestDispatcherProcessesDepthEndToEnd(t *testing.T) {
	reg := strategy.NewRegistry()
	reg.Register(strategy.NewSkew(mock.NewLogger()), true)
	sink := mock.NewSink()

	d, bus, tracker, stop := startDispatcher(t, reg, sink, nil)
	defer stop()

	require.NoError(t, bus.Publish("binance.websocket.data", skewDepth(t, time.Now())))

	require.Eventually(t, func() bool { return sink.Count() == 1 }, time.Second, 5*time.Millisecond)
	sig := sink.Signals()[0]
	assert.Equal(t, signal.TypeBuy, sig.Type)
	assert.Equal(t, "BTCUSDT", sig.Symbol)

	stats := d.DispatchStats()
	assert.Equal(t, uint64(1), stats.Consumed)
	assert.Equal(t, uint64(1), stats.SignalsEmitted)
	assert.Zero(t, stats.DecodeErrors)
	assert.Equal(t, 1, tracker.GetStats().Symbols)
}

func TestDispatcherIsolatesStrategyFailures(t *testing.T) {
	reg := strategy.NewRegistry()
	reg.Register(brokenStrategy{}, true)
	reg.Register(strategy.NewSkew(mock.NewLogger()), true)
	sink := mock.NewSink()

	d, bus, _, stop := startDispatcher(t, reg, sink, nil)
	defer stop()

	require.NoError(t, bus.Publish("binance.websocket.data", skewDepth(t, time.Now())))

	// The broken strategy fails, the skew signal still comes through.
	require.Eventually(t, func() bool { return sink.Count() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, uint64(1), d.DispatchStats().StrategyErrors)
}

func TestDispatcherCountsDecodeErrors(t *testing.T) {
	reg := strategy.NewRegistry()
	reg.Register(strategy.NewSkew(mock.NewLogger()), true)
	sink := mock.NewSink()

	d, bus, _, stop := startDispatcher(t, reg, sink, nil)
	defer stop()

	require.NoError(t, bus.Publish("binance.websocket.data", []byte("not json")))

	require.Eventually(t, func() bool {
		return d.DispatchStats().DecodeErrors == 1
	}, time.Second, 5*time.Millisecond)
	assert.Zero(t, sink.Count())
}

func TestDispatcherDropsOnEnqueueDeadline(t *testing.T) {
	reg := strategy.NewRegistry()
	reg.Register(strategy.NewSkew(mock.NewLogger()), true)
	sink := mock.NewSink()
	sink.SetBlocking(true)

	d, bus, _, stop := startDispatcher(t, reg, sink, func(c *config.Config) {
		c.Dispatch.EnqueueDeadlineMS = 10
	})
	defer stop()

	require.NoError(t, bus.Publish("binance.websocket.data", skewDepth(t, time.Now())))

	require.Eventually(t, func() bool {
		return d.Metrics()["signals_dropped"] == uint64(1)
	}, time.Second, 5*time.Millisecond)
	assert.Zero(t, sink.Count())
}

func TestDispatcherSkipsDisabledStrategies(t *testing.T) {
	reg := strategy.NewRegistry()
	reg.Register(strategy.NewSkew(mock.NewLogger()), false)
	sink := mock.NewSink()

	d, bus, _, stop := startDispatcher(t, reg, sink, nil)
	defer stop()

	require.NoError(t, bus.Publish("binance.websocket.data", skewDepth(t, time.Now())))

	require.Eventually(t, func() bool {
		return d.DispatchStats().Consumed == 1
	}, time.Second, 5*time.Millisecond)
	assert.Zero(t, sink.Count())
}
