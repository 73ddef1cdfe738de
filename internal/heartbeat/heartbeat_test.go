package heartbeat

import (
	"testing"
	"time"

	"realtime_strategies/internal/config"
	"realtime_strategies/internal/core"
	"realtime_strategies/internal/mock"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubStats struct {
	disp core.DispatchStats
	pub  core.PublishStats
}

func (s *stubStats) DispatchStats() core.DispatchStats { return s.disp }
func (s *stubStats) PublishStats() core.PublishStats   { return s.pub }

func TestHeartbeatReportsDeltasAndRates(t *testing.T) {
	stats := &stubStats{
		disp: core.DispatchStats{Consumed: 100, SignalsEmitted: 10},
		pub:  core.PublishStats{Published: 8, BreakerState: "closed"},
	}
	r := New(config.HeartbeatConfig{Enabled: true, IntervalSeconds: 60}, stats, stats, nil, mock.NewLogger())

	start := time.Now()
	r.startedAt = start
	r.prevAt = start
	r.prevDisp = core.DispatchStats{Consumed: 40, SignalsEmitted: 4}
	r.prevPub = core.PublishStats{Published: 2}

	report := r.buildReport(start.Add(time.Minute))

	assert.Equal(t, uint64(60), report["consumed_delta"])
	assert.InDelta(t, 1.0, report["consumed_per_sec"].(float64), 1e-9)
	assert.Equal(t, uint64(6), report["signals_delta"])
	assert.InDelta(t, 0.1, report["signals_per_sec"].(float64), 1e-9)
	assert.Equal(t, uint64(6), report["published_delta"])
	assert.Equal(t, uint64(100), report["consumed_total"])
	assert.Equal(t, "closed", report["publish_breaker"])
	assert.InDelta(t, 60.0, report["uptime_seconds"].(float64), 1e-6)
}

func TestHeartbeatTapReceivesReports(t *testing.T) {
	stats := &stubStats{disp: core.DispatchStats{Consumed: 10}}
	r := New(config.HeartbeatConfig{Enabled: true, IntervalSeconds: 60}, stats, stats, nil, mock.NewLogger())

	var tapped map[string]interface{}
	r.SetTap(func(report map[string]interface{}) { tapped = report })

	start := time.Now()
	r.startedAt = start
	r.prevAt = start
	r.beat(start.Add(time.Minute))

	require.NotNil(t, tapped)
	assert.Equal(t, uint64(10), tapped["consumed_total"])
}

func TestHeartbeatSecondBeatUsesNewBaseline(t *testing.T) {
	stats := &stubStats{disp: core.DispatchStats{Consumed: 50}}
	r := New(config.HeartbeatConfig{Enabled: true, IntervalSeconds: 60}, stats, stats, nil, mock.NewLogger())

	start := time.Now()
	r.startedAt = start
	r.prevAt = start

	first := r.buildReport(start.Add(time.Minute))
	require.Equal(t, uint64(50), first["consumed_delta"])

	// No traffic since the first beat.
	second := r.buildReport(start.Add(2 * time.Minute))
	assert.Equal(t, uint64(0), second["consumed_delta"])
	assert.Equal(t, uint64(50), second["consumed_total"])
	assert.Equal(t, uint64(2), second["beat"])
}
