// Package alert sends operational notifications for pipeline incidents:
// the egress breaker opening, the config store going unavailable. Delivery
// is asynchronous and never blocks the signal path.
package alert

import (
	"context"
	"sync"
	"time"

	"realtime_strategies/internal/core"
)

// Level grades alert severity
type Level string

const (
	Info     Level = "INFO"
	Warning  Level = "WARNING"
	Error    Level = "ERROR"
	Critical Level = "CRITICAL"
)

// Payload is one alert delivered to every channel
type Payload struct {
	Level     Level
	Title     string
	Message   string
	Timestamp time.Time
	Fields    map[string]string
}

// Channel delivers alerts to one destination
type Channel interface {
	Send(ctx context.Context, alert Payload) error
	Name() string
}

// sendTimeout bounds each channel delivery attempt
const sendTimeout = 10 * time.Second

// Manager fans alerts out to all configured channels
type Manager struct {
	logger core.ILogger

	mu       sync.RWMutex
	channels []Channel
}

// NewManager creates an alert manager with no channels
func NewManager(logger core.ILogger) *Manager {
	return &Manager{logger: logger.WithField("component", "alert")}
}

// AddChannel registers a delivery channel
func (m *Manager) AddChannel(ch Channel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels = append(m.channels, ch)
	m.logger.Info("Added alert channel", "name", ch.Name())
}

// Alert dispatches to every channel in the background. Failures are
// logged, never returned; alerting is advisory.
func (m *Manager) Alert(ctx context.Context, title, message string, level Level, fields map[string]string) {
	payload := Payload{
		Level:     level,
		Title:     title,
		Message:   message,
		Timestamp: time.Now(),
		Fields:    fields,
	}

	m.mu.RLock()
	channels := make([]Channel, len(m.channels))
	copy(channels, m.channels)
	m.mu.RUnlock()

	if len(channels) == 0 {
		return
	}
	m.logger.Info("Triggering alert", "title", title, "level", string(level))

	for _, ch := range channels {
		go func(c Channel) {
			sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sendTimeout)
			defer cancel()
			if err := c.Send(sendCtx, payload); err != nil {
				m.logger.Error("Failed to send alert", "channel", c.Name(), "error", err)
			}
		}(ch)
	}
}

// BreakerListener adapts the manager to the publisher's breaker callback
func (m *Manager) BreakerListener() func(state string) {
	return func(state string) {
		switch state {
		case "open":
			m.Alert(context.Background(), "Egress circuit breaker opened",
				"Signal publishing is failing; signals are being dropped until recovery.",
				Critical, map[string]string{"breaker": state})
		case "closed":
			m.Alert(context.Background(), "Egress circuit breaker closed",
				"Signal publishing recovered.",
				Info, map[string]string{"breaker": state})
		}
	}
}
