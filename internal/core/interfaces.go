// Package core defines the core interfaces for the strategy service
package core

import (
	"context"

	"realtime_strategies/internal/market"
	"realtime_strategies/internal/signal"
)

// IStrategy defines the interface for signal-generating strategy logic.
// Implementations must be safe for calls from a single dispatcher worker;
// the dispatcher never invokes the same strategy concurrently for one message.
type IStrategy interface {
	// ID returns the stable strategy identifier, e.g. "orderbook_skew".
	ID() string
	// Wants reports whether the strategy consumes events of the given kind.
	Wants(kind market.EventKind) bool
	// OnEvent processes one market event with the resolved parameter set and
	// returns zero or more signals. A nil slice with nil error means the
	// strategy evaluated the event and found nothing actionable.
	OnEvent(ctx context.Context, evt market.Event, params Params) ([]*signal.Signal, error)
}

// IParamResolver resolves the effective parameter set for a strategy run
type IParamResolver interface {
	Resolve(ctx context.Context, strategyID, symbol string) (Params, error)
}

// MsgHandler receives raw bus messages
type MsgHandler func(subject string, data []byte)

// ISubscription represents an active bus subscription
type ISubscription interface {
	Subject() string
	Unsubscribe() error
	Drain() error
}

// IBus defines the interface for the message bus transport
type IBus interface {
	Publish(subject string, data []byte) error
	QueueSubscribe(subject, queue string, handler MsgHandler) (ISubscription, error)
	Flush() error
	Drain() error
	Close()
	IsConnected() bool
}

// ISignalSink accepts signals produced by strategies for downstream delivery
type ISignalSink interface {
	Enqueue(ctx context.Context, sig *signal.Signal) error
}

// IDispatcherStats exposes dispatcher counters for heartbeat reporting
type IDispatcherStats interface {
	DispatchStats() DispatchStats
}

// IPublisherStats exposes publisher counters for heartbeat reporting
type IPublisherStats interface {
	PublishStats() PublishStats
}

// IHealthMonitor defines the interface for health monitoring
type IHealthMonitor interface {
	Register(component string, check func() error)
	GetStatus() map[string]string
	IsHealthy() bool
}

// ILogger defines the interface for logging
type ILogger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
	Fatal(msg string, fields ...interface{})
	WithField(key string, value interface{}) ILogger
	WithFields(fields map[string]interface{}) ILogger
}
