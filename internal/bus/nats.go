// Package bus wraps the NATS connection behind the core.IBus contract
package bus

import (
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"realtime_strategies/internal/config"
	"realtime_strategies/internal/core"
	apperrors "realtime_strategies/pkg/errors"
)

// NATSBus is the production core.IBus over a single NATS connection
type NATSBus struct {
	conn   *nats.Conn
	logger core.ILogger
}

// Connect dials NATS with the configured reconnect policy. Connection state
// transitions are logged; reconnects are handled by the client.
func Connect(cfg config.BusConfig, logger core.ILogger) (*NATSBus, error) {
	log := logger.WithField("component", "bus")

	opts := []nats.Option{
		nats.Name(cfg.ConsumerName),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(time.Duration(cfg.ReconnectWaitMS) * time.Millisecond),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn("NATS disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("NATS reconnected", "url", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			log.Info("NATS connection closed")
		}),
		nats.ErrorHandler(func(_ *nats.Conn, sub *nats.Subscription, err error) {
			subject := ""
			if sub != nil {
				subject = sub.Subject
			}
			log.Error("NATS async error", "subject", subject, "error", err)
		}),
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: connect %s: %v", apperrors.ErrNotConnected, cfg.URL, err)
	}
	log.Info("Connected to NATS", "url", conn.ConnectedUrl())

	return &NATSBus{conn: conn, logger: log}, nil
}

// Publish sends a payload on the subject
func (b *NATSBus) Publish(subject string, data []byte) error {
	if err := b.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

// QueueSubscribe subscribes in a queue group so horizontal replicas share
// the message stream
func (b *NATSBus) QueueSubscribe(subject, queue string, handler core.MsgHandler) (core.ISubscription, error) {
	sub, err := b.conn.QueueSubscribe(subject, queue, func(msg *nats.Msg) {
		handler(msg.Subject, msg.Data)
	})
	if err != nil {
		return nil, fmt.Errorf("queue subscribe %s (%s): %w", subject, queue, err)
	}
	b.logger.Info("Subscribed", "subject", subject, "queue", queue)
	return &natsSubscription{sub: sub}, nil
}

// Flush waits for all buffered publishes to reach the server
func (b *NATSBus) Flush() error {
	return b.conn.Flush()
}

// Drain unsubscribes all subscriptions after their pending messages are
// handled, then closes the connection
func (b *NATSBus) Drain() error {
	return b.conn.Drain()
}

func (b *NATSBus) Close() {
	b.conn.Close()
}

func (b *NATSBus) IsConnected() bool {
	return b.conn.IsConnected()
}

type natsSubscription struct {
	sub *nats.Subscription
}

func (s *natsSubscription) Subject() string    { return s.sub.Subject }
func (s *natsSubscription) Unsubscribe() error { return s.sub.Unsubscribe() }
func (s *natsSubscription) Drain() error       { return s.sub.Drain() }
