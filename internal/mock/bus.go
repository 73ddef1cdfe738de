package mock

import (
	"sync"

	"realtime_strategies/internal/core"
	apperrors "realtime_strategies/pkg/errors"
)

// Bus is an in-process core.IBus. Publishes are delivered synchronously to
// one subscriber per queue group, and every published payload is captured
// for assertions. Publish failures can be injected per call.
type Bus struct {
	mu        sync.Mutex
	connected bool
	subs      []*busSubscription
	published map[string][][]byte
	rr        map[string]int // round robin cursor per (subject, queue)
	attempts  int

	publishErrs []error            // consumed front to back by any Publish
	subjectErrs map[string][]error // consumed only by publishes to that subject
}

// NewBus creates a connected in-memory bus
func NewBus() *Bus {
	return &Bus{
		connected:   true,
		published:   make(map[string][][]byte),
		rr:          make(map[string]int),
		subjectErrs: make(map[string][]error),
	}
}

type busSubscription struct {
	bus     *Bus
	subject string
	queue   string
	handler core.MsgHandler
	active  bool
}

func (s *busSubscription) Subject() string { return s.subject }

func (s *busSubscription) Unsubscribe() error {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	s.active = false
	return nil
}

func (s *busSubscription) Drain() error { return s.Unsubscribe() }

// Publish records the payload and delivers it to matching subscribers.
// Within a queue group exactly one member receives the message.
func (b *Bus) Publish(subject string, data []byte) error {
	b.mu.Lock()
	b.attempts++
	if !b.connected {
		b.mu.Unlock()
		return apperrors.ErrNotConnected
	}
	if errs := b.subjectErrs[subject]; len(errs) > 0 {
		b.subjectErrs[subject] = errs[1:]
		b.mu.Unlock()
		return errs[0]
	}
	if len(b.publishErrs) > 0 {
		err := b.publishErrs[0]
		b.publishErrs = b.publishErrs[1:]
		b.mu.Unlock()
		return err
	}

	payload := make([]byte, len(data))
	copy(payload, data)
	b.published[subject] = append(b.published[subject], payload)

	// Pick one member per queue group, all members of the empty group.
	byQueue := make(map[string][]*busSubscription)
	for _, sub := range b.subs {
		if sub.active && sub.subject == subject {
			byQueue[sub.queue] = append(byQueue[sub.queue], sub)
		}
	}
	var targets []*busSubscription
	for queue, members := range byQueue {
		if queue == "" {
			targets = append(targets, members...)
			continue
		}
		key := subject + "/" + queue
		idx := b.rr[key] % len(members)
		b.rr[key]++
		targets = append(targets, members[idx])
	}
	b.mu.Unlock()

	for _, sub := range targets {
		sub.handler(subject, payload)
	}
	return nil
}

// QueueSubscribe registers a handler in a queue group
func (b *Bus) QueueSubscribe(subject, queue string, handler core.MsgHandler) (core.ISubscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.connected {
		return nil, apperrors.ErrNotConnected
	}
	sub := &busSubscription{bus: b, subject: subject, queue: queue, handler: handler, active: true}
	b.subs = append(b.subs, sub)
	return sub, nil
}

func (b *Bus) Flush() error { return nil }
func (b *Bus) Drain() error { return nil }

func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.connected = false
}

func (b *Bus) IsConnected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connected
}

// FailNextPublishes injects errors consumed by the next len(errs) publishes
func (b *Bus) FailNextPublishes(errs ...error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.publishErrs = append(b.publishErrs, errs...)
}

// FailNextPublishesOn injects errors consumed only by publishes to subject,
// leaving traffic on other subjects untouched
func (b *Bus) FailNextPublishesOn(subject string, errs ...error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subjectErrs[subject] = append(b.subjectErrs[subject], errs...)
}

// Published returns captured payloads for a subject, oldest first
func (b *Bus) Published(subject string) [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([][]byte, len(b.published[subject]))
	copy(out, b.published[subject])
	return out
}

// PublishedCount returns how many payloads were accepted for a subject
func (b *Bus) PublishedCount(subject string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.published[subject])
}

// PublishAttempts counts every Publish call, failed or not
func (b *Bus) PublishAttempts() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.attempts
}
