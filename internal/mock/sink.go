package mock

import (
	"context"
	"sync"

	"realtime_strategies/internal/signal"
)

// Sink is an in-memory core.ISignalSink capturing enqueued signals. It can
// be made to block so enqueue deadlines are testable.
type Sink struct {
	mu      sync.Mutex
	signals []*signal.Signal
	err     error
	block   bool
}

// NewSink creates an accepting sink
func NewSink() *Sink {
	return &Sink{}
}

// Enqueue records the signal, or blocks until the context expires when the
// sink is set to block
func (s *Sink) Enqueue(ctx context.Context, sig *signal.Signal) error {
	s.mu.Lock()
	blocked, err := s.block, s.err
	s.mu.Unlock()

	if blocked {
		<-ctx.Done()
		return ctx.Err()
	}
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.signals = append(s.signals, sig)
	s.mu.Unlock()
	return nil
}

// SetBlocking makes subsequent enqueues block until their context expires
func (s *Sink) SetBlocking(block bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.block = block
}

// FailWith makes subsequent enqueues return err
func (s *Sink) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Signals returns captured signals, oldest first
func (s *Sink) Signals() []*signal.Signal {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*signal.Signal, len(s.signals))
	copy(out, s.signals)
	return out
}

// Count returns how many signals were accepted
func (s *Sink) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.signals)
}
