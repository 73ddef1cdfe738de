package strategy

import (
	"sync"

	"realtime_strategies/internal/core"
	"realtime_strategies/internal/market"
)

type registryEntry struct {
	strategy core.IStrategy
	enabled  bool
}

// Registry maps strategy ids to instances with a per-strategy enable flag.
// Iteration order is registration order so dispatch is deterministic.
type Registry struct {
	mu      sync.RWMutex
	order   []string
	entries map[string]*registryEntry
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*registryEntry)}
}

// Register adds a strategy. Re-registering an id replaces the instance and
// keeps its position in the iteration order.
func (r *Registry) Register(s core.IStrategy, enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := s.ID()
	if _, ok := r.entries[id]; !ok {
		r.order = append(r.order, id)
	}
	r.entries[id] = &registryEntry{strategy: s, enabled: enabled}
}

// SetEnabled flips the enable flag; it reports whether the id is known
func (r *Registry) SetEnabled(id string, enabled bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[id]
	if !ok {
		return false
	}
	entry.enabled = enabled
	return true
}

// IsEnabled reports whether a registered strategy is enabled
func (r *Registry) IsEnabled(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[id]
	return ok && entry.enabled
}

// Get returns the strategy registered under id
func (r *Registry) Get(id string) (core.IStrategy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[id]
	if !ok {
		return nil, false
	}
	return entry.strategy, true
}

// IDs lists registered strategy ids in registration order
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// EnabledFor returns the enabled strategies that consume the given event
// kind, in registration order
func (r *Registry) EnabledFor(kind market.EventKind) []core.IStrategy {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []core.IStrategy
	for _, id := range r.order {
		entry := r.entries[id]
		if entry.enabled && entry.strategy.Wants(kind) {
			out = append(out, entry.strategy)
		}
	}
	return out
}

// Flags returns a snapshot of the enable flags, mainly for the admin surface
func (r *Registry) Flags() map[string]bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]bool, len(r.entries))
	for id, entry := range r.entries {
		out[id] = entry.enabled
	}
	return out
}
