package axe

import (
	"fmt"
	"sort"
	"sync"
)

// Registry is the thread-safe map from strategy id to its type-erased
// handle. There is no process-global registry: each Engine owns one, and
// tests get isolation by constructing their own (explicit dependency
// injection instead of swappable global state).
type Registry struct {
	mu         sync.RWMutex
	strategies map[StrategyID]*AnyStrategy
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		strategies: make(map[StrategyID]*AnyStrategy),
	}
}

// Register adds a type-erased strategy handle. A colliding id fails with
// ErrStrategyAlreadyRegistered.
func (r *Registry) Register(s *AnyStrategy) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.strategies[s.ID()]; exists {
		return fmt.Errorf("%w: %q", ErrStrategyAlreadyRegistered, s.ID())
	}
	r.strategies[s.ID()] = s
	return nil
}

// RegisterStrategy erases and registers a typed strategy.
func RegisterStrategy[I Info](r *Registry, s Strategy[I]) error {
	return r.Register(EraseStrategy(s))
}

// Resolve returns the handle registered under id, or
// ErrStrategyNotRegistered.
func (r *Registry) Resolve(id StrategyID) (*AnyStrategy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.strategies[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrStrategyNotRegistered, id)
	}
	return s, nil
}

// IsRegistered reports whether a strategy is registered under id.
func (r *Registry) IsRegistered(id StrategyID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.strategies[id]
	return ok
}

// Unregister removes the strategy registered under id and reports whether it
// was present. Held state owned by the strategy is left untouched.
func (r *Registry) Unregister(id StrategyID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.strategies[id]
	delete(r.strategies, id)
	return ok
}

// IDs returns the registered strategy ids in sorted order.
func (r *Registry) IDs() []StrategyID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]StrategyID, 0, len(r.strategies))
	for id := range r.strategies {
		out = append(out, id)
	}
	sort.Slice(out, func(a, b int) bool { return out[a] < out[b] })
	return out
}

// snapshot returns the registered handles. Used for cleanup and aggregation
// so strategy calls run outside the registry mutex.
func (r *Registry) snapshot() []*AnyStrategy {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*AnyStrategy, 0, len(r.strategies))
	for _, s := range r.strategies {
		out = append(out, s)
	}
	return out
}

// CleanUp forwards to every registered strategy, dropping all held state.
func (r *Registry) CleanUp() {
	for _, s := range r.snapshot() {
		s.CleanUp()
	}
}

// CleanUpBoundary forwards to every registered strategy, dropping the
// boundary's held state.
func (r *Registry) CleanUpBoundary(boundaryID BoundaryID) {
	for _, s := range r.snapshot() {
		s.CleanUpBoundary(boundaryID)
	}
}

// CurrentLocks aggregates the boundary's held infos across every registered
// strategy.
func (r *Registry) CurrentLocks(boundaryID BoundaryID) []Info {
	var out []Info
	for _, s := range r.snapshot() {
		out = append(out, s.CurrentLocks(boundaryID)...)
	}
	return out
}
