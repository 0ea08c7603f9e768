package quota

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps execution contexts to their guards.
type Registry struct {
	mu     sync.RWMutex
	guards map[ContextID]*Guard
	limits Limits
}

// NewRegistry creates an empty registry with the given limits.
func NewRegistry(limits Limits) *Registry {
	return &Registry{
		guards: make(map[ContextID]*Guard),
		limits: limits,
	}
}

// Limits returns the registry limits.
func (r *Registry) Limits() Limits {
	return r.limits
}

// Attach places id into sandboxed mode and returns its guard. Attaching an
// already attached context returns the existing guard.
func (r *Registry) Attach(id ContextID) (*Guard, error) {
	if id == NoContext {
		return nil, ErrNoContext
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.attachLocked(id)
}

func (r *Registry) attachLocked(id ContextID) (*Guard, error) {
	if g, ok := r.guards[id]; ok {
		return g, nil
	}
	if r.limits.MaxContexts > 0 && len(r.guards) >= r.limits.MaxContexts {
		return nil, fmt.Errorf("%w: limit %d", ErrTooManyContexts, r.limits.MaxContexts)
	}
	g := NewGuard(id)
	if r.limits.ContextCap > 0 {
		g.SetCap(r.limits.ContextCap)
	}
	r.guards[id] = g
	return g, nil
}

// Detach tears down id's guard and returns its final statistics.
func (r *Registry) Detach(id ContextID) (Stats, error) {
	r.mu.Lock()
	g, ok := r.guards[id]
	delete(r.guards, id)
	r.mu.Unlock()

	if !ok {
		return Stats{}, fmt.Errorf("%w: %q", ErrUnknownContext, id)
	}
	return g.Stats(), nil
}

// Guard returns the guard of id, if one is attached.
func (r *Registry) Guard(id ContextID) (*Guard, bool) {
	if id == NoContext {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.guards[id]
	return g, ok
}

// SetQuota sets the cap of id, attaching the context if needed.
func (r *Registry) SetQuota(id ContextID, c uint64) error {
	if id == NoContext {
		return ErrNoContext
	}
	r.mu.Lock()
	g, err := r.attachLocked(id)
	r.mu.Unlock()
	if err != nil {
		return err
	}
	g.SetCap(c)
	return nil
}

// ClearQuota makes id Unbounded.
func (r *Registry) ClearQuota(id ContextID) error {
	g, ok := r.Guard(id)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownContext, id)
	}
	g.ClearCap()
	return nil
}

// CurrentUsage returns the bytes accounted to id.
func (r *Registry) CurrentUsage(id ContextID) (uint64, error) {
	g, ok := r.Guard(id)
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownContext, id)
	}
	return g.Used(), nil
}

// Contexts returns the statistics of every attached context, sorted by id.
func (r *Registry) Contexts() []Stats {
	r.mu.RLock()
	out := make([]Stats, 0, len(r.guards))
	for _, g := range r.guards {
		out = append(out, g.Stats())
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Context < out[j].Context })
	return out
}

// Len returns the number of attached contexts.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.guards)
}
