package quota

import (
	"sync/atomic"

	"github.com/joshuapare/memquota/internal/checked"
)

// ContextID identifies an execution context.
type ContextID string

// NoContext is the identity of code running outside any sandbox.
const NoContext ContextID = ""

// State is the guard state.
type State int

const (
	// Unbounded guards accept every reservation that fits the counter.
	Unbounded State = iota
	// Bounded guards reject reservations that would exceed the cap.
	Bounded
)

func (s State) String() string {
	switch s {
	case Unbounded:
		return "unbounded"
	case Bounded:
		return "bounded"
	default:
		return "unknown"
	}
}

// MarshalText renders the state name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Guard enforces the memory quota of one execution context.
// All methods are safe for concurrent use.
type Guard struct {
	id    ContextID
	limit atomic.Pointer[uint64] // nil = Unbounded

	used atomic.Uint64
	peak atomic.Uint64

	reservations atomic.Uint64
	rejections   atomic.Uint64
	clamps       atomic.Uint64
}

// NewGuard creates an Unbounded guard for id.
func NewGuard(id ContextID) *Guard {
	return &Guard{id: id}
}

// Context returns the identity of the owning execution context.
func (g *Guard) Context() ContextID {
	return g.id
}

// SetCap moves the guard to Bounded(c). Usage already accounted is kept.
func (g *Guard) SetCap(c uint64) {
	g.limit.Store(&c)
}

// ClearCap moves the guard to Unbounded.
func (g *Guard) ClearCap() {
	g.limit.Store(nil)
}

// Cap returns the current cap and whether one is set.
func (g *Guard) Cap() (uint64, bool) {
	if c := g.limit.Load(); c != nil {
		return *c, true
	}
	return 0, false
}

// State returns Bounded when a cap is set.
func (g *Guard) State() State {
	if g.limit.Load() != nil {
		return Bounded
	}
	return Unbounded
}

// Reserve accounts n more bytes, or rejects without changing usage when the
// sum overflows or exceeds the cap.
func (g *Guard) Reserve(n uint64) error {
	if n == 0 {
		return nil
	}
	for {
		used := g.used.Load()
		next, ok := checked.Add(used, n)
		if !ok {
			g.rejections.Add(1)
			c, _ := g.Cap()
			return &ExceededError{Context: g.id, Cap: c, Used: used, Requested: n, Overflow: true}
		}
		if c := g.limit.Load(); c != nil && next > *c {
			g.rejections.Add(1)
			return &ExceededError{Context: g.id, Cap: *c, Used: used, Requested: n}
		}
		if g.used.CompareAndSwap(used, next) {
			g.reservations.Add(1)
			g.notePeak(next)
			return nil
		}
	}
}

// Release gives back n bytes. Usage saturates at zero; the return value
// reports whether it had to, which indicates a size mismatch upstream.
func (g *Guard) Release(n uint64) bool {
	if n == 0 {
		return false
	}
	for {
		used := g.used.Load()
		next, clamped := checked.Sub(used, n)
		if g.used.CompareAndSwap(used, next) {
			if clamped {
				g.clamps.Add(1)
			}
			return clamped
		}
	}
}

func (g *Guard) notePeak(v uint64) {
	for {
		p := g.peak.Load()
		if v <= p || g.peak.CompareAndSwap(p, v) {
			return
		}
	}
}

// Used returns the bytes currently accounted to the context.
func (g *Guard) Used() uint64 {
	return g.used.Load()
}

// Peak returns the high-water mark of Used.
func (g *Guard) Peak() uint64 {
	return g.peak.Load()
}

// Stats returns a snapshot of the guard.
func (g *Guard) Stats() Stats {
	c, bounded := g.Cap()
	st := Unbounded
	if bounded {
		st = Bounded
	}
	return Stats{
		Context:      g.id,
		State:        st,
		Cap:          c,
		Used:         g.used.Load(),
		Peak:         g.peak.Load(),
		Reservations: g.reservations.Load(),
		Rejections:   g.rejections.Load(),
		Clamps:       g.clamps.Load(),
	}
}

// Stats contains statistical information about a guard.
type Stats struct {
	Context      ContextID `json:"context"`
	State        State     `json:"state"`
	Cap          uint64    `json:"cap,omitempty"`
	Used         uint64    `json:"used"`
	Peak         uint64    `json:"peak"`
	Reservations uint64    `json:"reservations"`
	Rejections   uint64    `json:"rejections"`
	Clamps       uint64    `json:"clamps"`
}
