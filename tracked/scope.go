package tracked

import "github.com/joshuapare/memquota/quota"

// Scope binds a Tracker to one execution context, so call sites inside that
// context do not have to thread its identity through every call.
type Scope struct {
	t  *Tracker
	id quota.ContextID
}

// Scope returns a handle for id. quota.NoContext yields an unsandboxed scope.
func (t *Tracker) Scope(id quota.ContextID) Scope {
	return Scope{t: t, id: id}
}

// Context returns the bound execution context.
func (s Scope) Context() quota.ContextID { return s.id }

// Allocate is Tracker.Allocate for the bound context.
func (s Scope) Allocate(category string, n int) ([]byte, error) {
	return s.t.Allocate(s.id, category, n)
}

// Reallocate is Tracker.Reallocate for the bound context.
func (s Scope) Reallocate(category string, b []byte, n int) ([]byte, error) {
	return s.t.Reallocate(s.id, category, b, n)
}

// Release is Tracker.Release for the bound context.
func (s Scope) Release(category string, b []byte) {
	s.t.Release(s.id, category, b)
}

// Usage returns the bytes accounted to the bound context, or 0 when it has no guard.
func (s Scope) Usage() uint64 {
	if g, ok := s.t.registry.Guard(s.id); ok {
		return g.Used()
	}
	return 0
}
