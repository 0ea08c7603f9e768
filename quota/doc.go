// Package quota implements per-execution-context memory quotas.
//
// # Guards
//
// A Guard holds a cap and a usage counter for one execution context. It is
// either Unbounded (no cap; usage still accumulates for reporting) or
// Bounded(cap):
//
//	g := quota.NewGuard("worker-7")
//	g.SetCap(1000)
//	g.Reserve(600) // ok, used = 600
//	g.Reserve(500) // ErrQuotaExceeded, used still 600
//	g.Release(600) // used = 0
//
// Reserve computes the new usage with overflow-checked addition, compares it
// against the cap and commits it in a single compare-and-swap loop. A
// rejected reservation never mutates the counter, and concurrent
// reservations can never jointly overshoot the cap.
//
// Lowering the cap below current usage does not invalidate anything already
// accounted; it only causes later reservations to be rejected until usage
// drops below the new cap.
//
// # Registry
//
// A Registry maps execution context identities to their guards. A context
// enters sandboxed mode with Attach and leaves it with Detach. Allocation
// wrappers look the guard up per call and never retain it.
package quota
