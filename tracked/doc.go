// Package tracked provides the accounted allocation entry points.
//
// A Tracker wraps a raw allocator and composes three collaborators on every
// call: the size probe, the process-wide usage ledger and, when the calling
// execution context has one attached, its quota guard.
//
// # Allocation policy
//
// Allocate reserves an estimate before calling the allocator. The estimate
// is the allocator's own prediction of the committed size (exact for
// pool-served requests, page-rounded for the system tier) or the requested
// size when the allocator cannot predict. Once the real allocation returns,
// the committed size is probed; a surplus reservation is released and a
// shortfall is reserved in a second checked step. If that step is rejected
// the block is freed and the whole reservation rolled back. Every increase
// of a guard's usage goes through Reserve, so usage never exceeds the cap.
//
// # Reallocation policy
//
// The guard is charged the net change of a reallocation, never the sum of
// the old and new blocks. When the new size keeps the block's tier and
// committed size, the allocator's Realloc runs in place with nothing to
// reserve. Otherwise the tracker moves the block itself: it reserves the
// estimated growth, allocates the new block, reserves any shortfall between
// estimate and committed size, and only then copies and frees the old
// block. A rejection at either step frees the new block and leaves the old
// block and every counter untouched. A shrink releases the difference.
//
// # Failures
//
// Quota rejections are returned as *quota.ExceededError, which matches
// alloc.ErrOutOfMemory under errors.Is. Accounting inconsistencies (a
// release larger than what was accounted) are clamped, counted by the
// ledger and logged; they are never returned to the caller.
package tracked
