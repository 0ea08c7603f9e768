// Package alloc provides the raw allocators sitting underneath the tracking
// wrappers.
//
// # Overview
//
// Allocation requests are served by one of two tiers:
//
//   - Pool: a size-class pool. Requests are rounded up to the nearest class
//     and carved out of fixed-size slabs. The pool can answer "do I own this
//     block" and "how big is it" for any block it handed out.
//   - System: a page-mapped allocator backed by anonymous mappings. It cannot
//     report the size of an individual block, but it exposes the number of
//     bytes it currently has mapped, which callers sample around a call to
//     infer what that call committed.
//
// Tiered composes both: requests up to the pool's largest class go to the
// pool, larger ones (or ones the pool cannot satisfy) go to the system
// allocator.
//
// # Usage Example
//
//	pool := alloc.NewPool(alloc.DefaultConfig)
//	a := alloc.NewTiered(pool, alloc.NewSystem())
//
//	b, err := a.Alloc(200)
//	if err != nil {
//	    return err
//	}
//	// pool.BlockSize(b) == 208 with the Balanced config
//	a.Free(b)
//
// # Blocks
//
// Blocks are plain byte slices. Identity is the address of the first element;
// callers must not advance the start of a block before handing it back to
// Realloc or Free. The capacity of a returned block is its committed size.
//
// # Thread Safety
//
// All allocators in this package are safe for concurrent use.
package alloc
