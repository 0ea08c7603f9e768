package alloc

// Allocator is the raw allocation contract consumed by the tracking layer.
//
// Implementations:
//   - Pool: size-class pool allocator
//   - System: page-mapped allocator
//   - Tiered: pool for small requests, system allocator beyond
type Allocator interface {
	// Alloc returns a block of at least n bytes with len n.
	Alloc(n int) ([]byte, error)

	// Realloc resizes b to n bytes, preserving min(len(b), n) bytes of content.
	// The block may move. On error b is left untouched and still valid.
	Realloc(b []byte, n int) ([]byte, error)

	// Free returns b to the allocator. b must not be used afterwards.
	Free(b []byte)
}

// Estimator predicts the committed size of a request before it is made.
// pooled reports whether the block would be owned by the size-class pool,
// i.e. whether its size will be reported exactly once allocated.
type Estimator interface {
	Estimate(n int) (size uint64, pooled bool)
}

// HeapStat exposes a global heap-usage statistic that can be sampled
// around an allocator call.
type HeapStat interface {
	CurrentHeapBytes() uint64
}
