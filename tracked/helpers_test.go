package tracked

import (
	"sync/atomic"
	"testing"

	"github.com/joshuapare/memquota/alloc"
	"github.com/joshuapare/memquota/internal/checked"
)

// heapAllocator serves blocks from the Go heap and keeps a live-bytes
// statistic, standing in for a platform allocator that cannot report block
// sizes. Committed sizes are rounded to round bytes when round > 0.
type heapAllocator struct {
	round uint64
	fail  atomic.Bool
	live  atomic.Uint64
}

func (h *heapAllocator) Alloc(n int) ([]byte, error) {
	if h.fail.Load() {
		return nil, alloc.ErrOutOfMemory
	}
	if n < 0 {
		return nil, alloc.ErrNegativeSize
	}
	size := uint64(n)
	if size == 0 {
		size = 1
	}
	if h.round > 0 {
		size, _ = checked.RoundUp(size, h.round)
	}
	h.live.Add(size)
	return make([]byte, n, size), nil
}

func (h *heapAllocator) Realloc(b []byte, n int) ([]byte, error) {
	nb, err := h.Alloc(n)
	if err != nil {
		return nil, err
	}
	copy(nb, b)
	h.Free(b)
	return nb, nil
}

func (h *heapAllocator) Free(b []byte) {
	h.live.Add(-uint64(cap(b)))
}

func (h *heapAllocator) CurrentHeapBytes() uint64 {
	return h.live.Load()
}

// plainAllocator has neither a size capability nor a heap statistic.
type plainAllocator struct{}

func (plainAllocator) Alloc(n int) ([]byte, error) { return make([]byte, n), nil }

func (plainAllocator) Realloc(b []byte, n int) ([]byte, error) {
	nb := make([]byte, n)
	copy(nb, b)
	return nb, nil
}

func (plainAllocator) Free([]byte) {}

type tieredFixture struct {
	tracker *Tracker
	pool    *alloc.Pool
	sys     *alloc.System
}

func newTieredFixture(t *testing.T, opts ...Option) tieredFixture {
	t.Helper()
	return newTieredFixtureWithPool(t, alloc.NewPool(alloc.ConfigBalanced), opts...)
}

func newTieredFixtureWithPool(t *testing.T, pool *alloc.Pool, opts ...Option) tieredFixture {
	t.Helper()
	sys := alloc.NewSystem()
	return tieredFixture{
		tracker: New(alloc.NewTiered(pool, sys), opts...),
		pool:    pool,
		sys:     sys,
	}
}

func (f tieredFixture) pages(n int) uint64 {
	size, _ := checked.RoundUp(uint64(n), f.sys.PageSize())
	return size
}
