package alloc

import (
	"fmt"
	"sync/atomic"

	"github.com/joshuapare/memquota/internal/checked"
)

// System is the platform allocator. On unix it serves every request from
// its own anonymous mapping; elsewhere it falls back to the Go heap. Either
// way committed sizes are rounded up to whole pages and the number of bytes
// currently committed is exposed through CurrentHeapBytes.
type System struct {
	pageSize uint64
	limit    uint64 // 0 = unlimited
	mapped   atomic.Uint64
	maps     atomic.Uint64
	unmaps   atomic.Uint64
}

// SystemOption configures a System allocator.
type SystemOption func(*System)

// WithSystemLimit caps the bytes the allocator may have mapped at once.
// Requests beyond it fail with ErrOutOfMemory.
func WithSystemLimit(n uint64) SystemOption {
	return func(s *System) { s.limit = n }
}

// NewSystem creates a platform allocator.
func NewSystem(opts ...SystemOption) *System {
	s := &System{pageSize: uint64(pageSize())}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PageSize returns the rounding granularity of committed sizes.
func (s *System) PageSize() uint64 {
	return s.pageSize
}

// Estimate returns the page-rounded size a request of n bytes would commit.
func (s *System) Estimate(n int) (uint64, bool) {
	size, err := s.commitSize(n)
	if err != nil {
		return 0, false
	}
	return size, false
}

// Alloc maps a fresh region of at least n bytes.
func (s *System) Alloc(n int) ([]byte, error) {
	size, err := s.commitSize(n)
	if err != nil {
		return nil, err
	}
	if err := s.charge(size); err != nil {
		return nil, err
	}
	mem, err := mapRegion(int(size))
	if err != nil {
		s.mapped.Add(-size)
		return nil, fmt.Errorf("%w: map %d bytes: %v", ErrOutOfMemory, size, err)
	}
	s.maps.Add(1)
	return mem[:n], nil
}

// Realloc resizes b. Requests that fit the existing pages keep the block.
func (s *System) Realloc(b []byte, n int) ([]byte, error) {
	if n < 0 {
		return nil, ErrNegativeSize
	}
	if cap(b) == 0 {
		return s.Alloc(n)
	}
	size, err := s.commitSize(n)
	if err != nil {
		return nil, err
	}
	if size == uint64(cap(b)) {
		return b[:n], nil
	}
	nb, err := s.Alloc(n)
	if err != nil {
		return nil, err
	}
	copy(nb, b)
	s.Free(b)
	return nb, nil
}

// Free unmaps b. b must start at the beginning of its mapping.
func (s *System) Free(b []byte) {
	if cap(b) == 0 {
		return
	}
	size := uint64(cap(b))
	if err := unmapRegion(b[:cap(b)]); err != nil {
		return
	}
	s.unmaps.Add(1)
	s.mapped.Add(-size)
}

// CurrentHeapBytes returns the bytes currently mapped by this allocator.
func (s *System) CurrentHeapBytes() uint64 {
	return s.mapped.Load()
}

// Metrics returns a snapshot of allocator statistics.
func (s *System) Metrics() SystemMetrics {
	return SystemMetrics{
		PageSize:    s.pageSize,
		MappedBytes: s.mapped.Load(),
		Maps:        s.maps.Load(),
		Unmaps:      s.unmaps.Load(),
		Limit:       s.limit,
	}
}

// SystemMetrics contains statistical information about a System allocator.
type SystemMetrics struct {
	PageSize    uint64
	MappedBytes uint64
	Maps        uint64
	Unmaps      uint64
	Limit       uint64
}

func (s *System) commitSize(n int) (uint64, error) {
	if n < 0 {
		return 0, ErrNegativeSize
	}
	if n == 0 {
		n = 1
	}
	size, ok := checked.RoundUp(uint64(n), s.pageSize)
	if !ok {
		return 0, fmt.Errorf("%w: %d bytes overflows page rounding", ErrOutOfMemory, n)
	}
	if _, ok := checked.Length(size); !ok {
		return 0, fmt.Errorf("%w: %d bytes exceeds addressable length", ErrOutOfMemory, size)
	}
	return size, nil
}

// charge adds size to the mapped counter, enforcing the configured limit.
func (s *System) charge(size uint64) error {
	for {
		cur := s.mapped.Load()
		next, ok := checked.Add(cur, size)
		if !ok || (s.limit > 0 && next > s.limit) {
			return fmt.Errorf("%w: system limit %d bytes reached", ErrOutOfMemory, s.limit)
		}
		if s.mapped.CompareAndSwap(cur, next) {
			return nil
		}
	}
}
