package alloc

import (
	"fmt"
	"sort"
	"sync"
	"unsafe"
)

const (
	// DefaultSlabSize is the size of the region carved into blocks of one class.
	DefaultSlabSize = 64 << 10

	// minBlocksPerSlab keeps large classes from getting one-block slabs.
	minBlocksPerSlab = 4
)

// Pool is a size-class pool allocator. Each class owns a set of slabs,
// each slab is split into equal blocks, and free blocks are kept on a
// per-class free list.
type Pool struct {
	mu       sync.RWMutex
	table    *sizeClassTable
	slabSize int
	maxBytes int // 0 = unlimited slab memory

	classes   []classState
	slabs     []slab // sorted by base address
	slabBytes int
}

type classState struct {
	free   [][]byte
	inUse  int
	allocs uint64
	frees  uint64
}

type slab struct {
	base  uintptr
	end   uintptr
	class int
	mem   []byte
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithSlabSize sets the slab size. Values <= 0 select DefaultSlabSize.
func WithSlabSize(n int) PoolOption {
	return func(p *Pool) {
		if n > 0 {
			p.slabSize = n
		}
	}
}

// WithPoolLimit caps the total slab memory the pool may hold. Once reached,
// requests needing a new slab fail with ErrOutOfMemory.
func WithPoolLimit(n int) PoolOption {
	return func(p *Pool) {
		if n > 0 {
			p.maxBytes = n
		}
	}
}

// NewPool creates a pool for the given size class configuration.
// It panics if the configuration is invalid; use NewPoolChecked to get an error.
func NewPool(config SizeClassConfig, opts ...PoolOption) *Pool {
	p, err := NewPoolChecked(config, opts...)
	if err != nil {
		panic(err)
	}
	return p
}

// NewPoolChecked is NewPool returning configuration errors.
func NewPoolChecked(config SizeClassConfig, opts ...PoolOption) (*Pool, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	p := &Pool{
		table:    newSizeClassTable(config),
		slabSize: DefaultSlabSize,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.classes = make([]classState, p.table.NumClasses())
	return p, nil
}

// Config returns the size class configuration of the pool.
func (p *Pool) Config() SizeClassConfig {
	return p.table.config
}

// ClassSizes returns the block size of every class, ascending.
func (p *Pool) ClassSizes() []int {
	return append([]int(nil), p.table.sizes...)
}

// MaxBlock returns the largest block size the pool serves.
func (p *Pool) MaxBlock() int {
	return p.table.largest()
}

// Estimate returns the block size a request of n bytes would receive.
func (p *Pool) Estimate(n int) (uint64, bool) {
	if n < 0 {
		return 0, false
	}
	if n == 0 {
		n = 1
	}
	c := p.table.classFor(n)
	if c == p.table.NumClasses() {
		return 0, false
	}
	return uint64(p.table.sizes[c]), true
}

// Alloc returns a block from the smallest class that fits n bytes.
func (p *Pool) Alloc(n int) ([]byte, error) {
	if n < 0 {
		return nil, ErrNegativeSize
	}
	size := n
	if size == 0 {
		size = 1
	}
	c := p.table.classFor(size)
	if c == p.table.NumClasses() {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrTooLarge, n, p.MaxBlock())
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	cs := &p.classes[c]
	if len(cs.free) == 0 {
		if err := p.addSlabLocked(c); err != nil {
			return nil, err
		}
	}
	last := len(cs.free) - 1
	blk := cs.free[last]
	cs.free[last] = nil
	cs.free = cs.free[:last]
	cs.inUse++
	cs.allocs++

	return blk[:n], nil
}

// Realloc resizes b. A request that stays within b's class keeps the block.
func (p *Pool) Realloc(b []byte, n int) ([]byte, error) {
	if n < 0 {
		return nil, ErrNegativeSize
	}
	size := n
	if size == 0 {
		size = 1
	}
	blockSize := p.BlockSize(b)
	if blockSize == 0 {
		return nil, ErrForeignBlock
	}
	c := p.table.classFor(size)
	if c < p.table.NumClasses() && p.table.sizes[c] == int(blockSize) {
		return b[:n], nil
	}

	nb, err := p.Alloc(n)
	if err != nil {
		return nil, err
	}
	copy(nb, b)
	p.Free(b)
	return nb, nil
}

// Free returns b to its class free list. Blocks the pool does not own are ignored.
func (p *Pool) Free(b []byte) {
	addr, ok := blockAddr(b)
	if !ok {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	s, ok := p.findLocked(addr)
	if !ok {
		return
	}
	size := p.table.sizes[s.class]
	off := int(addr - s.base)
	if off%size != 0 {
		return
	}
	cs := &p.classes[s.class]
	cs.free = append(cs.free, s.mem[off:off+size:off+size])
	cs.inUse--
	cs.frees++
}

// Owns reports whether b lies inside one of the pool's slabs.
func (p *Pool) Owns(b []byte) bool {
	return p.BlockSize(b) != 0
}

// BlockSize returns the class block size of b, or 0 if the pool does not own b.
func (p *Pool) BlockSize(b []byte) uint64 {
	addr, ok := blockAddr(b)
	if !ok {
		return 0
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	s, ok := p.findLocked(addr)
	if !ok {
		return 0
	}
	return uint64(p.table.sizes[s.class])
}

func (p *Pool) addSlabLocked(c int) error {
	size := p.table.sizes[c]
	slabSize := p.slabSize
	if slabSize < size*minBlocksPerSlab {
		slabSize = size * minBlocksPerSlab
	}
	slabSize -= slabSize % size
	if p.maxBytes > 0 && p.slabBytes+slabSize > p.maxBytes {
		return fmt.Errorf("%w: pool limit %d bytes reached", ErrOutOfMemory, p.maxBytes)
	}

	mem := make([]byte, slabSize)
	base := uintptr(unsafe.Pointer(unsafe.SliceData(mem)))
	s := slab{base: base, end: base + uintptr(slabSize), class: c, mem: mem}

	i := sort.Search(len(p.slabs), func(i int) bool { return p.slabs[i].base > base })
	p.slabs = append(p.slabs, slab{})
	copy(p.slabs[i+1:], p.slabs[i:])
	p.slabs[i] = s
	p.slabBytes += slabSize

	cs := &p.classes[c]
	// Push in reverse so blocks are handed out in address order.
	for off := slabSize - size; off >= 0; off -= size {
		cs.free = append(cs.free, mem[off:off+size:off+size])
	}
	return nil
}

func (p *Pool) findLocked(addr uintptr) (slab, bool) {
	i := sort.Search(len(p.slabs), func(i int) bool { return p.slabs[i].end > addr })
	if i == len(p.slabs) || p.slabs[i].base > addr {
		return slab{}, false
	}
	return p.slabs[i], true
}

// blockAddr returns the address of b's first element.
func blockAddr(b []byte) (uintptr, bool) {
	if cap(b) == 0 {
		return 0, false
	}
	return uintptr(unsafe.Pointer(unsafe.SliceData(b))), true
}

// Metrics returns a snapshot of pool statistics.
func (p *Pool) Metrics() PoolMetrics {
	p.mu.RLock()
	defer p.mu.RUnlock()

	m := PoolMetrics{
		Config:    p.table.config.Name,
		NumSlabs:  len(p.slabs),
		SlabBytes: p.slabBytes,
		Classes:   make([]ClassMetrics, len(p.classes)),
	}
	for i, cs := range p.classes {
		size := p.table.sizes[i]
		m.Classes[i] = ClassMetrics{
			BlockSize:  size,
			InUse:      cs.inUse,
			Free:       len(cs.free),
			Allocs:     cs.allocs,
			Frees:      cs.frees,
			BytesInUse: cs.inUse * size,
		}
		m.BlocksInUse += cs.inUse
		m.BytesInUse += cs.inUse * size
	}
	return m
}

// PoolMetrics contains statistical information about a pool.
type PoolMetrics struct {
	Config      string         // Size class configuration name
	NumSlabs    int            // Slabs carved so far
	SlabBytes   int            // Total slab memory
	BlocksInUse int            // Blocks currently handed out
	BytesInUse  int            // Block bytes currently handed out
	Classes     []ClassMetrics // Per-class breakdown
}

// ClassMetrics describes one size class.
type ClassMetrics struct {
	BlockSize  int
	InUse      int
	Free       int
	Allocs     uint64
	Frees      uint64
	BytesInUse int
}
