package alloc

import "errors"

// Tiered routes requests up to the pool's largest class to the pool and
// everything else to a large-object allocator. When the pool cannot grow,
// small requests fall through to the large-object allocator as well.
type Tiered struct {
	pool  *Pool
	large Allocator
}

// NewTiered composes pool and large. large is typically a *System.
func NewTiered(pool *Pool, large Allocator) *Tiered {
	return &Tiered{pool: pool, large: large}
}

// Pool returns the size-class tier.
func (t *Tiered) Pool() *Pool { return t.pool }

// Large returns the large-object tier.
func (t *Tiered) Large() Allocator { return t.large }

// Alloc serves n bytes from the pool when possible.
func (t *Tiered) Alloc(n int) ([]byte, error) {
	if n < 0 {
		return nil, ErrNegativeSize
	}
	if n <= t.pool.MaxBlock() {
		b, err := t.pool.Alloc(n)
		if err == nil || !errors.Is(err, ErrOutOfMemory) {
			return b, err
		}
	}
	return t.large.Alloc(n)
}

// Realloc resizes b, moving it between tiers when the new size requires it.
func (t *Tiered) Realloc(b []byte, n int) ([]byte, error) {
	if n < 0 {
		return nil, ErrNegativeSize
	}
	if cap(b) == 0 {
		return t.Alloc(n)
	}
	owned := t.pool.Owns(b)
	switch {
	case owned && n <= t.pool.MaxBlock():
		nb, err := t.pool.Realloc(b, n)
		if err == nil || !errors.Is(err, ErrOutOfMemory) {
			return nb, err
		}
	case !owned && n > t.pool.MaxBlock():
		return t.large.Realloc(b, n)
	}

	nb, err := t.Alloc(n)
	if err != nil {
		return nil, err
	}
	copy(nb, b)
	t.Free(b)
	return nb, nil
}

// Free returns b to whichever tier served it.
func (t *Tiered) Free(b []byte) {
	if t.pool.Owns(b) {
		t.pool.Free(b)
		return
	}
	t.large.Free(b)
}

// Owns reports whether b was served by the pool tier.
func (t *Tiered) Owns(b []byte) bool { return t.pool.Owns(b) }

// BlockSize returns the pool block size of b, or 0 for large-tier blocks.
func (t *Tiered) BlockSize(b []byte) uint64 { return t.pool.BlockSize(b) }

// Estimate predicts the committed size of a request.
func (t *Tiered) Estimate(n int) (uint64, bool) {
	if size, ok := t.pool.Estimate(n); ok {
		return size, true
	}
	if e, ok := t.large.(Estimator); ok {
		size, _ := e.Estimate(n)
		return size, false
	}
	if n < 0 {
		return 0, false
	}
	return uint64(n), false
}

// CurrentHeapBytes samples the large tier's heap statistic, if it has one.
func (t *Tiered) CurrentHeapBytes() uint64 {
	if hs, ok := t.large.(HeapStat); ok {
		return hs.CurrentHeapBytes()
	}
	return 0
}

// HasHeapStat reports whether CurrentHeapBytes is meaningful.
func (t *Tiered) HasHeapStat() bool {
	_, ok := t.large.(HeapStat)
	return ok
}
