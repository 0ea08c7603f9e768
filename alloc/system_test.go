package alloc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_System_AllocCommitsWholePages(t *testing.T) {
	s := NewSystem()
	page := s.PageSize()

	b, err := s.Alloc(100)
	require.NoError(t, err)
	require.Len(t, b, 100)
	require.Equal(t, int(page), cap(b))
	require.Equal(t, page, s.CurrentHeapBytes())

	// Memory is writable across the whole committed region.
	full := b[:cap(b)]
	full[len(full)-1] = 0xff

	s.Free(b)
	require.Zero(t, s.CurrentHeapBytes())

	m := s.Metrics()
	require.Equal(t, uint64(1), m.Maps)
	require.Equal(t, uint64(1), m.Unmaps)
}

func Test_System_Estimate(t *testing.T) {
	s := NewSystem()
	page := s.PageSize()

	size, pooled := s.Estimate(int(page) + 1)
	require.False(t, pooled)
	require.Equal(t, 2*page, size)

	size, _ = s.Estimate(0)
	require.Equal(t, page, size)
}

func Test_System_LimitReportsOutOfMemory(t *testing.T) {
	s := NewSystem()
	limited := NewSystem(WithSystemLimit(s.PageSize()))

	b, err := limited.Alloc(10)
	require.NoError(t, err)

	_, err = limited.Alloc(10)
	require.ErrorIs(t, err, ErrOutOfMemory)
	require.Equal(t, s.PageSize(), limited.CurrentHeapBytes())

	limited.Free(b)
	_, err = limited.Alloc(10)
	require.NoError(t, err)
}

func Test_System_ReallocWithinPagesKeepsBlock(t *testing.T) {
	s := NewSystem()

	a, err := s.Alloc(10)
	require.NoError(t, err)
	a[0] = 7

	b, err := s.Realloc(a, 20)
	require.NoError(t, err)
	require.Same(t, &a[0], &b[0])

	c, err := s.Realloc(b, int(s.PageSize())*3)
	require.NoError(t, err)
	require.Equal(t, byte(7), c[0])
	require.Equal(t, 3*s.PageSize(), s.CurrentHeapBytes())

	s.Free(c)
	require.Zero(t, s.CurrentHeapBytes())
}

func Test_System_NegativeSize(t *testing.T) {
	s := NewSystem()
	_, err := s.Alloc(-5)
	require.ErrorIs(t, err, ErrNegativeSize)
}
