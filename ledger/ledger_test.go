package ledger

import (
	"bytes"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackUntrackRoundTrip(t *testing.T) {
	l := New()

	l.Track("frames", 128)
	l.Track("strings", 64)
	l.Track("frames", 32)
	require.Equal(t, uint64(224), l.Global())
	require.Equal(t, uint64(160), l.Category("frames"))

	require.False(t, l.Untrack("frames", 160))
	require.False(t, l.Untrack("strings", 64))
	require.Zero(t, l.Global())
	require.Zero(t, l.Category("frames"))
	require.Equal(t, uint64(224), l.Peak())
	require.Zero(t, l.Inconsistencies())
}

func TestEmptyCategoryOnlyTouchesGlobal(t *testing.T) {
	l := New()
	l.Track("", 10)
	require.Equal(t, uint64(10), l.Global())
	require.Empty(t, l.Snapshot().Categories)
}

func TestUntrackClampsAndFlags(t *testing.T) {
	var buf bytes.Buffer
	l := New(WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))

	l.Track("a", 10)
	l.Track("b", 100)

	// Category a only holds 10 bytes; global has enough.
	require.True(t, l.Untrack("a", 50))
	assert.Zero(t, l.Category("a"))
	assert.Equal(t, uint64(60), l.Global())
	assert.Equal(t, uint64(1), l.Inconsistencies())
	assert.Contains(t, buf.String(), "accounting inconsistency")

	// Global clamps too, never wraps.
	require.True(t, l.Untrack("b", 1000))
	assert.Zero(t, l.Global())
	assert.Zero(t, l.Category("b"))
	assert.Equal(t, uint64(2), l.Inconsistencies())
}

func TestTrackSaturatesInsteadOfWrapping(t *testing.T) {
	l := New()
	l.Track("x", ^uint64(0)-1)
	l.Track("x", 10)
	require.Equal(t, ^uint64(0), l.Global())
	require.Equal(t, ^uint64(0), l.Category("x"))
	require.Equal(t, uint64(1), l.Inconsistencies())
}

func TestSnapshotSorted(t *testing.T) {
	l := New()
	l.Track("zeta", 1)
	l.Track("alpha", 2)
	l.Track("mid", 3)

	s := l.Snapshot()
	require.Equal(t, uint64(6), s.Global)
	require.Equal(t, []CategoryUsage{
		{Name: "alpha", Bytes: 2},
		{Name: "mid", Bytes: 3},
		{Name: "zeta", Bytes: 1},
	}, s.Categories)
}

func TestConcurrentTrackUntrack(t *testing.T) {
	l := New()

	var wg sync.WaitGroup
	for w := 0; w < 16; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				l.Track("hot", 8)
				l.Untrack("hot", 8)
			}
		}()
	}
	wg.Wait()

	require.Zero(t, l.Global())
	require.Zero(t, l.Category("hot"))
	require.Zero(t, l.Inconsistencies())
}
