package quota

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistry_AttachDetach(t *testing.T) {
	r := NewRegistry(NoLimits())

	g, err := r.Attach("a")
	require.NoError(t, err)
	require.Equal(t, Unbounded, g.State())

	again, err := r.Attach("a")
	require.NoError(t, err)
	require.Same(t, g, again)

	require.NoError(t, g.Reserve(42))
	st, err := r.Detach("a")
	require.NoError(t, err)
	require.Equal(t, uint64(42), st.Used)

	_, ok := r.Guard("a")
	require.False(t, ok)

	_, err = r.Detach("a")
	require.ErrorIs(t, err, ErrUnknownContext)
}

func TestRegistry_NoContextIsNeverAttached(t *testing.T) {
	r := NewRegistry(NoLimits())

	_, err := r.Attach(NoContext)
	require.ErrorIs(t, err, ErrNoContext)
	require.ErrorIs(t, r.SetQuota(NoContext, 10), ErrNoContext)

	_, ok := r.Guard(NoContext)
	require.False(t, ok)
}

func TestRegistry_AdminOperations(t *testing.T) {
	r := NewRegistry(NoLimits())

	require.NoError(t, r.SetQuota("a", 1000))
	g, ok := r.Guard("a")
	require.True(t, ok)
	c, bounded := g.Cap()
	require.True(t, bounded)
	require.Equal(t, uint64(1000), c)

	require.NoError(t, g.Reserve(600))
	used, err := r.CurrentUsage("a")
	require.NoError(t, err)
	require.Equal(t, uint64(600), used)

	require.NoError(t, r.ClearQuota("a"))
	require.Equal(t, Unbounded, g.State())

	_, err = r.CurrentUsage("missing")
	require.ErrorIs(t, err, ErrUnknownContext)
	require.ErrorIs(t, r.ClearQuota("missing"), ErrUnknownContext)
}

func TestRegistry_LimitsApplied(t *testing.T) {
	r := NewRegistry(Limits{ContextCap: 256, MaxContexts: 2})

	g, err := r.Attach("a")
	require.NoError(t, err)
	c, bounded := g.Cap()
	require.True(t, bounded)
	require.Equal(t, uint64(256), c)

	_, err = r.Attach("b")
	require.NoError(t, err)
	_, err = r.Attach("c")
	require.ErrorIs(t, err, ErrTooManyContexts)
	require.ErrorIs(t, r.SetQuota("c", 1), ErrTooManyContexts)

	require.Equal(t, 2, r.Len())
}

func TestRegistry_ContextsSorted(t *testing.T) {
	r := NewRegistry(NoLimits())
	for _, id := range []ContextID{"c", "a", "b"} {
		_, err := r.Attach(id)
		require.NoError(t, err)
	}

	var ids []ContextID
	for _, st := range r.Contexts() {
		ids = append(ids, st.Context)
	}
	require.Equal(t, []ContextID{"a", "b", "c"}, ids)
}

func TestRegistry_ConcurrentAttachReturnsOneGuard(t *testing.T) {
	r := NewRegistry(NoLimits())

	guards := make([]*Guard, 32)
	var wg sync.WaitGroup
	for i := range guards {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			g, err := r.Attach("shared")
			if err == nil {
				guards[i] = g
			}
		}(i)
	}
	wg.Wait()

	for _, g := range guards {
		require.Same(t, guards[0], g)
	}
}

func TestLimitPresets(t *testing.T) {
	require.Greater(t, DefaultLimits().ContextCap, StrictLimits().ContextCap)
	require.Greater(t, DefaultLimits().MaxContexts, StrictLimits().MaxContexts)
	require.Zero(t, NoLimits().ContextCap)
}
