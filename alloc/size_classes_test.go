package alloc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_SizeClasses_Balanced(t *testing.T) {
	table := newSizeClassTable(ConfigBalanced)

	// 16..512 step 16 is 32 classes, then geometric growth to 16KB.
	require.Equal(t, 16, table.sizes[0])
	require.Equal(t, 512, table.sizes[31])
	require.Equal(t, 768, table.sizes[32])
	require.Equal(t, 16384, table.largest())

	for i := 1; i < len(table.sizes); i++ {
		require.Greater(t, table.sizes[i], table.sizes[i-1], "class %d not ascending", i)
		require.Zero(t, table.sizes[i]%blockAlign, "class %d not aligned", i)
	}
}

func Test_SizeClasses_SmallObjectHasNoMediumClasses(t *testing.T) {
	table := newSizeClassTable(ConfigSmallObject)
	require.Equal(t, 32, table.NumClasses())
	require.Equal(t, 512, table.largest())
}

func Test_SizeClasses_ClassFor(t *testing.T) {
	table := newSizeClassTable(ConfigCoarse)

	cases := []struct {
		n    int
		want int // block size
	}{
		{1, 32},
		{32, 32},
		{33, 64},
		{512, 512},
		{513, 1024},
		{16384, 16384},
	}
	for _, tc := range cases {
		c := table.classFor(tc.n)
		require.Less(t, c, table.NumClasses(), "n=%d", tc.n)
		require.Equal(t, tc.want, table.sizes[c], "n=%d", tc.n)
	}
	require.Equal(t, table.NumClasses(), table.classFor(16385))
}

func Test_SizeClasses_Validate(t *testing.T) {
	for name, cfg := range Configs {
		require.NoError(t, cfg.Validate(), name)
	}

	bad := ConfigBalanced
	bad.GrowthFactor = 1
	require.Error(t, bad.Validate())

	bad = ConfigBalanced
	bad.SmallIncrement = 0
	require.Error(t, bad.Validate())

	bad = ConfigBalanced
	bad.MediumMax = 128
	require.Error(t, bad.Validate())

	_, err := NewPoolChecked(bad)
	require.Error(t, err)
}
