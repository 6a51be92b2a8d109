package search

import (
	"context"
	"testing"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompare(t *testing.T) {
	engine := newTestEngine(seedStore(t, siberia...))

	reports, err := Compare(context.Background(), engine, map[string][]string{
		"short": {"N", "Т"},
		"long":  {"Novosibirsky", "Tomsk Oblast"},
	}, 2)
	require.NoError(t, err)
	require.Len(t, reports, 2)

	assert.Equal(t, "long", reports[0].Group)
	assert.Equal(t, "short", reports[1].Group)
	for _, r := range reports {
		assert.Equal(t, 2, r.Queries)
		require.Len(t, r.Timings, len(Strategies))
		for i, timing := range r.Timings {
			assert.Equal(t, Strategies[i], timing.Strategy)
		}
	}
	assert.Empty(t, reports[0].Mismatches)
}

func TestDiff(t *testing.T) {
	want := roaring64.BitmapOf(1, 2, 3)
	got := roaring64.BitmapOf(2, 3, 4)

	m, ok := diff("q", RankSort, want, got)
	assert.False(t, ok)
	assert.Equal(t, []int64{1}, m.Missing)
	assert.Equal(t, []int64{4}, m.Extra)
	assert.Equal(t, "rank_sort", m.Strategy)

	_, ok = diff("q", RankSort, want, want.Clone())
	assert.True(t, ok)
}
