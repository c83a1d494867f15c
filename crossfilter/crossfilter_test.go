package crossfilter

import (
	"cmp"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spektr-org/crossfacet/dataset"
)

// hundred returns 100 records: n = 0..99, color cycling red/green/blue/gold
// and size small for n < 60, large otherwise.
func hundred(t *testing.T) *dataset.Dataset {
	t.Helper()
	colors := []string{"red", "green", "blue", "gold"}
	records := make([]dataset.Record, 100)
	for i := range records {
		size := "large"
		if i < 60 {
			size = "small"
		}
		records[i] = dataset.Record{
			"gid":   fmt.Sprintf("r%02d", i),
			"n":     float64(i),
			"color": colors[i%4],
			"size":  size,
		}
	}
	ds := dataset.New()
	require.NoError(t, ds.Load(records))
	return ds
}

func numberDim(cf *Crossfilter) *Dimension[float64] {
	return NewDimension(cf, func(r dataset.Record) float64 { return r["n"].(float64) }, cmp.Compare[float64])
}

func stringDim(cf *Crossfilter, field string) *Dimension[string] {
	return NewDimension(cf, func(r dataset.Record) string { return r[field].(string) }, cmp.Compare[string])
}

func counts[K comparable](g *Group[K, int]) map[K]int {
	out := make(map[K]int)
	for _, kv := range g.All() {
		out[kv.Key] = kv.Value
	}
	return out
}

func TestGroupReflectsOtherFilters(t *testing.T) {
	cf := New(hundred(t))
	n := numberDim(cf)
	color := stringDim(cf, "color")
	byColor := NewGroup(color, Count())

	require.NoError(t, n.Filter(Range(0.0, 60.0, cmp.Compare[float64])))

	got := counts(byColor)
	assert.Equal(t, map[string]int{"red": 15, "green": 15, "blue": 15, "gold": 15}, got)

	total := 0
	for _, c := range got {
		total += c
	}
	assert.Equal(t, 60, total)
	assert.Len(t, cf.AllFiltered(), 60)
}

func TestGroupIgnoresOwnFilter(t *testing.T) {
	cf := New(hundred(t))
	color := stringDim(cf, "color")
	byColor := NewGroup(color, Count())

	require.NoError(t, color.Filter(Exact("red")))

	assert.Equal(t, map[string]int{"red": 25, "green": 25, "blue": 25, "gold": 25}, counts(byColor))
	assert.Len(t, cf.AllFiltered(), 25)
	assert.Equal(t, 25, byColor.Value())
}

func TestGroupKeepsEmptyKeysSorted(t *testing.T) {
	cf := New(hundred(t))
	color := stringDim(cf, "color")
	size := stringDim(cf, "size")
	bySize := NewGroup(size, Count())
	require.NoError(t, color.Filter(In("nope")))

	all := bySize.All()
	require.Len(t, all, 2)
	assert.Equal(t, "large", all[0].Key)
	assert.Equal(t, "small", all[1].Key)
	assert.Zero(t, all[0].Value)
	assert.Zero(t, all[1].Value)
	assert.Equal(t, 2, bySize.Size())
}

func TestFilterCommutativity(t *testing.T) {
	apply := func(firstColor bool) map[string]int {
		cf := New(hundred(t))
		n := numberDim(cf)
		color := stringDim(cf, "color")
		size := stringDim(cf, "size")
		bySize := NewGroup(size, Count())

		if firstColor {
			require.NoError(t, color.Filter(In("red", "blue")))
			require.NoError(t, n.Filter(Range(10.0, 70.0, cmp.Compare[float64])))
		} else {
			require.NoError(t, n.Filter(Range(10.0, 70.0, cmp.Compare[float64])))
			require.NoError(t, color.Filter(In("red", "blue")))
		}
		return counts(bySize)
	}

	assert.Equal(t, apply(true), apply(false))
}

func TestDisposeRestoresOtherGroups(t *testing.T) {
	ds := hundred(t)

	baseline := New(ds)
	baseColor := stringDim(baseline, "color")
	want := counts(NewGroup(baseColor, Count()))

	cf := New(ds)
	color := stringDim(cf, "color")
	byColor := NewGroup(color, Count())
	n := numberDim(cf)
	require.NoError(t, n.Filter(Range(0.0, 10.0, cmp.Compare[float64])))
	require.NotEqual(t, want, counts(byColor))

	n.Dispose()
	assert.Equal(t, want, counts(byColor))
	assert.Equal(t, 1, cf.Dimensions())
	assert.False(t, cf.IsFiltered())
	assert.ErrorIs(t, n.Filter(Exact(1.0)), ErrDisposed)
	assert.Nil(t, NewGroup(n, Count()).All())

	n.Dispose() // second dispose is a no-op
	assert.Equal(t, 1, cf.Dimensions())
}

func TestLazyKeysAfterLoad(t *testing.T) {
	ds := dataset.New()
	cf := New(ds)
	size := stringDim(cf, "size")
	bySize := NewGroup(size, Count())

	assert.Empty(t, bySize.All(), "groups are empty before the load")

	require.NoError(t, ds.Load([]dataset.Record{
		{"size": "small"}, {"size": "large"}, {"size": "small"},
	}))
	assert.Equal(t, map[string]int{"small": 2, "large": 1}, counts(bySize))
}

func TestTop(t *testing.T) {
	cf := New(hundred(t))
	n := numberDim(cf)
	color := stringDim(cf, "color")
	require.NoError(t, color.Filter(Exact("gold")))

	top := n.Top(3)
	require.Len(t, top, 3)
	assert.Equal(t, 99.0, top[0]["n"])
	assert.Equal(t, 95.0, top[1]["n"])
	assert.Equal(t, 91.0, top[2]["n"])

	assert.Nil(t, n.Top(0))
}

func TestFilterNilClears(t *testing.T) {
	cf := New(hundred(t))
	color := stringDim(cf, "color")
	require.NoError(t, color.Filter(Exact("red")))
	assert.True(t, color.HasFilter())

	require.NoError(t, color.Filter(nil))
	assert.False(t, color.HasFilter())
	assert.Len(t, cf.AllFiltered(), 100)
}

func TestRangeIsHalfOpen(t *testing.T) {
	r := Range(10.0, 20.0, cmp.Compare[float64])
	assert.True(t, r.Match(10))
	assert.True(t, r.Match(19.99))
	assert.False(t, r.Match(20))
	assert.False(t, r.Match(9.99))
}

func TestMetrics(t *testing.T) {
	applied := testutil.ToFloat64(filterChanges.WithLabelValues("apply"))
	cleared := testutil.ToFloat64(filterChanges.WithLabelValues("clear"))
	active := testutil.ToFloat64(activeDimensions)

	cf := New(hundred(t))
	color := stringDim(cf, "color")
	assert.Equal(t, active+1, testutil.ToFloat64(activeDimensions))

	require.NoError(t, color.Filter(Exact("red")))
	require.NoError(t, color.FilterAll())
	require.NoError(t, color.FilterAll()) // no filter, nothing to clear

	assert.Equal(t, applied+1, testutil.ToFloat64(filterChanges.WithLabelValues("apply")))
	assert.Equal(t, cleared+1, testutil.ToFloat64(filterChanges.WithLabelValues("clear")))

	color.Dispose()
	assert.Equal(t, active, testutil.ToFloat64(activeDimensions))
}
