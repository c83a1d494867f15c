package coordinator

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spektr-org/crossfacet/aggregate"
	"github.com/spektr-org/crossfacet/dataset"
	"github.com/spektr-org/crossfacet/facet"
)

// ============================================================================
// FIXTURES
// ============================================================================

var regions = []string{"north", "south", "east"}

// hundredRecords has 60 records scoring below 50 and 40 scoring 50 or more.
// Regions cycle north, south, east.
func hundredRecords(t *testing.T) *dataset.Dataset {
	t.Helper()
	records := make([]dataset.Record, 100)
	for i := range records {
		score := float64(i) * 50 / 60
		if i >= 60 {
			score = 50 + float64(i-60)
		}
		records[i] = dataset.Record{
			"gid":    fmt.Sprintf("r%03d", i),
			"score":  score,
			"region": regions[i%3],
			"size":   float64(i % 7),
		}
	}
	ds := dataset.New()
	require.NoError(t, ds.Load(records))
	return ds
}

func scoreFacet(bins float64) *facet.Facet {
	return facet.MustCompile(facet.Config{
		Name: "score", MinvalText: "0", MaxvalText: "100", Bins: bins, Grouping: "fixedn",
	})
}

func sizeFacet() *facet.Facet {
	return facet.MustCompile(facet.Config{
		Name: "size", MinvalText: "0", MaxvalText: "7", Bins: 7,
	})
}

func regionFacet() *facet.Facet {
	return facet.MustCompile(facet.Config{
		Name: "region",
		Type: "categorical",
		Categories: []facet.CategoryConfig{
			{Category: "north", Group: "north"},
			{Category: "south", Group: "south"},
			{Category: "east", Group: "east"},
		},
	})
}

func regionCounts(w *Widget) map[string]float64 {
	out := make(map[string]float64)
	for _, g := range w.Groups() {
		out[g.Key.String()] = g.Value
	}
	return out
}

func total(counts map[string]float64) float64 {
	sum := 0.0
	for _, v := range counts {
		sum += v
	}
	return sum
}

// ============================================================================
// LINKED FILTERS
// ============================================================================

func TestRangeFilterPropagates(t *testing.T) {
	c := New(hundredRecords(t))
	scores, err := c.AddWidget(Bar, Facets{Primary: scoreFacet(10)})
	require.NoError(t, err)
	byRegion, err := c.AddWidget(Bar, Facets{Primary: regionFacet()})
	require.NoError(t, err)

	assert.Equal(t, 100.0, total(regionCounts(byRegion)))

	require.NoError(t, scores.Filter(aggregate.SelectRange(facet.Number(0), facet.Number(50))))

	counts := regionCounts(byRegion)
	assert.Equal(t, 60.0, total(counts))
	assert.Equal(t, map[string]float64{"north": 20, "south": 20, "east": 20}, counts)
	assert.Len(t, c.Filtered(), 60)

	// The filtering widget still sees every bin.
	sum := 0.0
	for _, g := range scores.Groups() {
		sum += g.Value
	}
	assert.Equal(t, 100.0, sum)

	require.NoError(t, scores.ClearFilter())
	assert.Equal(t, 100.0, total(regionCounts(byRegion)))
}

func TestFilterOrderDoesNotMatter(t *testing.T) {
	run := func(scoreFirst bool) map[string]float64 {
		c := New(hundredRecords(t))
		scores, err := c.AddWidget(Bar, Facets{Primary: scoreFacet(10)})
		require.NoError(t, err)
		sizes, err := c.AddWidget(Bar, Facets{Primary: sizeFacet()})
		require.NoError(t, err)
		byRegion, err := c.AddWidget(Bar, Facets{Primary: regionFacet()})
		require.NoError(t, err)

		scoreSel := aggregate.SelectRange(facet.Number(20), facet.Number(80))
		sizeSel := aggregate.SelectKeys(facet.Number(0.5), facet.Number(3.5))
		if scoreFirst {
			require.NoError(t, scores.Filter(scoreSel))
			require.NoError(t, sizes.Filter(sizeSel))
		} else {
			require.NoError(t, c.Filter(sizes.ID(), sizeSel))
			require.NoError(t, c.Filter(scores.ID(), scoreSel))
		}
		return regionCounts(byRegion)
	}

	a, b := run(true), run(false)
	assert.Equal(t, a, b)
	assert.NotZero(t, total(a))
}

func TestClosedWidgetLeavesNoTrace(t *testing.T) {
	ds := hundredRecords(t)

	baseline := New(ds)
	ref, err := baseline.AddWidget(Bar, Facets{Primary: regionFacet()})
	require.NoError(t, err)
	want := ref.Groups()

	c := New(ds)
	byRegion, err := c.AddWidget(Bar, Facets{Primary: regionFacet()})
	require.NoError(t, err)
	scores, err := c.AddWidget(Bar, Facets{Primary: scoreFacet(10)})
	require.NoError(t, err)
	require.NoError(t, scores.Filter(aggregate.SelectRange(facet.Number(0), facet.Number(30))))
	require.NotEqual(t, want, byRegion.Groups())

	require.NoError(t, scores.Close())
	assert.Equal(t, want, byRegion.Groups())
	assert.Equal(t, 1, c.Crossfilter().Dimensions())
	assert.Len(t, c.Widgets(), 1)

	_, err = c.Widget(scores.ID())
	assert.ErrorIs(t, err, ErrUnknownWidget)
	assert.ErrorIs(t, scores.Filter(aggregate.SelectKeys(facet.Number(5))), ErrUnknownWidget)
	assert.NoError(t, scores.Close(), "closing twice is a no-op")
}

func TestRebuildKeepsSelection(t *testing.T) {
	c := New(hundredRecords(t))
	scores, err := c.AddWidget(Bar, Facets{Primary: scoreFacet(10)})
	require.NoError(t, err)
	byRegion, err := c.AddWidget(Bar, Facets{Primary: regionFacet()})
	require.NoError(t, err)

	sel := aggregate.SelectRange(facet.Number(0), facet.Number(50))
	require.NoError(t, scores.Filter(sel))

	require.NoError(t, scores.Rebuild(Facets{Primary: scoreFacet(20)}))
	assert.Equal(t, sel, scores.Selection())
	assert.True(t, scores.HasFilter())
	assert.Equal(t, 20, scores.Facets().Primary.Binning().Len())
	assert.Equal(t, 60.0, total(regionCounts(byRegion)))
	assert.Equal(t, 2, c.Crossfilter().Dimensions(), "old dimension is disposed")
}

func TestFailedRebuildKeepsWidget(t *testing.T) {
	c := New(hundredRecords(t))
	scatter, err := c.AddWidget(Scatter, Facets{Primary: scoreFacet(10), Secondary: sizeFacet()})
	require.NoError(t, err)

	rect := aggregate.SelectRect(facet.Number(0), facet.Number(50), facet.Number(0), facet.Number(3))
	require.NoError(t, scatter.Filter(rect))

	err = scatter.Rebuild(Facets{Primary: scoreFacet(10)})
	assert.ErrorIs(t, err, ErrMissingFacet)
	assert.Equal(t, rect, scatter.Selection())
	assert.True(t, scatter.HasFilter())
	assert.NotNil(t, scatter.Facets().Secondary)
	assert.Equal(t, 1, c.Crossfilter().Dimensions())
}

func TestSubscribe(t *testing.T) {
	c := New(hundredRecords(t))
	scores, err := c.AddWidget(Bar, Facets{Primary: scoreFacet(10)})
	require.NoError(t, err)

	var events []Event
	unsubscribe := c.Subscribe(func(e Event) { events = append(events, e) })

	sel := aggregate.SelectKeys(facet.Number(5))
	require.NoError(t, scores.Filter(sel))
	require.NoError(t, scores.ClearFilter())

	require.Len(t, events, 2)
	assert.Equal(t, Event{Kind: Filtered, Widget: scores.ID(), Selection: sel}, events[0])
	assert.Equal(t, Cleared, events[1].Kind)

	unsubscribe()
	require.NoError(t, scores.Filter(sel))
	assert.Len(t, events, 2)
}

// ============================================================================
// SCATTER & HEATMAP
// ============================================================================

func TestScatterPoints(t *testing.T) {
	c := New(hundredRecords(t))
	scatter, err := c.AddWidget(Scatter, Facets{Primary: scoreFacet(10), Secondary: sizeFacet()})
	require.NoError(t, err)

	count := 0
	for _, p := range scatter.Points() {
		assert.False(t, p.X.IsMissing())
		assert.False(t, p.Y.IsMissing())
		count += p.Count
	}
	assert.Equal(t, 100, count)
	assert.Nil(t, scatter.Groups())
	assert.Nil(t, scatter.Chart("scatter"))
}

func TestHeatmap(t *testing.T) {
	c := New(hundredRecords(t))
	byRegion, err := c.AddWidget(Bar, Facets{Primary: regionFacet()})
	require.NoError(t, err)
	heat, err := c.AddWidget(Heatmap, Facets{Tertiary: scoreFacet(10)})
	require.NoError(t, err)

	require.NoError(t, byRegion.Filter(aggregate.SelectKeys(facet.Label("north"))))

	h := heat.Heatmap()
	require.NotNil(t, h)
	assert.Len(t, h.Values, 34)
	assert.Equal(t, 34, h.Count)
	assert.Equal(t, 0.0, h.Min)
	assert.Equal(t, 100.0, h.Max)

	sum := 0.0
	for i := 0; i < 100; i += 3 {
		x, _ := h.Values[fmt.Sprintf("r%03d", i)].Float()
		sum += x
	}
	assert.InDelta(t, sum/34, h.Mean, 1e-9)

	norm := h.Normalized()
	assert.InDelta(t, 0.89, norm["r099"], 1e-9)
	assert.Equal(t, "r000", h.IDs()[0])

	assert.ErrorIs(t, heat.Filter(aggregate.SelectKeys(facet.Number(1))), ErrSelection)
}

func TestHeatmapWithoutFacet(t *testing.T) {
	c := New(hundredRecords(t))
	byRegion, err := c.AddWidget(Bar, Facets{Primary: regionFacet()})
	require.NoError(t, err)
	heat, err := c.AddWidget(Heatmap, Facets{})
	require.NoError(t, err)
	require.NoError(t, byRegion.Filter(aggregate.SelectKeys(facet.Label("east"))))

	h := heat.Heatmap()
	assert.Len(t, h.Values, 33)
	for _, v := range h.Values {
		assert.True(t, v.IsMissing())
	}
	assert.Zero(t, h.Count)
	assert.Equal(t, 1, c.Crossfilter().Dimensions(), "temporary id dimension is disposed")
}

// ============================================================================
// ERRORS
// ============================================================================

func TestWidgetErrors(t *testing.T) {
	c := New(hundredRecords(t))

	_, err := c.AddWidget(Bar, Facets{})
	assert.ErrorIs(t, err, ErrMissingFacet)
	_, err = c.AddWidget(Scatter, Facets{Primary: scoreFacet(10)})
	assert.ErrorIs(t, err, ErrMissingFacet)
	_, err = c.AddWidget(Kind("pie"), Facets{Primary: scoreFacet(10)})
	assert.ErrorIs(t, err, ErrUnknownKind)

	assert.ErrorIs(t, c.Filter(uuid.New(), aggregate.SelectKeys(facet.Number(1))), ErrUnknownWidget)
	assert.ErrorIs(t, c.RemoveWidget(uuid.New()), ErrUnknownWidget)

	bar, err := c.AddWidget(Bar, Facets{Primary: scoreFacet(10)})
	require.NoError(t, err)
	rect := aggregate.SelectRect(facet.Number(0), facet.Number(1), facet.Number(0), facet.Number(1))
	assert.ErrorIs(t, bar.Filter(rect), ErrSelection)
	assert.False(t, bar.HasFilter())

	for in, want := range map[string]Kind{"barchart": Bar, "Scatterplot": Scatter, "map": Heatmap} {
		got, err := ParseKind(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err = ParseKind("radar")
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestStackedBarWidget(t *testing.T) {
	c := New(hundredRecords(t))
	pct := regionFacet().Config()
	pct.ReductionType = "percentage"
	stacked, err := c.AddWidget(Bar, Facets{Primary: scoreFacet(10), Secondary: facet.MustCompile(pct)})
	require.NoError(t, err)

	_, ok := stacked.Spec().(*aggregate.Stacked)
	require.True(t, ok, "a categorical secondary stacks the bars")

	for _, g := range stacked.Groups() {
		if g.Count == 0 {
			continue
		}
		sum := 0.0
		for _, l := range g.Layers {
			sum += l.Value
		}
		assert.InDelta(t, 100, sum, 1e-9)
	}

	chart := stacked.Chart("Score by region")
	require.NotNil(t, chart)
	assert.Len(t, chart.Series, 3)
	assert.NotNil(t, stacked.Table("Score by region"))
}
