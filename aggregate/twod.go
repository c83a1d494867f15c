package aggregate

import (
	"fmt"

	"github.com/spektr-org/crossfacet/crossfilter"
	"github.com/spektr-org/crossfacet/dataset"
	"github.com/spektr-org/crossfacet/facet"
)

// Pair is the key of a two-dimensional group.
type Pair struct {
	X facet.Value
	Y facet.Value
}

func comparePairs(a, b Pair) int {
	if c := facet.Compare(a.X, b.X); c != 0 {
		return c
	}
	return facet.Compare(a.Y, b.Y)
}

// TwoD counts records per (primary, secondary) group pair.
type TwoD struct {
	filterable[Pair]

	primary   *facet.Facet
	secondary *facet.Facet
	group     *crossfilter.Group[Pair, int]
}

// NewTwoD attaches a dimension keyed by both facets' group keys.
func NewTwoD(cf *crossfilter.Crossfilter, primary, secondary *facet.Facet) *TwoD {
	key := func(r dataset.Record) Pair {
		return Pair{X: primary.Key(r), Y: secondary.Key(r)}
	}
	dim := crossfilter.NewDimension(cf, key, comparePairs)
	return &TwoD{
		filterable: filterable[Pair]{dim: dim, build: pairFilter},
		primary:    primary,
		secondary:  secondary,
		group:      crossfilter.NewGroup(dim, crossfilter.Count()),
	}
}

func (t *TwoD) Primary() *facet.Facet   { return t.primary }
func (t *TwoD) Secondary() *facet.Facet { return t.secondary }

// All returns the raw counts per pair, Missing keys included.
func (t *TwoD) All() []crossfilter.KeyValue[Pair, int] {
	return t.group.All()
}

// RenderAll returns the groups with every key a renderer can place:
// Missing keys move just outside the facet's domain, and empty groups are
// pushed below the secondary axis.
func (t *TwoD) RenderAll() []Point {
	groups := t.group.All()
	out := make([]Point, 0, len(groups))
	for _, kv := range groups {
		p := Point{X: kv.Key.X, Y: kv.Key.Y, Count: kv.Value}
		if p.X.IsMissing() {
			p.X = t.primary.OutsideDomain()
		}
		if p.Y.IsMissing() {
			p.Y = t.secondary.OutsideDomain()
		}
		if p.Count == 0 {
			p.Y = t.secondary.OutsideDomain()
		}
		out = append(out, p)
	}
	return out
}

// pairFilter accepts rectangles, X ranges and X keys.
func pairFilter(sel Selection) (crossfilter.Filter[Pair], error) {
	switch {
	case sel.Rect != nil:
		r := *sel.Rect
		return crossfilter.FilterFunc[Pair](func(p Pair) bool {
			return r.X.Contains(p.X) && r.Y.Contains(p.Y)
		}), nil
	case sel.Range != nil:
		r := *sel.Range
		return crossfilter.FilterFunc[Pair](func(p Pair) bool {
			return r.Contains(p.X)
		}), nil
	case len(sel.Keys) > 0:
		keys := crossfilter.In(sel.Keys...)
		return crossfilter.FilterFunc[Pair](func(p Pair) bool {
			return keys.Match(p.X)
		}), nil
	default:
		return nil, fmt.Errorf("%w: empty selection", ErrSelection)
	}
}
