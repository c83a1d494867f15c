package aggregate

import (
	"github.com/spektr-org/crossfacet/crossfilter"
	"github.com/spektr-org/crossfacet/dataset"
	"github.com/spektr-org/crossfacet/facet"
)

// Stack is the per-bin aggregate of a stacked chart: a tally per category
// of the stacking facet and one over the whole bin.
type Stack struct {
	Total      Tally
	Categories map[facet.Value]*Tally
}

// Tally returns the tally of one category, empty if it has no records.
func (s *Stack) Tally(category facet.Value) Tally {
	if t, ok := s.Categories[category]; ok {
		return *t
	}
	return Tally{}
}

// Stacked groups records by the primary facet and splits every bin by the
// categories of a categorical secondary facet. The optional tertiary facet
// supplies the values being reduced; without it layers are counts.
type Stacked struct {
	filterable[facet.Value]

	primary   *facet.Facet
	secondary *facet.Facet
	tertiary  *facet.Facet
	layers    []facet.Value
	group     *crossfilter.Group[facet.Value, *Stack]
}

// NewStacked attaches a dimension keyed by primary.Key. tertiary may be nil.
func NewStacked(cf *crossfilter.Crossfilter, primary, secondary, tertiary *facet.Facet) *Stacked {
	dim := crossfilter.NewDimension(cf, primary.Key, facet.Compare)
	value := valueOf(tertiary)

	reducer := crossfilter.Reducer[*Stack]{
		Init: func() *Stack { return &Stack{Categories: make(map[facet.Value]*Tally)} },
		Add: func(s *Stack, r dataset.Record) *Stack {
			v := value(r)
			s.Total.Add(v)

			cat := secondary.Key(r)
			t, ok := s.Categories[cat]
			if !ok {
				t = &Tally{}
				s.Categories[cat] = t
			}
			t.Add(v)
			return s
		},
	}

	return &Stacked{
		filterable: filterable[facet.Value]{dim: dim, build: valueFilter},
		primary:    primary,
		secondary:  secondary,
		tertiary:   tertiary,
		layers:     secondary.Domain(),
		group:      crossfilter.NewGroup(dim, reducer),
	}
}

func (s *Stacked) Primary() *facet.Facet   { return s.primary }
func (s *Stacked) Secondary() *facet.Facet { return s.secondary }
func (s *Stacked) Tertiary() *facet.Facet  { return s.tertiary }

// Layers lists the stack layers in drawing order.
func (s *Stacked) Layers() []facet.Value { return s.layers }

// Statistic is the statistic of each layer.
func (s *Stacked) Statistic() facet.Statistic { return statisticOf(s.tertiary) }

// Mode is absolute or percentage, as configured on the secondary facet.
func (s *Stacked) Mode() facet.Mode { return modeOf(s.secondary) }

// Stacks returns the raw per-bin aggregates.
func (s *Stacked) Stacks() []crossfilter.KeyValue[facet.Value, *Stack] {
	return s.group.All()
}

// LayerValue extracts layer i of a bin: the category's statistic, or its
// percentage of the bin total.
func (s *Stacked) LayerValue(st *Stack, i int) float64 {
	stat := s.Statistic()
	t := st.Tally(s.layers[i])
	v := t.Stat(stat)
	if s.Mode() == facet.Percentage {
		return percent(v, st.Total.Stat(stat))
	}
	return v
}

// All returns one Group per bin with a layer per category. Value is the
// bin total under the layer statistic.
func (s *Stacked) All() []Group {
	stat := s.Statistic()
	stacks := s.group.All()

	out := make([]Group, 0, len(stacks))
	for _, kv := range stacks {
		g := Group{
			Key:    kv.Key,
			Label:  BinLabel(s.primary, kv.Key),
			Value:  kv.Value.Total.Stat(stat),
			Count:  kv.Value.Total.Count,
			Layers: make([]Layer, len(s.layers)),
		}
		for i, name := range s.layers {
			g.Layers[i] = Layer{Name: name.String(), Value: s.LayerValue(kv.Value, i)}
		}
		out = append(out, g)
	}
	return out
}
