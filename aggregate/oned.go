package aggregate

import (
	"github.com/spektr-org/crossfacet/crossfilter"
	"github.com/spektr-org/crossfacet/facet"
)

// OneD groups records by the primary facet. With a secondary facet each
// bin holds the secondary's statistic over its values; otherwise a count.
type OneD struct {
	filterable[facet.Value]

	primary   *facet.Facet
	secondary *facet.Facet
	group     *crossfilter.Group[facet.Value, *Tally]
}

// NewOneD attaches a dimension keyed by primary.Key. secondary may be nil.
func NewOneD(cf *crossfilter.Crossfilter, primary, secondary *facet.Facet) *OneD {
	dim := crossfilter.NewDimension(cf, primary.Key, facet.Compare)
	return &OneD{
		filterable: filterable[facet.Value]{dim: dim, build: valueFilter},
		primary:    primary,
		secondary:  secondary,
		group:      crossfilter.NewGroup(dim, tallyReducer(valueOf(secondary))),
	}
}

func (o *OneD) Primary() *facet.Facet   { return o.primary }
func (o *OneD) Secondary() *facet.Facet { return o.secondary }

// Statistic is the statistic each bin reports.
func (o *OneD) Statistic() facet.Statistic { return statisticOf(o.secondary) }

// Tallies returns the raw per-bin tallies.
func (o *OneD) Tallies() []crossfilter.KeyValue[facet.Value, *Tally] {
	return o.group.All()
}

// All returns one Group per bin. In percentage mode a bin's value is its
// share of the sum over all bins.
func (o *OneD) All() []Group {
	stat := o.Statistic()
	tallies := o.group.All()

	out := make([]Group, 0, len(tallies))
	var total float64
	for _, kv := range tallies {
		v := kv.Value.Stat(stat)
		total += v
		out = append(out, Group{
			Key:   kv.Key,
			Label: BinLabel(o.primary, kv.Key),
			Value: v,
			Count: kv.Value.Count,
		})
	}
	if modeOf(o.secondary) == facet.Percentage {
		for i := range out {
			out[i].Value = percent(out[i].Value, total)
		}
	}
	return out
}
