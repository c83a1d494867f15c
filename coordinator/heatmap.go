package coordinator

import (
	"sort"
	"strings"

	"github.com/aclements/go-moremath/scale"
	"github.com/aclements/go-moremath/stats"

	"github.com/spektr-org/crossfacet/crossfilter"
	"github.com/spektr-org/crossfacet/dataset"
	"github.com/spektr-org/crossfacet/facet"
)

// HeatmapData maps the identifier of every filtered record to the value a
// map layer colors it by. Without a coloring facet every value is Missing,
// which renders as a neutral color.
type HeatmapData struct {
	Values map[string]facet.Value `json:"values"`

	// Summary over the non-missing values. Min and Max are the coloring
	// facet's declared domain, not the observed extremes.
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Count int     `json:"count"`
	Mean  float64 `json:"mean"`
}

// IDs returns the record identifiers in ascending order.
func (h *HeatmapData) IDs() []string {
	ids := make([]string, 0, len(h.Values))
	for id := range h.Values {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Normalized maps every numeric value onto [0, 1] over [Min, Max],
// clamping values outside the domain. Missing and label values are left out.
func (h *HeatmapData) Normalized() map[string]float64 {
	lin := scale.Linear{Min: h.Min, Max: h.Max, Clamp: true}
	out := make(map[string]float64, h.Count)
	for id, v := range h.Values {
		if x, ok := v.Float(); ok {
			out[id] = lin.Map(x)
		}
	}
	return out
}

// Heatmap computes the id → value map of a heatmap widget. Records without
// an identifier are skipped.
func (w *Widget) Heatmap() *HeatmapData {
	if w.kind != Heatmap {
		return nil
	}
	c := w.c
	idField := c.ds.IDField()
	h := &HeatmapData{Values: make(map[string]facet.Value)}

	tertiary := w.facets.Tertiary
	if tertiary == nil {
		// A temporary dimension on the identifier lists the filtered records.
		ids := crossfilter.NewDimension(c.cf, func(r dataset.Record) string {
			return dataset.IDOf(r, idField)
		}, strings.Compare)
		for _, r := range ids.Top(c.cf.Size()) {
			if id := dataset.IDOf(r, idField); id != "" {
				h.Values[id] = facet.Missing()
			}
		}
		ids.Dispose()
		return h
	}

	h.Min, h.Max = tertiary.Min(), tertiary.Max()
	var xs []float64
	for _, r := range c.cf.AllFiltered() {
		id := dataset.IDOf(r, idField)
		if id == "" {
			continue
		}
		v := tertiary.Value(r)
		h.Values[id] = v
		if x, ok := v.Float(); ok {
			xs = append(xs, x)
		}
	}
	h.Count = len(xs)
	if len(xs) > 0 {
		h.Mean = stats.Mean(xs)
	}
	return h
}
