package aggregate

import (
	"fmt"
	"math"
	"strings"

	"github.com/spektr-org/crossfacet/crossfilter"
	"github.com/spektr-org/crossfacet/dataset"
	"github.com/spektr-org/crossfacet/facet"
)

// ============================================================================
// REDUCTION: count / sum / average over the records of a bin
// ============================================================================

// Tally accumulates one bin. Count is every record; Sum and N cover only
// records with a numeric value.
type Tally struct {
	Count int
	Sum   float64
	N     int
}

// Add records one value. Missing and labels are counted but not summed.
func (t *Tally) Add(v facet.Value) {
	t.Count++
	if x, ok := v.Float(); ok {
		t.Sum += x
		t.N++
	}
}

// Stat returns the statistic. Average divides by the number of numeric
// values, and is zero when there are none.
func (t *Tally) Stat(s facet.Statistic) float64 {
	switch s {
	case facet.Sum:
		return t.Sum
	case facet.Average:
		if t.N == 0 {
			return 0
		}
		return t.Sum / float64(t.N)
	default:
		return float64(t.Count)
	}
}

// valueOf returns the per-record value fed into a tally: the facet's value,
// or Missing for count-only reductions.
func valueOf(f *facet.Facet) func(dataset.Record) facet.Value {
	if f == nil {
		return func(dataset.Record) facet.Value { return facet.Missing() }
	}
	return f.Value
}

// statisticOf is the statistic a facet asks for, count without a facet.
func statisticOf(f *facet.Facet) facet.Statistic {
	if f == nil {
		return facet.Count
	}
	return f.Reduction().Statistic
}

func modeOf(f *facet.Facet) facet.Mode {
	if f == nil {
		return facet.Absolute
	}
	return f.Reduction().Mode
}

func tallyReducer(value func(dataset.Record) facet.Value) crossfilter.Reducer[*Tally] {
	return crossfilter.Reducer[*Tally]{
		Init: func() *Tally { return &Tally{} },
		Add: func(t *Tally, r dataset.Record) *Tally {
			t.Add(value(r))
			return t
		},
	}
}

// percent returns 100·part/total, or 0 for an empty total.
func percent(part, total float64) float64 {
	if total == 0 {
		return 0
	}
	return 100 * part / total
}

// ====== FORMATTING ======

// RoundTo2 rounds to two decimals for display.
func RoundTo2(v float64) float64 {
	return math.Round(v*100) / 100
}

// LabelForStatistic names a statistic for an axis or column header.
func LabelForStatistic(s facet.Statistic, m facet.Mode) string {
	label := "Count"
	switch s {
	case facet.Sum:
		label = "Sum"
	case facet.Average:
		label = "Average"
	}
	if m == facet.Percentage {
		label += " (%)"
	}
	return label
}

// LabelForFacet is the axis title for a facet: its name with units.
func LabelForFacet(f *facet.Facet) string {
	if f == nil {
		return ""
	}
	cfg := f.Config()
	name := cfg.Name
	if len(name) > 0 {
		name = strings.ToUpper(name[:1]) + name[1:]
	}
	if cfg.Units != "" {
		return fmt.Sprintf("%s [%s]", name, cfg.Units)
	}
	return name
}

// BinLabel describes a group key: the bin interval of a continuous facet
// or the category itself.
func BinLabel(f *facet.Facet, key facet.Value) string {
	if key.IsMissing() {
		return "missing"
	}
	if b := f.Binning(); b != nil {
		if x, ok := key.Float(); ok {
			if i := b.Index(x); i >= 0 {
				return fmt.Sprintf("[%s, %s)", formatEdge(b.Thresholds[i]), formatEdge(b.Thresholds[i+1]))
			}
		}
	}
	return key.String()
}

func formatEdge(x float64) string {
	return facet.Number(RoundTo2(x)).String()
}
