package aggregate

import (
	"fmt"
	"strconv"

	"github.com/spektr-org/crossfacet/facet"
)

// ============================================================================
// TABLE BUILDER: Produces TableData from bar groups
// ============================================================================

// BuildTable produces one row per bin: label, value, count and, for
// stacked groups, one column per layer.
func BuildTable(title string, primary *facet.Facet, valueLabel string, groups []Group) *TableData {
	if len(groups) == 0 {
		return &TableData{
			Title:   title,
			Columns: []Column{},
			Rows:    [][]string{},
		}
	}

	groupLabel := LabelForFacet(primary)
	if groupLabel == "" {
		groupLabel = "Group"
	}

	columns := []Column{
		{Key: "group", Label: groupLabel, Type: "text", Align: "left"},
		{Key: "value", Label: valueLabel, Type: "number", Align: "right"},
		{Key: "count", Label: "Count", Type: "number", Align: "center"},
	}
	layers := groups[0].Layers
	for i, l := range layers {
		columns = append(columns, Column{
			Key:   "layer" + strconv.Itoa(i),
			Label: l.Name,
			Type:  "number",
			Align: "right",
		})
	}

	rows := make([][]string, 0, len(groups))
	var totalValue float64
	var totalCount int

	for _, g := range groups {
		row := []string{
			g.Label,
			fmt.Sprintf("%.2f", g.Value),
			strconv.Itoa(g.Count),
		}
		for _, l := range g.Layers {
			row = append(row, fmt.Sprintf("%.2f", l.Value))
		}
		rows = append(rows, row)
		totalValue += g.Value
		totalCount += g.Count
	}

	return &TableData{
		Title:   title,
		Columns: columns,
		Rows:    rows,
		Summary: &Summary{
			Label: "Total",
			Values: map[string]string{
				"value": fmt.Sprintf("%.2f", totalValue),
				"count": strconv.Itoa(totalCount),
			},
		},
	}
}

// TableFor builds the table of a bar widget's aggregation.
func TableFor(title string, spec Spec) *TableData {
	switch s := spec.(type) {
	case *OneD:
		return BuildTable(title, s.primary, LabelForStatistic(s.Statistic(), modeOf(s.secondary)), s.All())
	case *Stacked:
		return BuildTable(title, s.primary, LabelForStatistic(s.Statistic(), facet.Absolute), s.All())
	default:
		return nil
	}
}
