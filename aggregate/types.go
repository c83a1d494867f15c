// Package aggregate builds the dimension and group pairs that back a
// widget, and turns their results into render-ready structures.
//
// Three shapes exist: OneD (bars keyed by one facet), TwoD (scatter points
// keyed by a pair of facets) and Stacked (bars with one layer per category
// of a second facet).
package aggregate

import "github.com/spektr-org/crossfacet/facet"

// ============================================================================
// GROUP: One rendered bin
// ============================================================================

// Group is one bin of a bar chart. Layers is set for stacked charts only,
// in the order of the stacking facet's domain.
type Group struct {
	Key    facet.Value `json:"key"`
	Label  string      `json:"label"`
	Value  float64     `json:"value"`
	Count  int         `json:"count"`
	Layers []Layer     `json:"layers,omitempty"`
}

// Layer is one category's share of a stacked bin.
type Layer struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// Point is one cell of a scatter plot, safe to hand to a renderer: it
// never holds Missing.
type Point struct {
	X     facet.Value `json:"x"`
	Y     facet.Value `json:"y"`
	Count int         `json:"count"`
}

// ============================================================================
// CHART TYPES
// ============================================================================

// ChartConfig defines how to render a chart.
type ChartConfig struct {
	ChartType  string        `json:"chartType"`
	Title      string        `json:"title"`
	XAxis      string        `json:"xAxis,omitempty"`
	YAxis      string        `json:"yAxis,omitempty"`
	Series     []ChartSeries `json:"series"`
	Colors     []string      `json:"colors,omitempty"`
	Stacked    bool          `json:"stacked"`
	ShowLegend bool          `json:"showLegend"`
	ShowGrid   bool          `json:"showGrid"`
}

// ChartSeries represents a data series in a chart.
type ChartSeries struct {
	Name  string       `json:"name"`
	Data  []ChartPoint `json:"data"`
	Color string       `json:"color,omitempty"`
}

// ChartPoint represents a single data point.
type ChartPoint struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// ============================================================================
// TABLE TYPES
// ============================================================================

// TableData defines how to render a table.
type TableData struct {
	Title   string     `json:"title"`
	Columns []Column   `json:"columns"`
	Rows    [][]string `json:"rows"`
	Summary *Summary   `json:"summary,omitempty"`
}

// Column defines a table column.
type Column struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Type  string `json:"type"`  // "text", "number"
	Align string `json:"align"` // "left", "center", "right"
}

// Summary provides totals for a table.
type Summary struct {
	Label  string            `json:"label"`
	Values map[string]string `json:"values"`
}
