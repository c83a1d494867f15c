package aggregate

import "github.com/spektr-org/crossfacet/facet"

// ============================================================================
// CHART BUILDER: Produces ChartConfig from bar groups
// ============================================================================

// Default color palette for chart series.
var defaultColors = []string{
	"#4F46E5", "#10B981", "#F59E0B", "#EF4444", "#8B5CF6",
	"#06B6D4", "#EC4899", "#84CC16", "#F97316", "#6366F1",
}

// BuildChart produces a bar ChartConfig. Stacked groups give one series per
// layer; plain groups a single series.
func BuildChart(title string, primary *facet.Facet, yAxis string, groups []Group) *ChartConfig {
	if len(groups) == 0 {
		return nil
	}

	config := &ChartConfig{
		ChartType: "bar",
		Title:     title,
		XAxis:     LabelForFacet(primary),
		YAxis:     yAxis,
		ShowGrid:  true,
	}

	if hasLayers(groups) {
		config.Series = buildLayerSeries(groups)
		config.Stacked = true
		config.ShowLegend = true
	} else {
		config.Series = buildSingleSeries(groups, title)
	}

	config.Colors = assignColors(len(config.Series))
	return config
}

// ChartFor builds the chart of a bar widget's aggregation.
func ChartFor(title string, spec Spec) *ChartConfig {
	switch s := spec.(type) {
	case *OneD:
		return BuildChart(title, s.primary, LabelForStatistic(s.Statistic(), modeOf(s.secondary)), s.All())
	case *Stacked:
		return BuildChart(title, s.primary, LabelForStatistic(s.Statistic(), s.Mode()), s.All())
	default:
		return nil
	}
}

// ============================================================================
// SERIES BUILDERS
// ============================================================================

func buildSingleSeries(groups []Group, seriesName string) []ChartSeries {
	if seriesName == "" {
		seriesName = "Value"
	}

	points := make([]ChartPoint, 0, len(groups))
	for _, g := range groups {
		points = append(points, ChartPoint{
			Label: g.Label,
			Value: RoundTo2(g.Value),
		})
	}

	return []ChartSeries{{
		Name: seriesName,
		Data: points,
	}}
}

// buildLayerSeries keeps the layer order of the first group; every group
// of a Stacked aggregation has the same layers.
func buildLayerSeries(groups []Group) []ChartSeries {
	layers := groups[0].Layers
	series := make([]ChartSeries, len(layers))
	for i, l := range layers {
		series[i] = ChartSeries{
			Name:  l.Name,
			Data:  make([]ChartPoint, 0, len(groups)),
			Color: defaultColors[i%len(defaultColors)],
		}
	}

	for _, g := range groups {
		for i := range series {
			var v float64
			if i < len(g.Layers) {
				v = g.Layers[i].Value
			}
			series[i].Data = append(series[i].Data, ChartPoint{
				Label: g.Label,
				Value: RoundTo2(v),
			})
		}
	}
	return series
}

func hasLayers(groups []Group) bool {
	for _, g := range groups {
		if len(g.Layers) > 0 {
			return true
		}
	}
	return false
}

func assignColors(count int) []string {
	colors := make([]string, count)
	for i := 0; i < count; i++ {
		colors[i] = defaultColors[i%len(defaultColors)]
	}
	return colors
}
