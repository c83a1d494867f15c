package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/spektr-org/crossfacet/aggregate"
)

// ============================================================================
// TEXT OUTPUT
// ============================================================================

var styles = struct {
	title lipgloss.Style
	muted lipgloss.Style
	bar   lipgloss.Style
	label lipgloss.Style
}{
	title: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#4F46E5")),
	muted: lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280")),
	bar:   lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981")),
	label: lipgloss.NewStyle().Width(18),
}

const barWidth = 40

func renderText(w io.Writer, out aggregateOutput) error {
	fmt.Fprintln(w, styles.title.Render(out.Session))
	fmt.Fprintln(w, styles.muted.Render(fmt.Sprintf("%d of %d records selected", out.Filtered, out.Records)))

	for _, wo := range out.Widgets {
		fmt.Fprintln(w)
		head := fmt.Sprintf("[%d] %s (%s)", wo.Index, wo.Title, wo.Type)
		if wo.Selection != "" {
			head += "  " + styles.muted.Render("selection "+wo.Selection)
		}
		fmt.Fprintln(w, styles.title.Render(head))

		switch {
		case wo.Groups != nil:
			renderBars(w, wo.Groups)
		case wo.Points != nil:
			renderPoints(w, wo.Points)
		case wo.Heatmap != nil:
			fmt.Fprintln(w, styles.muted.Render(fmt.Sprintf("%d records, %d valued, mean %s",
				len(wo.Heatmap.Colors), wo.Heatmap.Count, fmtNum(wo.Heatmap.Mean))))
		default:
			fmt.Fprintln(w, styles.muted.Render("No data"))
		}
	}
	return nil
}

func renderBars(w io.Writer, groups []aggregate.Group) {
	peak := 0.0
	for _, g := range groups {
		if g.Value > peak {
			peak = g.Value
		}
	}
	for _, g := range groups {
		n := 0
		if peak > 0 {
			n = int(g.Value / peak * barWidth)
		}
		fmt.Fprintf(w, "%s %s %s\n",
			styles.label.Render(g.Label),
			styles.bar.Render(strings.Repeat("█", n)),
			fmtNum(g.Value))
	}
}

func renderPoints(w io.Writer, points []aggregate.Point) {
	sorted := append([]aggregate.Point(nil), points...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Count > sorted[j].Count })
	for _, p := range sorted {
		if p.Count == 0 {
			continue
		}
		fmt.Fprintf(w, "(%s, %s) %d\n", p.X.Text(), p.Y.Text(), p.Count)
	}
}
