package main

import (
	"encoding/csv"
	"fmt"
	"image/color"
	"io"
	"os"
	"strings"

	"github.com/aclements/go-gg/palette"
	"github.com/charmbracelet/lipgloss"
	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/spektr-org/crossfacet/aggregate"
	"github.com/spektr-org/crossfacet/coordinator"
	"github.com/spektr-org/crossfacet/session"
)

// ============================================================================
// OUTPUT TYPES
// ============================================================================

type aggregateOutput struct {
	Session  string         `json:"session"`
	Records  int            `json:"records"`
	Filtered int            `json:"filtered"`
	Widgets  []widgetOutput `json:"widgets"`
}

type widgetOutput struct {
	Index     int                    `json:"index"`
	Type      string                 `json:"type"`
	Title     string                 `json:"title"`
	Selection string                 `json:"selection,omitempty"`
	Groups    []aggregate.Group      `json:"groups,omitempty"`
	Points    []aggregate.Point      `json:"points,omitempty"`
	Chart     *aggregate.ChartConfig `json:"chart,omitempty"`
	Table     *aggregate.TableData   `json:"table,omitempty"`
	Heatmap   *heatmapOutput         `json:"heatmap,omitempty"`
}

type heatmapOutput struct {
	Min    float64        `json:"min"`
	Max    float64        `json:"max"`
	Count  int            `json:"count"`
	Mean   float64        `json:"mean"`
	Colors []heatmapColor `json:"colors"`
}

type heatmapColor struct {
	ID    string   `json:"id"`
	Value *float64 `json:"value"`
	Color string   `json:"color"`
}

// ============================================================================
// AGGREGATES
// ============================================================================

func collectAggregates(ws *workspace, only int) aggregateOutput {
	out := aggregateOutput{
		Session:  ws.session.Name,
		Records:  ws.ds.Len(),
		Filtered: len(ws.coord.Filtered()),
	}
	for i, wdg := range ws.widgets {
		if wdg == nil || (only >= 0 && i != only) {
			continue
		}
		wo := widgetOutput{
			Index: i,
			Type:  string(wdg.Kind()),
			Title: widgetTitle(ws.session, i, wdg),
		}
		if sel := wdg.Selection(); !sel.IsEmpty() {
			wo.Selection = sel.String()
		}
		switch wdg.Kind() {
		case coordinator.Bar:
			wo.Groups = wdg.Groups()
			wo.Chart = wdg.Chart(wo.Title)
			wo.Table = wdg.Table(wo.Title)
		case coordinator.Scatter:
			wo.Points = wdg.Points()
		case coordinator.Heatmap:
			wo.Heatmap = colorHeatmap(wdg.Heatmap())
		}
		out.Widgets = append(out.Widgets, wo)
	}
	return out
}

func widgetTitle(s *session.Session, i int, wdg *coordinator.Widget) string {
	if i < len(s.Widgets) && s.Widgets[i].Title != "" {
		return s.Widgets[i].Title
	}
	names := []string{}
	fs := wdg.Facets()
	if fs.Primary != nil {
		names = append(names, fs.Primary.Name())
	}
	if fs.Secondary != nil {
		names = append(names, fs.Secondary.Name())
	}
	if fs.Tertiary != nil {
		names = append(names, fs.Tertiary.Name())
	}
	if len(names) == 0 {
		return string(wdg.Kind())
	}
	return strings.Join(names, " × ")
}

func writeAggregates(w io.Writer, ws *workspace, only int) error {
	out := collectAggregates(ws, only)
	switch format {
	case "json", "pretty":
		return writeJSON(w, out, format)
	case "csv":
		return writeAggregatesCSV(w, out)
	default:
		return renderText(w, out)
	}
}

// ============================================================================
// HEATMAP COLORS
// ============================================================================

// ylOrRd is the ColorBrewer YlOrRd 9-class sequential scheme.
var ylOrRd = palette.RGBGradient{Colors: []color.RGBA{
	{0xff, 0xff, 0xcc, 0xff}, {0xff, 0xed, 0xa0, 0xff}, {0xfe, 0xd9, 0x76, 0xff},
	{0xfe, 0xb2, 0x4c, 0xff}, {0xfd, 0x8d, 0x3c, 0xff}, {0xfc, 0x4e, 0x2a, 0xff},
	{0xe3, 0x1a, 0x1c, 0xff}, {0xbd, 0x00, 0x26, 0xff}, {0x80, 0x00, 0x26, 0xff},
}}

// neutral colors records that have no value to color by.
const neutral = "#808080"

func colorHeatmap(h *coordinator.HeatmapData) *heatmapOutput {
	if h == nil {
		return nil
	}
	out := &heatmapOutput{Min: h.Min, Max: h.Max, Count: h.Count, Mean: h.Mean}
	norm := h.Normalized()
	for _, id := range h.IDs() {
		hc := heatmapColor{ID: id, Color: neutral}
		if x, ok := h.Values[id].Float(); ok {
			hc.Value = &x
			hc.Color = hexColor(ylOrRd.Map(norm[id]))
		}
		out.Colors = append(out.Colors, hc)
	}
	return out
}

func hexColor(c color.Color) string {
	r, g, b, _ := c.RGBA()
	return fmt.Sprintf("#%02x%02x%02x", r>>8, g>>8, b>>8)
}

func writeHeatmap(w io.Writer, h *heatmapOutput) error {
	switch format {
	case "json", "pretty":
		return writeJSON(w, h, format)
	case "yaml":
		return writeYAML(w, h)
	case "csv":
		cw := csv.NewWriter(w)
		cw.Write([]string{"id", "value", "color"})
		for _, c := range h.Colors {
			cw.Write([]string{c.ID, fmtValue(c.Value), c.Color})
		}
		cw.Flush()
		return cw.Error()
	default:
		fmt.Fprintln(w, styles.title.Render(fmt.Sprintf("Heatmap: %d records", len(h.Colors))))
		fmt.Fprintln(w, styles.muted.Render(fmt.Sprintf("min %s  max %s  mean %s over %d values",
			fmtNum(h.Min), fmtNum(h.Max), fmtNum(h.Mean), h.Count)))
		for _, c := range h.Colors {
			swatch := lipgloss.NewStyle().Background(lipgloss.Color(c.Color)).Render("  ")
			fmt.Fprintf(w, "%s %-16s %s\n", swatch, c.ID, fmtValue(c.Value))
		}
		return nil
	}
}

// ============================================================================
// CSV OUTPUT: chart/table data ready for a spreadsheet
// ============================================================================

func writeAggregatesCSV(w io.Writer, out aggregateOutput) error {
	cw := csv.NewWriter(w)
	for i, wo := range out.Widgets {
		if i > 0 {
			cw.Write(nil)
		}
		cw.Write([]string{"# " + wo.Title})
		switch {
		case wo.Table != nil && len(wo.Table.Columns) > 0:
			writeTableCSV(cw, wo.Table)
		case wo.Points != nil:
			cw.Write([]string{"x", "y", "count"})
			for _, p := range wo.Points {
				cw.Write([]string{p.X.Text(), p.Y.Text(), fmt.Sprint(p.Count)})
			}
		case wo.Heatmap != nil:
			cw.Write([]string{"id", "value", "color"})
			for _, c := range wo.Heatmap.Colors {
				cw.Write([]string{c.ID, fmtValue(c.Value), c.Color})
			}
		default:
			cw.Write([]string{"Result", "No data"})
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeTableCSV(cw *csv.Writer, t *aggregate.TableData) {
	headers := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		headers[i] = c.Label
	}
	cw.Write(headers)
	for _, row := range t.Rows {
		cw.Write(row)
	}
	if t.Summary != nil {
		row := make([]string, len(t.Columns))
		row[0] = t.Summary.Label
		for i, c := range t.Columns {
			if v, ok := t.Summary.Values[c.Key]; ok {
				row[i] = v
			}
		}
		cw.Write(row)
	}
}

// ============================================================================
// WRITERS
// ============================================================================

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

func openOutput() (io.WriteCloser, error) {
	if outFile == "" {
		return nopCloser{os.Stdout}, nil
	}
	f, err := os.Create(outFile)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, nil
}

func writeJSON(w io.Writer, v any, format string) error {
	var out []byte
	var err error
	if format == "pretty" {
		out, err = json.MarshalIndent(v, "", "  ")
	} else {
		out, err = json.Marshal(v)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	return enc.Close()
}

// ============================================================================
// HELPERS
// ============================================================================

func fmtNum(v float64) string {
	// Whole numbers → no decimals, fractional → 2 decimals
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%.2f", v)
}

func fmtValue(v *float64) string {
	if v == nil {
		return ""
	}
	return fmtNum(*v)
}
