package coordinator

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/spektr-org/crossfacet/aggregate"
	"github.com/spektr-org/crossfacet/facet"
)

// Kind is the type of widget.
type Kind string

const (
	Bar     Kind = "bar"
	Scatter Kind = "scatter"
	Heatmap Kind = "heatmap"
)

// ParseKind reads a widget kind; "barchart", "scatterplot" and "map" are
// accepted as well.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "bar", "barchart":
		return Bar, nil
	case "scatter", "scatterplot":
		return Scatter, nil
	case "heatmap", "map", "choropleth":
		return Heatmap, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
}

// Facets are the up to three facets a widget is built from. Unused ones
// are nil.
type Facets struct {
	Primary   *facet.Facet
	Secondary *facet.Facet
	Tertiary  *facet.Facet
}

func (f Facets) names() []string {
	var out []string
	for _, x := range []*facet.Facet{f.Primary, f.Secondary, f.Tertiary} {
		if x != nil {
			out = append(out, x.Name())
		}
	}
	return out
}

// Widget is one view on the shared dataset. It owns its aggregation and
// remembers the selection last applied, so a rebuilt widget keeps its
// filter.
type Widget struct {
	id     uuid.UUID
	kind   Kind
	facets Facets
	spec   aggregate.Spec
	sel    aggregate.Selection
	closed bool

	c *Coordinator
}

func (w *Widget) ID() uuid.UUID                  { return w.id }
func (w *Widget) Kind() Kind                     { return w.kind }
func (w *Widget) Facets() Facets                 { return w.facets }
func (w *Widget) Spec() aggregate.Spec           { return w.spec }
func (w *Widget) Selection() aggregate.Selection { return w.sel }

// HasFilter reports whether the widget restricts the dataset.
func (w *Widget) HasFilter() bool {
	return w.spec != nil && w.spec.HasFilter()
}

// build creates the aggregation for the widget's kind and facets.
func (w *Widget) build() error {
	f := w.facets
	switch w.kind {
	case Bar:
		if f.Primary == nil {
			return fmt.Errorf("%w: bar chart needs a primary facet", ErrMissingFacet)
		}
		if f.Secondary != nil && f.Secondary.IsCategorical() {
			w.spec = aggregate.NewStacked(w.c.cf, f.Primary, f.Secondary, f.Tertiary)
		} else {
			w.spec = aggregate.NewOneD(w.c.cf, f.Primary, f.Secondary)
		}
	case Scatter:
		if f.Primary == nil || f.Secondary == nil {
			return fmt.Errorf("%w: scatter plot needs primary and secondary facets", ErrMissingFacet)
		}
		w.spec = aggregate.NewTwoD(w.c.cf, f.Primary, f.Secondary)
	case Heatmap:
		// Colors by the tertiary facet over the filtered records; owns no dimension.
		w.spec = nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, w.kind)
	}
	return nil
}

// Filter restricts the dataset to sel through this widget. An empty
// selection clears the filter.
func (w *Widget) Filter(sel aggregate.Selection) error {
	if w.closed {
		return fmt.Errorf("%w: %s is closed", ErrUnknownWidget, w.id)
	}
	if sel.IsEmpty() {
		return w.ClearFilter()
	}
	if w.spec == nil {
		return fmt.Errorf("%w: %s widgets cannot be filtered", ErrSelection, w.kind)
	}
	if err := w.spec.Filter(sel); err != nil {
		return fmt.Errorf("widget %s: %w", w.id, err)
	}
	w.sel = sel

	w.c.logger.Debug("filter applied", "widget", w.id, "selection", sel.String())
	w.c.notify(Event{Kind: Filtered, Widget: w.id, Selection: sel})
	return nil
}

// ClearFilter removes this widget's restriction.
func (w *Widget) ClearFilter() error {
	if w.closed {
		return fmt.Errorf("%w: %s is closed", ErrUnknownWidget, w.id)
	}
	w.sel = aggregate.Selection{}
	if w.spec != nil {
		if err := w.spec.FilterAll(); err != nil {
			return err
		}
	}

	w.c.logger.Debug("filter cleared", "widget", w.id)
	w.c.notify(Event{Kind: Cleared, Widget: w.id})
	return nil
}

// Rebuild replaces the widget's facets, for instance after a facet was
// recompiled. The old aggregation is disposed and the stored selection is
// applied to the new one; a selection the new facets cannot take is dropped.
func (w *Widget) Rebuild(facets Facets) error {
	if w.closed {
		return fmt.Errorf("%w: %s is closed", ErrUnknownWidget, w.id)
	}

	old, oldFacets := w.spec, w.facets
	w.facets = facets
	if err := w.build(); err != nil {
		w.spec, w.facets = old, oldFacets
		return err
	}
	if old != nil {
		old.Dispose()
	}

	if !w.sel.IsEmpty() && w.spec != nil {
		if err := w.spec.Filter(w.sel); err != nil {
			w.c.logger.Warn("dropping selection after rebuild",
				"widget", w.id, "selection", w.sel.String(), "error", err)
			w.sel = aggregate.Selection{}
		}
	}

	w.c.logger.Debug("widget rebuilt", "widget", w.id, "facets", facets.names())
	w.c.notify(Event{Kind: Rebuilt, Widget: w.id, Selection: w.sel})
	return nil
}

// Close clears the widget's filter, detaches its dimension and removes it
// from the coordinator.
func (w *Widget) Close() error {
	if w.closed {
		return nil
	}
	if w.spec != nil {
		if err := w.spec.FilterAll(); err != nil {
			return err
		}
		w.spec.Dispose()
	}
	w.closed = true
	w.c.forget(w.id)

	w.c.logger.Info("widget removed", "widget", w.id)
	w.c.notify(Event{Kind: Removed, Widget: w.id})
	return nil
}

// ====== READS ======

// Groups returns the bars of a bar widget.
func (w *Widget) Groups() []aggregate.Group {
	switch s := w.spec.(type) {
	case *aggregate.OneD:
		return s.All()
	case *aggregate.Stacked:
		return s.All()
	default:
		return nil
	}
}

// Points returns the render-safe cells of a scatter widget.
func (w *Widget) Points() []aggregate.Point {
	if s, ok := w.spec.(*aggregate.TwoD); ok {
		return s.RenderAll()
	}
	return nil
}

// Chart returns the chart of a bar widget.
func (w *Widget) Chart(title string) *aggregate.ChartConfig {
	return aggregate.ChartFor(title, w.spec)
}

// Table returns the table of a bar widget.
func (w *Widget) Table(title string) *aggregate.TableData {
	return aggregate.TableFor(title, w.spec)
}
