// Package coordinator links widgets over one shared dataset.
//
// Every widget owns one aggregation built from its facets. Filtering a
// widget restricts what every other widget aggregates; the change is
// visible on the next read, within the same call. Listeners registered
// with Subscribe are told after every change so they can redraw.
//
// A Coordinator is not safe for concurrent use.
package coordinator

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/spektr-org/crossfacet/aggregate"
	"github.com/spektr-org/crossfacet/crossfilter"
	"github.com/spektr-org/crossfacet/dataset"
)

var (
	// ErrUnknownWidget is returned for a widget id the coordinator does not hold.
	ErrUnknownWidget = errors.New("unknown widget")

	// ErrSelection is returned for a selection the widget cannot apply.
	ErrSelection = aggregate.ErrSelection

	// ErrMissingFacet is returned when a widget lacks a facet its kind needs.
	ErrMissingFacet = errors.New("widget is missing a facet")

	// ErrUnknownKind is returned for an unsupported widget kind.
	ErrUnknownKind = errors.New("unknown widget kind")
)

// ============================================================================
// EVENTS
// ============================================================================

// EventKind says what changed.
type EventKind int

const (
	Filtered EventKind = iota
	Cleared
	Rebuilt
	Removed
)

func (k EventKind) String() string {
	switch k {
	case Cleared:
		return "cleared"
	case Rebuilt:
		return "rebuilt"
	case Removed:
		return "removed"
	default:
		return "filtered"
	}
}

// Event reports a change made through one widget.
type Event struct {
	Kind      EventKind
	Widget    uuid.UUID
	Selection aggregate.Selection
}

type listener struct {
	id int
	fn func(Event)
}

// ============================================================================
// COORDINATOR
// ============================================================================

// Coordinator owns the crossfilter over a dataset and the widgets on it.
type Coordinator struct {
	ds *dataset.Dataset
	cf *crossfilter.Crossfilter

	widgets map[uuid.UUID]*Widget
	order   []uuid.UUID

	listeners []listener
	nextID    int

	logger *slog.Logger
}

// New creates a coordinator over ds. ds may still be empty; widgets show
// empty groups until it is loaded.
func New(ds *dataset.Dataset, opts ...Option) *Coordinator {
	cfg := applyOptions(opts)
	return &Coordinator{
		ds:      ds,
		cf:      crossfilter.New(ds, crossfilter.WithLogger(cfg.Logger)),
		widgets: make(map[uuid.UUID]*Widget),
		logger:  cfg.Logger,
	}
}

// Dataset returns the shared dataset.
func (c *Coordinator) Dataset() *dataset.Dataset { return c.ds }

// Crossfilter returns the shared index.
func (c *Coordinator) Crossfilter() *crossfilter.Crossfilter { return c.cf }

// Filtered returns the records passing every widget's filter.
func (c *Coordinator) Filtered() []dataset.Record { return c.cf.AllFiltered() }

// AddWidget creates a widget and its aggregation.
func (c *Coordinator) AddWidget(kind Kind, facets Facets) (*Widget, error) {
	w := &Widget{
		id:     uuid.New(),
		kind:   kind,
		facets: facets,
		c:      c,
	}
	if err := w.build(); err != nil {
		return nil, err
	}

	c.widgets[w.id] = w
	c.order = append(c.order, w.id)
	c.logger.Info("widget added", "widget", w.id, "kind", kind, "facets", facets.names())
	return w, nil
}

// Widget looks up a widget by id.
func (c *Coordinator) Widget(id uuid.UUID) (*Widget, error) {
	w, ok := c.widgets[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownWidget, id)
	}
	return w, nil
}

// Widgets returns the widgets in creation order.
func (c *Coordinator) Widgets() []*Widget {
	out := make([]*Widget, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.widgets[id])
	}
	return out
}

// Filter applies a selection through the widget with the given id.
func (c *Coordinator) Filter(id uuid.UUID, sel aggregate.Selection) error {
	w, err := c.Widget(id)
	if err != nil {
		return err
	}
	return w.Filter(sel)
}

// ClearFilter clears the filter of the widget with the given id.
func (c *Coordinator) ClearFilter(id uuid.UUID) error {
	w, err := c.Widget(id)
	if err != nil {
		return err
	}
	return w.ClearFilter()
}

// ClearAll clears every widget's filter.
func (c *Coordinator) ClearAll() error {
	var errs []error
	for _, w := range c.Widgets() {
		if w.HasFilter() {
			errs = append(errs, w.ClearFilter())
		}
	}
	return errors.Join(errs...)
}

// RemoveWidget closes and forgets the widget with the given id.
func (c *Coordinator) RemoveWidget(id uuid.UUID) error {
	w, err := c.Widget(id)
	if err != nil {
		return err
	}
	return w.Close()
}

// Subscribe registers fn to be called after every filter change, rebuild
// and removal, in registration order. The returned function unregisters it.
func (c *Coordinator) Subscribe(fn func(Event)) (unsubscribe func()) {
	id := c.nextID
	c.nextID++
	c.listeners = append(c.listeners, listener{id: id, fn: fn})
	return func() {
		for i, l := range c.listeners {
			if l.id == id {
				c.listeners = append(c.listeners[:i], c.listeners[i+1:]...)
				return
			}
		}
	}
}

func (c *Coordinator) notify(e Event) {
	for _, l := range c.listeners {
		l.fn(e)
	}
}

func (c *Coordinator) forget(id uuid.UUID) {
	delete(c.widgets, id)
	for i, o := range c.order {
		if o == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}
