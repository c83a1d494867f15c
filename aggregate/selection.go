package aggregate

import (
	"errors"
	"fmt"

	"github.com/spektr-org/crossfacet/crossfilter"
	"github.com/spektr-org/crossfacet/facet"
)

// ErrSelection is returned for a selection a widget shape cannot apply.
var ErrSelection = errors.New("selection not supported")

// Interval is the half-open range [Low, High).
type Interval struct {
	Low  facet.Value
	High facet.Value
}

// Contains reports whether v lies in the interval.
func (i Interval) Contains(v facet.Value) bool {
	return facet.Compare(v, i.Low) >= 0 && facet.Compare(v, i.High) < 0
}

// Rect is a two-dimensional selection.
type Rect struct {
	X Interval
	Y Interval
}

// Selection is what a widget restricts its dimension to. At most one of
// Keys, Range and Rect is set; the zero Selection selects everything.
type Selection struct {
	Keys  []facet.Value
	Range *Interval
	Rect  *Rect
}

// SelectKeys selects the given group keys.
func SelectKeys(keys ...facet.Value) Selection {
	return Selection{Keys: keys}
}

// SelectRange selects keys in [lo, hi).
func SelectRange(lo, hi facet.Value) Selection {
	return Selection{Range: &Interval{Low: lo, High: hi}}
}

// SelectRect selects pairs in [x0, x1) × [y0, y1).
func SelectRect(x0, x1, y0, y1 facet.Value) Selection {
	return Selection{Rect: &Rect{
		X: Interval{Low: x0, High: x1},
		Y: Interval{Low: y0, High: y1},
	}}
}

// IsEmpty reports whether the selection restricts nothing.
func (s Selection) IsEmpty() bool {
	return len(s.Keys) == 0 && s.Range == nil && s.Rect == nil
}

func (s Selection) String() string {
	switch {
	case s.Rect != nil:
		return fmt.Sprintf("[%v, %v) x [%v, %v)", s.Rect.X.Low, s.Rect.X.High, s.Rect.Y.Low, s.Rect.Y.High)
	case s.Range != nil:
		return fmt.Sprintf("[%v, %v)", s.Range.Low, s.Range.High)
	case len(s.Keys) > 0:
		return fmt.Sprint(s.Keys)
	default:
		return "all"
	}
}

// Spec is the part of an aggregation a widget filters and tears down.
type Spec interface {
	Filter(sel Selection) error
	FilterAll() error
	HasFilter() bool
	Selection() Selection
	Dispose()
}

// filterable holds a dimension and the selection last applied to it.
type filterable[K comparable] struct {
	dim   *crossfilter.Dimension[K]
	sel   Selection
	build func(Selection) (crossfilter.Filter[K], error)
}

// Filter replaces the dimension's filter. An empty selection clears it.
func (f *filterable[K]) Filter(sel Selection) error {
	if sel.IsEmpty() {
		return f.FilterAll()
	}
	flt, err := f.build(sel)
	if err != nil {
		return err
	}
	if err := f.dim.Filter(flt); err != nil {
		return err
	}
	f.sel = sel
	return nil
}

func (f *filterable[K]) FilterAll() error {
	f.sel = Selection{}
	return f.dim.FilterAll()
}

func (f *filterable[K]) HasFilter() bool      { return f.dim.HasFilter() }
func (f *filterable[K]) Selection() Selection { return f.sel }

// Dispose clears the filter, then detaches the dimension.
func (f *filterable[K]) Dispose() {
	f.sel = Selection{}
	f.dim.Dispose()
}

// valueFilter builds the filter for a dimension keyed by one facet.
func valueFilter(sel Selection) (crossfilter.Filter[facet.Value], error) {
	switch {
	case sel.Rect != nil:
		return nil, fmt.Errorf("%w: rectangle on a one-dimensional widget", ErrSelection)
	case sel.Range != nil:
		return crossfilter.Range(sel.Range.Low, sel.Range.High, facet.Compare), nil
	default:
		return crossfilter.In(sel.Keys...), nil
	}
}
