// Package crossfilter is a small multidimensional filter index over a
// shared dataset.
//
// Each Dimension projects records to a key and may hold one filter. The
// active subset is the intersection of every dimension's filter. A Group
// reduces its dimension's keys over the records that pass every filter
// except the one on its own dimension, so a widget keeps seeing the bins
// it has deselected. Groups are recomputed on every read.
//
// Nothing in this package is safe for concurrent use.
package crossfilter

import (
	"errors"
	"log/slog"

	"github.com/spektr-org/crossfacet/dataset"
)

// ErrDisposed is returned when using a dimension after Dispose.
var ErrDisposed = errors.New("dimension disposed")

// Crossfilter holds the dimensions attached to one dataset.
type Crossfilter struct {
	ds     *dataset.Dataset
	dims   []slot
	logger *slog.Logger
}

// slot is the type-erased view of a Dimension the crossfilter scans with.
type slot interface {
	sync()
	filtered() bool
	matches(i int) bool
}

// New creates a crossfilter over ds. The dataset may still be empty; keys
// are computed as records become available.
func New(ds *dataset.Dataset, opts ...Option) *Crossfilter {
	cfg := applyOptions(opts)
	return &Crossfilter{ds: ds, logger: cfg.Logger}
}

// Dataset returns the shared dataset.
func (c *Crossfilter) Dataset() *dataset.Dataset { return c.ds }

// Size is the number of records in the dataset.
func (c *Crossfilter) Size() int { return c.ds.Len() }

// Dimensions is the number of attached dimensions.
func (c *Crossfilter) Dimensions() int { return len(c.dims) }

// AllFiltered returns the records passing every filter, in dataset order.
func (c *Crossfilter) AllFiltered() []dataset.Record {
	idx := c.FilteredIndexes()
	out := make([]dataset.Record, len(idx))
	for i, j := range idx {
		out[i] = c.ds.At(j)
	}
	return out
}

// FilteredIndexes returns the dataset indexes of records passing every filter.
func (c *Crossfilter) FilteredIndexes() []int {
	c.syncFiltered()
	var out []int
	for i := 0; i < c.ds.Len(); i++ {
		if c.passes(i, nil) {
			out = append(out, i)
		}
	}
	return out
}

// IsFiltered reports whether any dimension holds a filter.
func (c *Crossfilter) IsFiltered() bool {
	for _, d := range c.dims {
		if d.filtered() {
			return true
		}
	}
	return false
}

func (c *Crossfilter) attach(s slot) {
	c.dims = append(c.dims, s)
	activeDimensions.Inc()
}

func (c *Crossfilter) detach(s slot) bool {
	for i, d := range c.dims {
		if d == s {
			c.dims = append(c.dims[:i], c.dims[i+1:]...)
			activeDimensions.Dec()
			return true
		}
	}
	return false
}

// syncFiltered brings the key cache of every filtered dimension up to date.
func (c *Crossfilter) syncFiltered() {
	for _, d := range c.dims {
		if d.filtered() {
			d.sync()
		}
	}
}

// passes reports whether record i passes every filter other than except's.
func (c *Crossfilter) passes(i int, except slot) bool {
	for _, d := range c.dims {
		if d == except || !d.filtered() {
			continue
		}
		if !d.matches(i) {
			return false
		}
	}
	return true
}
