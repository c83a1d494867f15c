package crossfilter

import (
	"sort"

	"github.com/google/uuid"

	"github.com/spektr-org/crossfacet/dataset"
)

// Dimension projects every record of the dataset onto a key of type K and
// holds at most one filter over those keys.
type Dimension[K comparable] struct {
	id    uuid.UUID
	cf    *Crossfilter
	keyFn func(dataset.Record) K
	cmp   func(a, b K) int

	keys     []K
	filter   Filter[K]
	disposed bool
}

// NewDimension attaches a dimension keyed by keyFn. cmp orders keys for
// groups and Top.
func NewDimension[K comparable](cf *Crossfilter, keyFn func(dataset.Record) K, cmp func(a, b K) int) *Dimension[K] {
	d := &Dimension[K]{
		id:    uuid.New(),
		cf:    cf,
		keyFn: keyFn,
		cmp:   cmp,
	}
	cf.attach(d)
	cf.logger.Debug("dimension attached", "dimension", d.id, "dimensions", cf.Dimensions())
	return d
}

func (d *Dimension[K]) ID() uuid.UUID { return d.id }

// Filter restricts the dimension to keys matching f. A nil filter clears it.
func (d *Dimension[K]) Filter(f Filter[K]) error {
	if d.disposed {
		return ErrDisposed
	}
	if f == nil {
		return d.FilterAll()
	}
	d.sync()
	d.filter = f
	filterChanges.WithLabelValues("apply").Inc()
	return nil
}

// FilterAll clears the dimension's filter.
func (d *Dimension[K]) FilterAll() error {
	if d.disposed {
		return ErrDisposed
	}
	if d.filter != nil {
		d.filter = nil
		filterChanges.WithLabelValues("clear").Inc()
	}
	return nil
}

// HasFilter reports whether a filter is applied.
func (d *Dimension[K]) HasFilter() bool { return d.filter != nil }

// Key returns the key of record i.
func (d *Dimension[K]) Key(i int) K {
	d.sync()
	return d.keys[i]
}

// Top returns up to n records passing every filter, this dimension's
// included, ordered by descending key. Ties keep dataset order.
func (d *Dimension[K]) Top(n int) []dataset.Record {
	if d.disposed || n <= 0 {
		return nil
	}
	d.sync()
	d.cf.syncFiltered()

	var idx []int
	for i := range d.keys {
		if d.cf.passes(i, nil) {
			idx = append(idx, i)
		}
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return d.cmp(d.keys[idx[a]], d.keys[idx[b]]) > 0
	})
	if len(idx) > n {
		idx = idx[:n]
	}

	out := make([]dataset.Record, len(idx))
	for i, j := range idx {
		out[i] = d.cf.ds.At(j)
	}
	return out
}

// Dispose clears the filter and detaches the dimension. Groups on it
// return nothing afterwards.
func (d *Dimension[K]) Dispose() {
	if d.disposed {
		return
	}
	if d.filter != nil {
		d.cf.logger.Debug("disposing filtered dimension, clearing filter first", "dimension", d.id)
		_ = d.FilterAll()
	}
	d.cf.detach(d)
	d.disposed = true
	d.keys = nil
	d.cf.logger.Debug("dimension detached", "dimension", d.id, "dimensions", d.cf.Dimensions())
}

// Disposed reports whether Dispose has been called.
func (d *Dimension[K]) Disposed() bool { return d.disposed }

// sync extends the key cache to cover records loaded since the last call.
func (d *Dimension[K]) sync() {
	n := d.cf.ds.Len()
	for i := len(d.keys); i < n; i++ {
		d.keys = append(d.keys, d.keyFn(d.cf.ds.At(i)))
	}
}

func (d *Dimension[K]) filtered() bool { return d.filter != nil }

func (d *Dimension[K]) matches(i int) bool {
	return d.filter.Match(d.keys[i])
}
