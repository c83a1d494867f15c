package crossfilter

import (
	"sort"
	"time"

	"github.com/spektr-org/crossfacet/dataset"
)

// Reducer folds the records of one group into a value.
type Reducer[V any] struct {
	Init func() V
	Add  func(acc V, r dataset.Record) V
}

// Count counts records.
func Count() Reducer[int] {
	return Reducer[int]{
		Init: func() int { return 0 },
		Add:  func(n int, _ dataset.Record) int { return n + 1 },
	}
}

// KeyValue is one group: a dimension key and its reduced value.
type KeyValue[K comparable, V any] struct {
	Key   K
	Value V
}

// Group reduces the records of a dimension per key.
type Group[K comparable, V any] struct {
	dim    *Dimension[K]
	reduce Reducer[V]
}

// NewGroup groups dim by key with reducer r.
func NewGroup[K comparable, V any](dim *Dimension[K], r Reducer[V]) *Group[K, V] {
	return &Group[K, V]{dim: dim, reduce: r}
}

// Dimension returns the grouped dimension.
func (g *Group[K, V]) Dimension() *Dimension[K] { return g.dim }

// All returns every key of the dimension in ascending order, each reduced
// over the records passing every filter except the dimension's own. Keys
// whose records are all filtered out keep their initial value.
func (g *Group[K, V]) All() []KeyValue[K, V] {
	d := g.dim
	if d.disposed {
		return nil
	}
	defer observeGroupRead(time.Now())

	d.sync()
	d.cf.syncFiltered()

	index := make(map[K]int)
	var out []KeyValue[K, V]
	for i, k := range d.keys {
		j, ok := index[k]
		if !ok {
			j = len(out)
			index[k] = j
			out = append(out, KeyValue[K, V]{Key: k, Value: g.reduce.Init()})
		}
		if d.cf.passes(i, d) {
			out[j].Value = g.reduce.Add(out[j].Value, d.cf.ds.At(i))
		}
	}

	sort.Slice(out, func(a, b int) bool { return d.cmp(out[a].Key, out[b].Key) < 0 })
	return out
}

// Size is the number of distinct keys.
func (g *Group[K, V]) Size() int {
	d := g.dim
	if d.disposed {
		return 0
	}
	d.sync()
	seen := make(map[K]struct{})
	for _, k := range d.keys {
		seen[k] = struct{}{}
	}
	return len(seen)
}

// Value reduces every record passing every filter, the dimension's own
// included.
func (g *Group[K, V]) Value() V {
	d := g.dim
	acc := g.reduce.Init()
	if d.disposed {
		return acc
	}
	d.cf.syncFiltered()
	for i := 0; i < d.cf.ds.Len(); i++ {
		if d.cf.passes(i, nil) {
			acc = g.reduce.Add(acc, d.cf.ds.At(i))
		}
	}
	return acc
}
