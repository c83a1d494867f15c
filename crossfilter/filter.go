package crossfilter

// ============================================================================
// FILTERS: Key predicates applied to a dimension
// ============================================================================
// Within one dimension a filter may accept several keys (OR); across
// dimensions filters intersect (AND).
// ============================================================================

// Filter selects the keys of a dimension that pass.
type Filter[K comparable] interface {
	Match(key K) bool
}

// FilterFunc adapts a function to a Filter.
type FilterFunc[K comparable] func(K) bool

func (f FilterFunc[K]) Match(key K) bool { return f(key) }

// Exact passes a single key.
func Exact[K comparable](key K) Filter[K] {
	return FilterFunc[K](func(k K) bool { return k == key })
}

// In passes any of keys.
func In[K comparable](keys ...K) Filter[K] {
	set := make(map[K]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	return FilterFunc[K](func(k K) bool {
		_, ok := set[k]
		return ok
	})
}

// Range passes keys in the half-open interval [lo, hi) under cmp.
func Range[K comparable](lo, hi K, cmp func(a, b K) int) Filter[K] {
	return FilterFunc[K](func(k K) bool {
		return cmp(k, lo) >= 0 && cmp(k, hi) < 0
	})
}
