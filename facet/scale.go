package facet

import (
	"math"
	"sort"

	"github.com/aclements/go-moremath/scale"
)

// Scale maps group keys onto an axis.
type Scale interface {
	// Map returns the position of v in [0, 1], or NaN for values the
	// scale cannot place.
	Map(v Value) float64

	// Ticks returns at most max axis ticks in ascending order.
	Ticks(max int) []Value

	// Units counts the groups between two axis positions.
	Units(start, end Value) int
}

// ====== CONTINUOUS ======

type continuousScale struct {
	bins   *Binning
	linear *scale.Linear
	log    *scale.Log
}

func newContinuousScale(c Continuous) (*continuousScale, error) {
	s := &continuousScale{bins: c.Binning}
	if c.Binning.Strategy == Log {
		ls, err := scale.NewLog(c.Min, c.Max, 10)
		if err != nil {
			return nil, err
		}
		s.log = &ls
		return s, nil
	}
	s.linear = &scale.Linear{Min: c.Min, Max: c.Max}
	return s, nil
}

func (s *continuousScale) Map(v Value) float64 {
	x, ok := v.Float()
	if !ok {
		return math.NaN()
	}
	if s.log != nil {
		return s.log.Map(x)
	}
	return s.linear.Map(x)
}

func (s *continuousScale) Ticks(max int) []Value {
	if max < 1 {
		return nil
	}
	o := scale.TickOptions{Max: max}
	var major []float64
	if s.log != nil {
		major, _ = s.log.Ticks(o)
	} else {
		major, _ = s.linear.Ticks(o)
	}
	out := make([]Value, 0, len(major))
	for _, x := range major {
		out = append(out, Number(x))
	}
	return out
}

func (s *continuousScale) Units(start, end Value) int {
	a, ok1 := start.Float()
	b, ok2 := end.Float()
	if !ok1 || !ok2 {
		return 0
	}
	return s.bins.Units(a, b)
}

// ====== ORDINAL ======

type ordinalScale struct {
	domain []string
	index  map[string]int
}

func newOrdinalScale(domain []string) *ordinalScale {
	s := &ordinalScale{domain: domain, index: make(map[string]int, len(domain))}
	for i, d := range domain {
		s.index[d] = i
	}
	return s
}

// Map places category i at the center of the i-th of len(domain) bands.
func (s *ordinalScale) Map(v Value) float64 {
	i, ok := s.index[v.Text()]
	if !ok || !v.IsLabel() {
		return math.NaN()
	}
	return (float64(i) + 0.5) / float64(len(s.domain))
}

func (s *ordinalScale) Ticks(max int) []Value {
	n := len(s.domain)
	if max < 1 || n == 0 {
		return nil
	}
	step := 1
	if n > max {
		step = (n + max - 1) / max
	}
	var out []Value
	for i := 0; i < n; i += step {
		out = append(out, Label(s.domain[i]))
	}
	return out
}

// Units is the number of categories from start up to, not including, end.
// An unknown end counts to the end of the domain.
func (s *ordinalScale) Units(start, end Value) int {
	i := sort.SearchStrings(s.domain, start.Text())
	j, ok := s.index[end.Text()]
	if !ok {
		j = len(s.domain)
	}
	if j < i {
		return 0
	}
	return j - i
}
