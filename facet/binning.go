package facet

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// MaxBins caps the number of bins a single grouping may produce.
const MaxBins = 100000

// Binning is a step function over ascending thresholds. Bin i covers
// [Thresholds[i], Thresholds[i+1]) and is labelled by Centers[i]. Values
// below the first threshold or at or above the last one fall outside every
// bin and group as Missing.
type Binning struct {
	Strategy   Strategy
	Param      float64
	Thresholds []float64
	Centers    []float64
}

// NewBinning builds the bins of a strategy over [lo, hi]. The parameter is
// a bin count for FixedN and Log and a bin width otherwise; its sign is
// ignored.
func NewBinning(s Strategy, param, lo, hi float64) (*Binning, error) {
	param = math.Abs(param)
	if math.IsNaN(param) || math.IsInf(param, 0) {
		return nil, fmt.Errorf("%w: %v", ErrBinParam, param)
	}

	b := &Binning{Strategy: s, Param: param}
	var err error
	switch s {
	case FixedN:
		err = b.fixedN(lo, hi)
	case FixedWidth:
		err = b.fixedWidth(lo, hi)
	case FixedWidthCentered:
		err = b.fixedWidthCentered(lo, hi)
	case Log:
		err = b.log(lo, hi)
	default:
		err = fmt.Errorf("%w: grouping %d", ErrUnsupported, s)
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

func binCount(param float64) (int, error) {
	n := int(math.Ceil(param))
	if n < 1 {
		n = 1
	}
	if n > MaxBins {
		return 0, fmt.Errorf("%w: %d", ErrTooManyBins, n)
	}
	return n, nil
}

func (b *Binning) fixedN(lo, hi float64) error {
	n, err := binCount(b.Param)
	if err != nil {
		return err
	}
	size := (hi - lo) / float64(n)

	b.Thresholds = floats.Span(make([]float64, n+1), lo, hi)
	b.Thresholds[n] = hi
	b.Centers = make([]float64, n)
	for i := range b.Centers {
		b.Centers[i] = lo + (float64(i)+0.5)*size
	}
	return nil
}

func (b *Binning) fixedWidth(lo, hi float64) error {
	w := b.Param
	if w == 0 {
		return fmt.Errorf("%w: zero bin width", ErrBinParam)
	}
	first := math.Floor(lo / w)
	if (hi-first*w)/w > MaxBins {
		return fmt.Errorf("%w: width %v over [%v, %v]", ErrTooManyBins, w, lo, hi)
	}

	bin := first
	for bin*w < hi || bin == first {
		b.Thresholds = append(b.Thresholds, bin*w)
		b.Centers = append(b.Centers, (bin+0.5)*w)
		bin++
	}
	b.Thresholds = append(b.Thresholds, bin*w)
	return nil
}

func (b *Binning) fixedWidthCentered(lo, hi float64) error {
	w := b.Param
	if w == 0 {
		return fmt.Errorf("%w: zero bin width", ErrBinParam)
	}
	first := math.Floor(lo/w + 0.5)
	if (hi-first*w)/w > MaxBins {
		return fmt.Errorf("%w: width %v over [%v, %v]", ErrTooManyBins, w, lo, hi)
	}

	bin := first
	for (bin-0.5)*w < hi || bin == first {
		b.Thresholds = append(b.Thresholds, (bin-0.5)*w)
		b.Centers = append(b.Centers, bin*w)
		bin++
	}
	b.Thresholds = append(b.Thresholds, (bin-0.5)*w)
	return nil
}

func (b *Binning) log(lo, hi float64) error {
	if lo <= 0 || hi <= 0 {
		return fmt.Errorf("%w: got [%v, %v]", ErrLogDomain, lo, hi)
	}
	n, err := binCount(b.Param)
	if err != nil {
		return err
	}
	x0 := math.Floor(math.Log10(lo))
	x1 := math.Ceil(math.Log10(hi))
	if x1 == x0 {
		x1 = x0 + 1
	}

	b.Thresholds = floats.LogSpan(make([]float64, n+1), math.Pow(10, x0), math.Pow(10, x1))
	b.Thresholds[0] = math.Pow(10, x0)
	b.Thresholds[n] = math.Pow(10, x1)
	b.Centers = make([]float64, n)
	for i := range b.Centers {
		b.Centers[i] = math.Sqrt(b.Thresholds[i] * b.Thresholds[i+1])
	}
	return nil
}

// Len is the number of bins.
func (b *Binning) Len() int { return len(b.Centers) }

// Index returns the bin holding x, or -1 when x is outside every bin.
func (b *Binning) Index(x float64) int {
	n := len(b.Thresholds)
	if n < 2 || math.IsNaN(x) || x < b.Thresholds[0] || x >= b.Thresholds[n-1] {
		return -1
	}
	return sort.Search(n, func(i int) bool { return b.Thresholds[i] > x }) - 1
}

// Bin returns the center of the bin holding x, or Missing.
func (b *Binning) Bin(x float64) Value {
	i := b.Index(x)
	if i < 0 {
		return Missing()
	}
	return Number(b.Centers[i])
}

// Units counts the thresholds crossed between two axis positions. Bar
// charts use it to size bars.
func (b *Binning) Units(start, end float64) int {
	return bisectRight(b.Thresholds, end) - bisectRight(b.Thresholds, start)
}

func bisectRight(a []float64, x float64) int {
	return sort.Search(len(a), func(i int) bool { return a[i] > x })
}
