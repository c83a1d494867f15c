package facet

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixedNThresholdCount(t *testing.T) {
	for _, n := range []float64{1, 3, 10, 20, -7, 2.5} {
		b, err := NewBinning(FixedN, n, 0, 100)
		require.NoError(t, err)

		want := int(math.Ceil(math.Abs(n)))
		assert.Equal(t, want, b.Len(), "bins for param %v", n)
		assert.Len(t, b.Thresholds, want+1, "thresholds for param %v", n)
		assert.Equal(t, 0.0, b.Thresholds[0])
		assert.Equal(t, 100.0, b.Thresholds[want])
	}
}

func TestFixedNOutOfRange(t *testing.T) {
	b, err := NewBinning(FixedN, 10, 0, 100)
	require.NoError(t, err)

	assert.True(t, b.Bin(-0.001).IsMissing(), "below range")
	assert.True(t, b.Bin(100).IsMissing(), "at or above maxval")
	assert.True(t, b.Bin(250).IsMissing(), "above range")
	assert.Equal(t, Number(5), b.Bin(0))
	assert.Equal(t, Number(95), b.Bin(99.9))
	assert.Equal(t, Number(15), b.Bin(10))
}

func TestFixedWidth(t *testing.T) {
	b, err := NewBinning(FixedWidth, 25, 0, 100)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 25, 50, 75, 100}, b.Thresholds)
	assert.Equal(t, []float64{12.5, 37.5, 62.5, 87.5}, b.Centers)

	b, err = NewBinning(FixedWidth, -10, 3, 98)
	require.NoError(t, err)
	assert.Equal(t, 0.0, b.Thresholds[0])
	assert.GreaterOrEqual(t, b.Thresholds[len(b.Thresholds)-1], 98.0)
	assert.Equal(t, Number(5), b.Bin(3))
	assert.Equal(t, Number(95), b.Bin(98))
}

func TestFixedWidthCentered(t *testing.T) {
	b, err := NewBinning(FixedWidthCentered, 10, 0, 100)
	require.NoError(t, err)

	for _, c := range b.Centers {
		assert.Zero(t, math.Mod(c, 10), "center %v is not a multiple of the width", c)
	}
	assert.Equal(t, -5.0, b.Thresholds[0])
	assert.GreaterOrEqual(t, b.Thresholds[len(b.Thresholds)-1], 100.0)
	assert.Equal(t, Number(0), b.Bin(4.9))
	assert.Equal(t, Number(10), b.Bin(5))
	assert.Equal(t, Number(100), b.Bin(100))
	assert.True(t, b.Bin(-6).IsMissing())
}

func TestLogBins(t *testing.T) {
	b, err := NewBinning(Log, 3, 1, 1000)
	require.NoError(t, err)

	require.Len(t, b.Thresholds, 4)
	assert.Equal(t, 1.0, b.Thresholds[0])
	assert.Equal(t, 1000.0, b.Thresholds[3])
	assert.InDelta(t, 10, b.Thresholds[1], 1e-9)
	assert.InDelta(t, 100, b.Thresholds[2], 1e-9)

	x, ok := b.Bin(50).Float()
	require.True(t, ok)
	assert.InDelta(t, math.Sqrt(1000), x, 1e-9)
	assert.True(t, b.Bin(0.5).IsMissing())

	// Equal decades still produce one decade of bins.
	b, err = NewBinning(Log, 1, 10, 10)
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 100}, b.Thresholds)

	_, err = NewBinning(Log, 5, -1, 10)
	assert.ErrorIs(t, err, ErrLogDomain)
}

func TestBinningErrors(t *testing.T) {
	_, err := NewBinning(FixedWidth, 0, 0, 10)
	assert.ErrorIs(t, err, ErrBinParam)

	_, err = NewBinning(FixedWidthCentered, math.NaN(), 0, 10)
	assert.ErrorIs(t, err, ErrBinParam)

	_, err = NewBinning(FixedN, 1e7, 0, 10)
	assert.ErrorIs(t, err, ErrTooManyBins)

	_, err = NewBinning(FixedWidth, 1e-4, 0, 100)
	assert.ErrorIs(t, err, ErrTooManyBins)
}

func TestUnits(t *testing.T) {
	b, err := NewBinning(FixedN, 10, 0, 100)
	require.NoError(t, err)
	assert.Equal(t, 5, b.Units(0, 50))
	assert.Equal(t, 10, b.Units(0, 100))
	assert.Zero(t, b.Units(42, 42))
}
