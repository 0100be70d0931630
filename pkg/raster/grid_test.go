package raster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAffineInvertRoundTrip(t *testing.T) {
	a := Affine{A: 0.5, B: 0.1, C: 1000, D: -0.05, E: -0.5, F: 2000}
	x, y := a.Apply(12.25, 7.75)
	col, row, err := a.Invert(x, y)
	require.NoError(t, err)
	assert.InDelta(t, 12.25, col, 1e-9)
	assert.InDelta(t, 7.75, row, 1e-9)
}

func TestAffineInvertDegenerate(t *testing.T) {
	_, _, err := (Affine{}).Invert(1, 1)
	assert.Error(t, err)
}

func TestGridIndex(t *testing.T) {
	g := NewGrid(10, 10, NorthUp(100, 200, 2))

	tests := []struct {
		x, y     float64
		row, col int
	}{
		{100.5, 199.5, 0, 0},
		{101.9, 198.1, 0, 0},
		{102.0, 198.0, 1, 1},
		{119.9, 180.1, 9, 9},
		{99.5, 199.5, 0, -1},
	}

	for _, tt := range tests {
		row, col, err := g.Index(tt.x, tt.y)
		require.NoError(t, err)
		assert.Equal(t, [2]int{tt.row, tt.col}, [2]int{row, col}, "Index(%v, %v)", tt.x, tt.y)
	}
}

func TestGridAtOutOfBounds(t *testing.T) {
	g := NewGrid(3, 2, NorthUp(0, 0, 1))

	_, err := g.At(2, 0)
	assert.ErrorIs(t, err, ErrOutOfBounds)
	_, err = g.At(0, -1)
	assert.ErrorIs(t, err, ErrOutOfBounds)
	_, err = g.At(1, 2)
	assert.NoError(t, err)
}

func TestGridWindowMax(t *testing.T) {
	g := NewGrid(5, 5, NorthUp(0, 5, 1))
	for r := 0; r < 5; r++ {
		for c := 0; c < 5; c++ {
			g.Set(r, c, float64(r*5+c))
		}
	}

	got, err := g.WindowMax(2, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, 18.0, got)

	got, err = g.WindowMax(2, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, 24.0, got)

	_, err = g.WindowMax(1, 1, 2)
	assert.ErrorIs(t, err, ErrOutOfBounds)
}

func TestGridStats(t *testing.T) {
	g := NewGrid(2, 2, NorthUp(0, 2, 1))
	g.NoData = -9999
	g.Data = []float64{1, 3, -9999, -99999}

	s := g.Stats()
	assert.Equal(t, 2, s.Valid)
	assert.Equal(t, 2, s.NoDataCell)
	assert.Equal(t, 1.0, s.Min)
	assert.Equal(t, 3.0, s.Max)
	assert.Equal(t, 2.0, s.Mean)
}

func TestGridBounds(t *testing.T) {
	g := NewGrid(4, 3, NorthUp(10, 50, 5))
	minX, minY, maxX, maxY := g.Bounds()
	assert.Equal(t, []float64{10, 35, 30, 50}, []float64{minX, minY, maxX, maxY})
}
