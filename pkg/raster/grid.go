// Package raster provides elevation grids with an affine georeference and
// readers for the raster formats the model builder accepts.
package raster

import (
	"errors"
	"fmt"
	"math"
)

// NoDataThreshold is the value at or below which a cell is treated as no-data,
// regardless of the grid's declared NODATA value.
const NoDataThreshold = -32767

// ErrOutOfBounds is returned when a cell or sampling window falls outside the grid.
var ErrOutOfBounds = errors.New("raster index out of bounds")

// Affine is a 6-parameter affine transform mapping (col, row) to world (x, y):
//
//	x = A*col + B*row + C
//	y = D*col + E*row + F
type Affine struct {
	A, B, C float64
	D, E, F float64
}

// NorthUp returns the transform of a north-up grid whose top-left corner is
// at (originX, originY) with square cells of the given size.
func NorthUp(originX, originY, cellSize float64) Affine {
	return Affine{A: cellSize, C: originX, E: -cellSize, F: originY}
}

// Apply maps fractional pixel coordinates to world coordinates.
func (a Affine) Apply(col, row float64) (x, y float64) {
	return a.A*col + a.B*row + a.C, a.D*col + a.E*row + a.F
}

// Invert maps world coordinates to fractional pixel coordinates.
func (a Affine) Invert(x, y float64) (col, row float64, err error) {
	det := a.A*a.E - a.B*a.D
	if det == 0 {
		return 0, 0, fmt.Errorf("degenerate affine transform %v", a)
	}
	dx, dy := x-a.C, y-a.F
	col = (a.E*dx - a.B*dy) / det
	row = (-a.D*dx + a.A*dy) / det
	return col, row, nil
}

// CellSize returns the pixel width, the first coefficient of the transform.
func (a Affine) CellSize() float64 {
	return math.Abs(a.A)
}

// Grid is a single-band elevation raster held in memory. It is read-only once
// built and safe to share between goroutines.
type Grid struct {
	Cols      int
	Rows      int
	Data      []float64 // row-major, row 0 is the top of the raster
	Transform Affine
	NoData    float64
	EPSG      int // 0 when unknown
}

// NewGrid allocates a grid filled with zeros.
func NewGrid(cols, rows int, transform Affine) *Grid {
	return &Grid{
		Cols:      cols,
		Rows:      rows,
		Data:      make([]float64, cols*rows),
		Transform: transform,
		NoData:    NoDataThreshold,
	}
}

// CellSize returns the pixel width of the grid.
func (g *Grid) CellSize() float64 {
	return g.Transform.CellSize()
}

// Contains reports whether (row, col) lies inside the grid.
func (g *Grid) Contains(row, col int) bool {
	return row >= 0 && col >= 0 && row < g.Rows && col < g.Cols
}

// At returns the raw value at (row, col).
func (g *Grid) At(row, col int) (float64, error) {
	if !g.Contains(row, col) {
		return 0, fmt.Errorf("%w: cell (%d, %d) outside %dx%d grid", ErrOutOfBounds, row, col, g.Rows, g.Cols)
	}
	return g.Data[row*g.Cols+col], nil
}

// Set stores v at (row, col). It panics on out-of-range indices.
func (g *Grid) Set(row, col int, v float64) {
	if !g.Contains(row, col) {
		panic(fmt.Sprintf("raster: Set(%d, %d) outside %dx%d grid", row, col, g.Rows, g.Cols))
	}
	g.Data[row*g.Cols+col] = v
}

// Index converts a world coordinate to the (row, col) of the cell containing it.
func (g *Grid) Index(x, y float64) (row, col int, err error) {
	fc, fr, err := g.Transform.Invert(x, y)
	if err != nil {
		return 0, 0, err
	}
	return int(math.Floor(fr)), int(math.Floor(fc)), nil
}

// WindowMax returns the maximum value of the square window spanning rows and
// columns [center-half, center+half]. The whole window must lie inside the grid.
func (g *Grid) WindowMax(row, col, half int) (float64, error) {
	if half < 0 {
		half = 0
	}
	r0, r1 := row-half, row+half
	c0, c1 := col-half, col+half
	if !g.Contains(r0, c0) || !g.Contains(r1, c1) {
		return 0, fmt.Errorf("%w: window rows %d..%d cols %d..%d outside %dx%d grid",
			ErrOutOfBounds, r0, r1, c0, c1, g.Rows, g.Cols)
	}

	max := math.Inf(-1)
	for r := r0; r <= r1; r++ {
		line := g.Data[r*g.Cols : (r+1)*g.Cols]
		for c := c0; c <= c1; c++ {
			if line[c] > max {
				max = line[c]
			}
		}
	}
	return max, nil
}

// IsNoData reports whether v should be treated as a missing sample.
func (g *Grid) IsNoData(v float64) bool {
	return v <= NoDataThreshold || v == g.NoData
}

// Stats summarizes the valid cells of a grid.
type Stats struct {
	Min, Max   float64
	Mean       float64
	Valid      int
	NoDataCell int
}

// Stats scans the grid and returns the range of its valid cells.
func (g *Grid) Stats() Stats {
	s := Stats{Min: math.Inf(1), Max: math.Inf(-1)}
	var sum float64
	for _, v := range g.Data {
		if g.IsNoData(v) {
			s.NoDataCell++
			continue
		}
		s.Valid++
		sum += v
		if v < s.Min {
			s.Min = v
		}
		if v > s.Max {
			s.Max = v
		}
	}
	if s.Valid == 0 {
		return Stats{NoDataCell: s.NoDataCell}
	}
	s.Mean = sum / float64(s.Valid)
	return s
}

// Bounds returns the world-space corners of the grid as (minX, minY, maxX, maxY).
func (g *Grid) Bounds() (minX, minY, maxX, maxY float64) {
	minX, minY = math.Inf(1), math.Inf(1)
	maxX, maxY = math.Inf(-1), math.Inf(-1)
	for _, corner := range [4][2]float64{{0, 0}, {float64(g.Cols), 0}, {0, float64(g.Rows)}, {float64(g.Cols), float64(g.Rows)}} {
		x, y := g.Transform.Apply(corner[0], corner[1])
		minX, maxX = math.Min(minX, x), math.Max(maxX, x)
		minY, maxY = math.Min(minY, y), math.Max(maxY, y)
	}
	return minX, minY, maxX, maxY
}
