package raster

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ASCII grid format errors.
var (
	ErrInvalidASCIIHeader = errors.New("invalid ASCII grid header")
	ErrTruncatedASCIIData = errors.New("truncated ASCII grid data")
)

// maxGridCells bounds the allocation for a single grid (roughly a 32k x 32k tile).
const maxGridCells = 1 << 30

// ParseASCIIGrid parses an ESRI ASCII grid (.asc) from raw bytes.
//
// The header accepts ncols, nrows, xllcorner|xllcenter, yllcorner|yllcenter,
// cellsize (or dx/dy) and an optional nodata_value, in any order and case.
// Values follow in row-major order starting with the northernmost row.
func ParseASCIIGrid(data []byte) (*Grid, error) {
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	sc.Split(bufio.ScanWords)

	header := make(map[string]float64)
	var first string
	for sc.Scan() {
		tok := sc.Text()
		if !isHeaderKey(tok) {
			first = tok
			break
		}
		key := strings.ToLower(tok)
		if !sc.Scan() {
			return nil, fmt.Errorf("%w: missing value for %s", ErrInvalidASCIIHeader, key)
		}
		v, err := strconv.ParseFloat(sc.Text(), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidASCIIHeader, key, err)
		}
		header[key] = v
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading ASCII grid: %w", err)
	}

	cols, rows, transform, err := gridGeometry(header)
	if err != nil {
		return nil, err
	}

	g := NewGrid(cols, rows, transform)
	if nodata, ok := header["nodata_value"]; ok {
		g.NoData = nodata
	}

	n := 0
	if first != "" {
		v, err := strconv.ParseFloat(first, 64)
		if err != nil {
			return nil, fmt.Errorf("parsing cell 0: %w", err)
		}
		g.Data[n] = v
		n++
	}
	for n < len(g.Data) && sc.Scan() {
		v, err := strconv.ParseFloat(sc.Text(), 64)
		if err != nil {
			return nil, fmt.Errorf("parsing cell %d: %w", n, err)
		}
		g.Data[n] = v
		n++
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading ASCII grid: %w", err)
	}
	if n < len(g.Data) {
		return nil, fmt.Errorf("%w: got %d of %d cells", ErrTruncatedASCIIData, n, len(g.Data))
	}

	return g, nil
}

// gridGeometry derives dimensions and the affine transform from the header.
func gridGeometry(h map[string]float64) (cols, rows int, transform Affine, err error) {
	nc, okc := h["ncols"]
	nr, okr := h["nrows"]
	if !okc || !okr {
		return 0, 0, Affine{}, fmt.Errorf("%w: ncols and nrows are required", ErrInvalidASCIIHeader)
	}
	// Range-check before converting: the float may be NaN or beyond int.
	if !(nc >= 1 && nr >= 1 && nc <= maxGridCells && nr <= maxGridCells) {
		return 0, 0, Affine{}, fmt.Errorf("%w: invalid dimensions %gx%g", ErrInvalidASCIIHeader, nc, nr)
	}
	cols, rows = int(nc), int(nr)
	if rows > maxGridCells/cols {
		return 0, 0, Affine{}, fmt.Errorf("%w: %dx%d grid exceeds %d cells", ErrInvalidASCIIHeader, cols, rows, maxGridCells)
	}

	dx, dy := h["cellsize"], h["cellsize"]
	if v, ok := h["dx"]; ok {
		dx = v
	}
	if v, ok := h["dy"]; ok {
		dy = v
	}
	if dx <= 0 || dy <= 0 {
		return 0, 0, Affine{}, fmt.Errorf("%w: cell size must be positive", ErrInvalidASCIIHeader)
	}

	var x0, y0 float64
	switch {
	case has(h, "xllcorner"):
		x0 = h["xllcorner"]
	case has(h, "xllcenter"):
		x0 = h["xllcenter"] - dx/2
	default:
		return 0, 0, Affine{}, fmt.Errorf("%w: xllcorner or xllcenter is required", ErrInvalidASCIIHeader)
	}
	switch {
	case has(h, "yllcorner"):
		y0 = h["yllcorner"]
	case has(h, "yllcenter"):
		y0 = h["yllcenter"] - dy/2
	default:
		return 0, 0, Affine{}, fmt.Errorf("%w: yllcorner or yllcenter is required", ErrInvalidASCIIHeader)
	}

	// The header names the lower-left corner; the transform anchors the top-left.
	transform = Affine{A: dx, C: x0, E: -dy, F: y0 + float64(rows)*dy}
	return cols, rows, transform, nil
}

func has(h map[string]float64, key string) bool {
	_, ok := h[key]
	return ok
}

func isHeaderKey(tok string) bool {
	if tok == "" {
		return false
	}
	c := tok[0]
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// LoadASCIIGrid reads an ASCII grid from disk. If a sibling .prj file exists
// its EPSG code is attached to the grid.
func LoadASCIIGrid(path string) (*Grid, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading ASCII grid: %w", err)
	}
	g, err := ParseASCIIGrid(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	g.EPSG = sidecarEPSG(path)
	return g, nil
}

// sidecarEPSG returns the EPSG code of the .prj next to path, or 0.
func sidecarEPSG(path string) int {
	prj := strings.TrimSuffix(path, filepath.Ext(path)) + ".prj"
	text, err := os.ReadFile(prj)
	if err != nil {
		return 0
	}
	return DetectEPSG(string(text))
}
