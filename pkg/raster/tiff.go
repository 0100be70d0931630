package raster

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/image/tiff"
)

// TIFF raster errors.
var (
	ErrUnsupportedTIFF  = errors.New("unsupported TIFF raster")
	ErrInvalidWorldFile = errors.New("invalid world file")
)

// DecodeTIFF decodes a single-band integer TIFF (8 or 16 bit grayscale) into
// a grid placed by transform. Samples are read as unsigned integers, so the
// grid carries no no-data cells unless the caller sets NoData.
func DecodeTIFF(r io.Reader, transform Affine) (*Grid, error) {
	img, err := tiff.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decoding TIFF: %w", err)
	}

	b := img.Bounds()
	cols, rows := b.Dx(), b.Dy()
	if cols < 1 || rows < 1 || rows > maxGridCells/cols {
		return nil, fmt.Errorf("%w: invalid dimensions %dx%d", ErrUnsupportedTIFF, cols, rows)
	}

	g := NewGrid(cols, rows, transform)
	switch im := img.(type) {
	case *image.Gray16:
		for row := 0; row < rows; row++ {
			for col := 0; col < cols; col++ {
				g.Data[row*cols+col] = float64(im.Gray16At(b.Min.X+col, b.Min.Y+row).Y)
			}
		}
	case *image.Gray:
		for row := 0; row < rows; row++ {
			for col := 0; col < cols; col++ {
				g.Data[row*cols+col] = float64(im.GrayAt(b.Min.X+col, b.Min.Y+row).Y)
			}
		}
	default:
		return nil, fmt.Errorf("%w: %T samples, want 8 or 16 bit grayscale", ErrUnsupportedTIFF, img)
	}
	return g, nil
}

// ParseWorldFile parses an ESRI world file (.tfw). Its six lines give the
// pixel size and rotation terms followed by the center of the top-left pixel;
// the returned transform anchors the top-left corner instead.
func ParseWorldFile(data []byte) (Affine, error) {
	fields := strings.Fields(string(data))
	if len(fields) != 6 {
		return Affine{}, fmt.Errorf("%w: want 6 values, got %d", ErrInvalidWorldFile, len(fields))
	}
	var v [6]float64
	for i, f := range fields {
		x, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return Affine{}, fmt.Errorf("%w: line %d: %v", ErrInvalidWorldFile, i+1, err)
		}
		v[i] = x
	}

	a := Affine{A: v[0], D: v[1], B: v[2], E: v[3], C: v[4], F: v[5]}
	if a.A*a.E-a.B*a.D == 0 {
		return Affine{}, fmt.Errorf("%w: degenerate transform", ErrInvalidWorldFile)
	}
	a.C -= (a.A + a.B) / 2
	a.F -= (a.D + a.E) / 2
	return a, nil
}

// worldFileNames lists the sidecar names tried for a raster, e.g. dsm.tfw
// and dsm.tifw for dsm.tif.
func worldFileNames(path string) []string {
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	names := []string{base + ext + "w"}
	if len(ext) > 2 {
		short := strings.ToLower(ext[:2] + ext[len(ext)-1:])
		names = append([]string{base + short + "w"}, names...)
	}
	names = append(names, base+".wld")
	return names
}

// LoadTIFF reads an integer elevation TIFF from disk. The transform comes
// from a sibling world file, which is required; a sibling .prj supplies the
// EPSG code as it does for ASCII grids.
func LoadTIFF(path string) (*Grid, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading TIFF: %w", err)
	}

	var transform Affine
	found := false
	for _, name := range worldFileNames(path) {
		text, err := os.ReadFile(name)
		if err != nil {
			continue
		}
		if transform, err = ParseWorldFile(text); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		found = true
		break
	}
	if !found {
		return nil, fmt.Errorf("%s: %w: no world file next to the raster", path, ErrInvalidWorldFile)
	}

	g, err := DecodeTIFF(bytes.NewReader(data), transform)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	g.EPSG = sidecarEPSG(path)
	return g, nil
}

// Load reads a raster, choosing the reader by file extension: .tif and .tiff
// are read as TIFF, anything else as an ESRI ASCII grid.
func Load(path string) (*Grid, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".tif", ".tiff":
		return LoadTIFF(path)
	default:
		return LoadASCIIGrid(path)
	}
}
