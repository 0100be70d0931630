// Package drape projects 2D footprint rings onto elevation rasters.
package drape

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/Faultbox/lodgen/pkg/raster"
)

// Geometry errors. They are recoverable: only the building being draped fails.
var (
	ErrGeometry       = errors.New("geometry error")
	ErrDegenerateRing = fmt.Errorf("%w: ring has fewer than 3 distinct points", ErrGeometry)
	ErrRadiusTooSmall = fmt.Errorf("%w: sampling radius too small for raster cell size", ErrGeometry)
)

// DefaultKernelSize is the window width used by MaxInKernel when no radius is set.
const DefaultKernelSize = 9

// Policy selects how a height is read from the raster.
type Policy int

const (
	// Nearest reads the cell under the point.
	Nearest Policy = iota
	// MaxInKernel reads the maximum of a square window centered on the point.
	// Footprint edges often straddle cells on the ground side of a wall, so
	// the local maximum keeps roofs from sagging at their edges.
	MaxInKernel
)

// String returns the configuration name of the policy.
func (p Policy) String() string {
	switch p {
	case Nearest:
		return "normal"
	case MaxInKernel:
		return "onedge"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

// Valid reports whether p is one of the defined policies.
func (p Policy) Valid() bool {
	return p == Nearest || p == MaxInKernel
}

// ParsePolicy maps a configuration value to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "normal", "nearest":
		return Nearest, nil
	case "onedge", "max", "max-in-kernel":
		return MaxInKernel, nil
	default:
		return 0, fmt.Errorf("unknown sampling mode %q (want normal or onedge)", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (p Policy) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Policy) UnmarshalText(text []byte) error {
	v, err := ParsePolicy(string(text))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// Sampler reads heights from a raster. Radius is in world units and only
// applies to MaxInKernel; zero selects DefaultKernelSize.
type Sampler struct {
	Policy Policy
	Radius float64
}

// KernelSize returns the window width used for a raster with the given cell size.
func (s Sampler) KernelSize(cellSize float64) (int, error) {
	if s.Radius == 0 {
		return DefaultKernelSize, nil
	}
	k := int(math.Floor(s.Radius / cellSize * 2))
	if k <= 1 {
		return 0, fmt.Errorf("%w: radius %g with cell size %g gives kernel %d", ErrRadiusTooSmall, s.Radius, cellSize, k)
	}
	return k, nil
}

// Validate checks the sampler against a raster's cell size.
func (s Sampler) Validate(cellSize float64) error {
	if s.Radius < 0 {
		return fmt.Errorf("%w: negative radius %g", ErrGeometry, s.Radius)
	}
	if s.Policy == MaxInKernel {
		_, err := s.KernelSize(cellSize)
		return err
	}
	return nil
}

// Sample returns the height of g at world coordinate (x, y).
// No-data values (the grid's NODATA or anything at or below
// raster.NoDataThreshold) are reported as 0.
func (s Sampler) Sample(x, y float64, g *raster.Grid) (float64, error) {
	row, col, err := g.Index(x, y)
	if err != nil {
		return 0, err
	}

	var v float64
	switch s.Policy {
	case Nearest:
		v, err = g.At(row, col)
	case MaxInKernel:
		var k int
		k, err = s.KernelSize(g.CellSize())
		if err != nil {
			return 0, err
		}
		v, err = g.WindowMax(row, col, (k-1)/2)
	default:
		return 0, fmt.Errorf("unknown sampling policy %v", s.Policy)
	}
	if err != nil {
		return 0, fmt.Errorf("sampling (%g, %g): %w", x, y, err)
	}

	if g.IsNoData(v) {
		return 0, nil
	}
	return v, nil
}
