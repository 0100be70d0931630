// Package cityjson models the CityJSON document the building generator emits:
// a shared vertex pool and per-building geometries that index into it.
package cityjson

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnsupportedRepresentation is returned for geometry types other than
// MultiSurface and Solid.
var ErrUnsupportedRepresentation = errors.New("unsupported building representation")

// SurfaceType is the semantic class of a face.
type SurfaceType int

// Semantic surface types, in the order of the semantics "surfaces" array.
const (
	Roof SurfaceType = iota
	Ground
	Wall
)

// String returns the CityJSON semantic surface name.
func (s SurfaceType) String() string {
	switch s {
	case Roof:
		return "RoofSurface"
	case Ground:
		return "GroundSurface"
	case Wall:
		return "WallSurface"
	default:
		return fmt.Sprintf("SurfaceType(%d)", int(s))
	}
}

// Material indices into the appearance materials.
const (
	MaterialRoofAndGround = 0
	MaterialWall          = 1
)

// Representation is the CityJSON geometry type of a building.
type Representation int

const (
	MultiSurface Representation = iota
	Solid
)

// String returns the CityJSON geometry type name.
func (r Representation) String() string {
	switch r {
	case MultiSurface:
		return "MultiSurface"
	case Solid:
		return "Solid"
	default:
		return fmt.Sprintf("Representation(%d)", int(r))
	}
}

// Valid reports whether r is a supported representation.
func (r Representation) Valid() bool {
	return r == MultiSurface || r == Solid
}

// ParseRepresentation maps a geometry type name to a Representation.
func ParseRepresentation(s string) (Representation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "multisurface":
		return MultiSurface, nil
	case "solid":
		return Solid, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedRepresentation, s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (r Representation) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedRepresentation, int(r))
	}
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Representation) UnmarshalText(text []byte) error {
	v, err := ParseRepresentation(string(text))
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// Polygon is a face: one or more loops of vertex indices, the first being
// the exterior and the rest holes.
type Polygon [][]int

// Reversed returns a copy of p with the winding of every loop reversed.
func (p Polygon) Reversed() Polygon {
	out := make(Polygon, len(p))
	for i, loop := range p {
		out[i] = reverseLoop(loop)
	}
	return out
}

func reverseLoop(loop []int) []int {
	out := make([]int, len(loop))
	for i, v := range loop {
		out[len(loop)-1-i] = v
	}
	return out
}

// Shell is a list of faces with parallel semantic and material values.
type Shell struct {
	Polygons  []Polygon
	Semantics []SurfaceType
	Materials []int
}

// Add appends one face.
func (s *Shell) Add(p Polygon, t SurfaceType, material int) {
	s.Polygons = append(s.Polygons, p)
	s.Semantics = append(s.Semantics, t)
	s.Materials = append(s.Materials, material)
}

// Extend appends all faces of other.
func (s *Shell) Extend(other Shell) {
	s.Polygons = append(s.Polygons, other.Polygons...)
	s.Semantics = append(s.Semantics, other.Semantics...)
	s.Materials = append(s.Materials, other.Materials...)
}

// Len returns the number of faces.
func (s Shell) Len() int {
	return len(s.Polygons)
}

// Validate checks that the parallel lists line up and that every index is
// below vertexCount.
func (s Shell) Validate(vertexCount int) error {
	if len(s.Semantics) != len(s.Polygons) || len(s.Materials) != len(s.Polygons) {
		return fmt.Errorf("shell has %d faces, %d semantics, %d materials",
			len(s.Polygons), len(s.Semantics), len(s.Materials))
	}
	for i, p := range s.Polygons {
		if len(p) == 0 {
			return fmt.Errorf("face %d has no loops", i)
		}
		for j, loop := range p {
			if len(loop) < 3 {
				return fmt.Errorf("face %d loop %d has %d vertices", i, j, len(loop))
			}
			for _, v := range loop {
				if v < 0 || v >= vertexCount {
					return fmt.Errorf("face %d loop %d: index %d outside pool of %d", i, j, v, vertexCount)
				}
			}
		}
	}
	return nil
}

// Geometry is the boundary representation of one building.
// MultiSurface geometries have exactly one shell; Solid geometries have an
// outer shell and optionally an inner shell.
type Geometry struct {
	Type   Representation
	LOD    int
	Shells []Shell
}

// FaceCount returns the number of faces over all shells.
func (g Geometry) FaceCount() int {
	n := 0
	for _, s := range g.Shells {
		n += s.Len()
	}
	return n
}

// Validate checks the shell count for the representation and every shell.
func (g Geometry) Validate(vertexCount int) error {
	switch g.Type {
	case MultiSurface:
		if len(g.Shells) != 1 {
			return fmt.Errorf("MultiSurface with %d shells", len(g.Shells))
		}
	case Solid:
		if len(g.Shells) == 0 {
			return errors.New("Solid without shells")
		}
	default:
		return fmt.Errorf("%w: %d", ErrUnsupportedRepresentation, int(g.Type))
	}
	for i, s := range g.Shells {
		if err := s.Validate(vertexCount); err != nil {
			return fmt.Errorf("shell %d: %w", i, err)
		}
	}
	return nil
}

// Offset returns a copy of g with delta added to every vertex index.
func (g Geometry) Offset(delta int) Geometry {
	out := Geometry{Type: g.Type, LOD: g.LOD, Shells: make([]Shell, len(g.Shells))}
	for i, s := range g.Shells {
		ns := Shell{
			Polygons:  make([]Polygon, len(s.Polygons)),
			Semantics: append([]SurfaceType(nil), s.Semantics...),
			Materials: append([]int(nil), s.Materials...),
		}
		for j, p := range s.Polygons {
			np := make(Polygon, len(p))
			for k, loop := range p {
				nl := make([]int, len(loop))
				for m, v := range loop {
					nl[m] = v + delta
				}
				np[k] = nl
			}
			ns.Polygons[j] = np
		}
		out.Shells[i] = ns
	}
	return out
}

// CityObject is one building of the model.
type CityObject struct {
	Type       string         `json:"type"`
	Attributes map[string]any `json:"attributes"`
	Geometry   []Geometry     `json:"geometry"`
}

// Span locates a building's vertices in the pool.
type Span struct {
	Start int
	Len   int
}

// End returns the index one past the building's last vertex.
func (s Span) End() int {
	return s.Start + s.Len
}
