package lod

import (
	"fmt"

	"github.com/Faultbox/lodgen/internal/drape"
	"github.com/Faultbox/lodgen/internal/footprint"
	"github.com/Faultbox/lodgen/pkg/cityjson"
	"github.com/Faultbox/lodgen/pkg/math"
	"github.com/Faultbox/lodgen/pkg/raster"
)

// Part is one assembled building whose geometry indexes into its own
// Vertices. Committing it to a model rebases the indices into the shared pool.
type Part struct {
	ID         string
	Attributes map[string]any
	Vertices   []math.Vec3
	Geometry   cityjson.Geometry
}

// Assembler turns a footprint into building geometry. It only reads its
// rasters, so one Assembler can serve many goroutines.
type Assembler struct {
	Sampler        drape.Sampler
	Surface        *raster.Grid
	Ground         *raster.Grid // nil puts every ground vertex at z = 0
	Representation cityjson.Representation
	LOD            int
}

// Assemble drapes every ring of b and builds its roof, ground and walls.
//
// The outer ring yields the roof (top loop reversed), the ground (bottom loop
// in ring order) and the outer walls. Each hole adds one more loop to the roof
// and to the ground and contributes inner walls, which end up appended to the
// face list (MultiSurface) or in a second shell (Solid).
func (a *Assembler) Assemble(b footprint.Building) (*Part, error) {
	if b.ID == "" {
		return nil, ErrMissingID
	}
	if len(b.Rings) == 0 {
		return nil, fmt.Errorf("building %q: %w: footprint has no rings", b.ID, ErrGeometry)
	}

	var (
		vertices   []math.Vec3
		roof       cityjson.Polygon
		ground     cityjson.Polygon
		outerWalls []cityjson.Polygon
		innerWalls []cityjson.Polygon
	)

	for i, ring := range b.Rings {
		if ring.Role.IsOuter() != (i == 0) {
			return nil, fmt.Errorf("building %q: %w: ring %d has role %s", b.ID, ErrGeometry, i, ring.Role)
		}

		d, err := drape.Drape(ring, a.Sampler, a.Surface, a.Ground)
		if err != nil {
			return nil, fmt.Errorf("building %q: %w", b.ID, err)
		}

		n := d.Len()
		top := len(vertices)
		vertices = append(vertices, d.Top...)
		bottom := len(vertices)
		vertices = append(vertices, d.Bottom...)

		walls := BuildWalls(top, bottom, n, ring.Role)
		topLoop := make([]int, n)
		bottomLoop := make([]int, n)
		for j := 0; j < n; j++ {
			topLoop[n-1-j] = top + j
			bottomLoop[j] = bottom + j
		}

		if ring.Role.IsOuter() {
			roof = cityjson.Polygon{topLoop}
			ground = cityjson.Polygon{bottomLoop}
			outerWalls = walls
		} else {
			roof = append(roof, topLoop)
			ground = append(ground, bottomLoop)
			innerWalls = append(innerWalls, walls...)
		}
	}

	var outer cityjson.Shell
	outer.Add(roof, cityjson.Roof, cityjson.MaterialRoofAndGround)
	outer.Add(ground, cityjson.Ground, cityjson.MaterialRoofAndGround)
	outer.Extend(wallShell(outerWalls))
	inner := wallShell(innerWalls)

	geom, err := compose(a.Representation, outer, inner)
	if err != nil {
		return nil, fmt.Errorf("building %q: %w", b.ID, err)
	}
	geom.LOD = a.LOD

	return &Part{
		ID:         b.ID,
		Attributes: b.Attributes,
		Vertices:   vertices,
		Geometry:   geom,
	}, nil
}

// compose nests the outer shell and the inner walls for the representation.
func compose(rep cityjson.Representation, outer, inner cityjson.Shell) (cityjson.Geometry, error) {
	hasHoles := inner.Len() > 0
	switch rep {
	case cityjson.MultiSurface:
		if hasHoles {
			outer.Extend(inner)
		}
		return cityjson.Geometry{Type: rep, Shells: []cityjson.Shell{outer}}, nil
	case cityjson.Solid:
		if hasHoles {
			return cityjson.Geometry{Type: rep, Shells: []cityjson.Shell{outer, inner}}, nil
		}
		return cityjson.Geometry{Type: rep, Shells: []cityjson.Shell{outer}}, nil
	default:
		return cityjson.Geometry{}, fmt.Errorf("%w: %d", ErrUnsupportedBuildingType, int(rep))
	}
}
