package drape

import (
	"fmt"

	"github.com/Faultbox/lodgen/internal/footprint"
	"github.com/Faultbox/lodgen/pkg/math"
	"github.com/Faultbox/lodgen/pkg/raster"
)

// DrapedRing holds the top and bottom vertices of one ring, in ring order.
// Every top vertex carries the ring's mean surface height and every bottom
// vertex the ring's mean ground height (0 without a ground raster).
type DrapedRing struct {
	Role   footprint.RingRole
	Top    []math.Vec3
	Bottom []math.Vec3
}

// Len returns the number of vertices on each level.
func (d DrapedRing) Len() int {
	return len(d.Top)
}

// Drape samples surface (and ground, when non-nil) for every point of ring.
//
// Heights are averaged per ring, which flattens any undulation inside a
// footprint into a single roof plane and a single ground plane.
func Drape(ring footprint.Ring, s Sampler, surface, ground *raster.Grid) (DrapedRing, error) {
	n := ring.Len()
	if n < 3 {
		return DrapedRing{}, fmt.Errorf("%s ring: %w (got %d)", ring.Role, ErrDegenerateRing, n)
	}

	d := DrapedRing{
		Role:   ring.Role,
		Top:    make([]math.Vec3, n),
		Bottom: make([]math.Vec3, n),
	}

	var topSum, bottomSum float64
	for i, p := range ring.Points {
		z, err := s.Sample(p[0], p[1], surface)
		if err != nil {
			return DrapedRing{}, fmt.Errorf("%s ring, vertex %d: surface: %w", ring.Role, i, err)
		}
		topSum += z
		d.Top[i] = math.Vec3{X: p[0], Y: p[1], Z: z}

		d.Bottom[i] = math.Vec3{X: p[0], Y: p[1]}
		if ground != nil {
			z, err := s.Sample(p[0], p[1], ground)
			if err != nil {
				return DrapedRing{}, fmt.Errorf("%s ring, vertex %d: ground: %w", ring.Role, i, err)
			}
			bottomSum += z
			d.Bottom[i].Z = z
		}
	}

	top := topSum / float64(n)
	for i := range d.Top {
		d.Top[i].Z = top
	}
	if ground != nil {
		bottom := bottomSum / float64(n)
		for i := range d.Bottom {
			d.Bottom[i].Z = bottom
		}
	}

	return d, nil
}
