// Package footprint holds the 2D building footprints the model is built from
// and the readers that produce them.
package footprint

import (
	"fmt"

	"github.com/paulmach/orb"
)

// RingRole tells whether a ring is the outer boundary of a footprint or one
// of its holes. Roles are assigned once when footprints are normalized.
type RingRole struct {
	hole int // 0 for the outer ring, n >= 1 for the n-th hole
}

// Outer is the role of a footprint's boundary ring.
var Outer = RingRole{}

// Hole returns the role of the n-th hole (n >= 1).
func Hole(n int) RingRole {
	if n < 1 {
		panic(fmt.Sprintf("footprint: invalid hole number %d", n))
	}
	return RingRole{hole: n}
}

// IsOuter reports whether the ring is the outer boundary.
func (r RingRole) IsOuter() bool {
	return r.hole == 0
}

// String returns "outer" or "hole(n)".
func (r RingRole) String() string {
	if r.IsOuter() {
		return "outer"
	}
	return fmt.Sprintf("hole(%d)", r.hole)
}

// Ring is a closed boundary stored without its repeated closing point, so
// len(Points) is the number of distinct vertices.
type Ring struct {
	Role   RingRole
	Points []orb.Point
}

// Len returns the number of distinct vertices.
func (r Ring) Len() int {
	return len(r.Points)
}

// OpenRing drops the closing point of a ring if it repeats the first one.
func OpenRing(ring orb.Ring) []orb.Point {
	pts := []orb.Point(ring)
	if n := len(pts); n > 1 && pts[0].Equal(pts[n-1]) {
		pts = pts[:n-1]
	}
	out := make([]orb.Point, len(pts))
	copy(out, pts)
	return out
}

// RingsFromPolygon normalizes a polygon into rings with explicit roles: the
// first ring is Outer, every following ring is Hole(1), Hole(2), ...
func RingsFromPolygon(poly orb.Polygon) []Ring {
	rings := make([]Ring, 0, len(poly))
	for i, r := range poly {
		role := Outer
		if i > 0 {
			role = Hole(i)
		}
		rings = append(rings, Ring{Role: role, Points: OpenRing(r)})
	}
	return rings
}
