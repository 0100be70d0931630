package footprint

import (
	"math"
	"sort"

	"github.com/dhconnelly/rtreego"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// minExtent pads degenerate bounding boxes, which rtreego rejects.
const minExtent = 1e-9

// Overlap is a pair of footprints sharing floor area, in collection order.
type Overlap struct {
	A, B string
}

type indexed struct {
	pos   int
	bound orb.Bound
	poly  orb.Polygon
}

func (ix *indexed) Bounds() rtreego.Rect {
	return rect(ix.bound)
}

func rect(b orb.Bound) rtreego.Rect {
	r, _ := rtreego.NewRect(
		rtreego.Point{b.Min[0], b.Min[1]},
		[]float64{math.Max(b.Max[0]-b.Min[0], minExtent), math.Max(b.Max[1]-b.Min[1], minExtent)},
	)
	return r
}

// Overlaps finds footprints that overlap another one. Candidates come from an
// R-tree of bounding boxes; a pair is reported when a vertex or the centroid
// of either footprint lies strictly inside the other. Pairs whose edges cross
// without such a point go unreported.
func (c Collection) Overlaps() []Overlap {
	items := make([]*indexed, len(c.Buildings))
	objs := make([]rtreego.Spatial, len(c.Buildings))
	for i, b := range c.Buildings {
		poly := b.Polygon()
		items[i] = &indexed{pos: i, bound: poly.Bound(), poly: poly}
		objs[i] = items[i]
	}
	tree := rtreego.NewTree(2, 25, 50, objs...)

	var pairs [][2]int
	for _, a := range items {
		if len(a.poly) == 0 || len(a.poly[0]) == 0 {
			continue
		}
		for _, hit := range tree.SearchIntersect(rect(a.bound)) {
			b := hit.(*indexed)
			if b.pos <= a.pos || len(b.poly) == 0 || len(b.poly[0]) == 0 {
				continue
			}
			if overlaps(a.poly, b.poly) {
				pairs = append(pairs, [2]int{a.pos, b.pos})
			}
		}
	}

	if len(pairs) == 0 {
		return nil
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i][0] != pairs[j][0] {
			return pairs[i][0] < pairs[j][0]
		}
		return pairs[i][1] < pairs[j][1]
	})
	out := make([]Overlap, len(pairs))
	for i, p := range pairs {
		out[i] = Overlap{A: c.Buildings[p[0]].ID, B: c.Buildings[p[1]].ID}
	}
	return out
}

func overlaps(a, b orb.Polygon) bool {
	return anyVertexInside(a[0], b) || anyVertexInside(b[0], a) ||
		centroidInside(a, b) || centroidInside(b, a)
}

// centroidInside reports whether the centroid of a is an interior point of
// both a and b. Concave footprints can have their centroid outside themselves.
func centroidInside(a, b orb.Polygon) bool {
	c, area := planar.CentroidArea(a)
	if area == 0 {
		return false
	}
	return strictlyInside(c, a) && strictlyInside(c, b)
}

func strictlyInside(p orb.Point, poly orb.Polygon) bool {
	return planar.PolygonContains(poly, p) && !onBoundary(p, poly)
}

// anyVertexInside reports whether a vertex of ring lies strictly inside poly.
// Vertices on the boundary of poly do not count, so footprints that only
// share a wall are not overlaps.
func anyVertexInside(ring orb.Ring, poly orb.Polygon) bool {
	for _, p := range ring {
		if strictlyInside(p, poly) {
			return true
		}
	}
	return false
}

func onBoundary(p orb.Point, poly orb.Polygon) bool {
	for _, ring := range poly {
		for i := 0; i+1 < len(ring); i++ {
			if planar.DistanceFromSegmentSquared(ring[i], ring[i+1], p) < minExtent*minExtent {
				return true
			}
		}
	}
	return false
}
