package footprint

import (
	"fmt"

	"github.com/paulmach/orb"
)

// DefaultIDField is the attribute holding a building's identifier.
const DefaultIDField = "uuid_bgn"

// Building is one single-part footprint record.
type Building struct {
	ID         string
	Attributes map[string]any
	Rings      []Ring // Rings[0] is Outer, the rest are holes
}

// NewBuilding builds a record from a polygon, assigning ring roles.
func NewBuilding(id string, attrs map[string]any, poly orb.Polygon) Building {
	if attrs == nil {
		attrs = make(map[string]any)
	}
	return Building{ID: id, Attributes: attrs, Rings: RingsFromPolygon(poly)}
}

// HasHoles reports whether the footprint has inner rings.
func (b Building) HasHoles() bool {
	return len(b.Rings) > 1
}

// Polygon converts the footprint back to a closed orb polygon.
func (b Building) Polygon() orb.Polygon {
	poly := make(orb.Polygon, 0, len(b.Rings))
	for _, r := range b.Rings {
		ring := make(orb.Ring, 0, len(r.Points)+1)
		ring = append(ring, r.Points...)
		if len(r.Points) > 0 {
			ring = append(ring, r.Points[0])
		}
		poly = append(poly, ring)
	}
	return poly
}

// Collection is an ordered set of footprints sharing one reference system.
type Collection struct {
	EPSG      int // 0 when unknown
	Buildings []Building
}

// ReferenceSystem returns the OGC URN of the collection's CRS.
func (c Collection) ReferenceSystem() string {
	return ReferenceSystemURN(c.EPSG)
}

// ReferenceSystemURN formats an EPSG code as an OGC CRS URN.
func ReferenceSystemURN(epsg int) string {
	return fmt.Sprintf("urn:ogc:def:crs:EPSG::%d", epsg)
}
