package lod

import (
	"github.com/Faultbox/lodgen/internal/footprint"
	"github.com/Faultbox/lodgen/pkg/cityjson"
)

// BuildWalls returns one quad per ring edge joining the top vertices at
// [top, top+count) to the bottom vertices at [bottom, bottom+count).
// The last quad closes the ring back onto the first vertices. Hole walls are
// wound the other way so their normals face into the courtyard.
func BuildWalls(top, bottom, count int, role footprint.RingRole) []cityjson.Polygon {
	walls := make([]cityjson.Polygon, 0, count)
	for j := 0; j < count; j++ {
		var quad []int
		if j == count-1 {
			quad = []int{top + j, top, bottom, bottom + j}
		} else {
			quad = []int{top + j, top + j + 1, bottom + j + 1, bottom + j}
		}
		face := cityjson.Polygon{quad}
		if !role.IsOuter() {
			face = face.Reversed()
		}
		walls = append(walls, face)
	}
	return walls
}

// wallShell tags walls with the wall semantic and material.
func wallShell(walls []cityjson.Polygon) cityjson.Shell {
	var s cityjson.Shell
	for _, w := range walls {
		s.Add(w, cityjson.Wall, cityjson.MaterialWall)
	}
	return s
}
