package cityjson

import (
	"fmt"

	"github.com/Faultbox/lodgen/pkg/math"
)

// Pool is the append-only vertex arena shared by all buildings of a model.
// Vertices are never mutated or removed once appended. A Pool is not safe
// for concurrent use; callers serialize appends.
type Pool struct {
	vertices []math.Vec3
}

// Len returns the number of vertices.
func (p *Pool) Len() int {
	return len(p.vertices)
}

// At returns vertex i.
func (p *Pool) At(i int) math.Vec3 {
	return p.vertices[i]
}

// Append adds vertices and returns where they landed.
func (p *Pool) Append(vs ...math.Vec3) Span {
	start := len(p.vertices)
	p.vertices = append(p.vertices, vs...)
	return Span{Start: start, Len: len(vs)}
}

// Vertices returns a read-only view of the pool.
func (p *Pool) Vertices() []math.Vec3 {
	return p.vertices[:len(p.vertices):len(p.vertices)]
}

// Bounds returns the componentwise min/max over every vertex.
func (p *Pool) Bounds() math.Bounds {
	return math.BoundsOf(p.vertices)
}

// Model is a CityJSON city model of buildings.
type Model struct {
	ReferenceSystem string
	Vertices        Pool
	CityObjects     map[string]*CityObject
	Extent          [6]float64
	Spans           map[string]Span
}

// NewModel returns an empty model in the given reference system (an OGC URN).
func NewModel(referenceSystem string) *Model {
	return &Model{
		ReferenceSystem: referenceSystem,
		CityObjects:     make(map[string]*CityObject),
		Spans:           make(map[string]Span),
	}
}

// Has reports whether a building with id exists.
func (m *Model) Has(id string) bool {
	_, ok := m.CityObjects[id]
	return ok
}

// Commit appends a building whose geometry indexes into its own local vertex
// list. The vertices go to the end of the pool and the indices are rebased by
// the pool's prior length.
func (m *Model) Commit(id string, attrs map[string]any, local []math.Vec3, geom Geometry) (Span, error) {
	if m.Has(id) {
		return Span{}, fmt.Errorf("building %q already in model", id)
	}
	if err := geom.Validate(len(local)); err != nil {
		return Span{}, fmt.Errorf("building %q: %w", id, err)
	}

	span := m.Vertices.Append(local...)
	m.CityObjects[id] = &CityObject{
		Type:       "Building",
		Attributes: attrs,
		Geometry:   []Geometry{geom.Offset(span.Start)},
	}
	m.Spans[id] = span
	return span, nil
}

// ComputeExtent sets Extent from the vertex pool and returns it.
func (m *Model) ComputeExtent() [6]float64 {
	m.Extent = m.Vertices.Bounds().Extent()
	return m.Extent
}
