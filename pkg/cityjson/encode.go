package cityjson

import (
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-json"

	"github.com/Faultbox/lodgen/pkg/math"
)

// Version is the CityJSON version written by Encode.
const Version = "1.0"

// Material is an X3D material of the appearance section.
type Material struct {
	Name             string     `json:"name"`
	AmbientIntensity float64    `json:"ambientIntensity"`
	DiffuseColor     [3]float64 `json:"diffuseColor"`
	Transparency     float64    `json:"transparency"`
	IsSmooth         bool       `json:"isSmooth"`
}

// DefaultMaterials returns the roof-and-ground and wall materials referenced
// by MaterialRoofAndGround and MaterialWall.
func DefaultMaterials() []Material {
	return []Material{
		{Name: "roofandground", AmbientIntensity: 0.2, DiffuseColor: [3]float64{0.9, 0.1, 0.75}},
		{Name: "wall", AmbientIntensity: 0.4, DiffuseColor: [3]float64{0.1, 0.1, 0.9}},
	}
}

type document struct {
	Type        string                 `json:"type"`
	Version     string                 `json:"version"`
	Metadata    metadata               `json:"metadata"`
	Appearance  *appearance            `json:"appearance,omitempty"`
	CityObjects map[string]*CityObject `json:"CityObjects"`
	Vertices    [][3]float64           `json:"vertices"`
}

type metadata struct {
	ReferenceSystem    string     `json:"referenceSystem"`
	GeographicalExtent [6]float64 `json:"geographicalExtent"`
}

type appearance struct {
	Materials []Material `json:"materials"`
}

type surface struct {
	Type string `json:"type"`
}

type semantics struct {
	Surfaces []surface       `json:"surfaces"`
	Values   json.RawMessage `json:"values"`
}

type materialValues struct {
	Values json.RawMessage `json:"values"`
}

type geometry struct {
	Type       string                    `json:"type"`
	LOD        int                       `json:"lod"`
	Boundaries json.RawMessage           `json:"boundaries"`
	Semantics  semantics                 `json:"semantics"`
	Material   map[string]materialValues `json:"material"`
}

func semanticSurfaces() []surface {
	return []surface{{Roof.String()}, {Ground.String()}, {Wall.String()}}
}

// MarshalJSON nests boundaries, semantic values and material values one level
// deeper for Solid than for MultiSurface.
func (g Geometry) MarshalJSON() ([]byte, error) {
	var boundaries, values, materials any
	switch g.Type {
	case MultiSurface:
		if len(g.Shells) != 1 {
			return nil, fmt.Errorf("MultiSurface with %d shells", len(g.Shells))
		}
		s := g.Shells[0]
		boundaries, values, materials = s.Polygons, s.Semantics, s.Materials
	case Solid:
		b := make([][]Polygon, len(g.Shells))
		v := make([][]SurfaceType, len(g.Shells))
		m := make([][]int, len(g.Shells))
		for i, s := range g.Shells {
			b[i], v[i], m[i] = s.Polygons, s.Semantics, s.Materials
		}
		boundaries, values, materials = b, v, m
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedRepresentation, int(g.Type))
	}

	out := geometry{Type: g.Type.String(), LOD: g.LOD, Material: map[string]materialValues{}}
	var err error
	if out.Boundaries, err = json.Marshal(boundaries); err != nil {
		return nil, err
	}
	out.Semantics.Surfaces = semanticSurfaces()
	if out.Semantics.Values, err = json.Marshal(values); err != nil {
		return nil, err
	}
	mv, err := json.Marshal(materials)
	if err != nil {
		return nil, err
	}
	out.Material[""] = materialValues{Values: mv}
	return json.Marshal(out)
}

// UnmarshalJSON reads MultiSurface and Solid geometries.
func (g *Geometry) UnmarshalJSON(data []byte) error {
	var in geometry
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	rep, err := ParseRepresentation(in.Type)
	if err != nil {
		return err
	}
	mat := in.Material[""].Values

	*g = Geometry{Type: rep, LOD: in.LOD}
	switch rep {
	case MultiSurface:
		var s Shell
		if err := unmarshalShell(in.Boundaries, in.Semantics.Values, mat, &s.Polygons, &s.Semantics, &s.Materials); err != nil {
			return err
		}
		g.Shells = []Shell{s}
	case Solid:
		var b [][]Polygon
		var v [][]SurfaceType
		var m [][]int
		if err := unmarshalShell(in.Boundaries, in.Semantics.Values, mat, &b, &v, &m); err != nil {
			return err
		}
		g.Shells = make([]Shell, len(b))
		for i := range b {
			g.Shells[i].Polygons = b[i]
			if i < len(v) {
				g.Shells[i].Semantics = v[i]
			}
			if i < len(m) {
				g.Shells[i].Materials = m[i]
			}
		}
	}
	return nil
}

func unmarshalShell(boundaries, values, materials json.RawMessage, b, v, m any) error {
	if err := json.Unmarshal(boundaries, b); err != nil {
		return fmt.Errorf("boundaries: %w", err)
	}
	if len(values) > 0 {
		if err := json.Unmarshal(values, v); err != nil {
			return fmt.Errorf("semantic values: %w", err)
		}
	}
	if len(materials) > 0 {
		if err := json.Unmarshal(materials, m); err != nil {
			return fmt.Errorf("material values: %w", err)
		}
	}
	return nil
}

// MarshalJSON encodes the model as a CityJSON document.
func (m *Model) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.document())
}

func (m *Model) document() document {
	verts := m.Vertices.Vertices()
	out := make([][3]float64, len(verts))
	for i, v := range verts {
		out[i] = v.Array()
	}
	objects := m.CityObjects
	if objects == nil {
		objects = map[string]*CityObject{}
	}
	return document{
		Type:    "CityJSON",
		Version: Version,
		Metadata: metadata{
			ReferenceSystem:    m.ReferenceSystem,
			GeographicalExtent: m.Extent,
		},
		Appearance:  &appearance{Materials: DefaultMaterials()},
		CityObjects: objects,
		Vertices:    out,
	}
}

// UnmarshalJSON decodes a CityJSON document. Spans are not part of the
// format and are left empty.
func (m *Model) UnmarshalJSON(data []byte) error {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	if doc.Type != "CityJSON" {
		return fmt.Errorf("not a CityJSON document (type %q)", doc.Type)
	}

	*m = *NewModel(doc.Metadata.ReferenceSystem)
	m.Extent = doc.Metadata.GeographicalExtent
	for id, obj := range doc.CityObjects {
		m.CityObjects[id] = obj
	}
	for _, v := range doc.Vertices {
		m.Vertices.Append(math.FromArray(v))
	}
	return nil
}

// Encode writes the model to w, indented when pretty is set.
func Encode(w io.Writer, m *Model, pretty bool) error {
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(m.document())
}

// Decode reads a model from r.
func Decode(r io.Reader) (*Model, error) {
	m := NewModel("")
	if err := json.NewDecoder(r).Decode(m); err != nil {
		return nil, fmt.Errorf("decoding CityJSON: %w", err)
	}
	return m, nil
}

// Save writes the model to path.
func Save(path string, m *Model, pretty bool) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Encode(f, m, pretty); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}

// Load reads a model from path.
func Load(path string) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f)
}
