package footprint

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/Faultbox/lodgen/pkg/raster"
)

// GeoJSON reader errors.
var (
	ErrUnsupportedGeometry = errors.New("unsupported footprint geometry")
	ErrEmptyGeometry       = errors.New("empty footprint geometry")
)

// wgs84 is the implied reference system of GeoJSON without a crs member (RFC 7946).
const wgs84 = 4326

// Options controls how GeoJSON features become footprint records.
type Options struct {
	// IDField is the property holding the identifier. Defaults to DefaultIDField.
	IDField string
}

func (o Options) idField() string {
	if o.IDField == "" {
		return DefaultIDField
	}
	return o.IDField
}

// ParseGeoJSON reads a FeatureCollection of Polygon and MultiPolygon features.
// MultiPolygon features are split into one record per part.
func ParseGeoJSON(data []byte, opts Options) (*Collection, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("decoding feature collection: %w", err)
	}

	c := &Collection{EPSG: collectionEPSG(fc)}
	field := opts.idField()

	for i, f := range fc.Features {
		attrs := make(map[string]any, len(f.Properties))
		for k, v := range f.Properties {
			attrs[k] = v
		}
		id := identifier(f, field)

		switch g := f.Geometry.(type) {
		case orb.Polygon:
			if len(g) == 0 {
				return nil, fmt.Errorf("feature %d: %w", i, ErrEmptyGeometry)
			}
			c.Buildings = append(c.Buildings, NewBuilding(id, attrs, g))
		case orb.MultiPolygon:
			parts, err := Explode(id, attrs, g, field)
			if err != nil {
				return nil, fmt.Errorf("feature %d: %w", i, err)
			}
			c.Buildings = append(c.Buildings, parts...)
		case nil:
			return nil, fmt.Errorf("feature %d: %w", i, ErrEmptyGeometry)
		default:
			return nil, fmt.Errorf("feature %d: %w: %s", i, ErrUnsupportedGeometry, g.GeoJSONType())
		}
	}

	return c, nil
}

// LoadGeoJSON reads a footprint collection from disk.
func LoadGeoJSON(path string, opts Options) (*Collection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading footprints: %w", err)
	}
	c, err := ParseGeoJSON(data, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Explode splits a multipolygon into single-part records. The first part
// keeps id; later parts get "<id>-<n>". Empty ids are left for AssignIDs.
func Explode(id string, attrs map[string]any, mp orb.MultiPolygon, idField string) ([]Building, error) {
	if len(mp) == 0 {
		return nil, ErrEmptyGeometry
	}
	out := make([]Building, 0, len(mp))
	for n, poly := range mp {
		if len(poly) == 0 {
			return nil, fmt.Errorf("part %d: %w", n, ErrEmptyGeometry)
		}
		partID := id
		partAttrs := attrs
		if n > 0 {
			partAttrs = make(map[string]any, len(attrs))
			for k, v := range attrs {
				partAttrs[k] = v
			}
			if id != "" {
				partID = id + "-" + strconv.Itoa(n)
				partAttrs[idField] = partID
			}
		}
		out = append(out, NewBuilding(partID, partAttrs, poly))
	}
	return out, nil
}

func identifier(f *geojson.Feature, field string) string {
	if v, ok := f.Properties[field]; ok && v != nil {
		switch id := v.(type) {
		case string:
			return id
		case float64:
			return strconv.FormatFloat(id, 'f', -1, 64)
		default:
			return fmt.Sprint(id)
		}
	}
	return ""
}

// collectionEPSG reads the legacy "crs" member of a FeatureCollection.
func collectionEPSG(fc *geojson.FeatureCollection) int {
	crs, ok := fc.ExtraMembers["crs"].(map[string]interface{})
	if !ok {
		return wgs84
	}
	props, ok := crs["properties"].(map[string]interface{})
	if !ok {
		return 0
	}
	name, ok := props["name"].(string)
	if !ok {
		return 0
	}
	return raster.DetectEPSG(name)
}

// FeatureCollection converts the records back to GeoJSON, writing each
// identifier into idField and the reference system into the crs member.
func (c Collection) FeatureCollection(idField string) *geojson.FeatureCollection {
	if idField == "" {
		idField = DefaultIDField
	}
	fc := geojson.NewFeatureCollection()
	for _, b := range c.Buildings {
		f := geojson.NewFeature(b.Polygon())
		for k, v := range b.Attributes {
			f.Properties[k] = v
		}
		f.Properties[idField] = b.ID
		fc.Append(f)
	}
	if c.EPSG != 0 {
		fc.ExtraMembers = geojson.Properties{
			"crs": map[string]interface{}{
				"type":       "name",
				"properties": map[string]interface{}{"name": c.ReferenceSystem()},
			},
		}
	}
	return fc
}

// SaveGeoJSON writes the collection to path.
func (c Collection) SaveGeoJSON(path, idField string) error {
	data, err := c.FeatureCollection(idField).MarshalJSON()
	if err != nil {
		return fmt.Errorf("encoding footprints: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}
