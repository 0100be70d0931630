package main

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/image/tiff"

	"github.com/Faultbox/lodgen/internal/config"
	"github.com/Faultbox/lodgen/internal/lod"
	"github.com/Faultbox/lodgen/pkg/cityjson"
)

const footprintsGeoJSON = `{
  "type": "FeatureCollection",
  "crs": {"type": "name", "properties": {"name": "urn:ogc:def:crs:EPSG::32748"}},
  "features": [
    {"type": "Feature", "properties": {"uuid_bgn": "b1", "name": "shed"},
     "geometry": {"type": "Polygon", "coordinates": [[[5,5],[5,10],[10,10],[10,5],[5,5]]]}},
    {"type": "Feature", "properties": {"uuid_bgn": "b2"},
     "geometry": {"type": "Polygon", "coordinates": [
       [[12,12],[12,24],[24,24],[24,12],[12,12]],
       [[16,16],[20,16],[20,20],[16,20],[16,16]]]}},
    {"type": "Feature", "properties": {},
     "geometry": {"type": "Polygon", "coordinates": [[[5,14],[5,18],[9,18],[9,14],[5,14]]]}},
    {"type": "Feature", "properties": {"uuid_bgn": "far"},
     "geometry": {"type": "Polygon", "coordinates": [[[50,50],[50,55],[55,55],[55,50],[50,50]]]}}
  ]
}`

const utm48sPrj = `PROJCS["WGS 84 / UTM zone 48S",GEOGCS["WGS 84",DATUM["WGS_1984",` +
	`SPHEROID["WGS 84",6378137,298.257223563,AUTHORITY["EPSG","7030"]],AUTHORITY["EPSG","6326"]],` +
	`PRIMEM["Greenwich",0],UNIT["degree",0.0174532925199433],AUTHORITY["EPSG","4326"]],` +
	`PROJECTION["Transverse_Mercator"],UNIT["metre",1],AUTHORITY["EPSG","32748"]]`

func writeGrid(t *testing.T, path string, size int, z float64) {
	t.Helper()
	var b strings.Builder
	fmt.Fprintf(&b, "ncols %d\nnrows %d\nxllcorner 0\nyllcorner 0\ncellsize 1\nNODATA_value -9999\n", size, size)
	for r := 0; r < size; r++ {
		for c := 0; c < size; c++ {
			if c > 0 {
				b.WriteByte(' ')
			}
			fmt.Fprintf(&b, "%g", z)
		}
		b.WriteByte('\n')
	}
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0644))
}

func fixture(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	footprints := filepath.Join(dir, "buildings.geojson")
	require.NoError(t, os.WriteFile(footprints, []byte(footprintsGeoJSON), 0644))

	surface := filepath.Join(dir, "dsm.asc")
	writeGrid(t, surface, 30, 15)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "dsm.prj"), []byte(utm48sPrj), 0644))

	ground := filepath.Join(dir, "dtm.asc")
	writeGrid(t, ground, 30, 3)

	cfg := config.Default()
	cfg.Input.Footprints = footprints
	cfg.Input.Surface = surface
	cfg.Input.Ground = ground
	cfg.Input.GroundEPSG = 32748
	cfg.Input.AssignIDs = true
	cfg.Model.BuildingType = "Solid"
	cfg.Model.Workers = 2
	cfg.Output.File = filepath.Join(dir, "city.json")
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestRunBuild(t *testing.T) {
	cfg := fixture(t)

	report, err := runBuild(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, 3, report.Built)
	assert.Equal(t, []string{"far"}, report.SkippedIDs())
	assert.ErrorIs(t, report.Skipped[0].Err, lod.ErrRasterIndex)

	m, err := cityjson.Load(cfg.Output.File)
	require.NoError(t, err)
	assert.Equal(t, "urn:ogc:def:crs:EPSG::32748", m.ReferenceSystem)
	assert.Len(t, m.CityObjects, 3)
	assert.Contains(t, m.CityObjects, "b1")
	assert.Contains(t, m.CityObjects, "b2")
	assert.Equal(t, "shed", m.CityObjects["b1"].Attributes["name"])

	// 4 + 4 outer vertices for b1 and the unnamed building, 8 + 8 for the courtyard.
	assert.Equal(t, 32, m.Vertices.Len())
	assert.Equal(t, [6]float64{5, 5, 3, 24, 24, 15}, m.Extent)

	b2 := m.CityObjects["b2"].Geometry[0]
	assert.Equal(t, cityjson.Solid, b2.Type)
	assert.Equal(t, 1, b2.LOD)
	assert.Len(t, b2.Shells, 2)
	assert.NoError(t, b2.Validate(m.Vertices.Len()))

	s := summarize(m)
	assert.Equal(t, map[string]int{"Solid LOD1": 3}, s.byKind)
	assert.Equal(t, 6+6+10, s.faces)
}

func TestRunBuildTIFFSurface(t *testing.T) {
	cfg := fixture(t)
	dir := filepath.Dir(cfg.Input.Surface)

	img := image.NewGray16(image.Rect(0, 0, 30, 30))
	for y := 0; y < 30; y++ {
		for x := 0; x < 30; x++ {
			img.SetGray16(x, y, color.Gray16{Y: 15})
		}
	}
	f, err := os.Create(filepath.Join(dir, "dsm.tif"))
	require.NoError(t, err)
	require.NoError(t, tiff.Encode(f, img, nil))
	require.NoError(t, f.Close())
	require.NoError(t, os.WriteFile(filepath.Join(dir, "dsm.tfw"), []byte("1\n0\n0\n-1\n0.5\n29.5\n"), 0644))
	cfg.Input.Surface = filepath.Join(dir, "dsm.tif")

	report, err := runBuild(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 3, report.Built)

	m, err := cityjson.Load(cfg.Output.File)
	require.NoError(t, err)
	assert.Equal(t, [6]float64{5, 5, 3, 24, 24, 15}, m.Extent)
}

func TestRunBuildCRSMismatch(t *testing.T) {
	cfg := fixture(t)
	cfg.Input.GroundEPSG = 2154

	_, err := runBuild(context.Background(), cfg, zap.NewNop())
	assert.ErrorIs(t, err, lod.ErrConfig)
	assert.NoFileExists(t, cfg.Output.File)
}

func TestRunBuildMissingSurface(t *testing.T) {
	cfg := fixture(t)
	cfg.Input.Surface = filepath.Join(t.TempDir(), "missing.asc")

	_, err := runBuild(context.Background(), cfg, zap.NewNop())
	assert.Error(t, err)
	assert.NoFileExists(t, cfg.Output.File)
}
