package lod

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Faultbox/lodgen/internal/drape"
	"github.com/Faultbox/lodgen/internal/footprint"
	"github.com/Faultbox/lodgen/pkg/cityjson"
	"github.com/Faultbox/lodgen/pkg/raster"
)

const testEPSG = 32748

// surfaceGrid is a 100x100 grid of 1m cells covering (0,0)-(100,100) whose
// height grows eastwards: col/10 + 10.
func surfaceGrid() *raster.Grid {
	g := raster.NewGrid(100, 100, raster.NorthUp(0, 100, 1))
	g.EPSG = testEPSG
	for r := 0; r < g.Rows; r++ {
		for c := 0; c < g.Cols; c++ {
			g.Set(r, c, float64(c)/10+10)
		}
	}
	return g
}

func flatGrid(z float64) *raster.Grid {
	g := raster.NewGrid(100, 100, raster.NorthUp(0, 100, 1))
	g.EPSG = testEPSG
	for i := range g.Data {
		g.Data[i] = z
	}
	return g
}

// cwSquare returns a clockwise closed square ring with its lower-left corner at (x, y).
func cwSquare(x, y, size float64) orb.Ring {
	return orb.Ring{{x, y}, {x, y + size}, {x + size, y + size}, {x + size, y}, {x, y}}
}

func ccwSquare(x, y, size float64) orb.Ring {
	return orb.Ring{{x, y}, {x + size, y}, {x + size, y + size}, {x, y + size}, {x, y}}
}

func building(id string, rings ...orb.Ring) footprint.Building {
	return footprint.NewBuilding(id, map[string]any{"uuid_bgn": id}, orb.Polygon(rings))
}

func collection(buildings ...footprint.Building) *footprint.Collection {
	return &footprint.Collection{EPSG: testEPSG, Buildings: buildings}
}

func input(rep cityjson.Representation, buildings ...footprint.Building) Input {
	return Input{
		Footprints:     collection(buildings...),
		Surface:        surfaceGrid(),
		Representation: rep,
		Sampler:        drape.Sampler{Policy: drape.Nearest},
	}
}

func assembler(rep cityjson.Representation) *Assembler {
	return &Assembler{
		Sampler:        drape.Sampler{Policy: drape.Nearest},
		Surface:        surfaceGrid(),
		Representation: rep,
		LOD:            1,
	}
}

func TestBuildWallsSquare(t *testing.T) {
	walls := BuildWalls(0, 4, 4, footprint.Outer)
	require.Len(t, walls, 4)
	for i, w := range walls {
		require.Len(t, w, 1, "wall %d must be a single loop", i)
		assert.Len(t, w[0], 4, "wall %d must be a quad", i)
	}

	assert.Equal(t, []int{0, 1, 5, 4}, walls[0][0])
	assert.Equal(t, []int{2, 3, 7, 6}, walls[2][0])
	assert.Equal(t, []int{3, 0, 4, 7}, walls[3][0], "last wall closes onto the first vertices")
}

func TestBuildWallsHoleReversed(t *testing.T) {
	outer := BuildWalls(10, 15, 5, footprint.Outer)
	hole := BuildWalls(10, 15, 5, footprint.Hole(1))
	require.Len(t, hole, len(outer))
	for i := range outer {
		assert.Equal(t, outer[i].Reversed(), hole[i], "wall %d", i)
	}
}

func TestAssembleMultiSurfaceNoHoles(t *testing.T) {
	b := building("a", cwSquare(10, 10, 5))
	part, err := assembler(cityjson.MultiSurface).Assemble(b)
	require.NoError(t, err)

	n := 4
	assert.Len(t, part.Vertices, 2*n)
	require.Len(t, part.Geometry.Shells, 1)
	shell := part.Geometry.Shells[0]
	assert.Equal(t, 2+n, shell.Len())
	assert.NoError(t, part.Geometry.Validate(len(part.Vertices)))

	assert.Equal(t, cityjson.Polygon{{3, 2, 1, 0}}, shell.Polygons[0], "roof is the reversed top loop")
	assert.Equal(t, cityjson.Polygon{{4, 5, 6, 7}}, shell.Polygons[1], "ground is the bottom loop")
	assert.Equal(t, []cityjson.SurfaceType{cityjson.Roof, cityjson.Ground, cityjson.Wall, cityjson.Wall, cityjson.Wall, cityjson.Wall}, shell.Semantics)
	assert.Equal(t, []int{0, 0, 1, 1, 1, 1}, shell.Materials)

	for _, v := range part.Vertices[:n] {
		// Columns 10, 10, 15, 15 -> (11+11+11.5+11.5)/4.
		assert.InDelta(t, 11.25, v.Z, 1e-9)
	}
	for _, v := range part.Vertices[n:] {
		assert.Equal(t, 0.0, v.Z)
	}
}

func TestAssembleMultiSurfaceWithHole(t *testing.T) {
	b := building("court", cwSquare(10, 10, 20), ccwSquare(15, 15, 5))
	part, err := assembler(cityjson.MultiSurface).Assemble(b)
	require.NoError(t, err)

	require.Len(t, part.Geometry.Shells, 1)
	shell := part.Geometry.Shells[0]
	assert.Equal(t, 2+4+4, shell.Len(), "roof, ground, outer walls, inner walls")
	assert.Len(t, part.Vertices, 16)

	roof := shell.Polygons[0]
	require.Len(t, roof, 2, "hole adds a loop to the roof")
	assert.Equal(t, []int{11, 10, 9, 8}, roof[1])
	ground := shell.Polygons[1]
	require.Len(t, ground, 2)
	assert.Equal(t, []int{12, 13, 14, 15}, ground[1])

	assert.Equal(t, cityjson.Polygon{{12, 13, 9, 8}}, shell.Polygons[6], "first inner wall, reversed")
	assert.NoError(t, part.Geometry.Validate(len(part.Vertices)))
}

func TestAssembleSolidNoHoles(t *testing.T) {
	b := building("a", cwSquare(10, 10, 5))
	ms, err := assembler(cityjson.MultiSurface).Assemble(b)
	require.NoError(t, err)
	solid, err := assembler(cityjson.Solid).Assemble(b)
	require.NoError(t, err)

	require.Len(t, solid.Geometry.Shells, 1)
	assert.Equal(t, ms.Geometry.Shells[0], solid.Geometry.Shells[0])
	assert.Equal(t, cityjson.Solid, solid.Geometry.Type)
}

func TestAssembleSolidWithHole(t *testing.T) {
	b := building("court", cwSquare(10, 10, 20), ccwSquare(15, 15, 5))
	part, err := assembler(cityjson.Solid).Assemble(b)
	require.NoError(t, err)

	require.Len(t, part.Geometry.Shells, 2, "outer shell and inner shell")
	outer, inner := part.Geometry.Shells[0], part.Geometry.Shells[1]
	assert.Equal(t, 2+4, outer.Len())
	assert.Equal(t, 4, inner.Len())
	for i := range inner.Polygons {
		assert.Equal(t, cityjson.Wall, inner.Semantics[i])
		assert.Equal(t, cityjson.MaterialWall, inner.Materials[i])
	}

	// The hole's vertices start at 8 (top) and 12 (bottom); an outer ring at
	// the same offsets would be wound the opposite way.
	asOuter := BuildWalls(8, 12, 4, footprint.Outer)
	for i, w := range inner.Polygons {
		assert.Equal(t, asOuter[i].Reversed(), w, "inner wall %d", i)
	}
	assert.NoError(t, part.Geometry.Validate(len(part.Vertices)))
}

func TestAssembleUnsupportedRepresentation(t *testing.T) {
	_, err := assembler(cityjson.Representation(9)).Assemble(building("a", cwSquare(10, 10, 5)))
	assert.ErrorIs(t, err, ErrUnsupportedBuildingType)
	assert.False(t, Recoverable(err))
}

func TestAssembleDegenerateRing(t *testing.T) {
	b := building("thin", orb.Ring{{10, 10}, {12, 12}, {10, 10}})
	_, err := assembler(cityjson.MultiSurface).Assemble(b)
	assert.ErrorIs(t, err, ErrGeometry)
	assert.True(t, Recoverable(err))
}

func TestAssembleMissingID(t *testing.T) {
	_, err := assembler(cityjson.MultiSurface).Assemble(building("", cwSquare(10, 10, 5)))
	assert.ErrorIs(t, err, ErrMissingID)
	assert.True(t, Recoverable(err))
}

func TestAssembleWithGround(t *testing.T) {
	asm := assembler(cityjson.MultiSurface)
	asm.Ground = flatGrid(4)
	part, err := asm.Assemble(building("a", cwSquare(10, 10, 5)))
	require.NoError(t, err)
	for _, v := range part.Vertices[4:] {
		assert.Equal(t, 4.0, v.Z)
	}
}

func TestInputValidate(t *testing.T) {
	in := input(cityjson.MultiSurface, building("a", cwSquare(10, 10, 5)))
	require.NoError(t, in.Validate())
	assert.Equal(t, 1, in.LOD())

	in.Roof = collection()
	assert.Equal(t, 2, in.LOD())
	assert.NoError(t, in.Validate())

	in.Roof.EPSG = 4326
	assert.ErrorIs(t, in.Validate(), ErrConfig)

	in = input(cityjson.Representation(5))
	assert.ErrorIs(t, in.Validate(), ErrUnsupportedBuildingType)

	in = input(cityjson.Solid)
	in.Ground = flatGrid(0)
	in.Ground.EPSG = 2154
	assert.ErrorIs(t, in.Validate(), ErrConfig)

	in = input(cityjson.Solid)
	in.Footprints.EPSG = 0
	assert.ErrorIs(t, in.Validate(), ErrConfig)
}

func TestComposeUnknownSamplingPolicy(t *testing.T) {
	in := input(cityjson.MultiSurface, building("a", cwSquare(10, 10, 5)), building("b", cwSquare(30, 30, 5)))
	in.Sampler.Policy = drape.Policy(9)

	model, report, err := NewComposer().Compose(context.Background(), in)
	assert.ErrorIs(t, err, ErrConfig)
	assert.Nil(t, model)
	assert.Nil(t, report)
}

func TestComposeCRSMismatch(t *testing.T) {
	in := input(cityjson.MultiSurface, building("a", cwSquare(10, 10, 5)))
	in.Surface.EPSG = 4326

	model, report, err := NewComposer().Compose(context.Background(), in)
	assert.ErrorIs(t, err, ErrConfig)
	assert.Nil(t, model, "no model may be produced")
	assert.Nil(t, report)
}

func TestComposeUnsupportedRepresentation(t *testing.T) {
	in := input(cityjson.Representation(3), building("a", cwSquare(10, 10, 5)))
	_, _, err := NewComposer().Compose(context.Background(), in)
	assert.ErrorIs(t, err, ErrUnsupportedBuildingType)
}

func TestComposeSkipsBadBuildings(t *testing.T) {
	in := input(cityjson.MultiSurface,
		building("a", cwSquare(10, 10, 5)),
		building("thin", orb.Ring{{20, 20}, {22, 22}, {20, 20}}),
		building("outside", cwSquare(150, 10, 5)),
		building("b", cwSquare(40, 40, 10)),
		building("a", cwSquare(60, 60, 5)),
	)

	core, logs := observer.New(zap.WarnLevel)
	model, report, err := NewComposer(WithLogger(zap.New(core))).Compose(context.Background(), in)
	require.NoError(t, err)

	assert.Len(t, model.CityObjects, 2)
	assert.Contains(t, model.CityObjects, "a")
	assert.Contains(t, model.CityObjects, "b")
	assert.Equal(t, 16, model.Vertices.Len(), "only the committed buildings own vertices")

	assert.Equal(t, 2, report.Built)
	assert.Equal(t, []string{"thin", "outside", "a"}, report.SkippedIDs())
	assert.ErrorIs(t, report.Skipped[0].Err, ErrGeometry)
	assert.ErrorIs(t, report.Skipped[1].Err, ErrRasterIndex)
	assert.ErrorIs(t, report.Skipped[2].Err, ErrDuplicateID)
	assert.Equal(t, 4, report.Skipped[2].Index)
	assert.Error(t, report.Err())

	assert.Equal(t, 3, logs.FilterMessage("skipping building").Len())
}

func TestComposeSpansAndLOD(t *testing.T) {
	in := input(cityjson.Solid,
		building("a", cwSquare(10, 10, 5)),
		building("b", cwSquare(30, 30, 20), ccwSquare(35, 35, 5)),
	)
	in.Roof = collection()

	model, report, err := NewComposer().Compose(context.Background(), in)
	require.NoError(t, err)
	assert.NoError(t, report.Err())

	assert.Equal(t, cityjson.Span{Start: 0, Len: 8}, model.Spans["a"])
	assert.Equal(t, cityjson.Span{Start: 8, Len: 16}, model.Spans["b"])
	assert.Equal(t, 24, report.Vertices)

	b := model.CityObjects["b"]
	require.Len(t, b.Geometry, 1)
	assert.Equal(t, 2, b.Geometry[0].LOD)
	assert.Equal(t, "Building", b.Type)
	assert.Equal(t, "b", b.Attributes["uuid_bgn"])
	require.Len(t, b.Geometry[0].Shells, 2)
	assert.Equal(t, cityjson.Polygon{{11, 10, 9, 8}, {19, 18, 17, 16}}, b.Geometry[0].Shells[0].Polygons[0])
	assert.NoError(t, b.Geometry[0].Validate(model.Vertices.Len()))
	assert.Equal(t, "urn:ogc:def:crs:EPSG::32748", model.ReferenceSystem)
}

func TestComposeExtentMatchesBruteForce(t *testing.T) {
	in := input(cityjson.MultiSurface,
		building("a", cwSquare(10, 10, 5)),
		building("b", cwSquare(70, 20, 12)),
		building("c", cwSquare(30, 80, 8), ccwSquare(32, 82, 2)),
	)
	in.Ground = flatGrid(2)

	model, _, err := NewComposer().Compose(context.Background(), in)
	require.NoError(t, err)

	verts := model.Vertices.Vertices()
	require.NotEmpty(t, verts)
	lo, hi := verts[0], verts[0]
	for _, v := range verts {
		if v.X < lo.X {
			lo.X = v.X
		}
		if v.Y < lo.Y {
			lo.Y = v.Y
		}
		if v.Z < lo.Z {
			lo.Z = v.Z
		}
		if v.X > hi.X {
			hi.X = v.X
		}
		if v.Y > hi.Y {
			hi.Y = v.Y
		}
		if v.Z > hi.Z {
			hi.Z = v.Z
		}
	}
	assert.Equal(t, [6]float64{lo.X, lo.Y, lo.Z, hi.X, hi.Y, hi.Z}, model.Extent)
	assert.Equal(t, 2.0, model.Extent[2])
	assert.Equal(t, 82.0, model.Extent[3])
}

func composeAll(t *testing.T, workers int, in Input) *cityjson.Model {
	t.Helper()
	model, _, err := NewComposer(WithWorkers(workers)).Compose(context.Background(), in)
	require.NoError(t, err)
	return model
}

func manyBuildings() []footprint.Building {
	var bs []footprint.Building
	for i := 0; i < 40; i++ {
		x := float64(5 + (i%8)*11)
		y := float64(5 + (i/8)*18)
		rings := []orb.Ring{cwSquare(x, y, 8)}
		if i%3 == 0 {
			rings = append(rings, ccwSquare(x+2, y+2, 3))
		}
		id := string(rune('A'+i%26)) + string(rune('a'+i/26))
		bs = append(bs, building(id, rings...))
	}
	return bs
}

func TestComposeIdempotent(t *testing.T) {
	in := input(cityjson.Solid, manyBuildings()...)

	first := composeAll(t, 1, in)
	second := composeAll(t, 1, in)

	assert.Equal(t, first.Vertices.Vertices(), second.Vertices.Vertices())
	assert.Equal(t, first.CityObjects, second.CityObjects)
	assert.Equal(t, first.Extent, second.Extent)
}

func TestComposeParallelMatchesSequential(t *testing.T) {
	in := input(cityjson.MultiSurface, manyBuildings()...)

	seq := composeAll(t, 1, in)
	par := composeAll(t, 8, in)

	assert.Equal(t, seq.Vertices.Vertices(), par.Vertices.Vertices())
	assert.Equal(t, seq.CityObjects, par.CityObjects)
	assert.Equal(t, seq.Spans, par.Spans)
}

func TestComposeCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := NewComposer(WithWorkers(4)).Compose(ctx, input(cityjson.Solid, manyBuildings()...))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestComposeCancelledAfterLastSubmission(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	in := input(cityjson.Solid, building("a", cwSquare(10, 10, 5)), building("b", cwSquare(30, 30, 5)))
	var committed atomic.Int32
	core, _ := observer.New(zapcore.DebugLevel)
	log := zap.New(core, zap.Hooks(func(e zapcore.Entry) error {
		if e.Message == "building committed" && committed.Add(1) == int32(len(in.Footprints.Buildings)) {
			cancel()
		}
		return nil
	}))

	model, report, err := NewComposer(WithWorkers(2), WithLogger(log)).Compose(ctx, in)
	require.NoError(t, err)
	require.Error(t, ctx.Err())
	assert.Equal(t, 2, report.Built)
	assert.Len(t, model.CityObjects, 2)
}

func TestComposeEmpty(t *testing.T) {
	model, report, err := NewComposer().Compose(context.Background(), input(cityjson.Solid))
	require.NoError(t, err)
	assert.Empty(t, model.CityObjects)
	assert.Equal(t, [6]float64{}, model.Extent)
	assert.Equal(t, 0, report.Built)
}

func TestComposeRadiusTooSmallSkipsEveryBuilding(t *testing.T) {
	in := input(cityjson.MultiSurface, building("a", cwSquare(10, 10, 5)), building("b", cwSquare(40, 40, 5)))
	in.Sampler = drape.Sampler{Policy: drape.MaxInKernel, Radius: 0.2}

	model, report, err := NewComposer().Compose(context.Background(), in)
	require.NoError(t, err)
	assert.Empty(t, model.CityObjects)
	require.Len(t, report.Skipped, 2)
	assert.ErrorIs(t, report.Skipped[0].Err, drape.ErrRadiusTooSmall)
}

func TestWithWorkersClamps(t *testing.T) {
	assert.Equal(t, 1, NewComposer(WithWorkers(0)).workers)
	assert.Equal(t, 6, NewComposer(WithWorkers(6)).workers)
}
