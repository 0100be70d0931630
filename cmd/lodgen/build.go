package main

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/Faultbox/lodgen/internal/config"
	"github.com/Faultbox/lodgen/internal/footprint"
	"github.com/Faultbox/lodgen/internal/lod"
	"github.com/Faultbox/lodgen/pkg/cityjson"
	"github.com/Faultbox/lodgen/pkg/raster"
)

// runBuild loads the inputs named by cfg, composes the model and writes it.
func runBuild(ctx context.Context, cfg *config.Config, log *zap.Logger) (*lod.Report, error) {
	in, err := loadInputs(cfg, log)
	if err != nil {
		return nil, err
	}

	composer := lod.NewComposer(lod.WithWorkers(cfg.Workers()), lod.WithLogger(log))
	model, report, err := composer.Compose(ctx, in)
	if err != nil {
		return nil, err
	}

	if err := cityjson.Save(cfg.Output.File, model, cfg.Output.Pretty); err != nil {
		return nil, fmt.Errorf("saving model: %w", err)
	}
	log.Info("model written",
		zap.String("file", cfg.Output.File),
		zap.Int("buildings", report.Built),
		zap.Int("vertices", report.Vertices),
	)
	return report, nil
}

func loadInputs(cfg *config.Config, log *zap.Logger) (lod.Input, error) {
	var in lod.Input
	var err error

	if in.Representation, err = cfg.Representation(); err != nil {
		return in, err
	}
	if in.Sampler, err = cfg.Sampler(); err != nil {
		return in, err
	}

	opts := footprint.Options{IDField: cfg.Input.IDField}
	if in.Footprints, err = footprint.LoadGeoJSON(cfg.Input.Footprints, opts); err != nil {
		return in, err
	}
	if cfg.Input.AssignIDs {
		n := in.Footprints.AssignIDs(cfg.Input.IDField, false, nil)
		log.Info("assigned identifiers", zap.Int("count", n))
	}
	courtyards := 0
	for _, b := range in.Footprints.Buildings {
		if b.HasHoles() {
			courtyards++
		}
	}
	log.Info("footprints loaded",
		zap.String("file", cfg.Input.Footprints),
		zap.Int("buildings", len(in.Footprints.Buildings)),
		zap.Int("with_holes", courtyards),
		zap.Int("epsg", in.Footprints.EPSG),
	)
	for _, o := range in.Footprints.Overlaps() {
		log.Warn("overlapping footprints", zap.String("a", o.A), zap.String("b", o.B))
	}

	if cfg.Input.Roof != "" {
		if in.Roof, err = footprint.LoadGeoJSON(cfg.Input.Roof, opts); err != nil {
			return in, err
		}
		log.Info("roof structures loaded", zap.Int("count", len(in.Roof.Buildings)))
	}

	if in.Surface, err = loadGrid(cfg.Input.Surface, cfg.Input.SurfaceEPSG, log); err != nil {
		return in, err
	}
	if cfg.Input.Ground != "" {
		if in.Ground, err = loadGrid(cfg.Input.Ground, cfg.Input.GroundEPSG, log); err != nil {
			return in, err
		}
	}
	return in, nil
}

func loadGrid(path string, epsg int, log *zap.Logger) (*raster.Grid, error) {
	g, err := raster.Load(path)
	if err != nil {
		return nil, err
	}
	if epsg != 0 {
		g.EPSG = epsg
	}
	log.Info("raster loaded",
		zap.String("file", path),
		zap.Int("cols", g.Cols),
		zap.Int("rows", g.Rows),
		zap.Float64("cell_size", g.CellSize()),
		zap.Int("epsg", g.EPSG),
	)
	return g, nil
}

// modelSummary counts geometries of a model by representation and LOD.
type modelSummary struct {
	faces  int
	byKind map[string]int
}

func summarize(m *cityjson.Model) modelSummary {
	s := modelSummary{byKind: make(map[string]int)}
	for _, obj := range m.CityObjects {
		for _, g := range obj.Geometry {
			s.byKind[fmt.Sprintf("%s LOD%d", g.Type, g.LOD)]++
			s.faces += g.FaceCount()
		}
	}
	return s
}

func (s modelSummary) kinds() []string {
	keys := make([]string, 0, len(s.byKind))
	for k := range s.byKind {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func faceCount(obj *cityjson.CityObject) int {
	n := 0
	for _, g := range obj.Geometry {
		n += g.FaceCount()
	}
	return n
}
