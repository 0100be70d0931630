package lod

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Faultbox/lodgen/internal/drape"
	"github.com/Faultbox/lodgen/internal/footprint"
	"github.com/Faultbox/lodgen/pkg/cityjson"
	"github.com/Faultbox/lodgen/pkg/raster"
)

// Input is everything one run consumes.
type Input struct {
	Footprints     *footprint.Collection
	Roof           *footprint.Collection // roof-structure footprints; nil builds LOD1
	Surface        *raster.Grid
	Ground         *raster.Grid // optional
	Representation cityjson.Representation
	Sampler        drape.Sampler
}

// LOD returns 2 when roof-structure footprints are supplied and 1 otherwise.
func (in Input) LOD() int {
	if in.Roof != nil {
		return 2
	}
	return 1
}

// Validate checks the run-level preconditions. Its errors are fatal.
func (in Input) Validate() error {
	if !in.Representation.Valid() {
		return fmt.Errorf("%w: %d", ErrUnsupportedBuildingType, int(in.Representation))
	}
	if !in.Sampler.Policy.Valid() {
		return fmt.Errorf("%w: unknown sampling policy %v", ErrConfig, in.Sampler.Policy)
	}
	if in.Footprints == nil {
		return fmt.Errorf("%w: no footprints", ErrConfig)
	}
	if in.Surface == nil {
		return fmt.Errorf("%w: no surface raster", ErrConfig)
	}

	want := in.Footprints.EPSG
	if want == 0 {
		return fmt.Errorf("%w: footprint reference system unknown", ErrConfig)
	}
	if in.Surface.EPSG != want {
		return fmt.Errorf("%w: different reference systems: footprints EPSG:%d, surface EPSG:%d",
			ErrConfig, want, in.Surface.EPSG)
	}
	if in.Ground != nil && in.Ground.EPSG != want {
		return fmt.Errorf("%w: different reference systems: footprints EPSG:%d, ground EPSG:%d",
			ErrConfig, want, in.Ground.EPSG)
	}
	if in.Roof != nil && in.Roof.EPSG != want {
		return fmt.Errorf("%w: different reference systems: footprints EPSG:%d, roof EPSG:%d",
			ErrConfig, want, in.Roof.EPSG)
	}
	return nil
}

// Composer builds a model from footprints, one building at a time.
type Composer struct {
	workers int
	log     *zap.Logger
}

// Option configures a Composer.
type Option func(*Composer)

// WithWorkers sets how many buildings are assembled concurrently.
// Values below 1 mean 1.
func WithWorkers(n int) Option {
	return func(c *Composer) {
		if n < 1 {
			n = 1
		}
		c.workers = n
	}
}

// WithLogger sets the logger for per-building diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(c *Composer) {
		if l != nil {
			c.log = l
		}
	}
}

// NewComposer returns a Composer. By default it runs on one worker and logs nothing.
func NewComposer(opts ...Option) *Composer {
	c := &Composer{workers: 1, log: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type outcome struct {
	part *Part
	err  error
}

// Compose assembles every building of in.Footprints into a new model.
//
// Assembly runs on up to the configured number of workers, each producing
// locally indexed geometry. A single committer appends the parts to the
// vertex pool in input order, so the pool layout does not depend on the
// worker count. Buildings failing with a recoverable error are skipped and
// listed in the report. Cancelling ctx stops the submission of new
// buildings; those already started finish before Compose returns ctx's error.
// A cancellation arriving after every building was submitted does not discard
// the finished model.
func (c *Composer) Compose(ctx context.Context, in Input) (*cityjson.Model, *Report, error) {
	if err := in.Validate(); err != nil {
		return nil, nil, err
	}
	if err := in.Sampler.Validate(in.Surface.CellSize()); err != nil {
		c.log.Warn("sampler will fail on every building", zap.Error(err))
	}

	asm := &Assembler{
		Sampler:        in.Sampler,
		Surface:        in.Surface,
		Ground:         in.Ground,
		Representation: in.Representation,
		LOD:            in.LOD(),
	}
	buildings := in.Footprints.Buildings
	model := cityjson.NewModel(in.Footprints.ReferenceSystem())
	report := &Report{}

	results := make([]chan outcome, len(buildings))
	for i := range results {
		results[i] = make(chan outcome, 1)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)
	g.SetLimit(c.workers)

	commitDone := make(chan error, 1)
	go func() {
		err := c.commit(model, report, buildings, results)
		if err != nil {
			cancel()
		}
		commitDone <- err
	}()

	submitted := 0
	for i := range buildings {
		if gctx.Err() != nil {
			break
		}
		i := i
		g.Go(func() error {
			part, err := asm.Assemble(buildings[i])
			results[i] <- outcome{part: part, err: err}
			if err != nil && !Recoverable(err) {
				return err
			}
			return nil
		})
		submitted++
	}
	for i := submitted; i < len(buildings); i++ {
		close(results[i])
	}

	fatal := g.Wait()
	commitErr := <-commitDone

	switch {
	case fatal != nil:
		return nil, nil, fatal
	case commitErr != nil:
		return nil, nil, commitErr
	case submitted < len(buildings) && ctx.Err() != nil:
		return nil, nil, ctx.Err()
	}

	model.ComputeExtent()
	report.Vertices = model.Vertices.Len()
	c.log.Info("model composed",
		zap.Int("buildings", report.Built),
		zap.Int("skipped", len(report.Skipped)),
		zap.Int("vertices", report.Vertices),
		zap.String("representation", in.Representation.String()),
		zap.Int("lod", in.LOD()),
	)
	return model, report, nil
}

// commit drains results in input order and appends each part to the model.
// It stops at the first fatal outcome or at the first unsubmitted building.
func (c *Composer) commit(model *cityjson.Model, report *Report, buildings []footprint.Building, results []chan outcome) error {
	for i := range results {
		o, ok := <-results[i]
		if !ok {
			return nil
		}

		id := buildings[i].ID
		err := o.err
		if err == nil && model.Has(id) {
			err = fmt.Errorf("building %q: %w", id, ErrDuplicateID)
		}
		if err != nil {
			if !Recoverable(err) {
				return err
			}
			c.log.Warn("skipping building",
				zap.Int("index", i),
				zap.String("id", id),
				zap.Error(err),
			)
			report.Skipped = append(report.Skipped, Skip{Index: i, ID: id, Err: err})
			continue
		}

		span, err := model.Commit(o.part.ID, o.part.Attributes, o.part.Vertices, o.part.Geometry)
		if err != nil {
			return fmt.Errorf("committing building %q: %w", id, err)
		}
		report.Built++
		c.log.Debug("building committed",
			zap.String("id", id),
			zap.Int("first_vertex", span.Start),
			zap.Int("end_vertex", span.End()),
		)
	}
	return nil
}
