// Package config handles lodgen configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"runtime"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap/zapcore"

	"github.com/Faultbox/lodgen/internal/drape"
	"github.com/Faultbox/lodgen/internal/footprint"
	"github.com/Faultbox/lodgen/pkg/cityjson"
)

// ErrInvalid marks a configuration that cannot drive a build.
var ErrInvalid = errors.New("invalid configuration")

// Config holds all build settings.
type Config struct {
	Input   InputConfig   `yaml:"input"`
	Model   ModelConfig   `yaml:"model"`
	Output  OutputConfig  `yaml:"output"`
	Logging LoggingConfig `yaml:"logging"`
}

// InputConfig holds the source data paths.
type InputConfig struct {
	Footprints  string `yaml:"footprints"`   // GeoJSON building footprints
	Surface     string `yaml:"surface"`      // surface model raster (DSM): .asc, or .tif with a world file
	Ground      string `yaml:"ground"`       // optional terrain model raster (DTM)
	Roof        string `yaml:"roof"`         // optional GeoJSON roof structures; selects LOD2
	IDField     string `yaml:"id_field"`     // footprint property holding the building identifier
	AssignIDs   bool   `yaml:"assign_ids"`   // generate identifiers for footprints without one
	SurfaceEPSG int    `yaml:"surface_epsg"` // overrides the .prj; 0 keeps it
	GroundEPSG  int    `yaml:"ground_epsg"`
}

// ModelConfig holds the geometry settings.
type ModelConfig struct {
	BuildingType string  `yaml:"building_type"` // MultiSurface or Solid
	Mode         string  `yaml:"mode"`          // normal or onedge
	Radius       float64 `yaml:"radius"`        // onedge search radius in map units; 0 uses a 9-cell window
	Workers      int     `yaml:"workers"`       // 0 uses every CPU
}

// OutputConfig holds the CityJSON destination.
type OutputConfig struct {
	File   string `yaml:"file"`
	Pretty bool   `yaml:"pretty"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
	Format  string `yaml:"format"` // console or json
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Input: InputConfig{
			IDField:   footprint.DefaultIDField,
			AssignIDs: false,
		},
		Model: ModelConfig{
			BuildingType: cityjson.MultiSurface.String(),
			Mode:         drape.MaxInKernel.String(),
		},
		Output: OutputConfig{
			File:   "lod.json",
			Pretty: false,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Representation parses Model.BuildingType.
func (c *Config) Representation() (cityjson.Representation, error) {
	return cityjson.ParseRepresentation(c.Model.BuildingType)
}

// Sampler builds the height sampler from Model.Mode and Model.Radius.
func (c *Config) Sampler() (drape.Sampler, error) {
	p, err := drape.ParsePolicy(c.Model.Mode)
	if err != nil {
		return drape.Sampler{}, err
	}
	return drape.Sampler{Policy: p, Radius: c.Model.Radius}, nil
}

// Workers returns the number of assembly workers to run.
func (c *Config) Workers() int {
	if c.Model.Workers > 0 {
		return c.Model.Workers
	}
	return runtime.NumCPU()
}

// Validate checks everything a build needs and reports all problems at once.
func (c *Config) Validate() error {
	var err error
	invalid := func(format string, args ...any) {
		err = multierr.Append(err, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	if c.Input.Footprints == "" {
		invalid("input.footprints is required")
	}
	if c.Input.Surface == "" {
		invalid("input.surface is required")
	}
	if strings.TrimSpace(c.Input.IDField) == "" {
		invalid("input.id_field is empty")
	}
	if c.Input.SurfaceEPSG < 0 || c.Input.GroundEPSG < 0 {
		invalid("EPSG overrides must not be negative")
	}
	if _, e := c.Representation(); e != nil {
		invalid("model.building_type: %v", e)
	}
	if _, e := c.Sampler(); e != nil {
		invalid("model.mode: %v", e)
	}
	if c.Model.Radius < 0 {
		invalid("model.radius %g is negative", c.Model.Radius)
	}
	if c.Model.Workers < 0 {
		invalid("model.workers %d is negative", c.Model.Workers)
	}
	if c.Output.File == "" {
		invalid("output.file is required")
	}
	if _, e := zapcore.ParseLevel(c.Logging.Level); e != nil {
		invalid("logging.level: %v", e)
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		invalid("logging.format %q (want console or json)", c.Logging.Format)
	}
	return err
}
