package config

import "flag"

// Flags holds the command-line overrides of one subcommand.
// Only flags given on the command line override the config file.
type Flags struct {
	fs *flag.FlagSet

	Config string
	Debug  bool

	Footprints  string
	Surface     string
	Ground      string
	Roof        string
	IDField     string
	AssignIDs   bool
	SurfaceEPSG int
	GroundEPSG  int

	BuildingType string
	Mode         string
	Radius       float64
	Workers      int

	Output string
	Pretty bool

	LogLevel  string
	LogFile   string
	LogFormat string
}

// BindFlags registers the configuration flags on fs.
func BindFlags(fs *flag.FlagSet) *Flags {
	f := &Flags{fs: fs}
	fs.StringVar(&f.Config, "config", "", "Path to config file")
	fs.BoolVar(&f.Debug, "debug", false, "Enable debug logging")

	fs.StringVar(&f.Footprints, "footprints", "", "GeoJSON building footprints")
	fs.StringVar(&f.Surface, "surface", "", "Surface model raster (DSM), .asc or .tif with world file")
	fs.StringVar(&f.Ground, "ground", "", "Terrain model raster (DTM), .asc or .tif, optional")
	fs.StringVar(&f.Roof, "roof", "", "GeoJSON roof structures, optional (LOD2)")
	fs.StringVar(&f.IDField, "id-field", "", "Footprint property holding the building identifier")
	fs.BoolVar(&f.AssignIDs, "assign-ids", false, "Generate identifiers for footprints without one")
	fs.IntVar(&f.SurfaceEPSG, "surface-epsg", 0, "EPSG code of the surface raster (overrides .prj)")
	fs.IntVar(&f.GroundEPSG, "ground-epsg", 0, "EPSG code of the ground raster (overrides .prj)")

	fs.StringVar(&f.BuildingType, "type", "", "Building representation: MultiSurface or Solid")
	fs.StringVar(&f.Mode, "mode", "", "Height sampling: normal or onedge")
	fs.Float64Var(&f.Radius, "radius", 0, "onedge search radius in map units")
	fs.IntVar(&f.Workers, "workers", 0, "Concurrent assembly workers (0 = all CPUs)")

	fs.StringVar(&f.Output, "o", "", "Output CityJSON file")
	fs.BoolVar(&f.Pretty, "pretty", false, "Indent the CityJSON output")

	fs.StringVar(&f.LogLevel, "log-level", "", "Log level: debug, info, warn, error")
	fs.StringVar(&f.LogFile, "log-file", "", "Also log to this file (rotated)")
	fs.StringVar(&f.LogFormat, "log-format", "", "Log format: console or json")
	return f
}

// apply copies every flag set on the command line into cfg.
func (f *Flags) apply(cfg *Config) {
	f.fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "footprints":
			cfg.Input.Footprints = f.Footprints
		case "surface":
			cfg.Input.Surface = f.Surface
		case "ground":
			cfg.Input.Ground = f.Ground
		case "roof":
			cfg.Input.Roof = f.Roof
		case "id-field":
			cfg.Input.IDField = f.IDField
		case "assign-ids":
			cfg.Input.AssignIDs = f.AssignIDs
		case "surface-epsg":
			cfg.Input.SurfaceEPSG = f.SurfaceEPSG
		case "ground-epsg":
			cfg.Input.GroundEPSG = f.GroundEPSG
		case "type":
			cfg.Model.BuildingType = f.BuildingType
		case "mode":
			cfg.Model.Mode = f.Mode
		case "radius":
			cfg.Model.Radius = f.Radius
		case "workers":
			cfg.Model.Workers = f.Workers
		case "o":
			cfg.Output.File = f.Output
		case "pretty":
			cfg.Output.Pretty = f.Pretty
		case "log-level":
			cfg.Logging.Level = f.LogLevel
		case "log-file":
			cfg.Logging.LogFile = f.LogFile
		case "log-format":
			cfg.Logging.Format = f.LogFormat
		}
	})
	if f.Debug {
		cfg.Logging.Level = "debug"
	}
}
