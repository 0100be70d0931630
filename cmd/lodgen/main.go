// lodgen builds LOD1/LOD2 CityJSON building models from footprints and elevation rasters.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/lodgen/internal/config"
	"github.com/Faultbox/lodgen/internal/footprint"
	"github.com/Faultbox/lodgen/internal/logger"
	"github.com/Faultbox/lodgen/pkg/cityjson"
	"github.com/Faultbox/lodgen/pkg/raster"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "build":
		cmdBuild(args)
	case "raster":
		cmdRaster(args)
	case "inspect":
		cmdInspect(args)
	case "ids":
		cmdIDs(args)
	case "config":
		cmdConfig(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`lodgen - CityJSON building model generator

Usage:
  lodgen <command> [options]

Commands:
  build [flags]                        Build a CityJSON model (see lodgen build -h)
  raster <file.asc|file.tif>           Show elevation raster information
  inspect <file.json>                  Summarize a CityJSON model
  ids [flags] <in.geojson> <out.geojson>
                                       Split multipart footprints and assign identifiers
  config [path]                        Write the default configuration

Examples:
  lodgen build -footprints buildings.geojson -surface dsm.asc -o city.json
  lodgen build -config lodgen.yaml -type Solid -ground dtm.asc
  lodgen raster dsm.asc
  lodgen ids -overwrite raw.geojson buildings.geojson`)
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

func cmdBuild(args []string) {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	flags := config.BindFlags(fs)
	fs.Parse(args)

	cfg, err := config.Load(flags)
	if err != nil {
		fail("%v", err)
	}
	if err := cfg.Validate(); err != nil {
		fail("%v", err)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.LogFile); err != nil {
		fail("initializing logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	report, err := runBuild(ctx, cfg, logger.Log)
	if err != nil {
		logger.Error("build failed", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
	if len(report.Skipped) > 0 {
		logger.Warn("some buildings were skipped",
			zap.Int("count", len(report.Skipped)),
			zap.Strings("ids", report.SkippedIDs()),
		)
	}
	logger.Info("build finished",
		zap.Int("built", report.Built),
		zap.Int("skipped", len(report.Skipped)),
		zap.Duration("elapsed", time.Since(start)),
	)
}

func cmdRaster(args []string) {
	fs := flag.NewFlagSet("raster", flag.ExitOnError)
	epsg := fs.Int("epsg", 0, "Override the EPSG code read from the .prj")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: lodgen raster [-epsg N] <file.asc|file.tif>")
		os.Exit(1)
	}

	g, err := raster.Load(fs.Arg(0))
	if err != nil {
		fail("%v", err)
	}
	if *epsg != 0 {
		g.EPSG = *epsg
	}

	minX, minY, maxX, maxY := g.Bounds()
	st := g.Stats()
	t := g.Transform

	fmt.Printf("Raster:    %s\n", fs.Arg(0))
	fmt.Printf("Size:      %d x %d\n", g.Cols, g.Rows)
	fmt.Printf("Cell size: %g\n", g.CellSize())
	fmt.Printf("Transform: %g %g %g %g %g %g\n", t.A, t.B, t.C, t.D, t.E, t.F)
	fmt.Printf("Bounds:    %g %g %g %g\n", minX, minY, maxX, maxY)
	if g.EPSG != 0 {
		fmt.Printf("CRS:       EPSG:%d\n", g.EPSG)
	} else {
		fmt.Println("CRS:       unknown")
	}
	fmt.Printf("NoData:    %g (%d cells)\n", g.NoData, st.NoDataCell)
	if st.Valid > 0 {
		fmt.Printf("Values:    %g .. %g (mean %.3f)\n", st.Min, st.Max, st.Mean)
	}
}

func cmdInspect(args []string) {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	list := fs.Bool("list", false, "List every building")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: lodgen inspect [-list] <file.json>")
		os.Exit(1)
	}

	m, err := cityjson.Load(fs.Arg(0))
	if err != nil {
		fail("%v", err)
	}

	s := summarize(m)
	fmt.Printf("Model:     %s\n", fs.Arg(0))
	fmt.Printf("CRS:       %s\n", m.ReferenceSystem)
	fmt.Printf("Buildings: %d\n", len(m.CityObjects))
	fmt.Printf("Vertices:  %d\n", m.Vertices.Len())
	fmt.Printf("Faces:     %d\n", s.faces)
	fmt.Printf("Extent:    %g %g %g %g %g %g\n",
		m.Extent[0], m.Extent[1], m.Extent[2], m.Extent[3], m.Extent[4], m.Extent[5])
	fmt.Println()
	fmt.Println("Geometries:")
	for _, k := range s.kinds() {
		fmt.Printf("  %-20s %d\n", k, s.byKind[k])
	}

	if *list {
		fmt.Println()
		ids := make([]string, 0, len(m.CityObjects))
		for id := range m.CityObjects {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			fmt.Printf("  %s  %d faces\n", id, faceCount(m.CityObjects[id]))
		}
	}
}

func cmdIDs(args []string) {
	fs := flag.NewFlagSet("ids", flag.ExitOnError)
	idField := fs.String("id-field", footprint.DefaultIDField, "Property holding the building identifier")
	overwrite := fs.Bool("overwrite", false, "Replace existing identifiers too")
	fs.Parse(args)

	if fs.NArg() < 2 {
		fmt.Fprintln(os.Stderr, "Usage: lodgen ids [-id-field name] [-overwrite] <in.geojson> <out.geojson>")
		os.Exit(1)
	}

	c, err := footprint.LoadGeoJSON(fs.Arg(0), footprint.Options{IDField: *idField})
	if err != nil {
		fail("%v", err)
	}

	n := c.AssignIDs(*idField, *overwrite, nil)
	if dups := c.Duplicates(); len(dups) > 0 {
		fmt.Fprintf(os.Stderr, "Warning: %d duplicate identifiers: %v\n", len(dups), dups)
	}
	for _, o := range c.Overlaps() {
		fmt.Fprintf(os.Stderr, "Warning: footprints %s and %s overlap\n", o.A, o.B)
	}

	if err := c.SaveGeoJSON(fs.Arg(1), *idField); err != nil {
		fail("%v", err)
	}
	fmt.Printf("Wrote %d footprints to %s (%d identifiers assigned)\n", len(c.Buildings), fs.Arg(1), n)
}

func cmdConfig(args []string) {
	cfg := config.Default()

	var path string
	var err error
	if len(args) > 0 {
		path = args[0]
		err = cfg.SaveTo(path)
	} else {
		path, err = cfg.Save()
	}
	if err != nil {
		fail("%v", err)
	}
	fmt.Printf("Wrote default configuration to %s\n", path)
}
