// Package lod assembles LOD1/LOD2 building geometry from draped footprints
// and composes buildings into a CityJSON model.
package lod

import (
	"errors"
	"fmt"

	"github.com/Faultbox/lodgen/internal/drape"
	"github.com/Faultbox/lodgen/pkg/cityjson"
	"github.com/Faultbox/lodgen/pkg/raster"
)

// Fatal errors: the run stops before any building is processed.
var (
	ErrConfig                  = errors.New("configuration error")
	ErrUnsupportedBuildingType = cityjson.ErrUnsupportedRepresentation
)

// Per-building errors: the building is skipped and the run continues.
var (
	ErrGeometry      = drape.ErrGeometry
	ErrRasterIndex   = raster.ErrOutOfBounds
	ErrInvalidRecord = errors.New("invalid footprint record")
	ErrMissingID     = fmt.Errorf("%w: missing identifier", ErrInvalidRecord)
	ErrDuplicateID   = fmt.Errorf("%w: duplicate identifier", ErrInvalidRecord)
)

// Recoverable reports whether err only invalidates the building it came from.
func Recoverable(err error) bool {
	return errors.Is(err, ErrGeometry) ||
		errors.Is(err, ErrRasterIndex) ||
		errors.Is(err, ErrInvalidRecord)
}
