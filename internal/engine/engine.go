// Package engine defines the contract with the remote classification
// service. The service owns the imagery, the classifier and the reducers;
// this side only ships geometries over and gets raster handles, render URLs
// and histograms back.
package engine

import (
	"context"
	"errors"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"canopy/internal/model"
)

// ErrNoImagery means the engine found no usable scene for the requested
// window and region.
var ErrNoImagery = errors.New("no imagery available for the requested date range")

// Raster is an opaque handle to a classified raster held by the engine.
type Raster string

// DateWindow bounds the imagery search, both ends YYYY-MM-DD.
type DateWindow struct {
	Start string
	End   string
}

// Classification is the result of building the enhanced land-cover raster:
// the handle plus the acquisition metadata of the scene it was built from.
type Classification struct {
	Raster Raster
	// Date is the acquisition date of the least cloudy scene, YYYY-MM-DD.
	Date string
	// CloudCover is that scene's cloud percentage, 0-100.
	CloudCover float64
}

// RenderSpec controls a rendered image export.
type RenderSpec struct {
	Scale     int // meters per pixel
	Format    string
	MaxPixels int64
}

// DefaultRenderSpec matches the per-tile export limits the engine accepts.
func DefaultRenderSpec() RenderSpec {
	return RenderSpec{Scale: 20, Format: "png", MaxPixels: 1_000_000_000}
}

// HistogramSpec controls a pixel-frequency reduction. BestEffort lets the
// engine approximate over regions too large to enumerate exactly.
type HistogramSpec struct {
	Scale      int
	MaxPixels  int64
	BestEffort bool
	TileScale  int
}

func DefaultHistogramSpec() HistogramSpec {
	return HistogramSpec{Scale: 10, MaxPixels: 10_000_000_000_000, BestEffort: true, TileScale: 4}
}

// ProtectedAreaSource supplies protected-area polygons intersecting a
// region, used to promote tree pixels to the natural-forest class. The date
// picks the snapshot the areas are read from.
type ProtectedAreaSource interface {
	AreasIntersecting(region orb.Bound, date string) ([]orb.Polygon, error)
}

// Engine is the remote classification service. Counts in the histogram are
// fractional because best-effort reductions blend pixels at tile seams.
type Engine interface {
	Classify(ctx context.Context, boundary *geojson.Geometry, window DateWindow) (*Classification, error)
	RenderURL(ctx context.Context, raster Raster, region *geojson.Geometry, spec RenderSpec) (string, error)
	Histogram(ctx context.Context, raster Raster, region *geojson.Geometry, spec HistogramSpec) (map[model.Class]float64, error)
}
