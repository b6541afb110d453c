// Package mosaic stitches fetched tile images into one geo-referenced
// canvas and masks it to the boundary polygon.
package mosaic

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"log"
	"math"
	"sort"

	"github.com/paulmach/orb"
	"golang.org/x/image/draw"

	"canopy/internal/fetcher"
	"canopy/internal/geometry"
)

const (
	fineScaleM   = 10.0
	coarseScaleM = 20.0

	// Regions above this ground area render at the coarse scale.
	coarseAreaM2 = 1_000_000_000

	// Neither canvas dimension may exceed this many pixels.
	maxDimension = 5000

	metersPerDegLat = 111000.0
)

// ErrNoTiles means no tile image could be placed on the canvas.
var ErrNoTiles = errors.New("no tiles to place")

// CanvasSize picks the mosaic's pixel dimensions for a bounding box. Ground
// distances use the equirectangular approximation at the box's middle
// latitude. When either dimension exceeds the cap, both shrink by the same
// factor so the aspect ratio survives.
func CanvasSize(bbox orb.Bound) (w, h int, scaleM float64) {
	latMid := (bbox.Min[1] + bbox.Max[1]) / 2
	widthM := (bbox.Max[0] - bbox.Min[0]) * metersPerDegLat * math.Cos(latMid*math.Pi/180)
	heightM := (bbox.Max[1] - bbox.Min[1]) * metersPerDegLat

	scaleM = fineScaleM
	if widthM*heightM > coarseAreaM2 {
		scaleM = coarseScaleM
	}
	w = int(widthM / scaleM)
	h = int(heightM / scaleM)
	if w > maxDimension || h > maxDimension {
		factor := math.Max(float64(w)/maxDimension, float64(h)/maxDimension)
		w = int(float64(w) / factor)
		h = int(float64(h) / factor)
	}
	return w, h, scaleM
}

// Assemble resamples each tile onto a black canvas at the pixel footprint of
// its bounding box. Tiles are placed in index order, so a later tile wins
// where footprints overlap. Tiles whose footprint collapses below one pixel
// are skipped; if every tile collapses the mosaic fails.
func Assemble(boundary *geometry.Boundary, tiles []fetcher.TileResult) (*image.NRGBA, error) {
	if len(tiles) == 0 {
		return nil, ErrNoTiles
	}
	bbox := boundary.Bounds()
	w, h, scaleM := CanvasSize(bbox)
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("degenerate %dx%d canvas for bounds %v", w, h, bbox)
	}

	ordered := make([]fetcher.TileResult, len(tiles))
	copy(ordered, tiles)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].Tile.Index < ordered[j].Tile.Index
	})

	canvas := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.NRGBA{0, 0, 0, 255}), image.Point{}, draw.Src)

	log.Printf("Merging %d tiles into %dx%d canvas at %.0f m/px", len(ordered), w, h, scaleM)

	placed := 0
	for _, t := range ordered {
		x1, y1 := geoToPixel(t.Tile.Rect.Min[0], t.Tile.Rect.Max[1], bbox, w, h)
		x2, y2 := geoToPixel(t.Tile.Rect.Max[0], t.Tile.Rect.Min[1], bbox, w, h)
		tw, th := x2-x1, y2-y1
		if tw <= 0 || th <= 0 {
			log.Printf("Skipping tile %d, footprint collapsed to %dx%d px", t.Tile.Index, tw, th)
			continue
		}
		draw.CatmullRom.Scale(canvas, image.Rect(x1, y1, x1+tw, y1+th), t.Image, t.Image.Bounds(), draw.Src, nil)
		placed++
	}
	if placed == 0 {
		return nil, fmt.Errorf("%w: all %d footprints degenerate", ErrNoTiles, len(ordered))
	}
	return canvas, nil
}

// geoToPixel maps a coordinate to the canvas pixel grid, origin at the
// north-west corner, clamped to the canvas.
func geoToPixel(lon, lat float64, bbox orb.Bound, w, h int) (int, int) {
	x := int((lon - bbox.Min[0]) / (bbox.Max[0] - bbox.Min[0]) * float64(w))
	y := int((bbox.Max[1] - lat) / (bbox.Max[1] - bbox.Min[1]) * float64(h))
	return min(max(x, 0), w-1), min(max(y, 0), h-1)
}
