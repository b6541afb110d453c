package mosaic

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/paulmach/orb"

	"canopy/internal/fetcher"
	"canopy/internal/geometry"
	"canopy/internal/tiling"
)

// boxBoundary builds a boundary whose polygon equals its bounding box.
func boxBoundary(t *testing.T, west, south, east, north float64) *geometry.Boundary {
	t.Helper()
	wkt := fmt.Sprintf("POLYGON((%[1]v %[2]v,%[3]v %[2]v,%[3]v %[4]v,%[1]v %[4]v,%[1]v %[2]v))",
		west, south, east, north)
	b, err := geometry.NewBoundary(wkt, west, south, east, north)
	if err != nil {
		t.Fatalf("NewBoundary: %v", err)
	}
	return b
}

func solidImage(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func solidTile(index int, rect orb.Bound, c color.NRGBA) fetcher.TileResult {
	return fetcher.TileResult{
		Tile:  tiling.Tile{Index: index, Rect: rect},
		Image: solidImage(32, 32, c),
	}
}

func TestCanvasSizePicksFineScaleForSmallRegions(t *testing.T) {
	bbox := orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{0.1, 0.1}}
	w, h, scaleM := CanvasSize(bbox)

	if scaleM != 10 {
		t.Errorf("scale = %v, want 10", scaleM)
	}
	if math.Abs(float64(w)-1110) > 1 || math.Abs(float64(h)-1110) > 1 {
		t.Errorf("canvas = %dx%d, want about 1110x1110", w, h)
	}
}

func TestCanvasSizePicksCoarseScaleForLargeRegions(t *testing.T) {
	bbox := orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{0.5, 0.5}}
	w, h, scaleM := CanvasSize(bbox)

	if scaleM != 20 {
		t.Errorf("scale = %v, want 20", scaleM)
	}
	if math.Abs(float64(w)-2775) > 1 || math.Abs(float64(h)-2775) > 1 {
		t.Errorf("canvas = %dx%d, want about 2775x2775", w, h)
	}
}

func TestCanvasSizeCapsPixelDimensions(t *testing.T) {
	bbox := orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{2, 2}}
	w, h, _ := CanvasSize(bbox)

	if w > maxDimension || h > maxDimension {
		t.Errorf("canvas = %dx%d exceeds the %d px cap", w, h, maxDimension)
	}
	if w < maxDimension-1 && h < maxDimension-1 {
		t.Errorf("canvas = %dx%d, expected the larger side to sit at the cap", w, h)
	}

	// A 2:1 box keeps its aspect ratio through the cap.
	wide, tall, _ := CanvasSize(orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{2, 1}})
	if ratio := float64(wide) / float64(tall); math.Abs(ratio-2) > 0.01 {
		t.Errorf("aspect ratio after cap = %v, want about 2", ratio)
	}
}

func TestAssembleSingleTileFillsCanvas(t *testing.T) {
	b := boxBoundary(t, 0, 0, 0.01, 0.01)
	red := color.NRGBA{255, 0, 0, 255}
	tiles := []fetcher.TileResult{solidTile(0, b.Bounds(), red)}

	img, err := Assemble(b, tiles)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	w, h, _ := CanvasSize(b.Bounds())
	if got := img.Bounds(); got.Dx() != w || got.Dy() != h {
		t.Fatalf("canvas = %dx%d, want %dx%d", got.Dx(), got.Dy(), w, h)
	}

	for _, p := range []image.Point{{0, 0}, {w / 2, h / 2}, {w - 2, h - 2}} {
		if got := img.NRGBAAt(p.X, p.Y); got != red {
			t.Errorf("pixel %v = %v, want %v", p, got, red)
		}
	}
	// The far corner stays black: the clamp pulls the tile's bottom-right
	// pixel edge one short of the canvas edge.
	if got := img.NRGBAAt(w-1, h-1); got != (color.NRGBA{0, 0, 0, 255}) {
		t.Errorf("corner pixel = %v, want black", got)
	}
}

func TestAssemblePlacesTilesByFootprint(t *testing.T) {
	b := boxBoundary(t, 0, 0, 0.02, 0.01)
	blue := color.NRGBA{0, 0, 255, 255}
	yellow := color.NRGBA{255, 255, 0, 255}
	tiles := []fetcher.TileResult{
		solidTile(0, orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{0.01, 0.01}}, blue),
		solidTile(1, orb.Bound{Min: orb.Point{0.01, 0}, Max: orb.Point{0.02, 0.01}}, yellow),
	}

	img, err := Assemble(b, tiles)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	w, h, _ := CanvasSize(b.Bounds())
	if got := img.NRGBAAt(w/4, h/2); got != blue {
		t.Errorf("left half pixel = %v, want %v", got, blue)
	}
	if got := img.NRGBAAt(3*w/4, h/2); got != yellow {
		t.Errorf("right half pixel = %v, want %v", got, yellow)
	}
}

func TestAssembleLaterIndexWinsOverlap(t *testing.T) {
	b := boxBoundary(t, 0, 0, 0.01, 0.01)
	green := color.NRGBA{0, 255, 0, 255}
	red := color.NRGBA{255, 0, 0, 255}

	// Same footprint, handed over out of order. Index order decides.
	tiles := []fetcher.TileResult{
		solidTile(1, b.Bounds(), red),
		solidTile(0, b.Bounds(), green),
	}

	img, err := Assemble(b, tiles)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	w, h, _ := CanvasSize(b.Bounds())
	if got := img.NRGBAAt(w/2, h/2); got != red {
		t.Errorf("center pixel = %v, want the higher-index tile %v", got, red)
	}
}

func TestAssembleSkipsDegenerateFootprints(t *testing.T) {
	b := boxBoundary(t, 0, 0, 0.01, 0.01)
	red := color.NRGBA{255, 0, 0, 255}
	sliver := orb.Bound{Min: orb.Point{0.005, 0}, Max: orb.Point{0.005, 0.01}}

	img, err := Assemble(b, []fetcher.TileResult{
		solidTile(0, sliver, red),
		solidTile(1, b.Bounds(), red),
	})
	if err != nil {
		t.Fatalf("Assemble with one good tile: %v", err)
	}
	w, h, _ := CanvasSize(b.Bounds())
	if got := img.NRGBAAt(w/2, h/2); got != red {
		t.Errorf("center pixel = %v, want %v", got, red)
	}

	_, err = Assemble(b, []fetcher.TileResult{solidTile(0, sliver, red)})
	if !errors.Is(err, ErrNoTiles) {
		t.Errorf("all-degenerate error = %v, want ErrNoTiles", err)
	}
}

func TestAssembleEmptyInput(t *testing.T) {
	b := boxBoundary(t, 0, 0, 0.01, 0.01)
	if _, err := Assemble(b, nil); !errors.Is(err, ErrNoTiles) {
		t.Errorf("error = %v, want ErrNoTiles", err)
	}
}

func TestApplyBoundaryMaskIsNoOpForBoxBoundary(t *testing.T) {
	b := boxBoundary(t, 0, 0, 0.01, 0.01)
	white := color.NRGBA{255, 255, 255, 255}
	img := solidImage(100, 100, white)

	out := ApplyBoundaryMask(img, b)

	for _, p := range []image.Point{{0, 0}, {99, 0}, {0, 99}, {99, 99}, {50, 50}} {
		if got := out.NRGBAAt(p.X, p.Y); got != white {
			t.Errorf("pixel %v = %v, want untouched white", p, got)
		}
	}
}

func TestApplyBoundaryMaskDropsExterior(t *testing.T) {
	wkt := "POLYGON((0 0,0.01 0,0.01 0.01,0 0))"
	b, err := geometry.NewBoundary(wkt, 0, 0, 0.01, 0.01)
	if err != nil {
		t.Fatalf("NewBoundary: %v", err)
	}
	white := color.NRGBA{255, 255, 255, 255}
	black := color.NRGBA{0, 0, 0, 255}

	out := ApplyBoundaryMask(solidImage(100, 100, white), b)

	// The triangle covers the lower-right half of the canvas.
	if got := out.NRGBAAt(80, 80); got != white {
		t.Errorf("interior pixel = %v, want white", got)
	}
	if got := out.NRGBAAt(10, 10); got != black {
		t.Errorf("exterior pixel = %v, want black", got)
	}
}

func TestApplyBoundaryMaskExcludesHoles(t *testing.T) {
	wkt := "POLYGON((0 0,0.01 0,0.01 0.01,0 0.01,0 0)," +
		"(0.004 0.004,0.006 0.004,0.006 0.006,0.004 0.006,0.004 0.004))"
	b, err := geometry.NewBoundary(wkt, 0, 0, 0.01, 0.01)
	if err != nil {
		t.Fatalf("NewBoundary: %v", err)
	}
	white := color.NRGBA{255, 255, 255, 255}
	black := color.NRGBA{0, 0, 0, 255}

	out := ApplyBoundaryMask(solidImage(100, 100, white), b)

	if got := out.NRGBAAt(50, 50); got != black {
		t.Errorf("hole pixel = %v, want black", got)
	}
	if got := out.NRGBAAt(10, 50); got != white {
		t.Errorf("pixel between exterior and hole = %v, want white", got)
	}
}
