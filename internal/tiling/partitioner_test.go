package tiling

import (
	"fmt"
	"math"
	"testing"

	"github.com/paulmach/orb"

	"canopy/internal/geometry"
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

func TestBoxDimensionsKm(t *testing.T) {
	// One degree square centered on latitude 60, where a longitude degree
	// is half a latitude degree.
	b := orb.Bound{Min: orb.Point{10, 59.5}, Max: orb.Point{11, 60.5}}
	widthKm, heightKm := BoxDimensionsKm(b)

	if math.Abs(heightKm-111) > 1e-9 {
		t.Errorf("heightKm = %v, want 111", heightKm)
	}
	wantWidth := 111 * math.Cos(60*math.Pi/180)
	if math.Abs(widthKm-wantWidth) > 1e-9 {
		t.Errorf("widthKm = %v, want %v", widthKm, wantWidth)
	}
}

func TestPartitionSmallBoxReturnsSingleTile(t *testing.T) {
	// Roughly 22 x 22 km at the equator, inside the 30 km limit.
	b := boxBoundary(t, 0, -0.1, 0.2, 0.1)

	tiles := Partition(b, DefaultMaxTileKm)
	if len(tiles) != 1 {
		t.Fatalf("got %d tiles, want 1", len(tiles))
	}
	if tiles[0].Index != 0 {
		t.Errorf("single tile index = %d, want 0", tiles[0].Index)
	}
	if tiles[0].Rect != b.Bounds() {
		t.Errorf("single tile rect = %v, want the input box %v", tiles[0].Rect, b.Bounds())
	}
}

func TestPartitionFiftyKmSquare(t *testing.T) {
	// 50 x 50 km centered on the equator. ceil(50/30) = 2 per axis.
	half := 25.0 / 111.0
	b := boxBoundary(t, -half, -half, half, half)

	tiles := Partition(b, DefaultMaxTileKm)
	if len(tiles) != 4 {
		t.Fatalf("got %d tiles, want 4", len(tiles))
	}

	for i, tile := range tiles {
		if tile.Index != i {
			t.Errorf("tile %d has index %d, enumeration order broken", i, tile.Index)
		}
	}

	// Degree-uniform cells: every tile spans exactly half the box per axis.
	box := b.Bounds()
	wantW := (box.Max[0] - box.Min[0]) / 2
	wantH := (box.Max[1] - box.Min[1]) / 2
	for _, tile := range tiles {
		gotW := tile.Rect.Max[0] - tile.Rect.Min[0]
		gotH := tile.Rect.Max[1] - tile.Rect.Min[1]
		if math.Abs(gotW-wantW) > 1e-12 || math.Abs(gotH-wantH) > 1e-12 {
			t.Errorf("tile %d spans %vx%v degrees, want %vx%v", tile.Index, gotW, gotH, wantW, wantH)
		}
	}
}

func TestPartitionTilesStayInsideBox(t *testing.T) {
	b := boxBoundary(t, 10, 40, 12, 41.5)
	box := b.Bounds()

	tiles := Partition(b, DefaultMaxTileKm)
	if len(tiles) < 2 {
		t.Fatalf("expected a real grid, got %d tiles", len(tiles))
	}

	const eps = 1e-9
	for _, tile := range tiles {
		r := tile.Rect
		if r.Min[0] < box.Min[0]-eps || r.Min[1] < box.Min[1]-eps ||
			r.Max[0] > box.Max[0]+eps || r.Max[1] > box.Max[1]+eps {
			t.Errorf("tile %d rect %v leaves the bounding box %v", tile.Index, r, box)
		}
	}
}

func TestPartitionCoversBoxShapedBoundary(t *testing.T) {
	b := boxBoundary(t, 0, 0, 1, 1)
	box := b.Bounds()

	tiles := Partition(b, DefaultMaxTileKm)
	numX, numY := GridSize(box, DefaultMaxTileKm)
	if len(tiles) != numX*numY {
		t.Fatalf("box-shaped boundary dropped cells: got %d tiles, grid is %dx%d", len(tiles), numX, numY)
	}

	// Sample points across the box; each must fall inside some tile.
	for sx := 0; sx < 20; sx++ {
		for sy := 0; sy < 20; sy++ {
			pt := orb.Point{
				box.Min[0] + (float64(sx)+0.5)/20*(box.Max[0]-box.Min[0]),
				box.Min[1] + (float64(sy)+0.5)/20*(box.Max[1]-box.Min[1]),
			}
			covered := false
			for _, tile := range tiles {
				if tile.Rect.Contains(pt) {
					covered = true
					break
				}
			}
			if !covered {
				t.Fatalf("point %v inside the boundary is not covered by any tile", pt)
			}
		}
	}
}

func TestPartitionDropsCellsOutsidePolygon(t *testing.T) {
	// Thin strip along the bottom edge of a one degree box. Only the bottom
	// row of the grid intersects it.
	wkt := "POLYGON((0 0,1 0,1 0.05,0 0.05,0 0))"
	b, err := geometry.NewBoundary(wkt, 0, 0, 1, 1)
	if err != nil {
		t.Fatalf("NewBoundary: %v", err)
	}

	numX, numY := GridSize(b.Bounds(), DefaultMaxTileKm)
	if numX < 2 || numY < 2 {
		t.Fatalf("grid %dx%d too small for the test to mean anything", numX, numY)
	}

	tiles := Partition(b, DefaultMaxTileKm)
	if len(tiles) != numX {
		t.Errorf("got %d tiles, want only the %d bottom-row cells", len(tiles), numX)
	}
	for _, tile := range tiles {
		if tile.Rect.Min[1] > 0.05 {
			t.Errorf("tile %d rect %v does not touch the strip", tile.Index, tile.Rect)
		}
	}
}

func TestPartitionClampsTileSizeOnLargeAreas(t *testing.T) {
	// Roughly 200 x 200 km at the equator. A requested 100 km tile gets
	// clamped to 60 km, so the grid is ceil(200/60) = 4 per axis.
	half := 100.0 / 111.0
	b := boxBoundary(t, -half, -half, half, half)

	numX, numY := GridSize(b.Bounds(), 100)
	if numX != 4 || numY != 4 {
		t.Errorf("grid = %dx%d, want 4x4 after clamping to 60 km", numX, numY)
	}

	tiles := Partition(b, 100)
	if len(tiles) != 16 {
		t.Errorf("got %d tiles, want 16", len(tiles))
	}
}

func TestPartitionKeepsRequestedSizeOnSmallAreas(t *testing.T) {
	// 120 x 8 km: wider than the requested 100 km but under the 1000 km2
	// area threshold, so no clamping happens.
	b := boxBoundary(t, 0, 0, 120.0/111.0, 8.0/111.0)

	numX, numY := GridSize(b.Bounds(), 100)
	if numX != 2 || numY != 1 {
		t.Errorf("grid = %dx%d, want 2x1 with the requested size kept", numX, numY)
	}
}
