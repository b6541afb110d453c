package tiling

import (
	"math"

	"github.com/paulmach/orb"

	"canopy/internal/geometry"
)

// Tile is one fetchable sub-rectangle of a job's bounding box. Index is the
// enumeration order assigned by Partition and stays stable for the life of
// the job, results are re-keyed by it after the concurrent fetch.
type Tile struct {
	Index int
	Rect  orb.Bound
}

const (
	// DefaultMaxTileKm keeps a single render request inside the engine's
	// per-request raster limits.
	DefaultMaxTileKm = 30.0

	// Boxes above this area get their tile size clamped into
	// [minTileKm, maxTileKm] to cap the total tile count.
	growAreaKm2 = 1000.0
	minTileKm   = 30.0
	maxTileKm   = 60.0

	kmPerDegLat = 111.0
)

// BoxDimensionsKm converts a box's degree extent to kilometers. Longitude
// degrees shrink with latitude, evaluated at the box's vertical midpoint.
// The equirectangular approximation is fine at the tens-to-hundreds of km
// this system handles and must stay exactly this formula for output
// stability.
func BoxDimensionsKm(b orb.Bound) (widthKm, heightKm float64) {
	latMid := (b.Min[1] + b.Max[1]) / 2
	kmPerDegLon := kmPerDegLat * math.Cos(latMid*math.Pi/180)
	widthKm = (b.Max[0] - b.Min[0]) * kmPerDegLon
	heightKm = (b.Max[1] - b.Min[1]) * kmPerDegLat
	return widthKm, heightKm
}

// Partition splits the boundary's bounding box into a degree-uniform grid
// of tiles no larger than maxSizeKm on a side, dropping cells that share no
// area with the boundary polygon. A box already within the limit comes back
// as a single tile. Cells are equal in degrees, not kilometers; the uniform
// division keeps the geo-to-pixel transform linear downstream.
func Partition(boundary *geometry.Boundary, maxSizeKm float64) []Tile {
	if maxSizeKm <= 0 {
		maxSizeKm = DefaultMaxTileKm
	}

	box := boundary.Bounds()
	widthKm, heightKm := BoxDimensionsKm(box)

	if widthKm <= maxSizeKm && heightKm <= maxSizeKm {
		return []Tile{{Index: 0, Rect: box}}
	}

	if widthKm*heightKm > growAreaKm2 {
		maxSizeKm = math.Min(maxTileKm, math.Max(minTileKm, maxSizeKm))
	}

	numX := int(math.Ceil(widthKm / maxSizeKm))
	numY := int(math.Ceil(heightKm / maxSizeKm))
	stepX := (box.Max[0] - box.Min[0]) / float64(numX)
	stepY := (box.Max[1] - box.Min[1]) / float64(numY)

	var tiles []Tile
	for i := 0; i < numX; i++ {
		for j := 0; j < numY; j++ {
			rect := orb.Bound{
				Min: orb.Point{box.Min[0] + float64(i)*stepX, box.Min[1] + float64(j)*stepY},
				Max: orb.Point{box.Min[0] + float64(i+1)*stepX, box.Min[1] + float64(j+1)*stepY},
			}
			if !boundary.Intersects(rect) {
				continue
			}
			tiles = append(tiles, Tile{Index: len(tiles), Rect: rect})
		}
	}
	return tiles
}

// GridSize reports the full grid dimensions Partition would use before the
// intersection filter. Exposed for diagnostics and the grid export tool.
func GridSize(box orb.Bound, maxSizeKm float64) (numX, numY int) {
	if maxSizeKm <= 0 {
		maxSizeKm = DefaultMaxTileKm
	}
	widthKm, heightKm := BoxDimensionsKm(box)
	if widthKm <= maxSizeKm && heightKm <= maxSizeKm {
		return 1, 1
	}
	if widthKm*heightKm > growAreaKm2 {
		maxSizeKm = math.Min(maxTileKm, math.Max(minTileKm, maxSizeKm))
	}
	return int(math.Ceil(widthKm / maxSizeKm)), int(math.Ceil(heightKm / maxSizeKm))
}
