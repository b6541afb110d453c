package geometry

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/clip"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/paulmach/orb/planar"
)

// Boundary is the analysis region for one job: the polygon of interest plus
// the bounding box that was supplied with it. The box is kept as-is instead
// of being recomputed from the polygon, since callers may pad it or source
// it independently. Boundaries are never mutated after construction.
type Boundary struct {
	geom orb.MultiPolygon
	bbox orb.Bound
	wkt  string
}

// NewBoundary parses a WKT POLYGON or MULTIPOLYGON and pairs it with the
// given bounding box. The box must contain the geometry.
func NewBoundary(wktGeom string, west, south, east, north float64) (*Boundary, error) {
	geom, err := wkt.Unmarshal(wktGeom)
	if err != nil {
		return nil, fmt.Errorf("parsing boundary geometry: %w", err)
	}

	var mp orb.MultiPolygon
	switch g := geom.(type) {
	case orb.Polygon:
		mp = orb.MultiPolygon{g}
	case orb.MultiPolygon:
		mp = g
	default:
		return nil, fmt.Errorf("boundary geometry must be a polygon, got %s", geom.GeoJSONType())
	}
	if len(mp) == 0 || len(mp[0]) == 0 || len(mp[0][0]) < 4 {
		return nil, fmt.Errorf("boundary geometry has no usable ring")
	}

	bbox := orb.Bound{
		Min: orb.Point{west, south},
		Max: orb.Point{east, north},
	}
	if !validBound(bbox) {
		return nil, fmt.Errorf("invalid bounding box: west=%v south=%v east=%v north=%v", west, south, east, north)
	}
	if gb := mp.Bound(); !boundContains(bbox, gb) {
		return nil, fmt.Errorf("bounding box %v does not contain geometry bound %v", bbox, gb)
	}

	return &Boundary{geom: mp, bbox: bbox, wkt: wktGeom}, nil
}

func validBound(b orb.Bound) bool {
	return b.Min[0] < b.Max[0] && b.Min[1] < b.Max[1]
}

// boundContains allows a small tolerance so boxes rounded to fewer decimals
// than the geometry still pass.
func boundContains(outer, inner orb.Bound) bool {
	const eps = 1e-6
	return inner.Min[0] >= outer.Min[0]-eps &&
		inner.Min[1] >= outer.Min[1]-eps &&
		inner.Max[0] <= outer.Max[0]+eps &&
		inner.Max[1] <= outer.Max[1]+eps
}

// Bounds returns the bounding box supplied at construction.
func (b *Boundary) Bounds() orb.Bound {
	return b.bbox
}

// WKT returns the exact geometry encoding the boundary was built from.
func (b *Boundary) WKT() string {
	return b.wkt
}

// PartsWithHoles returns the polygon parts. Each part's first ring is the
// outer boundary, any following rings are holes.
func (b *Boundary) PartsWithHoles() []orb.Polygon {
	return b.geom
}

// Contains reports whether the point lies inside the polygon (holes count
// as outside).
func (b *Boundary) Contains(pt orb.Point) bool {
	if !b.bbox.Contains(pt) {
		return false
	}
	return planar.MultiPolygonContains(b.geom, pt)
}

// Intersects reports whether the rectangle shares any interior area with
// the polygon. Rectangles that only touch an edge do not count, they would
// contribute no pixels downstream.
func (b *Boundary) Intersects(rect orb.Bound) bool {
	if !b.bbox.Intersects(rect) {
		return false
	}
	for _, part := range b.geom {
		clipped := clip.Polygon(rect, part.Clone())
		if len(clipped) == 0 {
			continue
		}
		if planar.Area(clipped) > 0 {
			return true
		}
	}
	return false
}

// Centroid returns the area-weighted centroid of the polygon.
func (b *Boundary) Centroid() orb.Point {
	c, _ := planar.CentroidArea(b.geom)
	return c
}
