// Package bridge converts boundary encodings into the engine's geometry
// payloads. Conversion is pure but not free, and the same boundary and tile
// rectangles get converted repeatedly during a job, so results are memoized
// by the exact input encoding.
package bridge

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/paulmach/orb/geojson"
)

const DefaultCacheSize = 128

// Bridge memoizes WKT to engine-geometry conversion. Safe for concurrent
// use by the fetch workers.
type Bridge struct {
	cache *lru.Cache[string, *geojson.Geometry]
}

// New creates a bridge with a bounded LRU cache. A non-positive size falls
// back to DefaultCacheSize.
func New(cacheSize int) (*Bridge, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New[string, *geojson.Geometry](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating bridge cache: %w", err)
	}
	return &Bridge{cache: cache}, nil
}

// Convert turns a WKT encoding into the engine geometry payload. Repeated
// calls with the same encoding return the same value, callers must treat it
// as read-only.
func (b *Bridge) Convert(wktGeom string) (*geojson.Geometry, error) {
	if cached, ok := b.cache.Get(wktGeom); ok {
		return cached, nil
	}

	geom, err := wkt.Unmarshal(wktGeom)
	if err != nil {
		return nil, fmt.Errorf("parsing geometry: %w", err)
	}
	converted := geojson.NewGeometry(geom)
	b.cache.Add(wktGeom, converted)
	return converted, nil
}

// ConvertBound converts a rectangle through the same cache, keyed by the
// rectangle's own polygon encoding.
func (b *Bridge) ConvertBound(rect orb.Bound) (*geojson.Geometry, error) {
	return b.Convert(wkt.MarshalString(rect.ToPolygon()))
}

// Len reports how many distinct encodings are currently cached.
func (b *Bridge) Len() int {
	return b.cache.Len()
}
