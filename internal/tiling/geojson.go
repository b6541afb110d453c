package tiling

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"canopy/internal/util"
)

// ExportGridGeoJSON writes the partition result as a GeoJSON
// FeatureCollection so a grid can be eyeballed in any viewer. Each feature
// carries the tile index plus measured edge lengths, with haversine
// distances alongside the planar approximation the partitioner uses.
func ExportGridGeoJSON(tiles []Tile, outputFile string) error {
	fc := geojson.NewFeatureCollection()

	for _, tile := range tiles {
		r := tile.Rect
		ring := orb.Ring{
			{r.Min[0], r.Max[1]},
			{r.Max[0], r.Max[1]},
			{r.Max[0], r.Min[1]},
			{r.Min[0], r.Min[1]},
			{r.Min[0], r.Max[1]},
		}

		feature := geojson.NewFeature(orb.Polygon{ring})
		feature.Properties["index"] = tile.Index

		widthKm, heightKm := BoxDimensionsKm(r)
		feature.Properties["width_kilometers"] = roundKm(widthKm)
		feature.Properties["height_kilometers"] = roundKm(heightKm)

		topWidth := util.HaversineDistance(r.Max[1], r.Min[0], r.Max[1], r.Max[0])
		leftHeight := util.HaversineDistance(r.Min[1], r.Min[0], r.Max[1], r.Min[0])
		feature.Properties["haversine_width_kilometers"] = roundKm(topWidth / 1000)
		feature.Properties["haversine_height_kilometers"] = roundKm(leftHeight / 1000)

		fc.Append(feature)
	}

	jsonData, err := json.MarshalIndent(fc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling grid geojson: %w", err)
	}
	if err := os.WriteFile(outputFile, jsonData, 0644); err != nil {
		return fmt.Errorf("writing grid geojson: %w", err)
	}
	return nil
}

func roundKm(km float64) float64 {
	return math.Round(km*1000) / 1000
}
