package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"time"

	"canopy/internal/bridge"
	"canopy/internal/engine"
	"canopy/internal/geometry"
	"canopy/internal/job"
	"canopy/internal/model"
	"canopy/internal/postgres"
	"canopy/internal/protected"
	"canopy/internal/tiling"
	"canopy/internal/util"
)

// Command line flags
var (
	boundaryPath string
	startDate    string
	endDate      string
	engineURL    string
	dbURL        string
	maxTileKm    float64
	outputDir    string
	gridGeoJSON  string
	timeoutSec   int
)

func init() {
	// Define command line flags
	flag.StringVar(&boundaryPath, "boundary", "", "Path to boundary JSON file")
	flag.StringVar(&startDate, "start", "", "Start of the imagery window, YYYY-MM-DD")
	flag.StringVar(&endDate, "end", "", "End of the imagery window, YYYY-MM-DD")
	flag.StringVar(&engineURL, "engine-url", "", "Classification engine base URL")
	flag.StringVar(&dbURL, "db-url", "", "PostgreSQL URL for protected area lookups (optional)")
	flag.Float64Var(&maxTileKm, "max-tile-km", tiling.DefaultMaxTileKm, "Maximum tile edge in km")
	flag.StringVar(&outputDir, "out", "./output", "Directory for generated artifacts")
	flag.StringVar(&gridGeoJSON, "grid-geojson", "", "Export the tile grid to this GeoJSON file and exit")
	flag.IntVar(&timeoutSec, "timeout", 120, "Engine request timeout in seconds")
}

func main() {
	// Parse command line flags
	flag.Parse()

	if boundaryPath == "" {
		log.Fatal("Boundary file must be specified with -boundary")
	}

	boundary, groundTruth := loadBoundary(boundaryPath)

	// Grid export works offline, before any engine is involved
	if gridGeoJSON != "" {
		exportGrid(boundary)
		return
	}

	if startDate == "" || endDate == "" {
		log.Fatal("Date window must be specified with -start and -end")
	}
	if engineURL == "" {
		log.Fatal("Engine URL must be specified with -engine-url")
	}

	store := protected.GetStore()
	if dbURL != "" {
		postgres.Init(dbURL)
		defer postgres.Close()
		if err := store.InitStore(context.Background()); err != nil {
			log.Fatalf("Failed to initialize protected area store: %v", err)
		}
	}

	eng := engine.NewClient(engineURL, time.Duration(timeoutSec)*time.Second, store)
	br, err := bridge.New(128)
	if err != nil {
		log.Fatalf("Failed to initialize geometry bridge: %v", err)
	}
	registry := job.NewRegistry()
	runner := job.NewRunner(eng, br, registry)

	jobCtx := &model.JobContext{
		ID:             util.ShortUUID(),
		Boundary:       boundary,
		GroundTruthKm2: groundTruth,
		StartDate:      startDate,
		EndDate:        endDate,
		MaxTileKm:      maxTileKm,
		OutputDir:      outputDir,
	}

	res, err := runner.Run(context.Background(), jobCtx)
	if err != nil {
		log.Fatalf("Analysis failed: %v", err)
	}

	log.Printf("Image date: %s (%.2f%% cloud cover)", res.Date, res.CloudCover)
	log.Printf("Tiles: %d fetched, %d failed", res.TileCount-res.FailedTiles, res.FailedTiles)
	log.Printf("Classification image: %s", res.ImagePath)
	log.Printf("Statistics: %s", res.StatsPath)
	log.Printf("Natural forest: %.5f km2 (%.2f%% of forest)",
		res.Report.NaturalForestKm2, res.Report.NaturalForestPercentage)
}

func loadBoundary(path string) (*geometry.Boundary, float64) {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("Failed to read boundary file: %v", err)
	}
	var upload model.BoundaryUpload
	if err := json.Unmarshal(data, &upload); err != nil {
		log.Fatalf("Failed to parse boundary file: %v", err)
	}
	boundary, err := geometry.NewBoundary(upload.CityGeometry,
		upload.BBoxWest, upload.BBoxSouth, upload.BBoxEast, upload.BBoxNorth)
	if err != nil {
		log.Fatalf("Invalid boundary: %v", err)
	}
	return boundary, upload.AreaKm2
}

func exportGrid(boundary *geometry.Boundary) {
	tiles := tiling.Partition(boundary, maxTileKm)
	if err := tiling.ExportGridGeoJSON(tiles, gridGeoJSON); err != nil {
		log.Fatalf("Failed to export tile grid: %v", err)
	}
	log.Printf("Exported %d tiles to %s", len(tiles), gridGeoJSON)
}
