// Package job runs one analysis end to end: classification, tiling,
// concurrent tile fetching, mosaic assembly, and area statistics.
package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/paulmach/orb/geojson"
	"github.com/sourcegraph/conc/pool"
	"golang.org/x/sync/semaphore"

	"canopy/internal/bridge"
	"canopy/internal/engine"
	"canopy/internal/fetcher"
	"canopy/internal/geometry"
	"canopy/internal/legend"
	"canopy/internal/metrics"
	"canopy/internal/model"
	"canopy/internal/mosaic"
	"canopy/internal/redis"
	"canopy/internal/stats"
	"canopy/internal/tiling"
)

const (
	// MaxFetchWorkers caps the tile download concurrency.
	MaxFetchWorkers = 10

	// MaxConcurrentRuns caps how many analyses run at once. Each run holds
	// a full mosaic in memory, so admission is bounded, not queued.
	MaxConcurrentRuns = 2

	// MaxCloudCoverPct rejects composites with more cloud than this share
	// of pixels.
	MaxCloudCoverPct = 1.0
)

var (
	// ErrTooCloudy rejects windows whose composite is mostly cloud. The
	// text is surfaced to API callers as-is.
	ErrTooCloudy = errors.New("Cloud cover is too much, please try another date range")

	// ErrNoUsableTiles means every tile download failed.
	ErrNoUsableTiles = errors.New("no usable tiles")

	// ErrBusy means the runner is at its concurrency limit.
	ErrBusy = errors.New("analysis capacity exhausted, try again later")
)

// Result describes a finished analysis.
type Result struct {
	RunID       string
	Date        string
	CloudCover  float64
	TileCount   int
	FailedTiles int
	ImagePath   string
	StatsPath   string
	Report      *stats.Report
	Duration    time.Duration
}

// Runner wires the engine, the geometry bridge, and the tile fetcher into
// the analysis pipeline.
type Runner struct {
	engine   engine.Engine
	bridge   *bridge.Bridge
	fetcher  *fetcher.Fetcher
	registry *Registry
	sem      *semaphore.Weighted
}

// NewRunner builds a runner on top of a classification engine.
func NewRunner(eng engine.Engine, br *bridge.Bridge, reg *Registry) *Runner {
	return &Runner{
		engine:   eng,
		bridge:   br,
		fetcher:  fetcher.New(eng, br),
		registry: reg,
		sem:      semaphore.NewWeighted(MaxConcurrentRuns),
	}
}

// Run executes one analysis and returns the artifact paths. The run is
// tracked in the registry through every state transition. Runs past the
// concurrency limit are turned away with ErrBusy instead of queued, the
// caller decides whether to retry.
func (r *Runner) Run(ctx context.Context, job *model.JobContext) (*Result, error) {
	if !r.sem.TryAcquire(1) {
		return nil, ErrBusy
	}
	defer r.sem.Release(1)

	start := time.Now()
	run := r.registry.Create(job)

	res, err := r.run(ctx, job, run)
	duration := time.Since(start)
	metrics.AnalysisDurationSeconds.Observe(duration.Seconds())

	if err != nil {
		r.registry.Fail(run, err)
		if errors.Is(err, ErrTooCloudy) || errors.Is(err, engine.ErrNoImagery) {
			metrics.AnalysisRunsTotal.WithLabelValues("rejected").Inc()
		} else {
			metrics.AnalysisRunsTotal.WithLabelValues("failed").Inc()
		}
		return nil, err
	}

	res.Duration = duration
	r.registry.Complete(run, res)
	metrics.AnalysisRunsTotal.WithLabelValues("succeeded").Inc()
	log.Printf("Analysis %s completed in %v: %d/%d tiles, image %s",
		job.ID, duration, res.TileCount-res.FailedTiles, res.TileCount, res.ImagePath)
	return res, nil
}

func (r *Runner) run(ctx context.Context, job *model.JobContext, run *model.AnalysisRun) (*Result, error) {
	geom, err := r.bridge.Convert(job.Boundary.WKT())
	if err != nil {
		return nil, fmt.Errorf("convert boundary: %w", err)
	}

	// Stage 1: classify the window.
	classifyStart := time.Now()
	classification, err := r.engine.Classify(ctx, geom, engine.DateWindow{Start: job.StartDate, End: job.EndDate})
	if err != nil {
		return nil, fmt.Errorf("classify %s..%s: %w", job.StartDate, job.EndDate, err)
	}
	log.Printf("Classification for %s ready in %v: image date %s, cloud cover %.2f%%",
		job.ID, time.Since(classifyStart), classification.Date, classification.CloudCover)
	if classification.CloudCover > MaxCloudCoverPct {
		return nil, fmt.Errorf("%w (%.2f%% cloud)", ErrTooCloudy, classification.CloudCover)
	}
	r.registry.SetImageDate(run, classification.Date)

	// Stage 2: split the region into downloadable tiles.
	tiles := tiling.Partition(job.Boundary, job.MaxTileKm)
	metrics.TilesPlannedTotal.Add(float64(len(tiles)))
	if len(tiles) == 0 {
		return nil, ErrNoUsableTiles
	}

	// Stage 3: fetch tiles concurrently.
	fetchStart := time.Now()
	results := r.fetchAll(ctx, classification.Raster, tiles)
	if len(results) == 0 {
		return nil, fmt.Errorf("%w: 0 of %d tiles fetched", ErrNoUsableTiles, len(tiles))
	}
	failed := len(tiles) - len(results)
	log.Printf("Fetched %d/%d tiles in %v", len(results), len(tiles), time.Since(fetchStart))
	if failed > 0 {
		log.Printf("Proceeding with a partial mosaic, %d tiles missing", failed)
	}

	if err := os.MkdirAll(job.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	res := &Result{
		RunID:       job.ID,
		Date:        classification.Date,
		CloudCover:  classification.CloudCover,
		TileCount:   len(tiles),
		FailedTiles: failed,
	}

	// Stage 4: the mosaic and the statistics are independent, build both
	// in parallel.
	p := pool.New().WithErrors()
	p.Go(func() error {
		path, err := r.writeImage(job, classification.Date, results)
		if err != nil {
			return err
		}
		res.ImagePath = path
		return nil
	})
	p.Go(func() error {
		report, payload, err := r.buildStats(ctx, job, geom, classification)
		if err != nil {
			return err
		}
		path := filepath.Join(job.OutputDir, fmt.Sprintf("natural_forest_stats_%s.json", classification.Date))
		if err := os.WriteFile(path, payload, 0644); err != nil {
			return fmt.Errorf("write stats: %w", err)
		}
		res.Report = report
		res.StatsPath = path
		return nil
	})
	if err := p.Wait(); err != nil {
		return nil, err
	}
	return res, nil
}

// fetchAll downloads tiles with a bounded worker pool. Failures are logged
// and skipped, the mosaic can survive missing tiles.
func (r *Runner) fetchAll(ctx context.Context, raster engine.Raster, tiles []tiling.Tile) []fetcher.TileResult {
	workers := min(MaxFetchWorkers, len(tiles))
	p := pool.New().WithMaxGoroutines(workers)

	var mu sync.Mutex
	results := make([]fetcher.TileResult, 0, len(tiles))
	for _, tile := range tiles {
		p.Go(func() {
			res, err := r.fetcher.Fetch(ctx, raster, tile)
			if err != nil {
				log.Printf("Tile %d dropped: %v", tile.Index, err)
				return
			}
			mu.Lock()
			results = append(results, *res)
			mu.Unlock()
		})
	}
	p.Wait()
	return results
}

func (r *Runner) writeImage(job *model.JobContext, date string, results []fetcher.TileResult) (string, error) {
	img, err := mosaic.Assemble(job.Boundary, results)
	if err != nil {
		return "", fmt.Errorf("assemble mosaic: %w", err)
	}
	masked := mosaic.ApplyBoundaryMask(img, job.Boundary)
	final := legend.Compose(masked, date)

	path := filepath.Join(job.OutputDir, artifactName(date, job.Boundary))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create image file: %w", err)
	}
	defer f.Close()
	if err := png.Encode(f, final); err != nil {
		return "", fmt.Errorf("encode image: %w", err)
	}
	return path, nil
}

// buildStats computes the area report, serving repeat requests from the
// Redis cache when one is configured.
func (r *Runner) buildStats(ctx context.Context, job *model.JobContext, geom *geojson.Geometry, classification *engine.Classification) (*stats.Report, []byte, error) {
	key := redis.StatsCacheKey(job.Boundary.WKT(), job.StartDate, job.EndDate, job.GroundTruthKm2)
	if payload, ok := redis.CachedStats(key); ok {
		var report stats.Report
		if err := json.Unmarshal(payload, &report); err == nil {
			log.Printf("Statistics for %s served from cache", job.ID)
			return &report, payload, nil
		}
		log.Printf("Discarding unreadable cache entry %s", key)
	}

	hist, err := r.engine.Histogram(ctx, classification.Raster, geom, engine.DefaultHistogramSpec())
	if err != nil {
		return nil, nil, fmt.Errorf("histogram: %w", err)
	}
	report := stats.Calculate(hist, job.GroundTruthKm2, classification.Date)
	payload, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil, nil, fmt.Errorf("marshal stats: %w", err)
	}
	redis.CacheStats(key, payload)
	return report, payload, nil
}

// artifactName mirrors the mosaic naming convention: acquisition date plus
// the signed bounding-box center.
func artifactName(date string, boundary *geometry.Boundary) string {
	center := boundary.Bounds().Center()
	return fmt.Sprintf("%s-%+.2f%+.2f-natural_forest_classification.png", date, center[1], center[0])
}
