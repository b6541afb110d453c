// Package fetcher renders classified tiles through the engine and
// retrieves the image bytes, one tile per call. Transient failures are
// retried a fixed number of times; a tile that exhausts its attempts is
// reported as an error the caller tolerates rather than propagates.
package fetcher

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log"
	"net/http"
	"time"

	"github.com/paulmach/orb/geojson"

	"canopy/internal/bridge"
	"canopy/internal/engine"
	"canopy/internal/metrics"
	"canopy/internal/tiling"
)

const (
	// MaxAttempts bounds render and download tries per tile.
	MaxAttempts = 3
	// DefaultRetryDelay is the fixed pause between attempts.
	DefaultRetryDelay = 2 * time.Second
	// DownloadTimeout caps a single image retrieval.
	DownloadTimeout = 120 * time.Second
)

// TileResult pairs a tile with its decoded render. A failed tile has no
// TileResult, downstream stitching works from whatever indices are present.
type TileResult struct {
	Tile  tiling.Tile
	Image image.Image
}

// Fetcher renders and retrieves classified tile images. One Fetcher is
// shared by all workers of a job; it keeps no per-tile state.
type Fetcher struct {
	engine     engine.Engine
	bridge     *bridge.Bridge
	httpClient *http.Client
	renderSpec engine.RenderSpec

	// RetryDelay is the pause between failed attempts. Tests shrink it.
	RetryDelay time.Duration
}

func New(eng engine.Engine, br *bridge.Bridge) *Fetcher {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
	}
	return &Fetcher{
		engine:     eng,
		bridge:     br,
		httpClient: &http.Client{Timeout: DownloadTimeout, Transport: transport},
		renderSpec: engine.DefaultRenderSpec(),
		RetryDelay: DefaultRetryDelay,
	}
}

// Fetch renders the tile's region from the raster and downloads the image.
// The render URL is requested fresh on every attempt since engine URLs are
// short-lived. Exhausting all attempts returns the last error.
func (f *Fetcher) Fetch(ctx context.Context, raster engine.Raster, tile tiling.Tile) (*TileResult, error) {
	region, err := f.bridge.ConvertBound(tile.Rect)
	if err != nil {
		return nil, fmt.Errorf("tile %d geometry: %w", tile.Index, err)
	}

	start := time.Now()
	defer func() {
		metrics.TileFetchDurationSeconds.Observe(time.Since(start).Seconds())
	}()

	var lastErr error
	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		if attempt > 1 {
			metrics.TileFetchRetriesTotal.Inc()
			select {
			case <-time.After(f.RetryDelay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		img, err := f.fetchOnce(ctx, raster, region)
		if err != nil {
			lastErr = err
			log.Printf("Tile %d attempt %d/%d failed: %v", tile.Index, attempt, MaxAttempts, err)
			continue
		}

		metrics.TileFetchesTotal.WithLabelValues("success").Inc()
		return &TileResult{Tile: tile, Image: img}, nil
	}

	metrics.TileFetchesTotal.WithLabelValues("failure").Inc()
	return nil, fmt.Errorf("tile %d failed after %d attempts: %w", tile.Index, MaxAttempts, lastErr)
}

func (f *Fetcher) fetchOnce(ctx context.Context, raster engine.Raster, region *geojson.Geometry) (image.Image, error) {
	url, err := f.engine.RenderURL(ctx, raster, region, f.renderSpec)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download tile: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tile download failed with status: %d", resp.StatusCode)
	}

	img, _, err := image.Decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode tile image: %w", err)
	}
	return img, nil
}
