package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/paulmach/orb/geojson"

	"canopy/internal/model"
)

// DefaultTimeout covers classification and reduction calls, which the
// engine may take minutes to answer for large regions.
const DefaultTimeout = 120 * time.Second

// Client talks to the remote classification engine over HTTP. When a
// ProtectedAreaSource is attached, the protected-area mask geometries are
// resolved locally and shipped with the classify request; otherwise the
// engine falls back to its own registry.
type Client struct {
	baseURL    string
	httpClient *http.Client
	protected  ProtectedAreaSource
}

// NewClient creates an engine client. A zero timeout means DefaultTimeout.
func NewClient(baseURL string, timeout time.Duration, protected ProtectedAreaSource) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		protected: protected,
	}
}

type sceneResponse struct {
	Status     string  `json:"status"`
	ImageDate  string  `json:"image_date"`
	CloudCover float64 `json:"cloud_cover"`
}

type classifyRequest struct {
	Geometry       *geojson.Geometry   `json:"geometry"`
	StartDate      string              `json:"start_date"`
	EndDate        string              `json:"end_date"`
	ImageDate      string              `json:"image_date"`
	ProtectedAreas []*geojson.Geometry `json:"protected_areas,omitempty"`
}

type classifyResponse struct {
	RasterID string `json:"raster_id"`
}

// Classify resolves the least cloudy scene in the window, then asks the
// engine to build the enhanced classification raster for it. The scene
// lookup comes first so the protected-area snapshot can be read for the
// actual acquisition date.
func (c *Client) Classify(ctx context.Context, boundary *geojson.Geometry, window DateWindow) (*Classification, error) {
	var scene sceneResponse
	err := c.postJSON(ctx, "/v1/scenes", map[string]any{
		"geometry":   boundary,
		"start_date": window.Start,
		"end_date":   window.End,
	}, &scene)
	if err != nil {
		return nil, fmt.Errorf("scene lookup failed: %w", err)
	}
	if scene.Status == "no_imagery" || scene.ImageDate == "" {
		return nil, ErrNoImagery
	}

	req := classifyRequest{
		Geometry:  boundary,
		StartDate: window.Start,
		EndDate:   window.End,
		ImageDate: scene.ImageDate,
	}
	if c.protected != nil {
		areas, err := c.protected.AreasIntersecting(boundary.Geometry().Bound(), scene.ImageDate)
		if err != nil {
			return nil, fmt.Errorf("protected area lookup failed: %w", err)
		}
		for _, area := range areas {
			req.ProtectedAreas = append(req.ProtectedAreas, geojson.NewGeometry(area))
		}
	}

	var resp classifyResponse
	if err := c.postJSON(ctx, "/v1/classify", req, &resp); err != nil {
		return nil, fmt.Errorf("classification failed: %w", err)
	}
	if resp.RasterID == "" {
		return nil, fmt.Errorf("engine returned an empty raster handle")
	}

	return &Classification{
		Raster:     Raster(resp.RasterID),
		Date:       scene.ImageDate,
		CloudCover: scene.CloudCover,
	}, nil
}

// RenderURL asks the engine for a short-lived download URL of the raster
// rendered to RGB over the region, mapping each class to its fixed color.
func (c *Client) RenderURL(ctx context.Context, raster Raster, region *geojson.Geometry, spec RenderSpec) (string, error) {
	palette := make(map[string][3]uint8, model.NumClasses)
	for _, class := range model.Classes() {
		rgb := class.Color()
		palette[fmt.Sprintf("%d", int(class))] = [3]uint8{rgb.R, rgb.G, rgb.B}
	}

	var resp struct {
		URL string `json:"url"`
	}
	err := c.postJSON(ctx, "/v1/render", map[string]any{
		"raster_id":  string(raster),
		"region":     region,
		"scale":      spec.Scale,
		"format":     spec.Format,
		"max_pixels": spec.MaxPixels,
		"palette":    palette,
	}, &resp)
	if err != nil {
		return "", fmt.Errorf("render request failed: %w", err)
	}
	if resp.URL == "" {
		return "", fmt.Errorf("engine returned an empty render url")
	}
	return resp.URL, nil
}

// Histogram requests per-class pixel counts over the region.
func (c *Client) Histogram(ctx context.Context, raster Raster, region *geojson.Geometry, spec HistogramSpec) (map[model.Class]float64, error) {
	var resp struct {
		Histogram map[string]float64 `json:"histogram"`
	}
	err := c.postJSON(ctx, "/v1/histogram", map[string]any{
		"raster_id":   string(raster),
		"region":      region,
		"scale":       spec.Scale,
		"max_pixels":  spec.MaxPixels,
		"best_effort": spec.BestEffort,
		"tile_scale":  spec.TileScale,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("histogram request failed: %w", err)
	}

	hist := make(map[model.Class]float64, len(resp.Histogram))
	for key, count := range resp.Histogram {
		var idx int
		if _, err := fmt.Sscanf(key, "%d", &idx); err != nil {
			continue
		}
		if model.Class(idx).Valid() {
			hist[model.Class(idx)] += count
		}
	}
	return hist, nil
}

func (c *Client) postJSON(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("engine request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("engine responded %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode engine response: %w", err)
	}
	return nil
}
