package routes

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"canopy/internal/config"
	"canopy/internal/engine"
	"canopy/internal/geometry"
	"canopy/internal/job"
	"canopy/internal/model"
	"canopy/internal/tiling"
	"canopy/internal/util"
)

// AnalysisHandlers serves boundary uploads and analysis runs.
type AnalysisHandlers struct {
	runner   *job.Runner
	registry *job.Registry
	cfg      config.Config
}

// SetupAnalysisHandlers registers the analysis endpoints
func SetupAnalysisHandlers(router *gin.RouterGroup, runner *job.Runner, registry *job.Registry, cfg config.Config) {
	h := &AnalysisHandlers{runner: runner, registry: registry, cfg: cfg}

	router.POST("/upload", h.Upload)
	router.POST("/analysis", h.Analyze)
	router.GET("/runs", h.ListRuns)
	router.GET("/runs/:id", h.GetRun)
}

// UploadRequest carries a boundary file to store for later analysis.
type UploadRequest struct {
	Filename string               `json:"filename"`
	Boundary model.BoundaryUpload `json:"boundary"`
}

// AnalyzeRequest names a stored boundary and the date window to classify.
type AnalyzeRequest struct {
	Filename  string  `json:"filename"`
	StartDate string  `json:"start_date"`
	EndDate   string  `json:"end_date"`
	MaxTileKm float64 `json:"max_tile_km"`
}

// Upload validates and stores a boundary file
func (h *AnalysisHandlers) Upload(c *gin.Context) {
	var req UploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.Filename == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "filename is required"})
		return
	}

	// Reject payloads whose geometry does not parse or does not match the
	// declared bounding box.
	b := req.Boundary
	if _, err := geometry.NewBoundary(b.CityGeometry, b.BBoxWest, b.BBoxSouth, b.BBoxEast, b.BBoxNorth); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid boundary: " + err.Error()})
		return
	}

	name := filepath.Base(req.Filename)
	dir := filepath.Join(h.cfg.OutputDir, "boundaries")
	if err := os.MkdirAll(dir, 0755); err != nil {
		h.serverError(c, err)
		return
	}
	payload, err := json.MarshalIndent(req.Boundary, "", "  ")
	if err != nil {
		h.serverError(c, err)
		return
	}
	if err := os.WriteFile(filepath.Join(dir, name), payload, 0644); err != nil {
		h.serverError(c, err)
		return
	}

	log.Printf("Stored boundary %s (%.2f km2)", name, req.Boundary.AreaKm2)
	c.JSON(http.StatusOK, gin.H{
		"status":   "success",
		"filename": name,
		"area_km2": req.Boundary.AreaKm2,
	})
}

// Analyze runs the classification pipeline for a stored boundary
func (h *AnalysisHandlers) Analyze(c *gin.Context) {
	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.Filename == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "filename is required"})
		return
	}
	if req.StartDate == "" || req.EndDate == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "start_date and end_date are required"})
		return
	}

	name := filepath.Base(req.Filename)
	data, err := os.ReadFile(filepath.Join(h.cfg.OutputDir, "boundaries", name))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "boundary file not found"})
		return
	}
	var upload model.BoundaryUpload
	if err := json.Unmarshal(data, &upload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable boundary file"})
		return
	}
	boundary, err := geometry.NewBoundary(upload.CityGeometry,
		upload.BBoxWest, upload.BBoxSouth, upload.BBoxEast, upload.BBoxNorth)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid boundary: " + err.Error()})
		return
	}

	maxTile := req.MaxTileKm
	if maxTile <= 0 {
		maxTile = h.cfg.MaxTileKm
	}
	if maxTile <= 0 {
		maxTile = tiling.DefaultMaxTileKm
	}

	jobCtx := &model.JobContext{
		ID:             util.ShortUUID(),
		Boundary:       boundary,
		GroundTruthKm2: upload.AreaKm2,
		StartDate:      req.StartDate,
		EndDate:        req.EndDate,
		MaxTileKm:      maxTile,
		OutputDir:      h.cfg.OutputDir,
	}

	res, err := h.runner.Run(c.Request.Context(), jobCtx)
	if err != nil {
		switch {
		case errors.Is(err, job.ErrTooCloudy):
			c.JSON(http.StatusBadRequest, gin.H{"error": job.ErrTooCloudy.Error()})
		case errors.Is(err, engine.ErrNoImagery):
			c.JSON(http.StatusBadRequest, gin.H{"error": "no imagery available for the requested window"})
		case errors.Is(err, job.ErrBusy):
			c.JSON(http.StatusTooManyRequests, gin.H{"error": job.ErrBusy.Error()})
		default:
			h.serverError(c, err)
		}
		return
	}

	center := boundary.Centroid()
	c.JSON(http.StatusOK, gin.H{
		"run_id":       res.RunID,
		"status":       "success",
		"image_date":   res.Date,
		"cloud_cover":  res.CloudCover,
		"tile_count":   res.TileCount,
		"failed_tiles": res.FailedTiles,
		"image_file":   res.ImagePath,
		"stats_file":   res.StatsPath,
		"center_lat":   center[1],
		"center_lon":   center[0],
		"statistics":   res.Report,
		"duration_ms":  res.Duration.Milliseconds(),
	})
}

// ListRuns returns the registered analysis runs, newest first
func (h *AnalysisHandlers) ListRuns(c *gin.Context) {
	runs := h.registry.Recent(50)
	out := make([]gin.H, 0, len(runs))
	for _, run := range runs {
		out = append(out, runSummary(run))
	}
	c.JSON(http.StatusOK, gin.H{"runs": out})
}

// GetRun returns one analysis run with its statistics
func (h *AnalysisHandlers) GetRun(c *gin.Context) {
	run, ok := h.registry.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}
	summary := runSummary(run)
	if run.StatsJSON != "" {
		summary["statistics"] = json.RawMessage(run.StatsJSON)
	}
	if run.Error != "" {
		summary["error"] = run.Error
	}
	c.JSON(http.StatusOK, summary)
}

func runSummary(run *model.AnalysisRun) gin.H {
	return gin.H{
		"id":           run.ID,
		"status":       run.Status.String(),
		"start_date":   run.StartDate,
		"end_date":     run.EndDate,
		"image_date":   run.ImageDate,
		"tile_count":   run.TileCount,
		"failed_tiles": run.FailedTiles,
		"image_file":   run.ImageFile,
		"created_at":   run.CreatedAt,
	}
}

// serverError hides internals unless debug mode is on.
func (h *AnalysisHandlers) serverError(c *gin.Context, err error) {
	log.Printf("Request failed: %v", err)
	body := gin.H{"error": "analysis failed"}
	if h.cfg.Debug {
		body["detail"] = err.Error()
	}
	c.JSON(http.StatusInternalServerError, body)
}
