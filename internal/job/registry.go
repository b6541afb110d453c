package job

import (
	"context"
	"encoding/json"
	"log"
	"sort"
	"time"

	"canopy/internal/model"
	pg "canopy/internal/postgres"
	"canopy/internal/service/storage"
)

// Registry tracks analysis runs in memory and mirrors every transition to
// PostgreSQL when a connection exists.
type Registry struct {
	runs storage.Storage[string, *model.AnalysisRun]
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{runs: storage.NewMemoryStorage[string, *model.AnalysisRun]()}
}

// Create registers a new running analysis.
func (r *Registry) Create(job *model.JobContext) *model.AnalysisRun {
	now := time.Now()
	run := &model.AnalysisRun{
		ID:             job.ID,
		Status:         model.RunStatusRunning,
		StartDate:      job.StartDate,
		EndDate:        job.EndDate,
		BoundaryWKT:    job.Boundary.WKT(),
		GroundTruthKm2: job.GroundTruthKm2,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	r.runs.Set(run.ID, run)
	r.persist(run)
	return run
}

// Get returns a run by ID.
func (r *Registry) Get(id string) (*model.AnalysisRun, bool) {
	return r.runs.Get(id)
}

// Recent returns registered runs, newest first.
func (r *Registry) Recent(limit int) []*model.AnalysisRun {
	runs := r.runs.GetAllValues()
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].CreatedAt.After(runs[j].CreatedAt)
	})
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs
}

// SetImageDate records the acquisition date once classification resolves it.
func (r *Registry) SetImageDate(run *model.AnalysisRun, date string) {
	run.ImageDate = date
	run.UpdatedAt = time.Now()
	r.runs.Set(run.ID, run)
	r.persist(run)
}

// Complete marks a run succeeded and attaches its artifacts.
func (r *Registry) Complete(run *model.AnalysisRun, res *Result) {
	run.Status = model.RunStatusSucceeded
	run.ImageDate = res.Date
	run.TileCount = res.TileCount
	run.FailedTiles = res.FailedTiles
	run.ImageFile = res.ImagePath
	if res.Report != nil {
		if payload, err := json.Marshal(res.Report); err == nil {
			run.StatsJSON = string(payload)
		}
	}
	run.UpdatedAt = time.Now()
	r.runs.Set(run.ID, run)
	r.persist(run)
}

// Fail marks a run failed with its error message.
func (r *Registry) Fail(run *model.AnalysisRun, err error) {
	run.Status = model.RunStatusFailed
	run.Error = err.Error()
	run.UpdatedAt = time.Now()
	r.runs.Set(run.ID, run)
	r.persist(run)
}

func (r *Registry) persist(run *model.AnalysisRun) {
	if pg.GetDB() == nil {
		return
	}
	if err := pg.SaveAnalysisRun(context.Background(), run.PG()); err != nil {
		log.Printf("Failed to persist run %s: %v", run.ID, err)
	}
}
