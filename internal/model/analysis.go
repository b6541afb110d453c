package model

import (
	"time"

	"gorm.io/gorm"

	"canopy/internal/geometry"
)

type RunStatus int

const (
	RunStatusPending RunStatus = iota
	RunStatusRunning
	RunStatusSucceeded
	RunStatusFailed
)

func (s RunStatus) String() string {
	switch s {
	case RunStatusPending:
		return "pending"
	case RunStatusRunning:
		return "running"
	case RunStatusSucceeded:
		return "succeeded"
	case RunStatusFailed:
		return "failed"
	}
	return "unknown"
}

// BoundaryUpload is the user-supplied region file: a WKT polygon, the
// bounding box to analyze, and the authoritative area in km2. The area is
// trusted as-is and never recomputed from the geometry.
type BoundaryUpload struct {
	CityGeometry string  `json:"city_geometry"`
	BBoxWest     float64 `json:"bbox_west"`
	BBoxSouth    float64 `json:"bbox_south"`
	BBoxEast     float64 `json:"bbox_east"`
	BBoxNorth    float64 `json:"bbox_north"`
	AreaKm2      float64 `json:"area"`
}

// JobContext carries everything one analysis run reads: the boundary, the
// ground-truth area and the date window. Built once per request and passed
// along explicitly, components never share job state through globals.
type JobContext struct {
	ID             string
	Boundary       *geometry.Boundary
	GroundTruthKm2 float64
	StartDate      string // YYYY-MM-DD
	EndDate        string
	MaxTileKm      float64
	OutputDir      string
}

// AnalysisRunPG model for PostgreSQL storage
type AnalysisRunPG struct {
	ID             string    `gorm:"primaryKey"`
	Status         RunStatus `gorm:"not null"`
	StartDate      string    `gorm:"size:10"`
	EndDate        string    `gorm:"size:10"`
	ImageDate      string    `gorm:"size:10"`
	BoundaryWKT    string    `gorm:"type:text"`
	GroundTruthKm2 float64
	TileCount      int
	FailedTiles    int
	ImageFile      string `gorm:"size:512"`
	StatsJSON      string `gorm:"type:text"`
	Error          string `gorm:"type:text"`

	UpdatedAt time.Time      `gorm:"column:updated_at"`
	CreatedAt time.Time      `gorm:"column:created_at"`
	DeletedAt gorm.DeletedAt `gorm:"column:deleted_at;index"`
}

// TableName overrides the table name
func (AnalysisRunPG) TableName() string {
	return "analysis_runs"
}

// AnalysisRun in-memory model
type AnalysisRun struct {
	ID             string
	Status         RunStatus
	StartDate      string
	EndDate        string
	ImageDate      string
	BoundaryWKT    string
	GroundTruthKm2 float64
	TileCount      int
	FailedTiles    int
	ImageFile      string
	StatsJSON      string
	Error          string

	UpdatedAt time.Time
	CreatedAt time.Time
}

// AnalysisRunFromPG creates an AnalysisRun from AnalysisRunPG
func AnalysisRunFromPG(pg *AnalysisRunPG) *AnalysisRun {
	return &AnalysisRun{
		ID:             pg.ID,
		Status:         pg.Status,
		StartDate:      pg.StartDate,
		EndDate:        pg.EndDate,
		ImageDate:      pg.ImageDate,
		BoundaryWKT:    pg.BoundaryWKT,
		GroundTruthKm2: pg.GroundTruthKm2,
		TileCount:      pg.TileCount,
		FailedTiles:    pg.FailedTiles,
		ImageFile:      pg.ImageFile,
		StatsJSON:      pg.StatsJSON,
		Error:          pg.Error,
		UpdatedAt:      pg.UpdatedAt,
		CreatedAt:      pg.CreatedAt,
	}
}

// PG converts the in-memory run to its PostgreSQL form.
func (r *AnalysisRun) PG() *AnalysisRunPG {
	return &AnalysisRunPG{
		ID:             r.ID,
		Status:         r.Status,
		StartDate:      r.StartDate,
		EndDate:        r.EndDate,
		ImageDate:      r.ImageDate,
		BoundaryWKT:    r.BoundaryWKT,
		GroundTruthKm2: r.GroundTruthKm2,
		TileCount:      r.TileCount,
		FailedTiles:    r.FailedTiles,
		ImageFile:      r.ImageFile,
		StatsJSON:      r.StatsJSON,
		Error:          r.Error,
		UpdatedAt:      r.UpdatedAt,
		CreatedAt:      r.CreatedAt,
	}
}
