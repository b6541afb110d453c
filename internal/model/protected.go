package model

import (
	"fmt"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
	"gorm.io/gorm"
)

// SnapshotCurrent names the rolling snapshot used when no monthly snapshot
// matches an acquisition date.
const SnapshotCurrent = "current"

// ProtectedAreaPG model for PostgreSQL storage
type ProtectedAreaPG struct {
	ID       string `gorm:"primaryKey;size:64"`
	Snapshot string `gorm:"size:16;not null;index"`
	Name     string `gorm:"size:255"`
	Category string `gorm:"size:50"`
	Geometry string `gorm:"type:text;not null"`

	UpdatedAt time.Time      `gorm:"column:updated_at"`
	CreatedAt time.Time      `gorm:"column:created_at"`
	DeletedAt gorm.DeletedAt `gorm:"column:deleted_at;index"`
}

// TableName overrides the table name
func (ProtectedAreaPG) TableName() string {
	return "protected_areas"
}

// ProtectedArea in-memory model
type ProtectedArea struct {
	ID       string
	Snapshot string
	Name     string
	Category string
	Geometry string // polygon WKT

	UpdatedAt time.Time
	CreatedAt time.Time

	// Cached data for quick access
	Polygon     *orb.Polygon
	BoundingBox *orb.Bound
}

// ProtectedAreaFromPG creates a ProtectedArea from ProtectedAreaPG
func ProtectedAreaFromPG(pg *ProtectedAreaPG) *ProtectedArea {
	return &ProtectedArea{
		ID:        pg.ID,
		Snapshot:  pg.Snapshot,
		Name:      pg.Name,
		Category:  pg.Category,
		Geometry:  pg.Geometry,
		UpdatedAt: pg.UpdatedAt,
		CreatedAt: pg.CreatedAt,
	}
}

// PG converts the area back to its PostgreSQL shape.
func (a *ProtectedArea) PG() *ProtectedAreaPG {
	return &ProtectedAreaPG{
		ID:        a.ID,
		Snapshot:  a.Snapshot,
		Name:      a.Name,
		Category:  a.Category,
		Geometry:  a.Geometry,
		UpdatedAt: a.UpdatedAt,
		CreatedAt: a.CreatedAt,
	}
}

// EnsureGeometry parses the WKT once and caches the polygon with its bounds.
// Multipolygon sources are split into one row per part at import time, so a
// single polygon is the only accepted shape here.
func (a *ProtectedArea) EnsureGeometry() error {
	if a.Polygon != nil && a.BoundingBox != nil {
		return nil
	}
	geom, err := wkt.Unmarshal(a.Geometry)
	if err != nil {
		return fmt.Errorf("area %s: %w", a.ID, err)
	}
	poly, ok := geom.(orb.Polygon)
	if !ok {
		return fmt.Errorf("area %s: unexpected geometry %T", a.ID, geom)
	}
	bound := poly.Bound()
	a.Polygon = &poly
	a.BoundingBox = &bound
	return nil
}
