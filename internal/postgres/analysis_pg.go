package postgres

import (
	"context"

	"gorm.io/gorm"

	"canopy/internal/model"
)

// SaveAnalysisRun inserts or updates one run row. A no-op without a
// database connection, so the service can run stateless.
func SaveAnalysisRun(ctx context.Context, run *model.AnalysisRunPG) error {
	db := GetDB()
	if db == nil {
		return nil
	}
	return db.WithContext(ctx).Save(run).Error
}

// GetAnalysisRun loads one run by ID.
func GetAnalysisRun(ctx context.Context, id string) (*model.AnalysisRunPG, error) {
	db := GetDB()
	if db == nil {
		return nil, gorm.ErrRecordNotFound
	}
	var run model.AnalysisRunPG
	if err := db.WithContext(ctx).First(&run, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &run, nil
}

// RecentAnalysisRuns lists the newest runs, most recent first.
func RecentAnalysisRuns(ctx context.Context, limit int) ([]*model.AnalysisRunPG, error) {
	db := GetDB()
	if db == nil {
		return nil, nil
	}
	var runs []*model.AnalysisRunPG
	err := db.WithContext(ctx).Order("created_at desc").Limit(limit).Find(&runs).Error
	if err != nil {
		return nil, err
	}
	return runs, nil
}
