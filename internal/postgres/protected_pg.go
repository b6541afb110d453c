package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm/clause"

	"canopy/internal/model"
)

// ErrNotInitialized is returned by writes that need a database connection.
var ErrNotInitialized = errors.New("postgres not initialized")

// UpsertProtectedAreas bulk-writes imported areas. Existing rows with the
// same ID are replaced, so re-importing a snapshot is idempotent.
func UpsertProtectedAreas(ctx context.Context, rows []*model.ProtectedAreaPG) error {
	db := GetDB()
	if db == nil {
		return ErrNotInitialized
	}
	if len(rows) == 0 {
		return nil
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		CreateInBatches(rows, 500).Error
}

// DeleteSnapshot removes every row of a snapshot ahead of a re-import.
func DeleteSnapshot(ctx context.Context, snapshot string) error {
	db := GetDB()
	if db == nil {
		return ErrNotInitialized
	}
	return db.WithContext(ctx).
		Where("snapshot = ?", snapshot).
		Delete(&model.ProtectedAreaPG{}).Error
}

// CountSnapshot returns the number of rows stored for a snapshot.
func CountSnapshot(ctx context.Context, snapshot string) (int64, error) {
	db := GetDB()
	if db == nil {
		return 0, ErrNotInitialized
	}
	var n int64
	err := db.WithContext(ctx).
		Model(&model.ProtectedAreaPG{}).
		Where("snapshot = ?", snapshot).
		Count(&n).Error
	return n, err
}
