package utils

import (
	"context"

	"github.com/pharmadatalab/officine_backend/config"
)

// check if id exists, using ctx's pharmacy_id in WHERE, return RecordNotFound error
func ValidateResourceId[T any](ctx context.Context, pharmacyId string, id interface{}) error {

	count, err := ResourceCountWhere[T](ctx, pharmacyId, "id = ?", id)
	if err != nil {
		return err
	}
	if count <= 0 {
		return ErrorRecordNotFound
	}

	return nil
}

// count records, using WHERE pharmacy_id = ? AND $condition
// pharmacy_id can be blank for admin tooling
func ResourceCountWhere[T any](ctx context.Context, pharmacyId string, condition string, value ...interface{}) (int64, error) {
	var model T

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Model(&model)
	var count int64
	if pharmacyId != "" {
		dbCtx.Where("pharmacy_id = ?", pharmacyId)
	}
	dbCtx.Where(condition, value...)
	if err := dbCtx.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
