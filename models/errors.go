package models

import (
	"errors"

	"github.com/pharmadatalab/officine_backend/utils"
	"gorm.io/gorm"
)

// recordError maps a missing row to the package sentinel and leaves every
// other database error untouched. Callers branch on ErrorRecordNotFound for
// degraded modes; a transient DB failure must never look like a missing row.
func recordError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return utils.ErrorRecordNotFound
	}
	return err
}
