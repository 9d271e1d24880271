package models

import (
	"errors"
	"fmt"
	"testing"

	"github.com/pharmadatalab/officine_backend/utils"
	"gorm.io/gorm"
)

func TestRecordError_OnlyMissingRowsBecomeNotFound(t *testing.T) {
	if err := recordError(gorm.ErrRecordNotFound); !errors.Is(err, utils.ErrorRecordNotFound) {
		t.Fatalf("expected ErrorRecordNotFound for a missing row, got %v", err)
	}
	wrapped := fmt.Errorf("fetch agreement: %w", gorm.ErrRecordNotFound)
	if err := recordError(wrapped); !errors.Is(err, utils.ErrorRecordNotFound) {
		t.Fatalf("expected ErrorRecordNotFound for a wrapped missing row, got %v", err)
	}
}

func TestRecordError_PropagatesOtherDatabaseErrors(t *testing.T) {
	dbErr := errors.New("dial tcp 10.0.0.5:3306: i/o timeout")
	got := recordError(dbErr)
	if !errors.Is(got, dbErr) {
		t.Fatalf("expected the original error back, got %v", got)
	}
	if errors.Is(got, utils.ErrorRecordNotFound) {
		t.Fatal("a transient database error must not be reported as a missing record")
	}
	if recordError(nil) != nil {
		t.Fatal("expected nil for nil")
	}
}
