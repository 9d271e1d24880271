package models_test

import (
	"testing"

	"github.com/pharmadatalab/officine_backend/models"
)

func TestParseAnomalySeverity(t *testing.T) {
	severity, err := models.ParseAnomalySeverity("Critical")
	if err != nil || severity != models.AnomalySeverityCritical {
		t.Fatalf("expected Critical, got %s (err %v)", severity, err)
	}
	if _, err := models.ParseAnomalySeverity("critical"); err == nil {
		t.Fatal("expected an error for a lowercase severity")
	}
	if _, err := models.ParseAnomalySeverity("Blocking"); err == nil {
		t.Fatal("expected an error for an unknown severity")
	}
}

func TestParseAnomalyType(t *testing.T) {
	anomalyType, err := models.ParseAnomalyType("VAT_INCONSISTENCY")
	if err != nil || anomalyType != models.AnomalyTypeVatInconsistency {
		t.Fatalf("expected VAT_INCONSISTENCY, got %s (err %v)", anomalyType, err)
	}
	if _, err := models.ParseAnomalyType("PRICE_DRIFT"); err == nil {
		t.Fatal("expected an error for an unknown type")
	}
}

func TestParseVerificationStatus(t *testing.T) {
	status, err := models.ParseVerificationStatus("Rebate Gap")
	if err != nil || status != models.VerificationStatusRebateGap {
		t.Fatalf("expected Rebate Gap, got %s (err %v)", status, err)
	}
	if _, err := models.ParseVerificationStatus("Pending"); err == nil {
		t.Fatal("expected an error for an unknown status")
	}
}
