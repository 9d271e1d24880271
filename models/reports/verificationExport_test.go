package reports

import (
	"testing"

	"github.com/pharmadatalab/officine_backend/models"
)

func TestAnomalyTypeList_DistinctFirstSeenOrder(t *testing.T) {
	anomalies := []models.Anomaly{
		{Type: models.AnomalyTypeDiscountGap},
		{Type: models.AnomalyTypeVatInconsistency},
		{Type: models.AnomalyTypeDiscountGap},
		{Type: models.AnomalyTypeRebateTierProgression},
	}
	got := anomalyTypeList(anomalies)
	want := []string{"DISCOUNT_GAP", "VAT_INCONSISTENCY", "REBATE_TIER_PROGRESSION"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}
