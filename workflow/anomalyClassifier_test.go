package workflow

import (
	"testing"

	"github.com/pharmadatalab/officine_backend/models"
)

// Line findings carry their anomaly type; the classifier must dispatch on
// that type regardless of how the message is worded.
func TestClassifyAnomalies_LineFindingsDispatchOnType(t *testing.T) {
	line := compliantLine()
	verification := models.LineVerification{
		Line: &line,
		Anomalies: []models.LineAnomaly{
			{Type: models.AnomalyTypeVatInconsistency, Message: "rate 2.1% is incompatible with tranche OTC"},
			{Type: models.AnomalyTypeArithmeticError, Message: "net amount off by 0.50"},
		},
	}

	anomalies := ClassifyAnomalies(ClassifierInput{
		LineVerifications: []models.LineVerification{verification},
	})
	if len(anomalies) != 2 {
		t.Fatalf("expected 2 anomalies, got %d: %+v", len(anomalies), anomalies)
	}
	if anomalies[0].Type != models.AnomalyTypeVatInconsistency {
		t.Fatalf("expected %s first, got %s", models.AnomalyTypeVatInconsistency, anomalies[0].Type)
	}
	if anomalies[1].Type != models.AnomalyTypeArithmeticError {
		t.Fatalf("expected %s second, got %s", models.AnomalyTypeArithmeticError, anomalies[1].Type)
	}
	for _, anomaly := range anomalies {
		if anomaly.Severity != models.AnomalySeverityCritical {
			t.Fatalf("expected critical severity, got %s", anomaly.Severity)
		}
		if anomaly.LineId == nil || *anomaly.LineId != line.ID {
			t.Fatalf("expected line id %d, got %v", line.ID, anomaly.LineId)
		}
	}
}
