package workflow

import (
	"testing"

	"github.com/pharmadatalab/officine_backend/models"
	"github.com/shopspring/decimal"
)

func compliantLine() models.InvoiceLine {
	return models.InvoiceLine{
		ID:                  1,
		ProductCode:         "3400930000001",
		Qty:                 10,
		UnitPrice:           decimal.RequireFromString("10.00"),
		DiscountPercent:     decimal.RequireFromString("5"),
		DiscountedUnitPrice: decimal.RequireFromString("9.50"),
		NetAmount:           decimal.RequireFromString("95.00"),
		GrossAmount:         decimal.RequireFromString("100.00"),
		DiscountAmount:      decimal.RequireFromString("5.00"),
		VatRate:             decimal.RequireFromString("2.1"),
		Tranche:             models.TrancheA,
	}
}

func TestVerifyLine_CompliantLineHasNoAnomalies(t *testing.T) {
	line := compliantLine()
	result := VerifyLine(&line)
	if !result.IsCompliant {
		t.Fatalf("expected compliant line, got anomalies: %v", result.Anomalies)
	}
	if len(result.Anomalies) != 0 {
		t.Fatalf("expected empty anomaly list, got %d", len(result.Anomalies))
	}
}

func TestVerifyLine_NetAmountToleranceBoundary(t *testing.T) {
	cases := []struct {
		net       string
		compliant bool
	}{
		{"95.00", true},
		{"95.019", true},
		{"95.02", true},
		{"94.98", true},
		{"95.03", false},
		{"94.97", false},
	}
	for _, tc := range cases {
		line := compliantLine()
		line.NetAmount = decimal.RequireFromString(tc.net)
		result := VerifyLine(&line)
		if result.IsCompliant != tc.compliant {
			t.Fatalf("net=%s: expected compliant=%v, got anomalies %v", tc.net, tc.compliant, result.Anomalies)
		}
	}
}

func TestVerifyLine_ReportsAllViolationsAtOnce(t *testing.T) {
	line := compliantLine()
	line.DiscountedUnitPrice = decimal.RequireFromString("9.00")
	line.NetAmount = decimal.RequireFromString("80.00")
	line.GrossAmount = decimal.RequireFromString("110.00")
	result := VerifyLine(&line)
	if len(result.Anomalies) != 3 {
		t.Fatalf("expected 3 anomalies (discounted price, net, gross), got %d: %v",
			len(result.Anomalies), result.Anomalies)
	}
	for _, finding := range result.Anomalies {
		if finding.Type != models.AnomalyTypeArithmeticError {
			t.Fatalf("expected %s, got %s (%s)", models.AnomalyTypeArithmeticError, finding.Type, finding.Message)
		}
	}
}

func TestVerifyLine_TypesVatFindingsByEnum(t *testing.T) {
	line := compliantLine()
	line.Tranche = models.TrancheOTC
	result := VerifyLine(&line)
	if len(result.Anomalies) != 1 {
		t.Fatalf("expected 1 anomaly, got %d: %v", len(result.Anomalies), result.Anomalies)
	}
	if result.Anomalies[0].Type != models.AnomalyTypeVatInconsistency {
		t.Fatalf("expected %s, got %s", models.AnomalyTypeVatInconsistency, result.Anomalies[0].Type)
	}
}

func TestVerifyLine_VatTrancheConsistency(t *testing.T) {
	cases := []struct {
		vatRate   string
		tranche   models.Tranche
		compliant bool
	}{
		{"2.1", models.TrancheA, true},
		{"2.1", models.TrancheB, true},
		{"2.1", models.TrancheOTC, false},
		{"5.5", models.TrancheOTC, true},
		{"5.5", models.TrancheA, false},
		{"10", models.TrancheB, false},
		{"10", models.TrancheOTC, true},
		{"20", models.TrancheA, true},
		{"20", models.TrancheOTC, true},
	}
	for _, tc := range cases {
		line := compliantLine()
		line.VatRate = decimal.RequireFromString(tc.vatRate)
		line.Tranche = tc.tranche
		result := VerifyLine(&line)
		if result.IsCompliant != tc.compliant {
			t.Fatalf("vat=%s tranche=%s: expected compliant=%v, got anomalies %v",
				tc.vatRate, tc.tranche, tc.compliant, result.Anomalies)
		}
	}
}

func TestVerifyLines_PreservesLineOrder(t *testing.T) {
	first := compliantLine()
	second := compliantLine()
	second.ID = 2
	second.NetAmount = decimal.RequireFromString("90.00")
	results := VerifyLines([]models.InvoiceLine{first, second})
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Line.ID != 1 || results[1].Line.ID != 2 {
		t.Fatalf("line order not preserved: got %d, %d", results[0].Line.ID, results[1].Line.ID)
	}
	if !results[0].IsCompliant || results[1].IsCompliant {
		t.Fatalf("expected first compliant and second not, got %v and %v",
			results[0].IsCompliant, results[1].IsCompliant)
	}
}
