package workflow

import (
	"testing"

	"github.com/pharmadatalab/officine_backend/models"
	"github.com/shopspring/decimal"
)

func trancheLine(tranche models.Tranche, gross, discount string) models.InvoiceLine {
	return models.InvoiceLine{
		Tranche:        tranche,
		GrossAmount:    decimal.RequireFromString(gross),
		DiscountAmount: decimal.RequireFromString(discount),
	}
}

func targetAgreement(rateA, rateB, rateOTC string) *models.CommercialAgreement {
	return &models.CommercialAgreement{
		TargetRateA:   decimal.RequireFromString(rateA),
		TargetRateB:   decimal.RequireFromString(rateB),
		TargetRateOTC: decimal.RequireFromString(rateOTC),
	}
}

func TestAnalyzeTranches_RealizedRateAndGap(t *testing.T) {
	lines := []models.InvoiceLine{
		trancheLine(models.TrancheA, "600.00", "30.00"),
		trancheLine(models.TrancheA, "400.00", "20.00"),
	}
	result := AnalyzeTranches(lines, targetAgreement("8", "0", "0"))

	if len(result.Tranches) != 1 {
		t.Fatalf("expected 1 tranche row, got %d", len(result.Tranches))
	}
	row := result.Tranches[0]
	if row.Tranche != models.TrancheA {
		t.Fatalf("expected tranche A, got %s", row.Tranche)
	}
	if !row.RealizedRate.Equal(decimal.RequireFromString("5")) {
		t.Fatalf("expected realized rate 5, got %s", row.RealizedRate)
	}
	if !row.RateGap.Equal(decimal.RequireFromString("-3")) {
		t.Fatalf("expected gap -3, got %s", row.RateGap)
	}
	if !row.ExpectedRebate.Equal(decimal.RequireFromString("80")) {
		t.Fatalf("expected rebate 80 (8%% of 1000), got %s", row.ExpectedRebate)
	}
	if !HasCriticalGap(&row) {
		t.Fatalf("expected gap of -3 points to be critical")
	}
	if !GapImpact(&row).Equal(decimal.RequireFromString("30")) {
		t.Fatalf("expected gap impact 30, got %s", GapImpact(&row))
	}
}

func TestHasCriticalGap_ThresholdIsStrict(t *testing.T) {
	cases := []struct {
		gap      string
		critical bool
	}{
		{"2", false},
		{"-2", false},
		{"2.01", true},
		{"-2.01", true},
		{"1.99", false},
		{"0", false},
	}
	for _, tc := range cases {
		row := models.TrancheAnalysis{RateGap: decimal.RequireFromString(tc.gap)}
		if HasCriticalGap(&row) != tc.critical {
			t.Fatalf("gap=%s: expected critical=%v", tc.gap, tc.critical)
		}
	}
}

func TestAnalyzeTranches_FixedTrancheOrder(t *testing.T) {
	lines := []models.InvoiceLine{
		trancheLine(models.TrancheOTC, "100.00", "5.00"),
		trancheLine(models.TrancheB, "200.00", "10.00"),
		trancheLine(models.TrancheA, "300.00", "15.00"),
	}
	result := AnalyzeTranches(lines, nil)
	want := []models.Tranche{models.TrancheA, models.TrancheB, models.TrancheOTC}
	if len(result.Tranches) != len(want) {
		t.Fatalf("expected %d tranche rows, got %d", len(want), len(result.Tranches))
	}
	for i, tranche := range want {
		if result.Tranches[i].Tranche != tranche {
			t.Fatalf("row %d: expected tranche %s, got %s", i, tranche, result.Tranches[i].Tranche)
		}
	}
}

func TestAnalyzeTranches_NilAgreementHasNoGaps(t *testing.T) {
	lines := []models.InvoiceLine{
		trancheLine(models.TrancheA, "1000.00", "10.00"),
	}
	result := AnalyzeTranches(lines, nil)
	row := result.Tranches[0]
	if !row.TargetRate.IsZero() || !row.RateGap.IsZero() || !row.ExpectedRebate.IsZero() {
		t.Fatalf("expected zero target/gap/rebate without agreement, got %s/%s/%s",
			row.TargetRate, row.RateGap, row.ExpectedRebate)
	}
	if !row.RealizedRate.Equal(decimal.RequireFromString("1")) {
		t.Fatalf("expected realized rate 1, got %s", row.RealizedRate)
	}
}

func TestAnalyzeTranches_UnsetTrancheOnlyInTotal(t *testing.T) {
	lines := []models.InvoiceLine{
		trancheLine(models.TrancheA, "100.00", "5.00"),
		trancheLine("", "50.00", "0.00"),
	}
	result := AnalyzeTranches(lines, nil)
	if len(result.Tranches) != 1 {
		t.Fatalf("expected 1 tranche row, got %d", len(result.Tranches))
	}
	if result.Total.LineCount != 2 {
		t.Fatalf("expected total row to count both lines, got %d", result.Total.LineCount)
	}
	if !result.Total.GrossAmount.Equal(decimal.RequireFromString("150.00")) {
		t.Fatalf("expected total gross 150.00, got %s", result.Total.GrossAmount)
	}
}
