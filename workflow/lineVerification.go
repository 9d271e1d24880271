package workflow

import (
	"fmt"

	"github.com/pharmadatalab/officine_backend/models"
	"github.com/pharmadatalab/officine_backend/utils"
	"github.com/shopspring/decimal"
)

var (
	decimalOneHundred = decimal.NewFromInt(100)

	vatRateReduced       = decimal.NewFromFloat(2.1)
	vatRateIntermediate  = decimal.NewFromFloat(5.5)
	vatRateStandardLower = decimal.NewFromFloat(10)
)

// VerifyLine re-derives a line's discounted price, net amount and gross amount
// from its raw fields and checks VAT/tranche consistency. Pure function: all
// rules are evaluated (no short-circuit) so simultaneous issues all surface.
func VerifyLine(line *models.InvoiceLine) models.LineVerification {
	anomalies := []models.LineAnomaly{}

	qty := decimal.NewFromInt(int64(line.Qty))

	// rule 1: unitPrice * (1 - discount/100) == discountedUnitPrice
	expectedDiscounted := line.UnitPrice.Mul(decimalOneHundred.Sub(line.DiscountPercent)).DivRound(decimalOneHundred, 4)
	if !utils.NearlyEqualAmount(expectedDiscounted, line.DiscountedUnitPrice) {
		anomalies = append(anomalies, arithmeticAnomaly(fmt.Sprintf(
			"discounted unit price %s does not match unit price %s with %s%% discount (expected %s)",
			line.DiscountedUnitPrice.StringFixed(2), line.UnitPrice.StringFixed(2),
			line.DiscountPercent.StringFixed(2), expectedDiscounted.StringFixed(2))))
	}

	// rule 2: discountedUnitPrice * qty == netAmount
	expectedNet := line.DiscountedUnitPrice.Mul(qty)
	if !utils.NearlyEqualAmount(expectedNet, line.NetAmount) {
		anomalies = append(anomalies, arithmeticAnomaly(fmt.Sprintf(
			"net amount %s does not match discounted unit price %s x %d (expected %s)",
			line.NetAmount.StringFixed(2), line.DiscountedUnitPrice.StringFixed(2),
			line.Qty, expectedNet.StringFixed(2))))
	}

	// rule 3: unitPrice * qty == grossAmount
	expectedGross := line.UnitPrice.Mul(qty)
	if !utils.NearlyEqualAmount(expectedGross, line.GrossAmount) {
		anomalies = append(anomalies, arithmeticAnomaly(fmt.Sprintf(
			"gross amount %s does not match unit price %s x %d (expected %s)",
			line.GrossAmount.StringFixed(2), line.UnitPrice.StringFixed(2),
			line.Qty, expectedGross.StringFixed(2))))
	}

	// rule 4: VAT rate vs tranche. 2.1% is reserved for reimbursable drugs
	// (tranches A/B); 5.5% and 10% apply to non-reimbursable/OTC categories.
	anomalies = append(anomalies, vatTrancheAnomalies(line)...)

	return models.LineVerification{
		Line:        line,
		Anomalies:   anomalies,
		IsCompliant: len(anomalies) == 0,
	}
}

func arithmeticAnomaly(message string) models.LineAnomaly {
	return models.LineAnomaly{Type: models.AnomalyTypeArithmeticError, Message: message}
}

func vatAnomaly(message string) models.LineAnomaly {
	return models.LineAnomaly{Type: models.AnomalyTypeVatInconsistency, Message: message}
}

func vatTrancheAnomalies(line *models.InvoiceLine) []models.LineAnomaly {
	var anomalies []models.LineAnomaly
	switch line.Tranche {
	case models.TrancheOTC:
		if line.VatRate.Equal(vatRateReduced) {
			anomalies = append(anomalies, vatAnomaly(
				"VAT rate 2.1% is reserved for reimbursable drugs and is incompatible with tranche OTC"))
		}
	case models.TrancheA, models.TrancheB:
		if line.VatRate.Equal(vatRateIntermediate) || line.VatRate.Equal(vatRateStandardLower) {
			anomalies = append(anomalies, vatAnomaly(fmt.Sprintf(
				"VAT rate %s%% applies to non-reimbursable products and is incompatible with tranche %s",
				line.VatRate.StringFixed(1), line.Tranche)))
		}
	}
	return anomalies
}

// VerifyLines runs the line verifier over every line, preserving line order.
func VerifyLines(lines []models.InvoiceLine) []models.LineVerification {
	results := make([]models.LineVerification, 0, len(lines))
	for i := range lines {
		results = append(results, VerifyLine(&lines[i]))
	}
	return results
}
