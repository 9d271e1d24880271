package workflow

import (
	"github.com/pharmadatalab/officine_backend/models"
	"github.com/pharmadatalab/officine_backend/utils"
	"github.com/shopspring/decimal"
)

// discountGapThreshold is in percentage points; a gap strictly beyond it is a
// critical discount-gap anomaly (exactly 2.0 does not trigger).
var discountGapThreshold = decimal.NewFromInt(2)

// TrancheAnalysisResult bundles the per-tranche rows with the invoice-level
// total row so callers get both the entitled and as-recorded figures.
type TrancheAnalysisResult struct {
	Tranches []models.TrancheAnalysis
	Total    models.TrancheAnalysis
}

// AnalyzeTranches groups lines by commercial tranche and compares the realized
// discount rate to the agreement's target per tranche. The expected rebate is
// gross x target rate: the entitlement is independent of what the supplier
// actually applied. Tranche rows come back in fixed order A, B, OTC.
// agreement may be nil (missing-agreement degraded mode): target rates and
// gaps are zero and no discount-gap anomaly can arise.
func AnalyzeTranches(lines []models.InvoiceLine, agreement *models.CommercialAgreement) TrancheAnalysisResult {
	type bucket struct {
		gross    decimal.Decimal
		discount decimal.Decimal
		count    int
	}

	buckets := make(map[models.Tranche]*bucket)
	var totalGross, totalDiscount decimal.Decimal
	totalCount := 0
	for i := range lines {
		line := &lines[i]
		totalGross = totalGross.Add(line.GrossAmount)
		totalDiscount = totalDiscount.Add(line.DiscountAmount)
		totalCount++
		if line.Tranche == "" {
			continue
		}
		b, ok := buckets[line.Tranche]
		if !ok {
			b = &bucket{}
			buckets[line.Tranche] = b
		}
		b.gross = b.gross.Add(line.GrossAmount)
		b.discount = b.discount.Add(line.DiscountAmount)
		b.count++
	}

	result := TrancheAnalysisResult{}
	for _, tranche := range models.AllTranches {
		b, ok := buckets[tranche]
		if !ok {
			continue
		}
		analysis := models.TrancheAnalysis{
			Tranche:        tranche,
			GrossAmount:    b.gross,
			DiscountAmount: b.discount,
			RealizedRate:   realizedRate(b.discount, b.gross),
			LineCount:      b.count,
			ShareOfInvoice: realizedRate(b.gross, totalGross),
		}
		if agreement != nil {
			analysis.TargetRate = agreement.TargetRateFor(tranche)
			analysis.RateGap = analysis.RealizedRate.Sub(analysis.TargetRate)
			analysis.ExpectedRebate = utils.Percentage(b.gross, analysis.TargetRate)
		}
		result.Tranches = append(result.Tranches, analysis)
	}

	result.Total = models.TrancheAnalysis{
		GrossAmount:    totalGross,
		DiscountAmount: totalDiscount,
		RealizedRate:   realizedRate(totalDiscount, totalGross),
		LineCount:      totalCount,
		ShareOfInvoice: decimal.NewFromInt(100),
	}
	return result
}

// realizedRate returns part / whole * 100, or 0 when whole is 0.
func realizedRate(part, whole decimal.Decimal) decimal.Decimal {
	if whole.IsZero() {
		return decimal.Zero
	}
	return part.Mul(decimalOneHundred).DivRound(whole, 4)
}

// HasCriticalGap reports whether the tranche's rate gap exceeds the threshold
// in absolute value (strictly greater than 2 points).
func HasCriticalGap(analysis *models.TrancheAnalysis) bool {
	return analysis.RateGap.Abs().GreaterThan(discountGapThreshold)
}

// GapImpact is |gap| x gross / 100: the money left on the table (or
// over-credited) by the discount deviation.
func GapImpact(analysis *models.TrancheAnalysis) decimal.Decimal {
	return utils.Percentage(analysis.GrossAmount, analysis.RateGap.Abs())
}
