package workflow

import (
	"github.com/pharmadatalab/officine_backend/models"
	"github.com/pharmadatalab/officine_backend/utils"
	"github.com/shopspring/decimal"
)

// TrackRebateProgression locates the active RFA tier for a cumulative
// year-to-date purchase total and measures progress toward the next one.
//
// Precondition: tiers are sorted ascending, contiguous, non-overlapping, with
// an unbounded top tier. models.ValidateTiers enforces this at agreement write
// time; the tracker does not re-validate and misbehaves on malformed lists.
func TrackRebateProgression(laboratoryId int, year int, cumulative decimal.Decimal, tiers []models.RebateTier) models.RebateProgression {
	progression := models.RebateProgression{
		LaboratoryId:        laboratoryId,
		Year:                year,
		CumulativePurchases: cumulative,
	}
	if len(tiers) == 0 {
		return progression
	}

	// active tier: the last tier whose minimum threshold is <= cumulative
	activeIdx := -1
	for i := range tiers {
		if cumulative.GreaterThanOrEqual(tiers[i].ThresholdMin) {
			activeIdx = i
		}
	}

	if activeIdx < 0 {
		// below the lowest tier: no active tier, estimate 0,
		// progress reported toward the lowest tier
		lowest := tiers[0]
		progression.NextTier = &lowest
		progression.AmountToNextTier = lowest.ThresholdMin.Sub(cumulative)
		progression.ProgressPercent = clampPercent(progressToward(cumulative, decimal.Zero, lowest.ThresholdMin))
		return progression
	}

	active := tiers[activeIdx]
	progression.ActiveTier = &active
	progression.ActiveRate = active.Rate
	progression.AnnualRebateEstimate = utils.Percentage(cumulative, active.Rate)

	if activeIdx == len(tiers)-1 {
		// top (unbounded) tier: maxed out
		progression.ProgressPercent = decimal.NewFromInt(100)
		return progression
	}

	next := tiers[activeIdx+1]
	progression.NextTier = &next
	progression.AmountToNextTier = next.ThresholdMin.Sub(cumulative)
	progression.ProgressPercent = clampPercent(progressToward(cumulative, active.ThresholdMin, next.ThresholdMin))
	return progression
}

func progressToward(cumulative, from, to decimal.Decimal) decimal.Decimal {
	span := to.Sub(from)
	if span.IsZero() {
		return decimal.NewFromInt(100)
	}
	return cumulative.Sub(from).Mul(decimalOneHundred).DivRound(span, 4)
}

func clampPercent(p decimal.Decimal) decimal.Decimal {
	if p.IsNegative() {
		return decimal.Zero
	}
	if p.GreaterThan(decimalOneHundred) {
		return decimalOneHundred
	}
	return p
}
