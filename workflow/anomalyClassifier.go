package workflow

import (
	"fmt"

	"github.com/pharmadatalab/officine_backend/models"
	"github.com/pharmadatalab/officine_backend/utils"
	"github.com/shopspring/decimal"
)

// ClassifierInput carries everything the classifier synthesizes:
// the outputs of the line verifier, tranche analyzer and tier tracker,
// plus the invoice header (declared benefits) and the agreement.
// Agreement and Progression are nil in missing-agreement degraded mode.
type ClassifierInput struct {
	Invoice           *models.Invoice
	Agreement         *models.CommercialAgreement
	LineVerifications []models.LineVerification
	TrancheResult     TrancheAnalysisResult
	Progression       *models.RebateProgression
}

// ClassifyAnomalies produces the flat, deduplicated anomaly list in fixed
// generation order: line anomalies in line order, tranche anomalies A->B->OTC,
// benefit opportunities, then tier-progression notices last. Identical inputs
// yield an identical list (the orchestrator's idempotence depends on it).
func ClassifyAnomalies(input ClassifierInput) []models.Anomaly {
	anomalies := []models.Anomaly{}

	anomalies = append(anomalies, lineAnomalies(input.LineVerifications)...)
	anomalies = append(anomalies, trancheAnomalies(input.TrancheResult)...)
	anomalies = append(anomalies, benefitAnomalies(input.Invoice, input.Agreement)...)
	anomalies = append(anomalies, rebateAnomalies(input.Invoice, input.Progression)...)

	return models.DedupAnomalies(anomalies)
}

func lineAnomalies(verifications []models.LineVerification) []models.Anomaly {
	var anomalies []models.Anomaly
	for i := range verifications {
		verification := &verifications[i]
		for _, finding := range verification.Anomalies {
			action := "re-check the parsed line against the source document and request a corrected invoice"
			if finding.Type == models.AnomalyTypeVatInconsistency {
				action = "confirm the product's tranche and VAT category with the laboratory"
			}
			lineId := verification.Line.ID
			anomalies = append(anomalies, models.Anomaly{
				LineId:          &lineId,
				Type:            finding.Type,
				Severity:        models.AnomalySeverityCritical,
				Description:     fmt.Sprintf("line %s: %s", verification.Line.ProductCode, finding.Message),
				Impact:          decimal.Zero,
				SuggestedAction: &action,
			})
		}
	}
	return anomalies
}

func trancheAnomalies(result TrancheAnalysisResult) []models.Anomaly {
	var anomalies []models.Anomaly
	for i := range result.Tranches {
		analysis := &result.Tranches[i]
		if !HasCriticalGap(analysis) {
			continue
		}
		action := "claim the contractual discount gap from the laboratory"
		anomalies = append(anomalies, models.Anomaly{
			Type:     models.AnomalyTypeDiscountGap,
			Severity: models.AnomalySeverityCritical,
			Description: fmt.Sprintf(
				"tranche %s: realized discount %s%% vs contractual target %s%% (gap %s points)",
				analysis.Tranche, analysis.RealizedRate.StringFixed(2),
				analysis.TargetRate.StringFixed(2), analysis.RateGap.StringFixed(2)),
			Impact:          GapImpact(analysis),
			SuggestedAction: &action,
		})
	}
	return anomalies
}

// benefitAnomalies reports missing-but-available agreement benefits:
// early-payment discount (escompte), free shipping (franco de port) and
// free goods. Opportunity severity, impact = value of the missed benefit.
func benefitAnomalies(invoice *models.Invoice, agreement *models.CommercialAgreement) []models.Anomaly {
	if invoice == nil || agreement == nil {
		return nil
	}
	var anomalies []models.Anomaly

	if utils.DereferencePtr(agreement.EarlyPaymentApplies) &&
		agreement.EarlyPaymentRate.IsPositive() &&
		invoice.EarlyPaymentDiscountAmount.IsZero() {
		impact := utils.Percentage(invoice.TotalNetAmount, agreement.EarlyPaymentRate)
		action := fmt.Sprintf("pay within %d days to obtain the %s%% early-payment discount",
			agreement.EarlyPaymentDays, agreement.EarlyPaymentRate.StringFixed(2))
		anomalies = append(anomalies, models.Anomaly{
			Type:     models.AnomalyTypeMissingEarlyPayment,
			Severity: models.AnomalySeverityOpportunity,
			Description: fmt.Sprintf(
				"early-payment discount of %s%% available within %d days but not applied",
				agreement.EarlyPaymentRate.StringFixed(2), agreement.EarlyPaymentDays),
			Impact:          impact,
			SuggestedAction: &action,
		})
	}

	if agreement.FreeShippingThreshold.IsPositive() &&
		invoice.ShippingFeeAmount.IsPositive() &&
		invoice.TotalNetAmount.GreaterThanOrEqual(agreement.FreeShippingThreshold) {
		action := "request a shipping-fee credit: the franco de port threshold is reached"
		anomalies = append(anomalies, models.Anomaly{
			Type:     models.AnomalyTypeFreeShippingGap,
			Severity: models.AnomalySeverityOpportunity,
			Description: fmt.Sprintf(
				"shipping fee %s charged although net total %s reaches the free-shipping threshold %s",
				invoice.ShippingFeeAmount.StringFixed(2), invoice.TotalNetAmount.StringFixed(2),
				agreement.FreeShippingThreshold.StringFixed(2)),
			Impact:          invoice.ShippingFeeAmount,
			SuggestedAction: &action,
		})
	}

	if utils.DereferencePtr(agreement.FreeGoodsApplies) &&
		agreement.FreeGoodsRatio.IsPositive() &&
		invoice.FreeUnitsCount == 0 {
		totalQty := 0
		for i := range invoice.Details {
			totalQty += invoice.Details[i].Qty
		}
		expectedFree := decimal.NewFromInt(int64(totalQty)).Mul(agreement.FreeGoodsRatio).DivRound(decimalOneHundred, 0)
		if expectedFree.IsPositive() && totalQty > 0 {
			avgUnitNet := invoice.TotalNetAmount.DivRound(decimal.NewFromInt(int64(totalQty)), 4)
			action := "claim the contractual free units (unites gratuites) from the laboratory"
			anomalies = append(anomalies, models.Anomaly{
				Type:     models.AnomalyTypeMissingFreeGoods,
				Severity: models.AnomalySeverityOpportunity,
				Description: fmt.Sprintf(
					"about %s free unit(s) expected at the %s%% free-goods ratio but none recorded",
					expectedFree.String(), agreement.FreeGoodsRatio.StringFixed(2)),
				Impact:          expectedFree.Mul(avgUnitNet),
				SuggestedAction: &action,
			})
		}
	}

	return anomalies
}

// rebateAnomalies emits the RFA received-vs-entitled mismatch (when the
// received figure is known) and the informational tier-proximity notice.
func rebateAnomalies(invoice *models.Invoice, progression *models.RebateProgression) []models.Anomaly {
	if progression == nil {
		return nil
	}
	var anomalies []models.Anomaly

	if invoice != nil && invoice.RfaReceivedAmount != nil {
		shortfall := progression.AnnualRebateEstimate.Sub(*invoice.RfaReceivedAmount)
		if shortfall.GreaterThan(utils.LineAmountTolerance) {
			action := "reconcile the received RFA with the tier entitlement and claim the difference"
			anomalies = append(anomalies, models.Anomaly{
				Type:     models.AnomalyTypeRebateTierGap,
				Severity: models.AnomalySeverityOpportunity,
				Description: fmt.Sprintf(
					"year-end rebate received %s is below the tier entitlement %s",
					invoice.RfaReceivedAmount.StringFixed(2),
					progression.AnnualRebateEstimate.StringFixed(2)),
				Impact:          shortfall,
				SuggestedAction: &action,
			})
		}
	}

	if progression.NextTier != nil {
		anomalies = append(anomalies, models.Anomaly{
			Type:     models.AnomalyTypeRebateTierProgression,
			Severity: models.AnomalySeverityInformational,
			Description: fmt.Sprintf(
				"%s away from the next rebate tier (%s%% at %s)",
				progression.AmountToNextTier.StringFixed(2),
				progression.NextTier.Rate.StringFixed(2),
				progression.NextTier.ThresholdMin.StringFixed(2)),
			Impact: decimal.Zero,
		})
	}

	return anomalies
}
