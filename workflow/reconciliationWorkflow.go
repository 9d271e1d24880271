package workflow

import (
	"context"
	"errors"
	"time"

	"github.com/pharmadatalab/officine_backend/config"
	"github.com/pharmadatalab/officine_backend/models"
	"github.com/pharmadatalab/officine_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// ReconciliationInput is everything BuildVerificationReport needs, already
// loaded. Agreement may be nil (no agreement on file for the laboratory):
// verification degrades to line checks plus tax aggregation.
type ReconciliationInput struct {
	Invoice             *models.Invoice
	Agreement           *models.CommercialAgreement
	CumulativePurchases decimal.Decimal
	Year                int
}

// BuildVerificationReport runs the full reconciliation pass over one invoice:
// line verification, tax aggregation, tranche analysis, rebate tracking and
// anomaly classification, consolidated into a single report. Pure function
// over its input; the same input always yields a field-for-field identical
// report, anomaly order included.
func BuildVerificationReport(input ReconciliationInput) (*models.VerificationReport, error) {
	invoice := input.Invoice
	if invoice == nil {
		return nil, errors.New("invoice is required")
	}
	if err := invoice.ValidateStructure(); err != nil {
		return nil, err
	}

	lineVerifications := VerifyLines(invoice.Details)
	taxBreakdown := AggregateTax(invoice.Details)
	trancheResult := AnalyzeTranches(invoice.Details, input.Agreement)

	var progression *models.RebateProgression
	if input.Agreement != nil && len(input.Agreement.Tiers) > 0 {
		p := TrackRebateProgression(input.Agreement.LaboratoryId, input.Year,
			input.CumulativePurchases, input.Agreement.Tiers)
		progression = &p
	}

	anomalies := ClassifyAnomalies(ClassifierInput{
		Invoice:           invoice,
		Agreement:         input.Agreement,
		LineVerifications: lineVerifications,
		TrancheResult:     trancheResult,
		Progression:       progression,
	})

	report := models.VerificationReport{
		InvoiceId:         invoice.ID,
		InvoiceNumber:     invoice.InvoiceNumber,
		Counts:            models.CountUnresolvedBySeverity(anomalies),
		TotalImpact:       totalImpact(anomalies),
		Anomalies:         anomalies,
		LineVerifications: lineVerifications,
		TaxBreakdown:      taxBreakdown,
		TrancheAnalyses:   trancheResult.Tranches,
		RebateProgression: progression,
	}
	report.Status = verificationStatus(&report, input.Agreement)
	report.Summary = report.Summarize()
	return &report, nil
}

// totalImpact sums the monetary impact of actionable (critical and
// opportunity) anomalies. Informational notices carry no impact.
func totalImpact(anomalies []models.Anomaly) decimal.Decimal {
	total := decimal.Zero
	for i := range anomalies {
		if anomalies[i].Severity == models.AnomalySeverityInformational {
			continue
		}
		total = total.Add(anomalies[i].Impact)
	}
	return total
}

// verificationStatus applies the outcome policy: conforming when nothing
// actionable was found, "Rebate Gap" when the only actionable findings are
// RFA tier shortfalls, "Needs Review" otherwise. An invoice without an
// agreement on file can never be declared conforming, the contractual
// checks did not run.
func verificationStatus(report *models.VerificationReport, agreement *models.CommercialAgreement) models.VerificationStatus {
	if agreement == nil {
		return models.VerificationStatusNeedsReview
	}
	if report.Counts.Critical == 0 && report.Counts.Opportunity == 0 {
		return models.VerificationStatusConforming
	}
	for i := range report.Anomalies {
		anomaly := &report.Anomalies[i]
		if anomaly.Severity == models.AnomalySeverityInformational {
			continue
		}
		if anomaly.Type != models.AnomalyTypeRebateTierGap {
			return models.VerificationStatusNeedsReview
		}
	}
	return models.VerificationStatusRebateGap
}

// RunInvoiceVerification loads the invoice and its laboratory's agreement,
// builds the report and persists it as a VerificationRun with anomaly rows.
// A missing agreement is not an error; a missing invoice is. The stored run
// is returned alongside the full report.
func RunInvoiceVerification(ctx context.Context, invoiceId int) (*models.VerificationReport, *models.VerificationRun, error) {
	logger := config.GetLogger()

	invoice, err := models.GetInvoice(ctx, invoiceId)
	if err != nil {
		return nil, nil, err
	}

	agreement, err := models.GetAgreementByLaboratory(ctx, invoice.LaboratoryId)
	if err != nil {
		if !errors.Is(err, utils.ErrorRecordNotFound) {
			return nil, nil, err
		}
		logger.WithFields(logrus.Fields{
			"invoiceId":    invoiceId,
			"laboratoryId": invoice.LaboratoryId,
		}).Info("no commercial agreement on file, running partial verification")
		agreement = nil
	}

	year := invoice.InvoiceDate.Year()
	if invoice.InvoiceDate.IsZero() {
		year = time.Now().UTC().Year()
	}

	cumulative := decimal.Zero
	if agreement != nil {
		cumulative, err = models.GetCumulativePurchases(ctx, invoice.LaboratoryId, year)
		if err != nil {
			return nil, nil, err
		}
	}

	report, err := BuildVerificationReport(ReconciliationInput{
		Invoice:             invoice,
		Agreement:           agreement,
		CumulativePurchases: cumulative,
		Year:                year,
	})
	if err != nil {
		return nil, nil, err
	}

	run, err := models.StoreVerificationReport(ctx, report)
	if err != nil {
		return nil, nil, err
	}
	report.Anomalies = run.Anomalies

	requestedBy, _ := utils.GetUserNameFromContext(ctx)
	logger.WithFields(logrus.Fields{
		"invoiceId":   invoiceId,
		"runId":       run.ID,
		"status":      report.Status,
		"critical":    report.Counts.Critical,
		"opportunity": report.Counts.Opportunity,
		"totalImpact": report.TotalImpact.StringFixed(2),
		"requestedBy": requestedBy,
	}).Info("invoice verification stored")

	correlationId, _ := utils.GetCorrelationIdFromContext(ctx)
	if err := config.PublishVerificationCompleted(config.VerificationMessage{
		PharmacyId:    run.PharmacyId,
		InvoiceId:     run.InvoiceId,
		RunId:         run.ID,
		Status:        string(run.Status),
		CriticalCount: run.CriticalCount,
		TotalImpact:   run.TotalImpact.StringFixed(2),
		VerifiedAt:    run.CreatedAt,
		CorrelationId: correlationId,
	}); err != nil {
		config.LogError(logger, "reconciliationWorkflow.go", "RunInvoiceVerification",
			"PublishVerificationCompleted", run.ID, err)
	}

	return report, run, nil
}
