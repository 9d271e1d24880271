package models

import (
	"github.com/shopspring/decimal"
)

// LineAnomaly is one finding of the line verifier: the anomaly type it maps
// to plus the human-readable detail. Keeping the type alongside the message
// lets the classifier dispatch on the enum instead of the wording.
type LineAnomaly struct {
	Type    AnomalyType `json:"type"`
	Message string      `json:"message"`
}

// LineVerification is the per-line outcome of the line verifier.
// Ephemeral: lives for one verification pass, never persisted.
type LineVerification struct {
	Line        *InvoiceLine  `json:"line"`
	Anomalies   []LineAnomaly `json:"anomalies"`
	IsCompliant bool          `json:"is_compliant"`
}

// TaxBreakdownEntry is the aggregate for one distinct VAT rate.
type TaxBreakdownEntry struct {
	Rate        decimal.Decimal `json:"rate"`
	LineCount   int             `json:"line_count"`
	TaxableBase decimal.Decimal `json:"taxable_base"`
	TaxAmount   decimal.Decimal `json:"tax_amount"`
}

// TaxBreakdown groups entries (sorted ascending by rate) with grand totals.
type TaxBreakdown struct {
	Entries   []TaxBreakdownEntry `json:"entries"`
	TotalBase decimal.Decimal     `json:"total_base"`
	TotalTax  decimal.Decimal     `json:"total_tax"`
}

// TrancheAnalysis compares realized vs contractual discount for one tranche.
// The expected rebate is computed on the target rate, not the realized one:
// it is the "what you are entitled to" figure.
type TrancheAnalysis struct {
	Tranche        Tranche         `json:"tranche"`
	GrossAmount    decimal.Decimal `json:"gross_amount"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	RealizedRate   decimal.Decimal `json:"realized_rate"`
	TargetRate     decimal.Decimal `json:"target_rate"`
	RateGap        decimal.Decimal `json:"rate_gap"`
	ExpectedRebate decimal.Decimal `json:"expected_rebate"`
	LineCount      int             `json:"line_count"`
	ShareOfInvoice decimal.Decimal `json:"share_of_invoice"`
}

// RebateProgression tracks year-to-date purchases against the RFA tier list.
type RebateProgression struct {
	LaboratoryId         int             `json:"laboratory_id"`
	Year                 int             `json:"year"`
	CumulativePurchases  decimal.Decimal `json:"cumulative_purchases"`
	ActiveTier           *RebateTier     `json:"active_tier"`
	NextTier             *RebateTier     `json:"next_tier"`
	ActiveRate           decimal.Decimal `json:"active_rate"`
	AmountToNextTier     decimal.Decimal `json:"amount_to_next_tier"`
	AnnualRebateEstimate decimal.Decimal `json:"annual_rebate_estimate"`
	ProgressPercent      decimal.Decimal `json:"progress_percent"`
}

// VerificationReport is the consolidated output of one reconciliation pass.
// Ephemeral per invocation; RunInvoiceVerification persists it as a
// VerificationRun plus Anomaly rows.
type VerificationReport struct {
	InvoiceId         int                `json:"invoice_id"`
	InvoiceNumber     string             `json:"invoice_number"`
	Status            VerificationStatus `json:"status"`
	Counts            SeverityCounts     `json:"counts"`
	TotalImpact       decimal.Decimal    `json:"total_impact"`
	Anomalies         []Anomaly          `json:"anomalies"`
	LineVerifications []LineVerification `json:"line_verifications"`
	TaxBreakdown      TaxBreakdown       `json:"tax_breakdown"`
	TrancheAnalyses   []TrancheAnalysis  `json:"tranche_analyses"`
	RebateProgression *RebateProgression `json:"rebate_progression"`
	Summary           string             `json:"summary"`
}
