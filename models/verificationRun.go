package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pharmadatalab/officine_backend/config"
	"github.com/pharmadatalab/officine_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// VerificationRun is the persisted header of one verification report.
// The derived sections (tax breakdown, tranche analyses) are recomputable,
// so only the outcome and the anomaly rows are stored.
type VerificationRun struct {
	ID                 int                `gorm:"primary_key" json:"id"`
	PharmacyId         string             `gorm:"index;not null" json:"pharmacy_id"`
	InvoiceId          int                `gorm:"index;not null" json:"invoice_id"`
	Status             VerificationStatus `gorm:"size:20;not null" json:"status"`
	CriticalCount      int                `gorm:"default:0" json:"critical_count"`
	OpportunityCount   int                `gorm:"default:0" json:"opportunity_count"`
	InformationalCount int                `gorm:"default:0" json:"informational_count"`
	TotalImpact        decimal.Decimal    `gorm:"type:decimal(20,4);default:0" json:"total_impact"`
	Summary            string             `gorm:"type:text" json:"summary"`
	CorrelationId      string             `gorm:"size:64;index" json:"correlation_id"`
	Anomalies          []Anomaly          `gorm:"foreignKey:RunId" json:"anomalies"`
	CreatedAt          time.Time          `gorm:"autoCreateTime" json:"created_at"`
}

// StoreVerificationReport persists the report header and its anomalies in one
// transaction and returns the stored run.
func StoreVerificationReport(ctx context.Context, report *VerificationReport) (*VerificationRun, error) {
	pharmacyId, ok := utils.GetPharmacyIdFromContext(ctx)
	if !ok || pharmacyId == "" {
		return nil, errors.New("pharmacy id is required")
	}

	correlationId, _ := utils.GetCorrelationIdFromContext(ctx)

	run := VerificationRun{
		PharmacyId:         pharmacyId,
		InvoiceId:          report.InvoiceId,
		Status:             report.Status,
		CriticalCount:      report.Counts.Critical,
		OpportunityCount:   report.Counts.Opportunity,
		InformationalCount: report.Counts.Informational,
		TotalImpact:        report.TotalImpact,
		Summary:            report.Summary,
		CorrelationId:      correlationId,
	}

	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()
	if err := tx.Create(&run).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	for i := range report.Anomalies {
		anomaly := report.Anomalies[i]
		anomaly.PharmacyId = pharmacyId
		anomaly.RunId = run.ID
		anomaly.InvoiceId = report.InvoiceId
		if err := tx.Create(&anomaly).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
		run.Anomalies = append(run.Anomalies, anomaly)
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &run, nil
}

// GetLatestVerificationRun returns the most recent run for an invoice,
// anomalies included, in stored (generation) order.
func GetLatestVerificationRun(ctx context.Context, invoiceId int) (*VerificationRun, error) {
	pharmacyId, ok := utils.GetPharmacyIdFromContext(ctx)
	if !ok || pharmacyId == "" {
		return nil, errors.New("pharmacy id is required")
	}

	var run VerificationRun
	db := config.GetDB()
	err := db.WithContext(ctx).Preload("Anomalies", func(tx *gorm.DB) *gorm.DB {
		return tx.Order("id")
	}).
		Where("pharmacy_id = ? AND invoice_id = ?", pharmacyId, invoiceId).
		Order("id DESC").
		First(&run).Error
	if err != nil {
		return nil, recordError(err)
	}
	return &run, nil
}

// GetVerificationRuns lists recent runs, newest first, optionally narrowed to
// one invoice and/or one outcome status.
func GetVerificationRuns(ctx context.Context, invoiceId *int, status *VerificationStatus) ([]*VerificationRun, error) {
	pharmacyId, ok := utils.GetPharmacyIdFromContext(ctx)
	if !ok || pharmacyId == "" {
		return nil, errors.New("pharmacy id is required")
	}

	var results []*VerificationRun
	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("pharmacy_id = ?", pharmacyId)
	if invoiceId != nil && *invoiceId > 0 {
		dbCtx = dbCtx.Where("invoice_id = ?", *invoiceId)
	}
	if status != nil {
		dbCtx = dbCtx.Where("status = ?", *status)
	}
	// db query
	if err := dbCtx.Order("id DESC").Limit(config.SearchLimit).Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// Summarize builds the human-readable one-liner stored with the run.
func (report *VerificationReport) Summarize() string {
	switch report.Status {
	case VerificationStatusConforming:
		return fmt.Sprintf("invoice %s conforms to the commercial agreement", report.InvoiceNumber)
	case VerificationStatusRebateGap:
		return fmt.Sprintf("invoice %s: year-end rebate received differs from the entitled amount (impact %s)",
			report.InvoiceNumber, report.TotalImpact.StringFixed(2))
	default:
		return fmt.Sprintf("invoice %s needs review: %d critical, %d opportunity finding(s), total impact %s",
			report.InvoiceNumber, report.Counts.Critical, report.Counts.Opportunity, report.TotalImpact.StringFixed(2))
	}
}
