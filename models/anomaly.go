package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/pharmadatalab/officine_backend/config"
	"github.com/pharmadatalab/officine_backend/utils"
	"github.com/shopspring/decimal"
)

// Anomaly is one finding of a verification run. Anomalies are never deleted,
// only resolved, to preserve the audit trail of what was found and actioned.
type Anomaly struct {
	ID              int             `gorm:"primary_key" json:"id"`
	PharmacyId      string          `gorm:"index;not null" json:"pharmacy_id"`
	RunId           int             `gorm:"index;not null" json:"run_id"`
	InvoiceId       int             `gorm:"index;not null" json:"invoice_id"`
	LineId          *int            `gorm:"index" json:"line_id"`
	Type            AnomalyType     `gorm:"size:50;index;not null" json:"type"`
	Severity        AnomalySeverity `gorm:"size:20;index;not null" json:"severity"`
	Description     string          `gorm:"type:text" json:"description"`
	Impact          decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"impact"`
	SuggestedAction *string         `gorm:"size:255" json:"suggested_action"`
	Resolved        bool            `gorm:"index;not null;default:false" json:"resolved"`
	ResolvedAt      *time.Time      `json:"resolved_at"`
	ResolutionNote  *string         `gorm:"size:255" json:"resolution_note"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// dedupKey identifies an anomaly within one run for classifier deduplication.
func (anomaly *Anomaly) dedupKey() string {
	lineId := 0
	if anomaly.LineId != nil {
		lineId = *anomaly.LineId
	}
	return fmt.Sprintf("%s|%d|%s", anomaly.Type, lineId, anomaly.Description)
}

// DedupAnomalies removes duplicate findings while keeping first-seen order.
func DedupAnomalies(anomalies []Anomaly) []Anomaly {
	seen := make(map[string]bool, len(anomalies))
	result := make([]Anomaly, 0, len(anomalies))
	for i := range anomalies {
		key := anomalies[i].dedupKey()
		if seen[key] {
			continue
		}
		seen[key] = true
		result = append(result, anomalies[i])
	}
	return result
}

// SeverityCounts are the unresolved anomaly counts of a run. Resolved anomalies
// stay in the list but drop out of these counts.
type SeverityCounts struct {
	Critical      int `json:"critical"`
	Opportunity   int `json:"opportunity"`
	Informational int `json:"informational"`
}

func CountUnresolvedBySeverity(anomalies []Anomaly) SeverityCounts {
	var counts SeverityCounts
	for i := range anomalies {
		if anomalies[i].Resolved {
			continue
		}
		switch anomalies[i].Severity {
		case AnomalySeverityCritical:
			counts.Critical++
		case AnomalySeverityOpportunity:
			counts.Opportunity++
		case AnomalySeverityInformational:
			counts.Informational++
		}
	}
	return counts
}

type ResolveAnomalyInput struct {
	Note string `json:"note" binding:"required"`
}

// ResolveAnomaly marks one anomaly resolved. The write is serialized
// per-anomaly with a redis lock so concurrent resolution attempts cannot
// produce lost updates; resolution is a single unresolved -> resolved
// transition and re-resolving is rejected.
func ResolveAnomaly(ctx context.Context, id int, input *ResolveAnomalyInput) (*Anomaly, error) {
	pharmacyId, ok := utils.GetPharmacyIdFromContext(ctx)
	if !ok || pharmacyId == "" {
		return nil, errors.New("pharmacy id is required")
	}

	locker := config.GetRedisLock()
	if locker != nil {
		lockKey := fmt.Sprintf("anomalyResolve:%d", id)
		lock, err := locker.Obtain(ctx, lockKey, 10*time.Second, nil)
		if err == redislock.ErrNotObtained {
			return nil, errors.New("anomaly is being resolved by another request")
		} else if err != nil {
			return nil, err
		}
		defer func() {
			_ = lock.Release(ctx)
		}()
	}

	db := config.GetDB()
	var anomaly Anomaly
	if err := db.WithContext(ctx).
		Where("pharmacy_id = ? AND id = ?", pharmacyId, id).
		First(&anomaly).Error; err != nil {
		return nil, recordError(err)
	}
	if anomaly.Resolved {
		return nil, errors.New("anomaly is already resolved")
	}

	now := time.Now().UTC()
	anomaly.Resolved = true
	anomaly.ResolvedAt = &now
	anomaly.ResolutionNote = utils.NilIfEmpty(input.Note)

	// db action
	err := db.WithContext(ctx).Model(&anomaly).Updates(map[string]interface{}{
		"Resolved":       anomaly.Resolved,
		"ResolvedAt":     anomaly.ResolvedAt,
		"ResolutionNote": anomaly.ResolutionNote,
	}).Error
	if err != nil {
		return nil, err
	}
	return &anomaly, nil
}

// GetAnomaliesByRun lists a run's anomalies in generation order, optionally
// narrowed by severity and/or type.
func GetAnomaliesByRun(ctx context.Context, runId int, severity *AnomalySeverity, anomalyType *AnomalyType) ([]Anomaly, error) {
	pharmacyId, ok := utils.GetPharmacyIdFromContext(ctx)
	if !ok || pharmacyId == "" {
		return nil, errors.New("pharmacy id is required")
	}

	if err := utils.ValidateResourceId[VerificationRun](ctx, pharmacyId, runId); err != nil {
		return nil, err
	}

	var results []Anomaly
	db := config.GetDB()
	dbCtx := db.WithContext(ctx).
		Where("pharmacy_id = ? AND run_id = ?", pharmacyId, runId)
	if severity != nil {
		dbCtx = dbCtx.Where("severity = ?", *severity)
	}
	if anomalyType != nil {
		dbCtx = dbCtx.Where("type = ?", *anomalyType)
	}
	err := dbCtx.Order("id").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
