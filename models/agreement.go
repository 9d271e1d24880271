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

// CommercialAgreement holds the negotiated terms for one laboratory:
// target discount rates per tranche, payment/shipping/free-goods benefits
// and the ordered RFA tier list.
type CommercialAgreement struct {
	ID                    int             `gorm:"primary_key" json:"id"`
	PharmacyId            string          `gorm:"index;not null" json:"pharmacy_id"`
	LaboratoryId          int             `gorm:"index;not null" json:"laboratory_id" binding:"required"`
	LaboratoryName        string          `gorm:"size:100" json:"laboratory_name"`
	TargetRateA           decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"target_rate_a"`
	TargetRateB           decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"target_rate_b"`
	TargetRateOTC         decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"target_rate_otc"`
	BonusThreshold        decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"bonus_threshold"`
	EarlyPaymentRate      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"early_payment_rate"`
	EarlyPaymentDays      int             `gorm:"default:0" json:"early_payment_days"`
	EarlyPaymentApplies   *bool           `gorm:"not null;default:false" json:"early_payment_applies"`
	FreeShippingThreshold decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"free_shipping_threshold"`
	ShippingFee           decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"shipping_fee"`
	FreeGoodsRatio        decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"free_goods_ratio"`
	FreeGoodsApplies      *bool           `gorm:"not null;default:false" json:"free_goods_applies"`
	Tiers                 []RebateTier    `gorm:"foreignKey:AgreementId" json:"tiers"`
	CreatedAt             time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// RebateTier is one purchase-volume band ("palier") mapped to a rebate rate.
// ThresholdMax nil means unbounded (the top tier).
type RebateTier struct {
	ID           int              `gorm:"primary_key" json:"id"`
	AgreementId  int              `gorm:"index;not null" json:"agreement_id"`
	ThresholdMin decimal.Decimal  `gorm:"type:decimal(20,4);default:0" json:"threshold_min"`
	ThresholdMax *decimal.Decimal `gorm:"type:decimal(20,4)" json:"threshold_max"`
	Rate         decimal.Decimal  `gorm:"type:decimal(20,4);default:0" json:"rate"`
	Description  string           `gorm:"size:255" json:"description"`
}

// TargetRateFor returns the contractual target discount rate for a tranche.
func (agreement *CommercialAgreement) TargetRateFor(tranche Tranche) decimal.Decimal {
	switch tranche {
	case TrancheA:
		return agreement.TargetRateA
	case TrancheB:
		return agreement.TargetRateB
	case TrancheOTC:
		return agreement.TargetRateOTC
	}
	return decimal.Zero
}

// ValidateTiers enforces the tier-list invariant the rebate tracker depends on:
// sorted ascending by minimum threshold, contiguous, non-overlapping, and the
// highest tier unbounded. Agreements that fail this are rejected at write time
// so the tracker never sees a malformed list.
func ValidateTiers(tiers []RebateTier) error {
	if len(tiers) == 0 {
		return nil
	}
	for i := range tiers {
		tier := tiers[i]
		if tier.Rate.IsNegative() {
			return fmt.Errorf("tier %d: rate must not be negative", i+1)
		}
		if tier.ThresholdMax != nil && !tier.ThresholdMax.GreaterThan(tier.ThresholdMin) {
			return fmt.Errorf("tier %d: max threshold must exceed min threshold", i+1)
		}
		if i == 0 {
			continue
		}
		prev := tiers[i-1]
		if prev.ThresholdMax == nil {
			return fmt.Errorf("tier %d: only the highest tier may be unbounded", i)
		}
		if !tier.ThresholdMin.GreaterThanOrEqual(prev.ThresholdMin) {
			return fmt.Errorf("tier %d: tiers must be sorted ascending by min threshold", i+1)
		}
		if !prev.ThresholdMax.Equal(tier.ThresholdMin) {
			return fmt.Errorf("tier %d: tiers must be contiguous and non-overlapping", i+1)
		}
	}
	if tiers[len(tiers)-1].ThresholdMax != nil {
		return errors.New("the highest tier must be unbounded")
	}
	return nil
}

type NewCommercialAgreement struct {
	LaboratoryId          int             `json:"laboratory_id" binding:"required"`
	LaboratoryName        string          `json:"laboratory_name"`
	TargetRateA           decimal.Decimal `json:"target_rate_a"`
	TargetRateB           decimal.Decimal `json:"target_rate_b"`
	TargetRateOTC         decimal.Decimal `json:"target_rate_otc"`
	BonusThreshold        decimal.Decimal `json:"bonus_threshold"`
	EarlyPaymentRate      decimal.Decimal `json:"early_payment_rate"`
	EarlyPaymentDays      int             `json:"early_payment_days"`
	EarlyPaymentApplies   *bool           `json:"early_payment_applies" binding:"required"`
	FreeShippingThreshold decimal.Decimal `json:"free_shipping_threshold"`
	ShippingFee           decimal.Decimal `json:"shipping_fee"`
	FreeGoodsRatio        decimal.Decimal `json:"free_goods_ratio"`
	FreeGoodsApplies      *bool           `json:"free_goods_applies" binding:"required"`
	Tiers                 []RebateTier    `json:"tiers" binding:"dive"`
}

func agreementCacheKey(pharmacyId string, laboratoryId int) string {
	return fmt.Sprintf("agreement:%s:%d", pharmacyId, laboratoryId)
}

func CreateAgreement(ctx context.Context, input *NewCommercialAgreement) (*CommercialAgreement, error) {
	pharmacyId, ok := utils.GetPharmacyIdFromContext(ctx)
	if !ok || pharmacyId == "" {
		return nil, errors.New("pharmacy id is required")
	}

	if err := ValidateTiers(input.Tiers); err != nil {
		return nil, err
	}

	agreement := CommercialAgreement{
		PharmacyId:            pharmacyId,
		LaboratoryId:          input.LaboratoryId,
		LaboratoryName:        input.LaboratoryName,
		TargetRateA:           input.TargetRateA,
		TargetRateB:           input.TargetRateB,
		TargetRateOTC:         input.TargetRateOTC,
		BonusThreshold:        input.BonusThreshold,
		EarlyPaymentRate:      input.EarlyPaymentRate,
		EarlyPaymentDays:      input.EarlyPaymentDays,
		EarlyPaymentApplies:   input.EarlyPaymentApplies,
		FreeShippingThreshold: input.FreeShippingThreshold,
		ShippingFee:           input.ShippingFee,
		FreeGoodsRatio:        input.FreeGoodsRatio,
		FreeGoodsApplies:      input.FreeGoodsApplies,
		Tiers:                 input.Tiers,
	}

	db := config.GetDB()
	// db action
	if err := db.WithContext(ctx).Create(&agreement).Error; err != nil {
		return nil, err
	}

	// evict stale cache entry for this laboratory
	_ = config.RemoveRedisKey(agreementCacheKey(pharmacyId, agreement.LaboratoryId))

	return &agreement, nil
}

// GetAgreementByLaboratory returns the current agreement for one laboratory,
// redis-cached. Returns ErrorRecordNotFound when no agreement is resolvable;
// the caller degrades to a partial (line-checks-only) verification.
func GetAgreementByLaboratory(ctx context.Context, laboratoryId int) (*CommercialAgreement, error) {
	pharmacyId, ok := utils.GetPharmacyIdFromContext(ctx)
	if !ok || pharmacyId == "" {
		return nil, errors.New("pharmacy id is required")
	}

	cacheKey := agreementCacheKey(pharmacyId, laboratoryId)
	var cached CommercialAgreement
	exists, err := config.GetRedisObject(cacheKey, &cached)
	if err == nil && exists {
		return &cached, nil
	}

	var agreement CommercialAgreement
	db := config.GetDB()
	err = db.WithContext(ctx).Preload("Tiers", func(tx *gorm.DB) *gorm.DB {
		return tx.Order("threshold_min ASC")
	}).
		Where("pharmacy_id = ? AND laboratory_id = ?", pharmacyId, laboratoryId).
		Order("id DESC").
		First(&agreement).Error
	if err != nil {
		return nil, recordError(err)
	}

	if err := config.SetRedisObject(cacheKey, &agreement, 15*time.Minute); err != nil {
		config.LogError(config.GetLogger(), "agreement.go", "GetAgreementByLaboratory", "SetRedisObject", cacheKey, err)
	}
	return &agreement, nil
}
