package models

import "errors"

// Tranche is the contractual product category of an invoice line.
// A = generics, B = branded/princeps drugs, OTC = over-the-counter/parapharmacy.
type Tranche string

const (
	TrancheA   Tranche = "A"
	TrancheB   Tranche = "B"
	TrancheOTC Tranche = "OTC"
)

// AllTranches is the fixed ordering used everywhere tranche output must be stable.
var AllTranches = []Tranche{TrancheA, TrancheB, TrancheOTC}

func ParseTranche(s string) (Tranche, error) {
	switch s {
	case "A":
		return TrancheA, nil
	case "B":
		return TrancheB, nil
	case "OTC":
		return TrancheOTC, nil
	default:
		return "", errors.New("invalid tranche")
	}
}

type AnomalySeverity string

const (
	AnomalySeverityCritical      AnomalySeverity = "Critical"
	AnomalySeverityOpportunity   AnomalySeverity = "Opportunity"
	AnomalySeverityInformational AnomalySeverity = "Informational"
)

func ParseAnomalySeverity(s string) (AnomalySeverity, error) {
	severities := map[string]AnomalySeverity{
		"Critical":      AnomalySeverityCritical,
		"Opportunity":   AnomalySeverityOpportunity,
		"Informational": AnomalySeverityInformational,
	}
	severity, ok := severities[s]
	if !ok {
		return "", errors.New("invalid anomaly severity")
	}
	return severity, nil
}

type AnomalyType string

const (
	AnomalyTypeArithmeticError       AnomalyType = "ARITHMETIC_ERROR"
	AnomalyTypeVatInconsistency      AnomalyType = "VAT_INCONSISTENCY"
	AnomalyTypeDiscountGap           AnomalyType = "DISCOUNT_GAP"
	AnomalyTypeMissingEarlyPayment   AnomalyType = "MISSING_EARLY_PAYMENT_DISCOUNT"
	AnomalyTypeFreeShippingGap       AnomalyType = "FREE_SHIPPING_THRESHOLD_GAP"
	AnomalyTypeRebateTierGap         AnomalyType = "REBATE_TIER_GAP"
	AnomalyTypeMissingFreeGoods      AnomalyType = "MISSING_FREE_GOODS"
	AnomalyTypeRebateTierProgression AnomalyType = "REBATE_TIER_PROGRESSION"
)

func ParseAnomalyType(s string) (AnomalyType, error) {
	anomalyTypes := map[string]AnomalyType{
		"ARITHMETIC_ERROR":               AnomalyTypeArithmeticError,
		"VAT_INCONSISTENCY":              AnomalyTypeVatInconsistency,
		"DISCOUNT_GAP":                   AnomalyTypeDiscountGap,
		"MISSING_EARLY_PAYMENT_DISCOUNT": AnomalyTypeMissingEarlyPayment,
		"FREE_SHIPPING_THRESHOLD_GAP":    AnomalyTypeFreeShippingGap,
		"REBATE_TIER_GAP":                AnomalyTypeRebateTierGap,
		"MISSING_FREE_GOODS":             AnomalyTypeMissingFreeGoods,
		"REBATE_TIER_PROGRESSION":        AnomalyTypeRebateTierProgression,
	}
	anomalyType, ok := anomalyTypes[s]
	if !ok {
		return "", errors.New("invalid anomaly type")
	}
	return anomalyType, nil
}

type VerificationStatus string

const (
	VerificationStatusConforming  VerificationStatus = "Conforming"
	VerificationStatusRebateGap   VerificationStatus = "Rebate Gap"
	VerificationStatusNeedsReview VerificationStatus = "Needs Review"
)

func ParseVerificationStatus(s string) (VerificationStatus, error) {
	statuses := map[string]VerificationStatus{
		"Conforming":   VerificationStatusConforming,
		"Rebate Gap":   VerificationStatusRebateGap,
		"Needs Review": VerificationStatusNeedsReview,
	}
	status, ok := statuses[s]
	if !ok {
		return "", errors.New("invalid verification status")
	}
	return status, nil
}
