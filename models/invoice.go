package models

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/pharmadatalab/officine_backend/config"
	"github.com/pharmadatalab/officine_backend/utils"
	"github.com/shopspring/decimal"
)

// Invoice is the parsed wholesaler/laboratory invoice header plus its detail lines.
// Lines are produced by the document-parsing collaborator and never mutated here;
// verification produces derived records (VerificationRun, Anomaly), not edits.
type Invoice struct {
	ID                         int              `gorm:"primary_key" json:"id"`
	PharmacyId                 string           `gorm:"index;not null" json:"pharmacy_id" binding:"required"`
	LaboratoryId               int              `gorm:"index;not null" json:"laboratory_id" binding:"required"`
	InvoiceNumber              string           `gorm:"size:50;not null" json:"invoice_number" binding:"required"`
	InvoiceDate                time.Time        `json:"invoice_date"`
	TotalGrossAmount           decimal.Decimal  `gorm:"type:decimal(20,4);default:0" json:"total_gross_amount"`
	TotalDiscountAmount        decimal.Decimal  `gorm:"type:decimal(20,4);default:0" json:"total_discount_amount"`
	TotalNetAmount             decimal.Decimal  `gorm:"type:decimal(20,4);default:0" json:"total_net_amount"`
	TotalTaxAmount             decimal.Decimal  `gorm:"type:decimal(20,4);default:0" json:"total_tax_amount"`
	EarlyPaymentDiscountAmount decimal.Decimal  `gorm:"type:decimal(20,4);default:0" json:"early_payment_discount_amount"`
	ShippingFeeAmount          decimal.Decimal  `gorm:"type:decimal(20,4);default:0" json:"shipping_fee_amount"`
	FreeUnitsCount             int              `gorm:"default:0" json:"free_units_count"`
	RfaReceivedAmount          *decimal.Decimal `gorm:"type:decimal(20,4)" json:"rfa_received_amount"`
	Details                    []InvoiceLine    `gorm:"foreignKey:InvoiceId" json:"details"`
	CreatedAt                  time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt                  time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

// InvoiceLine is one product line as extracted from the source document.
type InvoiceLine struct {
	ID                  int             `gorm:"primary_key" json:"id"`
	InvoiceId           int             `gorm:"index;not null" json:"invoice_id"`
	ProductCode         string          `gorm:"size:13;not null" json:"product_code" binding:"required"`
	Description         string          `gorm:"size:255" json:"description"`
	LotNumber           *string         `gorm:"size:50" json:"lot_number"`
	Qty                 int             `gorm:"not null" json:"qty"`
	UnitPrice           decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"unit_price"`
	DiscountPercent     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"discount_percent"`
	DiscountedUnitPrice decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"discounted_unit_price"`
	NetAmount           decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"net_amount"`
	VatRate             decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"vat_rate"`
	GrossAmount         decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"gross_amount"`
	DiscountAmount      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"discount_amount"`
	Tranche             Tranche         `gorm:"size:3" json:"tranche"`
	Category            string          `gorm:"size:100" json:"category"`
}

var productCodePattern = regexp.MustCompile(`^[0-9]{13}$`)

// ValidateStructure enforces the structural preconditions the engine assumes.
// A failure here aborts the invoice's reconciliation (malformed input), it is
// never reported as a tolerance anomaly.
func (line *InvoiceLine) ValidateStructure() error {
	if line.Qty < 0 {
		return fmt.Errorf("line %s: quantity must not be negative", line.ProductCode)
	}
	if line.DiscountPercent.IsNegative() || line.DiscountPercent.GreaterThan(decimal.NewFromInt(100)) {
		return fmt.Errorf("line %s: discount percent must be within 0-100", line.ProductCode)
	}
	if line.ProductCode != "" && !productCodePattern.MatchString(line.ProductCode) {
		return fmt.Errorf("line %s: product code must be a 13-digit code", line.ProductCode)
	}
	if line.Tranche != "" {
		if _, err := ParseTranche(string(line.Tranche)); err != nil {
			return fmt.Errorf("line %s: %s", line.ProductCode, err.Error())
		}
	}
	return nil
}

// ValidateStructure checks the header and every line.
func (invoice *Invoice) ValidateStructure() error {
	if invoice.InvoiceNumber == "" {
		return errors.New("invoice number is required")
	}
	for i := range invoice.Details {
		if err := invoice.Details[i].ValidateStructure(); err != nil {
			return err
		}
	}
	return nil
}

type NewInvoice struct {
	LaboratoryId               int              `json:"laboratory_id" binding:"required"`
	InvoiceNumber              string           `json:"invoice_number" binding:"required"`
	InvoiceDate                time.Time        `json:"invoice_date"`
	TotalGrossAmount           decimal.Decimal  `json:"total_gross_amount"`
	TotalDiscountAmount        decimal.Decimal  `json:"total_discount_amount"`
	TotalNetAmount             decimal.Decimal  `json:"total_net_amount"`
	TotalTaxAmount             decimal.Decimal  `json:"total_tax_amount"`
	EarlyPaymentDiscountAmount decimal.Decimal  `json:"early_payment_discount_amount"`
	ShippingFeeAmount          decimal.Decimal  `json:"shipping_fee_amount"`
	FreeUnitsCount             int              `json:"free_units_count"`
	RfaReceivedAmount          *decimal.Decimal `json:"rfa_received_amount"`
	Details                    []InvoiceLine    `json:"details" binding:"required,dive"`
}

func CreateInvoice(ctx context.Context, input *NewInvoice) (*Invoice, error) {
	pharmacyId, ok := utils.GetPharmacyIdFromContext(ctx)
	if !ok || pharmacyId == "" {
		return nil, errors.New("pharmacy id is required")
	}

	invoice := Invoice{
		PharmacyId:                 pharmacyId,
		LaboratoryId:               input.LaboratoryId,
		InvoiceNumber:              input.InvoiceNumber,
		InvoiceDate:                input.InvoiceDate,
		TotalGrossAmount:           input.TotalGrossAmount,
		TotalDiscountAmount:        input.TotalDiscountAmount,
		TotalNetAmount:             input.TotalNetAmount,
		TotalTaxAmount:             input.TotalTaxAmount,
		EarlyPaymentDiscountAmount: input.EarlyPaymentDiscountAmount,
		ShippingFeeAmount:          input.ShippingFeeAmount,
		FreeUnitsCount:             input.FreeUnitsCount,
		RfaReceivedAmount:          input.RfaReceivedAmount,
		Details:                    input.Details,
	}
	if err := invoice.ValidateStructure(); err != nil {
		return nil, err
	}

	count, err := utils.ResourceCountWhere[Invoice](ctx, pharmacyId,
		"laboratory_id = ? AND invoice_number = ?", input.LaboratoryId, input.InvoiceNumber)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, fmt.Errorf("invoice %s already exists for this laboratory", input.InvoiceNumber)
	}

	db := config.GetDB()
	// db action
	if err := db.WithContext(ctx).Create(&invoice).Error; err != nil {
		return nil, err
	}
	return &invoice, nil
}

func GetInvoice(ctx context.Context, id int) (*Invoice, error) {
	pharmacyId, ok := utils.GetPharmacyIdFromContext(ctx)
	if !ok || pharmacyId == "" {
		return nil, errors.New("pharmacy id is required")
	}

	var invoice Invoice
	db := config.GetDB()
	err := db.WithContext(ctx).Preload("Details").
		Where("pharmacy_id = ? AND id = ?", pharmacyId, id).
		First(&invoice).Error
	if err != nil {
		return nil, recordError(err)
	}
	return &invoice, nil
}

func GetInvoices(ctx context.Context, laboratoryId *int) ([]*Invoice, error) {
	pharmacyId, ok := utils.GetPharmacyIdFromContext(ctx)
	if !ok || pharmacyId == "" {
		return nil, errors.New("pharmacy id is required")
	}

	var results []*Invoice
	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("pharmacy_id = ?", pharmacyId)
	if laboratoryId != nil && *laboratoryId > 0 {
		dbCtx = dbCtx.Where("laboratory_id = ?", *laboratoryId)
	}
	// db query
	if err := dbCtx.Order("invoice_date DESC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// GetCumulativePurchases sums confirmed net purchase amounts for one laboratory
// within a calendar year. This feeds the rebate tier tracker.
func GetCumulativePurchases(ctx context.Context, laboratoryId int, year int) (decimal.Decimal, error) {
	pharmacyId, ok := utils.GetPharmacyIdFromContext(ctx)
	if !ok || pharmacyId == "" {
		return decimal.Zero, errors.New("pharmacy id is required")
	}

	start, end := utils.CalendarYearRange(year)

	var total decimal.Decimal
	db := config.GetDB()
	err := db.WithContext(ctx).Model(&Invoice{}).
		Where("pharmacy_id = ? AND laboratory_id = ?", pharmacyId, laboratoryId).
		Where("invoice_date BETWEEN ? AND ?", start, end).
		Select("COALESCE(SUM(total_net_amount), 0)").
		Scan(&total).Error
	if err != nil {
		return decimal.Zero, err
	}
	return total, nil
}
