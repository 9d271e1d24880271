package workflow

import (
	"sort"

	"github.com/pharmadatalab/officine_backend/models"
	"github.com/pharmadatalab/officine_backend/utils"
	"github.com/shopspring/decimal"
)

// AggregateTax groups lines by VAT rate (exact equality; rates are a small
// closed set) and sums taxable bases. Pure aggregation, no anomaly semantics.
// Entries come back sorted ascending by rate; grand totals partition the
// invoice's net amount.
func AggregateTax(lines []models.InvoiceLine) models.TaxBreakdown {
	type bucket struct {
		rate  decimal.Decimal
		count int
		base  decimal.Decimal
	}

	buckets := make(map[string]*bucket)
	for i := range lines {
		line := &lines[i]
		key := line.VatRate.String()
		b, ok := buckets[key]
		if !ok {
			b = &bucket{rate: line.VatRate}
			buckets[key] = b
		}
		b.count++
		b.base = b.base.Add(line.NetAmount)
	}

	entries := make([]models.TaxBreakdownEntry, 0, len(buckets))
	for _, b := range buckets {
		entries = append(entries, models.TaxBreakdownEntry{
			Rate:        b.rate,
			LineCount:   b.count,
			TaxableBase: b.base,
			TaxAmount:   utils.Percentage(b.base, b.rate),
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Rate.LessThan(entries[j].Rate)
	})

	breakdown := models.TaxBreakdown{Entries: entries}
	for i := range entries {
		breakdown.TotalBase = breakdown.TotalBase.Add(entries[i].TaxableBase)
		breakdown.TotalTax = breakdown.TotalTax.Add(entries[i].TaxAmount)
	}
	return breakdown
}
