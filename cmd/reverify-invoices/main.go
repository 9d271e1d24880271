package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/pharmadatalab/officine_backend/config"
	"github.com/pharmadatalab/officine_backend/models"
	"github.com/pharmadatalab/officine_backend/utils"
	"github.com/pharmadatalab/officine_backend/workflow"
)

// Re-runs verification over stored invoices, e.g. after an agreement was
// corrected. Each pass stores a fresh VerificationRun; earlier runs and their
// anomalies are kept.
func main() {
	pharmacyID := flag.String("pharmacy-id", "", "Required: pharmacy id")
	laboratoryID := flag.Int("laboratory-id", 0, "Optional: re-verify only this laboratory's invoices")
	invoiceID := flag.Int("invoice-id", 0, "Optional: re-verify a single invoice")
	continueOnError := flag.Bool("continue-on-error", true, "Continue when one invoice fails")
	flag.Parse()

	if strings.TrimSpace(*pharmacyID) == "" {
		fmt.Fprintln(os.Stderr, "--pharmacy-id is required")
		os.Exit(1)
	}

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil)")
		os.Exit(1)
	}

	ctx := utils.SetPharmacyIdInContext(context.Background(), strings.TrimSpace(*pharmacyID))
	ctx = utils.SetUserNameInContext(ctx, "ReverifyInvoices")

	var invoiceIds []int
	if *invoiceID > 0 {
		invoiceIds = append(invoiceIds, *invoiceID)
	} else {
		query := db.WithContext(ctx).Model(&models.Invoice{}).
			Where("pharmacy_id = ?", strings.TrimSpace(*pharmacyID))
		if *laboratoryID > 0 {
			query = query.Where("laboratory_id = ?", *laboratoryID)
		}
		if err := query.Order("id").Pluck("id", &invoiceIds).Error; err != nil {
			fmt.Fprintf(os.Stderr, "failed to list invoices: %v\n", err)
			os.Exit(1)
		}
	}
	if len(invoiceIds) == 0 {
		fmt.Fprintln(os.Stderr, "no invoices found to re-verify")
		return
	}

	failed := 0
	for _, id := range invoiceIds {
		report, run, err := workflow.RunInvoiceVerification(ctx, id)
		if err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "invoice %d: verification failed: %v\n", id, err)
			if !*continueOnError {
				os.Exit(1)
			}
			continue
		}
		fmt.Printf("invoice %d: run %d status=%s critical=%d opportunity=%d impact=%s\n",
			id, run.ID, report.Status, report.Counts.Critical, report.Counts.Opportunity,
			report.TotalImpact.StringFixed(2))
	}

	fmt.Printf("done: %d invoice(s), %d failed\n", len(invoiceIds), failed)
	if failed > 0 {
		os.Exit(1)
	}
}
