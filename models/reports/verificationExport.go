package reports

import (
	"context"
	"fmt"
	"strings"

	"github.com/pharmadatalab/officine_backend/models"
	"github.com/pharmadatalab/officine_backend/utils"
	"github.com/xuri/excelize/v2"
)

// anomalyTypeList returns the distinct anomaly types of a run in first-seen order.
func anomalyTypeList(anomalies []models.Anomaly) []string {
	types := make([]string, 0, len(anomalies))
	for i := range anomalies {
		types = append(types, string(anomalies[i].Type))
	}
	return utils.UniqueSlice(types)
}

// ExportVerificationRunXlsx renders the latest verification run of an invoice
// as a two-sheet workbook: a summary sheet with the run outcome and an
// anomalies sheet with one row per finding. The caller streams the file.
func ExportVerificationRunXlsx(ctx context.Context, invoiceId int) (*excelize.File, error) {
	run, err := models.GetLatestVerificationRun(ctx, invoiceId)
	if err != nil {
		return nil, err
	}
	invoice, err := models.GetInvoice(ctx, invoiceId)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	summarySheet := "Summary"
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}

	// Summary sheet
	f.SetCellValue(summarySheet, "A1", "Invoice Number")
	f.SetCellValue(summarySheet, "B1", invoice.InvoiceNumber)
	f.SetCellValue(summarySheet, "A2", "Laboratory Id")
	f.SetCellValue(summarySheet, "B2", invoice.LaboratoryId)
	f.SetCellValue(summarySheet, "A3", "Status")
	f.SetCellValue(summarySheet, "B3", string(run.Status))
	f.SetCellValue(summarySheet, "A4", "Critical Findings")
	f.SetCellValue(summarySheet, "B4", run.CriticalCount)
	f.SetCellValue(summarySheet, "A5", "Opportunity Findings")
	f.SetCellValue(summarySheet, "B5", run.OpportunityCount)
	f.SetCellValue(summarySheet, "A6", "Informational Findings")
	f.SetCellValue(summarySheet, "B6", run.InformationalCount)
	f.SetCellValue(summarySheet, "A7", "Total Impact")
	f.SetCellValue(summarySheet, "B7", run.TotalImpact.StringFixed(2))
	f.SetCellValue(summarySheet, "A8", "Verified At")
	f.SetCellValue(summarySheet, "B8", run.CreatedAt.Format("2006-01-02 15:04:05"))
	f.SetCellValue(summarySheet, "A9", "Summary")
	f.SetCellValue(summarySheet, "B9", run.Summary)
	f.SetCellValue(summarySheet, "A10", "Finding Types")
	f.SetCellValue(summarySheet, "B10", strings.Join(anomalyTypeList(run.Anomalies), ", "))

	// Anomalies sheet
	anomalySheet := "Anomalies"
	if _, err := f.NewSheet(anomalySheet); err != nil {
		return nil, err
	}
	f.SetCellValue(anomalySheet, "A1", "Type")
	f.SetCellValue(anomalySheet, "B1", "Severity")
	f.SetCellValue(anomalySheet, "C1", "Description")
	f.SetCellValue(anomalySheet, "D1", "Impact")
	f.SetCellValue(anomalySheet, "E1", "Suggested Action")
	f.SetCellValue(anomalySheet, "F1", "Resolved")
	f.SetCellValue(anomalySheet, "G1", "Resolution Note")

	for i, anomaly := range run.Anomalies {
		row := fmt.Sprint(i + 2)
		f.SetCellValue(anomalySheet, "A"+row, string(anomaly.Type))
		f.SetCellValue(anomalySheet, "B"+row, string(anomaly.Severity))
		f.SetCellValue(anomalySheet, "C"+row, anomaly.Description)
		f.SetCellValue(anomalySheet, "D"+row, anomaly.Impact.StringFixed(2))
		f.SetCellValue(anomalySheet, "E"+row, utils.DereferencePtr(anomaly.SuggestedAction, ""))
		f.SetCellValue(anomalySheet, "F"+row, anomaly.Resolved)
		f.SetCellValue(anomalySheet, "G"+row, utils.DereferencePtr(anomaly.ResolutionNote, ""))
	}

	return f, nil
}
