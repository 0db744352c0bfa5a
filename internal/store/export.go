package store

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const exportSheet = "Applications"

var exportHeaders = []string{
	"Application ID",
	"Submitted At",
	"Candidate Name",
	"Candidate Email",
	"Job Title",
	"Company",
	"Match Score",
	"Feedback",
	"Status",
}

// ExportXLSX writes applications as a spreadsheet, one row per application.
func ExportXLSX(w io.Writer, apps []Application) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), exportSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	for i, h := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(exportSheet, cell, h); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}

	for i, app := range apps {
		row := i + 2
		values := []any{
			app.ID,
			app.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
			app.CandidateName,
			app.CandidateEmail,
			app.JobTitle,
			app.Company,
			app.Score,
			app.Feedback,
			app.Status,
		}
		cell, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(exportSheet, cell, &values); err != nil {
			return fmt.Errorf("write row %d: %w", row, err)
		}
	}

	if err := f.SetColWidth(exportSheet, "A", "A", 38); err != nil {
		return err
	}
	if err := f.SetColWidth(exportSheet, "H", "H", 80); err != nil {
		return err
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
