package analytics

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"
)

// WriteXLSX renders a bucketed report as a spreadsheet: one summary row per
// bucket plus per-agent breakdown columns on a second sheet.
func WriteXLSX(w io.Writer, r *Report) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Cost Report"
	f.SetSheetName("Sheet1", sheet)

	headers := []string{"Period", "Start", "End", "Total Cost", "Calls", "Input Tokens", "Output Tokens"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return fmt.Errorf("writing report header: %w", err)
		}
	}

	for row, b := range r.Buckets {
		values := []any{
			b.Label,
			b.Start.Format(time.RFC3339),
			b.End.Format(time.RFC3339),
			b.TotalCost,
			b.TotalCalls,
			b.TotalInputTokens,
			b.TotalOutputTokens,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return fmt.Errorf("writing report row: %w", err)
			}
		}
	}

	totalRow := len(r.Buckets) + 3
	f.SetCellValue(sheet, fmt.Sprintf("A%d", totalRow), "Total")
	f.SetCellValue(sheet, fmt.Sprintf("D%d", totalRow), r.Total.TotalCost)
	f.SetCellValue(sheet, fmt.Sprintf("E%d", totalRow), r.Total.TotalCalls)
	f.SetCellValue(sheet, fmt.Sprintf("F%d", totalRow), r.Total.TotalInputTokens)
	f.SetCellValue(sheet, fmt.Sprintf("G%d", totalRow), r.Total.TotalOutputTokens)

	if err := writeBreakdownSheet(f, r); err != nil {
		return err
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

func writeBreakdownSheet(f *excelize.File, r *Report) error {
	const sheet = "By Agent"
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("creating breakdown sheet: %w", err)
	}

	f.SetCellValue(sheet, "A1", "Period")
	f.SetCellValue(sheet, "B1", "Agent")
	f.SetCellValue(sheet, "C1", "Cost")

	row := 2
	for _, b := range r.Buckets {
		for _, agent := range sortedKeys(b.CostByAgent) {
			f.SetCellValue(sheet, fmt.Sprintf("A%d", row), b.Label)
			f.SetCellValue(sheet, fmt.Sprintf("B%d", row), agent)
			f.SetCellValue(sheet, fmt.Sprintf("C%d", row), b.CostByAgent[agent])
			row++
		}
	}
	return nil
}
