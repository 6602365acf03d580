// Package exporter renders the consolidated dataset into spreadsheet form:
// an Excel workbook on disk and, when configured, a Google Sheets mirror.
package exporter

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/xuri/excelize/v2"

	"fadapulse/pkg/contracts/domain"
)

var sheetHeader = []string{"Category", "Subcategory", "Retail Units"}

// WorkbookWriter writes period data into Excel workbooks, one sheet per
// period named like "2024-01".
type WorkbookWriter struct {
	logger *slog.Logger
}

// NewWorkbookWriter creates a workbook writer.
func NewWorkbookWriter(logger *slog.Logger) *WorkbookWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkbookWriter{logger: logger}
}

// Write renders the given periods into the workbook at path, oldest period
// first. The file is replaced atomically; a failed write never leaves a
// truncated workbook behind.
func (w *WorkbookWriter) Write(path string, data map[domain.Period][]domain.ExtractionRecord) error {
	if len(data) == 0 {
		return fmt.Errorf("no periods to export")
	}

	periods := make([]domain.Period, 0, len(data))
	for p := range data {
		periods = append(periods, p)
	}
	sortPeriods(periods)

	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	for i, period := range periods {
		sheet := period.String()
		if i == 0 {
			// excelize starts with a default sheet; rename it.
			if err := f.SetSheetName("Sheet1", sheet); err != nil {
				return fmt.Errorf("rename first sheet: %w", err)
			}
		} else {
			if _, err := f.NewSheet(sheet); err != nil {
				return fmt.Errorf("create sheet %s: %w", sheet, err)
			}
		}

		if err := w.writeSheet(f, sheet, headerStyle, data[period]); err != nil {
			return fmt.Errorf("write sheet %s: %w", sheet, err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create export directory: %w", err)
	}

	tmp := path + ".tmp"
	if err := f.SaveAs(tmp); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace workbook: %w", err)
	}

	w.logger.Info("workbook written",
		"path", path,
		"periods", len(periods),
	)
	return nil
}

func (w *WorkbookWriter) writeSheet(f *excelize.File, sheet string, headerStyle int, records []domain.ExtractionRecord) error {
	sorted := make([]domain.ExtractionRecord, len(records))
	copy(sorted, records)
	domain.SortRecords(sorted)

	for col, title := range sheetHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, title); err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, cell, cell, headerStyle); err != nil {
			return err
		}
	}

	for i, rec := range sorted {
		rowNum := i + 2
		values := []interface{}{string(rec.Category), rec.Subcategory, rec.Value}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, rowNum)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return err
			}
		}
	}

	if err := f.SetColWidth(sheet, "A", "A", 18); err != nil {
		return err
	}
	return f.SetColWidth(sheet, "B", "B", 28)
}

// SheetRows renders one period's records as string rows, header included.
// Shared by the workbook writer and the Sheets mirror so both surfaces
// stay identical.
func SheetRows(records []domain.ExtractionRecord) [][]string {
	sorted := make([]domain.ExtractionRecord, len(records))
	copy(sorted, records)
	domain.SortRecords(sorted)

	rows := make([][]string, 0, len(sorted)+1)
	rows = append(rows, append([]string(nil), sheetHeader...))
	for _, rec := range sorted {
		rows = append(rows, []string{
			string(rec.Category),
			rec.Subcategory,
			fmt.Sprintf("%d", rec.Value),
		})
	}
	return rows
}

func sortPeriods(periods []domain.Period) {
	sort.Slice(periods, func(i, j int) bool {
		return periods[i].Before(periods[j])
	})
}
