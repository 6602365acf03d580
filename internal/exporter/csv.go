package exporter

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"fadapulse/pkg/contracts/domain"
)

var csvHeader = []string{"Month", "Year", "Category", "Subcategory", "Retail Units", "Unit"}

// CSVWriter renders the consolidated dataset as a single flat CSV file,
// one row per record. The workbook remains the primary artifact; the CSV
// exists for downstream tooling that cannot read xlsx.
type CSVWriter struct {
	logger *slog.Logger
}

// NewCSVWriter creates a CSV writer.
func NewCSVWriter(logger *slog.Logger) *CSVWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CSVWriter{logger: logger}
}

// Write renders the given periods to the CSV at path, oldest period first,
// records sorted within each period. The file starts with a UTF-8 BOM so
// Excel opens it correctly, and is replaced atomically.
func (w *CSVWriter) Write(path string, data map[domain.Period][]domain.ExtractionRecord) error {
	if len(data) == 0 {
		return fmt.Errorf("no periods to export")
	}

	periods := make([]domain.Period, 0, len(data))
	for p := range data {
		periods = append(periods, p)
	}
	sortPeriods(periods)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create export directory: %w", err)
	}

	tmp := path + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create csv: %w", err)
	}

	if err := w.writeAll(file, periods, data); err != nil {
		file.Close()
		os.Remove(tmp)
		return err
	}
	if err := file.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close csv: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace csv: %w", err)
	}

	w.logger.Info("csv written",
		"path", path,
		"periods", len(periods),
	)
	return nil
}

func (w *CSVWriter) writeAll(file *os.File, periods []domain.Period, data map[domain.Period][]domain.ExtractionRecord) error {
	// BOM keeps Excel from mis-detecting the encoding.
	if _, err := file.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
		return fmt.Errorf("write BOM: %w", err)
	}

	cw := csv.NewWriter(file)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, period := range periods {
		sorted := make([]domain.ExtractionRecord, len(data[period]))
		copy(sorted, data[period])
		domain.SortRecords(sorted)

		for _, rec := range sorted {
			row := []string{
				fmt.Sprintf("%d", period.Month),
				fmt.Sprintf("%d", period.Year),
				string(rec.Category),
				rec.Subcategory,
				fmt.Sprintf("%d", rec.Value),
				rec.Unit,
			}
			if err := cw.Write(row); err != nil {
				return fmt.Errorf("write record for %s: %w", period, err)
			}
		}
	}

	cw.Flush()
	return cw.Error()
}
