package extract

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"fadapulse/pkg/contracts/domain"
)

// ParseError means a document yielded no usable data at all. Partial
// extraction is not an error; it surfaces as warnings and an unmapped count.
type ParseError struct {
	Path   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %s", e.Path, e.Reason)
}

// Extraction is the outcome for one document.
type Extraction struct {
	Records  []domain.ExtractionRecord
	Unmapped int
	Warnings []string
}

// Extractor maps document table rows onto the category taxonomy.
type Extractor struct {
	source RowSource
	logger *slog.Logger
}

// NewExtractor creates an Extractor reading rows from source.
func NewExtractor(source RowSource, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{source: source, logger: logger}
}

var headerMonthPattern = regexp.MustCompile(`(JAN|FEB|MAR|APR|MAY|JUN|JUL|AUG|SEP|OCT|NOV|DEC)[A-Z]*['\s\-]*(\d{2,4})`)

var monthAbbrevs = []string{
	"JAN", "FEB", "MAR", "APR", "MAY", "JUN",
	"JUL", "AUG", "SEP", "OCT", "NOV", "DEC",
}

// Extract reads the document at path and returns every category figure for
// period. Rows whose label is outside the vocabulary are counted, not
// errored. A document with zero mapped rows fails with ParseError.
func (e *Extractor) Extract(ctx context.Context, path string, period domain.Period) (Extraction, error) {
	rows, err := e.source.Rows(ctx, path)
	if err != nil {
		return Extraction{}, err
	}
	if len(rows) == 0 {
		return Extraction{}, &ParseError{Path: path, Reason: "no table rows found"}
	}

	targetCol, headerWidth := findPeriodColumn(rows, period)

	var out Extraction
	seen := make(map[string]struct{})

	for _, row := range rows {
		if len(row.Cells) < 2 {
			continue
		}

		label := row.Cells[0]
		category, subcategory, ok := MatchLabel(label)
		if !ok {
			if looksLikeDataRow(row) {
				out.Unmapped++
			}
			continue
		}

		value, ok := pickValue(row, targetCol, headerWidth)
		if !ok {
			warning := fmt.Sprintf("row %q matched %s but carried no numeric value", strings.TrimSpace(label), category)
			out.Warnings = append(out.Warnings, warning)
			continue
		}

		record := domain.ExtractionRecord{
			Period:      period,
			Category:    category,
			Subcategory: subcategory,
			Value:       value,
			Unit:        "units",
		}

		// Multi-page tables repeat summary rows; keep the first occurrence.
		if _, dup := seen[record.Key()]; dup {
			out.Warnings = append(out.Warnings, fmt.Sprintf("duplicate row for %s, keeping first", record.Key()))
			continue
		}
		seen[record.Key()] = struct{}{}
		out.Records = append(out.Records, record)
	}

	if len(out.Records) == 0 {
		return Extraction{}, &ParseError{Path: path, Reason: "no rows matched the category vocabulary"}
	}

	domain.SortRecords(out.Records)

	e.logger.DebugContext(ctx, "document extracted",
		"path", path,
		"period", period.String(),
		"records", len(out.Records),
		"unmapped", out.Unmapped,
		"warnings", len(out.Warnings),
	)
	return out, nil
}

// findPeriodColumn locates the column whose header names the target period,
// e.g. "JAN'24" for January 2024. Returns -1 when no header row is found;
// callers then fall back to the first numeric cell per row.
func findPeriodColumn(rows []Row, period domain.Period) (col, width int) {
	want := monthAbbrevs[period.Month-1]
	wantYear2 := period.Year % 100

	for _, row := range rows {
		for i, cell := range row.Cells {
			if i == 0 {
				continue
			}
			m := headerMonthPattern.FindStringSubmatch(strings.ToUpper(cell))
			if m == nil || m[1] != want {
				continue
			}
			year, _ := strconv.Atoi(m[2])
			if year >= 100 {
				year %= 100
			}
			if year == wantYear2 {
				return i, len(row.Cells)
			}
		}
	}
	return -1, 0
}

// pickValue chooses the figure for a data row. When a header column is
// known and the row has the same shape, the aligned cell wins; otherwise
// the first parseable cell after the label.
func pickValue(row Row, targetCol, headerWidth int) (int64, bool) {
	if targetCol > 0 && len(row.Cells) == headerWidth {
		if v, ok := ParseValue(row.Cells[targetCol]); ok {
			return v, true
		}
	}
	for _, cell := range row.Cells[1:] {
		if v, ok := ParseValue(cell); ok {
			return v, true
		}
	}
	return 0, false
}

// looksLikeDataRow filters out prose and headers when counting unmapped
// rows: only rows with at least one numeric cell count.
func looksLikeDataRow(row Row) bool {
	for _, cell := range row.Cells[1:] {
		if _, ok := ParseValue(cell); ok {
			return true
		}
	}
	return false
}
