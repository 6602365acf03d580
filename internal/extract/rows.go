package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Row is one horizontal line of a document table, split into cells.
type Row struct {
	Cells []string
}

// RowSource turns a document on disk into table rows. Decoupled from the
// extractor so tests can feed synthetic rows.
type RowSource interface {
	Rows(ctx context.Context, path string) ([]Row, error)
}

// cellGapThreshold is the horizontal gap, in points, that separates two
// text fragments into different cells. Tables in the releases use generous
// column spacing, so a small threshold is enough.
const cellGapThreshold = 6.0

// PDFRowSource reads rows from PDF documents grouping text fragments by
// vertical position.
type PDFRowSource struct{}

// NewPDFRowSource creates a PDF-backed row source.
func NewPDFRowSource() *PDFRowSource {
	return &PDFRowSource{}
}

// Rows extracts every text row from every page, in page order.
func (s *PDFRowSource) Rows(ctx context.Context, path string) ([]Row, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open document %s: %w", path, err)
	}
	defer f.Close()

	var rows []Row
	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}

		pageRows, err := page.GetTextByRow()
		if err != nil {
			// A single unreadable page should not sink the document.
			continue
		}

		for _, pr := range pageRows {
			row := splitRow(pr)
			if len(row.Cells) > 0 {
				rows = append(rows, row)
			}
		}
	}

	return rows, nil
}

// splitRow groups a line's text fragments into cells by horizontal gaps.
func splitRow(pr *pdf.Row) Row {
	var cells []string
	var current strings.Builder
	var prevEnd float64

	flush := func() {
		cell := strings.TrimSpace(current.String())
		if cell != "" {
			cells = append(cells, cell)
		}
		current.Reset()
	}

	for i, text := range pr.Content {
		if i > 0 && text.X-prevEnd > cellGapThreshold {
			flush()
		}
		current.WriteString(text.S)
		prevEnd = text.X + text.W
	}
	flush()

	return Row{Cells: cells}
}
