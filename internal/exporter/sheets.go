package exporter

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"fadapulse/pkg/contracts/domain"
)

// SheetsMirror pushes the consolidated dataset into a Google Sheets
// spreadsheet, one tab per period. Optional: only constructed when
// credentials are configured.
type SheetsMirror struct {
	svc           *sheets.Service
	spreadsheetID string
	logger        *slog.Logger
}

// NewSheetsMirror builds a mirror authenticated with a service-account
// credentials file.
func NewSheetsMirror(ctx context.Context, credentialsFile, spreadsheetID string, logger *slog.Logger) (*SheetsMirror, error) {
	if logger == nil {
		logger = slog.Default()
	}

	svc, err := sheets.NewService(ctx, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	return &SheetsMirror{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		logger:        logger,
	}, nil
}

// Mirror uploads every period as its own tab. Tabs are created on demand;
// existing tab content is overwritten. Periods upload concurrently with a
// small cap to stay inside the Sheets API quota.
func (m *SheetsMirror) Mirror(ctx context.Context, data map[domain.Period][]domain.ExtractionRecord) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)

	for period, records := range data {
		period, records := period, records
		g.Go(func() error {
			return m.mirrorPeriod(ctx, period, records)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	m.logger.InfoContext(ctx, "dataset mirrored to sheets",
		"spreadsheet_id", m.spreadsheetID,
		"periods", len(data),
	)
	return nil
}

func (m *SheetsMirror) mirrorPeriod(ctx context.Context, period domain.Period, records []domain.ExtractionRecord) error {
	tab := period.String()

	if err := m.ensureTab(ctx, tab); err != nil {
		return fmt.Errorf("ensure tab %s: %w", tab, err)
	}

	rows := SheetRows(records)
	values := make([][]interface{}, len(rows))
	for i, row := range rows {
		cells := make([]interface{}, len(row))
		for j, cell := range row {
			cells[j] = cell
		}
		values[i] = cells
	}

	_, err := m.svc.Spreadsheets.Values.Update(
		m.spreadsheetID,
		fmt.Sprintf("%s!A1", tab),
		&sheets.ValueRange{Values: values},
	).ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("update tab %s: %w", tab, err)
	}

	return nil
}

func (m *SheetsMirror) ensureTab(ctx context.Context, tab string) error {
	_, err := m.svc.Spreadsheets.BatchUpdate(m.spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			AddSheet: &sheets.AddSheetRequest{
				Properties: &sheets.SheetProperties{Title: tab},
			},
		}},
	}).Context(ctx).Do()

	if err != nil && strings.Contains(err.Error(), "already exists") {
		return nil
	}
	return err
}
