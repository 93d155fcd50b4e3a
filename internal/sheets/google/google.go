package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/Gustavofrb/relatorio-mensal/internal/core"
	"github.com/Gustavofrb/relatorio-mensal/internal/report"
	ports "github.com/Gustavofrb/relatorio-mensal/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

const defaultPrefix = "Fechamento"

// Ensure interface conformance
var _ ports.SummaryExporter = (*Exporter)(nil)

// Config selects the spreadsheet and the service account used to write it.
type Config struct {
	SpreadsheetID   string
	CredentialsJSON string
	CredentialsFile string
	SheetPrefix     string
}

// Exporter writes the financial report of a month to its own tab.
type Exporter struct {
	svc           *gsheet.Service
	spreadsheetID string
	prefix        string
}

// New creates an exporter authenticated with a service account. Extra client
// options are appended after the credentials.
func New(ctx context.Context, cfg Config, opts ...goption.ClientOption) (*Exporter, error) {
	spreadsheetID := strings.TrimSpace(cfg.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}

	var clientOpts []goption.ClientOption
	if len(opts) == 0 {
		credentials, err := readCredentials(ctx, cfg)
		if err != nil {
			return nil, err
		}
		clientOpts = append(clientOpts,
			goption.WithCredentialsJSON(credentials),
			goption.WithScopes(gsheet.SpreadsheetsScope))
	}
	clientOpts = append(clientOpts, opts...)

	svc, err := gsheet.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	prefix := strings.TrimSpace(cfg.SheetPrefix)
	if prefix == "" {
		prefix = defaultPrefix
	}

	slog.InfoContext(ctx, "Google Sheets exporter ready", "spreadsheet_id", spreadsheetID, "prefix", prefix)
	return &Exporter{svc: svc, spreadsheetID: spreadsheetID, prefix: prefix}, nil
}

// readCredentials loads the service account JSON, inline first.
func readCredentials(ctx context.Context, cfg Config) ([]byte, error) {
	inline := strings.TrimSpace(cfg.CredentialsJSON)
	file := strings.TrimSpace(cfg.CredentialsFile)

	switch {
	case inline != "":
		slog.InfoContext(ctx, "Using inline JSON credentials")
		return []byte(inline), nil
	case file != "":
		slog.InfoContext(ctx, "Reading credentials from file", "path", file)
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return data, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE)")
	}
}

// Export replaces the content of the month tab with the financial report.
func (e *Exporter) Export(ctx context.Context, month string, rows []core.MonthlySummary) (string, error) {
	if e.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	title := SheetTitle(e.prefix, month)
	if err := e.ensureSheet(ctx, title); err != nil {
		return "", err
	}

	quoted := quoteTitle(title)
	if _, err := e.svc.Spreadsheets.Values.Clear(e.spreadsheetID, quoted, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return "", fmt.Errorf("clear sheet %s: %w", title, err)
	}

	values := Values(rows)
	rng := fmt.Sprintf("%s!A1", quoted)
	if _, err := e.svc.Spreadsheets.Values.Update(e.spreadsheetID, rng, &gsheet.ValueRange{Values: values}).
		ValueInputOption("USER_ENTERED").Context(ctx).Do(); err != nil {
		return "", fmt.Errorf("write sheet %s: %w", title, err)
	}

	ref := fmt.Sprintf("%s!A1:%s%d", quoted, columnLetter(len(report.FinancialHeader)), len(values))
	slog.InfoContext(ctx, "Exported monthly summary to Google Sheets", "month", month, "rows", len(rows), "ref", ref)
	return ref, nil
}

// ensureSheet adds the tab when the spreadsheet does not have it yet.
func (e *Exporter) ensureSheet(ctx context.Context, title string) error {
	ss, err := e.svc.Spreadsheets.Get(e.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read spreadsheet: %w", err)
	}
	for _, sh := range ss.Sheets {
		if sh.Properties != nil && sh.Properties.Title == title {
			return nil
		}
	}

	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: title}},
		}},
	}
	if _, err := e.svc.Spreadsheets.BatchUpdate(e.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("add sheet %s: %w", title, err)
	}
	slog.InfoContext(ctx, "Created sheet", "title", title)
	return nil
}
