package sheetsink

import (
	"context"
	"fmt"
	"regexp"
	"strconv"

	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	drive "google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
	sheets "google.golang.org/api/sheets/v4"
)

const (
	spreadsheetMimeType = "application/vnd.google-apps.spreadsheet"
	appendRange         = "A:J"
)

// headerRow is written once when the ledger spreadsheet is first created.
var headerRow = []string{
	"Processing Date", "Email Date", "Sender", "Sender Name", "Subject",
	"Invoice Number", "Filename", "Archive ID", "Archive URL", "Size",
}

// rowNumberPattern pulls the row out of an updated range like "Sheet1!A5:J5".
var rowNumberPattern = regexp.MustCompile(`![A-Z]+(\d+)`)

// Ledger implements the scanner LedgerSink on Google Sheets. The Drive
// service is used only to locate an existing spreadsheet by name.
type Ledger struct {
	sheets *sheets.Service
	drive  *drive.Service
}

// New creates a Sheets ledger sink authenticated by the given token source.
func New(ctx context.Context, tokens oauth2.TokenSource) (*Ledger, error) {
	sheetsService, err := sheets.NewService(ctx, option.WithTokenSource(tokens))
	if err != nil {
		return nil, fmt.Errorf("failed to create Sheets service: %w", err)
	}
	driveService, err := drive.NewService(ctx, option.WithTokenSource(tokens))
	if err != nil {
		return nil, fmt.Errorf("failed to create Drive service: %w", err)
	}
	return &Ledger{sheets: sheetsService, drive: driveService}, nil
}

// EnsureLedger finds the named spreadsheet or creates it with a header
// row, returning the spreadsheet id.
func (l *Ledger) EnsureLedger(ctx context.Context, name string) (string, error) {
	q := fmt.Sprintf("name = '%s' and mimeType = '%s' and trashed = false", name, spreadsheetMimeType)
	list, err := l.drive.Files.List().Q(q).Fields("files(id)").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to search for spreadsheet %q: %w", name, err)
	}
	if len(list.Files) > 0 {
		return list.Files[0].Id, nil
	}

	created, err := l.sheets.Spreadsheets.Create(&sheets.Spreadsheet{
		Properties: &sheets.SpreadsheetProperties{Title: name},
	}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to create spreadsheet %q: %w", name, err)
	}

	if _, err := l.appendValues(ctx, created.SpreadsheetId, headerRow); err != nil {
		return "", fmt.Errorf("failed to write ledger header: %w", err)
	}

	logrus.Infof("Created ledger spreadsheet %q (%s)", name, created.SpreadsheetId)
	return created.SpreadsheetId, nil
}

// AppendRow appends one document row and returns its 1-based row number.
func (l *Ledger) AppendRow(ctx context.Context, ledgerID string, row []string) (int64, error) {
	response, err := l.appendValues(ctx, ledgerID, row)
	if err != nil {
		return 0, fmt.Errorf("failed to append ledger row: %w", err)
	}
	if response.Updates == nil {
		return 0, fmt.Errorf("ledger append returned no update range")
	}
	return parseRowNumber(response.Updates.UpdatedRange)
}

func (l *Ledger) appendValues(ctx context.Context, spreadsheetID string, row []string) (*sheets.AppendValuesResponse, error) {
	values := make([]interface{}, len(row))
	for i, cell := range row {
		values[i] = cell
	}

	return l.sheets.Spreadsheets.Values.
		Append(spreadsheetID, appendRange, &sheets.ValueRange{Values: [][]interface{}{values}}).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
}

func parseRowNumber(updatedRange string) (int64, error) {
	m := rowNumberPattern.FindStringSubmatch(updatedRange)
	if m == nil {
		return 0, fmt.Errorf("cannot parse row number from range %q", updatedRange)
	}
	row, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("cannot parse row number from range %q: %w", updatedRange, err)
	}
	return row, nil
}
