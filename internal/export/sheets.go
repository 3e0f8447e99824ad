// Package export appends ledger events to a Google Sheets spreadsheet.
package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"hucha/internal/events"
)

type SheetsExporter struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
}

// Options configures the exporter. Exactly one of ServiceAccountJSON and
// ServiceAccountFile must carry the credentials.
type Options struct {
	SpreadsheetID      string
	SheetName          string
	ServiceAccountJSON string
	ServiceAccountFile string
}

func NewSheetsExporter(ctx context.Context, opts Options) (*SheetsExporter, error) {
	if strings.TrimSpace(opts.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet ID")
	}
	sheetName := strings.TrimSpace(opts.SheetName)
	if sheetName == "" {
		sheetName = "Movements"
	}

	var credentialsJSON []byte
	switch {
	case opts.ServiceAccountJSON != "":
		credentialsJSON = []byte(opts.ServiceAccountJSON)
	case opts.ServiceAccountFile != "":
		data, err := os.ReadFile(opts.ServiceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = data
	default:
		return nil, errors.New("missing service account credentials")
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	return &SheetsExporter{
		svc:           svc,
		spreadsheetID: opts.SpreadsheetID,
		sheetName:     sheetName,
	}, nil
}

// Export appends one row per event. Rows carry enough columns to rebuild a
// movement log outside the ledger.
func (e *SheetsExporter) Export(ctx context.Context, ev events.Event) error {
	occurred := ev.OccurredAt
	if occurred.IsZero() {
		occurred = ev.Timestamp
	}

	row := []any{
		occurred.Format(time.RFC3339),
		string(ev.Type),
		ev.AccountName,
		ev.CategoryName,
		ev.GoalName,
		ev.Kind,
		ev.Amount,
		ev.Description,
	}

	rng := fmt.Sprintf("%s!A:H", e.sheetName)
	vr := &gsheet.ValueRange{Values: [][]any{row}}

	_, err := e.svc.Spreadsheets.Values.Append(e.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append to sheet %s: %w", e.sheetName, err)
	}
	return nil
}
