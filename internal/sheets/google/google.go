// Package google stores expenses in a Google Sheets spreadsheet. The same
// client serves as primary record store and as the mirror target of the
// sync worker.
package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"gastos/internal/core"
	"gastos/internal/log"
	"gastos/internal/store"
)

// DefaultSheetName is used when no sheet name is configured.
const DefaultSheetName = "Expenses"

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheet         string
	logger        *log.Logger

	// Sheets has no transactions; writes are serialized so row lookups stay
	// valid until the write that depends on them.
	mu      sync.Mutex
	sheetID *int64
}

var _ store.Store = (*Client)(nil)

// New creates a Sheets client authenticated with service account
// credentials taken from GOOGLE_SERVICE_ACCOUNT_JSON,
// GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_APPLICATION_CREDENTIALS.
func New(ctx context.Context, spreadsheetID, sheetName string) (*Client, error) {
	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return NewWithService(svc, spreadsheetID, sheetName)
}

// NewWithService wraps an existing service, e.g. one built with
// option.WithEndpoint for tests.
func NewWithService(svc *gsheet.Service, spreadsheetID, sheetName string) (*Client, error) {
	spreadsheetID = strings.TrimSpace(spreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	if svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	sheetName = strings.TrimSpace(sheetName)
	if sheetName == "" {
		sheetName = DefaultSheetName
	}
	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheet:         sheetName,
		logger:        log.Default(log.ComponentSheets),
	}, nil
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	switch {
	case serviceAccountJSON != "":
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		b, err := os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = b
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return svc, nil
}

// EnsureHeader writes the header row when the sheet has none.
func (c *Client) EnsureHeader(ctx context.Context) error {
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, a1(c.sheet, "A1:E1")).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read header: %w", err)
	}
	if len(resp.Values) > 0 && isHeader(resp.Values[0]) {
		return nil
	}
	return c.writeRow(ctx, 1, header)
}

// List reads every data row. Rows that do not decode are skipped.
func (c *Client) List(ctx context.Context) ([]core.Expense, error) {
	rng := a1(c.sheet, "A2:E")
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	out := make([]core.Expense, 0, len(resp.Values))
	for i, row := range resp.Values {
		if len(row) == 0 {
			continue
		}
		e, err := rowToExpense(row)
		if err != nil {
			c.logger.WarnContext(ctx, "Skipping invalid sheet row", "row", i+2, log.FieldError, err)
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// Create appends e under a fresh uuid.
func (c *Client) Create(ctx context.Context, e core.Expense) (core.Expense, error) {
	if e.ID != "" {
		return core.Expense{}, store.ErrIDAssigned
	}
	if err := e.Validate(); err != nil {
		return core.Expense{}, fmt.Errorf("validation failed: %w", err)
	}
	e.ID = uuid.NewString()

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.appendRow(ctx, e); err != nil {
		return core.Expense{}, err
	}
	return e, nil
}

func (c *Client) Update(ctx context.Context, e core.Expense) (core.Expense, error) {
	if err := e.Validate(); err != nil {
		return core.Expense{}, fmt.Errorf("validation failed: %w", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	row, err := c.rowOf(ctx, e.ID)
	if err != nil {
		return core.Expense{}, err
	}
	if row == 0 {
		return core.Expense{}, store.ErrNotFound
	}
	if err := c.writeRow(ctx, row, expenseToRow(e)); err != nil {
		return core.Expense{}, err
	}
	return e, nil
}

// Delete removes the row holding id, shifting later rows up.
func (c *Client) Delete(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	row, err := c.rowOf(ctx, id)
	if err != nil {
		return err
	}
	if row == 0 {
		return store.ErrNotFound
	}
	sheetID, err := c.lookupSheetID(ctx)
	if err != nil {
		return err
	}
	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			DeleteDimension: &gsheet.DeleteDimensionRequest{
				Range: &gsheet.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "ROWS",
					StartIndex: int64(row - 1),
					EndIndex:   int64(row),
					// The first tab usually has id 0, which omitempty would drop.
					ForceSendFields: []string{"SheetId"},
				},
			},
		}},
	}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("delete row %d: %w", row, err)
	}
	return nil
}

// Upsert writes e to its existing row, or appends it keeping its id.
func (c *Client) Upsert(ctx context.Context, e core.Expense) error {
	if e.ID == "" {
		return errors.New("upsert: expense has no id")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	row, err := c.rowOf(ctx, e.ID)
	if err != nil {
		return err
	}
	if row == 0 {
		return c.appendRow(ctx, e)
	}
	return c.writeRow(ctx, row, expenseToRow(e))
}

// ReplaceAll rewrites the sheet so that it holds exactly records, in order.
func (c *Client) ReplaceAll(ctx context.Context, records []core.Expense) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, a1(c.sheet, "A2:E"), &gsheet.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear sheet: %w", err)
	}

	values := make([][]any, 0, len(records)+1)
	values = append(values, header)
	for _, e := range records {
		values = append(values, expenseToRow(e))
	}
	rng := a1(c.sheet, fmt.Sprintf("A1:E%d", len(values)))
	vr := &gsheet.ValueRange{Values: values}
	if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return fmt.Errorf("write %s: %w", rng, err)
	}
	c.logger.InfoContext(ctx, "Sheet replaced", log.FieldCount, len(records))
	return nil
}

func (c *Client) appendRow(ctx context.Context, e core.Expense) error {
	vr := &gsheet.ValueRange{Values: [][]any{expenseToRow(e)}}
	_, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, a1(c.sheet, "A:E"), vr).
		ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append to %s: %w", c.sheet, err)
	}
	return nil
}

func (c *Client) writeRow(ctx context.Context, row int, values []any) error {
	rng := rowRange(c.sheet, row)
	vr := &gsheet.ValueRange{Values: [][]any{values}}
	if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return fmt.Errorf("write %s: %w", rng, err)
	}
	return nil
}

// rowOf returns the 1-based row of id, or 0 when absent.
func (c *Client) rowOf(ctx context.Context, id string) (int, error) {
	if id == "" {
		return 0, nil
	}
	rng := a1(c.sheet, "A:A")
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", rng, err)
	}
	return findRow(resp.Values, id), nil
}

// lookupSheetID resolves the numeric id of the sheet tab, needed by
// structural requests such as row deletion.
func (c *Client) lookupSheetID(ctx context.Context) (int64, error) {
	if c.sheetID != nil {
		return *c.sheetID, nil
	}
	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("get spreadsheet: %w", err)
	}
	for _, s := range ss.Sheets {
		if s.Properties != nil && s.Properties.Title == c.sheet {
			id := s.Properties.SheetId
			c.sheetID = &id
			return id, nil
		}
	}
	return 0, fmt.Errorf("sheet %q not found in spreadsheet", c.sheet)
}
