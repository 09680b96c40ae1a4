package google

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"pocketbalance/internal/core"
	"pocketbalance/internal/export"
	"pocketbalance/internal/log"
	ports "pocketbalance/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// DefaultSheetName is used when Config.SheetName is empty.
const DefaultSheetName = "Transactions"

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
	logger        *log.Logger
}

// Ensure interface conformance
var (
	_ ports.Mirror       = (*Client)(nil)
	_ ports.MirrorReader = (*Client)(nil)
)

// Config selects the spreadsheet and the service account used to reach it.
// CredentialsJSON wins over CredentialsFile.
type Config struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
}

// New creates a Sheets client authenticated with service account
// credentials. Extra options are appended after the credentials, so tests
// can point the client at a fake endpoint.
func New(ctx context.Context, cfg Config, logger *log.Logger, opts ...goption.ClientOption) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentSheets)

	base, err := credentialOptions(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	svc, err := gsheet.NewService(ctx, append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return newClient(svc, cfg, logger), nil
}

// NewWithService wraps an already configured service.
func NewWithService(svc *gsheet.Service, cfg Config, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.Discard()
	}
	return newClient(svc, cfg, logger.WithComponent(log.ComponentSheets))
}

func newClient(svc *gsheet.Service, cfg Config, logger *log.Logger) *Client {
	name := strings.TrimSpace(cfg.SheetName)
	if name == "" {
		name = DefaultSheetName
	}
	return &Client{
		svc:           svc,
		spreadsheetID: strings.TrimSpace(cfg.SpreadsheetID),
		sheetName:     name,
		logger:        logger,
	}
}

func credentialOptions(ctx context.Context, cfg Config, logger *log.Logger) ([]goption.ClientOption, error) {
	var credentialsJSON []byte
	switch {
	case strings.TrimSpace(cfg.CredentialsJSON) != "":
		logger.InfoContext(ctx, "Using inline JSON credentials")
		credentialsJSON = []byte(cfg.CredentialsJSON)
	case strings.TrimSpace(cfg.CredentialsFile) != "":
		data, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		logger.InfoContext(ctx, "Read credentials file", "path", cfg.CredentialsFile, "size", len(data))
		credentialsJSON = data
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_CREDENTIALS_JSON or GOOGLE_CREDENTIALS_FILE)")
	}
	return []goption.ClientOption{
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope),
		goption.WithHTTPClient(newHTTPClientWithPooling()),
	}, nil
}

// newHTTPClientWithPooling creates an HTTP client tuned for the Sheets API:
// a small idle pool per host and bounded timeouts.
func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   5,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{Transport: transport, Timeout: 60 * time.Second}
}

func (c *Client) columnsRange(rows string) string {
	last := string(rune('A' + len(export.Columns) - 1))
	return fmt.Sprintf("%s!A%s:%s", c.sheetName, rows, last)
}

// EnsureHeader writes the column header to row 1 when it is missing.
func (c *Client) EnsureHeader(ctx context.Context) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	rng := c.columnsRange("1")
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read header %s: %w", rng, err)
	}
	if len(resp.Values) > 0 && len(resp.Values[0]) > 0 {
		return nil
	}
	header := make([]any, len(export.Columns))
	for i, col := range export.Columns {
		header[i] = col
	}
	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, &gsheet.ValueRange{Values: [][]any{header}}).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write header %s: %w", rng, err)
	}
	c.logger.InfoContext(ctx, "Wrote mirror header", "sheet", c.sheetName)
	return nil
}

// AppendTransaction appends tx after the last row in export column order.
func (c *Client) AppendTransaction(ctx context.Context, tx core.Transaction) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	rng := c.columnsRange("1")
	vr := &gsheet.ValueRange{Values: [][]any{toRow(tx)}}
	_, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append to sheet %s: %w", c.sheetName, err)
	}
	c.logger.DebugContext(ctx, "Mirrored transaction",
		log.FieldTxID, tx.ID,
		log.FieldTxType, tx.Type.String())
	return nil
}

// Clear empties every row below the header.
func (c *Client) Clear(ctx context.Context) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	rng := c.columnsRange("2")
	_, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, rng, &gsheet.ClearValuesRequest{}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("clear %s: %w", rng, err)
	}
	c.logger.InfoContext(ctx, "Cleared mirror", "sheet", c.sheetName)
	return nil
}

// Transactions reads back the mirrored rows. Rows that do not parse are
// skipped.
func (c *Client) Transactions(ctx context.Context) ([]core.Transaction, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	rng := c.columnsRange("2")
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	out := make([]core.Transaction, 0, len(resp.Values))
	for _, row := range resp.Values {
		if tx, ok := parseRow(toStrings(row)); ok {
			out = append(out, tx)
		}
	}
	return out, nil
}

// toRow lays tx out in export.Columns order.
func toRow(tx core.Transaction) []any {
	return []any{tx.ID, tx.Type.String(), tx.Description, tx.Amount, string(tx.Category), tx.Date}
}

func parseRow(cols []string) (core.Transaction, bool) {
	if len(cols) < 4 {
		return core.Transaction{}, false
	}
	amount, err := strconv.ParseFloat(strings.ReplaceAll(safeGet(cols, 3), ",", "."), 64)
	if err != nil {
		return core.Transaction{}, false
	}
	tx := core.Transaction{
		ID:          safeGet(cols, 0),
		Type:        core.Kind(safeGet(cols, 1)),
		Description: safeGet(cols, 2),
		Amount:      amount,
		Category:    core.Category(safeGet(cols, 4)),
		Date:        safeGet(cols, 5),
	}
	if tx.ID == "" || !tx.Type.IsValid() {
		return core.Transaction{}, false
	}
	// hand-edited dates are kept as typed unless they parse
	if at, err := core.ParseDate(tx.Date); err == nil {
		tx.Date = core.FormatDate(at)
	}
	return tx, true
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}
