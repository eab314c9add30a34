// Package google mirrors purchase records to a Google Sheets spreadsheet.
package google

import (
	"context"
	"fmt"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"labstock/internal/core"
	applog "labstock/internal/log"
)

type Config struct {
	CredentialsPath string
	SpreadsheetID   string
	SheetName       string
}

type Client struct {
	service       *sheets.Service
	spreadsheetID string
	sheetName     string
	logger        *applog.Logger
}

// NewClient builds a Sheets client from service-account credentials.
func NewClient(ctx context.Context, cfg Config, logger *applog.Logger) (*Client, error) {
	if cfg.SpreadsheetID == "" {
		return nil, fmt.Errorf("spreadsheet id is required")
	}

	var opts []option.ClientOption
	if cfg.CredentialsPath != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsPath))
	}

	service, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating sheets service: %w", err)
	}

	return &Client{
		service:       service,
		spreadsheetID: cfg.SpreadsheetID,
		sheetName:     cfg.SheetName,
		logger:        logger.WithComponent(applog.ComponentSheets),
	}, nil
}

// AppendPurchases appends one row per record to the configured sheet.
func (c *Client) AppendPurchases(ctx context.Context, records []core.PurchaseRecord) error {
	if len(records) == 0 {
		return nil
	}

	values := make([][]interface{}, 0, len(records))
	for _, rec := range records {
		values = append(values, []interface{}{
			rec.Date.String(),
			rec.Vendor,
			string(rec.Category),
			rec.ItemName,
			rec.CatalogNumber,
			rec.Quantity,
			core.RawCents(rec.UnitPrice.Cents),
			core.RawCents(rec.Amount.Cents),
			rec.Currency,
			rec.ProjectName,
			rec.Notes,
		})
	}

	valueRange := &sheets.ValueRange{Values: values}
	_, err := c.service.Spreadsheets.Values.
		Append(c.spreadsheetID, c.sheetName+"!A:K", valueRange).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("appending %d rows to sheet %s: %w", len(values), c.sheetName, err)
	}

	c.logger.Info("mirrored purchases to sheet",
		applog.FieldCount, len(values),
		"sheet", c.sheetName,
	)
	return nil
}
