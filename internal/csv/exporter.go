package csv

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"labstock/internal/core"
)

type Format string

const (
	// FormatCSV is a comma-separated file download: UTF-8 BOM prefix for
	// spreadsheet compatibility, string columns always double-quoted.
	FormatCSV Format = "csv"
	// FormatTSV is tab-separated clipboard text: no BOM, no quoting.
	FormatTSV Format = "tsv"
)

type NumberMode string

const (
	// NumbersFormatted renders amounts with thousands separators, matching
	// the UI display. Not machine-parseable without un-formatting.
	NumbersFormatted NumberMode = "formatted"
	// NumbersRaw renders plain decimals so an exported file re-imports
	// losslessly.
	NumbersRaw NumberMode = "raw"
)

type ExportOptions struct {
	Format  Format
	Numbers NumberMode
}

const utf8BOM = "\xEF\xBB\xBF"

// Column set is fixed; reordering would break existing spreadsheet
// workflows downstream. Raw mode appends the machine columns so an
// exported file carries everything the importer needs to round-trip.
var (
	exportHeader = []string{
		"No.", "Item", "Vendor", "Catalog No.", "Specification", "Grade",
		"Unit Price", "Currency", "Qty", "Line Total", "Notes",
	}
	rawExtraHeader = []string{"Date", "Category", "Unit", "Project"}
)

// Export serializes the record list in the fixed export column order.
func Export(w io.Writer, records []core.PurchaseRecord, opts ExportOptions) error {
	switch opts.Format {
	case FormatCSV, FormatTSV:
	default:
		return core.Invalidf("unknown export format %q", opts.Format)
	}
	switch opts.Numbers {
	case NumbersFormatted, NumbersRaw:
	default:
		return core.Invalidf("unknown number mode %q", opts.Numbers)
	}

	if opts.Format == FormatCSV {
		if _, err := io.WriteString(w, utf8BOM); err != nil {
			return fmt.Errorf("write byte-order mark: %w", err)
		}
	}

	header := exportHeader
	if opts.Numbers == NumbersRaw {
		header = append(append([]string{}, exportHeader...), rawExtraHeader...)
	}
	if err := writeRow(w, opts.Format, header, nil); err != nil {
		return err
	}

	for i, rec := range records {
		cols, numeric := exportRow(i+1, rec, opts.Numbers)
		if err := writeRow(w, opts.Format, cols, numeric); err != nil {
			return err
		}
	}
	return nil
}

// exportRow splits a record into its column values and a parallel mask of
// which columns are numeric (left unquoted in CSV).
func exportRow(line int, rec core.PurchaseRecord, mode NumberMode) ([]string, []bool) {
	money := core.FormatCents
	if mode == NumbersRaw {
		money = core.RawCents
	}
	values := []string{
		strconv.Itoa(line),
		rec.ItemName,
		rec.Vendor,
		rec.CatalogNumber,
		rec.Specification,
		rec.Grade,
		money(rec.UnitPrice.Cents),
		rec.Currency,
		strconv.FormatFloat(rec.Quantity, 'f', -1, 64),
		money(rec.Amount.Cents),
		rec.Notes,
	}
	numeric := []bool{true, false, false, false, false, false, true, false, true, true, false}
	if mode == NumbersRaw {
		values = append(values, rec.Date.String(), string(rec.Category), rec.UnitLabel, rec.ProjectName)
		numeric = append(numeric, false, false, false, false)
	}
	return values, numeric
}

func writeRow(w io.Writer, format Format, values []string, numeric []bool) error {
	var b strings.Builder
	for i, v := range values {
		if i > 0 {
			if format == FormatTSV {
				b.WriteByte('\t')
			} else {
				b.WriteByte(',')
			}
		}
		switch format {
		case FormatTSV:
			b.WriteString(flattenTSV(v))
		default:
			// Numeric columns stay bare only while they are free of the
			// delimiter; formatted amounts carry grouping commas and must
			// be quoted like any other colliding value.
			if numeric != nil && numeric[i] && !strings.ContainsAny(v, ",\"\r\n") {
				b.WriteString(v)
			} else {
				// Unconditional quoting for string columns avoids
				// delimiter collisions in vendor and item names.
				b.WriteByte('"')
				b.WriteString(strings.ReplaceAll(v, `"`, `""`))
				b.WriteByte('"')
			}
		}
	}
	b.WriteString("\r\n")
	_, err := io.WriteString(w, b.String())
	if err != nil {
		return fmt.Errorf("write export row: %w", err)
	}
	return nil
}

// flattenTSV strips characters that would break a tab-separated clipboard
// paste.
func flattenTSV(s string) string {
	s = strings.ReplaceAll(s, "\t", " ")
	s = strings.ReplaceAll(s, "\r", " ")
	return strings.ReplaceAll(s, "\n", " ")
}
