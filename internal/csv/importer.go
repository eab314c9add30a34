// Package csv parses and serializes delimited purchase data.
//
// Import matches columns by header name, order-independently, and accepts
// either comma- or tab-delimited input. Row failure policy: an invalid row
// is skipped and reported individually; valid rows continue. Persisting the
// surviving rows atomically is the caller's job.
package csv

import (
	"bufio"
	enccsv "encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"labstock/internal/core"
)

// ImportOptions carries the upload metadata applied to every parsed row.
type ImportOptions struct {
	OrgID       string
	ProjectName string
}

// RowError describes one rejected data row. Line is 1-based and counts the
// header.
type RowError struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

func (e RowError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
}

// ImportResult holds parsed records plus the rows that were rejected.
type ImportResult struct {
	Records []core.PurchaseRecord
	Skipped []RowError
}

// Required columns. Each maps to the aliases accepted in the header row,
// lowercased.
var columnAliases = map[string][]string{
	"date":           {"date", "purchase date"},
	"vendor":         {"vendor", "vendor name", "supplier"},
	"item":           {"item", "item name", "product"},
	"quantity":       {"quantity", "qty"},
	"unit price":     {"unit price", "unitprice", "price"},
	"amount":         {"amount", "total", "line total"},
	"currency":       {"currency", "currency code"},
	"category":       {"category"},
	"catalog number": {"catalog number", "catalog no.", "catalog no", "catalog"},
	"specification":  {"specification", "spec"},
	"grade":          {"grade"},
	"unit":           {"unit", "unit label"},
	"notes":          {"notes", "memo", "remark"},
	"project":        {"project", "project name"},
}

var requiredColumns = []string{"date", "vendor", "item", "quantity", "unit price", "amount", "currency"}

// ParseImport reads a delimited purchase file. A missing required column
// fails the whole import; a header-only file yields zero records and no
// error.
func ParseImport(r io.Reader, opts ImportOptions) (ImportResult, error) {
	if strings.TrimSpace(opts.OrgID) == "" {
		return ImportResult{}, core.Invalidf("missing organization id")
	}

	br := bufio.NewReader(r)
	delimiter, err := detectDelimiter(br)
	if err != nil {
		return ImportResult{}, err
	}

	reader := enccsv.NewReader(br)
	reader.Comma = delimiter
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err == io.EOF {
		return ImportResult{}, core.Invalidf("empty file")
	}
	if err != nil {
		return ImportResult{}, core.Invalidf("malformed header row: %v", err)
	}

	headerMap := generateHeaderMap(header)
	for _, col := range requiredColumns {
		if _, ok := lookup(headerMap, col); !ok {
			return ImportResult{}, core.Invalidf("missing required column %q", col)
		}
	}

	var result ImportResult
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			result.Skipped = append(result.Skipped, RowError{Line: line, Reason: "malformed row"})
			continue
		}
		if isBlankRow(record) {
			continue
		}

		row := importRow{record: record, headerMap: headerMap}
		purchase, err := row.toPurchase(opts)
		if err != nil {
			result.Skipped = append(result.Skipped, RowError{Line: line, Reason: err.Error()})
			continue
		}
		result.Records = append(result.Records, purchase)
	}

	return result, nil
}

// importRow resolves header-mapped access to one data row.
type importRow struct {
	record    []string
	headerMap map[string]int
}

func (r importRow) get(column string) string {
	idx, ok := lookup(r.headerMap, column)
	if !ok || idx >= len(r.record) {
		return ""
	}
	return strings.TrimSpace(r.record[idx])
}

func (r importRow) toPurchase(opts ImportOptions) (core.PurchaseRecord, error) {
	date, err := core.ParseDate(r.get("date"))
	if err != nil {
		return core.PurchaseRecord{}, fmt.Errorf("bad date %q", r.get("date"))
	}

	quantity, err := parseQuantity(r.get("quantity"))
	if err != nil {
		return core.PurchaseRecord{}, fmt.Errorf("bad quantity %q", r.get("quantity"))
	}

	unitPrice, err := core.ParseFlexibleCents(r.get("unit price"))
	if err != nil {
		return core.PurchaseRecord{}, fmt.Errorf("bad unit price %q", r.get("unit price"))
	}

	amountCents := int64(0)
	if raw := r.get("amount"); raw != "" {
		amountCents, err = core.ParseFlexibleCents(raw)
		if err != nil {
			return core.PurchaseRecord{}, fmt.Errorf("bad amount %q", raw)
		}
	} else {
		// Blank amount falls back to the line total.
		amountCents = int64(quantity*float64(unitPrice) + 0.5)
	}

	category, err := core.ParseCategory(r.get("category"))
	if err != nil {
		return core.PurchaseRecord{}, fmt.Errorf("bad category %q", r.get("category"))
	}

	project := r.get("project")
	if project == "" {
		project = opts.ProjectName
	}

	purchase := core.PurchaseRecord{
		OrgID:         opts.OrgID,
		Date:          date,
		Vendor:        r.get("vendor"),
		Category:      category,
		ItemName:      r.get("item"),
		CatalogNumber: r.get("catalog number"),
		Specification: r.get("specification"),
		Grade:         r.get("grade"),
		UnitLabel:     r.get("unit"),
		Quantity:      quantity,
		UnitPrice:     core.Money{Cents: unitPrice},
		Amount:        core.Money{Cents: amountCents},
		Currency:      strings.ToUpper(r.get("currency")),
		Notes:         r.get("notes"),
		Source:        core.SourceImport,
		ProjectName:   project,
	}

	if err := purchase.Validate(); err != nil {
		return core.PurchaseRecord{}, err
	}
	return purchase, nil
}

func parseQuantity(s string) (float64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	q, err := strconv.ParseFloat(s, 64)
	if err != nil || q < 0 {
		return 0, core.ErrInvalidQuantity
	}
	return q, nil
}

// detectDelimiter peeks the first line and picks tab when it outnumbers
// comma, so clipboard TSV pastes import without a format switch. A UTF-8
// BOM from spreadsheet exports is consumed here.
func detectDelimiter(br *bufio.Reader) (rune, error) {
	const bom = "\xEF\xBB\xBF"
	if peek, err := br.Peek(len(bom)); err == nil && string(peek) == bom {
		if _, err := br.Discard(len(bom)); err != nil {
			return 0, fmt.Errorf("discard byte-order mark: %w", err)
		}
	}

	peek, err := br.Peek(4096)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return 0, fmt.Errorf("peek header: %w", err)
	}
	firstLine := string(peek)
	if i := strings.IndexByte(firstLine, '\n'); i >= 0 {
		firstLine = firstLine[:i]
	}
	if strings.Count(firstLine, "\t") > strings.Count(firstLine, ",") {
		return '\t', nil
	}
	return ',', nil
}

// generateHeaderMap maps lowercased header names to their column index.
func generateHeaderMap(header []string) map[string]int {
	m := make(map[string]int, len(header))
	for i, name := range header {
		m[strings.ToLower(strings.TrimSpace(name))] = i
	}
	return m
}

func lookup(headerMap map[string]int, column string) (int, bool) {
	for _, alias := range columnAliases[column] {
		if idx, ok := headerMap[alias]; ok {
			return idx, true
		}
	}
	return 0, false
}

func isBlankRow(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}
