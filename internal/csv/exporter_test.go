package csv

import (
	"bytes"
	enccsv "encoding/csv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"labstock/internal/core"
)

func sampleRecords() []core.PurchaseRecord {
	return []core.PurchaseRecord{
		{
			OrgID:         "org-1",
			Date:          core.NewDate(2025, 7, 15),
			Vendor:        `BioLegend "Korea"`,
			Category:      core.CategoryReagent,
			ItemName:      "Human IL-6 ELISA Kit",
			CatalogNumber: "430504",
			Specification: "96 wells",
			Grade:         "RUO",
			UnitLabel:     "kit",
			Quantity:      2,
			UnitPrice:     core.Money{Cents: 45000000},
			Amount:        core.Money{Cents: 90000000},
			Currency:      "KRW",
			Notes:         "for cytokine assay",
			Source:        core.SourceImport,
			ProjectName:   "hplc-lab",
		},
		{
			OrgID:     "org-1",
			Date:      core.NewDate(2025, 7, 20),
			Vendor:    "Merck",
			Category:  core.CategoryConsumable,
			ItemName:  "Methanol, HPLC grade",
			Quantity:  10,
			UnitPrice: core.Money{Cents: 2500000},
			Amount:    core.Money{Cents: 25000000},
			Currency:  "KRW",
			Source:    core.SourceManual,
		},
	}
}

func TestExportCSVFormatted(t *testing.T) {
	var buf bytes.Buffer
	err := Export(&buf, sampleRecords(), ExportOptions{Format: FormatCSV, Numbers: NumbersFormatted})
	require.NoError(t, err)

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "\xEF\xBB\xBF"), "CSV starts with a UTF-8 BOM")

	lines := strings.Split(strings.TrimSuffix(out, "\r\n"), "\r\n")
	require.Len(t, lines, 3)

	header := strings.TrimPrefix(lines[0], "\xEF\xBB\xBF")
	assert.Equal(t, `"No.","Item","Vendor","Catalog No.","Specification","Grade","Unit Price","Currency","Qty","Line Total","Notes"`,
		header, "fixed column order")

	assert.Contains(t, lines[1], `"BioLegend ""Korea"""`, "embedded quotes doubled")
	assert.Contains(t, lines[1], `"450,000"`, "grouped amounts are quoted, not bare")
	assert.Contains(t, lines[2], `"Methanol, HPLC grade"`, "comma in item stays quoted")
}

func TestExportCSVFormattedParsesColumnar(t *testing.T) {
	var buf bytes.Buffer
	err := Export(&buf, sampleRecords(), ExportOptions{Format: FormatCSV, Numbers: NumbersFormatted})
	require.NoError(t, err)

	content := strings.TrimPrefix(buf.String(), "\xEF\xBB\xBF")
	reader := enccsv.NewReader(strings.NewReader(content))
	rows, err := reader.ReadAll()
	require.NoError(t, err, "formatted export must stay valid CSV")

	require.Len(t, rows, 3)
	for i, row := range rows {
		assert.Len(t, row, len(exportHeader), "row %d field count", i)
	}
	assert.Equal(t, "450,000", rows[1][6], "unit price survives grouping intact")
	assert.Equal(t, "900,000", rows[1][9])
}

func TestExportCSVRawRoundTrip(t *testing.T) {
	records := sampleRecords()

	var buf bytes.Buffer
	err := Export(&buf, records, ExportOptions{Format: FormatCSV, Numbers: NumbersRaw})
	require.NoError(t, err)

	result, err := ParseImport(bytes.NewReader(buf.Bytes()), ImportOptions{OrgID: "org-1"})
	require.NoError(t, err)
	require.Len(t, result.Records, len(records))
	assert.Empty(t, result.Skipped)

	for i, got := range result.Records {
		want := records[i]
		assert.Equal(t, want.Date.String(), got.Date.String())
		assert.Equal(t, want.Vendor, got.Vendor)
		assert.Equal(t, want.ItemName, got.ItemName)
		assert.Equal(t, want.Category, got.Category)
		assert.Equal(t, want.Quantity, got.Quantity)
		assert.Equal(t, want.UnitPrice.Cents, got.UnitPrice.Cents)
		assert.Equal(t, want.Amount.Cents, got.Amount.Cents)
		assert.Equal(t, want.Currency, got.Currency)
		assert.Equal(t, want.ProjectName, got.ProjectName)
	}
}

func TestExportTSV(t *testing.T) {
	records := sampleRecords()
	records[0].Notes = "line1\nline2\twide"

	var buf bytes.Buffer
	err := Export(&buf, records, ExportOptions{Format: FormatTSV, Numbers: NumbersFormatted})
	require.NoError(t, err)

	out := buf.String()
	assert.False(t, strings.HasPrefix(out, "\xEF\xBB\xBF"), "TSV has no BOM")
	assert.NotContains(t, out, `"`+"BioLegend", "TSV values are not quoted")

	lines := strings.Split(strings.TrimSuffix(out, "\r\n"), "\r\n")
	require.Len(t, lines, 3)
	assert.Equal(t, len(strings.Split(lines[0], "\t")), len(strings.Split(lines[1], "\t")),
		"embedded tabs and newlines flattened")
}

func TestExportEmpty(t *testing.T) {
	var buf bytes.Buffer
	err := Export(&buf, nil, ExportOptions{Format: FormatCSV, Numbers: NumbersFormatted})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\r\n"), "\r\n")
	assert.Len(t, lines, 1, "header only")
}

func TestExportInvalidOptions(t *testing.T) {
	var buf bytes.Buffer
	assert.ErrorIs(t, Export(&buf, nil, ExportOptions{Format: "xlsx", Numbers: NumbersRaw}), core.ErrValidation)
	assert.ErrorIs(t, Export(&buf, nil, ExportOptions{Format: FormatCSV, Numbers: "scientific"}), core.ErrValidation)
}
