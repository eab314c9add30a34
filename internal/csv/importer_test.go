package csv

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"labstock/internal/core"
)

var opts = ImportOptions{OrgID: "org-1", ProjectName: "hplc-lab"}

func TestParseImportSingleRow(t *testing.T) {
	input := "Date,Vendor,Item,Category,Quantity,Unit Price,Amount,Currency\n" +
		"2025-07-15,BioLegend,Human IL-6 ELISA Kit,REAGENT,2,450000,900000,KRW\n"

	result, err := ParseImport(strings.NewReader(input), opts)
	require.NoError(t, err)
	require.Len(t, result.Records, 1)
	assert.Empty(t, result.Skipped)

	rec := result.Records[0]
	assert.Equal(t, "org-1", rec.OrgID)
	assert.Equal(t, "2025-07-15", rec.Date.String())
	assert.Equal(t, "BioLegend", rec.Vendor)
	assert.Equal(t, "Human IL-6 ELISA Kit", rec.ItemName)
	assert.Equal(t, core.CategoryReagent, rec.Category)
	assert.Equal(t, 2.0, rec.Quantity)
	assert.Equal(t, int64(45000000), rec.UnitPrice.Cents)
	assert.Equal(t, int64(90000000), rec.Amount.Cents)
	assert.Equal(t, "KRW", rec.Currency)
	assert.Equal(t, core.SourceImport, rec.Source)
	assert.Equal(t, "hplc-lab", rec.ProjectName)
}

func TestParseImportTSV(t *testing.T) {
	input := "Date\tVendor\tItem\tQuantity\tUnit Price\tAmount\tCurrency\n" +
		"2025-07-15\tBioLegend\tELISA Kit\t1\t450000\t450000\tKRW\n"

	result, err := ParseImport(strings.NewReader(input), opts)
	require.NoError(t, err)
	require.Len(t, result.Records, 1)
	assert.Equal(t, "BioLegend", result.Records[0].Vendor)
}

func TestParseImportBOMAndAliases(t *testing.T) {
	input := "\xEF\xBB\xBFpurchase date,supplier,product,qty,price,total,currency code\n" +
		"2025/07/15,Merck,Methanol,10,25000,250000,KRW\n"

	result, err := ParseImport(strings.NewReader(input), opts)
	require.NoError(t, err)
	require.Len(t, result.Records, 1)
	assert.Equal(t, "Merck", result.Records[0].Vendor)
	assert.Equal(t, "2025-07-15", result.Records[0].Date.String())
}

func TestParseImportHeaderOnly(t *testing.T) {
	input := "Date,Vendor,Item,Quantity,Unit Price,Amount,Currency\n"

	result, err := ParseImport(strings.NewReader(input), opts)
	require.NoError(t, err)
	assert.Empty(t, result.Records)
	assert.Empty(t, result.Skipped)
}

func TestParseImportMissingColumn(t *testing.T) {
	input := "Date,Vendor,Item,Quantity,Unit Price,Amount\n" +
		"2025-07-15,BioLegend,Kit,1,450000,450000\n"

	_, err := ParseImport(strings.NewReader(input), opts)
	assert.ErrorIs(t, err, core.ErrValidation)
	assert.Contains(t, err.Error(), "currency")
}

func TestParseImportSkipsBadRows(t *testing.T) {
	input := "Date,Vendor,Item,Quantity,Unit Price,Amount,Currency\n" +
		"2025-07-15,BioLegend,Kit A,1,450000,450000,KRW\n" +
		"not-a-date,BioLegend,Kit B,1,450000,450000,KRW\n" +
		"2025-07-17,,Kit C,1,450000,450000,KRW\n" +
		"2025-07-18,Merck,Kit D,1,450000,450000,KRW\n"

	result, err := ParseImport(strings.NewReader(input), opts)
	require.NoError(t, err)

	assert.Len(t, result.Records, 2, "valid rows survive bad neighbors")
	require.Len(t, result.Skipped, 2)
	assert.Equal(t, 3, result.Skipped[0].Line)
	assert.Contains(t, result.Skipped[0].Reason, "bad date")
	assert.Equal(t, 4, result.Skipped[1].Line)
}

func TestParseImportBlankAmountFallsBack(t *testing.T) {
	input := "Date,Vendor,Item,Quantity,Unit Price,Amount,Currency\n" +
		"2025-07-15,BioLegend,Kit,3,1000,,KRW\n"

	result, err := ParseImport(strings.NewReader(input), opts)
	require.NoError(t, err)
	require.Len(t, result.Records, 1)
	assert.Equal(t, int64(300000), result.Records[0].Amount.Cents)
}

func TestParseImportGroupedNumbers(t *testing.T) {
	input := "Date,Vendor,Item,Quantity,Unit Price,Amount,Currency\n" +
		`2025-07-15,BioLegend,Kit,1,"1,516,000","1,516,000",krw` + "\n"

	result, err := ParseImport(strings.NewReader(input), opts)
	require.NoError(t, err)
	require.Len(t, result.Records, 1)
	assert.Equal(t, int64(151600000), result.Records[0].Amount.Cents)
	assert.Equal(t, "KRW", result.Records[0].Currency, "currency is uppercased")
}

func TestParseImportSkipsBlankRows(t *testing.T) {
	input := "Date,Vendor,Item,Quantity,Unit Price,Amount,Currency\n" +
		"2025-07-15,BioLegend,Kit,1,450000,450000,KRW\n" +
		",,,,,,\n"

	result, err := ParseImport(strings.NewReader(input), opts)
	require.NoError(t, err)
	assert.Len(t, result.Records, 1)
	assert.Empty(t, result.Skipped, "blank rows are ignored, not errors")
}

func TestParseImportMissingOrg(t *testing.T) {
	_, err := ParseImport(strings.NewReader("x"), ImportOptions{})
	assert.ErrorIs(t, err, core.ErrValidation)
}
