package extract

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fadapulse/pkg/contracts/domain"
)

type fakeRowSource struct {
	rows []Row
	err  error
}

func (f *fakeRowSource) Rows(ctx context.Context, path string) ([]Row, error) {
	return f.rows, f.err
}

func row(cells ...string) Row { return Row{Cells: cells} }

var january2024 = domain.Period{Month: 1, Year: 2024}

func TestMatchLabel(t *testing.T) {
	tests := []struct {
		label       string
		category    domain.Category
		subcategory string
		ok          bool
	}{
		{"2W", domain.CategoryTwoWheeler, "", true},
		{"Two Wheeler", domain.CategoryTwoWheeler, "", true},
		{"  two-wheeler  ", domain.CategoryTwoWheeler, "", true},
		{"TOTAL*", domain.CategoryTotal, "", true},
		{"Grand Total", domain.CategoryTotal, "", true},
		{"LCV", domain.CategoryCommercial, domain.SubcategoryLCV, true},
		{"Heavy Commercial Vehicle", domain.CategoryCommercial, domain.SubcategoryHCV, true},
		{"E-Rickshaw (P)", domain.CategoryThreeWheeler, domain.SubcategoryERickshawP, true},
		{"Three - Wheeler (Goods)", domain.CategoryThreeWheeler, domain.Subcategory3WGoods, true},
		{"Maruti Suzuki India Ltd", "", "", false},
		{"OEM Name", "", "", false},
		{"", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			category, subcategory, ok := MatchLabel(tt.label)
			require.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.category, category)
				assert.Equal(t, tt.subcategory, subcategory)
			}
		})
	}
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		cell string
		want int64
		ok   bool
	}{
		{"1,45,667", 145667, true},
		{"22 798", 22798, true},
		{"340", 340, true},
		{"-12", -12, true},
		{"12.5%", 0, false},
		{"n/a", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		got, ok := ParseValue(tt.cell)
		assert.Equal(t, tt.ok, ok, "cell %q", tt.cell)
		if ok {
			assert.Equal(t, tt.want, got, "cell %q", tt.cell)
		}
	}
}

func TestExtractMapsVocabularyRows(t *testing.T) {
	source := &fakeRowSource{rows: []Row{
		row("Category", "JAN'24", "JAN'23", "YoY %"),
		row("2W", "14,58,849", "12,65,069", "15.3%"),
		row("3W", "97,675", "84,866", "15.1%"),
		row("PV", "3,93,250", "3,40,752", "15.4%"),
		row("Tractor", "87,012", "78,645", "10.6%"),
		row("CV", "88,455", "82,428", "7.3%"),
		row("LCV", "48,423", "45,981", "5.3%"),
		row("Total", "21,25,241", "18,51,760", "14.8%"),
	}}

	extractor := NewExtractor(source, nil)
	result, err := extractor.Extract(context.Background(), "jan.pdf", january2024)
	require.NoError(t, err)

	require.Len(t, result.Records, 7)
	assert.Zero(t, result.Unmapped)
	assert.Empty(t, result.Warnings)

	byKey := make(map[string]int64)
	for _, rec := range result.Records {
		byKey[rec.Key()] = rec.Value
		assert.Equal(t, january2024, rec.Period)
	}
	assert.Equal(t, int64(1458849), byKey["2W"])
	assert.Equal(t, int64(48423), byKey["CV/LCV"])
	assert.Equal(t, int64(2125241), byKey["TOTAL"])
}

func TestExtractUsesPeriodColumn(t *testing.T) {
	// The period's column is not the first numeric one.
	source := &fakeRowSource{rows: []Row{
		row("Category", "DEC'23", "JAN'24", "JAN'23"),
		row("2W", "10,00,000", "14,58,849", "12,65,069"),
	}}

	extractor := NewExtractor(source, nil)
	result, err := extractor.Extract(context.Background(), "jan.pdf", january2024)
	require.NoError(t, err)

	require.Len(t, result.Records, 1)
	assert.Equal(t, int64(1458849), result.Records[0].Value)
}

func TestExtractCountsUnmappedRows(t *testing.T) {
	source := &fakeRowSource{rows: []Row{
		row("2W", "14,58,849"),
		row("Maruti Suzuki", "1,44,167"),
		row("Hyundai Motor", "52,233"),
		row("FADA academy announces workshop"),
	}}

	extractor := NewExtractor(source, nil)
	result, err := extractor.Extract(context.Background(), "jan.pdf", january2024)
	require.NoError(t, err)

	assert.Len(t, result.Records, 1)
	assert.Equal(t, 2, result.Unmapped, "prose rows without numbers must not count")
}

func TestExtractDuplicateKeepsFirst(t *testing.T) {
	source := &fakeRowSource{rows: []Row{
		row("2W", "14,58,849"),
		row("2W", "99"),
	}}

	extractor := NewExtractor(source, nil)
	result, err := extractor.Extract(context.Background(), "jan.pdf", january2024)
	require.NoError(t, err)

	require.Len(t, result.Records, 1)
	assert.Equal(t, int64(1458849), result.Records[0].Value)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "duplicate")
}

func TestExtractMatchedRowWithoutValueWarns(t *testing.T) {
	source := &fakeRowSource{rows: []Row{
		row("2W", "14,58,849"),
		row("Tractor", "n/a"),
	}}

	extractor := NewExtractor(source, nil)
	result, err := extractor.Extract(context.Background(), "jan.pdf", january2024)
	require.NoError(t, err)

	assert.Len(t, result.Records, 1)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "no numeric value")
}

func TestExtractNoMappedRowsIsParseError(t *testing.T) {
	source := &fakeRowSource{rows: []Row{
		row("Maruti Suzuki", "1,44,167"),
		row("Hyundai Motor", "52,233"),
	}}

	extractor := NewExtractor(source, nil)
	_, err := extractor.Extract(context.Background(), "jan.pdf", january2024)

	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, "jan.pdf", parseErr.Path)
}

func TestExtractEmptyDocumentIsParseError(t *testing.T) {
	extractor := NewExtractor(&fakeRowSource{}, nil)
	_, err := extractor.Extract(context.Background(), "empty.pdf", january2024)

	var parseErr *ParseError
	assert.ErrorAs(t, err, &parseErr)
}
