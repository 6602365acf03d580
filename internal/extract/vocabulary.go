// Package extract pulls retail figures out of press-release documents. The
// documents are machine-generated but the table vocabulary drifts between
// months, so matching is fuzzy: labels are normalized and checked against a
// known alias list.
package extract

import (
	"regexp"
	"strings"

	"fadapulse/pkg/contracts/domain"
)

// vocabularyEntry binds one normalized alias to its category and optional
// subcategory.
type vocabularyEntry struct {
	category    domain.Category
	subcategory string
}

// vocabulary maps normalized row labels to the canonical taxonomy. Aliases
// track the label variants observed in releases since 2018.
var vocabulary = map[string]vocabularyEntry{
	"2W":            {category: domain.CategoryTwoWheeler},
	"TWO WHEELER":   {category: domain.CategoryTwoWheeler},
	"TWO-WHEELER":   {category: domain.CategoryTwoWheeler},
	"2-WHEELER":     {category: domain.CategoryTwoWheeler},
	"TWO WHEELERS":  {category: domain.CategoryTwoWheeler},
	"TWO-WHEELERS":  {category: domain.CategoryTwoWheeler},

	"3W":             {category: domain.CategoryThreeWheeler},
	"THREE WHEELER":  {category: domain.CategoryThreeWheeler},
	"THREE-WHEELER":  {category: domain.CategoryThreeWheeler},
	"3-WHEELER":      {category: domain.CategoryThreeWheeler},
	"THREE WHEELERS": {category: domain.CategoryThreeWheeler},
	"THREE-WHEELERS": {category: domain.CategoryThreeWheeler},

	"E-RICKSHAW(P)":  {category: domain.CategoryThreeWheeler, subcategory: domain.SubcategoryERickshawP},
	"E-RICKSHAW (P)": {category: domain.CategoryThreeWheeler, subcategory: domain.SubcategoryERickshawP},
	"ERICKSHAW(P)":   {category: domain.CategoryThreeWheeler, subcategory: domain.SubcategoryERickshawP},

	"E-RICKSHAW WITH CART (G)": {category: domain.CategoryThreeWheeler, subcategory: domain.SubcategoryERickshawCart},
	"E-RICKSHAW WITH CART(G)":  {category: domain.CategoryThreeWheeler, subcategory: domain.SubcategoryERickshawCart},
	"ERICKSHAW WITH CART (G)":  {category: domain.CategoryThreeWheeler, subcategory: domain.SubcategoryERickshawCart},

	"THREE - WHEELER (GOODS)": {category: domain.CategoryThreeWheeler, subcategory: domain.Subcategory3WGoods},
	"THREE-WHEELER (GOODS)":   {category: domain.CategoryThreeWheeler, subcategory: domain.Subcategory3WGoods},
	"3W (GOODS)":              {category: domain.CategoryThreeWheeler, subcategory: domain.Subcategory3WGoods},

	"THREE - WHEELER (PASSENGER)": {category: domain.CategoryThreeWheeler, subcategory: domain.Subcategory3WPassenger},
	"THREE-WHEELER (PASSENGER)":   {category: domain.CategoryThreeWheeler, subcategory: domain.Subcategory3WPassenger},
	"3W (PASSENGER)":              {category: domain.CategoryThreeWheeler, subcategory: domain.Subcategory3WPassenger},

	"THREE - WHEELER (PERSONAL)": {category: domain.CategoryThreeWheeler, subcategory: domain.Subcategory3WPersonal},
	"THREE-WHEELER (PERSONAL)":   {category: domain.CategoryThreeWheeler, subcategory: domain.Subcategory3WPersonal},
	"3W (PERSONAL)":              {category: domain.CategoryThreeWheeler, subcategory: domain.Subcategory3WPersonal},

	"PV":                 {category: domain.CategoryPassenger},
	"PASSENGER VEHICLE":  {category: domain.CategoryPassenger},
	"PASSENGER VEHICLES": {category: domain.CategoryPassenger},
	"PASSENGER CAR":      {category: domain.CategoryPassenger},

	"CV":                  {category: domain.CategoryCommercial},
	"COMMERCIAL VEHICLE":  {category: domain.CategoryCommercial},
	"COMMERCIAL VEHICLES": {category: domain.CategoryCommercial},

	"LCV":                       {category: domain.CategoryCommercial, subcategory: domain.SubcategoryLCV},
	"LIGHT COMMERCIAL VEHICLE":  {category: domain.CategoryCommercial, subcategory: domain.SubcategoryLCV},
	"MCV":                       {category: domain.CategoryCommercial, subcategory: domain.SubcategoryMCV},
	"MEDIUM COMMERCIAL VEHICLE": {category: domain.CategoryCommercial, subcategory: domain.SubcategoryMCV},
	"HCV":                       {category: domain.CategoryCommercial, subcategory: domain.SubcategoryHCV},
	"HEAVY COMMERCIAL VEHICLE":  {category: domain.CategoryCommercial, subcategory: domain.SubcategoryHCV},

	"TRACTOR":  {category: domain.CategoryTractor},
	"TRACTORS": {category: domain.CategoryTractor},
	"TRAC":     {category: domain.CategoryTractor},

	"TOTAL":       {category: domain.CategoryTotal},
	"GRAND TOTAL": {category: domain.CategoryTotal},
	"ALL":         {category: domain.CategoryTotal},
}

var (
	whitespaceRun  = regexp.MustCompile(`\s+`)
	footnoteMarker = regexp.MustCompile(`[*#†]+$`)
	numericValue   = regexp.MustCompile(`^-?\d+$`)
)

// NormalizeLabel upper-cases, collapses whitespace and strips trailing
// footnote markers from a row label.
func NormalizeLabel(label string) string {
	label = strings.TrimSpace(label)
	label = whitespaceRun.ReplaceAllString(label, " ")
	label = footnoteMarker.ReplaceAllString(label, "")
	return strings.ToUpper(strings.TrimSpace(label))
}

// MatchLabel resolves a raw row label against the vocabulary. The boolean is
// false for labels outside the taxonomy (OEM names, header rows, footnotes).
func MatchLabel(label string) (domain.Category, string, bool) {
	entry, ok := vocabulary[NormalizeLabel(label)]
	if !ok {
		return "", "", false
	}
	return entry.category, entry.subcategory, true
}

// ParseValue coerces a table cell into a count. Thousands separators and
// stray whitespace are stripped; anything non-numeric after that is
// rejected.
func ParseValue(cell string) (int64, bool) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ',', ' ', '\t', ' ':
			return -1
		}
		return r
	}, strings.TrimSpace(cell))

	if !numericValue.MatchString(cleaned) {
		return 0, false
	}

	var v int64
	for i, r := range cleaned {
		if i == 0 && r == '-' {
			continue
		}
		v = v*10 + int64(r-'0')
	}
	if strings.HasPrefix(cleaned, "-") {
		v = -v
	}
	return v, true
}
