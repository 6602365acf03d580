package domain

import "sort"

// Category is the top-level vehicle-class taxonomy used across FADA
// press releases.
type Category string

const (
	CategoryTwoWheeler   Category = "2W"
	CategoryThreeWheeler Category = "3W"
	CategoryPassenger    Category = "PV"
	CategoryCommercial   Category = "CV"
	CategoryTractor      Category = "TRACTOR"
	CategoryTotal        Category = "TOTAL"
)

// Categories lists all categories in the canonical output order.
var Categories = []Category{
	CategoryTwoWheeler,
	CategoryThreeWheeler,
	CategoryPassenger,
	CategoryCommercial,
	CategoryTractor,
	CategoryTotal,
}

// Known subcategory labels. Subcategories only appear under 3W and CV.
const (
	SubcategoryLCV = "LCV"
	SubcategoryMCV = "MCV"
	SubcategoryHCV = "HCV"

	SubcategoryERickshawP    = "E-RICKSHAW(P)"
	SubcategoryERickshawCart = "E-RICKSHAW WITH CART (G)"
	Subcategory3WGoods       = "3W (GOODS)"
	Subcategory3WPassenger   = "3W (PASSENGER)"
	Subcategory3WPersonal    = "3W (PERSONAL)"
)

// ExtractionRecord is a single numeric figure extracted from one document:
// retail units for a category (and optional subcategory) in a period.
type ExtractionRecord struct {
	Period      Period   `json:"period"`
	Category    Category `json:"category"`
	Subcategory string   `json:"subcategory,omitempty"`
	Value       int64    `json:"value"`
	Unit        string   `json:"unit"`
}

// Key identifies the record within its period. Two records with the same
// key inside one document indicate a parse ambiguity.
func (r ExtractionRecord) Key() string {
	if r.Subcategory == "" {
		return string(r.Category)
	}
	return string(r.Category) + "/" + r.Subcategory
}

// SortRecords orders records canonically: category order first, then
// subcategory lexicographically. Used for deterministic comparison and
// workbook layout.
func SortRecords(records []ExtractionRecord) {
	order := make(map[Category]int, len(Categories))
	for i, c := range Categories {
		order[c] = i
	}
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if order[a.Category] != order[b.Category] {
			return order[a.Category] < order[b.Category]
		}
		return a.Subcategory < b.Subcategory
	})
}

// RecordsEqual reports whether two record sets carry identical data,
// ignoring order. The aggregator's replace-or-noop rule hinges on this.
func RecordsEqual(a, b []ExtractionRecord) bool {
	if len(a) != len(b) {
		return false
	}
	ac := make([]ExtractionRecord, len(a))
	bc := make([]ExtractionRecord, len(b))
	copy(ac, a)
	copy(bc, b)
	SortRecords(ac)
	SortRecords(bc)
	for i := range ac {
		if ac[i] != bc[i] {
			return false
		}
	}
	return true
}
